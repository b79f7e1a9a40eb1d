package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// compiledSchema compiles the embedded schema once per process.
func compiledSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
		if !schemaDef.Exists() {
			schemaErr = errors.New("compile config schema: #Config not defined")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// validateSchema checks values against #Config. Every violation is
// reported as a FieldError.
func validateSchema(values map[string]any) error {
	ctx, def, err := compiledSchema()
	if err != nil {
		return err
	}

	data := ctx.Encode(values)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return schemaErrors(err)
	}
	return nil
}

func schemaErrors(err error) error {
	var errs []error
	seen := map[string]bool{}
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) > 0 && path[0] == "#Config" {
			path = path[1:]
		}
		field := strings.Join(path, ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if field == "" {
			field = "config"
			msg = e.Error()
		}
		if seen[field+msg] {
			continue
		}
		seen[field+msg] = true
		errs = append(errs, &FieldError{Field: field, Message: msg})
	}
	if len(errs) == 0 {
		return &FieldError{Field: "config", Message: err.Error()}
	}
	return errors.Join(errs...)
}
