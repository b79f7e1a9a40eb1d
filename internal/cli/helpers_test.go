package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// runJSON executes args with --format json and decodes the data payload
// of a successful response into T.
func runJSON[T any](t *testing.T, args ...string) T {
	t.Helper()
	out, stderr, err := run(t, append(args, "--format", "json")...)
	require.NoError(t, err, "stderr: %s", stderr)

	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "stdout: %s", out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lifecycle.db")
}
