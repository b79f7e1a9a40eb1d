package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lifecycle/internal/clock"
	"github.com/roach88/lifecycle/internal/telemetry"
)

// OutboxEntry is one stored telemetry batch.
type OutboxEntry struct {
	Seq         int64
	Kind        string
	Payload     []byte // decompressed batch JSON
	RawSize     int
	StoredSize  int
	CreatedAt   string
	DeliveredAt string // empty while pending
}

// Send implements telemetry.Sink by appending batch to the outbox.
// The batch is validated, then stored zstd-compressed.
func (s *Store) Send(ctx context.Context, batch []byte) error {
	b, err := telemetry.DecodeBatch(batch)
	if err != nil {
		return fmt.Errorf("outbox: %w", err)
	}

	compressed := s.enc.EncodeAll(batch, nil)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO telemetry_outbox (kind, payload, raw_size, created_at)
		VALUES (?, ?, ?, ?)
	`,
		b.Kind(),
		compressed,
		len(batch),
		clock.Format(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("outbox: insert: %w", err)
	}
	return nil
}

var _ telemetry.Sink = (*Store)(nil)

// ReadOutbox returns up to limit undelivered batches, oldest first. A
// limit of zero or less returns all of them.
func (s *Store) ReadOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT seq, kind, payload, raw_size, created_at, delivered_at
		FROM telemetry_outbox
		WHERE delivered_at IS NULL
		ORDER BY seq ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryOutbox(ctx, query, args...)
}

// ReadAllOutbox returns every batch, delivered or not, oldest first.
func (s *Store) ReadAllOutbox(ctx context.Context) ([]OutboxEntry, error) {
	return s.queryOutbox(ctx, `
		SELECT seq, kind, payload, raw_size, created_at, delivered_at
		FROM telemetry_outbox
		ORDER BY seq ASC
	`)
}

func (s *Store) queryOutbox(ctx context.Context, query string, args ...any) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		var e OutboxEntry
		var compressed []byte
		var delivered sql.NullString
		if err := rows.Scan(&e.Seq, &e.Kind, &compressed, &e.RawSize, &e.CreatedAt, &delivered); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		payload, err := s.dec.DecodeAll(compressed, make([]byte, 0, e.RawSize))
		if err != nil {
			return nil, fmt.Errorf("decompress outbox %d: %w", e.Seq, err)
		}
		e.Payload = payload
		e.StoredSize = len(compressed)
		e.DeliveredAt = delivered.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkDelivered stamps an outbox row as delivered. Marking an already
// delivered row keeps its first timestamp.
func (s *Store) MarkDelivered(ctx context.Context, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE telemetry_outbox
		SET delivered_at = COALESCE(delivered_at, ?)
		WHERE seq = ?
	`, clock.Format(s.clock.Now()), seq)
	if err != nil {
		return fmt.Errorf("mark delivered %d: %w", seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark delivered %d: %w", seq, err)
	}
	if n == 0 {
		return fmt.Errorf("mark delivered %d: %w", seq, ErrNotFound)
	}
	return nil
}
