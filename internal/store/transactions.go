package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/lifecycle/internal/txn"
)

// ErrHistoryRewrite is returned when a save would drop or change history
// entries that are already stored.
var ErrHistoryRewrite = errors.New("transaction history is append-only")

// SaveTransaction upserts t and appends any history entries not yet
// stored. Existing history rows are never modified.
//
// Saving a different transaction id under an idempotency key that is
// already taken fails with a UNIQUE constraint error; callers look up
// the key first with FindTransactionByKey.
func (s *Store) SaveTransaction(ctx context.Context, t *txn.Transaction) error {
	if !t.Consistent() {
		return fmt.Errorf("save transaction %s: state %q does not match history", t.ID, t.State)
	}
	report, err := json.Marshal(t.Report())
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var stored int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transaction_history WHERE transaction_id = ?`, t.ID,
		).Scan(&stored); err != nil {
			return fmt.Errorf("count history: %w", err)
		}
		if stored > len(t.History) {
			return fmt.Errorf("%w: %d entries stored, %d supplied", ErrHistoryRewrite, stored, len(t.History))
		}
		if err := checkStoredPrefix(ctx, tx, t, stored); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, idempotency_key, state, created_at, updated_at, report)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				state = excluded.state,
				updated_at = excluded.updated_at,
				report = excluded.report
		`,
			t.ID,
			t.IdempotencyKey,
			string(t.State),
			t.CreatedAt,
			t.UpdatedAt,
			string(report),
		); err != nil {
			return fmt.Errorf("upsert transaction: %w", err)
		}

		for i := stored; i < len(t.History); i++ {
			h := t.History[i]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transaction_history
				(transaction_id, position, from_state, to_state, at, reason, actor)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(transaction_id, position) DO NOTHING
			`,
				t.ID, i, string(h.From), string(h.To), h.At, h.Reason, h.Actor,
			); err != nil {
				return fmt.Errorf("append history %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	return nil
}

// checkStoredPrefix verifies the stored history is a prefix of t's.
func checkStoredPrefix(ctx context.Context, tx *sql.Tx, t *txn.Transaction, stored int) error {
	if stored == 0 {
		return nil
	}
	entries, err := queryHistory(ctx, tx, t.ID)
	if err != nil {
		return err
	}
	for i, h := range entries {
		if h != t.History[i] {
			return fmt.Errorf("%w: entry %d differs", ErrHistoryRewrite, i)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryHistory(ctx context.Context, q queryer, id string) ([]txn.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT from_state, to_state, at, reason, actor
		FROM transaction_history
		WHERE transaction_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []txn.HistoryEntry{}
	for rows.Next() {
		var h txn.HistoryEntry
		var from, to string
		if err := rows.Scan(&from, &to, &h.At, &h.Reason, &h.Actor); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.From = txn.State(from)
		h.To = txn.State(to)
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// ReadTransaction loads a transaction by id. The history comes from the
// append-only history table.
func (s *Store) ReadTransaction(ctx context.Context, id string) (*txn.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT report FROM transactions WHERE id = ?`, id)
	t, err := s.scanTransaction(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("read transaction %s: %w", id, err)
	}
	return t, nil
}

// FindTransactionByKey loads the transaction registered under an
// idempotency key.
func (s *Store) FindTransactionByKey(ctx context.Context, key string) (*txn.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT report FROM transactions WHERE idempotency_key = ?`, key)
	t, err := s.scanTransaction(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("find transaction by key %q: %w", key, err)
	}
	return t, nil
}

// ListTransactions returns every transaction ordered by creation time,
// then id.
func (s *Store) ListTransactions(ctx context.Context) ([]*txn.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM transactions
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]*txn.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := s.ReadTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) scanTransaction(ctx context.Context, row *sql.Row) (*txn.Transaction, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var r txn.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	history, err := queryHistory(ctx, s.db, r.TransactionID)
	if err != nil {
		return nil, err
	}
	r.StateHistory = history
	return txn.FromReport(r)
}
