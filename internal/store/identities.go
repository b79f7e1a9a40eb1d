package store

import (
	"context"
	"fmt"

	"github.com/roach88/lifecycle/internal/attempt"
)

// SaveIdentity upserts an attempt identity. Reconciliation fields only
// move forward: a stored canonical id is never cleared or replaced.
func (s *Store) SaveIdentity(ctx context.Context, id attempt.Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempt_identities
		(launch_request_id, attempt_id, idempotency_key, canonical_attempt_id,
		 is_local_only, is_reconciled, lab_id, requested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(launch_request_id) DO UPDATE SET
			canonical_attempt_id = excluded.canonical_attempt_id,
			is_local_only = excluded.is_local_only,
			is_reconciled = excluded.is_reconciled
		WHERE attempt_identities.is_reconciled = 0
	`,
		id.LaunchRequestID,
		id.AttemptID,
		id.IdempotencyKey,
		id.CanonicalAttemptID,
		id.IsLocalOnly,
		id.IsReconciled,
		id.LabID,
		id.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("save identity %s: %w", id.LaunchRequestID, err)
	}
	return nil
}

// ReadIdentities returns every stored identity ordered by request time,
// then launch request id.
func (s *Store) ReadIdentities(ctx context.Context) ([]attempt.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT launch_request_id, attempt_id, idempotency_key, canonical_attempt_id,
		       is_local_only, is_reconciled, lab_id, requested_at
		FROM attempt_identities
		ORDER BY requested_at ASC, launch_request_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	ids := []attempt.Identity{}
	for rows.Next() {
		var id attempt.Identity
		if err := rows.Scan(
			&id.LaunchRequestID,
			&id.AttemptID,
			&id.IdempotencyKey,
			&id.CanonicalAttemptID,
			&id.IsLocalOnly,
			&id.IsReconciled,
			&id.LabID,
			&id.RequestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return ids, nil
}

// LoadRegistry restores every stored identity into r.
func (s *Store) LoadRegistry(ctx context.Context, r *attempt.Registry) (int, error) {
	ids, err := s.ReadIdentities(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		r.Restore(id)
	}
	return len(ids), nil
}

// SaveRegistry persists every identity held by r.
func (s *Store) SaveRegistry(ctx context.Context, r *attempt.Registry) error {
	for _, id := range r.Snapshot() {
		if err := s.SaveIdentity(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
