package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifecycle/internal/txn"
)

func TestSaveTransaction_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	m, fc := newTestMachine()
	ctx := context.Background()

	tx := m.Draft("txn-1", "publish:t:l:v:h")
	tx.Lab = txn.LabRef{TenantID: "t", LabID: "l", LabVersionID: "v", ContentHash: "h"}
	tx.Artifacts = []txn.Artifact{{Name: "catalog.json", Path: "build/catalog.json", SizeBytes: 10}}
	advance(t, m, fc, tx, txn.StateValidating, txn.StateValidated)

	require.NoError(t, s.SaveTransaction(ctx, tx))

	got, err := s.ReadTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, tx.State, got.State)
	assert.Equal(t, tx.History, got.History)
	assert.Equal(t, tx.Lab, got.Lab)
	assert.Equal(t, tx.Artifacts, got.Artifacts)
	assert.Equal(t, tx.UpdatedAt, got.UpdatedAt)
}

func TestSaveTransaction_AppendsHistory(t *testing.T) {
	s := createTestStore(t)
	m, fc := newTestMachine()
	ctx := context.Background()

	tx := m.Draft("txn-1", "key-1")
	require.NoError(t, s.SaveTransaction(ctx, tx))

	advance(t, m, fc, tx, txn.StateValidating, txn.StateValidated, txn.StateBuildRequested)
	require.NoError(t, s.SaveTransaction(ctx, tx))
	require.NoError(t, s.SaveTransaction(ctx, tx), "saving unchanged history is a no-op")

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM transaction_history WHERE transaction_id = 'txn-1'`).Scan(&rows))
	assert.Equal(t, 4, rows)

	got, err := s.ReadTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, txn.StateBuildRequested, got.State)
	assert.Len(t, got.History, 4)
}

func TestSaveTransaction_RejectsTruncatedHistory(t *testing.T) {
	s := createTestStore(t)
	m, fc := newTestMachine()
	ctx := context.Background()

	tx := m.Draft("txn-1", "key-1")
	advance(t, m, fc, tx, txn.StateValidating)
	require.NoError(t, s.SaveTransaction(ctx, tx))

	stale := txn.NewDraft("txn-1", "key-1", fc.Now())
	err := s.SaveTransaction(ctx, stale)

	assert.ErrorIs(t, err, ErrHistoryRewrite)
}

func TestSaveTransaction_RejectsRewrittenHistory(t *testing.T) {
	s := createTestStore(t)
	m, fc := newTestMachine()
	ctx := context.Background()

	tx := m.Draft("txn-1", "key-1")
	advance(t, m, fc, tx, txn.StateValidating)
	require.NoError(t, s.SaveTransaction(ctx, tx))

	tx.History[1].Reason = "edited"
	err := s.SaveTransaction(ctx, tx)

	assert.ErrorIs(t, err, ErrHistoryRewrite)
}

func TestSaveTransaction_RejectsInconsistent(t *testing.T) {
	s := createTestStore(t)
	m, _ := newTestMachine()

	tx := m.Draft("txn-1", "key-1")
	tx.State = txn.StateBuilt

	assert.Error(t, s.SaveTransaction(context.Background(), tx))
}

func TestSaveTransaction_DuplicateKey(t *testing.T) {
	s := createTestStore(t)
	m, _ := newTestMachine()
	ctx := context.Background()

	require.NoError(t, s.SaveTransaction(ctx, m.Draft("txn-1", "key-1")))
	err := s.SaveTransaction(ctx, m.Draft("txn-2", "key-1"))

	assert.ErrorContains(t, err, "UNIQUE")
}

func TestFindTransactionByKey(t *testing.T) {
	s := createTestStore(t)
	m, _ := newTestMachine()
	ctx := context.Background()
	require.NoError(t, s.SaveTransaction(ctx, m.Draft("txn-1", "key-1")))

	got, err := s.FindTransactionByKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "txn-1", got.ID)

	_, err = s.FindTransactionByKey(ctx, "key-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadTransaction_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadTransaction(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactions_Ordered(t *testing.T) {
	s := createTestStore(t)
	m, fc := newTestMachine()
	ctx := context.Background()

	require.NoError(t, s.SaveTransaction(ctx, m.Draft("txn-b", "key-b")))
	require.NoError(t, s.SaveTransaction(ctx, m.Draft("txn-a", "key-a")))
	fc.Advance(time.Second)
	require.NoError(t, s.SaveTransaction(ctx, m.Draft("txn-0", "key-0")))

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)

	var ids []string
	for _, tx := range list {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"txn-a", "txn-b", "txn-0"}, ids)
}
