package tables

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// openTestTx starts a transaction against TEST_DATABASE_URL that is rolled
// back when the test ends. Tests are skipped when the variable is unset.
func openTestTx(t *testing.T) pgx.Tx {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(ctx) })

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	svc := core.NewService(tx, nil)
	require.NoError(t, svc.EnsureSchema(ctx))
	require.NoError(t, svc.ResetAll(ctx))
	return tx
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()
	store := core.NewStore(tx, PayrollSchema)

	created, err := store.Upsert(ctx, payload(t, `{"date":"2024-05-01","employee":"Sam","amount":100}`))
	require.NoError(t, err)
	require.Len(t, created.ID, 32)
	assert.Equal(t, "Sam", created.Employee)

	time.Sleep(5 * time.Millisecond)

	updated, err := store.Upsert(ctx, payload(t, `{"date":"2024-05-01","employee":"Sam","amount":"150"}`).WithID(created.ID))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 150.0, updated.Amount)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "created_at must survive updates")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Amount)
}

func TestStore_RejectsMissingRequiredField(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()
	store := core.NewStore(tx, PayrollSchema)

	_, err := store.Upsert(ctx, payload(t, `{"date":"2024-05-01"}`))
	assert.ErrorIs(t, err, core.ErrInvalidPayload)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_ListOrder(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()
	store := core.NewStore(tx, IncomeSchema)

	for _, body := range []string{
		`{"id":"a","date":"2024-01-01"}`,
		`{"id":"b","date":"2024-03-01"}`,
		`{"id":"c","date":"2024-02-01"}`,
		`{"id":"d","date":"2024-03-01"}`,
	} {
		_, err := store.Upsert(ctx, payload(t, body))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	recs, err := store.List(ctx)
	require.NoError(t, err)

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids)
}

func TestStore_RemoveAndClear(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()
	store := core.NewStore(tx, ExpenseSchema)

	rec, err := store.Upsert(ctx, payload(t, `{"date":"2024-01-01","order_number":"X1","price":4}`))
	require.NoError(t, err)
	assert.Equal(t, "X1", rec.OrderNumber)
	assert.Equal(t, 4.0, rec.Total)

	removed, err := store.Remove(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = store.Remove(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	recs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NotNil(t, recs)
}

func TestService_SeedOnlyEmptyKinds(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()
	svc := core.NewService(tx, nil)

	_, err := core.NewStore(tx, IncomeSchema).Upsert(ctx, payload(t, `{"id":"existing","date":"2024-01-01"}`))
	require.NoError(t, err)

	res, err := svc.Seed(ctx, core.Dataset{
		"income":   {core.Document(`{"id":"i1","date":"2024-01-02"}`)},
		"payroll":  {core.Document(`{"id":"p1","date":"2024-01-02","employee":"Sam"}`), core.Document(`{"id":"p2","date":"2024-01-02"}`)},
		"invoices": {core.Document(`{"id":"x"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"income"}, res.Skipped)
	assert.Equal(t, 1, res.Inserted["payroll"])

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"expenses": 0, "income": 1, "payroll": 1}, counts)

	require.NoError(t, svc.ResetAll(ctx))
	counts, err = svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"expenses": 0, "income": 0, "payroll": 0}, counts)
}

func TestService_AttachmentsCascade(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()
	files, err := core.NewDirFileStore(t.TempDir())
	require.NoError(t, err)
	svc := core.NewService(tx, files)

	income, err := svc.Collection("income")
	require.NoError(t, err)
	_, err = income.Upsert(ctx, payload(t, `{"id":"i1","date":"2024-01-01"}`))
	require.NoError(t, err)

	saved, err := svc.AddAttachments(ctx, "income", "i1", []core.Upload{
		{Name: "receipt.pdf", Mime: "application/pdf", Body: strings.NewReader("%PDF")},
		{Name: "", Body: strings.NewReader("skipped")},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.EqualValues(t, 4, saved[0].Size)
	assert.Equal(t, "/api/attachments/"+saved[0].ID+"/download", saved[0].URL)

	att, body, err := svc.OpenAttachment(ctx, saved[0].ID)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "receipt.pdf", att.Name)

	_, err = svc.ListAttachments(ctx, "payroll", "i1")
	assert.ErrorIs(t, err, core.ErrAttachmentsUnsupported)
	_, err = svc.ListAttachments(ctx, "income", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	removed, err := income.Remove(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = svc.Attachment(ctx, saved[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = os.Stat(filepath.Join(files.Root, "income", "i1"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
