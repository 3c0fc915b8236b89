package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte(`[1]`)
	require.NoError(t, s.Set("k", value))
	value[1] = '2'

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1]`, string(got), "stored values must not alias the caller's slice")
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := NewFileStorage(dir)

	_, ok, err := s.Get("ledger.income")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("ledger.income", []byte(`[{"id":"a"}]`)))
	require.NoError(t, s.Set("ledger.income", []byte(`[{"id":"b"}]`)))

	got, ok, err := s.Get("ledger.income")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"b"}]`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "ledger.income.json", entries[0].Name())
}

func TestFileDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"income":[{"id":"a","date":"2024-01-01"}]}`), 0o600))

	ds, err := FileDataset(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds["income"], 1)

	_, err = FileDataset(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dataset.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"payroll":[{"id":"p","date":"2024-01-01","employee":"Sam"}]}`))
	}))
	defer srv.Close()

	ds, err := HTTPDataset{URL: srv.URL + "/dataset.json"}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds["payroll"], 1)

	_, err = HTTPDataset{URL: srv.URL + "/nope.json"}.Load(context.Background())
	assert.Error(t, err)
}

func TestFirstDataset(t *testing.T) {
	ctx := context.Background()

	_, err := FirstDataset{}.Load(ctx)
	assert.Error(t, err)

	ds, err := FirstDataset{
		staticDataset{err: assert.AnError},
		FileDataset(filepath.Join(t.TempDir(), "missing.json")),
		staticDataset{ds: core.Dataset{}},
	}.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, ds)
}
