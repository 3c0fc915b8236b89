package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/config"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core/coretest"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core/tables"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/web"
)

// newLedgerServer runs the real API router over an in-memory service.
func newLedgerServer(t *testing.T) (*httptest.Server, *coretest.Service) {
	t.Helper()
	svc := coretest.NewService()
	svc.Now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	cfg := &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Uploads:  config.UploadConfig{Dir: "uploads", MaxBytes: 1 << 20},
		Security: config.SecurityConfig{CORSAllowedOrigins: []string{"*"}},
		App:      config.AppConfig{Version: "test"},
	}
	srv := httptest.NewServer(web.NewServer(svc, svc, cfg).Router())
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestLiveTier_AgainstLedgerServer(t *testing.T) {
	srv, svc := newLedgerServer(t)
	ctx := context.Background()

	f := Open(ctx, Options{BackendURL: srv.URL, FallbackURL: deadURL(t)})
	require.Equal(t, TierLive, f.Tier())

	doc, err := f.Upsert(ctx, "payroll", `{"date":"2024-01-31","employee":"Sam","amount":"1,250"}`)
	require.NoError(t, err)
	samID := gjson.GetBytes(doc, "id").String()
	require.Len(t, samID, 32)
	_, err = f.Upsert(ctx, "payroll", tables.Payroll{Date: "2024-02-29", Employee: "Kim", Amount: 10, Notes: "a, b"})
	require.NoError(t, err)

	list, err := ListAs[tables.Payroll](ctx, f, "payroll")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Kim", list[0].Employee)
	assert.Equal(t, 1250.0, list[1].Amount)

	csv, err := f.Export(ctx, "payroll")
	require.NoError(t, err)
	assert.Equal(t, "Date,Employee,AmountGBP,Notes\n2024-02-29,Kim,10.00,\"a, b\"\n2024-01-31,Sam,1250.00,\n", string(csv))

	removed, err := f.Remove(ctx, "payroll", "missing")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = f.Remove(ctx, "payroll", samID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 1, svc.Len("payroll"))

	_, err = f.Upsert(ctx, "payroll", `{"date":"2024-01-31"}`)
	assert.ErrorIs(t, err, core.ErrInvalidPayload)

	require.NoError(t, f.Clear(ctx, "payroll"))
	assert.Zero(t, svc.Len("payroll"))
}

func TestLiveTier_ServerStoreFailure(t *testing.T) {
	srv, svc := newLedgerServer(t)
	ctx := context.Background()

	f := Open(ctx, Options{BackendURL: srv.URL, FallbackURL: deadURL(t)})
	require.Equal(t, TierLive, f.Tier())

	svc.CountErr = assert.AnError
	f = Open(ctx, Options{BackendURL: srv.URL, FallbackURL: deadURL(t)})
	assert.Equal(t, TierUnavailable, f.Tier())
}
