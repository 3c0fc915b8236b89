package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/config"
	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core/coretest"
	_ "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core/tables"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Uploads:  config.UploadConfig{Dir: "uploads", MaxBytes: 1 << 20},
		Security: config.SecurityConfig{CORSAllowedOrigins: []string{"*"}, EnableCSP: true},
		App:      config.AppConfig{Version: "1.4.0"},
	}
}

func newTestServer(t *testing.T) (*Server, *coretest.Service) {
	t.Helper()
	svc := coretest.NewService()
	return NewServer(svc, svc, testConfig()), svc
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestPingAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/income", `{"date":"2024-03-01","amount":"12.50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := gjson.Parse(rec.Body.String())
	assert.True(t, body.Get("ok").Bool())
	assert.Equal(t, int64(1), body.Get("counts.income").Int())
	assert.Equal(t, int64(0), body.Get("counts.expenses").Int())
	assert.True(t, body.Get("counts.payroll").Exists())

	rec = do(t, s, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"1.4.0"}`, rec.Body.String())
}

func TestPingStoreUnavailable(t *testing.T) {
	s, svc := newTestServer(t)
	svc.CountErr = errors.New("dial tcp: connection refused")

	rec := do(t, s, http.MethodGet, "/api/ping", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DB004", gjson.Get(rec.Body.String(), "code").String())
}

func TestRecordLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/expenses", `{"date":"2024-02-01","seller":"Shop","order_number":"A-1","price":"£1,200.50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := gjson.Parse(rec.Body.String())
	id := created.Get("id").String()
	require.Len(t, id, 32)
	assert.Equal(t, "A-1", created.Get("orderNumber").String())
	assert.Equal(t, 1200.5, created.Get("total").Float())

	rec = do(t, s, http.MethodPut, "/api/expenses/"+id, `{"id":"ignored","date":"2024-02-01","seller":"Other"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, gjson.Get(rec.Body.String(), "id").String())

	rec = do(t, s, http.MethodGet, "/api/expenses/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Other", gjson.Get(rec.Body.String(), "seller").String())

	rec = do(t, s, http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "#").Int())

	rec = do(t, s, http.MethodDelete, "/api/expenses/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/expenses/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REC001", gjson.Get(rec.Body.String(), "code").String())

	rec = do(t, s, http.MethodGet, "/api/expenses/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "error").String())
}

func TestListEmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/payroll", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestClear(t *testing.T) {
	s, svc := newTestServer(t)
	do(t, s, http.MethodPost, "/api/payroll", `{"date":"2024-01-31","employee":"Sam","amount":100}`)

	rec := do(t, s, http.MethodDelete, "/api/payroll", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":true}`, rec.Body.String())
	assert.Zero(t, svc.Len("payroll"))
}

func TestUpsertRejections(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed json", "/api/income", `{"date":`, http.StatusBadRequest, "REC002"},
		{"not an object", "/api/income", `[1,2]`, http.StatusBadRequest, "REC002"},
		{"missing date", "/api/income", `{"amount":5}`, http.StatusBadRequest, "REC002"},
		{"unknown kind", "/api/transfers", `{"date":"2024-01-01"}`, http.StatusNotFound, "REC003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, gjson.Get(rec.Body.String(), "code").String())
		})
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/payroll", `{"date":"2024-01-31","employee":"Sam","amount":100,"notes":"say \"hi\", ok"}`)

	rec := do(t, s, http.MethodGet, "/api/payroll.csv?date=2024-02-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payroll-2024-02-01.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date,Employee,AmountGBP,Notes\n2024-01-31,Sam,100.00,\"say \"\"hi\"\", ok\"\n", rec.Body.String())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = do(t, s, http.MethodGet, "/api/payroll.csv", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestExportDefaultsToToday(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/income.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	today := time.Now().Format(exportDateLayout)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "income-"+today+".csv")
	assert.Equal(t, "Date,Source,Processor,AmountGBP,FeesGBP,Notes\n", rec.Body.String())
}

func TestExportRejections(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/income.csv?date=../../etc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/transfers.csv", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFactoryReset(t *testing.T) {
	s, svc := newTestServer(t)
	do(t, s, http.MethodPost, "/api/income", `{"date":"2024-03-01"}`)

	rec := do(t, s, http.MethodPost, "/api/factory-reset", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REC004", gjson.Get(rec.Body.String(), "code").String())
	assert.Zero(t, svc.Resets)

	rec = do(t, s, http.MethodPost, "/api/factory-reset", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reset":true}`, rec.Body.String())
	assert.Equal(t, 1, svc.Resets)
	assert.Zero(t, svc.Len("income"))
}

func TestPreflightAndHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodOptions, "/api/income/abc", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodGet, "/api/version", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestStatusPage(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/income", `{"date":"2024-03-01"}`)

	rec := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Version 1.4.0")
	assert.Contains(t, rec.Body.String(), `href="/api/income.csv"`)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("2.2.2.2"))
}

func TestRateLimitedResponse(t *testing.T) {
	svc := coretest.NewService()
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	s := NewServer(svc, svc, cfg)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/version", "").Code)
	rec := do(t, s, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", gjson.Get(rec.Body.String(), "code").String())
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
