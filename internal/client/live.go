package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// maxErrorBody caps how much of an error response is read into messages.
const maxErrorBody = 4 << 10

// liveBackend forwards every call to the API server.
type liveBackend struct {
	base string
	http *http.Client
}

// probe reports whether base answers GET /api/ping with {"ok": true}.
func probe(ctx context.Context, client *http.Client, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/ping", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return false
	}
	return gjson.GetBytes(body, "ok").Bool()
}

func (l *liveBackend) endpoint(kind string, rest ...string) string {
	parts := append([]string{l.base, "api", url.PathEscape(kind)}, rest...)
	return strings.Join(parts, "/")
}

func (l *liveBackend) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "%s %s: %v", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "%s %s: %v", method, target, err)
	}
	return resp, nil
}

// statusError maps a non-2xx response onto the core sentinels where the
// server's meaning is known.
func statusError(method, target string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := gjson.GetBytes(raw, "error").String()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Wrapf(core.ErrNotFound, "%s %s: %s", method, target, msg)
	case http.StatusBadRequest:
		return errors.Wrapf(core.ErrInvalidPayload, "%s %s: %s", method, target, msg)
	default:
		return errors.Wrapf(ErrTransport, "%s %s: status %d: %s", method, target, resp.StatusCode, msg)
	}
}

func (l *liveBackend) List(ctx context.Context, kind string) ([]core.Document, error) {
	target := l.endpoint(kind)
	resp, err := l.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, statusError(http.MethodGet, target, resp)
	}
	var docs []core.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, errors.Wrapf(ErrTransport, "GET %s: decode: %v", target, err)
	}
	if docs == nil {
		docs = []core.Document{}
	}
	return docs, nil
}

func (l *liveBackend) Upsert(ctx context.Context, kind string, doc core.Document) (core.Document, error) {
	target := l.endpoint(kind)
	resp, err := l.do(ctx, http.MethodPost, target, doc)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, statusError(http.MethodPost, target, resp)
	}
	var out core.Document
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrapf(ErrTransport, "POST %s: decode: %v", target, err)
	}
	return out, nil
}

func (l *liveBackend) Remove(ctx context.Context, kind, id string) (bool, error) {
	target := l.endpoint(kind, url.PathEscape(id))
	resp, err := l.do(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode/100 != 2:
		return false, statusError(http.MethodDelete, target, resp)
	}
	return true, nil
}

func (l *liveBackend) Clear(ctx context.Context, kind string) error {
	target := l.endpoint(kind)
	resp, err := l.do(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(http.MethodDelete, target, resp)
	}
	return nil
}

func (l *liveBackend) Export(ctx context.Context, kind string) ([]byte, error) {
	target := l.base + "/api/" + url.PathEscape(kind) + ".csv"
	resp, err := l.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, statusError(http.MethodGet, target, resp)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "GET %s: %v", target, err)
	}
	return out, nil
}
