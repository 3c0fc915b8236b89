// Package client gives dashboards a single record API that keeps working
// when the ledger server is down.
//
// Open resolves one persistence tier and keeps it for the session:
//
//  1. live: the configured or fallback server answers GET /api/ping
//  2. bundled: a shipped read-only dataset merged with local edits
//  3. local: local edits only, if any exist
//  4. unavailable: every call fails with ErrUnavailable
//
// The tier is never re-probed; a server that comes back mid-session is
// picked up on the next Open.
package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
	_ "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core/tables"
)

const (
	// DefaultFallbackURL is probed when the configured backend does not answer.
	DefaultFallbackURL = "http://localhost:3000"

	DefaultStoragePrefix  = "ledger."
	DefaultProbeTimeout   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Options configures Open. The zero value probes only DefaultFallbackURL
// and keeps local edits in memory.
type Options struct {
	BackendURL  string
	FallbackURL string

	Dataset DatasetSource
	Storage Storage

	StoragePrefix string
	HTTPClient    *http.Client
	ProbeTimeout  time.Duration

	// RequestTimeout bounds each live-tier call when HTTPClient has no
	// timeout of its own.
	RequestTimeout time.Duration

	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.FallbackURL == "" {
		o.FallbackURL = DefaultFallbackURL
	}
	if o.Storage == nil {
		o.Storage = NewMemoryStorage()
	}
	if o.StoragePrefix == "" {
		o.StoragePrefix = DefaultStoragePrefix
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Facade routes record operations to the tier chosen at Open.
type Facade struct {
	tier    Tier
	backend Backend
}

// Open probes the tiers in order and fixes the first that works.
// It never fails; an unusable environment yields TierUnavailable.
func Open(ctx context.Context, opts Options) *Facade {
	opts.setDefaults()

	for _, base := range candidates(opts.BackendURL, opts.FallbackURL) {
		probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
		ok := probe(probeCtx, opts.HTTPClient, base)
		cancel()
		if ok {
			slog.Debug("ledger tier resolved", "tier", TierLive, "backend", base)
			return &Facade{tier: TierLive, backend: &liveBackend{base: base, http: boundedClient(opts)}}
		}
		slog.Debug("ledger backend unreachable", "backend", base)
	}

	if opts.Dataset != nil {
		mirror, err := openBundled(ctx, opts)
		if err == nil {
			slog.Debug("ledger tier resolved", "tier", TierBundled)
			return &Facade{tier: TierBundled, backend: mirror}
		}
		slog.Debug("ledger bundled tier unavailable", "error", err)
	}

	mirror := newMirrorBackend(opts.Storage, opts.StoragePrefix, opts.Now)
	if err := mirror.load(nil); err != nil {
		slog.Warn("ledger local storage unreadable", "error", err)
	} else if mirror.hasLocalRecords() {
		slog.Debug("ledger tier resolved", "tier", TierLocal)
		return &Facade{tier: TierLocal, backend: mirror}
	}

	slog.Debug("ledger tier resolved", "tier", TierUnavailable)
	return &Facade{tier: TierUnavailable, backend: unavailableBackend{}}
}

// boundedClient copies the configured client so a hung server cannot
// stall a live-tier call forever.
func boundedClient(opts Options) *http.Client {
	c := *opts.HTTPClient
	if c.Timeout <= 0 {
		c.Timeout = opts.RequestTimeout
	}
	return &c
}

func openBundled(ctx context.Context, opts Options) (*mirrorBackend, error) {
	ds, err := opts.Dataset.Load(ctx)
	if err != nil {
		return nil, err
	}
	mirror := newMirrorBackend(opts.Storage, opts.StoragePrefix, opts.Now)
	if err := mirror.load(ds); err != nil {
		return nil, err
	}
	return mirror, nil
}

// candidates returns the distinct, non-empty probe addresses in order.
func candidates(urls ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range urls {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Tier returns the tier fixed at Open.
func (f *Facade) Tier() Tier { return f.tier }

// Available reports whether any tier could be resolved.
func (f *Facade) Available() bool { return f.tier != TierUnavailable }

func checkKind(kind string) error {
	_, err := core.Lookup(kind)
	return errors.WithStack(err)
}

// List returns every record of a kind, newest first.
func (f *Facade) List(ctx context.Context, kind string) ([]core.Document, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return f.backend.List(ctx, kind)
}

// Upsert creates or replaces a record. record may be raw JSON or any value
// that marshals to a JSON object. The stored record is returned.
func (f *Facade) Upsert(ctx context.Context, kind string, record any) (core.Document, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	doc, err := toDocument(record)
	if err != nil {
		return nil, err
	}
	return f.backend.Upsert(ctx, kind, doc)
}

// Remove deletes a record. It returns false when the id is unknown.
func (f *Facade) Remove(ctx context.Context, kind, id string) (bool, error) {
	if err := checkKind(kind); err != nil {
		return false, err
	}
	return f.backend.Remove(ctx, kind, id)
}

// Clear deletes every record of a kind.
func (f *Facade) Clear(ctx context.Context, kind string) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return f.backend.Clear(ctx, kind)
}

// Export renders a kind as CSV.
func (f *Facade) Export(ctx context.Context, kind string) ([]byte, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return f.backend.Export(ctx, kind)
}

// ListAs lists a kind and decodes each record into T.
func ListAs[T any](ctx context.Context, f *Facade, kind string) ([]T, error) {
	docs, err := f.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(docs))
	for i, doc := range docs {
		if err := json.Unmarshal(doc, &out[i]); err != nil {
			return nil, errors.Wrapf(err, "decode %s record", kind)
		}
	}
	return out, nil
}

func toDocument(record any) (core.Document, error) {
	switch v := record.(type) {
	case core.Document:
		return v, nil
	case []byte:
		return core.Document(v), nil
	case string:
		return core.Document(v), nil
	}
	b, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidPayload, err.Error())
	}
	return b, nil
}
