package client

import (
	"context"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// Tier identifies the persistence backend a Facade resolved to.
type Tier int

const (
	TierUnavailable Tier = iota
	TierLive
	TierBundled
	TierLocal
)

func (t Tier) String() string {
	switch t {
	case TierLive:
		return "live"
	case TierBundled:
		return "bundled"
	case TierLocal:
		return "local"
	default:
		return "unavailable"
	}
}

// Backend is the per-tier strategy behind a Facade. Records travel in their
// client-facing JSON shape.
type Backend interface {
	List(ctx context.Context, kind string) ([]core.Document, error)
	Upsert(ctx context.Context, kind string, doc core.Document) (core.Document, error)
	Remove(ctx context.Context, kind, id string) (bool, error)
	Clear(ctx context.Context, kind string) error
	Export(ctx context.Context, kind string) ([]byte, error)
}

type unavailableBackend struct{}

func (unavailableBackend) List(context.Context, string) ([]core.Document, error) {
	return nil, ErrUnavailable
}

func (unavailableBackend) Upsert(context.Context, string, core.Document) (core.Document, error) {
	return nil, ErrUnavailable
}

func (unavailableBackend) Remove(context.Context, string, string) (bool, error) {
	return false, ErrUnavailable
}

func (unavailableBackend) Clear(context.Context, string) error { return ErrUnavailable }

func (unavailableBackend) Export(context.Context, string) ([]byte, error) {
	return nil, ErrUnavailable
}
