// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// ResetTimeout is the maximum duration for a factory reset.
const ResetTimeout = 30 * time.Second

// KindResetter clears a single record kind. Satisfied by *core.Service.
type KindResetter interface {
	Reset(ctx context.Context, kind string) error
}

// AttachmentPurger deletes every stored attachment. Satisfied by *core.Service.
type AttachmentPurger interface {
	PurgeAttachments(ctx context.Context) error
}

// Resetter handles factory reset operations.
type Resetter struct {
	Store KindResetter
	Kinds func() []string // defaults to core.Kinds
}

type resetFn func(ctx context.Context) error

// FactoryReset deletes every record of every registered kind, then every
// attachment when Store can purge them.
// This is a destructive operation - use with caution.
func (r *Resetter) FactoryReset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	kinds := core.Kinds()
	if r.Kinds != nil {
		kinds = r.Kinds()
	}

	resets := make([]resetFn, 0, len(kinds))
	for _, kind := range kinds {
		kind := kind
		resets = append(resets, func(ctx context.Context) error {
			if err := r.Store.Reset(ctx, kind); err != nil {
				return fmt.Errorf("reset %s: %w", kind, err)
			}
			return nil
		})
	}

	if p, ok := r.Store.(AttachmentPurger); ok {
		resets = append(resets, func(ctx context.Context) error {
			if err := p.PurgeAttachments(ctx); err != nil {
				return fmt.Errorf("reset attachments: %w", err)
			}
			return nil
		})
	}

	if err := r.runResets(ctx, resets); err != nil {
		return err
	}

	slog.Info("factory reset complete", "kinds", len(kinds))
	return nil
}

func (r *Resetter) runResets(ctx context.Context, resets []resetFn) error {
	for _, reset := range resets {
		if err := reset(ctx); err != nil {
			return err
		}
	}
	return nil
}
