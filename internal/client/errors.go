package client

import "github.com/pkg/errors"

var (
	// ErrUnavailable is returned by every operation when no tier could be
	// resolved at startup.
	ErrUnavailable = errors.New("ledger: no persistence tier available")

	// ErrTransport wraps failures talking to a live backend after the probe
	// succeeded. The facade never falls back mid-session.
	ErrTransport = errors.New("ledger: backend transport failure")
)
