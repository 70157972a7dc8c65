// Package providers dispatches over the closed set of calendar providers
// and builds the matching port client for a calendar and its credential.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/remote"
	"bookline/backend/internal/remote/dav"
	"bookline/backend/internal/remote/gcal"
)

// Factory builds a remote client for one calendar. The booking services
// depend on this signature so tests can substitute fakes.
type Factory func(ctx context.Context, cal domain.Calendar, conn domain.ExternalConnection) (remote.Client, error)

// Config carries what client construction needs beyond the calendar row.
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	Timeout            time.Duration
	Log                *slog.Logger
}

// NewFactory returns the production factory over the caldav and google
// ports.
func NewFactory(cfg Config) Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return func(ctx context.Context, cal domain.Calendar, conn domain.ExternalConnection) (remote.Client, error) {
		if !cal.Connected {
			return nil, fmt.Errorf("calendar %s is not connected", cal.ID)
		}
		switch cal.Provider {
		case domain.CalendarProviderCalDAV:
			return dav.New(cfg.Log, cal.URL, cal.User, conn.Token, cfg.Timeout)
		case domain.CalendarProviderGoogle:
			return gcal.New(ctx, cfg.Log, cfg.GoogleClientID, cfg.GoogleClientSecret, conn.Token, cal.URL, cfg.Timeout)
		default:
			return nil, fmt.Errorf("unknown calendar provider %q", cal.Provider)
		}
	}
}
