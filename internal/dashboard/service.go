// Package dashboard computes the operational rollups shown on the gate
// console. Everything here is read-only; numbers are derived on demand from
// the credential, ledger, and presence stores.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

// CredentialCounter is the slice of the credential store the dashboard reads.
type CredentialCounter interface {
	CountActiveByKind(ctx context.Context) (map[id.Kind]int, error)
}

// EventCounter is the slice of the ledger store the dashboard reads.
type EventCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
	CountAlertsSince(ctx context.Context, since time.Time) (int, error)
}

// PresenceCounter is the slice of the presence service the dashboard reads.
type PresenceCounter interface {
	CountIn(ctx context.Context) (int, error)
}

// Stats is one dashboard snapshot.
type Stats struct {
	ActiveAssets   int `json:"activeAssets"`
	ActiveVehicles int `json:"activeVehicles"`
	EventsToday    int `json:"eventsToday"`
	AlertsLast24h  int `json:"alertsLast24h"`
	ScholarsOnSite int `json:"scholarsOnSite"`
}

// Service assembles dashboard snapshots.
type Service struct {
	credentials CredentialCounter
	events      EventCounter
	presence    PresenceCounter
}

func New(credentials CredentialCounter, events EventCounter, presence PresenceCounter) (*Service, error) {
	if credentials == nil || events == nil || presence == nil {
		return nil, fmt.Errorf("all dashboard sources are required")
	}
	return &Service{credentials: credentials, events: events, presence: presence}, nil
}

// Stats computes one snapshot. "Today" starts at local midnight of the
// request clock; alerts cover a rolling 24 hours.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := requestcontext.Now(ctx)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayAgo := now.Add(-24 * time.Hour)

	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.credentials.CountActiveByKind(ctx)
		if err != nil {
			return fmt.Errorf("count credentials: %w", err)
		}
		stats.ActiveAssets = counts[id.KindAsset]
		stats.ActiveVehicles = counts[id.KindVehicle]
		return nil
	})
	g.Go(func() error {
		count, err := s.events.CountSince(ctx, midnight)
		if err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		stats.EventsToday = count
		return nil
	})
	g.Go(func() error {
		count, err := s.events.CountAlertsSince(ctx, dayAgo)
		if err != nil {
			return fmt.Errorf("count alerts: %w", err)
		}
		stats.AlertsLast24h = count
		return nil
	})
	g.Go(func() error {
		count, err := s.presence.CountIn(ctx)
		if err != nil {
			return fmt.Errorf("count scholars: %w", err)
		}
		stats.ScholarsOnSite = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute dashboard stats")
	}
	return stats, nil
}
