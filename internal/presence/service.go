package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gatewarden/internal/identity"
	"gatewarden/internal/ledger"
	"gatewarden/internal/platform/metrics"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

var tracer = otel.Tracer("gatewarden/internal/presence")

// Ledger is the slice of the ledger service this package needs.
type Ledger interface {
	Append(ctx context.Context, event ledger.GateEvent) (id.EventID, error)
}

// Store is implemented by internal/presence/store.
type Store interface {
	Get(ctx context.Context, identityID id.IdentityID) (State, error)
	Flip(ctx context.Context, identityID id.IdentityID, expected Status, transitionAt time.Time) (State, error)
	CountIn(ctx context.Context) (int, error)
}

// ToggleResult is the outcome of one gate crossing.
type ToggleResult struct {
	State   State
	EventID id.EventID
}

// Service flips scholar presence and records each crossing in the ledger.
type Service struct {
	store     Store
	directory identity.Directory
	events    Ledger
	locks     KeyedLock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithKeyedLock(locks KeyedLock) Option {
	return func(s *Service) { s.locks = locks }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, directory identity.Directory, events Ledger, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("presence store is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("identity directory is required")
	}
	if events == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	svc := &Service{
		store:     store,
		directory: directory,
		events:    events,
		locks:     NewLocalLock(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Toggle flips the scholar between IN and OUT. The flip and its ledger event
// happen under a per-identity lock so a double scan lands as two clean
// transitions, never a lost update.
func (s *Service) Toggle(ctx context.Context, identityID id.IdentityID) (ToggleResult, error) {
	ctx, span := tracer.Start(ctx, "presence.toggle")
	defer span.End()

	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return ToggleResult{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !actor.IsStaff() {
		return ToggleResult{}, dErrors.New(dErrors.CodeForbidden, "only gate staff may record crossings")
	}

	scholar, err := s.directory.Get(ctx, identityID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return ToggleResult{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return ToggleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve identity")
	}
	if !scholar.DayScholar || !scholar.Active {
		return ToggleResult{}, dErrors.New(dErrors.CodeNotFound, "identity is not a tracked day scholar")
	}

	release, err := s.locks.Acquire(ctx, identityID)
	if err != nil {
		return ToggleResult{}, err
	}
	defer release()

	current, err := s.store.Get(ctx, identityID)
	if err != nil {
		return ToggleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load presence state")
	}

	transitionAt := requestcontext.Now(ctx)
	next, err := s.store.Flip(ctx, identityID, current.Status, transitionAt)
	if err != nil {
		return ToggleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to flip presence state")
	}

	eventType := ledger.EventScholarIn
	if next.Status == StatusOut {
		eventType = ledger.EventScholarOut
	}

	actorID := actor.ID
	eventID, err := s.events.Append(ctx, ledger.GateEvent{
		Type:              eventType,
		Status:            ledger.StatusValid,
		SubjectIdentityID: &identityID,
		ActorID:           &actorID,
	})
	if err != nil {
		// The ledger is the source of truth; an unlogged flip must not
		// stand. Undo while the lock is still held.
		if _, undoErr := s.store.Flip(ctx, identityID, next.Status, current.LastTransitionAt); undoErr != nil {
			s.logger.ErrorContext(ctx, "failed to undo presence flip after ledger failure",
				"identity_id", identityID.String(),
				"error", undoErr,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return ToggleResult{}, err
	}

	span.SetAttributes(attribute.String("presence.status", string(next.Status)))
	if s.metrics != nil {
		s.metrics.ObserveToggle(string(next.Status))
	}
	return ToggleResult{State: next, EventID: eventID}, nil
}

// Roster returns every active day scholar with their current presence.
func (s *Service) Roster(ctx context.Context) ([]RosterEntry, error) {
	scholars, err := s.directory.ListDayScholars(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list day scholars")
	}

	entries := make([]RosterEntry, 0, len(scholars))
	for _, scholar := range scholars {
		state, err := s.store.Get(ctx, scholar.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load presence state")
		}
		entries = append(entries, RosterEntry{
			IdentityID:       scholar.ID,
			Name:             scholar.Name,
			Status:           state.Status,
			LastTransitionAt: state.LastTransitionAt,
		})
	}
	return entries, nil
}

// CountIn returns how many scholars are currently on site.
func (s *Service) CountIn(ctx context.Context) (int, error) {
	count, err := s.store.CountIn(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count present scholars")
	}
	return count, nil
}
