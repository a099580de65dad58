package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"gatewarden/internal/platform/metrics"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

// Store is implemented by internal/ledger/store; declared here so the
// service depends only on what it calls.
type Store interface {
	Append(ctx context.Context, event GateEvent) error
	Query(ctx context.Context, filter Filter) (Page, error)
}

// StreamPublisher fans committed events out to the event stream.
type StreamPublisher interface {
	Publish(ctx context.Context, event GateEvent) error
}

// Service is the only write path into the gate ledger. Every append is
// independent; no read-modify-write, so concurrent gates never contend.
type Service struct {
	store   Store
	stream  StreamPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithStream(stream StreamPublisher) Option {
	return func(s *Service) { s.stream = stream }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	svc := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Append assigns the event its id and timestamp if unset, persists it, and
// fans it out. Returns the event id. Audit completeness outranks everything
// else: a failed append is surfaced, never swallowed.
func (s *Service) Append(ctx context.Context, event GateEvent) (id.EventID, error) {
	if !event.Type.IsValid() {
		return id.EventID{}, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown event type %q", event.Type)
	}
	if subjectCount(event) > 1 {
		return id.EventID{}, dErrors.New(dErrors.CodeInvariantViolation, "gate event must carry at most one subject")
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	if err := s.store.Append(ctx, event); err != nil {
		return id.EventID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append gate event")
	}

	if s.metrics != nil {
		s.metrics.ObserveGateEvent(string(event.Type), string(event.Status))
	}
	if s.stream != nil {
		if err := s.stream.Publish(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish gate event to stream",
				"event_id", event.ID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return event.ID, nil
}

// Query returns matching events, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) (Page, error) {
	page, err := s.store.Query(ctx, filter)
	if err != nil {
		return Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query gate events")
	}
	return page, nil
}

func subjectCount(event GateEvent) int {
	count := 0
	if event.SubjectCredentialID != nil {
		count++
	}
	if event.SubjectIdentityID != nil {
		count++
	}
	if event.SubjectPlate != "" {
		count++
	}
	return count
}
