package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatewarden/internal/ledger"
)

// MemoryStore is the in-process ledger used in development and tests.
// Events are held in arrival order; queries sort on demand.
type MemoryStore struct {
	mu     sync.RWMutex
	events []ledger.GateEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event ledger.GateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filter ledger.Filter) (ledger.Page, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]ledger.GateEvent, 0)
	for _, event := range s.events {
		if matches(event, filter) {
			matched = append(matched, event)
		}
	}
	s.mu.RUnlock()

	// Newest first; arrival order breaks ties so a serial append sequence
	// reads back in reverse.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return ledger.Page{
		Events:   matched[start:end],
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *MemoryStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events {
		if !event.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountAlertsSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events {
		if event.Timestamp.Before(since) {
			continue
		}
		switch event.Status {
		case ledger.StatusInvalidHash, ledger.StatusUserMismatch, ledger.StatusStolen:
			count++
		}
	}
	return count, nil
}

func matches(event ledger.GateEvent, filter ledger.Filter) bool {
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Status != "" && event.Status != filter.Status {
		return false
	}
	if filter.ActorID != nil {
		if event.ActorID == nil || *event.ActorID != *filter.ActorID {
			return false
		}
	}
	if filter.Subject != "" && !subjectMatches(event, filter.Subject) {
		return false
	}
	if !filter.From.IsZero() && event.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && event.Timestamp.After(filter.To) {
		return false
	}
	return true
}

func subjectMatches(event ledger.GateEvent, subject string) bool {
	if event.SubjectCredentialID != nil && event.SubjectCredentialID.String() == subject {
		return true
	}
	if event.SubjectIdentityID != nil && event.SubjectIdentityID.String() == subject {
		return true
	}
	return event.SubjectPlate != "" && event.SubjectPlate == subject
}
