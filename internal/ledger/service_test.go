package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewarden/internal/ledger"
	"gatewarden/internal/ledger/store"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, ledger.GateEvent) error {
	return errors.New("disk full")
}

func (failingStore) Query(context.Context, ledger.Filter) (ledger.Page, error) {
	return ledger.Page{}, errors.New("disk full")
}

type capturingStream struct {
	published []ledger.GateEvent
}

func (s *capturingStream) Publish(_ context.Context, event ledger.GateEvent) error {
	s.published = append(s.published, event)
	return nil
}

func TestAppend(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("assigns id and timestamp", func(t *testing.T) {
		memory := store.NewMemoryStore()
		svc, err := ledger.New(memory, logger)
		require.NoError(t, err)

		now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), now)

		eventID, err := svc.Append(ctx, ledger.GateEvent{
			Type:   ledger.EventSecurityAlert,
			Status: ledger.StatusValid,
		})
		require.NoError(t, err)
		assert.False(t, eventID.IsNil())

		page, err := svc.Query(ctx, ledger.Filter{})
		require.NoError(t, err)
		require.Len(t, page.Events, 1)
		assert.Equal(t, eventID, page.Events[0].ID)
		assert.Equal(t, now, page.Events[0].Timestamp)
	})

	t.Run("rejects unknown event types", func(t *testing.T) {
		svc, err := ledger.New(store.NewMemoryStore(), logger)
		require.NoError(t, err)

		_, err = svc.Append(context.Background(), ledger.GateEvent{Type: "TELEPORT"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects multiple subjects", func(t *testing.T) {
		svc, err := ledger.New(store.NewMemoryStore(), logger)
		require.NoError(t, err)

		credentialID := id.NewCredentialID()
		identityID := id.NewIdentityID()
		_, err = svc.Append(context.Background(), ledger.GateEvent{
			Type:                ledger.EventAssetVerify,
			Status:              ledger.StatusValid,
			SubjectCredentialID: &credentialID,
			SubjectIdentityID:   &identityID,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("surfaces store failures", func(t *testing.T) {
		svc, err := ledger.New(failingStore{}, logger)
		require.NoError(t, err)

		_, err = svc.Append(context.Background(), ledger.GateEvent{
			Type:   ledger.EventAssetVerify,
			Status: ledger.StatusValid,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("fans committed events out to the stream", func(t *testing.T) {
		stream := &capturingStream{}
		svc, err := ledger.New(store.NewMemoryStore(), logger, ledger.WithStream(stream))
		require.NoError(t, err)

		eventID, err := svc.Append(context.Background(), ledger.GateEvent{
			Type:   ledger.EventVisitorEntry,
			Status: ledger.StatusVisitor,
		})
		require.NoError(t, err)
		require.Len(t, stream.published, 1)
		assert.Equal(t, eventID, stream.published[0].ID)
	})

	t.Run("no stream publish when persistence fails", func(t *testing.T) {
		stream := &capturingStream{}
		svc, err := ledger.New(failingStore{}, logger, ledger.WithStream(stream))
		require.NoError(t, err)

		_, err = svc.Append(context.Background(), ledger.GateEvent{
			Type:   ledger.EventAssetVerify,
			Status: ledger.StatusValid,
		})
		require.Error(t, err)
		assert.Empty(t, stream.published)
	})
}
