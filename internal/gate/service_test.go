package gate_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewarden/internal/credential/issuer"
	"gatewarden/internal/credential/models"
	credstore "gatewarden/internal/credential/store"
	"gatewarden/internal/gate"
	"gatewarden/internal/ledger"
	ledgerstore "gatewarden/internal/ledger/store"
	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
	"gatewarden/pkg/requestcontext"
)

type fixture struct {
	svc         *gate.Service
	credentials *credstore.MemoryStore
	events      *ledgerstore.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	credentials := credstore.NewMemoryStore()
	events := ledgerstore.NewMemoryStore()

	ledgerSvc, err := ledger.New(events, logger)
	require.NoError(t, err)

	svc, err := gate.New(credentials, ledgerSvc, logger)
	require.NoError(t, err)

	return &fixture{svc: svc, credentials: credentials, events: events}
}

func (f *fixture) seedCredential(t *testing.T, kind id.Kind, naturalKey string) models.Credential {
	t.Helper()
	credential := models.Credential{
		ID:         id.NewCredentialID(),
		OwnerID:    id.NewIdentityID(),
		Kind:       kind,
		NaturalKey: naturalKey,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	issuedAt := time.Now()
	credential.VerificationHash = issuer.Digest(credential.ID, credential.NaturalKey, credential.OwnerID, issuedAt)
	credential.IssuedAt = issuedAt
	require.NoError(t, f.credentials.Create(context.Background(), credential))
	return credential
}

func (f *fixture) lastEvent(t *testing.T) ledger.GateEvent {
	t.Helper()
	page, err := f.events.Query(context.Background(), ledger.Filter{PageSize: 1})
	require.NoError(t, err)
	require.NotEmpty(t, page.Events)
	return page.Events[0]
}

func (f *fixture) eventCount(t *testing.T) int {
	t.Helper()
	page, err := f.events.Query(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	return page.Total
}

func payloadFor(c models.Credential) gate.ScanPayload {
	p := models.PayloadFor(c)
	return gate.ScanPayload{Type: p.Type, ID: p.ID, UserID: p.UserID, Hash: p.Hash, Timestamp: p.Timestamp}
}

func guardCtx() context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		ID:   id.NewIdentityID(),
		Role: id.RoleGuard,
	})
}

func memberCtx() context.Context {
	return requestcontext.WithActor(context.Background(), requestcontext.Actor{
		ID:   id.NewIdentityID(),
		Role: id.RoleMember,
	})
}

func TestVerify(t *testing.T) {
	t.Run("valid asset scan", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-100")

		result, err := f.svc.Verify(guardCtx(), payloadFor(credential))
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusValid, result.Result)
		require.NotNil(t, result.Credential)
		assert.Equal(t, credential.ID, result.Credential.ID)
		assert.False(t, result.EventID.IsNil())

		event := f.lastEvent(t)
		assert.Equal(t, ledger.EventAssetVerify, event.Type)
		assert.Equal(t, ledger.StatusValid, event.Status)
		require.NotNil(t, event.SubjectCredentialID)
		assert.Equal(t, credential.ID, *event.SubjectCredentialID)
	})

	t.Run("valid vehicle scan logs a vehicle entry", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindVehicle, "KDA123A")

		result, err := f.svc.Verify(guardCtx(), payloadFor(credential))
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusValid, result.Result)
		assert.Equal(t, ledger.EventVehicleEntry, f.lastEvent(t).Type)
	})

	t.Run("tampered hash", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-101")

		payload := payloadFor(credential)
		payload.Hash = payload.Hash[:len(payload.Hash)-1] + "0"
		if payload.Hash == credential.VerificationHash {
			payload.Hash = payload.Hash[:len(payload.Hash)-1] + "1"
		}

		result, err := f.svc.Verify(guardCtx(), payload)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusInvalidHash, result.Result)
		assert.Equal(t, ledger.StatusInvalidHash, f.lastEvent(t).Status)
	})

	t.Run("hash check outranks user mismatch and stolen", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-102")
		f.credentials.MarkStolen(credential.ID, true)

		payload := payloadFor(credential)
		payload.UserID = id.NewIdentityID().String()
		payload.Hash = "deadbeef"

		result, err := f.svc.Verify(guardCtx(), payload)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusInvalidHash, result.Result)
	})

	t.Run("user mismatch outranks stolen", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-103")
		f.credentials.MarkStolen(credential.ID, true)

		payload := payloadFor(credential)
		payload.UserID = id.NewIdentityID().String()

		result, err := f.svc.Verify(guardCtx(), payload)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusUserMismatch, result.Result)
	})

	t.Run("stolen with matching hash and owner", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-104")
		f.credentials.MarkStolen(credential.ID, true)

		result, err := f.svc.Verify(guardCtx(), payloadFor(credential))
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusStolen, result.Result)
		assert.Equal(t, ledger.StatusStolen, f.lastEvent(t).Status)
	})

	t.Run("unknown credential id", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.svc.Verify(guardCtx(), gate.ScanPayload{
			Type:   "asset",
			ID:     id.NewCredentialID().String(),
			UserID: id.NewIdentityID().String(),
			Hash:   "abc123",
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusNotFound, result.Result)
		assert.Nil(t, result.Credential)
		assert.Equal(t, 1, f.eventCount(t))
	})

	t.Run("deactivated credential reads as not found", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-105")
		f.credentials.Deactivate(credential.ID)

		result, err := f.svc.Verify(guardCtx(), payloadFor(credential))
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusNotFound, result.Result)
	})

	t.Run("wrong kind for the id reads as not found", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-106")

		payload := payloadFor(credential)
		payload.Type = "vehicle"

		result, err := f.svc.Verify(guardCtx(), payload)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusNotFound, result.Result)
	})

	t.Run("missing hash is malformed and still logged", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-107")

		payload := payloadFor(credential)
		payload.Hash = ""

		result, err := f.svc.Verify(guardCtx(), payload)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusMalformed, result.Result)

		event := f.lastEvent(t)
		assert.Equal(t, ledger.EventAssetVerify, event.Type)
		assert.Equal(t, ledger.StatusMalformed, event.Status)
	})

	t.Run("unknown type with a real id logs an alert", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-108")

		payload := payloadFor(credential)
		payload.Type = "spacecraft"

		result, err := f.svc.Verify(guardCtx(), payload)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusMalformed, result.Result)
		assert.Equal(t, ledger.EventSecurityAlert, f.lastEvent(t).Type)
	})

	t.Run("unparsable id is rejected without a ledger row", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Verify(guardCtx(), gate.ScanPayload{
			Type: "asset",
			ID:   "not-a-uuid",
			Hash: "abc",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, 0, f.eventCount(t))
	})

	t.Run("staff actor is attributed, member is not", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindAsset, "SN-109")

		guardID := id.NewIdentityID()
		ctx := requestcontext.WithActor(context.Background(), requestcontext.Actor{ID: guardID, Role: id.RoleGuard})
		_, err := f.svc.Verify(ctx, payloadFor(credential))
		require.NoError(t, err)
		event := f.lastEvent(t)
		require.NotNil(t, event.ActorID)
		assert.Equal(t, guardID, *event.ActorID)

		_, err = f.svc.Verify(memberCtx(), payloadFor(credential))
		require.NoError(t, err)
		assert.Nil(t, f.lastEvent(t).ActorID)
	})
}

func TestResolvePlate(t *testing.T) {
	t.Run("registered plate", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindVehicle, "KDA123A")

		result, err := f.svc.ResolvePlate(guardCtx(), gate.PlateInput{PlateNumber: "KDA123A", Location: "main gate"})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusValid, result.Result)
		require.NotNil(t, result.Credential)
		assert.Equal(t, credential.ID, result.Credential.ID)

		event := f.lastEvent(t)
		assert.Equal(t, ledger.EventVehicleEntry, event.Type)
		assert.Equal(t, "main gate", event.Location)
		assert.False(t, event.Visitor)
	})

	t.Run("input is trimmed and uppercased before lookup", func(t *testing.T) {
		f := newFixture(t)
		f.seedCredential(t, id.KindVehicle, "KDA123A")

		result, err := f.svc.ResolvePlate(guardCtx(), gate.PlateInput{PlateNumber: "  kda123a "})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusValid, result.Result)
	})

	t.Run("stolen vehicle", func(t *testing.T) {
		f := newFixture(t)
		credential := f.seedCredential(t, id.KindVehicle, "KDB456B")
		f.credentials.MarkStolen(credential.ID, true)

		result, err := f.svc.ResolvePlate(guardCtx(), gate.PlateInput{PlateNumber: "KDB456B"})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusStolen, result.Result)
		assert.Equal(t, ledger.StatusStolen, f.lastEvent(t).Status)
	})

	t.Run("unknown plate falls back to visitor", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.svc.ResolvePlate(guardCtx(), gate.PlateInput{PlateNumber: "kzz999z"})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusVisitor, result.Result)
		assert.Nil(t, result.Credential)

		event := f.lastEvent(t)
		assert.True(t, event.Visitor)
		assert.Equal(t, "KZZ999Z", event.SubjectPlate)
		assert.Nil(t, event.SubjectCredentialID)
	})

	t.Run("exit records a vehicle exit", func(t *testing.T) {
		f := newFixture(t)
		f.seedCredential(t, id.KindVehicle, "KDC789C")

		_, err := f.svc.ResolvePlate(guardCtx(), gate.PlateInput{PlateNumber: "KDC789C", Exit: true})
		require.NoError(t, err)
		assert.Equal(t, ledger.EventVehicleExit, f.lastEvent(t).Type)
	})

	t.Run("blank plate is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.ResolvePlate(guardCtx(), gate.PlateInput{PlateNumber: "   "})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, 0, f.eventCount(t))
	})
}

func TestRecordVisitor(t *testing.T) {
	t.Run("entry", func(t *testing.T) {
		f := newFixture(t)

		eventID, err := f.svc.RecordVisitor(guardCtx(), gate.VisitorInput{
			Name:     "Jordan Doe",
			IDNumber: "12345678",
			Purpose:  "delivery",
			Location: "main gate",
		})
		require.NoError(t, err)
		assert.False(t, eventID.IsNil())

		event := f.lastEvent(t)
		assert.Equal(t, ledger.EventVisitorEntry, event.Type)
		assert.Equal(t, ledger.StatusVisitor, event.Status)
		assert.True(t, event.Visitor)
		assert.Contains(t, event.Notes, "Jordan Doe")
		assert.Contains(t, event.Notes, "delivery")
	})

	t.Run("exit", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RecordVisitor(guardCtx(), gate.VisitorInput{Name: "Jordan Doe", Exit: true})
		require.NoError(t, err)
		assert.Equal(t, ledger.EventVisitorExit, f.lastEvent(t).Type)
	})

	t.Run("name is required", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RecordVisitor(guardCtx(), gate.VisitorInput{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestRaiseAlert(t *testing.T) {
	t.Run("records an attributed alert", func(t *testing.T) {
		f := newFixture(t)

		guardID := id.NewIdentityID()
		ctx := requestcontext.WithActor(context.Background(), requestcontext.Actor{ID: guardID, Role: id.RoleGuard})

		eventID, err := f.svc.RaiseAlert(ctx, gate.AlertInput{
			Notes:    "tailgating at the barrier",
			Location: "east gate",
			Subject:  "KDA123A",
		})
		require.NoError(t, err)
		assert.False(t, eventID.IsNil())

		event := f.lastEvent(t)
		assert.Equal(t, ledger.EventSecurityAlert, event.Type)
		assert.Equal(t, "KDA123A", event.SubjectPlate)
		require.NotNil(t, event.ActorID)
		assert.Equal(t, guardID, *event.ActorID)
	})

	t.Run("notes are required", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RaiseAlert(guardCtx(), gate.AlertInput{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
