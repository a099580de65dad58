package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credentialhandler "gatewarden/internal/credential/handler"
	"gatewarden/internal/credential/issuer"
	credstore "gatewarden/internal/credential/store"
	"gatewarden/internal/dashboard"
	dashboardhandler "gatewarden/internal/dashboard/handler"
	"gatewarden/internal/gate"
	gatehandler "gatewarden/internal/gate/handler"
	"gatewarden/internal/identity"
	"gatewarden/internal/ledger"
	ledgerstore "gatewarden/internal/ledger/store"
	"gatewarden/internal/platform/middleware"
	"gatewarden/internal/presence"
	presencehandler "gatewarden/internal/presence/handler"
	presencestore "gatewarden/internal/presence/store"
	httptransport "gatewarden/internal/transport/http"
	id "gatewarden/pkg/domain"
)

// stubValidator maps bearer tokens straight to claims so router tests do not
// mint real JWTs.
type stubValidator struct {
	tokens map[string]middleware.JWTClaims
}

func (v *stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	claims, ok := v.tokens[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &claims, nil
}

type env struct {
	server  *httptest.Server
	guard   identity.Identity
	member  identity.Identity
	scholar identity.Identity
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	directory := identity.NewMemoryDirectory()
	guard := identity.Identity{ID: id.NewIdentityID(), Role: id.RoleGuard, Name: "Guard", Active: true}
	member := identity.Identity{ID: id.NewIdentityID(), Role: id.RoleMember, Name: "Member", Active: true}
	scholar := identity.Identity{ID: id.NewIdentityID(), Role: id.RoleMember, Name: "Scholar", Active: true, DayScholar: true}
	directory.Put(guard)
	directory.Put(member)
	directory.Put(scholar)

	credentials := credstore.NewMemoryStore()
	events := ledgerstore.NewMemoryStore()

	ledgerSvc, err := ledger.New(events, logger)
	require.NoError(t, err)
	issuerSvc, err := issuer.New(credentials, directory, logger)
	require.NoError(t, err)
	gateSvc, err := gate.New(credentials, ledgerSvc, logger)
	require.NoError(t, err)
	presenceSvc, err := presence.New(presencestore.NewMemoryStore(), directory, ledgerSvc, logger)
	require.NoError(t, err)
	dashboardSvc, err := dashboard.New(credentials, events, presenceSvc)
	require.NoError(t, err)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger: logger,
		JWTValidator: &stubValidator{tokens: map[string]middleware.JWTClaims{
			"guard-token":  {IdentityID: guard.ID, Role: id.RoleGuard},
			"member-token": {IdentityID: member.ID, Role: id.RoleMember},
		}},
		Handlers: []httptransport.Registrar{
			credentialhandler.New(issuerSvc, logger),
			gatehandler.New(gateSvc, ledgerSvc, logger),
			presencehandler.New(presenceSvc, logger),
			dashboardhandler.New(dashboardSvc, logger),
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &env{server: server, guard: guard, member: member, scholar: scholar}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestRouter(t *testing.T) {
	t.Run("healthz is open", func(t *testing.T) {
		e := newEnv(t)
		resp, _ := e.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("api requires a bearer token", func(t *testing.T) {
		e := newEnv(t)
		resp, _ := e.do(t, http.MethodGet, "/api/gate/log", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = e.do(t, http.MethodGet, "/api/gate/log", "bogus", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("staff routes reject members", func(t *testing.T) {
		e := newEnv(t)
		for _, path := range []string{"/api/gate/log", "/api/scholars", "/api/dashboard/stats"} {
			resp, _ := e.do(t, http.MethodGet, path, "member-token", nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
		}
	})

	t.Run("issue then verify roundtrip", func(t *testing.T) {
		e := newEnv(t)

		resp, body := e.do(t, http.MethodPost, "/api/credentials", "member-token", map[string]string{
			"kind":       "asset",
			"naturalKey": "SN-42",
			"ownerId":    e.member.ID.String(),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		var created struct {
			ID      string `json:"id"`
			Payload string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(body, &created))
		require.NotEmpty(t, created.Payload)

		var scan map[string]string
		require.NoError(t, json.Unmarshal([]byte(created.Payload), &scan))

		resp, body = e.do(t, http.MethodPost, "/api/gate/verify", "guard-token", scan)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var verified struct {
			Result string `json:"result"`
		}
		require.NoError(t, json.Unmarshal(body, &verified))
		assert.Equal(t, "VALID", verified.Result)

		// The scan landed in the log.
		resp, body = e.do(t, http.MethodGet, "/api/gate/log?type=ASSET_VERIFY", "guard-token", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var log struct {
			Total int `json:"total"`
		}
		require.NoError(t, json.Unmarshal(body, &log))
		assert.Equal(t, 1, log.Total)
	})

	t.Run("members cannot register for others", func(t *testing.T) {
		e := newEnv(t)

		resp, _ := e.do(t, http.MethodPost, "/api/credentials", "member-token", map[string]string{
			"kind":       "asset",
			"naturalKey": "SN-43",
			"ownerId":    e.guard.ID.String(),
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("plate entry falls back to visitor", func(t *testing.T) {
		e := newEnv(t)

		resp, body := e.do(t, http.MethodPost, "/api/gate/vehicle-entry", "guard-token", map[string]string{
			"plateNumber": "kzz999z",
			"location":    "main gate",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var result struct {
			Result string `json:"result"`
		}
		require.NoError(t, json.Unmarshal(body, &result))
		assert.Equal(t, "VISITOR", result.Result)
	})

	t.Run("scholar toggle and roster", func(t *testing.T) {
		e := newEnv(t)

		resp, body := e.do(t, http.MethodPost, "/api/scholars/"+e.scholar.ID.String()+"/toggle", "guard-token", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var toggled struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(body, &toggled))
		assert.Equal(t, "IN", toggled.Status)

		resp, body = e.do(t, http.MethodGet, "/api/scholars", "guard-token", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var roster []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(body, &roster))
		require.Len(t, roster, 1)
		assert.Equal(t, "Scholar", roster[0].Name)
		assert.Equal(t, "IN", roster[0].Status)
	})

	t.Run("dashboard stats reflect activity", func(t *testing.T) {
		e := newEnv(t)

		_, _ = e.do(t, http.MethodPost, "/api/scholars/"+e.scholar.ID.String()+"/toggle", "guard-token", nil)
		_, _ = e.do(t, http.MethodPost, "/api/gate/visitor-entry", "guard-token", map[string]string{"name": "Visitor"})

		resp, body := e.do(t, http.MethodGet, "/api/dashboard/stats", "guard-token", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var stats struct {
			EventsToday    int `json:"eventsToday"`
			ScholarsOnSite int `json:"scholarsOnSite"`
		}
		require.NoError(t, json.Unmarshal(body, &stats))
		assert.Equal(t, 2, stats.EventsToday)
		assert.Equal(t, 1, stats.ScholarsOnSite)
	})

	t.Run("invalid log filters are rejected", func(t *testing.T) {
		e := newEnv(t)

		resp, _ := e.do(t, http.MethodGet, "/api/gate/log?type=TELEPORT", "guard-token", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = e.do(t, http.MethodGet, "/api/gate/log?page=0", "guard-token", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
