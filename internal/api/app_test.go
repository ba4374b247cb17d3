package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/events"
	"github.com/toolgate/toolgate/internal/flow"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/store/sqlite"
	"github.com/toolgate/toolgate/pkg/types"
)

type testEmitter struct {
	store  *sqlite.Store
	broker *events.Broker
}

func (e testEmitter) AppendEvent(ctx context.Context, ev types.Event) error {
	if e.store == nil {
		return nil
	}
	return e.store.AppendEvent(ctx, ev)
}

func (e testEmitter) Publish(ev types.Event) {
	if e.broker != nil {
		e.broker.Publish(ev)
	}
}

type testApp struct {
	app      *App
	exchange *flow.ExchangePrompter
	broker   *events.Broker
	store    *sqlite.Store
}

func newTestApp(t *testing.T, cfg config.Config, pc policy.PermissionConfig) testApp {
	t.Helper()
	provider := policy.NewProvider(pc, nil)
	broker := events.NewBroker()
	exchange := flow.NewExchangePrompter(2 * time.Second)

	var st *sqlite.Store
	if cfg.Audit.Enabled {
		var err error
		st, err = sqlite.Open(filepath.Join(t.TempDir(), "audit.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
	}

	controller := flow.New(provider, nil, exchange, testEmitter{store: st, broker: broker}, nil)
	app := NewApp(AppConfig{
		Config:     cfg,
		Provider:   provider,
		Controller: controller,
		Exchange:   exchange,
		Broker:     broker,
		Store:      st,
		APIKeys:    cfg.Server.Auth.Keys,
	})
	return testApp{app: app, exchange: exchange, broker: broker, store: st}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func denyAllConfig() policy.PermissionConfig {
	return policy.PermissionConfig{
		GlobalDefault: types.DecisionDeny,
		Tools: map[string]policy.ToolRules{
			"terminal": {
				Allow:   []string{`^git status$`, `^ls(\s|$)`},
				Confirm: []string{`^git push`},
				Deny:    []string{`^rm\s`},
			},
		},
	}
}

func TestCheckEndpoint(t *testing.T) {
	ta := newTestApp(t, config.Default(), denyAllConfig())
	h := ta.app.Router()

	rec := postJSON(t, h, "/api/v1/check", checkRequest{ToolName: "terminal", Input: "git status"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[checkResponse](t, rec)
	require.Equal(t, types.DecisionAllow, resp.Decision)
	require.Equal(t, types.SourceToolRule, resp.Source)

	rec = postJSON(t, h, "/api/v1/check", checkRequest{ToolName: "terminal", Input: "rm -rf build"})
	resp = decodeBody[checkResponse](t, rec)
	require.Equal(t, types.DecisionDeny, resp.Decision)

	rec = postJSON(t, h, "/api/v1/check", checkRequest{ToolName: "unknown_tool", Input: "x"})
	resp = decodeBody[checkResponse](t, rec)
	require.Equal(t, types.DecisionDeny, resp.Decision)
	require.Equal(t, types.SourceGlobalDefault, resp.Source)

	rec = postJSON(t, h, "/api/v1/check", checkRequest{Input: "no tool"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizeDenyAndAllow(t *testing.T) {
	ta := newTestApp(t, config.Default(), denyAllConfig())
	h := ta.app.Router()

	rec := postJSON(t, h, "/api/v1/authorize", authorizeRequest{ToolName: "terminal", Input: "rm -rf build"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[authorizeResponse](t, rec)
	require.Equal(t, types.StatusRejected, resp.Status)
	require.NotEmpty(t, resp.CallID)

	rec = postJSON(t, h, "/api/v1/authorize", authorizeRequest{ToolName: "terminal", Input: "git status"})
	resp = decodeBody[authorizeResponse](t, rec)
	require.Equal(t, types.StatusAllowed, resp.Status)
}

func TestAuthorizeConfirmResolvedOverAPI(t *testing.T) {
	ta := newTestApp(t, config.Default(), denyAllConfig())
	h := ta.app.Router()

	// Resolve the exchange as soon as it appears in the pending list.
	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			pending := ta.exchange.ListPending()
			if len(pending) == 1 {
				var opt types.PermissionOption
				for _, o := range pending[0].Options {
					if o.Kind == types.OptionAllowOnce {
						opt = o
					}
				}
				body, _ := json.Marshal(resolveRequest{OptionID: opt.ID})
				req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/"+pending[0].Call.ID, bytes.NewReader(body))
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	rec := postJSON(t, h, "/api/v1/authorize", authorizeRequest{ToolName: "terminal", Input: "git push origin main"})
	resp := decodeBody[authorizeResponse](t, rec)
	require.Equal(t, types.StatusAllowed, resp.Status)
}

func TestResolveShorthandDecision(t *testing.T) {
	ta := newTestApp(t, config.Default(), denyAllConfig())
	h := ta.app.Router()

	done := make(chan authorizeResponse, 1)
	go func() {
		rec := postJSON(t, h, "/api/v1/authorize", authorizeRequest{ToolName: "terminal", Input: "git push origin main"})
		done <- decodeBody[authorizeResponse](t, rec)
	}()

	var callID string
	require.Eventually(t, func() bool {
		pending := ta.exchange.ListPending()
		if len(pending) != 1 {
			return false
		}
		callID = pending[0].Call.ID
		return true
	}, 3*time.Second, 5*time.Millisecond)

	rec := postJSON(t, h, "/api/v1/approvals/"+callID, resolveRequest{Decision: "deny"})
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case resp := <-done:
		require.Equal(t, types.StatusRejected, resp.Status)
	case <-time.After(3 * time.Second):
		t.Fatal("authorize did not finish")
	}
}

func TestResolveUnknownApproval(t *testing.T) {
	ta := newTestApp(t, config.Default(), denyAllConfig())
	rec := postJSON(t, ta.app.Router(), "/api/v1/approvals/"+uuid.NewString(), resolveRequest{Decision: "allow"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Auth = config.AuthConfig{Type: "api_key", HeaderName: "X-API-Key", Keys: []string{"secret-1"}}
	ta := newTestApp(t, cfg, denyAllConfig())
	h := ta.app.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-API-Key", "secret-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTOTPRequiredOnResolve(t *testing.T) {
	cfg := config.Default()
	cfg.Approvals.TOTP.Enabled = true
	ta := newTestApp(t, cfg, denyAllConfig())
	secret, err := flow.GenerateTOTPSecret()
	require.NoError(t, err)
	ta.app.totpSecret = secret

	rec := postJSON(t, ta.app.Router(), "/api/v1/approvals/some-id", resolveRequest{Decision: "allow", TOTPCode: "12345"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Enabled = true
	ta := newTestApp(t, cfg, denyAllConfig())
	h := ta.app.Router()

	// Authorizing a denied call writes decision and resolution events.
	postJSON(t, h, "/api/v1/authorize", authorizeRequest{ToolName: "terminal", Input: "rm -rf build", SessionID: "s1"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/search?session_id=s1&type=decision", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	evs := decodeBody[[]types.Event](t, rec)
	require.Len(t, evs, 1)
	require.Equal(t, types.DecisionDeny, evs[0].Decision.Kind)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/search?decision=bogus", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamEventsWebsocket(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Enabled = false
	ta := newTestApp(t, cfg, denyAllConfig())

	srv := httptest.NewServer(ta.app.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?session_id=s1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Subscription is registered during the upgrade handshake; give the
	// handler a beat before publishing.
	require.Eventually(t, func() bool {
		ta.broker.Publish(types.Event{ID: uuid.NewString(), Type: "decision", SessionID: "s1"})
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		var ev types.Event
		return conn.ReadJSON(&ev) == nil
	}, 3*time.Second, 50*time.Millisecond)
}
