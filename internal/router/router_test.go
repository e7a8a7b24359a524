package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-console/internal/backend"
	"ride-console/internal/config"
	"ride-console/internal/confirm"
	"ride-console/internal/event"
	"ride-console/internal/handler"
	"ride-console/internal/middleware"
	"ride-console/internal/model"
	"ride-console/internal/moderation"
	"ride-console/internal/session"
	"ride-console/internal/tokenstore"
)

type recordingBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (b *recordingBus) Publish(e event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) Subscribe() (<-chan event.Event, func()) {
	return make(chan event.Event), func() {}
}

func (b *recordingBus) ofType(t event.Type) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Event, 0)
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeAPI struct {
	mu           sync.Mutex
	statusBodies []map[string]any
	statusPaths  []string
	failStatus   bool
	revoked      map[string]bool
}

func (f *fakeAPI) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = make(map[string]bool)
	}
	f.revoked[token] = true
}

func (f *fakeAPI) isRevoked(header string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[strings.TrimPrefix(header, "Bearer ")]
}

func (f *fakeAPI) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statusBodies)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["email"] {
		case "rider@example.com":
			_, _ = w.Write([]byte(`{"token":"tok-user"}`))
		case "admin@example.com":
			_, _ = w.Write([]byte(`{"token":"tok-admin"}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"The given data was invalid.","errors":{"email":["These credentials do not match our records."]}}`))
		}
	case r.Method == http.MethodGet && r.URL.Path == "/user":
		if f.isRevoked(r.Header.Get("Authorization")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer tok-user":
			_, _ = w.Write([]byte(`{"id":7,"name":"Rider","email":"rider@example.com","role":"user","status":"active"}`))
		case "Bearer tok-admin":
			_, _ = w.Write([]byte(`{"id":1,"name":"Admin","email":"admin@example.com","role":"admin","status":"active"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	case r.Method == http.MethodPost && r.URL.Path == "/logout":
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/status"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.statusBodies = append(f.statusBodies, body)
		f.statusPaths = append(f.statusPaths, r.URL.Path)
		fail := f.failStatus
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"This action is unauthorized."}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type console struct {
	t       *testing.T
	api     *fakeAPI
	bus     *recordingBus
	session *session.Store
	engine  *confirm.Engine
	handler http.Handler
}

func newConsole(t *testing.T) *console {
	t.Helper()

	api := &fakeAPI{}
	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	backendCfg := backend.DefaultConfig(upstream.URL)
	backendCfg.Breaker.Name = t.Name()
	client := backend.New(backendCfg)

	tokens, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "session.json"), "")
	require.NoError(t, err)

	bus := &recordingBus{}
	policy := session.NewPolicy([]string{"admin", "super_admin"})
	store := session.New(client, tokens, policy, bus)
	engine := confirm.NewEngine(context.Background(), bus)
	store.OnEnd(func() { engine.Reset(confirm.ReasonSessionEnded) })
	dispatcher := moderation.NewDispatcher(client, engine, moderation.NewBusNotifier(bus), nil, store)

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		AuthRateLimitRPM: 1000,
		CORSOrigins:      []string{"*"},
	}

	h := New(cfg, middleware.NewGuards(store), policy.AdminRoles(), Handlers{
		Session:       handler.NewSessionHandler(store),
		Pages:         handler.NewPageHandler(),
		Confirmations: handler.NewConfirmationHandler(engine),
		Moderation:    handler.NewModerationHandler(dispatcher, bus),
		ModerationLog: handler.NewModerationLogHandler(nil),
		Health:        handler.NewHealthHandler(nil),
	})

	return &console{t: t, api: api, bus: bus, session: store, engine: engine, handler: h}
}

func (c *console) do(method string, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *console) restore() {
	c.t.Helper()
	require.NoError(c.t, c.session.Restore(context.Background()))
}

func (c *console) login(email string) handler.SessionResult {
	c.t.Helper()

	rec := c.do(http.MethodPost, "/api/session/login", map[string]string{"email": email, "password": "secret"})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data handler.SessionResult `json:"data"`
	}
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func TestGuardsWaitWhileSessionIsRestoring(t *testing.T) {
	c := newConsole(t)

	rec := c.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = c.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAnonymousDashboardRedirectsToLogin(t *testing.T) {
	c := newConsole(t)
	c.restore()

	rec := c.do(http.MethodGet, "/dashboard", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, rec.Header().Get("X-History"))
}

func TestUserLoginLandsOnSearchRides(t *testing.T) {
	c := newConsole(t)
	c.restore()

	result := c.login("rider@example.com")

	assert.Equal(t, "/search-rides", result.Next)
	assert.True(t, result.Session.Authenticated)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/search-rides", nil).Code)

	rec := c.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))
	assert.Equal(t, "replace", rec.Header().Get("X-History"))
}

func TestInvalidLoginKeepsFieldErrors(t *testing.T) {
	c := newConsole(t)
	c.restore()

	rec := c.do(http.MethodPost, "/api/session/login", map[string]string{"email": "nobody@example.com", "password": "x"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "These credentials do not match our records.")
	assert.False(t, c.session.Snapshot().Authenticated)
}

func TestAdminBansUser42(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")

	rec := c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]string{"action": "ban"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decodeData[confirm.Request](t, rec)
	assert.Equal(t, "Ban user", req.Title)

	pending := decodeData[handler.ConfirmationState](t, c.do(http.MethodGet, "/api/confirmation", nil))
	assert.Equal(t, confirm.StateOpen, pending.State)
	require.NotNil(t, pending.Request)
	assert.Equal(t, req.ID, pending.Request.ID)

	rec = c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	c.engine.Wait()

	require.Len(t, c.api.statusBodies, 1)
	assert.Equal(t, "/admin/users/42/status", c.api.statusPaths[0])
	assert.Equal(t, "banned", c.api.statusBodies[0]["status"])

	refreshes := c.bus.ofType(event.TypeRefreshRequested)
	require.Len(t, refreshes, 1)
	hint, ok := refreshes[0].Payload.(model.RefreshHint)
	require.True(t, ok)
	assert.Equal(t, "/admin/users", hint.Path)
	assert.False(t, hint.Navigate)
}

func TestFailedBanNotifiesWithoutRefresh(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")
	c.api.failStatus = true

	req := decodeData[confirm.Request](t, c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]string{"action": "ban"}))
	require.Equal(t, http.StatusAccepted, c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", nil).Code)
	c.engine.Wait()

	assert.Empty(t, c.bus.ofType(event.TypeRefreshRequested))
	failures := c.bus.ofType(event.TypeNotificationError)
	require.Len(t, failures, 1)
	assert.Equal(t, "Failed to ban user", failures[0].Payload.(moderation.Notification).Message)
}

func TestAuthenticatedAdminVisitingLoginGoesToDashboard(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")

	rec := c.do(http.MethodGet, "/login", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, "replace", rec.Header().Get("X-History"))
	assert.NotContains(t, rec.Body.String(), `"page":"login"`)

	rec = c.do(http.MethodPost, "/api/session/login", map[string]string{"email": "admin@example.com", "password": "secret"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestModerationAPIRequiresAdmin(t *testing.T) {
	c := newConsole(t)
	c.restore()

	rec := c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]string{"action": "ban"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.login("rider@example.com")
	rec = c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]string{"action": "ban"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSuspendRequiresMenuDuration(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")

	rec := c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]any{"action": "suspend", "duration": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]any{"action": "suspend", "duration": 7})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decodeData[confirm.Request](t, rec)

	rec = c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", map[string]any{"value": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", map[string]any{"value": 30})
	require.Equal(t, http.StatusAccepted, rec.Code)
	c.engine.Wait()

	require.Len(t, c.api.statusBodies, 1)
	assert.Equal(t, float64(30), c.api.statusBodies[0]["suspend_duration"])
}

func TestCancelledConfirmationNeverReachesBackend(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")

	req := decodeData[confirm.Request](t, c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]string{"action": "activate"}))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/cancel", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", nil).Code)
	c.engine.Wait()

	assert.Empty(t, c.api.statusBodies)
}

func TestLogoutReturnsToLogin(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("rider@example.com")

	rec := c.do(http.MethodPost, "/api/session/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeData[handler.SessionResult](t, rec)
	assert.Equal(t, "/login", result.Next)
	assert.False(t, result.Session.Authenticated)

	rec = c.do(http.MethodGet, "/search-rides", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestReportPageAndModerationLogWithoutDatabase(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")

	rec := c.do(http.MethodGet, "/admin/reports/11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"report_id":11`)
	assert.Contains(t, rec.Body.String(), `"Forever"`)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/admin/moderation-log", nil).Code)
}

func (c *console) openBan() confirm.Request {
	c.t.Helper()

	rec := c.do(http.MethodPost, "/api/admin/users/42/actions", map[string]string{"action": "ban"})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[confirm.Request](c.t, rec)
}

func (c *console) assertDiscarded(id string) {
	c.t.Helper()

	cancelled := c.bus.ofType(event.TypeConfirmationCancelled)
	require.NotEmpty(c.t, cancelled)
	last := cancelled[len(cancelled)-1].Payload.(confirm.Resolution)
	assert.Equal(c.t, id, last.ID)
	assert.Equal(c.t, confirm.ReasonSessionEnded, last.Reason)
}

func TestLogoutDiscardsOpenConfirmation(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")
	req := c.openBan()
	assert.Equal(t, int64(1), req.OwnerID)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/session/logout", nil).Code)
	c.assertDiscarded(req.ID)

	c.login("rider@example.com")

	state := decodeData[handler.ConfirmationState](t, c.do(http.MethodGet, "/api/confirmation", nil))
	assert.Equal(t, confirm.StateIdle, state.State)
	assert.Nil(t, state.Request)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/cancel", nil).Code)

	c.engine.Wait()
	assert.Zero(t, c.api.statusCalls())
}

func TestSigningInAgainDiscardsOpenConfirmation(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")
	req := c.openBan()

	_, err := c.session.Login(context.Background(), "rider@example.com", "secret")
	require.NoError(t, err)
	c.assertDiscarded(req.ID)

	state := decodeData[handler.ConfirmationState](t, c.do(http.MethodGet, "/api/confirmation", nil))
	assert.Equal(t, confirm.StateIdle, state.State)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/confirmation/"+req.ID+"/confirm", nil).Code)

	c.engine.Wait()
	assert.Zero(t, c.api.statusCalls())
}

func TestRejectedTokenDiscardsOpenConfirmation(t *testing.T) {
	c := newConsole(t)
	c.restore()
	c.login("admin@example.com")
	req := c.openBan()

	c.api.revoke("tok-admin")
	assert.ErrorIs(t, c.session.Revalidate(context.Background()), model.ErrUnauthorized)
	assert.False(t, c.session.Snapshot().Authenticated)
	c.assertDiscarded(req.ID)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/confirmation", nil).Code)
	_, open := c.engine.Pending()
	assert.False(t, open)
}
