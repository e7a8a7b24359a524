// Package session owns the operator's authenticated session: the bearer
// token, the user record and the derived authentication state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ride-console/internal/event"
	"ride-console/internal/model"
	"ride-console/internal/tokenstore"
)

// Backend is the part of the API client the session needs.
type Backend interface {
	CurrentUser(ctx context.Context) (model.User, error)
	Login(ctx context.Context, email string, password string) (model.AuthResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error)
	Logout(ctx context.Context) error
	SetBearerToken(token string)
	ClearBearerToken()
}

// Store is the single source of truth for who is logged in. All mutation
// happens through Restore, Login, Register, Logout and Revalidate.
//
// Every operation bumps a generation counter; a network result that lands
// after a newer operation started is dropped instead of applied.
type Store struct {
	backend Backend
	tokens  tokenstore.Store
	policy  Policy
	bus     event.Bus
	now     func() time.Time

	// persistMu serialises token store I/O so a stale settle cannot
	// overwrite a newer one. Taken before mu, never while holding it.
	persistMu sync.Mutex

	hooksMu sync.Mutex
	onEnd   []func()

	mu         sync.RWMutex
	state      model.SessionState
	token      string
	user       *model.User
	generation uint64
}

// New returns a store in the checking state; it settles once Restore runs.
func New(backend Backend, tokens tokenstore.Store, policy Policy, bus event.Bus) *Store {
	if bus == nil {
		bus = event.Discard{}
	}
	return &Store{
		backend: backend,
		tokens:  tokens,
		policy:  policy,
		bus:     bus,
		now:     time.Now,
		state:   model.SessionChecking,
	}
}

// OnEnd registers fn to run whenever an authenticated session ends: on
// logout, when the backend rejects the token, or when a new sign-in starts.
// fn runs synchronously before the change is published.
func (s *Store) OnEnd(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

func (s *Store) ended() {
	s.hooksMu.Lock()
	hooks := append([]func(){}, s.onEnd...)
	s.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (s *Store) Snapshot() model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		State:         s.state,
		HasToken:      s.token != "",
		Loading:       s.state == model.SessionChecking,
		Authenticated: s.state == model.SessionAuthenticated && s.user != nil && s.token != "",
	}
	if s.user != nil {
		user := *s.user
		snap.User = &user
	}
	return snap
}

func (s *Store) HasRole(required ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return HasRole(s.user, required...)
}

func (s *Store) LandingPage(role string) string {
	return s.policy.LandingPage(role)
}

func (s *Store) Policy() Policy {
	return s.policy
}

// Restore reads the persisted token and validates it against the backend.
// Any failure leaves the session anonymous; it never navigates.
func (s *Store) Restore(ctx context.Context) error {
	gen := s.begin()

	token, err := s.tokens.Load(ctx)
	if err != nil {
		slog.Warn("failed to load persisted token", "error", err)
		s.invalidate(ctx, gen)
		return fmt.Errorf("load token: %w", err)
	}

	if token == "" {
		s.settleAnonymous(gen)
		return nil
	}

	if tokenExpired(token, s.now()) {
		slog.Info("persisted token expired; clearing session")
		s.invalidate(ctx, gen)
		return model.ErrTokenExpired
	}

	if !s.attach(gen, token) {
		return model.ErrSessionChanged
	}

	user, err := s.backend.CurrentUser(ctx)
	if err != nil {
		slog.Info("session check failed; clearing session", "error", err)
		s.invalidate(ctx, gen)
		return err
	}

	if !s.settleAuthenticated(ctx, gen, token, user, false) {
		return model.ErrSessionChanged
	}

	slog.Info("session restored", "user_id", user.ID, "role", user.Role)
	return nil
}

// Login authenticates, persists the token and returns the landing page for
// the user's role. Errors are returned unchanged so forms can show field
// messages; the session is anonymous afterwards.
func (s *Store) Login(ctx context.Context, email string, password string) (string, error) {
	gen := s.begin()

	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.invalidate(ctx, gen)
		return "", err
	}

	return s.complete(ctx, gen, resp.Token, nil)
}

// Register creates an account and signs it in. The user record returned
// inline is used when present; otherwise it is fetched.
func (s *Store) Register(ctx context.Context, req model.RegisterRequest) (string, error) {
	gen := s.begin()

	resp, err := s.backend.Register(ctx, req)
	if err != nil {
		s.invalidate(ctx, gen)
		return "", err
	}

	return s.complete(ctx, gen, resp.Token, resp.User)
}

func (s *Store) complete(ctx context.Context, gen uint64, token string, user *model.User) (string, error) {
	if !s.attach(gen, token) {
		return "", model.ErrSessionChanged
	}

	var current model.User
	if user != nil {
		current = *user
	} else {
		fetched, err := s.backend.CurrentUser(ctx)
		if err != nil {
			s.invalidate(ctx, gen)
			return "", err
		}
		current = fetched
	}

	if !s.settleAuthenticated(ctx, gen, token, current, true) {
		return "", model.ErrSessionChanged
	}

	slog.Info("signed in", "user_id", current.ID, "role", current.Role)
	return s.policy.LandingPage(current.Role), nil
}

// Logout tells the backend when a token is held, then clears everything
// regardless of the outcome. It returns the page to navigate to.
func (s *Store) Logout(ctx context.Context) string {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	hadToken := s.token != ""
	s.mu.Unlock()

	if hadToken {
		if err := s.backend.Logout(ctx); err != nil {
			slog.Warn("backend logout failed; clearing local session anyway", "error", err)
		}
	}

	s.invalidate(ctx, gen)
	return PathLogin
}

// Revalidate re-checks an authenticated session. A rejected token clears
// the session; transport failures keep it.
func (s *Store) Revalidate(ctx context.Context) error {
	s.mu.RLock()
	gen := s.generation
	token := s.token
	authenticated := s.state == model.SessionAuthenticated
	s.mu.RUnlock()

	if !authenticated {
		return nil
	}

	if tokenExpired(token, s.now()) {
		s.invalidate(ctx, gen)
		return model.ErrTokenExpired
	}

	user, err := s.backend.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			slog.Info("session rejected by backend; clearing session")
			s.invalidate(ctx, gen)
		} else {
			slog.Warn("session revalidation failed", "error", err)
		}
		return err
	}

	s.mu.Lock()
	if s.generation != gen || s.state != model.SessionAuthenticated {
		s.mu.Unlock()
		return nil
	}
	changed := s.user == nil || *s.user != user
	s.user = &user
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.publish(snap)
	}
	return nil
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	wasAuthenticated := s.state == model.SessionAuthenticated
	s.state = model.SessionChecking
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		s.ended()
	}
	s.publish(snap)
	return gen
}

func (s *Store) current(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation == gen
}

func (s *Store) attach(gen uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return false
	}
	s.backend.SetBearerToken(token)
	return true
}

func (s *Store) settleAnonymous(gen uint64) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.state = model.SessionAnonymous
	s.token = ""
	s.user = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Store) settleAuthenticated(ctx context.Context, gen uint64, token string, user model.User, persist bool) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if !s.current(gen) {
		return false
	}

	if persist {
		if err := s.tokens.Save(ctx, token); err != nil {
			slog.Error("failed to persist token", "error", err)
		}
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.state = model.SessionAuthenticated
	s.token = token
	s.user = &user
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// invalidate drops the token everywhere. It is a no-op when a newer
// operation owns the session.
func (s *Store) invalidate(ctx context.Context, gen uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if !s.current(gen) {
		return
	}

	if err := s.tokens.Clear(ctx); err != nil {
		slog.Error("failed to clear persisted token", "error", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.backend.ClearBearerToken()
	wasAuthenticated := s.state == model.SessionAuthenticated
	s.state = model.SessionAnonymous
	s.token = ""
	s.user = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		s.ended()
	}
	s.publish(snap)
}

func (s *Store) publish(snap model.SessionSnapshot) {
	s.bus.Publish(event.New(event.TypeSessionChanged, snap))
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return !exp.After(now)
}
