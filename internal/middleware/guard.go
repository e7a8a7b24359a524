package middleware

import (
	"context"
	"net/http"

	"ride-console/internal/model"
	"ride-console/internal/session"
)

const (
	historyHeader  = "X-History"
	historyReplace = "replace"
)

type Outcome string

const (
	OutcomeServe    Outcome = "serve"
	OutcomeWait     Outcome = "wait"
	OutcomeRedirect Outcome = "redirect"
)

// Decision is what a guard does with one request. Location and Replace are
// only meaningful for redirects.
type Decision struct {
	Outcome  Outcome
	Location string
	Replace  bool
}

// DecideAuthenticated gates a route on an authenticated session and,
// optionally, on one of the required roles.
func DecideAuthenticated(snap model.SessionSnapshot, required ...string) Decision {
	switch {
	case snap.Loading:
		return Decision{Outcome: OutcomeWait}
	case !snap.Authenticated:
		return Decision{Outcome: OutcomeRedirect, Location: session.PathLogin}
	case !session.HasRole(snap.User, required...):
		return Decision{Outcome: OutcomeRedirect, Location: session.PathUnauthorized, Replace: true}
	default:
		return Decision{Outcome: OutcomeServe}
	}
}

// DecideGuest gates a route that only makes sense without a session, such
// as the login form. Authenticated users are sent to their landing page.
func DecideGuest(snap model.SessionSnapshot, landing func(role string) string) Decision {
	switch {
	case snap.Loading:
		return Decision{Outcome: OutcomeWait}
	case snap.Authenticated:
		return Decision{Outcome: OutcomeRedirect, Location: landing(snap.Role()), Replace: true}
	default:
		return Decision{Outcome: OutcomeServe}
	}
}

type SessionReader interface {
	Snapshot() model.SessionSnapshot
	LandingPage(role string) string
}

type contextKey string

const sessionContextKey contextKey = "session_snapshot"

// Guards renders guard decisions. Page guards answer with redirects and a
// waiting page; API guards answer with the JSON envelope.
type Guards struct {
	session SessionReader
}

func NewGuards(reader SessionReader) *Guards {
	return &Guards{session: reader}
}

func (g *Guards) AuthenticatedOnly(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.session.Snapshot()
			decision := DecideAuthenticated(snap, roles...)
			recordGuard("authenticated", decision)
			g.renderPage(w, r, snap, decision, next)
		})
	}
}

func (g *Guards) GuestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.session.Snapshot()
		decision := DecideGuest(snap, g.session.LandingPage)
		recordGuard("guest", decision)
		g.renderPage(w, r, snap, decision, next)
	})
}

func (g *Guards) APIAuthenticatedOnly(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.session.Snapshot()
			decision := DecideAuthenticated(snap, roles...)
			recordGuard("api_authenticated", decision)

			switch {
			case decision.Outcome == OutcomeServe:
				next.ServeHTTP(w, withSnapshot(r, snap))
			case decision.Outcome == OutcomeWait:
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "SESSION_LOADING", "session is still being restored", "")
			case decision.Location == session.PathLogin:
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", "")
			default:
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", "")
			}
		})
	}
}

func (g *Guards) APIGuestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.session.Snapshot()
		decision := DecideGuest(snap, g.session.LandingPage)
		recordGuard("api_guest", decision)

		switch decision.Outcome {
		case OutcomeServe:
			next.ServeHTTP(w, withSnapshot(r, snap))
		case OutcomeWait:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "SESSION_LOADING", "session is still being restored", "")
		default:
			w.Header().Set("Location", decision.Location)
			writeError(w, http.StatusConflict, "ALREADY_AUTHENTICATED", "already signed in", decision.Location)
		}
	})
}

func (g *Guards) renderPage(w http.ResponseWriter, r *http.Request, snap model.SessionSnapshot, decision Decision, next http.Handler) {
	switch decision.Outcome {
	case OutcomeServe:
		next.ServeHTTP(w, withSnapshot(r, snap))
	case OutcomeWait:
		w.Header().Set("Retry-After", "1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = jsonEncode(w, model.APIResponse{
			Success: true,
			Data:    model.Page{Name: "loading", Path: r.URL.Path},
		})
	default:
		if decision.Replace {
			w.Header().Set(historyHeader, historyReplace)
		}
		http.Redirect(w, r, decision.Location, http.StatusSeeOther)
	}
}

func withSnapshot(r *http.Request, snap model.SessionSnapshot) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, snap))
}

// SessionFromContext returns the snapshot the guard decided on, so a
// handler sees the same session the guard did.
func SessionFromContext(ctx context.Context) (model.SessionSnapshot, bool) {
	snap, ok := ctx.Value(sessionContextKey).(model.SessionSnapshot)
	return snap, ok
}
