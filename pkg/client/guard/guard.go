// Package guard gates protected pages on the restored session state.
package guard

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/ulaundry/laundry-api/pkg/client/session"
)

// DefaultSignInPath is where unauthenticated visitors are sent.
const DefaultSignInPath = "/auth/sign-in"

type State int

const (
	Hydrating State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Hydrating:
		return "hydrating"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

type Outcome int

const (
	Placeholder Outcome = iota
	Redirect
	Render
)

// Decision is what a protected location should show. To and From are set for Redirect.
type Decision struct {
	Outcome Outcome
	To      string
	From    string
}

// Restorer restores the signed-in user from an existing session.
type Restorer interface {
	Me(ctx context.Context) (*session.User, error)
}

type Guard struct {
	restorer   Restorer
	signInPath string

	mu    sync.RWMutex
	state State
	user  *session.User
}

// New starts in Hydrating. An empty signInPath uses DefaultSignInPath.
func New(restorer Restorer, signInPath string) *Guard {
	if signInPath == "" {
		signInPath = DefaultSignInPath
	}
	return &Guard{restorer: restorer, signInPath: signInPath}
}

// Follow moves the guard to Unauthenticated whenever client tears its session down.
func (g *Guard) Follow(client *session.Client) {
	client.OnLogout(g.SignedOut)
}

// Hydrate asks the server who is signed in. Any failure counts as signed out.
func (g *Guard) Hydrate(ctx context.Context) State {
	user, err := g.restorer.Me(ctx)
	if err != nil {
		log.Printf("[Guard] session restore failed: %v", err)
		g.SignedOut()
		return Unauthenticated
	}
	g.SignedIn(user)
	return Authenticated
}

func (g *Guard) SignedIn(user *session.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Authenticated
	g.user = user
}

func (g *Guard) SignedOut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Unauthenticated
	g.user = nil
}

func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// User is nil unless Authenticated.
func (g *Guard) User() *session.User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.user
}

func (g *Guard) Decide(location string) Decision {
	switch g.State() {
	case Authenticated:
		return Decision{Outcome: Render}
	case Unauthenticated:
		return Decision{Outcome: Redirect, To: g.signInPath, From: location}
	default:
		return Decision{Outcome: Placeholder}
	}
}

const placeholderPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Laundry</title></head>
<body><p>Restoring your session…</p></body></html>
`

// Middleware serves the placeholder while hydrating and redirects signed-out visitors.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r.URL.RequestURI())
		switch decision.Outcome {
		case Render:
			next.ServeHTTP(w, r)
		case Redirect:
			target := decision.To + "?" + url.Values{"from": {decision.From}}.Encode()
			http.Redirect(w, r, target, http.StatusSeeOther)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(placeholderPage))
		}
	})
}
