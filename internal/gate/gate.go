// Package gate decides, per navigation, which view the current session may see.
//
// The gate keeps no state of its own. Every decision reads the session store and
// re-derives the role, so a login, logout or server-side rejection shows up on the
// very next navigation.
package gate

import (
	"path"
	"strings"

	"github.com/bookshare-dev/bookshare/internal/auth"
	"github.com/bookshare-dev/bookshare/internal/session"
)

// Well-known paths
const (
	PathRoot     = "/"
	PathAdmin    = "/admin-dashboard"
	PathLogin    = "/login"
	PathRegister = "/register"
)

// State is the authorization state of the client
type State int

const (
	Unauthenticated State = iota
	AuthenticatedUser
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case AuthenticatedUser:
		return "authenticated-user"
	case AuthenticatedAdmin:
		return "authenticated-admin"
	default:
		return "unauthenticated"
	}
}

// View is what a navigation renders
type View int

const (
	ViewNotFound View = iota
	ViewLogin
	ViewRegister
	ViewDashboard
	ViewAdmin
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewRegister:
		return "register"
	case ViewDashboard:
		return "dashboard"
	case ViewAdmin:
		return "admin"
	default:
		return "not-found"
	}
}

// Decision is the outcome of one navigation.
// When Redirect is set the caller navigates there instead of rendering View.
type Decision struct {
	Path     string
	View     View
	Redirect string
	State    State
	Session  session.Session
}

// Redirected reports whether the navigation must go elsewhere
func (d Decision) Redirected() bool {
	return d.Redirect != ""
}

// SessionReader is the part of the session store the gate reads
type SessionReader interface {
	Get() session.Session
}

// Gate is the route authorization gate
type Gate struct {
	store SessionReader
	roles auth.RoleResolver
}

// New creates a gate over store
func New(store SessionReader, roles auth.RoleResolver) *Gate {
	return &Gate{store: store, roles: roles}
}

// StateOf derives the authorization state of sess
func StateOf(sess session.Session, roles auth.RoleResolver) State {
	if !sess.Authenticated() {
		return Unauthenticated
	}
	switch roles.Resolve(sess) {
	case auth.RoleAdmin:
		return AuthenticatedAdmin
	case auth.RoleUser:
		return AuthenticatedUser
	default:
		return Unauthenticated
	}
}

// State returns the current authorization state
func (g *Gate) State() State {
	return StateOf(g.store.Get(), g.roles)
}

// Resolve decides what navigating to target shows
func (g *Gate) Resolve(target string) Decision {
	sess := g.store.Get()
	state := StateOf(sess, g.roles)
	p := Normalize(target)

	d := Decision{Path: p, State: state, Session: sess}

	switch p {
	case PathLogin:
		d.View = ViewLogin
	case PathRegister:
		d.View = ViewRegister
	case PathRoot, PathAdmin:
		d.View = protectedView(p, state)
		if state == Unauthenticated {
			d.Redirect = PathLogin
		}
	default:
		d.View = ViewNotFound
	}

	return d
}

func protectedView(p string, state State) View {
	switch state {
	case AuthenticatedAdmin:
		return ViewAdmin
	case AuthenticatedUser:
		if p == PathRoot {
			return ViewDashboard
		}
		// The admin route does not exist for ordinary users
		return ViewNotFound
	default:
		return ViewLogin
	}
}

// LoginDestination is where a successful login navigates to
func (g *Gate) LoginDestination(sess session.Session) string {
	if StateOf(sess, g.roles) == AuthenticatedAdmin {
		return PathAdmin
	}
	return PathRoot
}

// Normalize strips the query and fragment, cleans the path and drops any trailing slash
func Normalize(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return PathRoot
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return path.Clean(target)
}
