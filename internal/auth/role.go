package auth

import (
	"fmt"
	"strings"

	"github.com/bookshare-dev/bookshare/internal/session"
)

// Role is what the signed-in identity may see. It is derived from the session on
// every decision and never stored.
type Role int

const (
	RoleNone Role = iota
	RoleUser
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// RoleResolver derives a Role from a session
type RoleResolver interface {
	Resolve(sess session.Session) Role
}

// DefaultAdminIdentities are the identities treated as administrators when nothing is configured
var DefaultAdminIdentities = []string{"admin@gmail.com", "superadmin@gmail.com"}

// AllowList grants RoleAdmin to a fixed set of identities.
// Matching is exact, the way the identities were entered at login.
type AllowList struct {
	identities map[string]struct{}
}

// NewAllowList creates an allow-list resolver
func NewAllowList(identities []string) *AllowList {
	set := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return &AllowList{identities: set}
}

// Resolve implements RoleResolver
func (a *AllowList) Resolve(sess session.Session) Role {
	if !sess.Authenticated() {
		return RoleNone
	}
	if _, ok := a.identities[sess.Identity()]; ok {
		return RoleAdmin
	}
	return RoleUser
}

// NewResolver builds the resolver selected by source ("allowlist" or "claims")
func NewResolver(source string, adminIdentities []string) (RoleResolver, error) {
	if len(adminIdentities) == 0 {
		adminIdentities = DefaultAdminIdentities
	}

	switch source {
	case "allowlist", "":
		return NewAllowList(adminIdentities), nil
	case "claims":
		return NewClaimsResolver(), nil
	default:
		return nil, fmt.Errorf("unknown role source '%s'", source)
	}
}
