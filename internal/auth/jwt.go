package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookshare-dev/bookshare/internal/session"
)

// TokenClaims are the role-bearing claims a server may put in its bearer token
type TokenClaims struct {
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// ClaimsResolver reads the role the server asserted in the token.
// The signature is not verified: the client cannot, and the server enforces access anyway.
// Tokens that are not JWTs, or carry no role claim, resolve to RoleUser.
type ClaimsResolver struct {
	parser *jwt.Parser
}

// NewClaimsResolver creates a claims-based resolver
func NewClaimsResolver() *ClaimsResolver {
	return &ClaimsResolver{parser: jwt.NewParser()}
}

// Resolve implements RoleResolver
func (c *ClaimsResolver) Resolve(sess session.Session) Role {
	if !sess.Authenticated() {
		return RoleNone
	}

	claims, err := c.Claims(sess.Token())
	if err != nil {
		return RoleUser
	}

	if claims.IsAdmin || strings.EqualFold(claims.Role, "admin") {
		return RoleAdmin
	}
	return RoleUser
}

// Claims decodes the token's claims without verifying its signature
func (c *ClaimsResolver) Claims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := c.parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
