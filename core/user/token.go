package user

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the authorization claims the remote API puts in its JWTs.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher    bool     `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool     `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Roles        []string `json:"roles,omitempty"`
}

// ParseToken decodes the claims of a token issued by the remote API.
// The signature is not checked: only the API holds the key, and it verifies
// the token on every call. The claims only drive what the portal shows.
func ParseToken(token string) (*Claims, error) {
	claims := new(Claims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims, nil
}

// Expired reports whether the token expires before now. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.VerifyExpiresAt(now.Unix(), false)
}

// Role is the claims' portal, most privileged first.
func (c *Claims) Role() string {
	switch {
	case c.IsAdmin:
		return RoleAdmin
	case c.IsTeacher:
		return RoleTeacher
	case c.IsStudent:
		return RoleStudent
	}
	best := ""
	for _, r := range c.Roles {
		if r = NormalizeRole(r); RolePriority(r) > RolePriority(best) {
			best = r
		}
	}
	return best
}
