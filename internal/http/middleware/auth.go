// README: Bearer-token auth middleware; puts the caller's Principal on the context.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"fooddash/internal/apperr"
	"fooddash/internal/auth"
	"fooddash/internal/http/respond"
	"fooddash/internal/infra"
)

const principalKey = "principal"

var (
	ErrMissingToken = apperr.New(apperr.KindAuth, "missing or malformed authorization header")
	ErrInvalidToken = apperr.New(apperr.KindAuth, "invalid or expired token")
	ErrAdminOnly    = apperr.New(apperr.KindForbidden, "admin role required")
)

// Auth rejects requests without a valid bearer token. The role comes from
// the token's "role" claim; anything other than admin is a customer.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			respond.Error(c, ErrMissingToken)
			return
		}
		p, err := Verify(c.Request.Context(), verifier, raw)
		if err != nil {
			_ = c.Error(err)
			respond.Error(c, ErrInvalidToken)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c).IsAdmin() {
			respond.Error(c, ErrAdminOnly)
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, or the zero Principal.
func PrincipalFrom(c *gin.Context) auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}
	}
	p, _ := v.(auth.Principal)
	return p
}

// Verify checks a raw token and maps it to a Principal.
func Verify(ctx context.Context, verifier infra.TokenVerifier, raw string) (auth.Principal, error) {
	tok, err := verifier.VerifyIDToken(ctx, raw)
	if err != nil {
		return auth.Principal{}, err
	}
	role, _ := tok.Claims["role"].(string)
	return auth.Principal{UID: tok.UID, Role: auth.ParseRole(role)}, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
