// README: Bearer token verification shared by the Firebase and HS256 JWT providers.
package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// VerifiedToken holds the verified token data used by downstream middleware.
type VerifiedToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw bearer token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error)
}

var ErrTokenSubject = errors.New("token has no subject")

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier verifies HS256 tokens signed with secret. The subject comes
// from "sub", falling back to "_id" for tokens issued by the legacy login flow.
func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) VerifyIDToken(_ context.Context, raw string) (*VerifiedToken, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		uid, _ = claims["_id"].(string)
	}
	if uid == "" {
		return nil, ErrTokenSubject
	}
	return &VerifiedToken{UID: uid, Claims: claims}, nil
}

// SignJWT issues an HS256 token for uid with the given role. Used by seed
// tooling and tests.
func SignJWT(secret, uid, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  uid,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
