// Package token implements the three token kinds of the account core:
// stateless signed access tokens, purpose-scoped single-flow tokens, and
// opaque server-side refresh tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ostromart/accounts/pkg/jwtx"
)

// DefaultAccessTTL is the access token lifetime used when none is
// configured. Short-lived by design: access tokens cannot be revoked before
// expiry, so the TTL is the entire compromise window.
const DefaultAccessTTL = 30 * time.Minute

// ErrNotAccessToken reports a structurally valid token that carries a
// purpose claim. Purpose tokens must never authenticate a request.
var ErrNotAccessToken = errors.New("token: not an access token")

// AccessIssuer builds and resolves short-lived bearer tokens identifying a
// user. Stateless: validity is entirely signature plus expiry.
type AccessIssuer struct {
	codec *jwtx.Codec
	ttl   time.Duration
}

func NewAccessIssuer(codec *jwtx.Codec, ttl time.Duration) *AccessIssuer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &AccessIssuer{codec: codec, ttl: ttl}
}

// TTL returns the configured access token lifetime.
func (a *AccessIssuer) TTL() time.Duration { return a.ttl }

// Issue signs an access token with sub = userID.
func (a *AccessIssuer) Issue(userID string) (string, error) {
	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
	return a.codec.Encode(claims, a.ttl)
}

// Resolve decodes an access token and returns its subject user id. Codec
// failures pass through (jwtx.ErrExpired and friends); a purpose token is
// rejected with ErrNotAccessToken even though its signature is valid.
func (a *AccessIssuer) Resolve(tokenString string) (string, error) {
	claims, err := a.codec.Decode(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != "" {
		return "", ErrNotAccessToken
	}
	return claims.Subject, nil
}
