// Package jwtx wraps golang-jwt with a single-secret HS256 codec. The
// signing algorithm is fixed process-wide; decode never honours a token that
// declares a different method, which closes off algorithm-confusion attacks.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ostromart/accounts/pkg/clockx"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
)

// Claims is the flat claim set carried by every signed token. Access tokens
// set only the registered claims; purpose tokens add "type", and password
// reset tokens additionally bind to the current password hash via "pwd".
type Claims struct {
	jwt.RegisteredClaims

	// TokenType scopes a token to a single flow ("verify_email",
	// "password_reset", "mfa_challenge"). Empty for access tokens.
	TokenType string `json:"type,omitempty"`

	// PasswordFP is a truncated fingerprint of the password hash that was
	// current when the token was issued. Used to make reset tokens
	// single-use: once the password changes the fingerprint stops matching.
	PasswordFP string `json:"pwd,omitempty"`
}

// Codec encodes and decodes signed, expiring claim sets with a shared
// secret. The zero value is not usable; construct with NewCodec.
type Codec struct {
	secret []byte
	clock  clockx.Clock
}

// NewCodec returns a Codec signing with the given secret. The clock is used
// for both the exp stamp at encode time and the expiry check at decode time.
func NewCodec(secret []byte, clock clockx.Clock) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: signing secret must not be empty")
	}
	if clock == nil {
		clock = clockx.System()
	}
	return &Codec{secret: secret, clock: clock}, nil
}

// Encode signs the claims with exp = now + ttl and iat = now. A negative ttl
// produces an already-expired token; callers only do that in tests.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	now := c.clock.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// Decode parses and validates a token string. Failures are normalized into
// the package's three reasons so callers can collapse them for the outside
// world while logs keep the distinction:
//
//   - ErrExpired: signature fine, exp in the past
//   - ErrInvalidSig: not signed with our secret, or a foreign algorithm
//   - ErrMalformed: everything else
func (c *Codec) Decode(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}
	return claims, nil
}
