package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/jwtx"
)

// Purpose scopes a token to exactly one flow. Resolution compares the claim
// by equality, so a token minted for one flow is dead weight in every other.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposePasswordReset Purpose = "password_reset"
	PurposeMFAChallenge  Purpose = "mfa_challenge"
)

// Default purpose-token lifetimes; overridable through config.
const (
	DefaultVerifyEmailTTL   = 1 * time.Hour
	DefaultPasswordResetTTL = 2 * time.Hour
	DefaultMFAChallengeTTL  = 5 * time.Minute
)

var (
	// ErrWrongPurpose reports a valid, unexpired token presented to the
	// wrong redemption path. Distinct from codec failures so the caller
	// can say "wrong link type" instead of "expired, request a new one".
	ErrWrongPurpose = errors.New("token: wrong purpose")

	// ErrStaleBinding reports a reset token whose password fingerprint no
	// longer matches; the password changed after the token was issued.
	ErrStaleBinding = errors.New("token: stale password binding")
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeVerifyEmail, PurposePasswordReset, PurposeMFAChallenge:
		return true
	}
	return false
}

// PasswordFingerprint derives the short claim value binding a reset token to
// the password hash that was current at issue time. Not secret material:
// it is a truncated digest of a hash that is itself one-way.
func PasswordFingerprint(passwordHash string) string {
	return cryptox.FingerprintToken(passwordHash)[:16]
}

// PurposeIssuer builds single-purpose, short-lived signed tokens.
type PurposeIssuer struct {
	codec *jwtx.Codec
}

func NewPurposeIssuer(codec *jwtx.Codec) *PurposeIssuer {
	return &PurposeIssuer{codec: codec}
}

// Issue signs a token with sub = userID and type = purpose.
func (p *PurposeIssuer) Issue(userID string, purpose Purpose, ttl time.Duration) (string, error) {
	return p.issue(userID, purpose, ttl, "")
}

// IssueBound additionally embeds a password fingerprint, making the token
// single-use at redemption: once the password rotates, the binding is stale.
func (p *PurposeIssuer) IssueBound(
	userID string,
	purpose Purpose,
	ttl time.Duration,
	passwordFP string,
) (string, error) {
	return p.issue(userID, purpose, ttl, passwordFP)
}

func (p *PurposeIssuer) issue(
	userID string,
	purpose Purpose,
	ttl time.Duration,
	passwordFP string,
) (string, error) {
	if !purpose.Valid() {
		return "", errors.New("token: unknown purpose")
	}
	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		TokenType:        string(purpose),
		PasswordFP:       passwordFP,
	}
	return p.codec.Encode(claims, ttl)
}

// Resolve decodes the token, then compares its purpose claim against
// expected. Decode failures pass through untouched; a mismatched purpose is
// reported distinctly as ErrWrongPurpose.
func (p *PurposeIssuer) Resolve(tokenString string, expected Purpose) (jwtx.Claims, error) {
	claims, err := p.codec.Decode(tokenString)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if claims.TokenType != string(expected) {
		return jwtx.Claims{}, ErrWrongPurpose
	}
	return claims, nil
}
