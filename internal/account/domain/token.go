package domain

import "time"

// TokenPair is what a successful login or refresh hands back: the
// short-lived signed access token plus the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
}

// RefreshToken models the stored refresh token record. The opaque value
// itself never lands in the database; only its SHA-256 fingerprint does.
// Rotation inserts a new record, revocation flips Revoked; nothing else is
// ever mutated.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 fingerprint of the opaque value
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
