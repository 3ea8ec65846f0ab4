package store

import (
	"context"
	"errors"
	"time"

	"github.com/ostromart/accounts/internal/account/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface consumed by the account core.
// Concrete drivers (sqlite today, postgres later) implement it. Aggregates
// are exposed as sub-repositories to keep concerns tidy and testable.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rollback if fn errors,
	// commit otherwise. Use it for multi-step operations that must be
	// atomic, such as refresh rotation.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It exposes the same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and registration uniqueness checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkUserVerified flips is_verified for a user that is not yet
	// verified. Returns ErrNotFound when no unverified row matched, which
	// is how a second redemption of a verification token is detected.
	MarkUserVerified(ctx context.Context, userID string) error

	// UpdateMFASecret stores the TOTP secret without enabling MFA.
	UpdateMFASecret(ctx context.Context, userID string, secret string) error

	// EnableMFA marks MFA as active for the user.
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears both the enabled flag and the stored secret.
	DisableMFA(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1. Idempotent: revoking an unknown
	// or already-revoked token is a no-op, never an error.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeActiveRefreshToken flips revoked=1 only if the row is still
	// live, returning ErrNotFound otherwise. This is the conditional
	// update that serializes concurrent rotations of the same token across
	// replicated service instances.
	RevokeActiveRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens is bulk revocation for a user (password
	// change/reset, replay escalation).
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens removes rows whose expiry is before the
	// given instant. Housekeeping only; logical revocation alone is
	// sufficient for correctness.
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) error
}
