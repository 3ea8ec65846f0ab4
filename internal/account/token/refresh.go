package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/pkg/clockx"
	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/idx"
	"github.com/ostromart/accounts/pkg/slogx"
)

// DefaultRefreshTTL is the refresh token lifetime used when none is
// configured.
const DefaultRefreshTTL = 7 * 24 * time.Hour

var (
	ErrNotFound = errors.New("token: refresh token not found")
	ErrRevoked  = errors.New("token: refresh token revoked")
	ErrExpired  = errors.New("token: refresh token expired")
)

// RefreshStore manages opaque, unguessable session tokens with server-side
// revocation and expiry. Only SHA-256 fingerprints of the opaque values are
// persisted; the raw value exists once, in the response to the client.
//
// Presenting a revoked token is treated as evidence of token theft: every
// session of that user is revoked before the error is returned.
type RefreshStore struct {
	store store.Store
	clock clockx.Clock
	ttl   time.Duration
}

func NewRefreshStore(st store.Store, clock clockx.Clock, ttl time.Duration) *RefreshStore {
	if clock == nil {
		clock = clockx.System()
	}
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RefreshStore{store: st, clock: clock, ttl: ttl}
}

// TTL returns the configured refresh token lifetime.
func (s *RefreshStore) TTL() time.Duration { return s.ttl }

// Issue mints a fresh opaque token for the user and persists its record.
// Returns the raw opaque value alongside the stored record.
func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, domain.RefreshToken, error) {
	opaque, rec, err := s.mint(userID)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}
	if err := s.store.RefreshTokens().CreateRefreshToken(ctx, rec); err != nil {
		return "", domain.RefreshToken{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return opaque, rec, nil
}

// Resolve validates an opaque token and returns the owning user id.
// Failure order matters: revocation is checked before expiry so a
// revoked-but-unexpired token reports ErrRevoked for security auditing.
func (s *RefreshStore) Resolve(ctx context.Context, opaque string) (string, error) {
	rec, err := s.lookup(ctx, opaque)
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

// Rotate resolves the presented token, then atomically revokes it and
// persists a replacement for the same user. The revoke step is conditional
// on the row still being live; losing that race to a concurrent rotation
// surfaces as ErrRevoked and the transaction rolls back, so two racing
// refreshes can never both walk away with a new session.
func (s *RefreshStore) Rotate(ctx context.Context, opaque string) (string, domain.RefreshToken, error) {
	old, err := s.lookup(ctx, opaque)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	newOpaque, newRec, err := s.mint(old.UserID)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeActiveRefreshToken(ctx, old.TokenHash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRevoked
			}
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRec)
	})
	if err != nil {
		return "", domain.RefreshToken{}, err
	}

	return newOpaque, newRec, nil
}

// Revoke invalidates the presented token. Idempotent: revoking an unknown or
// already-revoked token is a no-op, never an error.
func (s *RefreshStore) Revoke(ctx context.Context, opaque string) error {
	fp := cryptox.FingerprintToken(opaque)
	return s.store.RefreshTokens().RevokeRefreshToken(ctx, fp)
}

// RevokeAllForUser invalidates every session of a user. Used after password
// changes and replay escalation.
func (s *RefreshStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}

func (s *RefreshStore) mint(userID string) (string, domain.RefreshToken, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}
	now := s.clock.Now()
	rec := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: now.Add(s.ttl),
		Revoked:   false,
	}
	return opaque, rec, nil
}

func (s *RefreshStore) lookup(ctx context.Context, opaque string) (domain.RefreshToken, error) {
	fp := cryptox.FingerprintToken(opaque)

	rec, err := s.store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshToken{}, ErrNotFound
		}
		return domain.RefreshToken{}, err
	}

	if rec.Revoked {
		s.escalateReplay(ctx, rec)
		return domain.RefreshToken{}, ErrRevoked
	}
	if s.clock.Now().After(rec.ExpiresAt) {
		return domain.RefreshToken{}, ErrExpired
	}
	return rec, nil
}

// escalateReplay handles a revoked token being presented again. With
// revoke-on-rotate in place the legitimate client never re-sends an old
// value, so a replay means the token leaked; all sessions for the user are
// torn down.
func (s *RefreshStore) escalateReplay(ctx context.Context, rec domain.RefreshToken) {
	log := slogx.FromContext(ctx)
	log.Warn("revoked refresh token replayed, revoking all user sessions",
		slog.String("user_id", rec.UserID),
		slog.String("token_id", rec.ID),
	)
	if err := s.store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, rec.UserID); err != nil {
		log.Error("failed to revoke user sessions after replay",
			slog.String("user_id", rec.UserID),
			slog.Any("error", err),
		)
	}
}
