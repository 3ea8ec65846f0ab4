package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/internal/account/token"
	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/idx"
	"github.com/ostromart/accounts/pkg/limitx"
	"github.com/ostromart/accounts/pkg/slogx"
)

// AuthService orchestrates registration, login, session refresh and password
// management. It receives already-validated input from the transport
// collaborator and returns plain result/error values.
type AuthService struct {
	Store        store.Store
	Hasher       *cryptox.Hasher
	Access       *token.AccessIssuer
	Purpose      *token.PurposeIssuer
	RefreshStore *token.RefreshStore
	Notifier     Notifier

	// LoginLimiter throttles password attempts per email. Optional; nil
	// disables throttling (tests).
	LoginLimiter *limitx.Keyed

	// MFAChallengeTTL bounds the window between a correct password and the
	// TOTP code for MFA-enabled accounts.
	MFAChallengeTTL time.Duration
}

// Register creates a new unverified customer account.
func (s *AuthService) Register(ctx context.Context, email, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		return domain.User{}, ErrEmailAlreadyRegistered
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		IsVerified:   false,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		// Two concurrent registrations can both pass the lookup above;
		// the unique index is the authority.
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailAlreadyRegistered
		}
		return domain.User{}, err
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password both come back as ErrInvalidCredentials. MFA-enabled
// accounts get an *MFARequiredError carrying a short-lived challenge token
// instead of a pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	if s.LoginLimiter != nil && !s.LoginLimiter.Allow(email) {
		log.Warn("login throttled", slog.String("email", email))
		return domain.User{}, domain.TokenPair{}, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("login failed: unknown email")
			return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			// Unusable stored hash. Log loudly but do not leak the
			// distinction to the caller.
			log.Error("login failed: unusable password hash",
				slog.String("user_id", user.ID), slog.Any("error", err))
		} else {
			log.Info("login failed: wrong password", slog.String("user_id", user.ID))
		}
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	s.maybeUpgradeHash(ctx, user, password)

	if user.MFAEnabled {
		challenge, err := s.Purpose.Issue(user.ID, token.PurposeMFAChallenge, s.mfaChallengeTTL())
		if err != nil {
			return domain.User{}, domain.TokenPair{}, err
		}
		return domain.User{}, domain.TokenPair{}, &MFARequiredError{ChallengeToken: challenge}
	}

	pair, err := issueTokenPair(ctx, s.Access, s.RefreshStore, user.ID)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	log.Info("login succeeded", slog.String("user_id", user.ID))
	return user, pair, nil
}

// Refresh rotates a refresh token and issues a new pair. NotFound, Revoked
// and Expired all collapse into ErrInvalidSession; the distinction is kept
// in logs.
func (s *AuthService) Refresh(ctx context.Context, refreshOpaque string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	userID, err := s.RefreshStore.Resolve(ctx, refreshOpaque)
	if err != nil {
		return domain.TokenPair{}, s.collapseSession(ctx, err)
	}

	// Sign the access token before the rotation commits so a signing
	// failure cannot leave a half-rotated session behind.
	accessToken, err := s.Access.Issue(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	newOpaque, _, err := s.RefreshStore.Rotate(ctx, refreshOpaque)
	if err != nil {
		return domain.TokenPair{}, s.collapseSession(ctx, err)
	}

	log.Debug("session refreshed", slog.String("user_id", userID))
	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.Access.TTL(),
	}, nil
}

// Logout revokes the presented refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshOpaque string) error {
	return s.RefreshStore.Revoke(ctx, refreshOpaque)
}

// ChangePassword verifies the old password, persists a new hash and revokes
// every open session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.Hasher.Verify(oldPassword, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrIncorrectOldPassword
		}
		return err
	}

	newHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	log.Info("password changed", slog.String("user_id", user.ID))
	return nil
}

// CurrentUser resolves an access token to its user record. Token failures
// collapse into ErrInvalidToken; a valid token for a deleted user reports
// ErrUserNotFound.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (domain.User, error) {
	userID, err := s.Access.Resolve(accessToken)
	if err != nil {
		slogx.FromContext(ctx).Info("access token rejected", slog.Any("reason", err))
		return domain.User{}, ErrInvalidToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// maybeUpgradeHash re-hashes and persists the password when the stored hash
// uses a legacy or weakened scheme. Best effort: the login already
// succeeded, so a failed upgrade is only logged.
func (s *AuthService) maybeUpgradeHash(ctx context.Context, user domain.User, password string) {
	if !s.Hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	log := slogx.FromContext(ctx)

	newHash, err := s.Hasher.Hash(password)
	if err != nil {
		log.Error("hash upgrade failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		log.Error("hash upgrade persist failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	log.Info("password hash upgraded", slog.String("user_id", user.ID))
}

// collapseSession maps refresh-store failures onto the single external
// session error, logging the real reason.
func (s *AuthService) collapseSession(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, token.ErrNotFound),
		errors.Is(err, token.ErrRevoked),
		errors.Is(err, token.ErrExpired):
		slogx.FromContext(ctx).Info("refresh rejected", slog.Any("reason", err))
		return ErrInvalidSession
	default:
		return err
	}
}

func (s *AuthService) mfaChallengeTTL() time.Duration {
	if s.MFAChallengeTTL > 0 {
		return s.MFAChallengeTTL
	}
	return token.DefaultMFAChallengeTTL
}

// issueTokenPair signs an access token, then persists a refresh token. The
// order matters: the durable write is the last step, so no refresh record
// can exist for a pair that was never handed out.
func issueTokenPair(
	ctx context.Context,
	access *token.AccessIssuer,
	refresh *token.RefreshStore,
	userID string,
) (domain.TokenPair, error) {
	accessToken, err := access.Issue(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refreshOpaque, _, err := refresh.Issue(ctx, userID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    access.TTL(),
	}, nil
}
