package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/internal/account/token"
	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/slogx"
)

// VerificationService issues and redeems the purpose-scoped tokens behind
// email verification and password reset. Redemption is single-use:
// verification through the verified-flag flip, reset through the password
// fingerprint binding baked into the token.
type VerificationService struct {
	Store    store.Store
	Hasher   *cryptox.Hasher
	Purpose  *token.PurposeIssuer
	Refresh  *token.RefreshStore
	Notifier Notifier

	// BaseURL prefixes the action links embedded in notifications,
	// e.g. "https://shop.example.com".
	BaseURL string

	VerifyEmailTTL   time.Duration
	PasswordResetTTL time.Duration
}

// SendEmailVerification issues a verify_email token and hands the payload to
// the notifier. Delivery failure is logged, never fatal: the payload is
// returned either way so the caller can retry delivery out of band.
func (s *VerificationService) SendEmailVerification(ctx context.Context, user domain.User) (domain.Notification, error) {
	tok, err := s.Purpose.Issue(user.ID, token.PurposeVerifyEmail, s.verifyTTL())
	if err != nil {
		return domain.Notification{}, fmt.Errorf("issue verification token: %w", err)
	}

	n := domain.Notification{
		Recipient: user.Email,
		Template:  domain.TemplateVerifyEmail,
		Token:     tok,
		ActionURL: s.actionURL("/account/verify-email", tok),
	}
	s.deliver(ctx, n)
	return n, nil
}

// ConfirmEmailVerification redeems a verify_email token. A second redemption
// of a still-valid token fails with ErrAlreadyVerified: the verified flag
// has already flipped, which is the single-use mechanism for this flow.
func (s *VerificationService) ConfirmEmailVerification(ctx context.Context, tokenString string) error {
	log := slogx.FromContext(ctx)

	claims, err := s.Purpose.Resolve(tokenString, token.PurposeVerifyEmail)
	if err != nil {
		return s.collapseToken(ctx, err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	// Conditional update: only flips an unverified row, so two concurrent
	// redemptions cannot both report success.
	if err := s.Store.Users().MarkUserVerified(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAlreadyVerified
		}
		return err
	}

	log.Info("email verified", slog.String("user_id", user.ID))
	return nil
}

// SendPasswordReset issues a password_reset token bound to the user's
// current password hash and hands the payload to the notifier.
func (s *VerificationService) SendPasswordReset(ctx context.Context, email string) (domain.Notification, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Notification{}, ErrUserNotFound
		}
		return domain.Notification{}, err
	}

	tok, err := s.Purpose.IssueBound(
		user.ID,
		token.PurposePasswordReset,
		s.resetTTL(),
		token.PasswordFingerprint(user.PasswordHash),
	)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("issue reset token: %w", err)
	}

	n := domain.Notification{
		Recipient: user.Email,
		Template:  domain.TemplatePasswordReset,
		Token:     tok,
		ActionURL: s.actionURL("/account/reset-password", tok),
	}
	s.deliver(ctx, n)
	return n, nil
}

// ConfirmPasswordReset redeems a password_reset token and installs the new
// password. The fingerprint binding makes the token single-use: after the
// first reset the stored hash no longer matches the claim, and re-redemption
// fails as an invalid token. All sessions are revoked on success.
func (s *VerificationService) ConfirmPasswordReset(ctx context.Context, tokenString, newPassword string) error {
	log := slogx.FromContext(ctx)

	claims, err := s.Purpose.Resolve(tokenString, token.PurposePasswordReset)
	if err != nil {
		return s.collapseToken(ctx, err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if claims.PasswordFP == "" || claims.PasswordFP != token.PasswordFingerprint(user.PasswordHash) {
		log.Info("reset token rejected", slog.Any("reason", token.ErrStaleBinding),
			slog.String("user_id", user.ID))
		return ErrInvalidToken
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

	log.Info("password reset", slog.String("user_id", user.ID))
	return nil
}

// deliver is fire-and-forget: the token has been issued and the operation
// already succeeded, so a delivery failure only gets logged.
func (s *VerificationService) deliver(ctx context.Context, n domain.Notification) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(ctx, n); err != nil {
		slogx.FromContext(ctx).Error("notification delivery failed",
			slog.String("recipient", n.Recipient),
			slog.String("template", string(n.Template)),
			slog.Any("error", err),
		)
	}
}

// collapseToken normalizes codec failures into ErrInvalidToken while keeping
// the reason in logs. A wrong purpose stays distinct: it is safe to tell a
// user they clicked the wrong kind of link.
func (s *VerificationService) collapseToken(ctx context.Context, err error) error {
	if errors.Is(err, token.ErrWrongPurpose) {
		return token.ErrWrongPurpose
	}
	slogx.FromContext(ctx).Info("purpose token rejected", slog.Any("reason", err))
	return ErrInvalidToken
}

func (s *VerificationService) actionURL(path, tok string) string {
	if s.BaseURL == "" {
		return ""
	}
	return s.BaseURL + path + "?token=" + url.QueryEscape(tok)
}

func (s *VerificationService) verifyTTL() time.Duration {
	if s.VerifyEmailTTL > 0 {
		return s.VerifyEmailTTL
	}
	return token.DefaultVerifyEmailTTL
}

func (s *VerificationService) resetTTL() time.Duration {
	if s.PasswordResetTTL > 0 {
		return s.PasswordResetTTL
	}
	return token.DefaultPasswordResetTTL
}
