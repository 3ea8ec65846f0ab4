package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/internal/account/token"
	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/limitx"
	"github.com/ostromart/accounts/pkg/slogx"
)

// TOTPEnrollment is returned from EnrollTOTP so the client can render a QR
// code. MFA is not active until the user proves possession via ActivateTOTP.
type TOTPEnrollment struct {
	Secret string // base32 TOTP secret
	URL    string // otpauth:// provisioning URL
}

// MFAService manages TOTP enrollment and the second step of an MFA login.
type MFAService struct {
	Store   store.Store
	Hasher  *cryptox.Hasher
	Purpose *token.PurposeIssuer
	Access  *token.AccessIssuer
	Refresh *token.RefreshStore

	// Issuer is the account name shown in authenticator apps.
	Issuer string

	// CodeLimiter throttles TOTP guesses per user. Optional; nil disables
	// throttling (tests).
	CodeLimiter *limitx.Keyed
}

// EnrollTOTP generates and stores a TOTP secret for the user. MFA stays
// disabled until ActivateTOTP verifies a first code.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (TOTPEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TOTPEnrollment{}, ErrUserNotFound
		}
		return TOTPEnrollment{}, err
	}
	if user.MFAEnabled {
		return TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	if err := s.Store.Users().UpdateMFASecret(ctx, user.ID, key.Secret()); err != nil {
		return TOTPEnrollment{}, err
	}

	return TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ActivateTOTP turns MFA on after the user proves the authenticator works.
func (s *MFAService) ActivateTOTP(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if user.MFASecret == nil || *user.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if !totp.Validate(code, *user.MFASecret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().EnableMFA(ctx, user.ID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("mfa enabled", slog.String("user_id", user.ID))
	return nil
}

// DisableTOTP requires both factors before turning MFA off.
func (s *MFAService) DisableTOTP(ctx context.Context, userID, password, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.MFAEnabled || user.MFASecret == nil {
		return ErrMFANotEnrolled
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}
	if !totp.Validate(code, *user.MFASecret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().DisableMFA(ctx, user.ID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("mfa disabled", slog.String("user_id", user.ID))
	return nil
}

// CompleteLogin redeems an mfa_challenge token together with a TOTP code and
// issues the token pair the password step withheld.
func (s *MFAService) CompleteLogin(ctx context.Context, challengeToken, code string) (domain.User, domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.Purpose.Resolve(challengeToken, token.PurposeMFAChallenge)
	if err != nil {
		log.Info("mfa challenge rejected", slog.Any("reason", err))
		return domain.User{}, domain.TokenPair{}, ErrInvalidToken
	}

	if s.CodeLimiter != nil && !s.CodeLimiter.Allow(claims.Subject) {
		log.Warn("mfa code attempts throttled", slog.String("user_id", claims.Subject))
		return domain.User{}, domain.TokenPair{}, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.TokenPair{}, ErrUserNotFound
		}
		return domain.User{}, domain.TokenPair{}, err
	}
	if !user.MFAEnabled || user.MFASecret == nil || *user.MFASecret == "" {
		return domain.User{}, domain.TokenPair{}, ErrMFANotEnrolled
	}

	if !totp.Validate(code, *user.MFASecret) {
		log.Info("mfa code invalid", slog.String("user_id", user.ID))
		return domain.User{}, domain.TokenPair{}, ErrInvalidTOTPCode
	}

	pair, err := issueTokenPair(ctx, s.Access, s.Refresh, user.ID)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	log.Info("mfa login completed", slog.String("user_id", user.ID))
	return user, pair, nil
}
