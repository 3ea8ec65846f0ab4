package service

import (
	"errors"
)

// Domain error taxonomy surfaced to the transport collaborator. Credential
// and token failures are deliberately coarse (no oracle distinguishing
// unknown email from wrong password, or expired from forged); the precise
// reasons live only in logs.
var (
	ErrInvalidCredentials     = errors.New("invalid_credentials")
	ErrEmailAlreadyRegistered = errors.New("email_already_registered")
	ErrInvalidToken           = errors.New("invalid_token")
	ErrInvalidSession         = errors.New("invalid_session")
	ErrUserNotFound           = errors.New("user_not_found")
	ErrAlreadyVerified        = errors.New("already_verified")
	ErrIncorrectOldPassword   = errors.New("incorrect_old_password")
	ErrTooManyAttempts        = errors.New("too_many_attempts")

	ErrInvalidTOTPCode   = errors.New("invalid_totp_code")
	ErrMFAAlreadyEnabled = errors.New("mfa_already_enabled")
	ErrMFANotEnrolled    = errors.New("mfa_not_enrolled")
)

// MFARequiredError interrupts a credential-valid login when the account has
// MFA enabled. The challenge token is redeemed via MFAService.CompleteLogin.
type MFARequiredError struct {
	ChallengeToken string
}

func (e *MFARequiredError) Error() string {
	return "mfa_required"
}

// AsMFARequired unwraps an MFARequiredError from a Login failure, if present.
func AsMFARequired(err error) (*MFARequiredError, bool) {
	var mfaErr *MFARequiredError
	if errors.As(err, &mfaErr) {
		return mfaErr, true
	}
	return nil, false
}
