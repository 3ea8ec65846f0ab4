package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/pkg/idx"
	"github.com/ostromart/accounts/pkg/limitx"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	t.Run("creates an unverified customer", func(t *testing.T) {
		user, err := h.auth.Register(ctx, "alice@example.com", "Passw0rd1")
		require.NoError(t, err)
		require.NotEmpty(t, user.ID)
		require.Equal(t, "alice@example.com", user.Email)
		require.Equal(t, domain.RoleCustomer, user.Role)
		require.False(t, user.IsVerified)
		require.False(t, user.MFAEnabled)

		require.NotEqual(t, "Passw0rd1", user.PasswordHash, "password is never stored raw")
		require.NoError(t, h.hasher.Verify("Passw0rd1", user.PasswordHash))
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := h.auth.Register(ctx, "alice@example.com", "Other1234")
		require.ErrorIs(t, err, ErrEmailAlreadyRegistered)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "alice@example.com", "Passw0rd1")

	t.Run("valid credentials issue a token pair", func(t *testing.T) {
		user, pair, err := h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", user.Email)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Equal(t, 30*time.Minute, pair.ExpiresIn)

		subject, err := h.access.Resolve(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, subject)

		owner, err := h.refresh.Resolve(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, owner)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, _, errUnknown := h.auth.Login(ctx, "nobody@example.com", "Passw0rd1")
		_, _, errWrong := h.auth.Login(ctx, "alice@example.com", "not-the-password")

		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	})
}

func TestLogin_Throttled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "alice@example.com", "Passw0rd1")
	h.auth.LoginLimiter = limitx.NewKeyed(limitx.Config{
		EventsPerWindow: 2, Window: time.Hour, Burst: 2,
	})

	_, _, err := h.auth.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = h.auth.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Even the right password is throttled once the bucket is drained.
	_, _, err = h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
	require.ErrorIs(t, err, ErrTooManyAttempts)

	_, _, err = h.auth.Login(ctx, "bob@example.com", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials, "other identities are not throttled")
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("OldSchool1"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, h.st.Users().CreateUser(ctx, domain.User{
		ID:           idx.New().String(),
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
		Role:         domain.RoleCustomer,
	}))

	_, _, err = h.auth.Login(ctx, "legacy@example.com", "OldSchool1")
	require.NoError(t, err)

	upgraded, err := h.st.Users().GetUserByEmail(ctx, "legacy@example.com")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(upgraded.PasswordHash, "$argon2id$"),
		"stored hash should be upgraded on successful login")
	require.NoError(t, h.hasher.Verify("OldSchool1", upgraded.PasswordHash))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, "alice@example.com", "Passw0rd1")
	_, pair, err := h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	t.Run("rotates the session", func(t *testing.T) {
		next, err := h.auth.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		subject, err := h.access.Resolve(next.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, subject)

		_, err = h.auth.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidSession, "the old token must not refresh again")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := h.auth.Refresh(ctx, "never-issued")
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired session", func(t *testing.T) {
		_, fresh, err := h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
		require.NoError(t, err)

		h.clock.Advance(8 * 24 * time.Hour)
		defer h.clock.Advance(-8 * 24 * time.Hour)

		_, err = h.auth.Refresh(ctx, fresh.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "alice@example.com", "Passw0rd1")
	_, pair, err := h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, pair.RefreshToken))

	_, err = h.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	require.NoError(t, h.auth.Logout(ctx, pair.RefreshToken), "logout is idempotent")
	require.NoError(t, h.auth.Logout(ctx, "never-issued"))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, "alice@example.com", "Passw0rd1")
	_, pair, err := h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	t.Run("wrong old password", func(t *testing.T) {
		err := h.auth.ChangePassword(ctx, user.ID, "not-the-password", "NewPass99")
		require.ErrorIs(t, err, ErrIncorrectOldPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := h.auth.ChangePassword(ctx, idx.New().String(), "Passw0rd1", "NewPass99")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("success rotates credentials and revokes sessions", func(t *testing.T) {
		require.NoError(t, h.auth.ChangePassword(ctx, user.ID, "Passw0rd1", "NewPass99"))

		_, _, err := h.auth.Login(ctx, "alice@example.com", "Passw0rd1")
		require.ErrorIs(t, err, ErrInvalidCredentials, "old password must stop working")

		_, _, err = h.auth.Login(ctx, "alice@example.com", "NewPass99")
		require.NoError(t, err)

		_, err = h.auth.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidSession, "pre-change sessions must be revoked")
	})
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, "alice@example.com", "Passw0rd1")

	t.Run("valid access token", func(t *testing.T) {
		tok, err := h.access.Issue(user.ID)
		require.NoError(t, err)

		got, err := h.auth.CurrentUser(ctx, tok)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := h.auth.CurrentUser(ctx, "garbage")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		tok, err := h.access.Issue(user.ID)
		require.NoError(t, err)

		h.clock.Advance(31 * time.Minute)
		defer h.clock.Advance(-31 * time.Minute)

		_, err = h.auth.CurrentUser(ctx, tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("verification link is not a bearer credential", func(t *testing.T) {
		n, err := h.verification.SendEmailVerification(ctx, user)
		require.NoError(t, err)

		_, err = h.auth.CurrentUser(ctx, n.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token for a vanished user", func(t *testing.T) {
		tok, err := h.access.Issue(idx.New().String())
		require.NoError(t, err)

		_, err = h.auth.CurrentUser(ctx, tok)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}
