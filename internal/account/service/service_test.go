package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/internal/account/store/drivers/sqlite"
	"github.com/ostromart/accounts/internal/account/token"
	"github.com/ostromart/accounts/pkg/clockx"
	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/jwtx"
)

// captureNotifier records notifications instead of delivering them.
type captureNotifier struct {
	sent []domain.Notification
}

func (c *captureNotifier) Send(_ context.Context, n domain.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureNotifier) last(t *testing.T) domain.Notification {
	t.Helper()
	require.NotEmpty(t, c.sent, "expected a notification to have been sent")
	return c.sent[len(c.sent)-1]
}

// harness wires the full service stack over an in-memory database and a
// fake clock.
type harness struct {
	st       store.Store
	clock    *clockx.Fake
	hasher   *cryptox.Hasher
	access   *token.AccessIssuer
	purpose  *token.PurposeIssuer
	refresh  *token.RefreshStore
	notifier *captureNotifier

	auth         *AuthService
	verification *VerificationService
	mfa          *MFAService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := clockx.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	codec, err := jwtx.NewCodec([]byte("test-secret"), clock)
	require.NoError(t, err)

	h := &harness{
		st:       st,
		clock:    clock,
		hasher:   cryptox.NewHasher(),
		access:   token.NewAccessIssuer(codec, 30*time.Minute),
		purpose:  token.NewPurposeIssuer(codec),
		refresh:  token.NewRefreshStore(st, clock, 7*24*time.Hour),
		notifier: &captureNotifier{},
	}

	h.auth = &AuthService{
		Store:        st,
		Hasher:       h.hasher,
		Access:       h.access,
		Purpose:      h.purpose,
		RefreshStore: h.refresh,
		Notifier:     h.notifier,
	}
	h.verification = &VerificationService{
		Store:    st,
		Hasher:   h.hasher,
		Purpose:  h.purpose,
		Refresh:  h.refresh,
		Notifier: h.notifier,
		BaseURL:  "https://shop.example.com",
	}
	h.mfa = &MFAService{
		Store:   st,
		Hasher:  h.hasher,
		Purpose: h.purpose,
		Access:  h.access,
		Refresh: h.refresh,
		Issuer:  "accounts-test",
	}
	return h
}

// register is a convenience for tests that need an existing account.
func (h *harness) register(t *testing.T, email, password string) domain.User {
	t.Helper()
	user, err := h.auth.Register(context.Background(), email, password)
	require.NoError(t, err)
	return user
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
