package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ostromart/accounts/internal/account/domain"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/internal/account/store/drivers/sqlite"
	"github.com/ostromart/accounts/pkg/clockx"
	"github.com/ostromart/accounts/pkg/idx"
	"github.com/ostromart/accounts/pkg/jwtx"
)

// newTestStore opens a migrated in-memory database tied to the test lifetime.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

// seedUser inserts a minimal user row so refresh token foreign keys hold.
func seedUser(t *testing.T, st store.Store) string {
	t.Helper()

	id := idx.New().String()
	err := st.Users().CreateUser(context.Background(), domain.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Role:         domain.RoleCustomer,
	})
	require.NoError(t, err)
	return id
}

func newTestCodec(t *testing.T, clock clockx.Clock) *jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewCodec([]byte("test-secret"), clock)
	require.NoError(t, err)
	return codec
}
