package limitx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedAllow(t *testing.T) {
	t.Run("allows up to burst then denies", func(t *testing.T) {
		k := NewKeyed(Config{EventsPerWindow: 3, Window: time.Hour, Burst: 3})

		for i := 0; i < 3; i++ {
			require.True(t, k.Allow("alice@example.com"), "attempt %d should pass", i+1)
		}
		require.False(t, k.Allow("alice@example.com"), "attempt past burst should be denied")
	})

	t.Run("keys are rate limited independently", func(t *testing.T) {
		k := NewKeyed(Config{EventsPerWindow: 1, Window: time.Hour, Burst: 1})

		require.True(t, k.Allow("alice@example.com"))
		require.False(t, k.Allow("alice@example.com"))
		require.True(t, k.Allow("bob@example.com"), "a saturated key must not affect others")
	})

	t.Run("empty key is never limited", func(t *testing.T) {
		k := NewKeyed(Config{EventsPerWindow: 1, Window: time.Hour, Burst: 1})

		for i := 0; i < 10; i++ {
			require.True(t, k.Allow(""))
		}
	})

	t.Run("bucket refills over the window", func(t *testing.T) {
		k := NewKeyed(Config{EventsPerWindow: 100, Window: time.Second, Burst: 1})

		require.True(t, k.Allow("carol@example.com"))
		require.False(t, k.Allow("carol@example.com"))

		time.Sleep(25 * time.Millisecond) // >1/100s, at least one token back

		require.True(t, k.Allow("carol@example.com"))
	})
}

func TestLoginLimit(t *testing.T) {
	k := NewKeyed(LoginLimit)

	for i := 0; i < 5; i++ {
		require.True(t, k.Allow("dave@example.com"), "attempt %d should pass", i+1)
	}
	require.False(t, k.Allow("dave@example.com"), "sixth attempt within a minute is throttled")
}
