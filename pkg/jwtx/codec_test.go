package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ostromart/accounts/pkg/clockx"
)

func TestNewCodec(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := NewCodec(nil, clockx.System())
		require.Error(t, err)
	})

	t.Run("defaults to the system clock", func(t *testing.T) {
		c, err := NewCodec([]byte("secret"), nil)
		require.NoError(t, err)
		require.NotNil(t, c)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	clock := clockx.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	codec, err := NewCodec([]byte("test-secret"), clock)
	require.NoError(t, err)

	in := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "accounts"},
		TokenType:        "verify_email",
		PasswordFP:       "abcdef0123456789",
	}
	tok, err := codec.Encode(in, time.Hour)
	require.NoError(t, err)

	out, err := codec.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", out.Subject)
	require.Equal(t, "accounts", out.Issuer)
	require.Equal(t, "verify_email", out.TokenType)
	require.Equal(t, "abcdef0123456789", out.PasswordFP)
	require.Equal(t, clock.Now().Add(time.Hour).Unix(), out.ExpiresAt.Unix())
	require.Equal(t, clock.Now().Unix(), out.IssuedAt.Unix())
}

func TestCodecDecode_Expired(t *testing.T) {
	clock := clockx.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	codec, err := NewCodec([]byte("test-secret"), clock)
	require.NoError(t, err)

	tok, err := codec.Encode(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, time.Hour)
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.NoError(t, err, "token is valid before expiry")

	clock.Advance(time.Hour + time.Second)

	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, ErrExpired)

	t.Run("negative ttl is born expired", func(t *testing.T) {
		tok, err := codec.Encode(Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		}, -time.Second)
		require.NoError(t, err)

		_, err = codec.Decode(tok)
		require.ErrorIs(t, err, ErrExpired)
	})
}

func TestCodecDecode_WrongSecret(t *testing.T) {
	clock := clockx.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	signer, err := NewCodec([]byte("secret-a"), clock)
	require.NoError(t, err)
	verifier, err := NewCodec([]byte("secret-b"), clock)
	require.NoError(t, err)

	tok, err := signer.Encode(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestCodecDecode_ForeignAlgorithm(t *testing.T) {
	clock := clockx.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	codec, err := NewCodec([]byte("test-secret"), clock)
	require.NoError(t, err)

	// An unsigned token must never validate, even though "none" carries no
	// signature to check.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrExpired)
}

func TestCodecDecode_Malformed(t *testing.T) {
	codec, err := NewCodec([]byte("test-secret"), clockx.System())
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", "a.b.c", "ey.ey.ey"} {
		_, err := codec.Decode(tok)
		require.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}
