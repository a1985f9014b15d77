package security

import (
	"strings"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	tok, err := svc.CreateForUser("user-1", "Ann", "ann@example.com")
	require.NoError(t, err)

	claims, err := svc.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "Ann", claims.DisplayName)
	assert.Equal(t, "ann@example.com", claims.Email)
}

func TestTokenRejected(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	t.Run("Expired", func(t *testing.T) {
		tok, err := svc.CreateWithTTL("user-1", "Ann", "ann@example.com", time.Minute)
		require.NoError(t, err)
		later := *svc
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		_, err = later.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		tok, err := NewTokenService("other", time.Hour).CreateForUser("user-1", "Ann", "")
		require.NoError(t, err)
		_, err = svc.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("NoSubject", func(t *testing.T) {
		tok, err := svc.CreateForUser("", "Ann", "")
		require.NoError(t, err)
		_, err = svc.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.Parse("not.a.token")
		assert.Error(t, err)
	})
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)
	hashed, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hashed)
	assert.NoError(t, h.Verify("hunter22", hashed))
	assert.ErrorIs(t, h.Verify("hunter23", hashed), ErrPasswordMismatch)

	err = h.Verify("hunter22", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)

	assert.False(t, h.NeedsRehash(hashed))
	assert.True(t, NewPasswordHasher(5).NeedsRehash(hashed))
	assert.True(t, h.NeedsRehash("not-a-bcrypt-hash"))
}

func TestPasswordHasherCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 6, NewPasswordHasher(6).cost)
}

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor([]byte("a passphrase of any length"), nil)
	require.NoError(t, err)

	sealed, err := enc.Encrypt("meet at 8")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "meet at 8")
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))

	again, err := enc.Encrypt("meet at 8")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per message")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "meet at 8", plain)

	other, err := NewEncryptor([]byte("another key"), nil)
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = enc.Decrypt("plain text")
	assert.ErrorIs(t, err, ErrDecrypt)

	i := len(sealedPrefix) + 4
	swap := byte('A')
	if sealed[i] == swap {
		swap = 'B'
	}
	tampered := sealed[:i] + string(swap) + sealed[i+1:]
	_, err = enc.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = NewEncryptor(nil, nil)
	assert.Error(t, err)
}

func TestEncryptorLegacyFernet(t *testing.T) {
	var legacy fernet.Key
	require.NoError(t, legacy.Generate())
	token, err := fernet.EncryptAndSign([]byte("old message"), &legacy)
	require.NoError(t, err)

	enc, err := NewEncryptor([]byte("current key"), []string{"not-a-key", legacy.Encode()})
	require.NoError(t, err)
	plain, err := enc.Decrypt(string(token))
	require.NoError(t, err)
	assert.Equal(t, "old message", plain)

	// The current key doubles as a fernet key when it is encoded as one.
	asCurrent, err := NewEncryptor([]byte(legacy.Encode()), nil)
	require.NoError(t, err)
	plain, err = asCurrent.Decrypt(string(token))
	require.NoError(t, err)
	assert.Equal(t, "old message", plain)

	withoutLegacy, err := NewEncryptor([]byte("current key"), nil)
	require.NoError(t, err)
	_, err = withoutLegacy.Decrypt(string(token))
	assert.ErrorIs(t, err, ErrDecrypt)
}
