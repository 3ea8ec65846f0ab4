package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Default Argon2id parameters.
const (
	defaultMemory      = 19 * 1024 // KiB (19 MiB)
	defaultIterations  = 2
	defaultParallelism = 1
	defaultKeyLength   = 32
	defaultSaltLength  = 16
)

// ErrPasswordMismatch is returned by Verify when the password does not match
// the stored hash. A wrong password is the only condition it signals; any
// other error from Verify means the stored hash itself is unusable.
var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// Hasher hashes and verifies passwords. New hashes are always Argon2id in
// PHC format; Verify additionally accepts legacy bcrypt hashes so accounts
// migrated from an older scheme keep working until their next login
// re-hashes them (see NeedsRehash).
type Hasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
	saltLength  uint32
}

// NewHasher returns a Hasher with the default Argon2id parameters.
func NewHasher() *Hasher {
	return &Hasher{
		memory:      defaultMemory,
		iterations:  defaultIterations,
		parallelism: defaultParallelism,
		keyLength:   defaultKeyLength,
		saltLength:  defaultSaltLength,
	}
}

// Hash generates a PHC-format Argon2id hash string including salt and
// parameters.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, h.iterations, h.memory, h.parallelism, h.keyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		h.memory, h.iterations, h.parallelism, b64Salt, b64Hash,
	), nil
}

// Verify compares a plaintext password against a stored hash. It returns nil
// on a match, ErrPasswordMismatch on a wrong password, and a descriptive
// error when the encoded hash cannot be parsed.
func (h *Hasher) Verify(password, encodedHash string) error {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return h.verifyArgon2id(password, encodedHash)
}

// NeedsRehash reports whether a hash that just verified successfully should
// be regenerated and persisted: legacy bcrypt hashes always, and Argon2id
// hashes produced under weaker-than-current parameters.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	mem, iters, par, err := parseArgon2idParams(encodedHash)
	if err != nil {
		return false
	}
	return mem < h.memory || iters < h.iterations || par < h.parallelism
}

func (h *Hasher) verifyArgon2id(password, encodedHash string) error {
	parts := strings.Split(encodedHash, "$")

	// Expected structure: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	if len(parts) != 6 {
		return errors.New("cryptox: invalid hash format: expected 6 parts")
	}
	if parts[1] != "argon2id" {
		return errors.New("cryptox: invalid hash format: not argon2id")
	}
	if parts[2] != "v=19" {
		return errors.New("cryptox: invalid hash format: wrong version")
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("cryptox: invalid hash format: failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("cryptox: invalid hash format: failed to decode salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("cryptox: invalid hash format: failed to decode hash: %w", err)
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115 - hash lengths are short
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

func parseArgon2idParams(encodedHash string) (mem, iters uint32, par uint8, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, errors.New("cryptox: not an argon2id hash")
	}
	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par)
	return mem, iters, par, err
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
