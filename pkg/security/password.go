package security

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/pbkdf2"

	"github.com/angelmondragon/orderdesk/pkg/config"
)

var tempPasswordCharset = []rune("ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789")

// ErrInvalidHash signals a stored hash or salt that cannot be decoded.
var ErrInvalidHash = fmt.Errorf("invalid pbkdf2 hash")

// Hasher derives PBKDF2-SHA512 password hashes. The salt is a hex string and is fed to the
// KDF as its text form, so (salt, hash) pairs stay portable as plain strings.
type Hasher struct {
	iterations int
	keyLen     int
	saltLen    int
}

// NewHasher builds a Hasher from config, enforcing the minimum work factor.
func NewHasher(cfg config.PasswordConfig) Hasher {
	return Hasher{
		iterations: maxInt(cfg.Iterations, config.MinPasswordIterations),
		keyLen:     maxInt(cfg.KeyLen, 64),
		saltLen:    maxInt(cfg.SaltLen, 16),
	}
}

// DefaultHasher returns the hasher with the minimum accepted parameters.
func DefaultHasher() Hasher {
	return NewHasher(config.PasswordConfig{})
}

// HashPassword returns a fresh hex salt and the hex-encoded derived key.
func (h Hasher) HashPassword(password string) (salt string, hash string, err error) {
	if password == "" {
		return "", "", fmt.Errorf("password cannot be empty")
	}

	raw := make([]byte, h.saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)

	return salt, h.derive(password, salt), nil
}

// HashWithSalt is deterministic for a given salt.
func (h Hasher) HashWithSalt(password, salt string) string {
	return h.derive(password, salt)
}

// VerifyPassword recomputes the hash for salt and compares in constant time.
func (h Hasher) VerifyPassword(password, hash, salt string) bool {
	expected, err := hex.DecodeString(hash)
	if err != nil || len(expected) == 0 || salt == "" {
		return false
	}
	computed := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, len(expected), sha512.New)
	return subtle.ConstantTimeCompare(expected, computed) == 1
}

func (h Hasher) derive(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, h.keyLen, sha512.New)
	return hex.EncodeToString(key)
}

func maxInt(value, floor int) int {
	if value < floor {
		return floor
	}
	return value
}

// GenerateTempPassword produces a random string suitable for temporary credentials.
func GenerateTempPassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	result := make([]rune, length)
	for i := 0; i < length; i++ {
		idx, err := randInt(len(tempPasswordCharset))
		if err != nil {
			return "", err
		}
		result[i] = tempPasswordCharset[idx]
	}
	return string(result), nil
}

func randInt(max int) (int, error) {
	return randIntFrom(rand.Reader, max)
}

// randIntFrom draws uniformly from [0, max) by rejection sampling.
func randIntFrom(src io.Reader, max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	n, err := rand.Int(src, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
