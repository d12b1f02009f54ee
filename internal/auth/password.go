// Package auth implements password hashing in PHC string format with
// argon2id and mints session tokens.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. These match the argon2 defaults of the password-hash
// ecosystem: 19 MiB of memory, 2 passes, 1 lane.
const (
	argonMemory  = 19 * 1024
	argonTime    = 2
	argonThreads = 1
	argonKeyLen  = 32
	saltLen      = 16
)

// TokenLength is the size of minted auth tokens.
const TokenLength = 64

// ErrPasswordMismatch is returned when a password fails verification.
var ErrPasswordMismatch = errors.New("password verification failed")

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// HashPassword derives an argon2id hash of password with a random per-user
// salt, encoded as a PHC string:
//
//	$argon2id$v=19$m=...,t=...,p=...$<salt>$<digest>
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)

	return encoded, nil
}

// VerifyPassword checks password against a PHC-encoded argon2id hash in
// constant time. The parameters embedded in the hash are honored, so old
// hashes keep verifying after a parameter change.
func VerifyPassword(password, encoded string) error {
	version, memory, time, threads, salt, digest, err := decodePHC(encoded)
	if err != nil {
		return err
	}

	if version != argon2.Version {
		return fmt.Errorf("unsupported argon2 version %d", version)
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(digest)))

	if subtle.ConstantTimeCompare(computed, digest) != 1 {
		return ErrPasswordMismatch
	}

	return nil
}

// decodePHC parses a $argon2id$ PHC string into its parameters.
func decodePHC(encoded string) (version int, memory, time uint32, threads uint8, salt, digest []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash")
	}

	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed hash version: %w", err)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed hash parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed hash salt: %w", err)
	}

	digest, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed hash digest: %w", err)
	}

	return version, memory, time, threads, salt, digest, nil
}

// NewToken mints a random 64-character alphanumeric session token.
func NewToken() (string, error) {
	var b strings.Builder

	max := big.NewInt(int64(len(alphanumeric)))

	for i := 0; i < TokenLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating token: %w", err)
		}

		b.WriteByte(alphanumeric[n.Int64()])
	}

	return b.String(), nil
}
