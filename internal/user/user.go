// Package user defines the user model used throughout the application,
// together with password hashing and the client-facing representation.
package user

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for new hashes. Stored hashes carry their own
// parameters, so changing these does not invalidate existing accounts.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

var errMalformedHash = errors.New("malformed password hash")

// dummyHash is compared against when no user matched a login attempt,
// so that both failure paths spend the same hashing time.
var dummyHash = func() string {
	salt := []byte("interioai-dummy-")
	key := argon2.IDKey([]byte("interioai"), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return encodeHash(salt, key, argonTime, argonMemory, argonThreads)
}()

// User represents a registered account.
type User struct {
	// ID is the store-assigned surrogate identifier.
	ID int64 `json:"id"`

	Name  string `json:"name"`
	Email string `json:"email"`

	// PasswordHash is the salted argon2id hash. It is never part of Response.
	PasswordHash string `json:"password"`

	CreatedAt time.Time `json:"created_at"`

	// DesignsCount is computed by the storage on read and is not persisted.
	DesignsCount int64 `json:"-"`
}

// Response is the representation of a user sent to clients.
type Response struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	DesignsCount int64     `json:"designs_count"`
}

// ToResponse maps the user field-for-field to its client representation.
func (u *User) ToResponse() *Response {
	return &Response{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		CreatedAt:    u.CreatedAt.UTC(),
		DesignsCount: u.DesignsCount,
	}
}

// HashPassword returns the salted argon2id hash of the plain password
// in the PHC string format ($argon2id$v=19$m=...,t=...,p=...$salt$key).
// Passwords of any length are accepted.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("in internal/user/user.go/HashPassword(): error while `rand.Read()` calling: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return encodeHash(salt, key, argonTime, argonMemory, argonThreads), nil
}

func encodeHash(salt, key []byte, iterations, memory uint32, threads uint8) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func verifyHash(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return false, errMalformedHash
	}

	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// CheckPassword reports whether password matches the stored hash.
// A nil user is treated as a mismatch after an equal-cost comparison.
func CheckPassword(usr *User, password string) bool {
	if usr == nil {
		_, _ = verifyHash(dummyHash, password)
		return false
	}

	matches, err := verifyHash(usr.PasswordHash, password)

	return err == nil && matches
}
