package user

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw123")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", hash)

	usr := &User{ID: 1, PasswordHash: hash}
	assert.True(t, CheckPassword(usr, "pw123"))
	assert.False(t, CheckPassword(usr, "pw124"))
	assert.False(t, CheckPassword(nil, "pw123"))

	other, err := HashPassword("pw123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes must be salted")
}

func TestLongPasswordsAreFullySignificant(t *testing.T) {
	long := strings.Repeat("p", 200)
	hash, err := HashPassword(long)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	usr := &User{ID: 1, PasswordHash: hash}
	assert.True(t, CheckPassword(usr, long))
	assert.False(t, CheckPassword(usr, long[:199]+"q"), "bytes past 72 must still count")
	assert.False(t, CheckPassword(usr, long[:72]))
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	for _, stored := range []string{
		"",
		"$2a$10$secret",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$AAAA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
	} {
		assert.False(t, CheckPassword(&User{PasswordHash: stored}, "pw123"), stored)
	}
}

func TestResponseNeverContainsPassword(t *testing.T) {
	usr := &User{
		ID:           7,
		Name:         "Ann",
		Email:        "ann@x.com",
		PasswordHash: "$2a$10$secret",
		CreatedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		DesignsCount: 3,
	}

	body, err := json.Marshal(usr.ToResponse())
	require.NoError(t, err)

	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), "secret")
	assert.JSONEq(
		t,
		`{"id":7,"name":"Ann","email":"ann@x.com","created_at":"2024-05-01T10:00:00Z","designs_count":3}`,
		string(body),
	)
}
