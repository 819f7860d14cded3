package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-request-api-server/internal/models"
)

var secret = []byte("test-secret")

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateJWT(secret, "apr-1", "apr@example.com", models.RoleApprover, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "apr-1", Role: models.RoleApprover, Email: "apr@example.com"}, claims.Actor())
}

func TestParseRejects(t *testing.T) {
	expired, err := GenerateJWT(secret, "u", "", models.RoleRequester, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.Error(t, err)

	valid, err := GenerateJWT(secret, "u", "", models.RoleRequester, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken([]byte("other"), valid)
	assert.Error(t, err)

	_, err = GenerateJWT(nil, "u", "", models.RoleRequester, time.Hour)
	assert.Error(t, err)
}
