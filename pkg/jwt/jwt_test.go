package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("v1", "vendor", testSecret, 1)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "v1", claims.UserId)
	assert.Equal(t, "vendor", claims.UserType)
	assert.Equal(t, "jade-portal", claims.Issuer)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("v1", "vendor", testSecret, 1)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	assert.Error(t, err)
}

func TestValidateToken_UserMismatch(t *testing.T) {
	token, err := GenerateToken("v1", "vendor", testSecret, 1)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret, "v1")
	assert.NoError(t, err)

	_, err = ValidateToken(token, testSecret, "v2")
	assert.Error(t, err)
}
