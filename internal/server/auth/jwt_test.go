package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internhub/internhub/internal/models"
)

func testConfig() Config {
	return Config{
		Secret:   []byte("test-secret"),
		TokenTTL: time.Hour,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testConfig()

	principal := models.Principal{
		UserID:        "sup-1",
		Role:          models.RoleSupervisor,
		InstitutionID: "inst-1",
		DepartmentID:  "dept-1",
	}

	token, err := GenerateToken(cfg, principal)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(testConfig(), models.Principal{UserID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = ValidateToken(Config{Secret: []byte("other-secret")}, token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := Config{Secret: []byte("test-secret"), TokenTTL: -time.Minute}

	token, err := GenerateToken(cfg, models.Principal{UserID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = ValidateToken(cfg, token)
	assert.Error(t, err)
}

func TestValidateTokenUnknownRole(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, models.Principal{UserID: "u1", Role: models.Role("superhero")})
	require.NoError(t, err)

	_, err = ValidateToken(cfg, token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken(testConfig(), "not.a.token")
	assert.Error(t, err)
}
