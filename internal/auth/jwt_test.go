package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, Init())
}

func TestTokenRoundTrip(t *testing.T) {
	initTestSecret(t)

	token, err := GenerateToken("u-1", "auditor@hospital.test", "Auditor Uno", "auditor")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "auditor@hospital.test", claims.Email)
	assert.Equal(t, "auditor", claims.Rol)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	initTestSecret(t)

	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	initTestSecret(t)
	token, err := GenerateToken("u-1", "a@b.test", "A", "auditor")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "other-secret")
	require.NoError(t, Init())

	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	initTestSecret(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			claims, err := GetClaimsFromContext(r.Context())
			require.NoError(t, err)
			assert.Equal(t, "u-2", claims.UserID)
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := JWTMiddleware(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := GenerateToken("u-2", "a@b.test", "A", "auditor")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/stats", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
