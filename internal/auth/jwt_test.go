package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerify(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)

	token, err := m.Issue("user-1", "")
	require.NoError(t, err)
	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, RoleCustomer, claims.Role)

	staff, err := m.Issue("staff-1", RoleStaff)
	require.NoError(t, err)
	claims, err = m.Verify(staff)
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, claims.Role)
}

func TestVerifyRejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)
	exp := jwt.NewNumericDate(time.Now().Add(time.Minute))

	expired, err := NewJWTManager("test-secret", -time.Minute).Issue("user-1", "")
	require.NoError(t, err)
	otherKey, err := NewJWTManager("other-secret", time.Minute).Issue("user-1", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrInvalidToken},
		{"wrong key", otherKey, ErrInvalidToken},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
			&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: exp}}), ErrInvalidToken},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte("test-secret"),
			&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}), ErrInvalidToken},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte("test-secret"),
			&Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}), ErrInvalidToken},
		{"unknown role", sign(t, jwt.SigningMethodHS256, []byte("test-secret"),
			&Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: exp}}), ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
