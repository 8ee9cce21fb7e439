package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
	}
	for header, want := range cases {
		assert.Equal(t, want, ParseBearerToken(header), header)
	}
}

func TestServiceTokenRoundTrip(t *testing.T) {
	token, expires, err := SignServiceToken("secret", "staff-queue", time.Minute, time.Now())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 2*time.Second)

	claims, err := VerifyAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "staff-queue", claims.StaffID)
	assert.Equal(t, RoleService, claims.Role)
	assert.False(t, claims.IsStaff())

	_, err = VerifyAccessToken(token, "other")
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredAndAnonymous(t *testing.T) {
	expired := &Claims{
		StaffID: "s-1",
		Role:    RoleMerchantStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = VerifyAccessToken(signed, "k")
	assert.Error(t, err)

	anonymous := &Claims{
		Role: RoleMerchantStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, anonymous).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = VerifyAccessToken(signed, "k")
	assert.Error(t, err)

	_, _, err = SignServiceToken("", "x", time.Minute, time.Now())
	assert.Error(t, err)
}
