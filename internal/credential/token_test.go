package credential

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-art-session/internal/model"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func accessClaims(now time.Time, ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "user-1",
		"email":     "ada@example.com",
		"role":      "ARTIST",
		"firstName": "Ada",
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
}

func TestDecode(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("reads claims", func(t *testing.T) {
		claims, err := Decode(signToken(t, accessClaims(now, time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "ada@example.com", claims.Email)
		assert.Equal(t, "ARTIST", claims.Role)
		assert.Equal(t, "Ada", claims.FirstName)
		assert.Equal(t, now.Unix(), claims.IssuedAt)
		assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt)
	})

	t.Run("ignores signature", func(t *testing.T) {
		token := signToken(t, accessClaims(now, time.Hour))
		tampered := token[:len(token)-4] + "AAAA"
		_, err := Decode(tampered)
		assert.NoError(t, err)
	})

	malformed := map[string]string{
		"empty":          "",
		"two segments":   "abc.def",
		"four segments":  "a.b.c.d",
		"bad base64":     "aaa.!!!.ccc",
		"not json":       "aaa." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".ccc",
		"json array":     "aaa." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".ccc",
		"json primitive": "aaa." + base64.RawURLEncoding.EncodeToString([]byte(`42`)) + ".ccc",
	}
	for name, token := range malformed {
		t.Run("malformed "+name, func(t *testing.T) {
			claims, err := Decode(token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, model.ErrMalformedToken)
		})
	}
}

func TestIsExpiredAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, IsExpiredAt(signToken(t, accessClaims(now, time.Hour)), DefaultExpiryBuffer, now))
	assert.True(t, IsExpiredAt(signToken(t, accessClaims(now, -time.Minute)), DefaultExpiryBuffer, now))

	// exp exactly at now+buffer counts as expired
	assert.True(t, IsExpiredAt(signToken(t, accessClaims(now, 5*time.Minute)), DefaultExpiryBuffer, now))
	assert.False(t, IsExpiredAt(signToken(t, accessClaims(now, 5*time.Minute+time.Second)), DefaultExpiryBuffer, now))

	noExp := signToken(t, jwt.MapClaims{"sub": "user-1"})
	assert.True(t, IsExpiredAt(noExp, DefaultExpiryBuffer, now))
	assert.True(t, IsExpiredAt("garbage", DefaultExpiryBuffer, now))
}

func TestInspector(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	inspector := Inspector{Buffer: DefaultExpiryBuffer, Now: func() time.Time { return now }}

	valid := signToken(t, accessClaims(now, time.Hour))
	assert.True(t, inspector.Valid(valid))
	assert.False(t, inspector.Expired(valid))

	remaining, ok := inspector.Remaining(valid)
	require.True(t, ok)
	assert.Equal(t, time.Hour, remaining)

	_, ok = inspector.Remaining("a.b")
	assert.False(t, ok)

	assert.False(t, inspector.Valid(signToken(t, accessClaims(now, 2*time.Minute))))
}

func TestInfoAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{ttl: 50 * time.Hour, want: "2d 2h"},
		{ttl: 3*time.Hour + 15*time.Minute, want: "3h 15m"},
		{ttl: 42 * time.Minute, want: "42m"},
		{ttl: -time.Minute, want: "Expired"},
	}
	for _, tt := range tests {
		info := InfoAt(signToken(t, accessClaims(now, tt.ttl)), DefaultExpiryBuffer, now)
		assert.Equal(t, tt.want, info.TimeUntilExpiry)
		require.NotNil(t, info.ExpiresAt)
	}

	info := InfoAt("nope", DefaultExpiryBuffer, now)
	assert.Equal(t, "Unknown", info.TimeUntilExpiry)
	assert.False(t, info.Valid)
	assert.True(t, info.Expired)
	assert.Nil(t, info.Claims)
}

func TestValidateAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	result := ValidateAt("", DefaultExpiryBuffer, now)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"No token found"}, result.Errors)

	result = ValidateAt("x.y", DefaultExpiryBuffer, now)
	assert.Equal(t, []string{"Invalid token format"}, result.Errors)

	result = ValidateAt(signToken(t, accessClaims(now, 10*time.Minute)), DefaultExpiryBuffer, now)
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"Token expires soon (less than 15 minutes)"}, result.Warnings)

	result = ValidateAt(signToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(-time.Hour).Unix()}), DefaultExpiryBuffer, now)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Missing email in token")
	assert.Contains(t, result.Errors, "Missing role in token")
	assert.Contains(t, result.Errors, "Token is expired")
}

func TestProfileFromClaims(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	profile, ok := ProfileFromClaims(&model.Claims{Subject: "u-9", Email: "x@example.com", Role: "admin"}, now)
	require.True(t, ok)
	assert.Equal(t, "u-9", profile.ID)
	assert.Equal(t, "Unknown", profile.FirstName)
	assert.Equal(t, "User", profile.LastName)
	assert.Equal(t, model.RoleAdmin, profile.Role)
	assert.Equal(t, "2025-03-01T12:00:00Z", profile.CreatedAt)

	_, ok = ProfileFromClaims(&model.Claims{Email: "x@example.com"}, now)
	assert.False(t, ok)
	_, ok = ProfileFromClaims(nil, now)
	assert.False(t, ok)
}
