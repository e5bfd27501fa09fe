package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-art-session/internal/model"
)

const (
	DefaultExpiryBuffer = 5 * time.Minute
	expiresSoonWarning  = 15 * time.Minute
)

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode reads the claims segment of a token without verifying its signature.
// Any structural problem yields model.ErrMalformedToken.
func Decode(token string) (*model.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.ErrMalformedToken
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", model.ErrMalformedToken, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedToken, err)
	}

	var raw jwt.MapClaims
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", model.ErrMalformedToken)
	}

	claims := &model.Claims{}
	claims.Subject, _ = raw.GetSubject()
	claims.Email, _ = raw["email"].(string)
	claims.Role, _ = raw["role"].(string)
	claims.FirstName, _ = raw["firstName"].(string)
	claims.LastName, _ = raw["lastName"].(string)

	if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Unix()
	}
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Unix()
	}

	return claims, nil
}

// Inspector judges token validity against a clock and an expiry buffer.
type Inspector struct {
	Buffer time.Duration
	Now    func() time.Time
}

func NewInspector(buffer time.Duration) Inspector {
	if buffer < 0 {
		buffer = DefaultExpiryBuffer
	}
	return Inspector{Buffer: buffer, Now: time.Now}
}

func (i Inspector) now() time.Time {
	if i.Now == nil {
		return time.Now()
	}
	return i.Now()
}

func (i Inspector) Expired(token string) bool {
	return IsExpiredAt(token, i.Buffer, i.now())
}

func (i Inspector) Valid(token string) bool {
	return IsValidAt(token, i.Buffer, i.now())
}

// Remaining returns time until exp, or false when the token has no readable expiry.
func (i Inspector) Remaining(token string) (time.Duration, bool) {
	claims, err := Decode(token)
	if err != nil || !claims.HasExpiry() {
		return 0, false
	}
	return time.Unix(claims.ExpiresAt, 0).Sub(i.now()), true
}

func (i Inspector) Info(token string) model.TokenInfo {
	return InfoAt(token, i.Buffer, i.now())
}

func (i Inspector) Validate(token string) model.TokenValidation {
	return ValidateAt(token, i.Buffer, i.now())
}

func IsExpired(token string, buffer time.Duration) bool {
	return IsExpiredAt(token, buffer, time.Now())
}

func IsExpiredAt(token string, buffer time.Duration, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil || !claims.HasExpiry() {
		return true
	}
	return claims.ExpiresAt <= now.Add(buffer).Unix()
}

func IsValid(token string) bool {
	return IsValidAt(token, DefaultExpiryBuffer, time.Now())
}

func IsValidAt(token string, buffer time.Duration, now time.Time) bool {
	if _, err := Decode(token); err != nil {
		return false
	}
	return !IsExpiredAt(token, buffer, now)
}

func InfoAt(token string, buffer time.Duration, now time.Time) model.TokenInfo {
	info := model.TokenInfo{
		Valid:           IsValidAt(token, buffer, now),
		Expired:         IsExpiredAt(token, buffer, now),
		TimeUntilExpiry: "Unknown",
	}

	claims, err := Decode(token)
	if err != nil {
		return info
	}
	info.Claims = claims

	if !claims.HasExpiry() {
		return info
	}

	expiresAt := time.Unix(claims.ExpiresAt, 0).UTC()
	formatted := expiresAt.Format(time.RFC3339)
	info.ExpiresAt = &formatted
	info.TimeUntilExpiry = humanizeRemaining(expiresAt.Sub(now))

	return info
}

func humanizeRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}

	minutes := int(d / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func ValidateAt(token string, buffer time.Duration, now time.Time) model.TokenValidation {
	result := model.TokenValidation{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(token) == "" {
		result.Errors = append(result.Errors, "No token found")
		return result
	}

	claims, err := Decode(token)
	if err != nil {
		result.Errors = append(result.Errors, "Invalid token format")
		return result
	}

	if claims.Subject == "" {
		result.Errors = append(result.Errors, "Missing user ID in token")
	}
	if claims.Email == "" {
		result.Errors = append(result.Errors, "Missing email in token")
	}
	if claims.Role == "" {
		result.Errors = append(result.Errors, "Missing role in token")
	}
	if !claims.HasExpiry() {
		result.Errors = append(result.Errors, "Missing expiration in token")
	}

	if IsExpiredAt(token, buffer, now) {
		result.Errors = append(result.Errors, "Token is expired")
	} else if time.Unix(claims.ExpiresAt, 0).Sub(now) < expiresSoonWarning {
		result.Warnings = append(result.Warnings, "Token expires soon (less than 15 minutes)")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ProfileFromClaims builds a provisional profile for a token whose owner has
// no cached profile yet.
func ProfileFromClaims(claims *model.Claims, now time.Time) (model.UserProfile, bool) {
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return model.UserProfile{}, false
	}

	firstName := claims.FirstName
	if firstName == "" {
		firstName = "Unknown"
	}
	lastName := claims.LastName
	if lastName == "" {
		lastName = "User"
	}
	role, _ := model.ParseRole(claims.Role)

	return model.UserProfile{
		ID:        claims.Subject,
		Email:     claims.Email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      role,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}, true
}
