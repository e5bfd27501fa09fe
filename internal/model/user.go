package model

import "strings"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleArtist   Role = "ARTIST"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes a role claim. Unknown roles are returned upper-cased
// with ok=false so callers can still display them.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleCustomer, RoleArtist, RoleAdmin:
		return role, true
	default:
		return role, false
	}
}

type UserProfile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         Role   `json:"role"`
	ProfileImage string `json:"profileImage,omitempty"`
	CreatedAt    string `json:"createdAt"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Claims is the decoded, unverified payload of an access or refresh token.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

func (c *Claims) HasExpiry() bool {
	return c != nil && c.ExpiresAt > 0
}
