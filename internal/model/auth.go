package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      Role   `json:"role,omitempty"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is the body returned by the login and register endpoints.
type AuthResponse struct {
	User        *UserProfile `json:"user"`
	Tokens      TokenPair    `json:"tokens"`
	RedirectURL string       `json:"redirectUrl,omitempty"`
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResult carries the new access token. RefreshToken is empty when the
// backend keeps the existing one.
type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type TokenInfo struct {
	Valid           bool    `json:"valid"`
	Expired         bool    `json:"expired"`
	ExpiresAt       *string `json:"expiresAt"`
	TimeUntilExpiry string  `json:"timeUntilExpiry"`
	Claims          *Claims `json:"claims,omitempty"`
}

type TokenValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
