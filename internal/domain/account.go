package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Confirmed    bool
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

type TokenPurpose string

const (
	TokenPasswordReset TokenPurpose = "password_reset"
	TokenConfirmEmail  TokenPurpose = "confirm_email"
)

// OneTimeToken est stocké haché ; la valeur claire ne transite que par le mailer.
type OneTimeToken struct {
	Hash      string
	UserID    string
	Purpose   TokenPurpose
	ExpiresAt time.Time
}

const MinPasswordLength = 6

func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", Invalid("email", "must be a valid address")
	}
	return email, nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return Invalid("password", "must be at least 6 characters")
	}
	return nil
}
