package models

import (
	"strings"
	"time"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"passwordHash"`
	PointsBalance int64     `json:"pointsBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NormalizeEmail trims and lower-cases an address so lookups and the admin
// allow-list compare the same form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

const EmailCodePurposeRegister = "register"

type EmailCode struct {
	Email         string    `json:"email"`
	CodeHash      string    `json:"codeHash"`
	Purpose       string    `json:"purpose"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CooldownUntil time.Time `json:"cooldownUntil"`
}
