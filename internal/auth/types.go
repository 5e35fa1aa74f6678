package auth

import (
	"strings"
	"time"
)

// UserType classifies an account and selects the default scopes granted at
// token issuance.
type UserType string

const (
	UserTypeStandard     UserType = "standard"
	UserTypeOrganization UserType = "organization"
	UserTypeAdmin        UserType = "admin"
)

// Valid reports whether t is a known classification.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeStandard, UserTypeOrganization, UserTypeAdmin:
		return true
	}
	return false
}

// User is the persisted principal record. PasswordHash never leaves the
// process boundary.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Type        UserType  `json:"type"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`

	PasswordHash string `json:"-"`
}

// NormalizeEmail lower-cases and trims an address the way the store indexes it.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
