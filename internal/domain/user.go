package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleTailor   Role = "tailor"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCustomer:
		return RoleCustomer, true
	case RoleTailor:
		return RoleTailor, true
	}
	return "", false
}

type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Role      Role     `json:"role"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
}

// Session is the client-side view of an authenticated user.
// An empty RefreshToken means the session cannot renew itself.
type Session struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	CurrentUser     *User
}

func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

func (s Session) CanRenew() bool {
	return s.RefreshToken != ""
}
