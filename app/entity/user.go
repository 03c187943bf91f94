package entity

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID             uint64
	Email          string
	CanonicalEmail string
	Name           string
	PasswordHash   string
	EmailVerified  bool
	Roles          []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRole reports whether role is among the user's roles.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
