package models

import "time"

// Role distinguishes donors from NGOs. A user who signed in through a social
// provider has an empty role until they choose one.
type Role string

const (
	RoleNone  Role = ""
	RoleDonor Role = "DONOR"
	RoleNGO   Role = "NGO"
)

// Valid reports whether r is a role a user can choose.
func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleNGO
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	IsStaff      bool      `json:"is_staff"`
	PasswordHash string    `json:"-"`
	EmailHash    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// IsDonor reports whether the user acts as a donor.
func (u *User) IsDonor() bool { return u != nil && u.Role == RoleDonor }

// IsNGO reports whether the user acts as an NGO.
func (u *User) IsNGO() bool { return u != nil && u.Role == RoleNGO }

// Session represents an active user session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}
