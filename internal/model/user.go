package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleSuperAdmin     Role = "super-admin"
	RoleAdminDistance1 Role = "admin-distance1"
	RoleAdminDistance2 Role = "admin-distance2"
)

var knownRoles = map[Role]struct{}{
	RoleSuperAdmin:     {},
	RoleAdminDistance1: {},
	RoleAdminDistance2: {},
}

// ParseRole accepts only the closed set of roles understood by the route gates.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownRoles[role]; !ok {
		return "", false
	}
	return role, true
}

func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	LastLogin    *time.Time `json:"last_login"`
	LastIP       *string    `json:"last_ip"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AuthClaims is the validated content of an access token.
type AuthClaims struct {
	UserID    string    `json:"sub"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u User) Sanitized() AuthUser {
	return AuthUser{ID: u.ID, Username: u.Username, Role: u.Role}
}

type LoginResult struct {
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	User      AuthUser  `json:"user"`
}

type AuditLogEntry struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      Role       `json:"role"`
	LastLogin *time.Time `json:"last_login"`
	LastIP    *string    `json:"last_ip"`
}
