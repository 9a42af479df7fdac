package domain

import "strings"

type Role string

const (
	RoleBuyer Role = "buyer"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ParseRole maps a claim value onto a known role, defaulting to buyer.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStaff:
		return RoleStaff
	default:
		return RoleBuyer
	}
}

func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Identity is the authenticated principal of one connection.
// It is captured once after verification and never mutated afterwards.
type Identity struct {
	UserID      int64  `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}
