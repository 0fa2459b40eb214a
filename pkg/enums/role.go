package enums

import "fmt"

// Role is the account-level role of a user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCS       Role = "cs"
	RoleSupplier Role = "supplier"
)

var validRoles = []Role{
	RoleAdmin,
	RoleCS,
	RoleSupplier,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// RequiresGame reports whether users with this role must belong to a game.
func (r Role) RequiresGame() bool {
	return r == RoleCS || r == RoleSupplier
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
