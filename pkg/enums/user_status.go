package enums

import "fmt"

// UserStatus tracks whether an account may act.
type UserStatus string

const (
	UserStatusEnabled  UserStatus = "enabled"
	UserStatusDisabled UserStatus = "disabled"
)

var validUserStatuses = []UserStatus{
	UserStatusEnabled,
	UserStatusDisabled,
}

// String implements fmt.Stringer.
func (s UserStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known UserStatus.
func (s UserStatus) IsValid() bool {
	for _, candidate := range validUserStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseUserStatus converts raw input into a UserStatus.
func ParseUserStatus(value string) (UserStatus, error) {
	for _, candidate := range validUserStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user status %q", value)
}
