package actions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/orderdesk/pkg/enums"
)

// statusField accepts a user status either by name or in the numeric form older clients
// send (1 enabled, 0 disabled).
type statusField struct {
	Set   bool
	Value enums.UserStatus
}

func (s *statusField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		status, err := enums.ParseUserStatus(name)
		if err != nil {
			return err
		}
		s.Set, s.Value = true, status
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status must be a name or 0/1")
	}
	switch n {
	case 1:
		s.Set, s.Value = true, enums.UserStatusEnabled
	case 0:
		s.Set, s.Value = true, enums.UserStatusDisabled
	default:
		return fmt.Errorf("status must be 0 or 1, got %d", n)
	}
	return nil
}

func (s statusField) ptr() *enums.UserStatus {
	if !s.Set {
		return nil
	}
	v := s.Value
	return &v
}
