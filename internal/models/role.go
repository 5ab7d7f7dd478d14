package models

import "strings"

type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
	RoleSolo    Role = "solo"

	DefaultRole = RoleSolo
)

func (r Role) Valid() bool {
	switch r {
	case RoleTrainer, RoleClient, RoleSolo:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalises value and reports whether it names a known role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	return role, role.Valid()
}
