package models

import (
	"math"
	"strconv"
	"strings"
)

const (
	MetaRole        = "role"
	MetaFirstName   = "first_name"
	MetaLastName    = "last_name"
	MetaClientLimit = "client_limit"
)

// Identity is the authenticated principal issued by the identity provider.
// The application only ever holds a read-only copy.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RequestedRole returns the role carried in metadata at sign-up time, or
// DefaultRole when it is absent or not one of the known roles.
func (i Identity) RequestedRole() Role {
	if role, ok := ParseRole(i.metaString(MetaRole)); ok {
		return role
	}
	return DefaultRole
}

func (i Identity) FirstName() *string {
	return i.metaStringPtr(MetaFirstName)
}

func (i Identity) LastName() *string {
	return i.metaStringPtr(MetaLastName)
}

// ClientLimit accepts both JSON numbers and numeric strings.
func (i Identity) ClientLimit() *int {
	raw, ok := i.Metadata[MetaClientLimit]
	if !ok || raw == nil {
		return nil
	}
	var limit int
	switch v := raw.(type) {
	case int:
		limit = v
	case int64:
		limit = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		limit = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		limit = parsed
	default:
		return nil
	}
	if limit < 0 {
		return nil
	}
	return &limit
}

func (i Identity) metaString(key string) string {
	value, ok := i.Metadata[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func (i Identity) metaStringPtr(key string) *string {
	value := i.metaString(key)
	if value == "" {
		return nil
	}
	return &value
}

type SignUpInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Metadata builds the bag stored alongside a new identity.
func (in SignUpInput) Metadata() map[string]any {
	meta := map[string]any{}
	if role, ok := ParseRole(in.Role); ok {
		meta[MetaRole] = string(role)
	}
	if first := strings.TrimSpace(in.FirstName); first != "" {
		meta[MetaFirstName] = first
	}
	if last := strings.TrimSpace(in.LastName); last != "" {
		meta[MetaLastName] = last
	}
	return meta
}
