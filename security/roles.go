package security

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRole = errors.New("invalid role")

// TenantRole is the graded permission a user holds inside one workspace.
// The zero value means no role.
type TenantRole int

const (
	RoleNone TenantRole = iota
	RoleViewer
	RoleMember
	RoleAdmin
)

// Permits reports whether held satisfies required under Viewer < Member < Admin.
func Permits(required, held TenantRole) bool {
	return held.IsValid() && held >= required
}

func ParseTenantRole(s string) (TenantRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer, nil
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r TenantRole) IsValid() bool {
	return r >= RoleViewer && r <= RoleAdmin
}

func (r TenantRole) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleNone:
		return ""
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r TenantRole) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *TenantRole) UnmarshalText(text []byte) error {
	parsed, err := ParseTenantRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as its lowercase name.
func (r TenantRole) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return r.String(), nil
}

func (r *TenantRole) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = RoleNone
		return nil
	}
	return fmt.Errorf("%w: cannot scan %T", ErrInvalidRole, src)
}
