package entity

import (
	"database/sql/driver"
	"fmt"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent   Role = "student"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Capability names a single permission granted by a role.
type Capability string

const (
	CapOrdersCreate  Capability = "orders:create"
	CapOrdersViewOwn Capability = "orders:view_own"
	CapOrdersViewAll Capability = "orders:view_all"
	CapOrdersManage  Capability = "orders:manage"
	CapCatalogManage Capability = "catalog:manage"
	CapUsersManage   Capability = "users:manage"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleStudent: capSet(CapOrdersCreate, CapOrdersViewOwn),
	RoleModerator: capSet(CapOrdersCreate, CapOrdersViewOwn,
		CapOrdersViewAll, CapOrdersManage),
	RoleAdmin: capSet(CapOrdersCreate, CapOrdersViewOwn,
		CapOrdersViewAll, CapOrdersManage, CapCatalogManage, CapUsersManage),
}

func capSet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// ParseRole converts a raw string into a Role, rejecting anything outside the enum.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the role grants capability c. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = caps[c]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %q", string(r))
	}
	return string(r), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*r = RoleStudent
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Role", value)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
