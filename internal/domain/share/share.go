package share

import "fmt"

// Permission is a share permission level.
type Permission string

const (
	// PermissionRead grants SELECT on the collection's table.
	PermissionRead Permission = "read"
	// PermissionWrite grants SELECT, INSERT, UPDATE and DELETE.
	PermissionWrite Permission = "write"
)

// ParsePermission maps the wire representation to a Permission.
func ParsePermission(s string) (Permission, error) {
	switch Permission(s) {
	case PermissionRead:
		return PermissionRead, nil
	case PermissionWrite:
		return PermissionWrite, nil
	default:
		return "", fmt.Errorf("unknown permission level: %q", s)
	}
}

// Privileges returns the table privileges this permission grants.
func (p Permission) Privileges() []string {
	if p == PermissionWrite {
		return []string{"SELECT", "INSERT", "UPDATE", "DELETE"}
	}
	return []string{"SELECT"}
}

// PrincipalType distinguishes user grantees from group grantees.
type PrincipalType string

const (
	// PrincipalUser is an individual user role.
	PrincipalUser PrincipalType = "user"
	// PrincipalGroup is a group role with member edges.
	PrincipalGroup PrincipalType = "group"
)

// ParsePrincipalType maps the wire representation to a PrincipalType.
func ParsePrincipalType(s string) (PrincipalType, error) {
	switch PrincipalType(s) {
	case PrincipalUser:
		return PrincipalUser, nil
	case PrincipalGroup:
		return PrincipalGroup, nil
	default:
		return "", fmt.Errorf("unknown principal type: %q", s)
	}
}

// Entry is one grantee of a collection, derived from live grants.
type Entry struct {
	Principal     string
	PrincipalType PrincipalType
	Permission    Permission
}

// Classify derives an Entry from a grantee's observed privileges and
// whether the grantee role has any member edges. Write wins over read as
// soon as any mutating privilege is present; any membership edge makes
// the grantee a group.
func Classify(grantee string, privileges []string, hasMembers bool) Entry {
	perm := PermissionRead
	for _, p := range privileges {
		switch p {
		case "INSERT", "UPDATE", "DELETE":
			perm = PermissionWrite
		}
	}
	pt := PrincipalUser
	if hasMembers {
		pt = PrincipalGroup
	}
	return Entry{Principal: grantee, PrincipalType: pt, Permission: perm}
}
