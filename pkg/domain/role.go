package domain

import "fmt"

// Role is the directory-assigned role of an identity. This core never
// manages roles; it only reads them to authorize gate operations.
type Role string

const (
	RoleMember Role = "member"
	RoleGuard  Role = "guard"
	RoleAdmin  Role = "admin"
)

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleMember, RoleGuard, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

func (r Role) String() string { return string(r) }

// IsStaff reports whether the role may operate the gate (and be attributed
// by identity in the ledger).
func (r Role) IsStaff() bool {
	return r == RoleGuard || r == RoleAdmin
}
