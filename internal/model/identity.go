package model

import "slices"

// Role is the authorization role of a requester
type Role string

const (
	RoleEmployee Role = "employee"
	RoleFaculty  Role = "faculty"
	RoleAdmin    Role = "admin"
)

// IsFacultyScoped returns true if the role may submit jobs against a faculty
func (r Role) IsFacultyScoped() bool {
	return r == RoleEmployee || r == RoleFaculty
}

// IsElevated returns true if the role may read other users' jobs
func (r Role) IsElevated() bool {
	return r == RoleAdmin
}

// Identity is the authenticated requester as asserted by the gateway
type Identity struct {
	UserID    string   `json:"user_id"`
	Role      Role     `json:"role"`
	Faculties []string `json:"faculties,omitempty"`
}

// MemberOf returns true if the faculty is among the declared memberships
func (i Identity) MemberOf(faculty string) bool {
	return slices.Contains(i.Faculties, faculty)
}

// CanAccess returns true if the identity may read jobs owned by owner
func (i Identity) CanAccess(owner string) bool {
	return i.UserID != "" && (i.UserID == owner || i.Role.IsElevated())
}
