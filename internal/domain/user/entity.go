package user

import "time"

type Role string

const (
	RoleOwner    Role = "owner"    // Org owner - full access
	RoleManager  Role = "manager"  // Can approve requests and manage attendance
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID  string
	OrgID   string
	Role    Role
	RoleIDs []string
}

// HasRoleData is false when the identity carried no role information.
func (a Actor) HasRoleData() bool {
	return a.Role != ""
}

// HoldsRole reports whether any of the actor's role ids (or its role name)
// is in ids.
func (a Actor) HoldsRole(ids []string) bool {
	for _, id := range ids {
		if id == string(a.Role) && a.Role != "" {
			return true
		}
		for _, own := range a.RoleIDs {
			if own == id {
				return true
			}
		}
	}
	return false
}

// IsManager checks if actor is manager or owner
func (a Actor) IsManager() bool {
	return a.Role == RoleManager || a.Role == RoleOwner
}

// Member is a user's membership in an org, with the profile fields rules
// match against.
type Member struct {
	OrgID       string
	UserID      string
	DisplayName string
	Department  string
	Title       string
	RoleTags    []string
	Profile     map[string]interface{}
	Active      bool
	CreatedAt   time.Time
}
