package store

import (
	"fmt"
	"time"
)

// ResourceType identifies a level of the org -> workspace -> document chain.
type ResourceType string

const (
	ResourceOrg       ResourceType = "org"
	ResourceWorkspace ResourceType = "workspace"
	ResourceDoc       ResourceType = "doc"
)

// Role is an access level a grant confers on a resource.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
	// RoleNone is the terminal outcome when no grant applies. It is never
	// stored in role_grants.
	RoleNone Role = "none"
)

// roleStrength orders roles for picking the strongest grant at one level.
var roleStrength = map[Role]int{
	RoleOwner:  5,
	RoleEditor: 4,
	RoleViewer: 3,
	RoleMember: 2,
	RoleGuest:  1,
	RoleNone:   0,
}

// Stronger reports whether r confers at least as much access as other.
func (r Role) Stronger(other Role) bool {
	return roleStrength[r] >= roleStrength[other]
}

// Valid reports whether r is a storable role.
func (r Role) Valid() bool {
	s, ok := roleStrength[r]
	return ok && s > 0
}

// User is an authenticated principal. The auth collaborator owns creation;
// this core only ever reads it and sets PersonalOrgID once.
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	PersonalOrgID *int64    `json:"personal_org_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Organization is a tenant. A personal org has OwnerID set and no stored
// domain; a team org has a unique domain and no owner.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    *string   `json:"domain,omitempty"`
	OwnerID   *int64    `json:"owner_id,omitempty"`
	IsSupport bool      `json:"is_support,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPersonal reports whether the org is a user's personal organization.
func (o *Organization) IsPersonal() bool {
	return o.OwnerID != nil
}

// EffectiveDomain returns the stored domain for team orgs, or the computed
// docs-<n> domain for personal orgs. Personal domains are never persisted.
func (o *Organization) EffectiveDomain(idPrefix string) string {
	if o.OwnerID != nil {
		return fmt.Sprintf("docs-%s%d", idPrefix, *o.OwnerID)
	}
	if o.Domain != nil {
		return *o.Domain
	}
	return ""
}

// OrgID implements scope.Org.
func (o *Organization) OrgID() int64 { return o.ID }

// OrgDomain implements scope.Org.
func (o *Organization) OrgDomain() (string, bool) {
	if o.Domain == nil {
		return "", false
	}
	return *o.Domain, true
}

// OrgOwner implements scope.Org.
func (o *Organization) OrgOwner() (int64, bool) {
	if o.OwnerID == nil {
		return 0, false
	}
	return *o.OwnerID, true
}

// SupportOrg implements scope.Org.
func (o *Organization) SupportOrg() bool { return o.IsSupport }

// Workspace groups documents inside one organization. RemovedAt implements
// soft delete; removed workspaces stay fetchable for the retention window and
// are then purged.
type Workspace struct {
	ID        int64      `json:"id"`
	OrgID     int64      `json:"org_id"`
	Name      string     `json:"name"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Document lives inside a workspace; its organization is derived through the
// workspace. URLID is the short external identifier handed to clients.
type Document struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	Name        string     `json:"name"`
	URLID       string     `json:"url_id"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RoleGrant assigns a role on one resource to a user or a group. Exactly one
// of UserID and GroupID is set.
type RoleGrant struct {
	ID           int64        `json:"id"`
	UserID       *int64       `json:"user_id,omitempty"`
	GroupID      *int64       `json:"group_id,omitempty"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	Role         Role         `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
}

// AppliesTo reports whether the grant names userID directly or through one of
// the given group ids.
func (g *RoleGrant) AppliesTo(userID int64, groupIDs []int64) bool {
	if g.UserID != nil && *g.UserID == userID {
		return true
	}
	if g.GroupID != nil {
		for _, gid := range groupIDs {
			if gid == *g.GroupID {
				return true
			}
		}
	}
	return false
}
