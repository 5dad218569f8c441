// Package ability decides whether an actor may perform an action on a
// tenant-scoped subject. It is pure: no store access, no side effects.
package ability

// Role is the coarse permission level carried by a user account.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleMember   Role = "MEMBER"
	RoleEngineer Role = "ENGINEER"
)

// Status marks whether an account may act at all.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Actor is the authenticated principal for one request. It is built once at
// identity-resolution time and never mutated afterwards.
type Actor struct {
	ID                 int64
	Role               Role
	HomeOrganizationID *int64
	Status             Status
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Action enumerates the canonical operations subjects can be checked against.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceKind names a resource family.
type ResourceKind string

const (
	KindOrganization     ResourceKind = "Organization"
	KindUser             ResourceKind = "User"
	KindClient           ResourceKind = "Client"
	KindEquipment        ResourceKind = "Equipment"
	KindInstrument       ResourceKind = "Instrument"
	KindValve            ResourceKind = "Valve"
	KindBomb             ResourceKind = "Bomb"
	KindStorage          ResourceKind = "Storage"
	KindReport           ResourceKind = "Report"
	KindDocument         ResourceKind = "Document"
	KindAttachment       ResourceKind = "Attachment"
	KindCompanyUnit      ResourceKind = "CompanyUnit"
	KindDailyMaintenance ResourceKind = "DailyMaintenance"
)

// Kinds lists every known resource family.
func Kinds() []ResourceKind {
	return []ResourceKind{
		KindOrganization,
		KindUser,
		KindClient,
		KindEquipment,
		KindInstrument,
		KindValve,
		KindBomb,
		KindStorage,
		KindReport,
		KindDocument,
		KindAttachment,
		KindCompanyUnit,
		KindDailyMaintenance,
	}
}

// Subject identifies what is being acted on. A nil OrganizationID denotes a
// scope-free check such as "may create organizations at all".
type Subject struct {
	Kind           ResourceKind
	OrganizationID *int64
}

// ScopeFree builds a subject without a tenant scope.
func ScopeFree(kind ResourceKind) Subject {
	return Subject{Kind: kind}
}

// InOrganization builds a subject scoped to one tenant.
func InOrganization(kind ResourceKind, orgID int64) Subject {
	return Subject{Kind: kind, OrganizationID: &orgID}
}
