package authorize

type (
	Action   string
	Resource string
	Role     string
)

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionList    Action = "list"
	ActionExecute Action = "execute" // run an import, generate a report

	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {},
	ActionList: {}, ActionExecute: {},
}

const (
	ResourcePatient       Resource = "patient"
	ResourceClinicalEvent Resource = "clinical_event"
	ResourceReport        Resource = "report"
	ResourceDocument      Resource = "document"
	ResourceProfile       Resource = "profile"
	ResourceClinic        Resource = "clinic"
	ResourceImport        Resource = "import"
	ResourceSync          Resource = "sync"

	WildcardResource Resource = "*"
)

var KnownResources = map[Resource]struct{}{
	ResourcePatient: {}, ResourceClinicalEvent: {}, ResourceReport: {},
	ResourceDocument: {}, ResourceProfile: {}, ResourceClinic: {},
	ResourceImport: {}, ResourceSync: {},
}

// Roles match the role stored on the account profile.
const (
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

var KnownRoles = map[Role]struct{}{
	RoleDoctor: {},
	RoleAdmin:  {},
}

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// Permission rows: p, role, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}

// Inheritance rows: g, role, inherited role
type RoleInheritance struct {
	Role     Role
	Inherits Role
}
