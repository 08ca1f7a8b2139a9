package authorize

// DefaultModel is RBAC with role inheritance and explicit deny.
const DefaultModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || keyMatch(r.obj, p.obj)) && (p.act == "*" || r.act == p.act)
`

// DefaultPolicies grants doctors the clinical workflow. Admins inherit it
// and are the only role allowed to run bulk imports.
func DefaultPolicies() ([]PermissionPolicy, []RoleInheritance) {
	p := []PermissionPolicy{
		{RoleDoctor, ResourcePatient, WildcardAction, EffectAllow},
		{RoleDoctor, ResourceClinicalEvent, WildcardAction, EffectAllow},
		{RoleDoctor, ResourceReport, ActionRead, EffectAllow},
		{RoleDoctor, ResourceReport, ActionExecute, EffectAllow},
		{RoleDoctor, ResourceDocument, ActionRead, EffectAllow},
		{RoleDoctor, ResourceProfile, ActionRead, EffectAllow},
		{RoleDoctor, ResourceProfile, ActionUpdate, EffectAllow},
		{RoleDoctor, ResourceClinic, ActionRead, EffectAllow},
		{RoleDoctor, ResourceClinic, ActionList, EffectAllow},
		{RoleDoctor, ResourceSync, ActionRead, EffectAllow},
		{RoleDoctor, ResourceSync, ActionCreate, EffectAllow},

		{RoleAdmin, ResourceImport, ActionExecute, EffectAllow},
	}
	g := []RoleInheritance{
		{RoleAdmin, RoleDoctor},
	}
	return p, g
}
