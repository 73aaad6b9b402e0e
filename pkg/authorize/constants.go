package authorize

import (
	"fmt"
	"regexp"
)

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionList   Action = "list"

	// Power actions
	ActionManage  Action = "manage"
	ActionExecute Action = "execute" // settle, fire, replay

	// Money movement
	ActionRefund Action = "refund"
	ActionVerify Action = "verify"

	// RBAC-specific actions
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

const (
	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionList: {},
	ActionManage: {}, ActionExecute: {},
	ActionRefund: {}, ActionVerify: {},
	ActionGrant: {}, ActionRevoke: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	// Money
	ResourceWallet      Resource = "wallet"
	ResourceTransaction Resource = "transaction"

	// Commission schedule
	ResourceCommission     Resource = "commission"
	ResourceCommissionTier Resource = "commission_tier"
	ResourceSpecialRate    Resource = "special_rate"

	// Work settlement
	ResourceWorkUnit  Resource = "work_unit"
	ResourceMilestone Resource = "milestone"

	// System / platform admin
	ResourceSystem Resource = "system"
	ResourceAudit  Resource = "audit"
	ResourceRBAC   Resource = "rbac"
)

var KnownResources = map[Resource]struct{}{
	ResourceWallet: {}, ResourceTransaction: {},
	ResourceCommission: {}, ResourceCommissionTier: {}, ResourceSpecialRate: {},
	ResourceWorkUnit: {}, ResourceMilestone: {},
	ResourceSystem: {}, ResourceAudit: {}, ResourceRBAC: {},
}

// ----------------------------
// Roles
// ----------------------------
//
// These are the "policy subjects" we assign to users via grouping policies.

const (
	WildcardRole Role = "*"

	// Platform roles (domain = sys)
	RoleSysSuperAdmin   Role = "role:sys:superadmin"
	RoleFinanceAdmin    Role = "role:sys:finance_admin"
	RoleSettlementAgent Role = "role:sys:settlement_agent" // marketplace services driving units and milestones

	// Private user scope (domain = user:<uuid>)
	RoleUserSelf Role = "role:user:self"
)

var KnownRoles = map[Role]struct{}{
	RoleSysSuperAdmin:   {},
	RoleFinanceAdmin:    {},
	RoleSettlementAgent: {},
	RoleUserSelf:        {},
}

var RoleDisplayNames = map[Role]string{
	RoleSysSuperAdmin:   "Platform super admin",
	RoleFinanceAdmin:    "Finance admin",
	RoleSettlementAgent: "Settlement agent",
	RoleUserSelf:        "Account owner",
}

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys Domain = "sys"
)

const (
	DomainPrefixUser Domain = "user:"
)

const (
	WildcardDomain Domain = "*"
)

var (
	reUUID = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

func UserDomain(userID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixUser, userID))
}

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}

	s := string(d)
	if len(s) > len(DomainPrefixUser) && s[:len(DomainPrefixUser)] == string(DomainPrefixUser) {
		return reUUID.MatchString(s[len(DomainPrefixUser):])
	}
	return false
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a concrete principal id (user_id or service_id).
type GroupSubject string

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
