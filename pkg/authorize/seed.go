package authorize

import (
	"context"
	"log/slog"
)

// DefaultPolicies is the baseline RBAC schedule of the ledger.
func DefaultPolicies() []PermissionPolicy {
	return []PermissionPolicy{
		{RoleSysSuperAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

		// Finance admins own the commission schedule and the money-moving
		// corrections (refunds, verification, manual status changes).
		{RoleFinanceAdmin, DomainSys, ResourceCommissionTier, ActionManage, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceSpecialRate, ActionManage, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceCommission, ActionManage, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceTransaction, ActionRefund, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceTransaction, ActionVerify, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceTransaction, ActionUpdate, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceAudit, ActionRead, EffectAllow},

		// Settlement agents drive unit lifecycle and milestones.
		{RoleSettlementAgent, DomainSys, ResourceWorkUnit, ActionManage, EffectAllow},
		{RoleSettlementAgent, DomainSys, ResourceMilestone, ActionManage, EffectAllow},
		{RoleSettlementAgent, DomainSys, ResourceMilestone, ActionExecute, EffectAllow},
		{RoleFinanceAdmin, DomainSys, ResourceMilestone, ActionExecute, EffectAllow},

		// Every account holder acts on their own wallet.
		{RoleUserSelf, WildcardDomain, ResourceWallet, ActionManage, EffectAllow},
		{RoleUserSelf, WildcardDomain, ResourceTransaction, ActionCreate, EffectAllow},
		{RoleUserSelf, WildcardDomain, ResourceTransaction, ActionRead, EffectAllow},
	}
}

// SeedDefaultPolicies installs DefaultPolicies. Existing rows are left alone.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	policies := DefaultPolicies()
	for _, p := range policies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(policies))
	return nil
}

// AssignUserSelfRole assigns the user:self role in the user's private domain.
func AssignUserSelfRole(ctx context.Context, auth IAuthorization, userID string) error {
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), RoleUserSelf, UserDomain(userID))
	return err
}

// AssignSystemRole assigns a platform role to a user.
func AssignSystemRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	switch role {
	case RoleFinanceAdmin, RoleSettlementAgent, RoleSysSuperAdmin:
	default:
		return ErrInvalidArgs
	}
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}

// RemoveSystemRole removes a platform role from a user.
func RemoveSystemRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	_, err := auth.RemoveRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}
