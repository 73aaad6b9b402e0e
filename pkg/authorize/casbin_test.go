package authorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

const testModel = `[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act, eft

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub, r.dom) && (p.dom == "*" || p.dom == r.dom) && (p.obj == "*" || p.obj == r.obj) && (p.act == "*" || p.act == r.act || p.act == "manage")
`

// createTestEnforcer creates a file-backed Casbin enforcer in a temp dir.
func createTestEnforcer(t *testing.T) *casbin.DistributedEnforcer {
	t.Helper()

	tmpDir := t.TempDir()
	modelPath := filepath.Join(tmpDir, "model.conf")
	if err := os.WriteFile(modelPath, []byte(testModel), 0644); err != nil {
		t.Fatalf("failed to write model file: %v", err)
	}
	policyPath := filepath.Join(tmpDir, "policy.csv")
	if err := os.WriteFile(policyPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	e, err := casbin.NewDistributedEnforcer(modelPath, fileadapter.NewAdapter(policyPath))
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}
	e.EnableAutoSave(false)
	e.EnableEnforce(true)
	return e
}

func newSeededAuth(t *testing.T) IAuthorization {
	t.Helper()
	auth, err := NewAuthorization(createTestEnforcer(t))
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}
	if err := SeedDefaultPolicies(context.Background(), auth); err != nil {
		t.Fatalf("SeedDefaultPolicies: %v", err)
	}
	return auth
}

func TestNewAuthorization(t *testing.T) {
	t.Run("returns error for nil enforcer", func(t *testing.T) {
		if _, err := NewAuthorization(nil); err == nil {
			t.Error("Expected error for nil enforcer")
		}
	})

	t.Run("succeeds with valid enforcer", func(t *testing.T) {
		auth, err := NewAuthorization(createTestEnforcer(t))
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if auth == nil {
			t.Error("Expected non-nil authorization")
		}
	})
}

func TestEnforce_DefaultPolicies(t *testing.T) {
	auth := newSeededAuth(t)
	ctx := context.Background()

	const (
		admin  = "2b6f0f43-3f0e-4d59-9d6b-0f5ae43c1a01"
		agent  = "2b6f0f43-3f0e-4d59-9d6b-0f5ae43c1a02"
		alice  = "2b6f0f43-3f0e-4d59-9d6b-0f5ae43c1a03"
		mallet = "2b6f0f43-3f0e-4d59-9d6b-0f5ae43c1a04"
	)
	if err := AssignSystemRole(ctx, auth, admin, RoleFinanceAdmin); err != nil {
		t.Fatalf("assign admin: %v", err)
	}
	if err := AssignSystemRole(ctx, auth, agent, RoleSettlementAgent); err != nil {
		t.Fatalf("assign agent: %v", err)
	}
	if err := AssignUserSelfRole(ctx, auth, alice); err != nil {
		t.Fatalf("assign self: %v", err)
	}

	tests := []struct {
		name     string
		subject  string
		domain   Domain
		resource Resource
		action   Action
		want     bool
	}{
		{"finance admin manages tiers", admin, DomainSys, ResourceCommissionTier, ActionCreate, true},
		{"finance admin refunds", admin, DomainSys, ResourceTransaction, ActionRefund, true},
		{"finance admin verifies", admin, DomainSys, ResourceTransaction, ActionVerify, true},
		{"agent cannot refund", agent, DomainSys, ResourceTransaction, ActionRefund, false},
		{"agent drives milestones", agent, DomainSys, ResourceMilestone, ActionExecute, true},
		{"agent registers units", agent, DomainSys, ResourceWorkUnit, ActionCreate, true},
		{"owner manages own wallet", alice, UserDomain(alice), ResourceWallet, ActionUpdate, true},
		{"owner pays", alice, UserDomain(alice), ResourceTransaction, ActionCreate, true},
		{"owner cannot refund", alice, UserDomain(alice), ResourceTransaction, ActionRefund, false},
		{"stranger has no wallet access", mallet, UserDomain(alice), ResourceWallet, ActionRead, false},
		{"owner role does not cross domains", alice, UserDomain(mallet), ResourceWallet, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Enforce(ctx, GroupSubject(tt.subject), tt.domain, tt.resource, tt.action)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnforce_InvalidArguments(t *testing.T) {
	auth := newSeededAuth(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		subject  GroupSubject
		domain   Domain
		resource Resource
		action   Action
	}{
		{"empty subject", "", DomainSys, ResourceWallet, ActionRead},
		{"invalid domain", "u", Domain("invalid"), ResourceWallet, ActionRead},
		{"unknown resource", "u", DomainSys, Resource("unknown"), ActionRead},
		{"unknown action", "u", DomainSys, ResourceWallet, Action("unknown")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Enforce(ctx, tt.subject, tt.domain, tt.resource, tt.action)
			if !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("Expected ErrInvalidArgs, got %v", err)
			}
		})
	}
}

func TestMustEnforce(t *testing.T) {
	auth := newSeededAuth(t)
	ctx := context.Background()
	userID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	if err := AssignSystemRole(ctx, auth, userID, RoleFinanceAdmin); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if err := auth.MustEnforce(ctx, GroupSubject(userID), DomainSys, ResourceSpecialRate, ActionCreate); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := auth.MustEnforce(ctx, GroupSubject(userID), DomainSys, ResourceRBAC, ActionGrant); err != ErrForbidden {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestSuperAdminBypass(t *testing.T) {
	auth, _ := NewAuthorization(createTestEnforcer(t))
	ctx := context.Background()

	adminID := "super-admin-id"
	if _, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(adminID), RoleSysSuperAdmin, DomainSys); err != nil {
		t.Fatalf("Failed to add superadmin role: %v", err)
	}

	allowed, err := auth.Enforce(ctx, GroupSubject(adminID), DomainSys, ResourceRBAC, ActionRevoke)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !allowed {
		t.Error("Expected superadmin to be allowed")
	}
}

func TestRoleManagement(t *testing.T) {
	auth, _ := NewAuthorization(createTestEnforcer(t))
	ctx := context.Background()
	userID := "user-789"

	added, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), RoleFinanceAdmin, DomainSys)
	if err != nil || !added {
		t.Fatalf("add role: added=%v err=%v", added, err)
	}
	roles, err := auth.GetRolesForUserInDomain(ctx, GroupSubject(userID), DomainSys)
	if err != nil {
		t.Fatalf("get roles: %v", err)
	}
	if len(roles) != 1 || roles[0] != RoleFinanceAdmin {
		t.Errorf("roles = %v, want [%s]", roles, RoleFinanceAdmin)
	}

	if err := RemoveSystemRole(ctx, auth, userID, RoleFinanceAdmin); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	roles, _ = auth.GetRolesForUserInDomain(ctx, GroupSubject(userID), DomainSys)
	if len(roles) != 0 {
		t.Errorf("Expected 0 roles after removal, got %d", len(roles))
	}

	if _, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), Role("invalid-role"), DomainSys); err == nil {
		t.Error("Expected error for invalid role")
	}
	if err := AssignSystemRole(ctx, auth, userID, RoleUserSelf); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("Expected ErrInvalidArgs for a non-platform role, got %v", err)
	}
}

func TestPermissionManagement(t *testing.T) {
	auth, _ := NewAuthorization(createTestEnforcer(t))
	ctx := context.Background()

	added, err := auth.AddPermission(ctx, RoleSettlementAgent, DomainSys, ResourceAudit, ActionRead, EffectAllow)
	if err != nil || !added {
		t.Fatalf("add permission: added=%v err=%v", added, err)
	}
	removed, err := auth.RemovePermission(ctx, RoleSettlementAgent, DomainSys, ResourceAudit, ActionRead, EffectAllow)
	if err != nil || !removed {
		t.Fatalf("remove permission: removed=%v err=%v", removed, err)
	}

	if _, err := auth.AddPermission(ctx, RoleFinanceAdmin, DomainSys, ResourceWallet, ActionRead, PolicyEffect("invalid")); err == nil {
		t.Error("Expected error for invalid effect")
	}
}
