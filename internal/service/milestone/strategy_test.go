package milestone

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

func TestDeriveStrategy(t *testing.T) {
	tests := []struct {
		kind  repo.UnitKind
		own   bool
		other bool
		want  repo.PaymentStrategy
	}{
		{repo.UnitProject, false, false, repo.StrategyLumpSum},
		{repo.UnitProject, true, false, repo.StrategyProjectMilestones},
		{repo.UnitProject, false, true, repo.StrategyTaskMilestones},
		{repo.UnitTask, false, false, repo.StrategyLumpSum},
		{repo.UnitTask, true, false, repo.StrategyTaskMilestones},
		{repo.UnitTask, false, true, repo.StrategyProjectMilestones},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveStrategy(tt.kind, tt.own, tt.other), "%s own=%v other=%v", tt.kind, tt.own, tt.other)
	}
}

func ms(typ repo.MilestoneType, amount string, status repo.MilestoneStatus) *repo.Milestone {
	return &repo.Milestone{Type: typ, Amount: decimal.RequireFromString(amount), Status: status}
}

func TestMilestonePaymentStatus(t *testing.T) {
	zero := decimal.Zero
	tests := []struct {
		name   string
		budget decimal.Decimal
		in     []*repo.Milestone
		want   repo.UnitPaymentStatus
	}{
		{"none", zero, nil, repo.UnitPaymentPending},
		{"unpaid", zero, []*repo.Milestone{ms(repo.MilestoneHybrid, "600", repo.MilestoneApproved)}, repo.UnitPaymentPending},
		{"partial", zero, []*repo.Milestone{
			ms(repo.MilestoneHybrid, "600", repo.MilestonePaid),
			ms(repo.MilestoneHybrid, "400", repo.MilestonePending),
		}, repo.UnitPaymentPartial},
		{"covered", zero, []*repo.Milestone{
			ms(repo.MilestoneHybrid, "600", repo.MilestonePaid),
			ms(repo.MilestonePayment, "400", repo.MilestonePaid),
			ms(repo.MilestoneProgress, "0", repo.MilestonePending),
		}, repo.UnitPaymentCompleted},
		{"budget exceeds milestones", decimal.RequireFromString("1000"), []*repo.Milestone{
			ms(repo.MilestoneHybrid, "600", repo.MilestonePaid),
		}, repo.UnitPaymentPartial},
		{"milestones exceed budget", decimal.RequireFromString("500"), []*repo.Milestone{
			ms(repo.MilestonePayment, "300", repo.MilestonePaid),
			ms(repo.MilestonePayment, "300", repo.MilestonePaid),
		}, repo.UnitPaymentCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MilestonePaymentStatus(tt.budget, tt.in))
		})
	}
}
