package milestone

import (
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

// DeriveStrategy picks the single automation path of a unit. own reports
// payment-carrying milestones on the unit itself; other reports them on the
// other level (the tasks of a project, or the project of a task).
func DeriveStrategy(kind repo.UnitKind, own, other bool) repo.PaymentStrategy {
	switch {
	case own && kind == repo.UnitProject:
		return repo.StrategyProjectMilestones
	case own:
		return repo.StrategyTaskMilestones
	case other && kind == repo.UnitProject:
		return repo.StrategyTaskMilestones
	case other:
		return repo.StrategyProjectMilestones
	}
	return repo.StrategyLumpSum
}

func carriesPayment(ms []*repo.Milestone) bool {
	for _, m := range ms {
		if m.Type.CarriesPayment() {
			return true
		}
	}
	return false
}

// MilestonePaymentStatus is completed once paid payment/hybrid totals cover
// what the unit is due, partial while some are paid. A unit is due the larger
// of its budget and the sum of its payment/hybrid milestones.
func MilestonePaymentStatus(budget decimal.Decimal, ms []*repo.Milestone) repo.UnitPaymentStatus {
	due, paid := decimal.Zero, decimal.Zero
	for _, m := range ms {
		if !m.Type.CarriesPayment() {
			continue
		}
		due = due.Add(m.Amount)
		if m.Status == repo.MilestonePaid {
			paid = paid.Add(m.Amount)
		}
	}
	due = decimal.Max(due, budget)
	switch {
	case due.IsPositive() && paid.GreaterThanOrEqual(due):
		return repo.UnitPaymentCompleted
	case paid.IsPositive():
		return repo.UnitPaymentPartial
	}
	return repo.UnitPaymentPending
}

// TasksPaymentStatus rolls task payment statuses up to their project.
func TasksPaymentStatus(tasks []*repo.WorkUnit) repo.UnitPaymentStatus {
	if len(tasks) == 0 {
		return repo.UnitPaymentPending
	}
	done, started := 0, 0
	for _, t := range tasks {
		switch t.PaymentStatus {
		case repo.UnitPaymentCompleted:
			done++
			started++
		case repo.UnitPaymentPartial:
			started++
		}
	}
	switch {
	case done == len(tasks):
		return repo.UnitPaymentCompleted
	case started > 0:
		return repo.UnitPaymentPartial
	}
	return repo.UnitPaymentPending
}
