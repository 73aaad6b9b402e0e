package milestone

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
)

type UnitInput struct {
	ID         uuid.UUID       `json:"id"`
	Kind       repo.UnitKind   `json:"kind"`
	ProjectID  uuid.NullUUID   `json:"project_id"`
	ClientID   uuid.UUID       `json:"client_id"`
	AssigneeID uuid.NullUUID   `json:"assignee_id"`
	CategoryID uuid.NullUUID   `json:"category_id"`
	Title      string          `json:"title"`
	Budget     decimal.Decimal `json:"budget"`
	Currency   string          `json:"currency"`
}

// NewUnit builds the payment projection of a project or task.
func NewUnit(in UnitInput, currency string, now time.Time) (*repo.WorkUnit, error) {
	switch {
	case in.ID == uuid.Nil:
		return nil, invalid("id", ErrInvalidUnit)
	case !in.Kind.Valid():
		return nil, invalid("kind", ErrInvalidUnit)
	case in.Kind == repo.UnitTask && !in.ProjectID.Valid:
		return nil, invalid("project_id", ErrInvalidUnit)
	case in.Kind == repo.UnitProject && in.ProjectID.Valid:
		return nil, invalid("project_id", ErrInvalidUnit)
	case in.ClientID == uuid.Nil:
		return nil, invalid("client_id", ErrInvalidUnit)
	case in.Budget.IsNegative():
		return nil, invalid("budget", ErrInvalidUnit)
	}
	if c := strings.ToUpper(strings.TrimSpace(in.Currency)); c != "" {
		currency = c
	}

	return &repo.WorkUnit{
		ID:              in.ID,
		Kind:            in.Kind,
		ProjectID:       in.ProjectID,
		ClientID:        in.ClientID,
		AssigneeID:      in.AssigneeID,
		CategoryID:      in.CategoryID,
		Title:           strings.TrimSpace(in.Title),
		Budget:          money.Round(in.Budget, currency),
		Currency:        currency,
		Status:          "open",
		PaymentStatus:   repo.UnitPaymentPending,
		PaymentStrategy: repo.StrategyLumpSum,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

type MilestoneInput struct {
	ProjectID   uuid.NullUUID      `json:"project_id"`
	TaskID      uuid.NullUUID      `json:"task_id"`
	Title       string             `json:"title"`
	Amount      decimal.Decimal    `json:"amount"`
	Type        repo.MilestoneType `json:"milestone_type"`
	DueDate     *time.Time         `json:"due_date"`
	IsAutomated bool               `json:"is_automated"`
	// FundOnCreate places a hold on the client's wallet for an automated
	// payment milestone when it is created.
	FundOnCreate bool `json:"fund_on_create"`
}

// NewMilestone validates in and returns a pending milestone. Rules that
// need stored state (payment channel conflicts) are checked by
// Service.CreateMilestone.
func NewMilestone(in MilestoneInput, now time.Time) (*repo.Milestone, error) {
	if in.ProjectID.Valid == in.TaskID.Valid {
		return nil, invalid("project_id", ErrInvalidMilestoneAssociation)
	}
	if in.Type == "" {
		in.Type = repo.MilestonePayment
	}
	if !in.Type.Valid() {
		return nil, invalid("milestone_type", ErrInvalidMilestoneType)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", ErrInvalidUnit)
	}

	switch {
	case in.Type == repo.MilestoneProgress && !in.Amount.IsZero():
		return nil, invalid("amount", ErrProgressAmount)
	case in.Type.CarriesPayment() && !in.Amount.IsPositive():
		return nil, invalid("amount", ErrInvalidAmount)
	}

	return &repo.Milestone{
		ID:          repo.NewID(),
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		Title:       strings.TrimSpace(in.Title),
		Amount:      in.Amount,
		Type:        in.Type,
		Status:      repo.MilestonePending,
		DueDate:     in.DueDate,
		IsAutomated: in.IsAutomated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
