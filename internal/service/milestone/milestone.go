package milestone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/payment"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/events"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/observability"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	RegisterUnit(ctx context.Context, in UnitInput) (*repo.WorkUnit, error)
	GetUnit(ctx context.Context, id uuid.UUID) (*repo.WorkUnit, error)
	RecomputeStrategy(ctx context.Context, unitID uuid.UUID) (*repo.WorkUnit, error)

	CreateMilestone(ctx context.Context, in MilestoneInput) (*repo.Milestone, error)
	GetMilestone(ctx context.Context, id uuid.UUID) (*repo.Milestone, error)
	ListMilestones(ctx context.Context, unitID uuid.UUID) ([]*repo.Milestone, error)

	// Approve moves a pending milestone to approved. Automated
	// payment-carrying milestones are then paid in a second scope; if that
	// fails the milestone stays approved and MarkPaid can be retried.
	Approve(ctx context.Context, id uuid.UUID) (*Outcome, error)
	// MarkPaid settles an approved milestone. Calling it again is a no-op.
	MarkPaid(ctx context.Context, id uuid.UUID) (*Outcome, error)

	// HandleUnitStatus applies a lifecycle signal and fires the lump-sum
	// payment when a lump_sum unit completes. Safe to redeliver.
	HandleUnitStatus(ctx context.Context, sig events.UnitStatusSignal) (*Outcome, error)
}

// Outcome reports what a settlement step did.
type Outcome struct {
	Unit        *repo.WorkUnit    `json:"unit,omitempty"`
	Milestone   *repo.Milestone   `json:"milestone,omitempty"`
	Transaction *repo.Transaction `json:"transaction,omitempty"`
	// Noop is set when the call changed nothing (already paid, already
	// auto-paid, not eligible).
	Noop bool `json:"noop"`
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type milestoneService struct {
	store    repo.Store
	payments payment.Service
	ledger   *wallet.Ledger
	metrics  *observability.LedgerMetrics
	now      func() time.Time
}

func New(store repo.Store, payments payment.Service, ledger *wallet.Ledger, metrics *observability.LedgerMetrics) Service {
	if metrics == nil {
		metrics = observability.NewLedgerMetrics()
	}
	return &milestoneService{
		store:    store,
		payments: payments,
		ledger:   ledger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// settleError marks a failure of the payment leg so the caller can append
// the failed transaction once the scope has rolled back.
type settleError struct {
	req payment.CreateRequest
	err error
}

func (e *settleError) Error() string { return e.err.Error() }
func (e *settleError) Unwrap() error { return e.err }

func (s *milestoneService) recordSettleFailure(ctx context.Context, err error) error {
	var se *settleError
	if !errors.As(err, &se) {
		return err
	}
	// Validation failures never produced a transaction to fail.
	if errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, payment.ErrSameParty) {
		return se.err
	}
	failed, ferr := s.payments.RecordFailure(ctx, se.req, se.err)
	if ferr != nil {
		return errors.Join(se.err, ferr)
	}
	return &payment.FailedError{Transaction: failed, Err: se.err}
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

func (s *milestoneService) RegisterUnit(ctx context.Context, in UnitInput) (*repo.WorkUnit, error) {
	u, err := NewUnit(in, s.ledger.Currency(), s.now())
	if err != nil {
		return nil, err
	}

	var out *repo.WorkUnit
	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		if u.Kind == repo.UnitTask {
			if _, err := q.GetWorkUnit(ctx, u.ProjectID.UUID); err != nil {
				if repo.IsNotFound(err) {
					return invalid("project_id", ErrUnitNotFound)
				}
				return err
			}
		}
		if err := q.UpsertWorkUnit(ctx, u); err != nil {
			return fmt.Errorf("upsert unit: %w", err)
		}
		unit, err := q.LockWorkUnit(ctx, u.ID)
		if err != nil {
			return err
		}
		if unit.Kind != u.Kind {
			return invalid("kind", ErrInvalidUnit)
		}
		if err := s.recompute(ctx, q, unit); err != nil {
			return err
		}
		out = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("work unit registered", "unit_id", out.ID, "kind", out.Kind, "strategy", out.PaymentStrategy)
	return out, nil
}

func (s *milestoneService) GetUnit(ctx context.Context, id uuid.UUID) (*repo.WorkUnit, error) {
	u, err := s.store.GetWorkUnit(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return u, nil
}

func lockUnit(ctx context.Context, q repo.Queries, id uuid.UUID) (*repo.WorkUnit, error) {
	u, err := q.LockWorkUnit(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *milestoneService) RecomputeStrategy(ctx context.Context, unitID uuid.UUID) (*repo.WorkUnit, error) {
	var out *repo.WorkUnit
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		u, err := lockUnit(ctx, q, unitID)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, q, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// recompute refreshes the strategy of u and, for a task, of its project.
// The caller holds u's lock.
func (s *milestoneService) recompute(ctx context.Context, q repo.Queries, u *repo.WorkUnit) error {
	if err := s.refreshStrategy(ctx, q, u); err != nil {
		return err
	}
	if u.Kind == repo.UnitTask && u.ProjectID.Valid {
		project, err := lockUnit(ctx, q, u.ProjectID.UUID)
		if err != nil {
			return err
		}
		return s.refreshStrategy(ctx, q, project)
	}
	return nil
}

func (s *milestoneService) refreshStrategy(ctx context.Context, q repo.Queries, u *repo.WorkUnit) error {
	strategy, err := s.deriveStrategy(ctx, q, u)
	if err != nil {
		return err
	}
	if strategy == u.PaymentStrategy {
		return nil
	}
	slog.Info("payment strategy changed", "unit_id", u.ID, "from", u.PaymentStrategy, "to", strategy)
	u.PaymentStrategy = strategy
	u.UpdatedAt = s.now()
	return q.UpdateWorkUnit(ctx, u)
}

func (s *milestoneService) deriveStrategy(ctx context.Context, q repo.Queries, u *repo.WorkUnit) (repo.PaymentStrategy, error) {
	own, err := q.ListMilestones(ctx, u.Kind, u.ID)
	if err != nil {
		return "", fmt.Errorf("list milestones: %w", err)
	}

	other := false
	switch u.Kind {
	case repo.UnitProject:
		tasks, err := q.ListTasks(ctx, u.ID)
		if err != nil {
			return "", fmt.Errorf("list tasks: %w", err)
		}
		for _, t := range tasks {
			ms, err := q.ListMilestones(ctx, repo.UnitTask, t.ID)
			if err != nil {
				return "", fmt.Errorf("list milestones: %w", err)
			}
			if carriesPayment(ms) {
				other = true
				break
			}
		}
	case repo.UnitTask:
		if u.ProjectID.Valid {
			ms, err := q.ListMilestones(ctx, repo.UnitProject, u.ProjectID.UUID)
			if err != nil {
				return "", fmt.Errorf("list milestones: %w", err)
			}
			other = carriesPayment(ms)
		}
	}
	return DeriveStrategy(u.Kind, carriesPayment(own), other), nil
}

// ---------------------------------------------------------------------------
// Milestones
// ---------------------------------------------------------------------------

func (s *milestoneService) CreateMilestone(ctx context.Context, in MilestoneInput) (*repo.Milestone, error) {
	m, err := NewMilestone(in, s.now())
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		kind, id := m.Owner()
		owner, err := lockUnit(ctx, q, id)
		if err != nil {
			return err
		}
		if owner.Kind != kind {
			return invalid("task_id", ErrInvalidMilestoneAssociation)
		}
		// Units are locked before wallets.
		if owner.Kind == repo.UnitTask && owner.ProjectID.Valid {
			if _, err := lockUnit(ctx, q, owner.ProjectID.UUID); err != nil {
				return err
			}
		}

		if m.Type.CarriesPayment() {
			if err := s.checkChannel(ctx, q, owner); err != nil {
				return err
			}
		}

		if in.FundOnCreate && m.IsAutomated && m.Type.CarriesPayment() {
			w, err := s.ledger.Lock(ctx, q, owner.ClientID)
			if err != nil {
				return err
			}
			hold, err := s.ledger.Apply(ctx, q, w, wallet.Movement{
				Kind: wallet.Reserve, Type: repo.WalletTxHold, Amount: m.Amount,
				Options: wallet.Options{
					Description: "funding for milestone " + m.Title,
					Metadata:    map[string]any{"milestone_id": m.ID.String()},
				},
			})
			if err != nil {
				return fmt.Errorf("fund milestone: %w", err)
			}
			m.HoldReference = hold.ReferenceID
		}

		if err := q.InsertMilestone(ctx, m); err != nil {
			return fmt.Errorf("insert milestone: %w", err)
		}
		return s.recompute(ctx, q, owner)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("milestone created",
		"milestone_id", m.ID,
		"type", m.Type,
		"amount", m.Amount.String(),
		"automated", m.IsAutomated,
		"hold_reference", m.HoldReference,
	)
	return m, nil
}

// checkChannel rejects a payment-carrying milestone on a unit that is, or
// will be, paid through a different channel.
func (s *milestoneService) checkChannel(ctx context.Context, q repo.Queries, owner *repo.WorkUnit) error {
	if owner.AutoPaid {
		return fmt.Errorf("%w: %s was paid as a lump sum", ErrDoublePaymentChannel, owner.Kind)
	}
	strategy, err := s.deriveStrategy(ctx, q, owner)
	if err != nil {
		return err
	}
	if strategy == repo.StrategyLumpSum && owner.Status == repo.UnitStatusCompleted {
		return fmt.Errorf("%w: %s completed under lump_sum", ErrDoublePaymentChannel, owner.Kind)
	}

	switch {
	case owner.Kind == repo.UnitProject && strategy == repo.StrategyTaskMilestones:
		return fmt.Errorf("%w: tasks of this project carry payment milestones", ErrDoublePaymentChannel)
	case owner.Kind == repo.UnitTask && strategy == repo.StrategyProjectMilestones:
		return fmt.Errorf("%w: the project carries payment milestones", ErrDoublePaymentChannel)
	}

	if owner.Kind == repo.UnitProject {
		tasks, err := q.ListTasks(ctx, owner.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		for _, t := range tasks {
			if t.AutoPaid {
				return fmt.Errorf("%w: task %s was paid as a lump sum", ErrDoublePaymentChannel, t.ID)
			}
		}
	}
	if owner.Kind == repo.UnitTask && owner.ProjectID.Valid {
		project, err := q.GetWorkUnit(ctx, owner.ProjectID.UUID)
		if err != nil && !repo.IsNotFound(err) {
			return err
		}
		if project != nil && project.AutoPaid {
			return fmt.Errorf("%w: the project was paid as a lump sum", ErrDoublePaymentChannel)
		}
	}
	return nil
}

func (s *milestoneService) GetMilestone(ctx context.Context, id uuid.UUID) (*repo.Milestone, error) {
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *milestoneService) ListMilestones(ctx context.Context, unitID uuid.UUID) ([]*repo.Milestone, error) {
	u, err := s.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMilestones(ctx, u.Kind, u.ID)
}

func lockMilestone(ctx context.Context, q repo.Queries, id uuid.UUID) (*repo.Milestone, error) {
	m, err := q.LockMilestone(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *milestoneService) Approve(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	var m *repo.Milestone
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		var err error
		if m, err = lockMilestone(ctx, q, id); err != nil {
			return err
		}
		if m.Status != repo.MilestonePending {
			return nil
		}
		now := s.now()
		m.Status = repo.MilestoneApproved
		m.ApprovedAt = &now
		m.UpdatedAt = now
		return q.UpdateMilestone(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("milestone approved", "milestone_id", m.ID, "status", m.Status)

	if m.Status == repo.MilestoneApproved && m.IsAutomated && m.Type.CarriesPayment() {
		out, err := s.MarkPaid(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("automated payment: %w", err)
		}
		if out.Transaction != nil {
			s.metrics.AutoPayment(ctx, "milestone")
		}
		return out, nil
	}
	return &Outcome{Milestone: m, Noop: m.Status != repo.MilestoneApproved}, nil
}

// ---------------------------------------------------------------------------
// Settlement
// ---------------------------------------------------------------------------

func (s *milestoneService) MarkPaid(ctx context.Context, id uuid.UUID) (out *Outcome, err error) {
	ctx, span := s.metrics.Start(ctx, "milestone.mark_paid", attribute.String("milestone_id", id.String()))
	defer func() { observability.End(span, err) }()

	var settled *payment.Settlement
	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		m, err := lockMilestone(ctx, q, id)
		if err != nil {
			return err
		}
		if m.Status == repo.MilestonePaid {
			out = &Outcome{Milestone: m, Noop: true}
			return nil
		}
		if m.Status != repo.MilestoneApproved {
			return ErrNotApproved
		}

		kind, unitID := m.Owner()
		unit, err := lockUnit(ctx, q, unitID)
		if err != nil {
			return err
		}
		var project *repo.WorkUnit
		if kind == repo.UnitTask && unit.ProjectID.Valid {
			if project, err = lockUnit(ctx, q, unit.ProjectID.UUID); err != nil {
				return err
			}
		}

		if m.Type.CarriesPayment() && m.Amount.IsPositive() {
			req, err := milestonePayment(unit, m)
			if err != nil {
				return err
			}
			settled, err = s.payments.Settle(ctx, q, req)
			if err != nil {
				return &settleError{req: req, err: err}
			}
			m.TransactionID = uuid.NullUUID{UUID: settled.Transaction.ID, Valid: true}
		}

		now := s.now()
		m.Status = repo.MilestonePaid
		m.PaidAt = &now
		m.UpdatedAt = now
		if err := q.UpdateMilestone(ctx, m); err != nil {
			return fmt.Errorf("update milestone: %w", err)
		}

		if err := s.updateParentPayment(ctx, q, m, unit, project); err != nil {
			return err
		}
		out = &Outcome{Milestone: m, Unit: unit}
		if settled != nil {
			out.Transaction = settled.Transaction
		}
		return nil
	})
	if err != nil {
		err = s.recordSettleFailure(ctx, err)
		slog.Warn("milestone payment failed", "milestone_id", id, "error", err)
		return nil, err
	}

	if settled != nil {
		s.payments.Announce(ctx, settled)
	}
	if !out.Noop {
		slog.Info("milestone paid", "milestone_id", id, "amount", out.Milestone.Amount.String())
	}
	return out, nil
}

func milestonePayment(unit *repo.WorkUnit, m *repo.Milestone) (payment.CreateRequest, error) {
	if !unit.AssigneeID.Valid {
		return payment.CreateRequest{}, ErrNoAssignee
	}
	req := payment.CreateRequest{
		From:                 unit.ClientID,
		To:                   unit.AssigneeID.UUID,
		Amount:               m.Amount,
		Currency:             unit.Currency,
		PaymentType:          repo.PaymentMilestone,
		Method:               repo.MethodWallet,
		MilestoneID:          uuid.NullUUID{UUID: m.ID, Valid: true},
		CategoryID:           unit.CategoryID,
		UserType:             commission.UserFreelancer,
		Description:          "Milestone payment: " + m.Title,
		ReleaseHoldReference: m.HoldReference,
		Metadata: map[string]any{
			"milestone_id":    m.ID.String(),
			"milestone_title": m.Title,
			"milestone_type":  string(m.Type),
		},
	}
	if unit.Kind == repo.UnitTask {
		req.TaskID = uuid.NullUUID{UUID: unit.ID, Valid: true}
	} else {
		req.ProjectID = uuid.NullUUID{UUID: unit.ID, Valid: true}
	}
	return req, nil
}

// updateParentPayment refreshes the owner's payment status and strategy
// after m was paid. A lump-sum flag on the owner is cleared first so the
// unit is never paid through both channels.
func (s *milestoneService) updateParentPayment(ctx context.Context, q repo.Queries, m *repo.Milestone, unit, project *repo.WorkUnit) error {
	if m.Type.CarriesPayment() && unit.AutoPaid {
		slog.Warn("clearing lump-sum flag before milestone settlement", "unit_id", unit.ID, "milestone_id", m.ID)
		unit.AutoPaid = false
	}

	ms, err := q.ListMilestones(ctx, unit.Kind, unit.ID)
	if err != nil {
		return fmt.Errorf("list milestones: %w", err)
	}
	if carriesPayment(ms) {
		unit.PaymentStatus = MilestonePaymentStatus(unit.Budget, ms)
	}
	strategy, err := s.deriveStrategy(ctx, q, unit)
	if err != nil {
		return err
	}
	unit.PaymentStrategy = strategy
	unit.UpdatedAt = s.now()
	if err := q.UpdateWorkUnit(ctx, unit); err != nil {
		return fmt.Errorf("update unit: %w", err)
	}

	if project != nil {
		return s.rollUpProject(ctx, q, project)
	}
	return nil
}

// rollUpProject recomputes a project's strategy and, when its tasks carry
// the payments, its payment status.
func (s *milestoneService) rollUpProject(ctx context.Context, q repo.Queries, project *repo.WorkUnit) error {
	strategy, err := s.deriveStrategy(ctx, q, project)
	if err != nil {
		return err
	}
	project.PaymentStrategy = strategy

	if strategy != repo.StrategyProjectMilestones {
		tasks, err := q.ListTasks(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) > 0 {
			project.PaymentStatus = TasksPaymentStatus(tasks)
		}
	}
	project.UpdatedAt = s.now()
	return q.UpdateWorkUnit(ctx, project)
}

// ---------------------------------------------------------------------------
// Lifecycle signals
// ---------------------------------------------------------------------------

func (s *milestoneService) HandleUnitStatus(ctx context.Context, sig events.UnitStatusSignal) (out *Outcome, err error) {
	kind := repo.UnitKind(strings.ToLower(sig.UnitType))
	if !kind.Valid() {
		return nil, invalid("unit_type", ErrInvalidUnit)
	}
	status := strings.ToLower(strings.TrimSpace(sig.NewStatus))
	if status == "" {
		return nil, invalid("new_status", ErrInvalidUnit)
	}

	ctx, span := s.metrics.Start(ctx, "milestone.unit_status",
		attribute.String("unit_id", sig.UnitID.String()),
		attribute.String("status", status),
	)
	defer func() { observability.End(span, err) }()

	var settled *payment.Settlement
	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		unit, err := lockUnit(ctx, q, sig.UnitID)
		if err != nil {
			return err
		}
		if unit.Kind != kind {
			return invalid("unit_type", ErrInvalidUnit)
		}
		var project *repo.WorkUnit
		if kind == repo.UnitTask && unit.ProjectID.Valid {
			if project, err = lockUnit(ctx, q, unit.ProjectID.UUID); err != nil {
				return err
			}
		}

		now := s.now()
		unit.Status = status
		if status == repo.UnitStatusCompleted && unit.CompletedAt == nil {
			unit.CompletedAt = &now
		}
		strategy, err := s.deriveStrategy(ctx, q, unit)
		if err != nil {
			return err
		}
		unit.PaymentStrategy = strategy
		unit.UpdatedAt = now

		out = &Outcome{Unit: unit, Noop: true}
		if status == repo.UnitStatusCompleted {
			req, eligible, err := s.lumpSum(ctx, q, unit)
			if err != nil {
				return err
			}
			if eligible {
				settled, err = s.payments.Settle(ctx, q, req)
				if err != nil {
					return &settleError{req: req, err: err}
				}
				unit.AutoPaid = true
				unit.PaymentStatus = repo.UnitPaymentCompleted
				out.Transaction = settled.Transaction
				out.Noop = false
			}
		}

		if err := q.UpdateWorkUnit(ctx, unit); err != nil {
			return fmt.Errorf("update unit: %w", err)
		}
		if project != nil {
			return s.rollUpProject(ctx, q, project)
		}
		return nil
	})
	if err != nil {
		err = s.recordSettleFailure(ctx, err)
		slog.Warn("unit status handling failed", "unit_id", sig.UnitID, "status", status, "error", err)
		return nil, err
	}

	if settled != nil {
		s.payments.Announce(ctx, settled)
		s.metrics.AutoPayment(ctx, "lump_sum")
		slog.Info("lump-sum payment fired",
			"unit_id", sig.UnitID,
			"kind", kind,
			"transaction_id", settled.Transaction.TransactionID,
			"amount", settled.Transaction.Amount.String(),
		)
	}
	return out, nil
}

// lumpSum decides whether a completed unit is paid as a single lump sum and
// builds the payment. Only units whose strategy is lump_sum qualify, and a
// project that has tasks leaves payment to them.
func (s *milestoneService) lumpSum(ctx context.Context, q repo.Queries, unit *repo.WorkUnit) (payment.CreateRequest, bool, error) {
	if unit.PaymentStrategy != repo.StrategyLumpSum || unit.AutoPaid ||
		unit.PaymentStatus == repo.UnitPaymentCompleted || !unit.Budget.IsPositive() {
		return payment.CreateRequest{}, false, nil
	}
	if unit.Kind == repo.UnitProject {
		tasks, err := q.ListTasks(ctx, unit.ID)
		if err != nil {
			return payment.CreateRequest{}, false, fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) > 0 {
			return payment.CreateRequest{}, false, nil
		}
	}

	paid, err := q.HasSettledPaymentForUnit(ctx, unit.Kind, unit.ID)
	if err != nil {
		return payment.CreateRequest{}, false, fmt.Errorf("check existing payment: %w", err)
	}
	if paid {
		return payment.CreateRequest{}, false, nil
	}
	if !unit.AssigneeID.Valid {
		return payment.CreateRequest{}, false, ErrNoAssignee
	}

	req := payment.CreateRequest{
		From:        unit.ClientID,
		To:          unit.AssigneeID.UUID,
		Amount:      unit.Budget,
		Currency:    unit.Currency,
		Method:      repo.MethodWallet,
		CategoryID:  unit.CategoryID,
		UserType:    commission.UserFreelancer,
		Description: "Payment on completion: " + unit.Title,
	}
	if unit.Kind == repo.UnitTask {
		req.PaymentType = repo.PaymentTask
		req.TaskID = uuid.NullUUID{UUID: unit.ID, Valid: true}
	} else {
		req.PaymentType = repo.PaymentProject
		req.ProjectID = uuid.NullUUID{UUID: unit.ID, Valid: true}
	}
	return req, true, nil
}
