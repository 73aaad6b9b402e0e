package repo

import (
	"context"
	stdsql "database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var workUnitColumns = []string{
	"id", "kind", "project_id", "client_id", "assignee_id", "category_id", "title", "budget",
	"currency", "status", "payment_status", "payment_strategy", "auto_paid", "completed_at",
	"created_at", "updated_at",
}

func scanWorkUnit(rows *entsql.Rows) (*WorkUnit, error) {
	var (
		u         WorkUnit
		completed stdsql.NullTime
	)
	err := rows.Scan(&u.ID, &u.Kind, &u.ProjectID, &u.ClientID, &u.AssigneeID, &u.CategoryID, &u.Title,
		&u.Budget, &u.Currency, &u.Status, &u.PaymentStatus, &u.PaymentStrategy, &u.AutoPaid, &completed,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan work unit: %w", err)
	}
	u.CompletedAt = timePtr(completed)
	return &u, nil
}

// UpsertWorkUnit inserts the unit or refreshes its catalog-owned fields.
// Ledger-owned fields (payment status, strategy, auto-paid) survive.
func (q *pgQueries) UpsertWorkUnit(ctx context.Context, u *WorkUnit) error {
	ins := builder().Insert(WorkUnitsTable.Name).
		Columns(workUnitColumns...).
		Values(u.ID, u.Kind, u.ProjectID, u.ClientID, u.AssigneeID, u.CategoryID, u.Title, u.Budget,
			u.Currency, u.Status, u.PaymentStatus, u.PaymentStrategy, u.AutoPaid, u.CompletedAt,
			u.CreatedAt, u.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(s *entsql.UpdateSet) {
				s.SetExcluded("assignee_id")
				s.SetExcluded("category_id")
				s.SetExcluded("title")
				s.SetExcluded("budget")
				s.SetExcluded("updated_at")
			}),
		)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("upsert work unit: %w", err)
	}
	return nil
}

func (q *pgQueries) workUnit(ctx context.Context, id uuid.UUID, lock bool) (*WorkUnit, error) {
	sel := builder().Select(workUnitColumns...).
		From(entsql.Table(WorkUnitsTable.Name)).
		Where(entsql.EQ("id", id))
	if lock {
		sel.ForUpdate()
	}

	var u *WorkUnit
	err := q.one(ctx, sel, func(rows *entsql.Rows) (err error) {
		u, err = scanWorkUnit(rows)
		return err
	})
	if err != nil {
		return nil, notFoundAs(err, "work unit")
	}
	return u, nil
}

func (q *pgQueries) GetWorkUnit(ctx context.Context, id uuid.UUID) (*WorkUnit, error) {
	return q.workUnit(ctx, id, false)
}

func (q *pgQueries) LockWorkUnit(ctx context.Context, id uuid.UUID) (*WorkUnit, error) {
	return q.workUnit(ctx, id, true)
}

func (q *pgQueries) UpdateWorkUnit(ctx context.Context, u *WorkUnit) error {
	upd := builder().Update(WorkUnitsTable.Name).
		Set("status", u.Status).
		Set("payment_status", u.PaymentStatus).
		Set("payment_strategy", u.PaymentStrategy).
		Set("auto_paid", u.AutoPaid).
		Set("completed_at", u.CompletedAt).
		Set("updated_at", u.UpdatedAt).
		Where(entsql.EQ("id", u.ID))
	return notFoundAs(q.execExpectOne(ctx, upd), "work unit")
}

func (q *pgQueries) ListTasks(ctx context.Context, projectID uuid.UUID) ([]*WorkUnit, error) {
	sel := builder().Select(workUnitColumns...).
		From(entsql.Table(WorkUnitsTable.Name)).
		Where(entsql.And(entsql.EQ("kind", UnitTask), entsql.EQ("project_id", projectID))).
		OrderBy("created_at", "id")

	var out []*WorkUnit
	err := q.each(ctx, sel, func(rows *entsql.Rows) error {
		u, err := scanWorkUnit(rows)
		if err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

var milestoneColumns = []string{
	"id", "project_id", "task_id", "title", "amount", "milestone_type", "status", "due_date",
	"is_automated", "hold_reference", "transaction_id", "approved_at", "paid_at", "created_at", "updated_at",
}

func scanMilestone(rows *entsql.Rows) (*Milestone, error) {
	var (
		m                     Milestone
		due, approved, paidAt stdsql.NullTime
	)
	err := rows.Scan(&m.ID, &m.ProjectID, &m.TaskID, &m.Title, &m.Amount, &m.Type, &m.Status, &due,
		&m.IsAutomated, &m.HoldReference, &m.TransactionID, &approved, &paidAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan milestone: %w", err)
	}
	m.DueDate = timePtr(due)
	m.ApprovedAt = timePtr(approved)
	m.PaidAt = timePtr(paidAt)
	return &m, nil
}

func (q *pgQueries) InsertMilestone(ctx context.Context, m *Milestone) error {
	ins := builder().Insert(MilestonesTable.Name).
		Columns(milestoneColumns...).
		Values(m.ID, m.ProjectID, m.TaskID, m.Title, m.Amount, m.Type, m.Status, m.DueDate,
			m.IsAutomated, m.HoldReference, m.TransactionID, m.ApprovedAt, m.PaidAt, m.CreatedAt, m.UpdatedAt)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert milestone: %w", err)
	}
	return nil
}

func (q *pgQueries) milestone(ctx context.Context, id uuid.UUID, lock bool) (*Milestone, error) {
	sel := builder().Select(milestoneColumns...).
		From(entsql.Table(MilestonesTable.Name)).
		Where(entsql.EQ("id", id))
	if lock {
		sel.ForUpdate()
	}

	var m *Milestone
	err := q.one(ctx, sel, func(rows *entsql.Rows) (err error) {
		m, err = scanMilestone(rows)
		return err
	})
	if err != nil {
		return nil, notFoundAs(err, "milestone")
	}
	return m, nil
}

func (q *pgQueries) GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	return q.milestone(ctx, id, false)
}

func (q *pgQueries) LockMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	return q.milestone(ctx, id, true)
}

func (q *pgQueries) UpdateMilestone(ctx context.Context, m *Milestone) error {
	upd := builder().Update(MilestonesTable.Name).
		Set("status", m.Status).
		Set("hold_reference", m.HoldReference).
		Set("transaction_id", m.TransactionID).
		Set("approved_at", m.ApprovedAt).
		Set("paid_at", m.PaidAt).
		Set("updated_at", m.UpdatedAt).
		Where(entsql.EQ("id", m.ID))
	return notFoundAs(q.execExpectOne(ctx, upd), "milestone")
}

func (q *pgQueries) ListMilestones(ctx context.Context, kind UnitKind, unitID uuid.UUID) ([]*Milestone, error) {
	sel := builder().Select(milestoneColumns...).
		From(entsql.Table(MilestonesTable.Name)).
		Where(entsql.EQ(unitColumn(kind), unitID)).
		OrderBy("created_at", "id")

	var out []*Milestone
	err := q.each(ctx, sel, func(rows *entsql.Rows) error {
		m, err := scanMilestone(rows)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return out, nil
}
