// Package events carries the ledger's outbound notification events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

// Transaction lifecycle actions.
const (
	ActionCreated   = "created"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionRefunded  = "refunded"
)

// TransactionEvent is what the notification subsystem receives. The ledger
// never formats user-facing text.
type TransactionEvent struct {
	TransactionID string          `json:"transaction_id"`
	FromUser      uuid.UUID       `json:"from_user"`
	ToUser        uuid.UUID       `json:"to_user"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaymentType   string          `json:"payment_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// UnitStatusSignal is the consumed completion signal of a project or task.
type UnitStatusSignal struct {
	UnitType  string    `json:"unit_type"`
	UnitID    uuid.UUID `json:"unit_id"`
	NewStatus string    `json:"new_status"`
}

// Publisher delivers transaction events. Publish must not fail the money
// movement that produced the event; implementations log and return errors
// for the caller to log.
type Publisher interface {
	PublishTransaction(ctx context.Context, action string, ev TransactionEvent) error
}

// ---------------------------------------------------------------------------
// NATS
// ---------------------------------------------------------------------------

type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsPublisher(nc *nats.Conn, prefix string) *NatsPublisher {
	return &NatsPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject an action is published on.
func Subject(prefix, action string) string {
	return fmt.Sprintf("%s.transaction.%s", prefix, action)
}

func (p *NatsPublisher) PublishTransaction(_ context.Context, action string, ev TransactionEvent) error {
	if p.nc == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, action), body); err != nil {
		return fmt.Errorf("publish %s: %w", action, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Log-only and recording publishers
// ---------------------------------------------------------------------------

// LogPublisher writes events to the default logger. Used when NATS is off.
type LogPublisher struct{}

func (LogPublisher) PublishTransaction(_ context.Context, action string, ev TransactionEvent) error {
	slog.Debug("transaction event",
		"action", action,
		"transaction_id", ev.TransactionID,
		"status", ev.Status,
		"amount", ev.Amount.String(),
	)
	return nil
}

// Published is one event captured by a Recorder.
type Published struct {
	Action string
	Event  TransactionEvent
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Published
}

func (r *Recorder) PublishTransaction(_ context.Context, action string, ev TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{Action: action, Event: ev})
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

// Actions lists the recorded actions for one transaction, in order.
func (r *Recorder) Actions(transactionID string) []string {
	var out []string
	for _, p := range r.Events() {
		if p.Event.TransactionID == transactionID {
			out = append(out, p.Action)
		}
	}
	return out
}

// DecodeUnitStatus parses a unit-status signal payload.
func DecodeUnitStatus(data []byte) (UnitStatusSignal, error) {
	var sig UnitStatusSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return sig, fmt.Errorf("decode unit status: %w", err)
	}
	if sig.UnitID == uuid.Nil || sig.UnitType == "" {
		return sig, errors.New("decode unit status: missing unit")
	}
	return sig, nil
}
