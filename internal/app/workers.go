package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/milestone"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/events"
)

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc         fx.Lifecycle
	NC         *nats.Conn
	Cfg        *config.Config
	Milestones milestone.Service
}

const unitStatusQueue = "ledger-settlement"

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		slog.Info("settlement_worker: NATS disabled, unit status signals are not consumed")
		return
	}

	var sub *nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			sub, err = startSettlementWorker(p.NC, p.Cfg.Ledger.Events.UnitStatusSubject, p.Milestones)
			return err
		},
		OnStop: func(ctx context.Context) error {
			// Connection drain is handled by ProvideNatsClient
			if sub != nil {
				return sub.Unsubscribe()
			}
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// settlement_worker (lump-sum payments on unit completion)
// ---------------------------------------------------------------------------

// Core NATS delivers at most once. A signal that fails to apply is logged and
// lost unless the publisher sent it as a request: those get an ack or a nak
// reply so the publisher can retry, and POST /units/:id/status replays it by
// hand.
func startSettlementWorker(nc *nats.Conn, subject string, svc milestone.Service) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(subject, unitStatusQueue, func(msg *nats.Msg) {
		err := handleUnitStatus(msg.Data, svc)
		if msg.Reply == "" {
			return
		}
		if rerr := msg.Respond(unitStatusReply(err)); rerr != nil {
			slog.Warn("settlement_worker: reply failed", "reply", msg.Reply, "err", rerr)
		}
	})
	if err != nil {
		slog.Error("settlement_worker: subscribe failed", "subject", subject, "err", err)
		return nil, err
	}
	slog.Info("settlement_worker: started", "subject", subject)
	return sub, nil
}

type unitStatusAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func unitStatusReply(err error) []byte {
	ack := unitStatusAck{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	b, _ := json.Marshal(ack)
	return b
}

func handleUnitStatus(data []byte, svc milestone.Service) error {
	sig, err := events.DecodeUnitStatus(data)
	if err != nil {
		slog.Warn("settlement_worker: dropping malformed signal", "err", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := svc.HandleUnitStatus(ctx, sig)
	if err != nil {
		slog.Warn("settlement_worker: signal not applied",
			"unit_type", sig.UnitType, "unit_id", sig.UnitID, "status", sig.NewStatus, "err", err)
		return err
	}
	if out.Transaction != nil {
		slog.Info("settlement_worker: lump-sum paid",
			"unit_id", sig.UnitID, "transaction_id", out.Transaction.TransactionID)
	}
	return nil
}
