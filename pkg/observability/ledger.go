package observability

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const ledgerInstrumentation = "github.com/Alijeyrad/freelancehub_ledger/ledger"

// commissionBuckets span the tier range from small task fees to project-sized cuts.
var commissionBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000}

// LedgerMetrics holds the settlement-core instruments.
type LedgerMetrics struct {
	tracer trace.Tracer

	walletOps     metric.Int64Counter
	transactions  metric.Int64Counter
	commissionAmt metric.Float64Histogram
	autoPayments  metric.Int64Counter
}

// NewLedgerMetrics reads the global providers. Services fall back to it when
// no Provider was built, in which case every instrument is a no-op.
func NewLedgerMetrics() *LedgerMetrics {
	return newLedgerMetrics(otel.GetTracerProvider(), otel.GetMeterProvider())
}

func newLedgerMetrics(tp trace.TracerProvider, mp metric.MeterProvider) *LedgerMetrics {
	meter := mp.Meter(ledgerInstrumentation)

	walletOps, _ := meter.Int64Counter(
		"ledger_wallet_operations_total",
		metric.WithDescription("Wallet operations by type and outcome"),
		metric.WithUnit("{operation}"),
	)
	transactions, _ := meter.Int64Counter(
		"ledger_transactions_total",
		metric.WithDescription("Transactions by payment type and resulting status"),
		metric.WithUnit("{transaction}"),
	)
	commissionAmt, _ := meter.Float64Histogram(
		"ledger_commission_amount",
		metric.WithDescription("Realized commission per transaction"),
		metric.WithExplicitBucketBoundaries(commissionBuckets...),
	)
	autoPayments, _ := meter.Int64Counter(
		"ledger_auto_payments_total",
		metric.WithDescription("Payments fired by the strategy resolver by path"),
		metric.WithUnit("{payment}"),
	)

	return &LedgerMetrics{
		tracer:        tp.Tracer(ledgerInstrumentation),
		walletOps:     walletOps,
		transactions:  transactions,
		commissionAmt: commissionAmt,
		autoPayments:  autoPayments,
	}
}

// Start opens a span for a ledger operation.
func (m *LedgerMetrics) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// End closes span, recording err if set.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *LedgerMetrics) WalletOp(ctx context.Context, op string, err error) {
	m.walletOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *LedgerMetrics) Transaction(ctx context.Context, paymentType, status string) {
	m.transactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_type", paymentType),
		attribute.String("status", status),
	))
}

func (m *LedgerMetrics) Commission(ctx context.Context, amount decimal.Decimal, source string) {
	f, _ := amount.Float64()
	m.commissionAmt.Record(ctx, f, metric.WithAttributes(attribute.String("source", source)))
}

func (m *LedgerMetrics) AutoPayment(ctx context.Context, path string) {
	m.autoPayments.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}
