package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/freelancehub_ledger/pkg/reqctx"
)

const httpInstrumentation = "github.com/Alijeyrad/freelancehub_ledger/pkg/observability"

// HeaderTraceID carries the server span's trace id back to the caller.
const HeaderTraceID = "X-Trace-Id"

// FiberMiddleware opens a server span per ledger API request and counts
// requests by route and status. Spans carry the request id, the
// authenticated user and whether an idempotency key was sent, once the
// downstream middleware has resolved them.
func FiberMiddleware(p *Provider) fiber.Handler {
	tracer := p.TracerProvider.Tracer(httpInstrumentation)
	meter := p.MeterProvider.Meter(httpInstrumentation)

	requests, _ := meter.Int64Counter(
		"ledger_http_requests_total",
		metric.WithDescription("Ledger API requests by route and status"),
		metric.WithUnit("{request}"),
	)
	latency, _ := meter.Float64Histogram(
		"ledger_http_request_duration_seconds",
		metric.WithDescription("Ledger API request latency"),
		metric.WithUnit("s"),
	)

	return func(c fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))

		route := c.Route().Path
		ctx, span := tracer.Start(ctx, c.Method()+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.route", route),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		c.SetContext(ctx)
		if span.SpanContext().HasTraceID() {
			c.Set(HeaderTraceID, span.SpanContext().TraceID().String())
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start).Seconds()

		// Route matching happens in Next, so re-read it for the name and labels.
		route = c.Route().Path
		span.SetName(c.Method() + " " + route)
		status := c.Response().StatusCode()

		reqCtx := c.Context()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("ledger.request_id", reqctx.RequestIDFromContext(reqCtx)),
			attribute.Bool("ledger.idempotent", reqctx.IdempotencyKeyFromContext(reqCtx) != ""),
		)
		if uid, ok := reqctx.UserIDFromContext(reqCtx); ok {
			span.SetAttributes(attribute.String("enduser.id", uid.String()))
		}

		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", route),
			attribute.String("http.status_class", strconv.Itoa(status/100)+"xx"),
		)
		requests.Add(ctx, 1, attrs)
		latency.Record(ctx, elapsed, attrs)

		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
			if err != nil {
				span.RecordError(err)
			}
		}
		return err
	}
}
