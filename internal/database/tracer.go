package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
	span  trace.Span
}

// queryTracer открывает span на каждый запрос и пишет в лог медленные запросы.
type queryTracer struct {
	tracer    trace.Tracer
	slowQuery time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func newQueryTracer(slowQuery time.Duration, logger *slog.Logger) *queryTracer {
	return &queryTracer{
		tracer:    otel.Tracer("github.com/central-university-dev/go-listing-tracker/internal/database"),
		slowQuery: slowQuery,
		now:       time.Now,
		logger:    logger,
	}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := t.tracer.Start(ctx, "postgres.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)

	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: t.now(), span: span})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	started, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	defer started.span.End()

	if data.Err != nil {
		started.span.RecordError(data.Err)
		started.span.SetStatus(codes.Error, data.Err.Error())
	}

	elapsed := t.now().Sub(started.start)
	if t.slowQuery > 0 && elapsed >= t.slowQuery {
		t.logger.Warn("Медленный запрос к PostgreSQL",
			"sql", started.sql,
			"duration", elapsed,
			"rows", data.CommandTag.RowsAffected(),
		)
	}
}
