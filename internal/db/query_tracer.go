package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

type querySpanKey struct{}

// queryTracer emits a sentry span per statement when the request already
// carries a transaction; otherwise it stays out of the way.
type queryTracer struct{}

func newQueryTracer() *queryTracer {
	return &queryTracer{}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(summarizeSQL(data.SQL)),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")

	return context.WithValue(span.Context(), querySpanKey{}, span)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, _ := ctx.Value(querySpanKey{}).(*sentry.Span)
	if span == nil {
		return
	}

	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
	} else {
		span.Status = sentry.SpanStatusOK
		span.SetData("db.rows_affected", data.CommandTag.RowsAffected())
	}
	span.Finish()
}

func summarizeSQL(sql string) string {
	collapsed := strings.Join(strings.Fields(sql), " ")
	if collapsed == "" {
		return "sql.query"
	}
	const maxLen = 256
	if len(collapsed) > maxLen {
		return collapsed[:maxLen]
	}
	return collapsed
}
