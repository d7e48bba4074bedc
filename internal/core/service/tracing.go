package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rl1809/digital-kanban/internal/core/service"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func partLockKey(partNumber string) string {
	return "lock:part:" + partNumber
}

func kanbanLockKey(id string) string {
	return "lock:kanban:" + id
}

func newSerial(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}
