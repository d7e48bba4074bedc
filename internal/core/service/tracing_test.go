package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestTracing_FailedSplitMarksSpan(t *testing.T) {
	exporter := recordSpans(t)
	env := newTestEnv(t)

	_, err := env.containers.Split(context.Background(), "CONT-404", []int{1, 1})
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ContainerService.Split", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTracing_WorkflowSpansNest(t *testing.T) {
	exporter := recordSpans(t)
	env := newTestEnv(t)
	svc := env.workflowService(t)

	_, err := svc.ExecuteWorkflow(context.Background(), "production-scheduling", domain.WorkflowInput{
		PartNumber:      "PART-001",
		PartDescription: "Steel Bracket Assembly",
		Quantity:        10,
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	byName := make(map[string]tracetest.SpanStub, len(spans))
	for _, s := range spans {
		byName[s.Name] = s
	}
	root, ok := byName["WorkflowService.ExecuteWorkflow"]
	require.True(t, ok)
	child, ok := byName["KanbanService.CreateKanban"]
	require.True(t, ok)

	assert.Equal(t, root.SpanContext.TraceID(), child.SpanContext.TraceID())
	assert.Equal(t, root.SpanContext.SpanID(), child.Parent.SpanID())
	assert.Equal(t, codes.Unset, root.Status.Code)
}
