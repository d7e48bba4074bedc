// Package metrics holds the Prometheus collectors of the kanban engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "kanban"

var (
	kanbansCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "created_total",
			Help:      "Count of kanbans whose processor finished successfully, by kanban type.",
		},
		[]string{"type"},
	)
	kanbanFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "processing_failures_total",
			Help:      "Count of kanbans rolled back because their processor failed, by kanban type.",
		},
		[]string{"type"},
	)
	kanbanTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Count of kanban status transitions, by target status.",
		},
		[]string{"status"},
	)
	containersMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "containers_moved_total",
			Help:      "Count of containers relocated, by destination location.",
		},
		[]string{"to"},
	)
	containerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "container_operations_total",
			Help:      "Count of container split and merge operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)
	workflowSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "workflow_steps_total",
			Help:      "Count of executed workflow steps, by step type and result.",
		},
		[]string{"step_type", "result"},
	)
	withdrawalQuantity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "withdrawal_quantity",
			Help:      "Quantity requested per withdrawal kanban.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

var registerMetrics sync.Once

// Register all metrics with reg.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(kanbansCreated)
		reg.MustRegister(kanbanFailures)
		reg.MustRegister(kanbanTransitions)
		reg.MustRegister(containersMoved)
		reg.MustRegister(containerOperations)
		reg.MustRegister(workflowSteps)
		reg.MustRegister(withdrawalQuantity)
	})
}

func RecordKanbanCreated(kanbanType string) {
	kanbansCreated.WithLabelValues(kanbanType).Inc()
}

func RecordKanbanFailure(kanbanType string) {
	kanbanFailures.WithLabelValues(kanbanType).Inc()
}

func RecordKanbanTransition(status string) {
	kanbanTransitions.WithLabelValues(status).Inc()
}

// RecordContainersMoved adds n relocated containers for destination to.
func RecordContainersMoved(to string, n int) {
	containersMoved.WithLabelValues(to).Add(float64(n))
}

func RecordContainerOperation(operation string, err error) {
	containerOperations.WithLabelValues(operation, result(err)).Inc()
}

func RecordWorkflowStep(stepType string, err error) {
	workflowSteps.WithLabelValues(stepType, result(err)).Inc()
}

func RecordWithdrawalQuantity(quantity int) {
	withdrawalQuantity.Observe(float64(quantity))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
