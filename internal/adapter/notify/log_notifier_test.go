package notify

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/digital-kanban/internal/port"
)

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)

	err := n.Notify(context.Background(), port.Notification{
		Team:       "production",
		Message:    "New production kanban created",
		KanbanID:   "kanban-1",
		PartNumber: "PART-001",
		WorkCenter: "WC-02",
		Priority:   2,
	})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, "New production kanban created", entry.Message)
	assert.Equal(t, "production", entry.Data["team"])
	assert.Equal(t, "WC-02", entry.Data["work_center"])
	assert.Equal(t, 2, entry.Data["priority"])
}
