package notify

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/rl1809/digital-kanban/internal/port"
)

// LogNotifier delivers team notifications to the process log.
type LogNotifier struct {
	logger log.FieldLogger
}

func NewLogNotifier(logger log.FieldLogger) *LogNotifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

var _ port.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Notify(ctx context.Context, msg port.Notification) error {
	n.logger.WithFields(log.Fields{
		"team":        msg.Team,
		"kanban_id":   msg.KanbanID,
		"part_number": msg.PartNumber,
		"work_center": msg.WorkCenter,
		"job_id":      msg.JobID,
		"priority":    msg.Priority,
	}).Info(msg.Message)
	return nil
}
