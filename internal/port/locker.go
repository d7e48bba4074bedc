package port

import "context"

type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Notification struct {
	Team       string
	Message    string
	KanbanID   string
	PartNumber string
	WorkCenter string
	JobID      string
	Priority   int
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
