package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rl1809/digital-kanban/internal/adapter/storage"
	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

var errInjected = errors.New("injected failure")

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n port.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// flakyInventory fails the n-th UpdateInventory call (1-based).
type flakyInventory struct {
	*storage.MemoryInventory

	mu     sync.Mutex
	calls  int
	failOn int
}

func (f *flakyInventory) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failOn
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	return f.MemoryInventory.UpdateInventory(ctx, inv)
}

// flakyKanbans fails the n-th SaveKanban call (1-based).
type flakyKanbans struct {
	*storage.MemoryKanbans

	mu     sync.Mutex
	saves  int
	failOn int
}

func (f *flakyKanbans) SaveKanban(ctx context.Context, k domain.Kanban) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves == f.failOn
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	return f.MemoryKanbans.SaveKanban(ctx, k)
}

// blockingInventory parks the first GetInventory call until release is closed.
type blockingInventory struct {
	*storage.MemoryInventory

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingInventory(inv *storage.MemoryInventory) *blockingInventory {
	return &blockingInventory{
		MemoryInventory: inv,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (b *blockingInventory) GetInventory(ctx context.Context, partNumber string) (*domain.Inventory, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.MemoryInventory.GetInventory(ctx, partNumber)
}

type testEnv struct {
	inventory  *storage.MemoryInventory
	kanbanRepo *storage.MemoryKanbans
	jobs       *storage.MemoryJobs
	orders     *storage.MemoryOrders
	notifier   *mockNotifier

	kanbans    *KanbanService
	containers *ContainerService
}

var fixedNow = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	data := storage.NewMockData()
	env := &testEnv{
		inventory:  storage.NewMemoryInventory(data.Inventory...),
		kanbanRepo: storage.NewMemoryKanbans(),
		jobs:       storage.NewMemoryJobs(data.Jobs, data.WorkCenters),
		orders:     storage.NewMemoryOrders(data.Orders),
		notifier:   &mockNotifier{},
	}
	env.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	locker := storage.NewKeyedMutex()
	env.kanbans = NewKanbanService(env.kanbanRepo, env.inventory, env.jobs, locker, env.notifier)
	env.kanbans.now = func() time.Time { return fixedNow }
	env.containers = NewContainerService(env.inventory, locker)
	return env
}

func (e *testEnv) container(t *testing.T, serial string) domain.Container {
	t.Helper()
	c, err := e.inventory.FindContainer(context.Background(), serial)
	if err != nil {
		t.Fatalf("find container %s: %v", serial, err)
	}
	return *c
}
