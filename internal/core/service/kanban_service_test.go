package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/digital-kanban/internal/adapter/storage"
	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

func withdrawal(part string, qty int, wt domain.WithdrawalType) CreateKanbanRequest {
	return CreateKanbanRequest{
		Type:           domain.KanbanTypeWithdrawal,
		WithdrawalType: wt,
		PartNumber:     part,
		Quantity:       qty,
	}
}

func TestCreateKanban_Withdrawal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-001", 50, domain.WithdrawalEndToTPA))
	require.NoError(t, err)

	assert.Equal(t, domain.KanbanStatusActive, k.Status)
	assert.Equal(t, []string{"CONT-002"}, k.ContainerIDs)
	assert.Equal(t, domain.LocationEndOfLine, k.FromLocation)
	assert.Equal(t, domain.LocationTPA, k.ToLocation)
	assert.Equal(t, "Steel Bracket Assembly", k.PartDescription)
	assert.Equal(t, fixedNow, k.CreatedAt)
	assert.Contains(t, k.ID, "kanban-")

	assert.Equal(t, domain.LocationTPA, env.container(t, "CONT-002").Location)
	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-001").Location)

	stored, err := env.kanbans.GetKanban(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, *k, *stored)
}

func TestCreateKanban_WithdrawalSpansContainers(t *testing.T) {
	env := newTestEnv(t)

	k, err := env.kanbans.CreateKanban(context.Background(), withdrawal("PART-002", 100, domain.WithdrawalEndToPool))
	require.NoError(t, err)

	assert.Equal(t, []string{"CONT-003", "CONT-004"}, k.ContainerIDs)
	assert.Equal(t, domain.LocationPoolStock, env.container(t, "CONT-003").Location)
	assert.Equal(t, domain.LocationPoolStock, env.container(t, "CONT-004").Location)
}

func TestCreateKanban_PoolToTPAAfterEndToPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-003", 150, domain.WithdrawalEndToPool))
	require.NoError(t, err)

	k, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-003", 100, domain.WithdrawalPoolToTPA))
	require.NoError(t, err)
	assert.Equal(t, []string{"CONT-005"}, k.ContainerIDs)
	assert.Equal(t, domain.LocationTPA, env.container(t, "CONT-005").Location)
	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-006").Location)
}

func TestCreateKanban_InsufficientInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-002", 121, domain.WithdrawalEndToTPA))
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)

	all, err := env.kanbans.ListKanbans(ctx, port.KanbanFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-003").Location)
	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-004").Location)
}

func TestCreateKanban_NothingAtSource(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.kanbans.CreateKanban(context.Background(), withdrawal("PART-001", 10, domain.WithdrawalPoolToTPA))
	require.ErrorIs(t, err, ErrNoAvailableContainers)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
}

func TestCreateKanban_UnknownPart(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.kanbans.CreateKanban(context.Background(), withdrawal("PART-404", 10, domain.WithdrawalEndToTPA))
	require.ErrorIs(t, err, domain.ErrInventoryNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateKanban_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]CreateKanbanRequest{
		"unknown type":            {Type: "e-kanban", PartNumber: "PART-001"},
		"missing part":            {Type: domain.KanbanTypeProduction},
		"unknown withdrawal type": withdrawal("PART-001", 10, "blue"),
		"zero quantity":           withdrawal("PART-001", 0, domain.WithdrawalEndToTPA),
		"negative production":     {Type: domain.KanbanTypeProduction, PartNumber: "PART-001", Quantity: -1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.kanbans.CreateKanban(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestCreateKanban_ProductionCreatesJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.kanbans.CreateKanban(ctx, CreateKanbanRequest{
		Type:            domain.KanbanTypeProduction,
		PartNumber:      "PART-001",
		PartDescription: "Steel Bracket Assembly",
		Quantity:        200,
		WorkCenter:      "WC-02",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KanbanStatusActive, k.Status)
	require.NotEmpty(t, k.JobID)

	job, err := env.jobs.GetJob(ctx, k.JobID)
	require.NoError(t, err)
	assert.Equal(t, "PART-001", job.PartNumber)
	assert.Equal(t, 200, job.Quantity)
	assert.Equal(t, "WC-02", job.WorkCenter)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, defaultPriority, job.Priority)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), job.CompletionDate)

	env.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n port.Notification) bool {
		return n.Team == "production" && n.KanbanID == k.ID && n.JobID == k.JobID
	}))
}

func TestCreateKanban_ProductionStartsLinkedJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.kanbans.CreateKanban(ctx, CreateKanbanRequest{
		Type:       domain.KanbanTypeProduction,
		PartNumber: "PART-001",
		Quantity:   100,
		JobID:      "job-001",
		Priority:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-001", k.JobID)

	job, err := env.jobs.GetJob(ctx, "job-001")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInProgress, job.Status)
	assert.Equal(t, 5, job.Priority)
}

func TestCreateKanban_ProductionUnknownJobRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.kanbans.CreateKanban(ctx, CreateKanbanRequest{
		Type:       domain.KanbanTypeProduction,
		PartNumber: "PART-001",
		JobID:      "job-404",
	})
	require.ErrorIs(t, err, domain.ErrJobNotFound)

	all, err := env.kanbans.ListKanbans(ctx, port.KanbanFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	env.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestCreateKanban_NotifierFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errInjected)
	svc := NewKanbanService(env.kanbanRepo, env.inventory, env.jobs, storage.NewKeyedMutex(), notifier)

	before, err := env.jobs.ListJobs(ctx)
	require.NoError(t, err)

	_, err = svc.CreateKanban(ctx, CreateKanbanRequest{
		Type:       domain.KanbanTypeProduction,
		PartNumber: "PART-002",
	})
	require.ErrorIs(t, err, errInjected)

	all, err := svc.ListKanbans(ctx, port.KanbanFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	after, err := env.jobs.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	notifier.AssertExpectations(t)
}

func TestCreateKanban_NotifierFailureRestoresLinkedJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errInjected)
	svc := NewKanbanService(env.kanbanRepo, env.inventory, env.jobs, storage.NewKeyedMutex(), notifier)

	prior, err := env.jobs.GetJob(ctx, "job-001")
	require.NoError(t, err)

	_, err = svc.CreateKanban(ctx, CreateKanbanRequest{
		Type:       domain.KanbanTypeProduction,
		PartNumber: "PART-001",
		JobID:      "job-001",
		Priority:   prior.Priority + 4,
	})
	require.ErrorIs(t, err, errInjected)

	job, err := env.jobs.GetJob(ctx, "job-001")
	require.NoError(t, err)
	assert.Equal(t, prior.Status, job.Status)
	assert.Equal(t, prior.Priority, job.Priority)
}

func TestCreateKanban_FinalSaveFailureRemovesCreatedJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	kanbans := &flakyKanbans{MemoryKanbans: env.kanbanRepo, failOn: 2}
	svc := NewKanbanService(kanbans, env.inventory, env.jobs, storage.NewKeyedMutex(), env.notifier)

	before, err := env.jobs.ListJobs(ctx)
	require.NoError(t, err)

	_, err = svc.CreateKanban(ctx, CreateKanbanRequest{
		Type:       domain.KanbanTypeProduction,
		PartNumber: "PART-003",
		Quantity:   40,
	})
	require.ErrorIs(t, err, errInjected)

	after, err := env.jobs.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCreateKanban_PartialMoveIsRestored(t *testing.T) {
	env := newTestEnv(t)
	inventory := &flakyInventory{MemoryInventory: env.inventory, failOn: 2}
	svc := NewKanbanService(env.kanbanRepo, inventory, env.jobs, storage.NewKeyedMutex(), env.notifier)

	_, err := svc.CreateKanban(context.Background(), withdrawal("PART-002", 100, domain.WithdrawalEndToTPA))
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-003").Location)
	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-004").Location)

	all, err := env.kanbanRepo.ListKanbans(context.Background(), port.KanbanFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateKanban_FinalSaveFailureUndoesWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	kanbans := &flakyKanbans{MemoryKanbans: env.kanbanRepo, failOn: 2}
	svc := NewKanbanService(kanbans, env.inventory, env.jobs, storage.NewKeyedMutex(), env.notifier)

	_, err := svc.CreateKanban(context.Background(), withdrawal("PART-001", 50, domain.WithdrawalEndToTPA))
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, domain.LocationEndOfLine, env.container(t, "CONT-002").Location)

	all, err := env.kanbanRepo.ListKanbans(context.Background(), port.KanbanFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateKanban_CancelWaitsForProcessing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inventory := newBlockingInventory(env.inventory)
	svc := NewKanbanService(env.kanbanRepo, inventory, env.jobs, storage.NewKeyedMutex(), env.notifier)

	type result struct {
		k   *domain.Kanban
		err error
	}
	created := make(chan result, 1)
	go func() {
		k, err := svc.CreateKanban(ctx, withdrawal("PART-001", 50, domain.WithdrawalEndToTPA))
		created <- result{k, err}
	}()

	<-inventory.entered
	pending, err := env.kanbanRepo.ListKanbans(ctx, port.KanbanFilter{Status: domain.KanbanStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = svc.CancelKanban(cancelCtx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(inventory.release)
	res := <-created
	require.NoError(t, res.err)
	assert.Equal(t, domain.KanbanStatusActive, res.k.Status)

	stored, err := svc.GetKanban(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.KanbanStatusActive, stored.Status)
	assert.Nil(t, stored.CancelledAt)

	cancelled, err := svc.CancelKanban(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.KanbanStatusCancelled, cancelled.Status)
}

func TestCreateKanban_ConcurrentWithdrawalsNeverShareContainers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		owners  = make(map[string]string)
		success int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-003", 100, domain.WithdrawalEndToTPA))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			success++
			for _, serial := range k.ContainerIDs {
				if prev, taken := owners[serial]; taken {
					t.Errorf("container %s allocated to %s and %s", serial, prev, k.ID)
				}
				owners[serial] = k.ID
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, success)
	assert.Len(t, owners, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, domain.ErrInsufficientInventory), "unexpected error: %v", err)
	}
}

func TestCompleteKanban(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-001", 50, domain.WithdrawalEndToTPA))
	require.NoError(t, err)

	done, err := env.kanbans.CompleteKanban(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KanbanStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, fixedNow, *done.CompletedAt)

	env.kanbans.now = func() time.Time { return fixedNow.Add(time.Hour) }
	again, err := env.kanbans.CompleteKanban(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, *again.CompletedAt)
}

func TestCompleteKanban_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.kanbans.CompleteKanban(context.Background(), "kanban-404")
	assert.ErrorIs(t, err, domain.ErrKanbanNotFound)
}

func TestKanbanTransitions(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, env *testEnv, status domain.KanbanStatus) string {
		k := domain.Kanban{ID: "kanban-" + string(status), Type: domain.KanbanTypeProduction, Status: status, PartNumber: "PART-001"}
		require.NoError(t, env.kanbanRepo.SaveKanban(ctx, k))
		return k.ID
	}

	cases := []struct {
		from    domain.KanbanStatus
		op      string
		want    domain.KanbanStatus
		wantErr error
	}{
		{domain.KanbanStatusPending, "complete", "", domain.ErrInvalidTransition},
		{domain.KanbanStatusActive, "complete", domain.KanbanStatusCompleted, nil},
		{domain.KanbanStatusCancelled, "complete", "", domain.ErrInvalidTransition},
		{domain.KanbanStatusPending, "cancel", domain.KanbanStatusCancelled, nil},
		{domain.KanbanStatusActive, "cancel", domain.KanbanStatusCancelled, nil},
		{domain.KanbanStatusCancelled, "cancel", domain.KanbanStatusCancelled, nil},
		{domain.KanbanStatusCompleted, "cancel", "", domain.ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+tc.op, func(t *testing.T) {
			env := newTestEnv(t)
			id := seed(t, env, tc.from)

			var (
				k   *domain.Kanban
				err error
			)
			if tc.op == "complete" {
				k, err = env.kanbans.CompleteKanban(ctx, id)
			} else {
				k, err = env.kanbans.CancelKanban(ctx, id)
			}

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				stored, getErr := env.kanbans.GetKanban(ctx, id)
				require.NoError(t, getErr)
				assert.Equal(t, tc.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, k.Status)
		})
	}
}

func TestCancelKanban_SetsCancelledAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.kanbans.CreateKanban(ctx, CreateKanbanRequest{Type: domain.KanbanTypeProduction, PartNumber: "PART-002"})
	require.NoError(t, err)

	cancelled, err := env.kanbans.CancelKanban(ctx, k.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.CompletedAt)
}

func TestAssignWorkCenter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	k, err := env.kanbans.CreateKanban(ctx, CreateKanbanRequest{Type: domain.KanbanTypeProduction, PartNumber: "PART-002"})
	require.NoError(t, err)

	updated, err := env.kanbans.AssignWorkCenter(ctx, k.ID, "WC-03")
	require.NoError(t, err)
	assert.Equal(t, "WC-03", updated.WorkCenter)

	stored, err := env.kanbans.GetKanban(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "WC-03", stored.WorkCenter)

	_, err = env.kanbans.CompleteKanban(ctx, k.ID)
	require.NoError(t, err)
	_, err = env.kanbans.AssignWorkCenter(ctx, k.ID, "WC-01")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.kanbans.AssignWorkCenter(ctx, "kanban-404", "WC-01")
	assert.ErrorIs(t, err, domain.ErrKanbanNotFound)
}

func TestListKanbans_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w, err := env.kanbans.CreateKanban(ctx, withdrawal("PART-001", 50, domain.WithdrawalEndToTPA))
	require.NoError(t, err)
	p, err := env.kanbans.CreateKanban(ctx, CreateKanbanRequest{Type: domain.KanbanTypeProduction, PartNumber: "PART-002"})
	require.NoError(t, err)
	_, err = env.kanbans.CompleteKanban(ctx, p.ID)
	require.NoError(t, err)

	all, err := env.kanbans.ListKanbans(ctx, port.KanbanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, w.ID, all[0].ID)

	withdrawals, err := env.kanbans.ListKanbansByType(ctx, domain.KanbanTypeWithdrawal)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, w.ID, withdrawals[0].ID)

	completed, err := env.kanbans.ListKanbansByStatus(ctx, domain.KanbanStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, p.ID, completed[0].ID)

	none, err := env.kanbans.ListKanbans(ctx, port.KanbanFilter{Type: domain.KanbanTypeWithdrawal, Status: domain.KanbanStatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, none)
}
