package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/kanban?parseTime=true"
	}

	db, err := OpenMySQL(context.Background(), dsn, 5, 5, time.Minute)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := NewMySQLAdapter(db).Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func TestMySQLKanban_SaveAndGet(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	db.ExecContext(ctx, `DELETE FROM kanbans WHERE id LIKE 'test-kanban-%'`)

	created := time.Now().UTC().Truncate(time.Microsecond)
	k := domain.Kanban{
		ID:             "test-kanban-" + created.Format("20060102150405"),
		Type:           domain.KanbanTypeWithdrawal,
		Status:         domain.KanbanStatusPending,
		CreatedAt:      created,
		PartNumber:     "PART-001",
		Quantity:       50,
		ContainerIDs:   []string{},
		WithdrawalType: domain.WithdrawalEndToTPA,
	}
	require.NoError(t, adapter.SaveKanban(ctx, k))

	completed := created.Add(time.Hour)
	k.Status = domain.KanbanStatusCompleted
	k.CompletedAt = &completed
	k.ContainerIDs = []string{"CONT-002"}
	k.FromLocation = domain.LocationEndOfLine
	k.ToLocation = domain.LocationTPA
	require.NoError(t, adapter.SaveKanban(ctx, k))

	got, err := adapter.GetKanban(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KanbanStatusCompleted, got.Status)
	assert.Equal(t, []string{"CONT-002"}, got.ContainerIDs)
	assert.Equal(t, domain.LocationTPA, got.ToLocation)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completed.Equal(*got.CompletedAt))
	assert.Nil(t, got.CancelledAt)

	completedOnly, err := adapter.ListKanbans(ctx, port.KanbanFilter{
		Type:   domain.KanbanTypeWithdrawal,
		Status: domain.KanbanStatusCompleted,
	})
	require.NoError(t, err)
	ids := make([]string, len(completedOnly))
	for i, c := range completedOnly {
		ids[i] = c.ID
	}
	assert.Contains(t, ids, k.ID)

	require.NoError(t, adapter.DeleteKanban(ctx, k.ID))
	_, err = adapter.GetKanban(ctx, k.ID)
	assert.ErrorIs(t, err, domain.ErrKanbanNotFound)
}

func TestMySQLJobs_UpdateAndReorder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	require.NoError(t, adapter.Seed(ctx, NewMockData()))

	status := domain.JobStatusInProgress
	job, err := adapter.UpdateJob(ctx, "job-001", domain.JobPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInProgress, job.Status)
	assert.Equal(t, "PART-001", job.PartNumber)

	require.NoError(t, adapter.ReorderJobs(ctx, []string{"job-003", "job-001", "job-002"}))
	jobs, err := adapter.ListJobs(ctx)
	require.NoError(t, err)
	order := make(map[string]int, len(jobs))
	for _, j := range jobs {
		order[j.ID] = j.SortOrder
	}
	assert.Equal(t, 1, order["job-003"])
	assert.Equal(t, 2, order["job-001"])
	assert.Equal(t, 3, order["job-002"])

	_, err = adapter.UpdateJob(ctx, "job-404", domain.JobPatch{Status: &status})
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMySQLJobs_Create(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	job, err := adapter.CreateJob(ctx, domain.Job{
		PartNumber:     "PART-002",
		Quantity:       10,
		CompletionDate: time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second),
		Status:         domain.JobStatusPending,
		Priority:       1,
	})
	require.NoError(t, err)
	defer db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID)

	got, err := adapter.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "PART-002", got.PartNumber)

	require.NoError(t, adapter.DeleteJob(ctx, job.ID))
	_, err = adapter.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMySQLOrders_UpdateStatus(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	require.NoError(t, adapter.Seed(ctx, NewMockData()))

	order, err := adapter.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	_, err = adapter.UpdateOrderStatus(ctx, "order-404", domain.OrderStatusShipped)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	centers, err := adapter.ListWorkCenters(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(centers), 3)
}
