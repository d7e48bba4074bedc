package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kanbans (
		id VARCHAR(64) PRIMARY KEY,
		type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		completed_at DATETIME(6) NULL,
		cancelled_at DATETIME(6) NULL,
		part_number VARCHAR(64) NOT NULL,
		part_description VARCHAR(255) NOT NULL DEFAULT '',
		quantity INT NOT NULL DEFAULT 0,
		container_ids JSON NOT NULL,
		customer_id VARCHAR(64) NOT NULL DEFAULT '',
		route VARCHAR(64) NOT NULL DEFAULT '',
		withdrawal_type VARCHAR(16) NOT NULL DEFAULT '',
		from_location VARCHAR(32) NOT NULL DEFAULT '',
		to_location VARCHAR(32) NOT NULL DEFAULT '',
		work_center VARCHAR(64) NOT NULL DEFAULT '',
		priority INT NOT NULL DEFAULT 0,
		job_id VARCHAR(64) NOT NULL DEFAULT '',
		KEY idx_kanbans_type_status (type, status)
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id VARCHAR(64) PRIMARY KEY,
		part_number VARCHAR(64) NOT NULL,
		quantity INT NOT NULL DEFAULT 0,
		completion_date DATETIME NOT NULL,
		sort_order INT NOT NULL DEFAULT 0,
		work_center VARCHAR(64) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		priority INT NOT NULL DEFAULT 0,
		version INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS work_centers (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		machine_group VARCHAR(64) NOT NULL DEFAULT '',
		capacity INT NOT NULL DEFAULT 0,
		current_load INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS customer_orders (
		id VARCHAR(64) PRIMARY KEY,
		customer_id VARCHAR(64) NOT NULL,
		part_number VARCHAR(64) NOT NULL,
		quantity INT NOT NULL DEFAULT 0,
		due_date DATETIME NOT NULL,
		status VARCHAR(16) NOT NULL,
		route VARCHAR(64) NOT NULL DEFAULT ''
	)`,
}

// MySQLAdapter persists kanbans, jobs, work centers and customer orders.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

var (
	_ port.KanbanRepository = (*MySQLAdapter)(nil)
	_ port.JobRepository    = (*MySQLAdapter)(nil)
	_ port.OrderRepository  = (*MySQLAdapter)(nil)
)

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const kanbanColumns = `id, type, status, created_at, completed_at, cancelled_at, part_number,
	part_description, quantity, container_ids, customer_id, route, withdrawal_type,
	from_location, to_location, work_center, priority, job_id`

func (m *MySQLAdapter) SaveKanban(ctx context.Context, k domain.Kanban) error {
	containerIDs, err := json.Marshal(append([]string{}, k.ContainerIDs...))
	if err != nil {
		return fmt.Errorf("encode container ids: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO kanbans (`+kanbanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), completed_at = VALUES(completed_at),
			cancelled_at = VALUES(cancelled_at), part_description = VALUES(part_description),
			quantity = VALUES(quantity), container_ids = VALUES(container_ids),
			from_location = VALUES(from_location), to_location = VALUES(to_location),
			work_center = VALUES(work_center), priority = VALUES(priority), job_id = VALUES(job_id)`,
		k.ID, k.Type, k.Status, k.CreatedAt, k.CompletedAt, k.CancelledAt, k.PartNumber,
		k.PartDescription, k.Quantity, containerIDs, k.CustomerID, k.Route, k.WithdrawalType,
		k.FromLocation, k.ToLocation, k.WorkCenter, k.Priority, k.JobID,
	)
	if err != nil {
		return fmt.Errorf("save kanban %s: %w", k.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) GetKanban(ctx context.Context, id string) (*domain.Kanban, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+kanbanColumns+` FROM kanbans WHERE id = ?`, id)
	k, err := scanKanban(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrKanbanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query kanban %s: %w", id, err)
	}
	return k, nil
}

func (m *MySQLAdapter) ListKanbans(ctx context.Context, filter port.KanbanFilter) ([]domain.Kanban, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	query := `SELECT ` + kanbanColumns + ` FROM kanbans`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query kanbans: %w", err)
	}
	defer rows.Close()

	out := []domain.Kanban{}
	for rows.Next() {
		k, err := scanKanban(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kanban: %w", err)
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) DeleteKanban(ctx context.Context, id string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM kanbans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete kanban %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanKanban(s scanner) (*domain.Kanban, error) {
	var (
		k            domain.Kanban
		completedAt  sql.NullTime
		cancelledAt  sql.NullTime
		containerIDs []byte
	)
	err := s.Scan(&k.ID, &k.Type, &k.Status, &k.CreatedAt, &completedAt, &cancelledAt, &k.PartNumber,
		&k.PartDescription, &k.Quantity, &containerIDs, &k.CustomerID, &k.Route, &k.WithdrawalType,
		&k.FromLocation, &k.ToLocation, &k.WorkCenter, &k.Priority, &k.JobID)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		k.CompletedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		k.CancelledAt = &t
	}
	if err := json.Unmarshal(containerIDs, &k.ContainerIDs); err != nil {
		return nil, fmt.Errorf("decode container ids: %w", err)
	}
	return &k, nil
}

const jobColumns = `id, part_number, quantity, completion_date, sort_order, work_center, status, priority, version`

func (m *MySQLAdapter) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.PartNumber, &j.Quantity, &j.CompletionDate, &j.SortOrder,
			&j.WorkCenter, &j.Status, &j.Priority, &j.Version); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var j domain.Job
	err := m.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id).
		Scan(&j.ID, &j.PartNumber, &j.Quantity, &j.CompletionDate, &j.SortOrder,
			&j.WorkCenter, &j.Status, &j.Priority, &j.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query job %s: %w", id, err)
	}
	return &j, nil
}

func (m *MySQLAdapter) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	job.ID = "job-" + uuid.NewString()[:8]
	job.Version = 0
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.PartNumber, job.Quantity, job.CompletionDate, job.SortOrder,
		job.WorkCenter, job.Status, job.Priority, job.Version,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// UpdateJob applies patch to the current row, guarded by the row version.
func (m *MySQLAdapter) UpdateJob(ctx context.Context, id string, patch domain.JobPatch) (domain.Job, error) {
	current, err := m.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	job := *current
	patch.Apply(&job)

	result, err := m.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, priority = ?, work_center = ?, sort_order = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		job.Status, job.Priority, job.WorkCenter, job.SortOrder, job.ID, job.Version,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.Job{}, domain.ErrOptimisticLock
	}

	job.Version++
	return job, nil
}

func (m *MySQLAdapter) DeleteJob(ctx context.Context, id string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) ReorderJobs(ctx context.Context, ids []string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs SET sort_order = ?, version = version + 1 WHERE id = ?`, i+1, id); err != nil {
			return fmt.Errorf("reorder job %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ListWorkCenters(ctx context.Context) ([]domain.WorkCenter, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, machine_group, capacity, current_load FROM work_centers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query work centers: %w", err)
	}
	defer rows.Close()

	out := []domain.WorkCenter{}
	for rows.Next() {
		var wc domain.WorkCenter
		if err := rows.Scan(&wc.ID, &wc.Name, &wc.MachineGroup, &wc.Capacity, &wc.CurrentLoad); err != nil {
			return nil, fmt.Errorf("scan work center: %w", err)
		}
		out = append(out, wc)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListOrders(ctx context.Context) ([]domain.CustomerOrder, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, customer_id, part_number, quantity, due_date, status, route
		FROM customer_orders ORDER BY due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := []domain.CustomerOrder{}
	for rows.Next() {
		var o domain.CustomerOrder
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.PartNumber, &o.Quantity, &o.DueDate, &o.Status, &o.Route); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.CustomerOrder, error) {
	if !status.Valid() {
		return domain.CustomerOrder{}, fmt.Errorf("%w: order status %q", domain.ErrInvalidRequest, status)
	}

	result, err := m.db.ExecContext(ctx, `UPDATE customer_orders SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return domain.CustomerOrder{}, fmt.Errorf("update order %s: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// MySQL reports 0 affected rows when the status is unchanged, so confirm the row exists.
		var exists int
		err := m.db.QueryRowContext(ctx, `SELECT 1 FROM customer_orders WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CustomerOrder{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		if err != nil {
			return domain.CustomerOrder{}, fmt.Errorf("query order %s: %w", id, err)
		}
	}

	var o domain.CustomerOrder
	err = m.db.QueryRowContext(ctx, `
		SELECT id, customer_id, part_number, quantity, due_date, status, route
		FROM customer_orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.CustomerID, &o.PartNumber, &o.Quantity, &o.DueDate, &o.Status, &o.Route)
	if err != nil {
		return domain.CustomerOrder{}, fmt.Errorf("query order %s: %w", id, err)
	}
	return o, nil
}

// Seed loads jobs, work centers and orders, replacing rows with the same ids.
func (m *MySQLAdapter) Seed(ctx context.Context, data MockData) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, j := range data.Jobs {
		if _, err := tx.ExecContext(ctx, `REPLACE INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			j.ID, j.PartNumber, j.Quantity, j.CompletionDate, j.SortOrder, j.WorkCenter, j.Status, j.Priority); err != nil {
			return fmt.Errorf("seed job %s: %w", j.ID, err)
		}
	}
	for _, wc := range data.WorkCenters {
		if _, err := tx.ExecContext(ctx, `REPLACE INTO work_centers (id, name, machine_group, capacity, current_load) VALUES (?, ?, ?, ?, ?)`,
			wc.ID, wc.Name, wc.MachineGroup, wc.Capacity, wc.CurrentLoad); err != nil {
			return fmt.Errorf("seed work center %s: %w", wc.ID, err)
		}
	}
	for _, o := range data.Orders {
		if _, err := tx.ExecContext(ctx, `REPLACE INTO customer_orders (id, customer_id, part_number, quantity, due_date, status, route) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.CustomerID, o.PartNumber, o.Quantity, o.DueDate, o.Status, o.Route); err != nil {
			return fmt.Errorf("seed order %s: %w", o.ID, err)
		}
	}
	return tx.Commit()
}

// connMaxLifetime is applied when the configuration leaves it unset.
const connMaxLifetime = 5 * time.Minute

// OpenMySQL opens a pool and pings it. The DSN needs parseTime=true.
func OpenMySQL(ctx context.Context, dsn string, maxOpen, maxIdle int, lifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if lifetime <= 0 {
		lifetime = connMaxLifetime
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
