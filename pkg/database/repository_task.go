// Copyright 2025 Certen Protocol
//
// Task Repository - CRUD operations for background/startup task records.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// TaskRepository handles background task record operations.
type TaskRepository struct {
	client *Client
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(client *Client) *TaskRepository {
	return &TaskRepository{client: client}
}

// Create inserts a new task row in pending status.
func (r *TaskRepository) Create(ctx context.Context, taskType string) (*Task, error) {
	t := &Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		Status: TaskStatusPending,
	}
	query := `
		INSERT INTO tasks (id, type, status, progress, message, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '', now(), now())
		RETURNING created_at, updated_at`
	err := r.client.QueryRowContext(ctx, query, t.ID, t.Type, t.Status).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// UpdateProgress updates a task's status, progress, and message.
func (r *TaskRepository) UpdateProgress(ctx context.Context, id string, status TaskStatus, progress int, message string) error {
	res, err := r.client.ExecContext(ctx, `
		UPDATE tasks SET status = $2, progress = $3, message = $4, updated_at = now()
		WHERE id = $1`, id, status, progress, message)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Get retrieves a task by id.
func (r *TaskRepository) Get(ctx context.Context, id string) (*Task, error) {
	t := &Task{}
	err := r.client.QueryRowContext(ctx, `
		SELECT id, type, status, progress, message, created_at, updated_at
		FROM tasks WHERE id = $1`, id).Scan(
		&t.ID, &t.Type, &t.Status, &t.Progress, &t.Message, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

// List returns the most recently created tasks, newest first, optionally
// restricted to a type, for the operator task listing.
func (r *TaskRepository) List(ctx context.Context, taskType string, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, type, status, progress, message, created_at, updated_at FROM tasks`
	args := []interface{}{}
	if taskType != "" {
		query += ` WHERE type = $1`
		args = append(args, taskType)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t := &Task{}
		if err := rows.Scan(&t.ID, &t.Type, &t.Status, &t.Progress, &t.Message, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByType returns the most recently created task of a given type, used
// to check whether a startup task has already run.
func (r *TaskRepository) GetByType(ctx context.Context, taskType string) (*Task, error) {
	t := &Task{}
	err := r.client.QueryRowContext(ctx, `
		SELECT id, type, status, progress, message, created_at, updated_at
		FROM tasks WHERE type = $1 ORDER BY created_at DESC LIMIT 1`, taskType).Scan(
		&t.ID, &t.Type, &t.Status, &t.Progress, &t.Message, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}
