package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
)

const taskSelect = `
	SELECT
		t.id,
		t.title,
		t.description,
		t.assigned_to,
		t.status,
		t.due_date,
		t.created_at,
		t.updated_at,
		e.name,
		e.email
	FROM tasks t
	LEFT JOIN employees e ON e.id = t.assigned_to
`

func scanTask(row rowScanner) (*domain.Task, error) {
	t := &domain.Task{}
	var name, email sql.NullString

	dst := []any{&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.Status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt, &name, &email}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if name.Valid {
		t.Assignee = &domain.EmployeeSummary{
			ID:    t.AssignedTo,
			Name:  name.String,
			Email: email.String,
		}
	}
	return t, nil
}

func (s *Store) GetAllTasks(ctx context.Context) ([]*domain.Task, error) {
	query := taskSelect + ` ORDER BY t.due_date, t.created_at`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query tasks")
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan task")
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate tasks")
	}

	return tasks, nil
}

func (s *Store) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	query := taskSelect + ` WHERE t.id = $1`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTask(s.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "failed to get task", goerr.V("id", id))
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, title, description, assigned_to, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	id := uuid.NewString()
	args := []any{id, task.Title, task.Description, task.AssignedTo, task.Status, task.DueDate}

	execCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.dbpool.ExecContext(execCtx, query, args...); err != nil {
		return goerr.Wrap(err, "failed to insert task")
	}

	created, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	*task = *created
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET
			title = $1,
			description = $2,
			assigned_to = $3,
			status = $4,
			due_date = $5,
			updated_at = NOW()
		WHERE id = $6
	`

	args := []any{task.Title, task.Description, task.AssignedTo, task.Status, task.DueDate, task.ID}

	execCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.dbpool.ExecContext(execCtx, query, args...)
	if err != nil {
		return goerr.Wrap(err, "failed to update task", goerr.V("id", task.ID))
	}
	if err := expectAffected(result, "task not found", goerr.V("id", task.ID)); err != nil {
		return err
	}

	updated, err := s.GetTaskByID(ctx, task.ID)
	if err != nil {
		return err
	}
	*task = *updated
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	query := `
		DELETE FROM tasks WHERE id = $1
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("id", id))
	}

	return expectAffected(result, "task not found", goerr.V("id", id))
}
