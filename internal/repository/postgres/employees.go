package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
)

const employeeColumns = `id, name, email, role, department, is_active, last_punch_action, last_punch_time, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	e := &domain.Employee{}
	var (
		lastAction sql.NullString
		lastTime   sql.NullTime
	)

	dst := []any{&e.ID, &e.Name, &e.Email, &e.Role, &e.Department, &e.IsActive, &lastAction, &lastTime, &e.CreatedAt, &e.UpdatedAt}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if lastAction.Valid && lastTime.Valid {
		action := domain.PunchAction(lastAction.String)
		at := lastTime.Time
		e.LastPunchAction = &action
		e.LastPunchTime = &at
	}
	return e, nil
}

func (s *Store) GetAllEmployees(ctx context.Context) ([]*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY created_at, id`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query employees")
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan employee")
		}
		employees = append(employees, e)
	}

	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate employees")
	}

	return employees, nil
}

func (s *Store) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := scanEmployee(s.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "failed to get employee", goerr.V("id", id))
	}
	return e, nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, role, department, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	args := []any{id, employee.Name, employee.Email, employee.Role, employee.Department, employee.IsActive}
	if err := s.dbpool.QueryRowContext(ctx, query, args...).Scan(&employee.CreatedAt, &employee.UpdatedAt); err != nil {
		return mapError(err, "failed to insert employee", goerr.V("email", employee.Email))
	}

	employee.ID = id
	employee.LastPunchAction = nil
	employee.LastPunchTime = nil
	return nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee *domain.Employee) error {
	// 打卡缓存字段只能由考勤记录更新
	query := `
		UPDATE employees
		SET
			name = $1,
			email = $2,
			role = $3,
			department = $4,
			is_active = $5,
			updated_at = NOW()
		WHERE id = $6
		RETURNING ` + employeeColumns

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	args := []any{employee.Name, employee.Email, employee.Role, employee.Department, employee.IsActive, employee.ID}
	updated, err := scanEmployee(s.dbpool.QueryRowContext(ctx, query, args...))
	if err != nil {
		return mapError(err, "failed to update employee", goerr.V("id", employee.ID))
	}

	*employee = *updated
	return nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	query := `
		DELETE FROM employees WHERE id = $1
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete employee", goerr.V("id", id))
	}

	return expectAffected(result, "employee not found", goerr.V("id", id))
}

func (s *Store) UpdateEmployeePunch(ctx context.Context, id string, action domain.PunchAction, at time.Time) error {
	query := `
		UPDATE employees
		SET last_punch_action = $1, last_punch_time = $2, updated_at = NOW()
		WHERE id = $3
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.dbpool.ExecContext(ctx, query, action, at, id)
	if err != nil {
		return goerr.Wrap(err, "failed to update employee punch", goerr.V("id", id))
	}

	return expectAffected(result, "employee not found", goerr.V("id", id))
}
