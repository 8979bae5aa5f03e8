package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
)

func (s *Store) InsertAttendanceLog(ctx context.Context, log *domain.AttendanceLog) error {
	query := `
		WITH inserted AS (
			INSERT INTO attendance_logs (id, employee_id, action, timestamp)
			VALUES ($1, $2, $3, $4)
			RETURNING employee_id
		)
		SELECT e.name, e.email, e.role
		FROM inserted i
		LEFT JOIN employees e ON e.id = i.employee_id
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	var name, email, role sql.NullString
	args := []any{id, log.EmployeeID, log.Action, log.Timestamp}
	if err := s.dbpool.QueryRowContext(ctx, query, args...).Scan(&name, &email, &role); err != nil {
		return goerr.Wrap(err, "failed to insert attendance log", goerr.V("employee_id", log.EmployeeID))
	}

	log.ID = id
	log.Employee = nil
	if name.Valid {
		log.Employee = &domain.EmployeeSummary{
			ID:    log.EmployeeID,
			Name:  name.String,
			Email: email.String,
			Role:  role.String,
		}
	}
	return nil
}

func (s *Store) GetRecentAttendanceLogs(ctx context.Context, limit int) ([]*domain.AttendanceLog, error) {
	query := `
		SELECT
			a.id,
			a.employee_id,
			a.action,
			a.timestamp,
			e.name,
			e.email,
			e.role
		FROM attendance_logs a
		LEFT JOIN employees e ON e.id = a.employee_id
		ORDER BY a.timestamp DESC, a.seq DESC
		LIMIT $1
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.dbpool.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query attendance logs")
	}
	defer rows.Close()

	logs := make([]*domain.AttendanceLog, 0, limit)
	for rows.Next() {
		log := &domain.AttendanceLog{}
		var name, email, role sql.NullString

		dst := []any{&log.ID, &log.EmployeeID, &log.Action, &log.Timestamp, &name, &email, &role}
		if err := rows.Scan(dst...); err != nil {
			return nil, goerr.Wrap(err, "failed to scan attendance log")
		}
		if name.Valid {
			log.Employee = &domain.EmployeeSummary{
				ID:    log.EmployeeID,
				Name:  name.String,
				Email: email.String,
				Role:  role.String,
			}
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate attendance logs")
	}

	return logs, nil
}
