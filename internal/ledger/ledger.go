package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
)

const (
	DefaultLimit = 10
	MaxLimit     = 10
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrInvalidAction    = errors.New("invalid punch action")
)

// Store 是 Ledger 需要的存储能力
type Store interface {
	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	InsertAttendanceLog(ctx context.Context, log *domain.AttendanceLog) error
	UpdateEmployeePunch(ctx context.Context, id string, action domain.PunchAction, at time.Time) error
	GetRecentAttendanceLogs(ctx context.Context, limit int) ([]*domain.AttendanceLog, error)
}

// Ledger 负责追加打卡记录并维护员工的最近打卡状态。
// 同一员工的并发打卡不做串行化，缓存状态以最后写入的为准。
type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// RecordPunch 不校验打卡动作是否交替，连续两次上班打卡都会被记录
func (l *Ledger) RecordPunch(ctx context.Context, employeeID string, action domain.PunchAction) (*domain.AttendanceLog, error) {
	if !action.Valid() {
		return nil, goerr.Wrap(ErrInvalidAction, "unsupported action", goerr.V("action", action))
	}

	employee, err := l.store.GetEmployeeByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, goerr.Wrap(ErrEmployeeNotFound, "cannot punch for missing employee", goerr.V("employee_id", employeeID))
		}
		return nil, goerr.Wrap(err, "failed to load employee", goerr.V("employee_id", employeeID))
	}

	// 存储层的时间精度为毫秒
	at := l.now().UTC().Truncate(time.Millisecond)

	entry := &domain.AttendanceLog{
		EmployeeID: employee.ID,
		Action:     action,
		Timestamp:  at,
	}
	if err := l.store.InsertAttendanceLog(ctx, entry); err != nil {
		return nil, goerr.Wrap(err, "failed to append attendance log", goerr.V("employee_id", employeeID))
	}

	if err := l.store.UpdateEmployeePunch(ctx, employee.ID, action, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, goerr.Wrap(ErrEmployeeNotFound, "employee removed during punch", goerr.V("employee_id", employeeID))
		}
		return nil, goerr.Wrap(err, "failed to update last punch", goerr.V("employee_id", employeeID))
	}

	// 使用打卡前读取到的员工信息，避免再查一次
	entry.Employee = employee.Summary()
	return entry, nil
}

// ListRecent 返回最近的打卡记录，limit 超出范围时使用默认值
func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]*domain.AttendanceLog, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	logs, err := l.store.GetRecentAttendanceLogs(ctx, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attendance logs", goerr.V("limit", limit))
	}
	return logs, nil
}
