package repository

import (
	"context"
	"errors"
	"time"

	"github.com/parlour-dev/parlour/backend/internal/domain"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository 是存储层的统一接口，mongo、postgres、memory 三种实现都满足它。
// 关联字段（考勤记录的员工、任务的负责人）由实现负责填充。
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	GetAllEmployees(ctx context.Context) ([]*domain.Employee, error)
	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
	UpdateEmployee(ctx context.Context, employee *domain.Employee) error
	DeleteEmployee(ctx context.Context, id string) error
	UpdateEmployeePunch(ctx context.Context, id string, action domain.PunchAction, at time.Time) error

	// GetAllTasks 按截止日期升序返回
	GetAllTasks(ctx context.Context) ([]*domain.Task, error)
	GetTaskByID(ctx context.Context, id string) (*domain.Task, error)
	CreateTask(ctx context.Context, task *domain.Task) error
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, id string) error

	// InsertAttendanceLog 写入记录并设置 ID，不保证填充 Employee
	InsertAttendanceLog(ctx context.Context, log *domain.AttendanceLog) error
	// GetRecentAttendanceLogs 按时间倒序返回最多 limit 条记录
	GetRecentAttendanceLogs(ctx context.Context, limit int) ([]*domain.AttendanceLog, error)

	Close(ctx context.Context) error
}
