package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
)

// Memory 是进程内的存储实现，用于测试和本地开发
type Memory struct {
	mu        sync.RWMutex
	users     map[string]*domain.User
	employees map[string]*domain.Employee
	tasks     map[string]*domain.Task
	logs      []*domain.AttendanceLog
}

var _ repository.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		users:     make(map[string]*domain.User),
		employees: make(map[string]*domain.Employee),
		tasks:     make(map[string]*domain.Task),
	}
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}

func newID() string {
	return uuid.NewString()
}

func sameEmail(a, b string) bool {
	return a == b
}

func (m *Memory) CreateUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if sameEmail(u.Email, user.Email) {
			return goerr.Wrap(repository.ErrDuplicateEmail, "user email already taken", goerr.V("email", user.Email))
		}
	}

	user.ID = newID()
	user.CreatedAt = time.Now()

	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "user not found", goerr.V("id", id))
	}
	copied := *user
	return &copied, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if sameEmail(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, goerr.Wrap(repository.ErrNotFound, "user not found", goerr.V("email", email))
}

func copyEmployee(e *domain.Employee) *domain.Employee {
	copied := *e
	if e.LastPunchAction != nil {
		action := *e.LastPunchAction
		copied.LastPunchAction = &action
	}
	if e.LastPunchTime != nil {
		at := *e.LastPunchTime
		copied.LastPunchTime = &at
	}
	return &copied
}

func (m *Memory) emailTakenByOther(email, id string) bool {
	for _, e := range m.employees {
		if e.ID != id && sameEmail(e.Email, email) {
			return true
		}
	}
	return false
}

func (m *Memory) GetAllEmployees(ctx context.Context) ([]*domain.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	employees := make([]*domain.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		employees = append(employees, copyEmployee(e))
	}
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].CreatedAt.Before(employees[j].CreatedAt)
	})

	return employees, nil
}

func (m *Memory) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", id))
	}
	return copyEmployee(e), nil
}

func (m *Memory) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emailTakenByOther(employee.Email, "") {
		return goerr.Wrap(repository.ErrDuplicateEmail, "employee email already taken", goerr.V("email", employee.Email))
	}

	now := time.Now()
	employee.ID = newID()
	employee.CreatedAt = now
	employee.UpdatedAt = now

	m.employees[employee.ID] = copyEmployee(employee)
	return nil
}

func (m *Memory) UpdateEmployee(ctx context.Context, employee *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.employees[employee.ID]
	if !ok {
		return goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", employee.ID))
	}
	if m.emailTakenByOther(employee.Email, employee.ID) {
		return goerr.Wrap(repository.ErrDuplicateEmail, "employee email already taken", goerr.V("email", employee.Email))
	}

	// 打卡缓存字段只能由考勤记录更新
	stored.Name = employee.Name
	stored.Email = employee.Email
	stored.Role = employee.Role
	stored.Department = employee.Department
	stored.IsActive = employee.IsActive
	stored.UpdatedAt = time.Now()

	*employee = *copyEmployee(stored)
	return nil
}

func (m *Memory) DeleteEmployee(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[id]; !ok {
		return goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", id))
	}
	delete(m.employees, id)
	return nil
}

func (m *Memory) UpdateEmployeePunch(ctx context.Context, id string, action domain.PunchAction, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", id))
	}
	e.LastPunchAction = &action
	e.LastPunchTime = &at
	e.UpdatedAt = time.Now()
	return nil
}

// summary 要求调用方已经持有锁
func (m *Memory) summary(employeeID string) *domain.EmployeeSummary {
	e, ok := m.employees[employeeID]
	if !ok {
		return nil
	}
	return e.Summary()
}

func (m *Memory) copyTask(t *domain.Task) *domain.Task {
	copied := *t
	copied.Assignee = m.summary(t.AssignedTo)
	if copied.Assignee != nil {
		copied.Assignee.Role = ""
	}
	return &copied
}

func (m *Memory) GetAllTasks(ctx context.Context) ([]*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]*domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, m.copyTask(t))
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DueDate.Before(tasks[j].DueDate)
	})

	return tasks, nil
}

func (m *Memory) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "task not found", goerr.V("id", id))
	}
	return m.copyTask(t), nil
}

func (m *Memory) CreateTask(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	task.ID = newID()
	task.CreatedAt = now
	task.UpdatedAt = now

	stored := *task
	stored.Assignee = nil
	m.tasks[task.ID] = &stored

	*task = *m.copyTask(&stored)
	return nil
}

func (m *Memory) UpdateTask(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.tasks[task.ID]
	if !ok {
		return goerr.Wrap(repository.ErrNotFound, "task not found", goerr.V("id", task.ID))
	}
	stored.Title = task.Title
	stored.Description = task.Description
	stored.AssignedTo = task.AssignedTo
	stored.Status = task.Status
	stored.DueDate = task.DueDate
	stored.UpdatedAt = time.Now()

	*task = *m.copyTask(stored)
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return goerr.Wrap(repository.ErrNotFound, "task not found", goerr.V("id", id))
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) InsertAttendanceLog(ctx context.Context, log *domain.AttendanceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.ID = newID()
	stored := *log
	stored.Employee = nil
	m.logs = append(m.logs, &stored)

	log.Employee = m.summary(log.EmployeeID)
	return nil
}

func (m *Memory) GetRecentAttendanceLogs(ctx context.Context, limit int) ([]*domain.AttendanceLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 从后往前遍历，时间相同时后写入的记录排在前面
	logs := make([]*domain.AttendanceLog, 0, len(m.logs))
	for i := len(m.logs) - 1; i >= 0; i-- {
		copied := *m.logs[i]
		copied.Employee = m.summary(copied.EmployeeID)
		logs = append(logs, &copied)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
