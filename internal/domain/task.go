package domain

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

type Task struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	AssignedTo  string           `json:"assignedToId"`
	Assignee    *EmployeeSummary `json:"assignedTo"`
	Status      TaskStatus       `json:"status"`
	DueDate     time.Time        `json:"dueDate"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}
