package domain

import "time"

const MailTypeTaskAssigned = "task_assigned"

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type TaskAssignedMailData struct {
	EmployeeName string    `json:"employeeName"`
	TaskTitle    string    `json:"taskTitle"`
	Description  string    `json:"description"`
	DueDate      time.Time `json:"dueDate"`
}
