package domain

import "time"

type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	IsActive   bool   `json:"isActive"`

	// 由考勤记录派生的缓存字段，两者要么同时为空，要么同时存在
	LastPunchAction *PunchAction `json:"lastPunchAction,omitempty"`
	LastPunchTime   *time.Time   `json:"lastPunchTime,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EmployeeSummary 是关联查询时返回的员工信息
type EmployeeSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (e *Employee) Summary() *EmployeeSummary {
	return &EmployeeSummary{
		ID:    e.ID,
		Name:  e.Name,
		Email: e.Email,
		Role:  e.Role,
	}
}
