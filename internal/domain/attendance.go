package domain

import "time"

type PunchAction string

const (
	PunchIn  PunchAction = "punch_in"
	PunchOut PunchAction = "punch_out"
)

func (a PunchAction) Valid() bool {
	return a == PunchIn || a == PunchOut
}

// Verb 返回用于提示信息的动词短语
func (a PunchAction) Verb() string {
	if a == PunchIn {
		return "punched in"
	}
	return "punched out"
}

// AttendanceLog 是追加写入的打卡记录，写入后不会再被修改
type AttendanceLog struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employeeId"`
	Employee   *EmployeeSummary `json:"employee"` // 员工已被删除时为 null
	Action     PunchAction      `json:"action"`
	Timestamp  time.Time        `json:"timestamp"`
}
