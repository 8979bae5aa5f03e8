package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
)

type taskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	AssignedTo  string `json:"assignedTo" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=pending in_progress completed"`
	DueDate     string `json:"dueDate" validate:"required"`
}

var errInvalidDueDate = errors.New("dueDate must be a valid date")

// parseDueDate 接受 RFC 3339 时间或者 YYYY-MM-DD 格式的日期
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidDueDate
}

// readTaskRequest 校验请求并确认负责人存在，出错时已经写出响应
func (h *Handler) readTaskRequest(w http.ResponseWriter, r *http.Request) (*taskRequest, time.Time, *domain.Employee, bool) {
	var req taskRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return nil, time.Time{}, nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return nil, time.Time{}, nil, false
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		h.badRequest(w, r, err)
		return nil, time.Time{}, nil, false
	}

	assignee, err := h.repository.GetEmployeeByID(r.Context(), req.AssignedTo)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "Employee not found")
		default:
			h.internalServerError(w, r, err)
		}
		return nil, time.Time{}, nil, false
	}

	return &req, dueDate, assignee, true
}

func (h *Handler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repository.GetAllTasks(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, tasks)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, taskFrom(r))
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, dueDate, assignee, ok := h.readTaskRequest(w, r)
	if !ok {
		return
	}

	task := &domain.Task{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  assignee.ID,
		Status:      domain.TaskStatus(req.Status),
		DueDate:     dueDate,
	}

	if err := h.repository.CreateTask(r.Context(), task); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.notifyTaskAssigned(r, task, assignee)

	h.writeJSON(w, r, http.StatusCreated, task)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task := taskFrom(r)

	req, dueDate, assignee, ok := h.readTaskRequest(w, r)
	if !ok {
		return
	}

	reassigned := task.AssignedTo != assignee.ID

	task.Title = req.Title
	task.Description = req.Description
	task.AssignedTo = assignee.ID
	task.Status = domain.TaskStatus(req.Status)
	task.DueDate = dueDate

	if err := h.repository.UpdateTask(r.Context(), task); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "Task not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if reassigned {
		h.notifyTaskAssigned(r, task, assignee)
	}

	h.writeJSON(w, r, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task := taskFrom(r)

	if err := h.repository.DeleteTask(r.Context(), task.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "Task not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.messageResponse(w, r, "Task deleted successfully")
}
