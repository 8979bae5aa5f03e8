package handler

import (
	"errors"
	"net/http"

	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
)

type employeeRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Role       string `json:"role" validate:"required"`
	Department string `json:"department" validate:"required"`
	IsActive   *bool  `json:"isActive"`
}

func (h *Handler) GetAllEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.repository.GetAllEmployees(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, employees)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, employeeFrom(r))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee := &domain.Employee{
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
		IsActive:   true,
	}
	if req.IsActive != nil {
		employee.IsActive = *req.IsActive
	}

	if err := h.repository.CreateEmployee(r.Context(), employee); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			h.errorResponse(w, r, http.StatusBadRequest, "Email already exists")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.writeJSON(w, r, http.StatusCreated, employee)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	employee := employeeFrom(r)

	var req employeeRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee.Name = req.Name
	employee.Email = req.Email
	employee.Role = req.Role
	employee.Department = req.Department
	if req.IsActive != nil {
		employee.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateEmployee(r.Context(), employee); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "Employee not found")
		case errors.Is(err, repository.ErrDuplicateEmail):
			h.errorResponse(w, r, http.StatusBadRequest, "Email already exists")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, employee)
}

// DeleteEmployee 不会删除该员工的考勤记录
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	employee := employeeFrom(r)

	if err := h.repository.DeleteEmployee(r.Context(), employee.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "Employee not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.messageResponse(w, r, "Employee deleted successfully")
}
