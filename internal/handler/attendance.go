package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/ledger"
	"github.com/parlour-dev/parlour/backend/internal/realtime"
)

func (h *Handler) Punch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeID string `json:"employeeId" validate:"required"`
		Action     string `json:"action" validate:"required,oneof=punch_in punch_out"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	action := domain.PunchAction(req.Action)
	entry, err := h.ledger.RecordPunch(r.Context(), req.EmployeeID, action)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEmployeeNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "Employee not found")
		case errors.Is(err, ledger.ErrInvalidAction):
			h.errorResponse(w, r, http.StatusBadRequest, "action must be one of [punch_in punch_out]")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 广播失败不影响本次请求的结果
	if _, err := h.broadcaster.Broadcast(realtime.EventAttendanceUpdate, entry); err != nil {
		slog.Warn("无法广播打卡事件", "log_id", entry.ID, "error", err)
	}
	h.exportPunch(entry)

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%s %s successfully", entry.Employee.Name, action.Verb()),
		"log":     entry,
	})
}

// exportPunch 异步把打卡事件导出到 kafka
func (h *Handler) exportPunch(entry *domain.AttendanceLog) {
	exported := *entry
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Kafka.WriteTimeout)*time.Second)
		defer cancel()

		if err := h.exporter.ExportPunch(ctx, &exported); err != nil {
			slog.Warn("无法导出打卡事件", "log_id", exported.ID, "error", err)
		}
	}()
}

func (h *Handler) GetAttendanceLogs(w http.ResponseWriter, r *http.Request) {
	limit := ledger.DefaultLimit
	if param := r.URL.Query().Get("limit"); param != "" {
		n, err := strconv.Atoi(param)
		if err != nil || n < 1 || n > ledger.MaxLimit {
			h.errorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", ledger.MaxLimit))
			return
		}
		limit = n
	}

	logs, err := h.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, logs)
}
