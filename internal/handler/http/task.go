package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/service"
	apperrors "github.com/utafrali/catalogue/pkg/errors"
	"github.com/utafrali/catalogue/pkg/httputil"
)

// reindexAccepted is the body of a 202 from StartReindex.
type reindexAccepted struct {
	UUID      string            `json:"uuid"`
	Status    domain.TaskStatus `json:"status"`
	CreatedAt string            `json:"created_at"`
}

// taskNotFound is the body of a 404 from TaskStatus.
type taskNotFound struct {
	Message string `json:"message"`
}

// TaskHandler starts reindex tasks and reports their status.
type TaskHandler struct {
	orchestrator *service.Orchestrator
	ledger       *service.Ledger
	logger       *slog.Logger
}

// NewTaskHandler creates a new task HTTP handler.
func NewTaskHandler(orchestrator *service.Orchestrator, ledger *service.Ledger, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		orchestrator: orchestrator,
		ledger:       ledger,
		logger:       logger,
	}
}

// StartReindex returns the handler for POST /api/v1/{products|categories}/update-index.
// It answers 202 with the uuid, status and created_at of the new task;
// progress is polled via TaskStatus.
func (h *TaskHandler) StartReindex(t domain.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := h.orchestrator.StartReindex(r.Context(), t)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		w.Header().Set("Location", "/api/v1/task-status/"+task.UUID)
		httputil.WriteJSON(w, http.StatusAccepted, reindexAccepted{
			UUID:      task.UUID,
			Status:    task.Status,
			CreatedAt: task.CreatedAt,
		})
	}
}

// TaskStatus handles GET /api/v1/task-status/{uuid}. The record and the 404
// message are written unwrapped.
func (h *TaskHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "uuid"))
	if !ok {
		return
	}
	task, err := h.ledger.Get(r.Context(), id.String())
	if err != nil {
		var appErr *apperrors.AppError
		if errors.Is(err, apperrors.ErrNotFound) && errors.As(err, &appErr) {
			httputil.WriteJSON(w, http.StatusNotFound, taskNotFound{Message: appErr.Message})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}
