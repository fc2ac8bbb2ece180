package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalogue/internal/domain"
	"github.com/utafrali/catalogue/internal/service"
	"github.com/utafrali/catalogue/pkg/httputil"
)

// SearchHandler serves keyword search for each entity type.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// Search returns the handler for GET /api/v1/{products|categories}/search?keyword=
// Hits are written as a bare JSON array in rank order.
func (h *SearchHandler) Search(t domain.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits, err := h.service.Search(r.Context(), t, r.URL.Query().Get("keyword"))
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, hits)
	}
}
