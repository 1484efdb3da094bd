package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	mw "quotepulse/internal/middleware"
)

// TodayHandler serves the headline and intraday snapshot
type TodayHandler struct {
	service TodayServiceInterface
	params  *mw.QueryParamValidator
	logger  *slog.Logger
}

// NewTodayHandler creates a today handler
func NewTodayHandler(service TodayServiceInterface, params *mw.QueryParamValidator, logger *slog.Logger) *TodayHandler {
	return &TodayHandler{
		service: service,
		params:  params,
		logger:  logger.With(slog.String("component", "today_handler")),
	}
}

// Routes returns the routes mounted under /api/today
func (h *TodayHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.Today)
	return r
}

// Today handles GET /api/today[?force=1]. The snapshot is always rendered as
// JSON; failures keep their diagnostics in the body.
func (h *TodayHandler) Today(w http.ResponseWriter, r *http.Request) {
	force := h.params.ValidateBool(r, "force")
	snap := h.service.Snapshot(r.Context(), force)

	status := snap.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	if !snap.OK {
		h.logger.WarnContext(r.Context(), "snapshot failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", snap.Error),
			slog.Int("status", status),
		)
	}

	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, status)
	render.JSON(w, r, snap)
}
