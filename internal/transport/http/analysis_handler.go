package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/net/html"

	apierrors "quotepulse/internal/errors"
	"quotepulse/internal/exporter"
	mw "quotepulse/internal/middleware"
)

const preStyle = "white-space:pre-wrap;word-break:break-word;font:14px/1.4 system-ui;color:#111;background:#fff;padding:12px;margin:0"

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Quote string `json:"quote" validate:"required,notblank,max=2000"`
}

// AnalysisHandler serves the quote analysis endpoints
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	validation   *mw.ValidationMiddleware
	params       *mw.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	defaultQuote string
	logger       *slog.Logger
}

// NewAnalysisHandler creates an analysis handler. defaultQuote is used by the
// GET endpoints when q is absent.
func NewAnalysisHandler(
	service AnalysisServiceInterface,
	validation *mw.ValidationMiddleware,
	params *mw.QueryParamValidator,
	errorHandler *apierrors.ErrorHandler,
	defaultQuote string,
	logger *slog.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		validation:   validation,
		params:       params,
		errorHandler: errorHandler,
		defaultQuote: defaultQuote,
		logger:       logger.With(slog.String("component", "analysis_handler")),
	}
}

// Routes returns the routes mounted under /api/analyze
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Browsers posting with fetch() default to text/plain for string bodies
	r.With(
		mw.ContentTypeValidator("application/json", "text/plain"),
		h.validation.ValidateRequest,
	).Post("/", h.Analyze)

	r.Get("/", h.AnalyzePage)
	r.Get("/export", h.Export)

	return r
}

// Analyze handles POST /api/analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.Analyze(r.Context(), req.Quote)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "analysis served",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("event_date", report.Market.EventTradingDate),
		slog.Bool("cached", report.Cached),
	)

	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, report)
}

// AnalyzePage handles GET /api/analyze?q=... and renders the outcome as an
// indented JSON document inside an HTML <pre>. Failures are rendered the same
// way with the problem's status code.
func (h *AnalysisHandler) AnalyzePage(w http.ResponseWriter, r *http.Request) {
	quote := h.queryQuote(r)

	var (
		payload interface{}
		status  = http.StatusOK
	)
	report, err := h.service.Analyze(r.Context(), quote)
	if err != nil {
		problem := h.errorHandler.Problem(r, err)
		if secs := problem.RetryAfter(); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		payload, status = problem, problem.Status
	} else {
		payload = report
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var page bytes.Buffer
	page.WriteString("<!doctype html><meta charset=\"utf-8\">\n")
	page.WriteString("<pre style=\"" + preStyle + "\">")
	page.WriteString(html.EscapeString(string(body)))
	page.WriteString("</pre>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(page.Bytes())
}

// Export handles GET /api/analyze/export?q=...&format=csv|xlsx
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	value, ok := h.params.ValidateEnum(w, r, "format", exporter.Formats, string(exporter.FormatCSV))
	if !ok {
		return
	}
	format := exporter.Format(value)
	quote := h.queryQuote(r)

	report, err := h.service.Analyze(r.Context(), quote)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Write(&buf, format, report.AlignmentResult); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ExportError(value, err))
		return
	}

	filename := exporter.Filename(quote, report.Market.EventTradingDate, format)
	h.logger.InfoContext(r.Context(), "export served",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("format", value),
		slog.String("filename", filename),
		slog.Int("bytes", buf.Len()),
	)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *AnalysisHandler) queryQuote(r *http.Request) string {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		return q
	}
	return h.defaultQuote
}
