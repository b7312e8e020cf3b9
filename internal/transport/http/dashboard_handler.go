package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "skupulse/internal/errors"
	mw "skupulse/internal/middleware"
	"skupulse/internal/services"
	"skupulse/internal/validation"
	api "skupulse/pkg/contracts/api/v1"
)

// multipartOverhead is the room left for form fields and part headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

// CookieSettings controls the session cookie set after an upload.
type CookieSettings struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// DashboardHandler handles the upload, table, chart and export endpoints
type DashboardHandler struct {
	service        DashboardServiceInterface
	validator      *mw.RequestValidator
	errorHandler   *apierrors.ErrorHandler
	cookie         CookieSettings
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, validator *mw.RequestValidator, errorHandler *apierrors.ErrorHandler,
	cookie CookieSettings, maxUploadBytes int64, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service:        service,
		validator:      validator,
		errorHandler:   errorHandler,
		cookie:         cookie,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "dashboard_handler")),
	}
}

// Routes returns the dashboard routes, relative to /api
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(mw.ContentTypeValidator(h.errorHandler, "multipart/form-data")).Post("/uploads", h.Upload)

	r.Route("/table", func(r chi.Router) {
		r.Get("/", h.Table)
		r.Get("/skus", h.SKUs)
		r.Get("/rows", h.Rows)
		r.Get("/summary", h.Summary)
		r.Get("/chart", h.Chart)
		r.Get("/export", h.Export)
	})

	r.Delete("/session", h.EndSession)
	return r
}

// Upload handles POST /api/uploads
func (h *DashboardHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		h.errorHandler.HandleError(w, r, uploadError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.MissingParameter("file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, uploadError(err))
		return
	}

	var opts api.UploadOptions
	if err := h.validator.BindForm(r, &opts); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "upload received",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("file", header.Filename),
		slog.Int("bytes", len(data)))

	resp, err := h.service.Upload(r.Context(), services.UploadRequest{
		SessionID: mw.SessionIDFromContext(r.Context()),
		FileName:  header.Filename,
		Data:      data,
		Overrides: opts,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	mw.SetSessionCookie(w, h.cookie.Name, resp.SessionID, h.cookie.TTL, h.cookie.Secure)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// uploadError turns body size failures into the upload size error so that
// they map to 413 however the multipart reader wrapped them.
func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %v", validation.ErrFileTooLarge, err)
	}
	return apierrors.InvalidRequestWithError(err)
}

// Table handles GET /api/table
func (h *DashboardHandler) Table(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Table(r.Context(), mw.SessionIDFromContext(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// SKUs handles GET /api/table/skus
func (h *DashboardHandler) SKUs(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.SKUs(r.Context(), mw.SessionIDFromContext(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Rows handles GET /api/table/rows
func (h *DashboardHandler) Rows(w http.ResponseWriter, r *http.Request) {
	var req api.FilterRequest
	if err := h.validator.BindQuery(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	resp, err := h.service.Rows(r.Context(), mw.SessionIDFromContext(r.Context()), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Summary handles GET /api/table/summary
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req api.FilterRequest
	if err := h.validator.BindQuery(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	resp, err := h.service.Summary(r.Context(), mw.SessionIDFromContext(r.Context()), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Chart handles GET /api/table/chart
func (h *DashboardHandler) Chart(w http.ResponseWriter, r *http.Request) {
	var req api.ChartRequest
	if err := h.validator.BindQuery(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	out, err := h.service.Chart(r.Context(), mw.SessionIDFromContext(r.Context()), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeOutput(w, r, out, "inline")
}

// Export handles GET /api/table/export
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	if err := h.validator.BindQuery(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	out, err := h.service.Export(r.Context(), mw.SessionIDFromContext(r.Context()), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeOutput(w, r, out, "attachment")
}

// EndSession handles DELETE /api/session
func (h *DashboardHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.EndSession(r.Context(), mw.SessionIDFromContext(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	mw.ClearSessionCookie(w, h.cookie.Name, h.cookie.Secure)
	render.JSON(w, r, resp)
}

func (h *DashboardHandler) writeOutput(w http.ResponseWriter, r *http.Request, out *services.Output, disposition string) {
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if out.FileName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": out.FileName}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write response body",
			slog.String("error", err.Error()))
	}
}
