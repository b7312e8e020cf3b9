package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"skupulse/internal/chart"
	"skupulse/internal/dataprocessing"
	"skupulse/internal/services"
	"skupulse/internal/session"
	"skupulse/internal/validation"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
)

// Ingest and data error types
const (
	TypeIngestDecoding  = "/errors/ingest/decoding"
	TypeIngestSchema    = "/errors/ingest/schema"
	TypeIngestDate      = "/errors/ingest/date"
	TypeIngestMalformed = "/errors/ingest/malformed"
	TypeNoData          = "/errors/data/no-data"
	TypeNoTable         = "/errors/data/no-table"
	TypeUnknownColumn   = "/errors/data/unknown-column"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	reqID := middleware.GetReqID(r.Context())

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("problem_type", problem.Type),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	instance := r.URL.Path

	var (
		apiErr      *APIError
		maxBytesErr *http.MaxBytesError
		validErrs   validator.ValidationErrors
		decErr      *dataprocessing.DecodingError
		schemaErr   *dataprocessing.SchemaError
		dateErr     *dataprocessing.DateParseError
		malErr      *dataprocessing.MalformedTableError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", instance)

	case errors.As(err, &apiErr):
		return h.apiErrorToProblem(apiErr, r)

	case errors.As(err, &maxBytesErr), errors.Is(err, validation.ErrFileTooLarge):
		problem := NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			"The uploaded file exceeds the maximum allowed size", instance)
		if maxBytesErr != nil {
			problem.WithExtension("limit_bytes", maxBytesErr.Limit)
		}
		return problem

	case errors.As(err, &validErrs):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed",
			"One or more request parameters are invalid", instance).
			WithExtension("errors", ValidationErrorsFrom(validErrs))

	case errors.As(err, &decErr):
		problem := NewProblemDetails(http.StatusUnprocessableEntity, TypeIngestDecoding, "File Could Not Be Decoded",
			decErr.Error(), instance).
			WithExtension("attempted_encodings", decErr.Attempted)
		if decErr.Detected != "" {
			problem.WithExtension("detected_charset", decErr.Detected)
		}
		return problem

	case errors.As(err, &schemaErr):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeIngestSchema, "Missing Required Columns",
			schemaErr.Error(), instance).
			WithExtension("missing_columns", schemaErr.Missing).
			WithExtension("found_columns", schemaErr.Found)

	case errors.As(err, &dateErr):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeIngestDate, "Invalid Date",
			dateErr.Error(), instance).
			WithExtension("row", dateErr.Line).
			WithExtension("value", dateErr.Value).
			WithExtension("pattern", dateErr.Pattern)

	case errors.As(err, &malErr):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeIngestMalformed, "Malformed Table",
			malErr.Error(), instance).
			WithExtension("line", malErr.Line)

	case errors.Is(err, dataprocessing.ErrUnknownColumn):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeUnknownColumn, "Unknown Column",
			err.Error(), instance)

	case errors.Is(err, dataprocessing.ErrNoData):
		return NewProblemDetails(http.StatusNotFound, TypeNoData, "No Data",
			"No data available for the selected SKU and date range", instance)

	case errors.Is(err, chart.ErrNothingToPlot):
		return NewProblemDetails(http.StatusNotFound, TypeNoData, "No Data",
			"The selected rows have no metric values to plot", instance)

	case errors.Is(err, services.ErrNoTable):
		return NewProblemDetails(http.StatusConflict, TypeNoTable, "No Table",
			"Upload a file before requesting table data", instance)

	case errors.Is(err, session.ErrNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Session Not Found",
			"The session does not exist or has expired", instance)

	case errors.Is(err, dataprocessing.ErrInvalidOptions),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, chart.ErrNotMetric),
		errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, validation.ErrUnsupportedFile):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed",
			err.Error(), instance)

	case errors.Is(err, services.ErrServiceUnavailable):
		return NewProblemDetails(http.StatusServiceUnavailable, TypeServiceDown, "Service Unavailable",
			err.Error(), instance)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
			"An unexpected error occurred while processing your request", instance)
	}
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		problemType = TypeValidation
	case http.StatusNotFound:
		problemType = TypeNotFound
	case http.StatusConflict:
		problemType = TypeConflict
	case http.StatusRequestEntityTooLarge:
		problemType = TypePayloadTooLarge
	case http.StatusUnsupportedMediaType:
		problemType = TypeUnsupportedMedia
	case http.StatusTooManyRequests:
		problemType = TypeRateLimit
	case http.StatusServiceUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode),
		apiErr.Message, r.URL.Path).
		WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// ValidationErrorsFrom converts validator failures to field messages using
// the JSON or query names of the fields.
func ValidationErrorsFrom(errs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return fmt.Sprintf("must be a date in the form %s", fe.Param())
	case "delimiter":
		return "must be a single-character delimiter such as ';', ',', '|' or tab"
	case "dateformat":
		return "must be a date pattern built from yyyy, MM and dd"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred", r.URL.Path).
		WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}
