package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "skupulse/internal/errors"
	"skupulse/internal/config"
	"skupulse/internal/dataprocessing"
)

// RequestValidator binds query and form values to tagged structs and
// validates them. Field names in errors come from the query, form or json tag.
type RequestValidator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRequestValidator creates a validator with the dashboard's custom tags
// delimiter and dateformat.
func NewRequestValidator(logger *slog.Logger) *RequestValidator {
	v := validator.New()
	v.RegisterValidation("delimiter", isDelimiter)
	v.RegisterValidation("dateformat", isDateFormat)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"query", "form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &RequestValidator{
		validate: v,
		logger:   logger.With(slog.String("component", "request_validator")),
	}
}

// Struct validates s. Failures are validator.ValidationErrors, which the
// central error handler renders field by field.
func (v *RequestValidator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// BindQuery copies query parameters into the string fields of dst named by
// their `query` tags, trims them and validates the result.
func (v *RequestValidator) BindQuery(r *http.Request, dst interface{}) error {
	bindValues(dst, "query", func(key string) string { return r.URL.Query().Get(key) })
	return v.Struct(dst)
}

// BindForm is BindQuery for multipart or urlencoded form fields.
func (v *RequestValidator) BindForm(r *http.Request, dst interface{}) error {
	bindValues(dst, "form", r.FormValue)
	return v.Struct(dst)
}

func bindValues(dst interface{}, tag string, get func(string) string) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("bind target must be a pointer to struct, got %T", dst))
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "" || name == "-" || f.Type.Kind() != reflect.String {
			continue
		}
		rv.Field(i).SetString(strings.TrimSpace(get(name)))
	}
}

func isDelimiter(fl validator.FieldLevel) bool {
	r, err := config.ParseDelimiter(fl.Field().String())
	if err != nil {
		return false
	}
	opts := dataprocessing.DefaultOptions()
	opts.Delimiter = r
	return opts.Validate() == nil
}

func isDateFormat(fl validator.FieldLevel) bool {
	_, err := dataprocessing.CompileDateFormat(fl.Field().String())
	return err == nil
}

// ContentTypeValidator rejects bodies whose Content-Type is not one of
// contentTypes. Bodiless methods pass through.
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(strings.ToLower(contentType), allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}
			errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}
