package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "skupulse/internal/errors"
	"skupulse/internal/shared/testutil"
)

type filterQuery struct {
	SKU    string `query:"sku" validate:"max=128"`
	Start  string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End    string `query:"end" validate:"omitempty,datetime=2006-01-02"`
	Format string `query:"format" validate:"omitempty,oneof=png svg json"`
}

type ingestForm struct {
	Delimiter  string `form:"delimiter" validate:"omitempty,delimiter"`
	DateFormat string `form:"date_format" validate:"omitempty,dateformat"`
}

func TestBindQuery(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewRequestValidator(logger)

	tests := []struct {
		name       string
		query      string
		wantFields []string
		want       filterQuery
	}{
		{
			name:  "valid",
			query: "sku=+A-1+&start=2024-03-01&end=2024-03-31&format=svg",
			want:  filterQuery{SKU: "A-1", Start: "2024-03-01", End: "2024-03-31", Format: "svg"},
		},
		{
			name:  "empty is allowed",
			query: "",
		},
		{
			name:       "bad dates and format",
			query:      "start=01.03.2024&end=2024-13-01&format=gif",
			wantFields: []string{"start", "end", "format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/table/rows?"+tt.query, nil)
			var q filterQuery
			err := v.BindQuery(req, &q)

			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.want, q)
				return
			}

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			var fields []string
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestBindForm(t *testing.T) {
	v := NewRequestValidator(nil)

	tests := []struct {
		name    string
		form    url.Values
		wantErr bool
	}{
		{name: "tab delimiter", form: url.Values{"delimiter": {"tab"}}},
		{name: "comma and pattern", form: url.Values{"delimiter": {","}, "date_format": {"DD-MM-YY"}}},
		{name: "unsupported delimiter", form: url.Values{"delimiter": {"#"}}, wantErr: true},
		{name: "bad pattern", form: url.Values{"date_format": {"QQ"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			var f ingestForm
			err := v.BindForm(req, &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBindRejectsNonPointer(t *testing.T) {
	v := NewRequestValidator(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Panics(t, func() { _ = v.BindQuery(req, filterQuery{}) })
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := ContentTypeValidator(apierrors.NewErrorHandler(logger, false), "multipart/form-data")(http.HandlerFunc(okHandler))

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{name: "get passes", method: http.MethodGet, want: http.StatusOK},
		{name: "multipart", method: http.MethodPost, contentType: "multipart/form-data; boundary=x", want: http.StatusOK},
		{name: "json rejected", method: http.MethodPost, contentType: "application/json", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/uploads", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
