package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skupulse/internal/dataprocessing"
	apierrors "skupulse/internal/errors"
	mw "skupulse/internal/middleware"
	"skupulse/internal/services"
	"skupulse/internal/session"
	"skupulse/internal/shared/testutil"
	api "skupulse/pkg/contracts/api/v1"
	"skupulse/pkg/contracts/domain"
)

const testCookie = "skupulse_session"

type mockDashboardService struct {
	mock.Mock
}

func (m *mockDashboardService) Upload(ctx context.Context, req services.UploadRequest) (*api.UploadResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*api.UploadResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) Table(ctx context.Context, sessionID string) (*api.TableResponse, error) {
	args := m.Called(ctx, sessionID)
	if resp := args.Get(0); resp != nil {
		return resp.(*api.TableResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) SKUs(ctx context.Context, sessionID string) (*api.SKUsResponse, error) {
	args := m.Called(ctx, sessionID)
	if resp := args.Get(0); resp != nil {
		return resp.(*api.SKUsResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) Rows(ctx context.Context, sessionID string, req api.FilterRequest) (*api.RowsResponse, error) {
	args := m.Called(ctx, sessionID, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*api.RowsResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) Summary(ctx context.Context, sessionID string, req api.FilterRequest) (*api.SummaryResponse, error) {
	args := m.Called(ctx, sessionID, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*api.SummaryResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) Chart(ctx context.Context, sessionID string, req api.ChartRequest) (*services.Output, error) {
	args := m.Called(ctx, sessionID, req)
	if out := args.Get(0); out != nil {
		return out.(*services.Output), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) Export(ctx context.Context, sessionID string, req api.ExportRequest) (*services.Output, error) {
	args := m.Called(ctx, sessionID, req)
	if out := args.Get(0); out != nil {
		return out.(*services.Output), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboardService) EndSession(ctx context.Context, sessionID string) (*api.SessionEndResponse, error) {
	args := m.Called(ctx, sessionID)
	if resp := args.Get(0); resp != nil {
		return resp.(*api.SessionEndResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestRouter(t *testing.T, svc *mockDashboardService, maxUpload int64) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewDashboardHandler(svc, mw.NewRequestValidator(logger), apierrors.NewErrorHandler(logger, false),
		CookieSettings{Name: testCookie, TTL: time.Hour}, maxUpload, logger)

	r := chi.NewRouter()
	r.Use(mw.Session(testCookie))
	r.Mount("/api", h.Routes())
	return r
}

func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestDashboardHandler_Upload(t *testing.T) {
	csv := testutil.SampleCSV()

	t.Run("created with session cookie", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Upload", mock.Anything, mock.MatchedBy(func(req services.UploadRequest) bool {
			return req.FileName == "perf.csv" &&
				bytes.Equal(req.Data, csv) &&
				req.Overrides.Delimiter == "comma" &&
				req.SessionID == ""
		})).Return(&api.UploadResponse{
			SessionID: "s-1",
			FileName:  "perf.csv",
			FileSize:  int64(len(csv)),
			Table:     &domain.TableSummary{Rows: 5, Keys: []string{"A-100"}},
		}, nil)

		body, ct := multipartBody(t, "perf.csv", csv, map[string]string{"delimiter": "comma"})
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		out := decodeJSON(t, rec)
		assert.Equal(t, "s-1", out["session_id"])
		assert.Equal(t, "s-1", rec.Header().Get(mw.SessionHeader))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, testCookie, cookies[0].Name)
		assert.Equal(t, "s-1", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
		svc.AssertExpectations(t)
	})

	t.Run("existing session is forwarded", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Upload", mock.Anything, mock.MatchedBy(func(req services.UploadRequest) bool {
			return req.SessionID == "s-9"
		})).Return(&api.UploadResponse{SessionID: "s-9"}, nil)

		body, ct := multipartBody(t, "perf.csv", csv, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: "s-9"})
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	tests := []struct {
		name       string
		fileName   string
		fields     map[string]string
		serviceErr error
		wantStatus int
		wantType   string
	}{
		{
			name:       "missing file",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad delimiter option",
			fileName:   "perf.csv",
			fields:     map[string]string{"delimiter": "ab"},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "missing columns",
			fileName:   "perf.csv",
			serviceErr: fmt.Errorf("ingest perf.csv: %w", &dataprocessing.SchemaError{Missing: []string{"Cost"}, Found: []string{"Date", "SKU"}}),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   apierrors.TypeIngestSchema,
		},
		{
			name:       "bad date",
			fileName:   "perf.csv",
			serviceErr: &dataprocessing.DateParseError{Line: 3, Value: "31/02", Pattern: "YYYY-MM-DD"},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   apierrors.TypeIngestDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDashboardService{}
			if tt.serviceErr != nil {
				svc.On("Upload", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}

			body, ct := multipartBody(t, tt.fileName, csv, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, decodeJSON(t, rec)["type"])
			}
			assert.Empty(t, rec.Result().Cookies())
			svc.AssertExpectations(t)
		})
	}

	t.Run("schema problem lists missing columns", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Upload", mock.Anything, mock.Anything).
			Return(nil, &dataprocessing.SchemaError{Missing: []string{"Cost", "CPA"}, Found: []string{"Date"}})

		body, ct := multipartBody(t, "perf.csv", csv, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, []interface{}{"Cost", "CPA"}, decodeJSON(t, rec)["missing_columns"])
	})

	t.Run("too large", func(t *testing.T) {
		svc := &mockDashboardService{}
		big := bytes.Repeat([]byte("x"), 3<<20)
		body, ct := multipartBody(t, "perf.csv", big, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("wrong content type", func(t *testing.T) {
		svc := &mockDashboardService{}
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewReader(csv))
		req.Header.Set("Content-Type", "text/csv")
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), apierrors.TypeUnsupportedMedia)
	})
}

func TestDashboardHandler_TableEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		setup      func(svc *mockDashboardService)
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "table",
			path: "/api/table",
			setup: func(svc *mockDashboardService) {
				svc.On("Table", mock.Anything, "s-1").Return(&api.TableResponse{
					SessionID: "s-1",
					FileName:  "perf.csv",
					Table:     &domain.TableSummary{Rows: 5},
				}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "perf.csv", body["file_name"])
			},
		},
		{
			name: "table before upload",
			path: "/api/table",
			setup: func(svc *mockDashboardService) {
				svc.On("Table", mock.Anything, "s-1").Return(nil, fmt.Errorf("%w: no upload", services.ErrNoTable))
			},
			wantStatus: http.StatusConflict,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, apierrors.TypeNoTable, body["type"])
			},
		},
		{
			name: "skus",
			path: "/api/table/skus",
			setup: func(svc *mockDashboardService) {
				svc.On("SKUs", mock.Anything, "s-1").Return(&api.SKUsResponse{SKUs: []string{"A-100", "B-200"}, Count: 2}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, []interface{}{"A-100", "B-200"}, body["skus"])
			},
		},
		{
			name: "rows with filter",
			path: "/api/table/rows?sku=A-100&start=2024-03-01&end=2024-03-31",
			setup: func(svc *mockDashboardService) {
				svc.On("Rows", mock.Anything, "s-1", api.FilterRequest{SKU: "A-100", Start: "2024-03-01", End: "2024-03-31"}).
					Return(&api.RowsResponse{Rows: [][]interface{}{{"2024-03-04", 9.5}}, Count: 1}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.EqualValues(t, 1, body["count"])
			},
		},
		{
			name:       "rows with bad date",
			path:       "/api/table/rows?start=03/01/2024",
			setup:      func(*mockDashboardService) {},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, apierrors.TypeValidation, body["type"])
				assert.NotEmpty(t, body["errors"])
			},
		},
		{
			name: "rows with nothing matching",
			path: "/api/table/rows?sku=ZZZ",
			setup: func(svc *mockDashboardService) {
				svc.On("Rows", mock.Anything, "s-1", api.FilterRequest{SKU: "ZZZ"}).Return(nil, dataprocessing.ErrNoData)
			},
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, apierrors.TypeNoData, body["type"])
			},
		},
		{
			name: "summary",
			path: "/api/table/summary?sku=A-100",
			setup: func(svc *mockDashboardService) {
				svc.On("Summary", mock.Anything, "s-1", api.FilterRequest{SKU: "A-100"}).Return(&api.SummaryResponse{
					Summary: &domain.TableSummary{Rows: 2},
				}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body, "summary")
			},
		},
		{
			name:       "chart with unknown format",
			path:       "/api/table/chart?format=gif",
			setup:      func(*mockDashboardService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDashboardService{}
			tt.setup(svc)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(mw.SessionHeader, "s-1")
			rec := httptest.NewRecorder()
			newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, decodeJSON(t, rec))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_Outputs(t *testing.T) {
	t.Run("chart is inline", func(t *testing.T) {
		svc := &mockDashboardService{}
		png := []byte("\x89PNG\r\n")
		svc.On("Chart", mock.Anything, "s-1", api.ChartRequest{SKU: "A-100", Format: "png"}).
			Return(&services.Output{ContentType: "image/png", FileName: "performance_A-100_chart.png", Data: png}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/table/chart?sku=A-100&format=png", nil)
		req.Header.Set(mw.SessionHeader, "s-1")
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, "6", rec.Header().Get("Content-Length"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "inline; filename=performance_A-100_chart.png", rec.Header().Get("Content-Disposition"))
		assert.Equal(t, png, rec.Body.Bytes())
	})

	t.Run("export is an attachment", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Export", mock.Anything, "s-1", api.ExportRequest{Format: "csv"}).
			Return(&services.Output{ContentType: "text/csv; charset=utf-8", FileName: "performance_export.csv", Data: []byte("Date,Cost\n")}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/table/export?format=csv", nil)
		req.Header.Set(mw.SessionHeader, "s-1")
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "attachment; filename=performance_export.csv", rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "Date,Cost\n", rec.Body.String())
	})

	t.Run("export with unsupported format", func(t *testing.T) {
		svc := &mockDashboardService{}
		req := httptest.NewRequest(http.MethodGet, "/api/table/export?format=pdf", nil)
		req.Header.Set(mw.SessionHeader, "s-1")
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDashboardHandler_EndSession(t *testing.T) {
	t.Run("clears cookie", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("EndSession", mock.Anything, "s-1").Return(&api.SessionEndResponse{SessionID: "s-1", Ended: true}, nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: "s-1"})
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeJSON(t, rec)["ended"])
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})

	t.Run("unknown session", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("EndSession", mock.Anything, "").Return(nil, fmt.Errorf("end session: %w", session.ErrNotFound))

		req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
		rec := httptest.NewRecorder()
		newTestRouter(t, svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})
}
