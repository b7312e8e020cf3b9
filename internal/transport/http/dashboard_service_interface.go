package http

import (
	"context"

	"skupulse/internal/services"
	api "skupulse/pkg/contracts/api/v1"
)

// DashboardServiceInterface defines the dashboard operations used by the handlers
type DashboardServiceInterface interface {
	Upload(ctx context.Context, req services.UploadRequest) (*api.UploadResponse, error)
	Table(ctx context.Context, sessionID string) (*api.TableResponse, error)
	SKUs(ctx context.Context, sessionID string) (*api.SKUsResponse, error)
	Rows(ctx context.Context, sessionID string, req api.FilterRequest) (*api.RowsResponse, error)
	Summary(ctx context.Context, sessionID string, req api.FilterRequest) (*api.SummaryResponse, error)
	Chart(ctx context.Context, sessionID string, req api.ChartRequest) (*services.Output, error)
	Export(ctx context.Context, sessionID string, req api.ExportRequest) (*services.Output, error)
	EndSession(ctx context.Context, sessionID string) (*api.SessionEndResponse, error)
}
