// Package api contains the HTTP contract of the SKU Pulse dashboard.
// Version v1 represents the current stable API version.
package api

// Query parameters are bound by the `query` tag and multipart fields by the
// `form` tag; `validate` tags are checked before the request reaches a service.

// FilterRequest selects rows of the session's table by SKU and an inclusive
// date range. An empty SKU matches every row and an empty date leaves that
// side of the range open. The applied filter becomes the session's selection.
type FilterRequest struct {
	SKU   string `json:"sku" query:"sku" validate:"omitempty,max=128"`
	Start string `json:"start" query:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end" query:"end" validate:"omitempty,datetime=2006-01-02"`
}

// ChartRequest is a FilterRequest plus the chart encoding and the plotted
// metric columns, comma separated.
type ChartRequest struct {
	SKU     string `json:"sku" query:"sku" validate:"omitempty,max=128"`
	Start   string `json:"start" query:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `json:"end" query:"end" validate:"omitempty,datetime=2006-01-02"`
	Format  string `json:"format" query:"format" validate:"omitempty,oneof=png svg json"`
	Metrics string `json:"metrics" query:"metrics" validate:"omitempty,max=512"`
}

// Filter returns the filter part of the request.
func (r ChartRequest) Filter() FilterRequest {
	return FilterRequest{SKU: r.SKU, Start: r.Start, End: r.End}
}

// ExportRequest is a FilterRequest plus the download format.
type ExportRequest struct {
	SKU    string `json:"sku" query:"sku" validate:"omitempty,max=128"`
	Start  string `json:"start" query:"start" validate:"omitempty,datetime=2006-01-02"`
	End    string `json:"end" query:"end" validate:"omitempty,datetime=2006-01-02"`
	Format string `json:"format" query:"format" validate:"omitempty,oneof=csv xlsx"`
}

// Filter returns the filter part of the request.
func (r ExportRequest) Filter() FilterRequest {
	return FilterRequest{SKU: r.SKU, Start: r.Start, End: r.End}
}

// UploadOptions overrides the configured ingest options for one upload.
type UploadOptions struct {
	Delimiter  string `json:"delimiter" form:"delimiter" validate:"omitempty,delimiter"`
	DateFormat string `json:"date_format" form:"date_format" validate:"omitempty,dateformat"`
}
