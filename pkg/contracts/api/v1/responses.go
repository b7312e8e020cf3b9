package api

import (
	"time"

	"skupulse/pkg/contracts/domain"
)

// UploadResponse is returned after a file was ingested into a session.
type UploadResponse struct {
	SessionID string               `json:"session_id"`
	FileName  string               `json:"file_name"`
	FileSize  int64                `json:"file_size"`
	CacheHit  bool                 `json:"cache_hit"`
	Table     *domain.TableSummary `json:"table"`
}

// TableResponse describes the table held by a session and its current filter.
type TableResponse struct {
	SessionID  string                `json:"session_id"`
	FileName   string                `json:"file_name"`
	FileSize   int64                 `json:"file_size"`
	UploadedAt time.Time             `json:"uploaded_at"`
	Filter     domain.FilterCriteria `json:"filter"`
	Table      *domain.TableSummary  `json:"table"`
}

// SKUsResponse lists the distinct SKUs in order of first appearance.
type SKUsResponse struct {
	SKUs  []string `json:"skus"`
	Count int      `json:"count"`
}

// RowsResponse is a filtered table as rows of JSON values. Dates are
// YYYY-MM-DD strings and empty number cells are null.
type RowsResponse struct {
	Columns []domain.ColumnInfo `json:"columns"`
	Rows    [][]interface{}     `json:"rows"`
	Count   int                 `json:"count"`
	Filter  FilterEcho          `json:"filter"`
}

// FilterEcho repeats the filter that produced a response.
type FilterEcho struct {
	SKU   string `json:"sku,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// NewFilterEcho renders criteria for a response.
func NewFilterEcho(c domain.FilterCriteria) FilterEcho {
	echo := FilterEcho{SKU: c.Key}
	if !c.Start.IsZero() {
		echo.Start = c.Start.Format(domain.DateLayout)
	}
	if !c.End.IsZero() {
		echo.End = c.End.Format(domain.DateLayout)
	}
	return echo
}

// SummaryResponse holds the analytics of the filtered rows.
type SummaryResponse struct {
	Filter  FilterEcho           `json:"filter"`
	Summary *domain.TableSummary `json:"summary"`
}

// SessionEndResponse confirms that a session was discarded.
type SessionEndResponse struct {
	SessionID string `json:"session_id"`
	Ended     bool   `json:"ended"`
}
