package ledger

import (
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// Range selects the aggregation window for Summary.
type Range string

const (
	// RangeDay aggregates events since local midnight.
	RangeDay Range = "day"

	// RangeWeek aggregates events from the last seven days.
	RangeWeek Range = "week"

	// RangeMonth aggregates events from the last thirty days.
	RangeMonth Range = "month"
)

// ServiceUsage is the per-service slice of a summary.
type ServiceUsage struct {
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// CategoryUsage is the per-category slice of a summary.
type CategoryUsage struct {
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// DayUsage is one calendar day in a summary series.
type DayUsage struct {
	// Date is the calendar day in YYYY-MM-DD form.
	Date   string  `json:"date"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// HourUsage is one hour-of-day in the daily summary series.
type HourUsage struct {
	// Hour is the hour of day, 0-23.
	Hour   int     `json:"hour"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// Summary is the aggregate view of buffered usage for one range.
type Summary struct {
	Range       Range                           `json:"range"`
	TotalTokens int                             `json:"total_tokens"`
	TotalCost   float64                         `json:"total_cost"`
	ByService   map[string]ServiceUsage         `json:"by_service"`
	ByCategory  map[task.Category]CategoryUsage `json:"by_category"`

	// Daily is the per-calendar-day series, oldest first.
	Daily []DayUsage `json:"daily"`

	// Hourly is the per-hour-of-day series; populated for RangeDay only.
	Hourly []HourUsage `json:"hourly,omitempty"`
}

// Severity grades an alert.
type Severity string

const (
	// SeverityWarning marks usage at or above 75% of a cap.
	SeverityWarning Severity = "warning"

	// SeverityDanger marks usage at or above 90% of a cap, or an
	// exceeded cost threshold.
	SeverityDanger Severity = "danger"
)

// Alert is one threshold crossing reported by Alerts.
type Alert struct {
	Severity Severity `json:"severity"`

	// Kind names the crossed threshold: daily_tokens, monthly_tokens,
	// daily_cost, monthly_cost.
	Kind string `json:"kind"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// PercentUsed is usage as an integer percentage of the cap, where
	// applicable.
	PercentUsed int `json:"percent_used,omitempty"`
}

// Trend classifies usage direction over the recent two weeks.
type Trend string

const (
	// TrendIncreasing means the recent 7-day average is more than 5%
	// above the preceding 7-day average.
	TrendIncreasing Trend = "increasing"

	// TrendDecreasing means the recent average is more than 5% below
	// the preceding one.
	TrendDecreasing Trend = "decreasing"

	// TrendStable means the averages are within the 5% dead-band.
	TrendStable Trend = "stable"
)

// Prediction is the linear usage projection from the recent 7-day average.
type Prediction struct {
	DailyTokens   int     `json:"daily_tokens"`
	WeeklyTokens  int     `json:"weekly_tokens"`
	MonthlyTokens int     `json:"monthly_tokens"`
	MonthlyCost   float64 `json:"monthly_cost"`

	// Confidence is 0-100, scaled by how many days of data back the
	// projection.
	Confidence int `json:"confidence"`
}

// Efficiency is the per-category cost profile over the analytics window.
type Efficiency struct {
	Operations int     `json:"operations"`
	AvgTokens  float64 `json:"avg_tokens"`
	AvgCost    float64 `json:"avg_cost"`
}

// Report is the full analytics output computed from durable storage.
type Report struct {
	// WindowDays is the requested window size.
	WindowDays int `json:"window_days"`

	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`

	Trend      Trend                        `json:"trend"`
	Prediction Prediction                   `json:"prediction"`
	Efficiency map[task.Category]Efficiency `json:"efficiency"`

	// Recommendations are free-text findings from simple rule checks.
	Recommendations []string `json:"recommendations"`

	// Daily is the per-day token series for the window, oldest first.
	Daily []DayUsage `json:"daily"`

	GeneratedAt time.Time `json:"generated_at"`
}
