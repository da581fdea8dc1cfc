package ratelimit

import "time"

// Ceilings are the five static limits for one category.
type Ceilings struct {
	// TokensPerMinute caps token consumption per wall-clock minute.
	TokensPerMinute int `json:"tokens_per_minute" yaml:"tokens_per_minute"`

	// TokensPerHour caps token consumption per wall-clock hour.
	TokensPerHour int `json:"tokens_per_hour" yaml:"tokens_per_hour"`

	// TokensPerDay caps token consumption per calendar day.
	TokensPerDay int `json:"tokens_per_day" yaml:"tokens_per_day"`

	// RequestsPerMinute caps operations started per wall-clock minute.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`

	// RequestsPerHour caps operations started per wall-clock hour.
	RequestsPerHour int `json:"requests_per_hour" yaml:"requests_per_hour"`
}

// Patch overwrites a subset of a category's ceilings. Nil fields keep the
// current value.
type Patch struct {
	TokensPerMinute   *int `json:"tokens_per_minute,omitempty"`
	TokensPerHour     *int `json:"tokens_per_hour,omitempty"`
	TokensPerDay      *int `json:"tokens_per_day,omitempty"`
	RequestsPerMinute *int `json:"requests_per_minute,omitempty"`
	RequestsPerHour   *int `json:"requests_per_hour,omitempty"`
}

// WindowStatus reports the live state of one ceiling.
type WindowStatus struct {
	// Limit is the configured ceiling.
	Limit int `json:"limit"`

	// Used is the live counter value.
	Used int `json:"used"`

	// PercentUsed is Used/Limit rounded to the nearest integer.
	PercentUsed int `json:"percent_used"`

	// ResetIn is how long until the window's next boundary.
	ResetIn time.Duration `json:"reset_in"`
}

// Status is a point-in-time snapshot of one category's budget.
type Status struct {
	TokensPerMinute   WindowStatus `json:"tokens_per_minute"`
	TokensPerHour     WindowStatus `json:"tokens_per_hour"`
	TokensPerDay      WindowStatus `json:"tokens_per_day"`
	RequestsPerMinute WindowStatus `json:"requests_per_minute"`
	RequestsPerHour   WindowStatus `json:"requests_per_hour"`
}

// MinuteUsage is one per-minute usage record kept for analytics.
type MinuteUsage struct {
	// Minute is the wall-clock minute the usage fell into.
	Minute time.Time `json:"minute"`

	// Tokens is the token count recorded during that minute.
	Tokens int `json:"tokens"`

	// Requests is the number of operations recorded during that minute.
	Requests int `json:"requests"`
}
