package ratelimit

import "warden-hq/taskwarden/pkg/task"

// DefaultCeilings returns the built-in ceilings for every known category.
// Values are starting points tuned for a single automation agent; runtime
// configuration loaded from storage overrides them.
func DefaultCeilings() map[task.Category]Ceilings {
	return map[task.Category]Ceilings{
		task.CategoryDevelopment: {
			TokensPerMinute:   10000,
			TokensPerHour:     100000,
			TokensPerDay:      500000,
			RequestsPerMinute: 10,
			RequestsPerHour:   100,
		},
		task.CategoryTesting: {
			TokensPerMinute:   5000,
			TokensPerHour:     50000,
			TokensPerDay:      200000,
			RequestsPerMinute: 10,
			RequestsPerHour:   60,
		},
		task.CategoryDeployment: {
			TokensPerMinute:   2000,
			TokensPerHour:     20000,
			TokensPerDay:      50000,
			RequestsPerMinute: 5,
			RequestsPerHour:   20,
		},
		task.CategoryAnalysis: {
			TokensPerMinute:   8000,
			TokensPerHour:     80000,
			TokensPerDay:      300000,
			RequestsPerMinute: 10,
			RequestsPerHour:   80,
		},
		task.CategoryMaintenance: {
			TokensPerMinute:   3000,
			TokensPerHour:     30000,
			TokensPerDay:      100000,
			RequestsPerMinute: 5,
			RequestsPerHour:   40,
		},
	}
}
