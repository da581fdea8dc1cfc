package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"warden-hq/taskwarden/pkg/ledger/store"
	"warden-hq/taskwarden/pkg/task"
)

// seedHistory appends one event per day for each (daysAgo, tokens) pair.
func seedHistory(t *testing.T, s store.Store, now time.Time, daily map[int]int) {
	t.Helper()
	ctx := context.Background()

	for daysAgo, tokens := range daily {
		e := &store.Event{
			ID:        fmt.Sprintf("d%d", daysAgo),
			Service:   "claude-code",
			Tokens:    tokens,
			Category:  task.CategoryDevelopment,
			Operation: "task-execution",
			Cost:      Cost("claude-code", tokens),
			Timestamp: now.AddDate(0, 0, -daysAgo).Add(-time.Hour),
		}
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}
}

func TestLedger_AnalyticsRequiresStore(t *testing.T) {
	l, _ := testLedger(Config{})
	if _, err := l.Analytics(context.Background(), 30); err == nil {
		t.Error("expected error without a durable store")
	}
}

func TestLedger_AnalyticsTrend(t *testing.T) {
	tests := []struct {
		name  string
		daily map[int]int
		want  Trend
	}{
		{
			name:  "increasing",
			daily: map[int]int{1: 2000, 3: 2000, 5: 2000, 8: 1000, 10: 1000, 12: 1000},
			want:  TrendIncreasing,
		},
		{
			name:  "decreasing",
			daily: map[int]int{1: 1000, 3: 1000, 8: 2000, 10: 2000, 12: 2000},
			want:  TrendDecreasing,
		},
		{
			name:  "stable within dead-band",
			daily: map[int]int{1: 1020, 3: 1000, 8: 1000, 10: 1000},
			want:  TrendStable,
		},
		{
			name:  "no prior data counts as increasing",
			daily: map[int]int{1: 1000, 3: 1000},
			want:  TrendIncreasing,
		},
		{
			name:  "no data at all is stable",
			daily: map[int]int{},
			want:  TrendStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			l, clock := testLedger(Config{Store: s})
			seedHistory(t, s, clock.Now(), tt.daily)

			report, err := l.Analytics(context.Background(), 30)
			if err != nil {
				t.Fatalf("Analytics failed: %v", err)
			}
			if report.Trend != tt.want {
				t.Errorf("expected trend %s, got %s", tt.want, report.Trend)
			}
		})
	}
}

func TestLedger_AnalyticsPrediction(t *testing.T) {
	s := store.NewMemoryStore()
	l, clock := testLedger(Config{Store: s})

	// 7000 tokens over the last week: 1000/day projected.
	seedHistory(t, s, clock.Now(), map[int]int{1: 1000, 2: 1000, 3: 1000, 4: 4000})

	report, err := l.Analytics(context.Background(), 30)
	if err != nil {
		t.Fatalf("Analytics failed: %v", err)
	}

	p := report.Prediction
	if p.DailyTokens != 1000 {
		t.Errorf("expected 1000 daily tokens projected, got %d", p.DailyTokens)
	}
	if p.WeeklyTokens != 7000 {
		t.Errorf("expected 7000 weekly tokens projected, got %d", p.WeeklyTokens)
	}
	if p.MonthlyTokens != 30000 {
		t.Errorf("expected 30000 monthly tokens projected, got %d", p.MonthlyTokens)
	}

	// 4 distinct days of data out of the 14 used for full confidence.
	if p.Confidence != 4*100/14 {
		t.Errorf("expected confidence %d, got %d", 4*100/14, p.Confidence)
	}
}

func TestLedger_AnalyticsEfficiencyAndTotals(t *testing.T) {
	s := store.NewMemoryStore()
	l, clock := testLedger(Config{Store: s})
	ctx := context.Background()

	now := clock.Now()
	events := []*store.Event{
		{ID: "a", Service: "claude-code", Tokens: 1000, Category: task.CategoryDevelopment,
			Cost: Cost("claude-code", 1000), Timestamp: now.Add(-2 * time.Hour)},
		{ID: "b", Service: "claude-code", Tokens: 3000, Category: task.CategoryDevelopment,
			Cost: Cost("claude-code", 3000), Timestamp: now.Add(-3 * time.Hour)},
		{ID: "c", Service: "openai", Tokens: 500, Category: task.CategoryTesting,
			Cost: Cost("openai", 500), Timestamp: now.Add(-4 * time.Hour)},
	}
	for _, e := range events {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	report, err := l.Analytics(ctx, 30)
	if err != nil {
		t.Fatalf("Analytics failed: %v", err)
	}

	if report.TotalTokens != 4500 {
		t.Errorf("expected 4500 total tokens, got %d", report.TotalTokens)
	}

	dev := report.Efficiency[task.CategoryDevelopment]
	if dev.Operations != 2 || dev.AvgTokens != 2000 {
		t.Errorf("unexpected development efficiency: %+v", dev)
	}
	testing_ := report.Efficiency[task.CategoryTesting]
	if testing_.Operations != 1 || testing_.AvgTokens != 500 {
		t.Errorf("unexpected testing efficiency: %+v", testing_)
	}
}

func TestLedger_AnalyticsRecommendsOnDominantCategory(t *testing.T) {
	s := store.NewMemoryStore()
	l, clock := testLedger(Config{MonthlyTokenCap: 100_000_000})
	l.storage = s
	ctx := context.Background()

	now := clock.Now()
	for i, tokens := range []int{9000, 500, 500} {
		cat := task.CategoryDevelopment
		if i > 0 {
			cat = task.CategoryTesting
		}
		e := &store.Event{
			ID:        fmt.Sprintf("e%d", i),
			Service:   "local",
			Tokens:    tokens,
			Category:  cat,
			Timestamp: now.Add(-time.Duration(i+1) * time.Hour),
		}
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	report, err := l.Analytics(ctx, 30)
	if err != nil {
		t.Fatalf("Analytics failed: %v", err)
	}

	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, string(task.CategoryDevelopment)) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a recommendation about the dominant category, got %v", report.Recommendations)
	}
}
