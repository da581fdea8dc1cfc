package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"warden-hq/taskwarden/pkg/ledger/store"
	"warden-hq/taskwarden/pkg/task"
)

// trendDeadBand is the relative change below which usage counts as stable.
const trendDeadBand = 0.05

// Analytics builds a usage report over the trailing windowDays from the
// durable store. Unlike Summary and Alerts, which read the 7-day in-memory
// buffer, this path sees full persisted history.
func (l *Ledger) Analytics(ctx context.Context, windowDays int) (*Report, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	if l.storage == nil {
		return nil, fmt.Errorf("analytics requires a durable store")
	}

	now := l.now()
	from := now.AddDate(0, 0, -windowDays)

	events, err := l.storage.QueryRange(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage history: %w", err)
	}

	report := &Report{
		WindowDays:  windowDays,
		Efficiency:  make(map[task.Category]Efficiency),
		GeneratedAt: now,
	}

	days := make(map[string]*DayUsage)
	type catAgg struct {
		ops    int
		tokens int
		cost   float64
	}
	cats := make(map[task.Category]*catAgg)

	for _, e := range events {
		report.TotalTokens += e.Tokens
		report.TotalCost += e.Cost

		date := e.Timestamp.Format("2006-01-02")
		day, ok := days[date]
		if !ok {
			day = &DayUsage{Date: date}
			days[date] = day
		}
		day.Tokens += e.Tokens
		day.Cost += e.Cost

		agg, ok := cats[e.Category]
		if !ok {
			agg = &catAgg{}
			cats[e.Category] = agg
		}
		agg.ops++
		agg.tokens += e.Tokens
		agg.cost += e.Cost
	}

	for _, d := range days {
		report.Daily = append(report.Daily, *d)
	}
	sort.Slice(report.Daily, func(i, j int) bool {
		return report.Daily[i].Date < report.Daily[j].Date
	})

	for cat, agg := range cats {
		report.Efficiency[cat] = Efficiency{
			Operations: agg.ops,
			AvgTokens:  float64(agg.tokens) / float64(agg.ops),
			AvgCost:    agg.cost / float64(agg.ops),
		}
	}

	recentTokens := tokensBetween(events, now.AddDate(0, 0, -7), now)
	priorTokens := tokensBetween(events, now.AddDate(0, 0, -14), now.AddDate(0, 0, -7))
	report.Trend = classifyTrend(recentTokens, priorTokens)
	report.Prediction = l.predict(events, now)
	report.Recommendations = l.recommend(report)

	return report, nil
}

// tokensBetween sums event tokens with from <= timestamp < to.
func tokensBetween(events []*store.Event, from, to time.Time) int {
	total := 0
	for _, e := range events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			total += e.Tokens
		}
	}
	return total
}

// classifyTrend compares the recent 7-day total against the preceding
// 7-day total with a 5% dead-band.
func classifyTrend(recent, prior int) Trend {
	if prior == 0 {
		if recent > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	change := (float64(recent) - float64(prior)) / float64(prior)
	switch {
	case change > trendDeadBand:
		return TrendIncreasing
	case change < -trendDeadBand:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// predict extrapolates the recent 7-day daily average linearly.
// Confidence scales with distinct days of data, maxing out at two weeks.
func (l *Ledger) predict(events []*store.Event, now time.Time) Prediction {
	weekAgo := now.AddDate(0, 0, -7)

	var (
		weekTokens int
		weekCost   float64
	)
	daysWithData := make(map[string]bool)

	for _, e := range events {
		daysWithData[e.Timestamp.Format("2006-01-02")] = true
		if !e.Timestamp.Before(weekAgo) {
			weekTokens += e.Tokens
			weekCost += e.Cost
		}
	}

	dailyTokens := float64(weekTokens) / 7.0
	dailyCost := weekCost / 7.0

	confidence := len(daysWithData) * 100 / 14
	if confidence > 100 {
		confidence = 100
	}

	return Prediction{
		DailyTokens:   int(math.Round(dailyTokens)),
		WeeklyTokens:  int(math.Round(dailyTokens * 7)),
		MonthlyTokens: int(math.Round(dailyTokens * 30)),
		MonthlyCost:   dailyCost * 30,
		Confidence:    confidence,
	}
}

// recommend applies simple rule checks over the finished report.
func (l *Ledger) recommend(report *Report) []string {
	var recs []string

	if report.TotalTokens > 0 {
		for cat, eff := range report.Efficiency {
			catTokens := int(eff.AvgTokens * float64(eff.Operations))
			if catTokens*2 > report.TotalTokens {
				recs = append(recs, fmt.Sprintf(
					"category %q accounts for over half of token usage; review its workload for batching or smaller estimates", cat))
			}
		}
	}

	if report.Prediction.MonthlyTokens > l.config.MonthlyTokenCap {
		recs = append(recs, fmt.Sprintf(
			"projected monthly usage of %d tokens exceeds the %d cap; reduce scheduled work or raise the cap",
			report.Prediction.MonthlyTokens, l.config.MonthlyTokenCap))
	}

	if report.Prediction.MonthlyCost > monthlyCostLimit {
		recs = append(recs, fmt.Sprintf(
			"projected monthly cost $%.2f exceeds the $%.2f budget", report.Prediction.MonthlyCost, monthlyCostLimit))
	}

	if report.Trend == TrendIncreasing {
		recs = append(recs, "usage is trending up week over week; check for newly added recurring tasks")
	}

	sort.Strings(recs)
	return recs
}
