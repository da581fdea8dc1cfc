package ledger

import (
	"sort"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// Summary aggregates buffered usage over the requested range. RangeDay
// covers events since local midnight and additionally carries an
// hour-of-day series; RangeWeek and RangeMonth cover the trailing 7 and
// 30 days. The month view is bounded by the buffer's 7-day retention, so
// it matches the week view until durable history is consulted through
// Analytics.
func (l *Ledger) Summary(rng Range) *Summary {
	now := l.now()

	var from time.Time
	switch rng {
	case RangeDay:
		from = startOfDay(now)
	case RangeMonth:
		from = now.AddDate(0, 0, -30)
	default:
		rng = RangeWeek
		from = now.AddDate(0, 0, -7)
	}

	events := l.eventsSince(from)

	summary := &Summary{
		Range:      rng,
		ByService:  make(map[string]ServiceUsage),
		ByCategory: make(map[task.Category]CategoryUsage),
	}

	days := make(map[string]*DayUsage)
	hours := make(map[int]*HourUsage)

	for _, e := range events {
		summary.TotalTokens += e.Tokens
		summary.TotalCost += e.Cost

		svc := summary.ByService[e.Service]
		svc.Tokens += e.Tokens
		svc.Cost += e.Cost
		summary.ByService[e.Service] = svc

		cat := summary.ByCategory[e.Category]
		cat.Tokens += e.Tokens
		cat.Cost += e.Cost
		summary.ByCategory[e.Category] = cat

		date := e.Timestamp.Format("2006-01-02")
		day, ok := days[date]
		if !ok {
			day = &DayUsage{Date: date}
			days[date] = day
		}
		day.Tokens += e.Tokens
		day.Cost += e.Cost

		if rng == RangeDay {
			h := e.Timestamp.Hour()
			hour, ok := hours[h]
			if !ok {
				hour = &HourUsage{Hour: h}
				hours[h] = hour
			}
			hour.Tokens += e.Tokens
			hour.Cost += e.Cost
		}
	}

	for _, d := range days {
		summary.Daily = append(summary.Daily, *d)
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date < summary.Daily[j].Date
	})

	if rng == RangeDay {
		for _, h := range hours {
			summary.Hourly = append(summary.Hourly, *h)
		}
		sort.Slice(summary.Hourly, func(i, j int) bool {
			return summary.Hourly[i].Hour < summary.Hourly[j].Hour
		})
	}

	return summary
}
