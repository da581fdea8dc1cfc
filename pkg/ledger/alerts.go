package ledger

import (
	"fmt"
	"math"
)

// Alert thresholds as fractions of the token caps, and absolute cost
// limits in USD.
const (
	warningFraction = 0.75
	dangerFraction  = 0.90

	dailyCostLimit   = 50.0
	monthlyCostLimit = 500.0
)

// Alerts evaluates current buffered usage against the token caps and cost
// thresholds. Token alerts grade to danger at 90% of the cap and warning
// at 75%; at most one alert per cap is emitted, the more severe. Cost
// alerts fire whenever the absolute dollar threshold is exceeded.
func (l *Ledger) Alerts() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	var (
		dayTokens   int
		dayCost     float64
		monthTokens int
		monthCost   float64
	)

	dayStart := startOfDay(now)
	monthStart := now.AddDate(0, 0, -30)
	for _, e := range l.buffer {
		if !e.Timestamp.Before(monthStart) {
			monthTokens += e.Tokens
			monthCost += e.Cost
		}
		if !e.Timestamp.Before(dayStart) {
			dayTokens += e.Tokens
			dayCost += e.Cost
		}
	}

	var alerts []Alert

	if a, ok := tokenAlert("daily_tokens", "daily", dayTokens, l.config.DailyTokenCap); ok {
		alerts = append(alerts, a)
	}
	if a, ok := tokenAlert("monthly_tokens", "monthly", monthTokens, l.config.MonthlyTokenCap); ok {
		alerts = append(alerts, a)
	}

	if dayCost > dailyCostLimit {
		alerts = append(alerts, Alert{
			Severity: SeverityDanger,
			Kind:     "daily_cost",
			Message:  fmt.Sprintf("daily cost $%.2f exceeds $%.2f limit", dayCost, dailyCostLimit),
		})
	}
	if monthCost > monthlyCostLimit {
		alerts = append(alerts, Alert{
			Severity: SeverityDanger,
			Kind:     "monthly_cost",
			Message:  fmt.Sprintf("monthly cost $%.2f exceeds $%.2f limit", monthCost, monthlyCostLimit),
		})
	}

	return alerts
}

// tokenAlert grades used against cap. The comparison uses the exact
// fraction; rounding to an integer percentage happens only for display,
// so 90,001 of 100,000 already grades as danger.
func tokenAlert(kind, window string, used, limit int) (Alert, bool) {
	if limit <= 0 {
		return Alert{}, false
	}

	fraction := float64(used) / float64(limit)
	percent := int(math.Round(fraction * 100))

	switch {
	case fraction >= dangerFraction:
		return Alert{
			Severity:    SeverityDanger,
			Kind:        kind,
			Message:     fmt.Sprintf("%s token usage at %d%% of cap (%d of %d)", window, percent, used, limit),
			PercentUsed: percent,
		}, true
	case fraction >= warningFraction:
		return Alert{
			Severity:    SeverityWarning,
			Kind:        kind,
			Message:     fmt.Sprintf("%s token usage at %d%% of cap (%d of %d)", window, percent, used, limit),
			PercentUsed: percent,
		}, true
	}

	return Alert{}, false
}
