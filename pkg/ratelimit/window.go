package ratelimit

import "time"

// counters holds the five live counters and the three reset stamps for
// one category. Not safe for concurrent use; the Limiter serializes access.
type counters struct {
	tokensMinute   int
	tokensHour     int
	tokensDay      int
	requestsMinute int
	requestsHour   int

	lastMinuteReset time.Time
	lastHourReset   time.Time
	lastDayReset    time.Time
}

// newCounters creates zeroed counters with all reset stamps at now.
func newCounters(now time.Time) *counters {
	return &counters{
		lastMinuteReset: now,
		lastHourReset:   now,
		lastDayReset:    now,
	}
}

// lazyReset zeroes any counter whose wall-clock window boundary has been
// crossed since its last reset, stamping the reset time to now. Each window
// resets exactly once per boundary crossing, never partially: the minute
// reset clears both per-minute counters together, and likewise for the
// hour. The day boundary is the calendar day, not a rolling 24 hours.
func (c *counters) lazyReset(now time.Time) {
	if !now.Truncate(time.Minute).Equal(c.lastMinuteReset.Truncate(time.Minute)) {
		c.tokensMinute = 0
		c.requestsMinute = 0
		c.lastMinuteReset = now
	}

	if !now.Truncate(time.Hour).Equal(c.lastHourReset.Truncate(time.Hour)) {
		c.tokensHour = 0
		c.requestsHour = 0
		c.lastHourReset = now
	}

	if !sameCalendarDay(now, c.lastDayReset) {
		c.tokensDay = 0
		c.lastDayReset = now
	}
}

// fits reports whether adding estimatedTokens and one request stays within
// every ceiling. Pure; the caller must have applied lazyReset first.
func (c *counters) fits(ceilings Ceilings, estimatedTokens int) bool {
	return c.tokensMinute+estimatedTokens <= ceilings.TokensPerMinute &&
		c.tokensHour+estimatedTokens <= ceilings.TokensPerHour &&
		c.tokensDay+estimatedTokens <= ceilings.TokensPerDay &&
		c.requestsMinute+1 <= ceilings.RequestsPerMinute &&
		c.requestsHour+1 <= ceilings.RequestsPerHour
}

// record increments all five counters for one completed admission.
func (c *counters) record(tokensUsed int) {
	c.tokensMinute += tokensUsed
	c.tokensHour += tokensUsed
	c.tokensDay += tokensUsed
	c.requestsMinute++
	c.requestsHour++
}

// sameCalendarDay reports whether a and b fall on the same calendar day.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// untilNextMinute returns the duration until the next minute boundary.
func untilNextMinute(now time.Time) time.Duration {
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}

// untilNextHour returns the duration until the next hour boundary.
func untilNextHour(now time.Time) time.Duration {
	return now.Truncate(time.Hour).Add(time.Hour).Sub(now)
}

// untilNextDay returns the duration until the next calendar-day boundary.
func untilNextDay(now time.Time) time.Duration {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return midnight.Sub(now)
}
