// Package ledger keeps the durable, queryable record of token consumption
// with cost attribution and threshold alerting.
//
// # Overview
//
// The ledger is the long-horizon safety layer that complements the rate
// limiter: where pkg/ratelimit throttles burst rate over minutes and
// hours, the ledger caps absolute spend per day and month and withholds an
// emergency reserve. Both layers are enforced independently; neither
// replaces the other.
//
// Recorded events are held in a rolling seven-day in-memory buffer for
// summaries and alerting, and appended to a durable store (pkg/ledger/store)
// that the analytics surface reads for longer windows.
//
// # Cost model
//
// cost = tokens / 1000 * unit price, with a fixed per-service price table
// and a default rate for unknown services. Costs stay fractional
// internally; rounding to integer percentages happens only at alert and
// presentation boundaries.
package ledger
