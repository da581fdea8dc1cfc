// Package server exposes the scheduler and ledger over HTTP.
//
// Routes:
//
//	POST   /tasks           submit a task
//	GET    /tasks/{id}      fetch one task record
//	DELETE /tasks/{id}      cancel a task
//	GET    /status          scheduler snapshot
//	GET    /usage/summary   ledger summary (?range=day|week|month)
//	GET    /usage/alerts    current threshold alerts
//	GET    /usage/analytics usage report from durable history (?days=N)
//	GET    /metrics         Prometheus exposition
//	GET    /healthz         liveness probe
//
// The server shuts down gracefully: in-flight requests get the configured
// shutdown timeout to finish.
package server
