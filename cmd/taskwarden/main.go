// Taskwarden is a rate-limited task scheduler with usage accounting.
//
// It queues submitted tasks by priority, executes them one at a time
// through an external agent command, throttles execution against
// per-category token and request budgets, and keeps a durable ledger of
// token consumption with cost attribution.
//
// Usage:
//
//	# Start with default configuration
//	taskwarden run
//
//	# Start with a custom configuration file
//	taskwarden run --config /etc/taskwarden/config.yaml
//
//	# Show version information
//	taskwarden version
package main

func main() {
	Execute()
}
