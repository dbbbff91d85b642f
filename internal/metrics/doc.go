// Package metrics exposes Prometheus metrics for the trader.
//
// Key metrics:
//   - Ticks by symbol and result (ok, skipped, error)
//   - Decisions by action kind and order outcomes
//   - Gateway failures by operation and error kind
//   - Last observed buying power, bid and tick duration
package metrics
