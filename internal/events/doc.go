// Package events streams tick results to WebSocket subscribers.
//
// Each subscriber gets a buffered send queue drained by its own writer
// goroutine. A subscriber whose queue is full is disconnected instead of
// stalling the scheduler.
package events
