// Package database provides the optional PostgreSQL persistence for the trader.
//
// Two tables back it:
//   - positions: one row per symbol, the latest checkpoint of position.State
//   - order_journal: one row per order submission, keyed by client_order_id
//
// Nothing here is required to trade; the scheduler runs with an in-memory
// store when the database is disabled.
package database
