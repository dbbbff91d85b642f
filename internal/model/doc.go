// Package model defines shared data types used across the trader.
//
// Conventions:
//   - Prices, quantities and amounts: decimal.Decimal, never float64.
//     They are formatted to strings only at the wire boundary (internal/api).
//   - Timestamps: time.Time in UTC
//   - Symbols: trading pairs like "BTC-USD"; asset codes like "BTC"
//   - Client order IDs: UUID strings generated by the caller
package model
