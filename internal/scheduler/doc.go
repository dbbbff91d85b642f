// Package scheduler runs the trading loop for one symbol.
//
// Each tick is synchronous: fetch buying power, reconcile the tracked order,
// fetch the quote, holdings and open orders, ask the strategy engine for an
// Action, execute it, confirm fills and checkpoint the position. The next
// tick is only scheduled after the previous one has returned, so ticks for a
// symbol never overlap.
//
// Gateway failures never escape a tick. They degrade that tick to Hold and
// are reported in the TickResult.
package scheduler
