// Package strategy decides what to do with one trading pair on one tick.
//
// Engine.Decide is a pure function of its Inputs: it performs no I/O, holds
// no mutable state and never returns an error. Everything fallible happens in
// the scheduler before and after the call.
//
// The states are derived, not stored:
//
//	no holdings                      -> Buy (first entry, or after a dip below the last sell)
//	holdings, order resting          -> CancelAndReplace when price rose past the reprice threshold
//	holdings, nothing resting        -> SellLimit when price rose past the gain threshold
//
// Every other combination is Hold. Threshold comparisons are inclusive.
package strategy
