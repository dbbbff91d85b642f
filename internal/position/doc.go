// Package position holds the per-symbol trading record the decision engine
// reads and the scheduler updates: last confirmed buy and sell, the last
// observed price, and the id of the order currently resting on the book.
//
// A State is owned by exactly one scheduler. Trade fields change only on a
// confirmed fill; LastPriceChecked changes on every evaluated tick.
package position
