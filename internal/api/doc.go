// Package api provides the signed REST client for the Robinhood Crypto Trading API.
//
// REST endpoint:
//   - Production: https://trading.robinhood.com
//
// Every request carries x-api-key, x-signature and x-timestamp headers
// produced by internal/auth at call time. The client never retries;
// failures surface as *TransportError, *ParseError or *OrderRejectedError
// and retry policy belongs to the caller.
//
// Key resources: accounts, holdings, trading_pairs, best_bid_ask,
// estimated_price, orders
package api
