// Package version identifies the running trader build. The values appear in
// the startup log line, the /health response, and the User-Agent sent to
// the trading API.
//
// Release builds stamp them with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/rh-crypto-trader/internal/version.Version=1.2.0 \
//	                   -X github.com/rickgao/rh-crypto-trader/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/rh-crypto-trader/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/trader
package version

// Product is the name reported to the trading API.
const Product = "rh-crypto-trader"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown" // UTC, RFC 3339
)

// String returns the version, commit and build time on one line.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent returns the User-Agent header value for API requests.
func UserAgent() string {
	return Product + "/" + Version
}
