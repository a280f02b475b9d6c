// Package env holds build-time identifiers populated via -ldflags.
package env

// Version, CommitHash and BuildTime are overridden at build time with:
//
//	go build -ldflags "-X github.com/jpinol/fsimg/internal/env.Version=... \
//	  -X github.com/jpinol/fsimg/internal/env.CommitHash=... \
//	  -X github.com/jpinol/fsimg/internal/env.BuildTime=..."
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)
