// Package version holds the CLI version stamped into audit entries.
package version

// Value is set at build time:
//
//	go build -ldflags "-X briefmill/internal/version.Value=v1.4.0"
var Value = "dev"
