// Package meta holds build metadata shared by the CLI and the MCP server
// registration.
package meta

// Version is the released version of pgscope. Overridden at build time via
// -ldflags "-X github.com/pgscope/pgscope/internal/meta.Version=...".
var Version = "0.3.1"
