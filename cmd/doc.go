// Package cmd implements the command-line interface of statsinit, the tool
// that prepares the statistics counters of the VPN bot in its key-value
// store.
//
// The package is organized into several subpackages:
//
//   - initialize: the init command, which writes the counters
//   - show: the show command, which prints the current counter values
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Configuration is read from flags, STATSINIT_* environment variables
// (including .env and .env.local files) and an optional YAML config file,
// in that order of precedence.
//
// See statsinit -help for a list of all commands.
package cmd
