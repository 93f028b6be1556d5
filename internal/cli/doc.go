// Package cli wires together the Cobra command tree for the patchwaste binary.
//
// It defines the root command and its subcommands (analyze, rules, config,
// version), binds flags, loads configuration, assembles the analysis
// pipeline through a dig container, and returns deterministic exit codes for
// CI gating: 0 when the run passes, 2 when a budget is exceeded, and 1 for
// any tool, parse or gate error.
package cli
