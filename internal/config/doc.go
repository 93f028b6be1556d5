// Package config loads and merges patchwaste configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (PATCHWASTE_BUDGET_RATIO, PATCHWASTE_STRICT, PATCHWASTE_FORMAT, etc.)
//  3. Config file (--config, or ./patchwaste.yaml when present)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Init] to write a default config
// file, and [SetField] to update a single key.
package config
