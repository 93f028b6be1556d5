// Package redact removes secrets from build-log text before it is copied
// into reports or logs.
//
// Parse warnings quote the offending log line, and preview-patch logs come
// from CI jobs that often echo credentials: steamcmd +login arguments,
// bearer tokens, cloud access keys and key=value secrets. Detection uses
// regex heuristics for those shapes and replaces each match with
// [REDACTED].
package redact
