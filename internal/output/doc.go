// Package output renders analysis reports for people and machines.
//
// Five formats are supported:
//   - text: terminal summary, colored when the destination supports it
//   - json: the authoritative report.json
//   - markdown: report.md, byte-for-byte deterministic
//   - junit: report.xml with one testcase per finding plus the budget gate
//   - sarif: report.sarif (SARIF v2.1.0), one result per finding
//
// Use [GetWriter] to obtain a [Writer] for a format, or [WriteToDir] to
// write the artifact set selected by an --format value into a directory.
package output
