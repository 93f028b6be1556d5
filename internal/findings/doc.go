// Package findings classifies anomalies in a build manifest and its
// metrics snapshot.
//
// Rules form a closed, ordered catalog. Each rule is a pure predicate plus
// a severity mapping with canned cause and action text keyed by its code.
// New rules are appended; existing rules never change position, so the
// order of equally severe findings is stable across releases.
package findings
