// Package report defines the versioned analysis report and its JSON codec.
//
// A [Report] is built once per run and never mutated; gate results are
// attached with [Report.WithGate], which returns a copy. Baselines are read
// through [Partial], where every field is optional so that a missing
// counter can be told apart from a zero one.
package report
