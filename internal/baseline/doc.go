// Package baseline compares a report against a previously recorded one
// and applies the budget gate.
//
// Problems that prevent the gate from being evaluated are reported as
// [*GateError] values. They never invalidate the current report.
package baseline
