// Package analyze runs the full pipeline: parse, compute metrics, evaluate
// findings, build the report and apply the budget gate.
//
// Parse failures and arithmetic overflow are returned as errors with no
// report. Everything that goes wrong in the gate step is reported through
// [Result.GateErr] alongside a complete report.
package analyze
