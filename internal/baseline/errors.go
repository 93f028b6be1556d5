package baseline

import "fmt"

// ErrorKind identifies why the gate could not be evaluated.
type ErrorKind string

const (
	ErrMissingBaselineCounter ErrorKind = "MISSING_BASELINE_COUNTER"
	ErrZeroBaseline           ErrorKind = "ZERO_BASELINE"
	ErrSchemaTooNew           ErrorKind = "SCHEMA_TOO_NEW"
	ErrEstimatedCounters      ErrorKind = "ESTIMATED_COUNTERS"
	ErrMalformedBaseline      ErrorKind = "MALFORMED_BASELINE"
)

// GateError is returned when the budget gate cannot produce a verdict.
type GateError struct {
	Kind ErrorKind
	// Depot is set for per-depot gate problems.
	Depot  string
	Detail string
	Err    error
}

func (e *GateError) Error() string {
	where := "baseline"
	if e.Depot != "" {
		where = "baseline depot " + e.Depot
	}
	var msg string
	switch e.Kind {
	case ErrMissingBaselineCounter:
		msg = where + " is missing metrics.new_bytes"
	case ErrZeroBaseline:
		msg = where + " has new_bytes = 0; growth ratio is undefined"
	case ErrSchemaTooNew:
		msg = "baseline report_version is from a newer, unsupported schema"
	case ErrEstimatedCounters:
		msg = "strict mode requires high-confidence counters but current metrics are estimated"
	case ErrMalformedBaseline:
		msg = "baseline report could not be read"
	default:
		msg = "budget gate error"
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GateError) Unwrap() error { return e.Err }
