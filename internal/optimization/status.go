package optimization

import "fmt"

// Status is the verdict of a solver iteration. Continue means the run goes
// on; every other value is terminal.
type Status int

const (
	Continue Status = iota
	IterationLimit
	XDeltaConverged
	FDeltaConverged
	GradientNormConverged
	LineSearchFailed
	NumericalFailure
)

var statusNames = map[Status]string{
	Continue:              "Continue",
	IterationLimit:        "IterationLimit",
	XDeltaConverged:       "XDeltaConverged",
	FDeltaConverged:       "FDeltaConverged",
	GradientNormConverged: "GradientNormConverged",
	LineSearchFailed:      "LineSearchFailed",
	NumericalFailure:      "NumericalFailure",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Converged reports whether the run stopped on one of the convergence tests.
func (s Status) Converged() bool {
	return s == XDeltaConverged || s == FDeltaConverged || s == GradientNormConverged
}

// Failed reports whether the run was cut short by a line search or a
// numerical failure.
func (s Status) Failed() bool {
	return s == LineSearchFailed || s == NumericalFailure
}
