package solver

import (
	"fmt"
	"strings"
)

// ID numbers the strategies in the order the demo harness has always used.
type ID int

const (
	NewtonID ID = iota
	GradientDescentID
	ConjugateGradientID
	BFGSID
	LBFGSID
	LBFGSBID
)

var names = [...]string{
	NewtonID:            "newton",
	GradientDescentID:   "gradient-descent",
	ConjugateGradientID: "conjugate-gradient",
	BFGSID:              "bfgs",
	LBFGSID:             "lbfgs",
	LBFGSBID:            "lbfgsb",
}

// Names lists the strategy names indexed by ID.
func Names() []string {
	return append([]string(nil), names[:]...)
}

func (id ID) String() string {
	if id < 0 || int(id) >= len(names) {
		return fmt.Sprintf("ID(%d)", int(id))
	}
	return names[id]
}

// ByID builds a Solver for id. memory is the history capacity of the
// limited-memory strategies and is ignored by the others.
func ByID(id ID, memory int, opts ...Option) (*Solver, error) {
	switch id {
	case NewtonID:
		return NewNewton(opts...), nil
	case GradientDescentID:
		return NewGradientDescent(opts...), nil
	case ConjugateGradientID:
		return NewConjugateGradient(opts...), nil
	case BFGSID:
		return NewBFGS(opts...), nil
	case LBFGSID:
		return NewLBFGS(memory, opts...), nil
	case LBFGSBID:
		return NewLBFGSB(memory, opts...), nil
	default:
		return nil, fmt.Errorf("solver id must be between 0 and %d, got %d", len(names)-1, int(id))
	}
}

// ByName builds a Solver from its name, case-insensitively.
func ByName(name string, memory int, opts ...Option) (*Solver, error) {
	for id, n := range names {
		if strings.EqualFold(n, name) {
			return ByID(ID(id), memory, opts...)
		}
	}
	return nil, fmt.Errorf("unknown solver %q", name)
}
