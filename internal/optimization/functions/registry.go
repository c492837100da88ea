package functions

import (
	"sort"
	"strings"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Entry describes a registered objective with a conventional starting point
// and its known minimizer, when that does not depend on the dimension.
type Entry struct {
	Name      string
	Objective optimization.Objective
	Start     []float64
	Minimizer []float64
}

var registry = map[string]Entry{
	"rosenbrock": {
		Name:      "rosenbrock",
		Objective: Rosenbrock{},
		Start:     []float64{-100, 4},
		Minimizer: []float64{1, 1},
	},
	"rosenbrock-fd": {
		Name:      "rosenbrock-fd",
		Objective: RosenbrockValue{},
		Start:     []float64{-100, 4},
		Minimizer: []float64{1, 1},
	},
	"sphere": {
		Name:      "sphere",
		Objective: Sphere{},
		Start:     []float64{3, -4},
		Minimizer: []float64{0, 0},
	},
	"booth": {
		Name:      "booth",
		Objective: Booth{},
		Start:     []float64{0, 0},
		Minimizer: []float64{1, 3},
	},
	"beale": {
		Name:      "beale",
		Objective: Beale{},
		Start:     []float64{1, 1},
		Minimizer: []float64{3, 0.5},
	},
	"linear": {
		Name:      "linear",
		Objective: Linear{},
		Start:     []float64{0},
	},
}

// Lookup returns the registered objective called name, case-insensitively.
// The returned slices are copies.
func Lookup(name string) (Entry, bool) {
	e, ok := registry[strings.ToLower(name)]
	if !ok {
		return Entry{}, false
	}
	e.Start = append([]float64(nil), e.Start...)
	e.Minimizer = append([]float64(nil), e.Minimizer...)
	return e, true
}

// Names returns the registered objective names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
