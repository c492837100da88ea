// Command minimize runs one of the descent solvers on a registered test
// objective and reports the derivatives at the start and the solution.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
