// Main entrypoint into platsim.
// Parses CLI flags and starts the simulation.

package main

import (
	"github.com/ivi-bench/platform-sim/cmd"
)

func main() {
	cmd.Execute()
}
