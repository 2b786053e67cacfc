// Package timing defines the virtual time used by the simulation and the
// queue of future wake-up times the scheduler advances the clock through.
package timing

import (
	"fmt"
	"math"
)

// VTimeInSec defines the time in the simulated space in the unit of second.
type VTimeInSec float64

// Valid reports whether t can be used as a simulation time.
func (t VTimeInSec) Valid() bool {
	f := float64(t)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// String formats the time the way the event loggers print it.
func (t VTimeInSec) String() string {
	return fmt.Sprintf("%.10f", float64(t))
}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}
