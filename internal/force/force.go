// Package force evaluates interatomic forces over the neighbor list:
// a Lennard-Jones 12-6 pair kernel and an EAM two-pass kernel. Kernels
// are process-local; the only communication is the EAM embedding
// derivative halo, run through the comm capability protocol.
package force

import (
	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/neighbor"
)

// Style tags the potential variant.
type Style int

const (
	StyleLJ Style = iota
	StyleEAM
)

func (s Style) String() string {
	if s == StyleEAM {
		return "EAM"
	}
	return "LJ"
}

// Force is the uniform compute contract the integrator sees.
//
// After Compute, EngVdwl and Virial hold this process' fully normalized
// potential-energy and virial contributions: kernels fold the half/full
// double-counting and ghost-pair sharing internally, so thermo only
// sums across processes.
type Force interface {
	Setup(a *atom.Atom) error
	Compute(a *atom.Atom, nl *neighbor.Neighbor, cm *comm.Comm)

	SetEVFlag(on bool)
	EngVdwl() float64
	Virial() float64

	Cutforce() float64
	Mass() float64
	Style() Style
}
