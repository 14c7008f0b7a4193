// Package integrate drives the velocity-Verlet loop: half-kick, drift,
// halo maintenance or rebuild, force evaluation, optional reverse
// communication, half-kick, and the thermo cadence.
package integrate

import (
	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/force"
	"github.com/arx-os/minimd/internal/neighbor"
	"github.com/arx-os/minimd/internal/thermo"
	"github.com/arx-os/minimd/internal/timer"
)

// Integrate holds the loop configuration and the displacement tracking
// used by the early-rebuild trigger.
type Integrate struct {
	Ntimes int
	Dt     float64
	// SortEvery re-permutes atoms into bin order every so many steps
	// (0 disables).
	SortEvery int
	// Skin is cutneigh − cutforce; a rebuild is forced once any atom
	// drifted more than half of it since the last build.
	Skin float64

	dtforce float64

	xhold []float64
	nhold int

	// StepHook, when set, observes every completed step (metrics hook).
	StepHook func(step int)
}

// Setup derives the force prefactor from the timestep and mass.
func (it *Integrate) Setup(a *atom.Atom) {
	it.dtforce = 0.5 * it.Dt / a.Mass
}

func (it *Integrate) initialIntegrate(a *atom.Atom) {
	for i := 0; i < a.Nlocal; i++ {
		base := i * a.Pad
		for d := 0; d < 3; d++ {
			a.V[base+d] += it.dtforce * a.F[base+d]
			a.X[base+d] += it.Dt * a.V[base+d]
		}
	}
}

func (it *Integrate) finalIntegrate(a *atom.Atom) {
	for i := 0; i < a.Nlocal; i++ {
		base := i * a.Pad
		for d := 0; d < 3; d++ {
			a.V[base+d] += it.dtforce * a.F[base+d]
		}
	}
}

// hold saves the owned positions the displacement check compares
// against.
func (it *Integrate) hold(a *atom.Atom) {
	n := a.Nlocal * a.Pad
	if cap(it.xhold) < n {
		it.xhold = make([]float64, n)
	}
	it.xhold = it.xhold[:n]
	copy(it.xhold, a.X[:n])
	it.nhold = a.Nlocal
}

// maxDriftSq returns the largest squared displacement since hold.
func (it *Integrate) maxDriftSq(a *atom.Atom) float64 {
	n := it.nhold
	if n > a.Nlocal {
		n = a.Nlocal
	}
	var max float64
	for i := 0; i < n; i++ {
		base := i * a.Pad
		var d2 float64
		for d := 0; d < 3; d++ {
			dd := a.X[base+d] - it.xhold[base+d]
			d2 += dd * dd
		}
		if d2 > max {
			max = d2
		}
	}
	return max
}

// Run advances the system Ntimes steps.
func (it *Integrate) Run(a *atom.Atom, f force.Force, nl *neighbor.Neighbor,
	cm *comm.Comm, th *thermo.Thermo, tm *timer.Timer, p *comm.Proc) {

	it.hold(a)
	halfSkin := 0.5 * it.Skin
	triggerSq := halfSkin * halfSkin

	for n := 0; n < it.Ntimes; n++ {
		it.initialIntegrate(a)

		rebuild := nl.Every > 0 && (n+1)%nl.Every == 0
		if !rebuild && it.Skin > 0 {
			drift := p.AllreduceMax(it.maxDriftSq(a))
			rebuild = drift > triggerSq
		}

		if rebuild {
			tm.Stamp()
			cm.Exchange(a)
			tm.StampTo(timer.Comm)

			if it.SortEvery > 0 && (n+1)%it.SortEvery == 0 {
				tm.Stamp()
				a.SortByBin(nl.Mbins(), func(i int) int { return nl.BinOfAtom(a, i) })
				tm.StampTo(timer.Sort)
			}

			tm.Stamp()
			cm.Borders(a)
			tm.StampTo(timer.Comm)

			tm.Stamp()
			nl.Build(a)
			tm.StampTo(timer.Neigh)

			it.hold(a)
		} else {
			tm.Stamp()
			cm.Forward(a)
			tm.StampTo(timer.Comm)
		}

		f.SetEVFlag(th.Nstat > 0 && (n+1)%th.Nstat == 0)

		tm.Stamp()
		f.Compute(a, nl, cm)
		tm.StampTo(timer.Force)

		if nl.HalfNeigh && nl.GhostNewton {
			tm.Stamp()
			cm.Reverse(a)
			tm.StampTo(timer.Comm)
		}

		it.finalIntegrate(a)

		if th.Nstat > 0 {
			th.Compute(n+1, a, f)
		}
		if it.StepHook != nil {
			it.StepHook(n + 1)
		}
	}
}
