// Package thermo reduces kinetic, potential and virial contributions
// across ranks into temperature, energy per atom and pressure.
package thermo

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/force"
)

// Units selects the unit system scales.
type Units int

const (
	UnitsLJ Units = iota
	UnitsMetal
)

func (u Units) String() string {
	if u == UnitsMetal {
		return "METAL"
	}
	return "LJ"
}

// metal-unit constants: g/mol·(Å/ps)² per eV and Boltzmann in eV/K
const (
	metalMvv2e = 1.036427e-04
	metalBoltz = 8.617343e-05
	// eV/Å³ to bar; Setup divides by 3 for the virial trace
	metalPscale = 1.602176e+06
)

// Sample is one thermo output row.
type Sample struct {
	Step        int
	Temperature float64
	Energy      float64
	Pressure    float64
	Elapsed     float64
}

// Thermo computes and records the global observables.
type Thermo struct {
	// Nstat is the sampling cadence in steps (0 disables in-run output).
	Nstat  int
	ntimes int

	mvv2e    float64
	dofBoltz float64
	tScale   float64
	pScale   float64
	eScale   float64

	p       *comm.Proc
	start   time.Time
	Quiet   bool
	History []Sample

	// OnSample, when set, observes each recorded sample (metrics hook).
	OnSample func(Sample)
}

// New creates the reducer for one rank endpoint.
func New(p *comm.Proc, nstat, ntimes int) *Thermo {
	return &Thermo{p: p, Nstat: nstat, ntimes: ntimes, start: time.Now()}
}

// Setup fixes the unit scales. Requires the global atom count and box.
func (t *Thermo) Setup(a *atom.Atom, units Units) {
	volume := a.Box.Volume()
	switch units {
	case UnitsMetal:
		t.mvv2e = metalMvv2e
		t.dofBoltz = float64(a.Natoms*3-3) * metalBoltz
		t.pScale = metalPscale / 3.0 / volume
		t.eScale = 1.0
	default:
		t.mvv2e = 1.0
		t.dofBoltz = float64(a.Natoms*3 - 3)
		t.pScale = 1.0 / 3.0 / volume
		t.eScale = 1.0
	}
	t.tScale = t.mvv2e / t.dofBoltz
	t.start = time.Now()
}

// Temperature reduces Σ m·|v|² into the instantaneous temperature.
func (t *Thermo) Temperature(a *atom.Atom) float64 {
	var local float64
	for i := 0; i < a.Nlocal; i++ {
		base := i * a.Pad
		vx := a.V[base+0]
		vy := a.V[base+1]
		vz := a.V[base+2]
		local += (vx*vx + vy*vy + vz*vz) * a.Mass
	}
	return t.p.AllreduceSum(local) * t.tScale
}

// Energy reduces the per-process potential energy into energy per atom.
func (t *Thermo) Energy(a *atom.Atom, f force.Force) float64 {
	e := t.p.AllreduceSum(f.EngVdwl() * t.eScale)
	return e / float64(a.Natoms)
}

// Pressure combines temperature and the reduced virial.
func (t *Thermo) Pressure(temp float64, f force.Force) float64 {
	v := t.p.AllreduceSum(f.Virial())
	return (temp*t.dofBoltz + v) * t.pScale
}

// Compute records one sample. step 0 is the pre-run state and -1 the
// post-run state; in between the cadence gates the work.
func (t *Thermo) Compute(step int, a *atom.Atom, f force.Force) {
	if step > 0 && t.Nstat > 0 && step%t.Nstat != 0 {
		return
	}
	if step == -1 && t.Nstat > 0 && t.ntimes%t.Nstat == 0 {
		// the final state was already sampled by the cadence
		return
	}

	temp := t.Temperature(a)
	eng := t.Energy(a, f)
	prs := t.Pressure(temp, f)

	s := Sample{Step: step, Temperature: temp, Energy: eng, Pressure: prs,
		Elapsed: time.Since(t.start).Seconds()}
	if step == -1 {
		s.Step = t.ntimes
	}
	t.History = append(t.History, s)

	if t.OnSample != nil {
		t.OnSample(s)
	}
	if t.p.Rank() == 0 && !t.Quiet {
		fmt.Printf("%d %e %e %e %6.3f\n", s.Step, temp, eng, prs, s.Elapsed)
	}
}

// MeanTemperature averages the temperature of the recorded samples.
func (t *Thermo) MeanTemperature() float64 {
	if len(t.History) == 0 {
		return 0
	}
	vals := make([]float64, len(t.History))
	for i, s := range t.History {
		vals[i] = s.Temperature
	}
	return floats.Sum(vals) / float64(len(vals))
}
