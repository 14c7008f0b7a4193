package thermo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/force"
	"github.com/arx-os/minimd/internal/neighbor"
)

func TestTemperatureOfKnownVelocities(t *testing.T) {
	w := comm.NewWorld(1)
	p := w.Proc(0)

	a := atom.New(3)
	a.Box = atom.Box{Xprd: 10, Yprd: 10, Zprd: 10}
	a.Natoms = 2
	a.AddAtom(1, 1, 1, 1.0, 0, 0)
	a.AddAtom(2, 2, 2, 0, 2.0, 0)

	th := New(p, 100, 100)
	th.Setup(a, UnitsLJ)

	// Σ m v² = 1 + 4 = 5, dof = 3N−3 = 3
	assert.InDelta(t, 5.0/3.0, th.Temperature(a), 1e-14)
}

func TestTemperatureReducesAcrossRanks(t *testing.T) {
	const nprocs = 2
	w := comm.NewWorld(nprocs)

	temps := make([]float64, nprocs)
	var g errgroup.Group
	for r := 0; r < nprocs; r++ {
		r := r
		g.Go(func() error {
			a := atom.New(3)
			a.Box = atom.Box{Xprd: 10, Yprd: 10, Zprd: 10}
			a.Natoms = 2
			a.AddAtom(float64(r), 0, 0, 1.0, 0, 0) // one atom per rank
			th := New(w.Proc(r), 100, 100)
			th.Setup(a, UnitsLJ)
			temps[r] = th.Temperature(a)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.InDelta(t, 2.0/3.0, temps[0], 1e-14)
	assert.Equal(t, temps[0], temps[1])
}

func TestMetalUnitScales(t *testing.T) {
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: 10, Yprd: 10, Zprd: 10}
	a.Natoms = 100

	th := New(w.Proc(0), 100, 100)
	th.Setup(a, UnitsMetal)

	assert.InDelta(t, 1.036427e-04, th.mvv2e, 1e-18)
	assert.InDelta(t, float64(297)*8.617343e-05, th.dofBoltz, 1e-12)
	assert.InDelta(t, 1.602176e+06/3.0/1000.0, th.pScale, 1e-9)
}

func TestComputeCadence(t *testing.T) {
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: 10, Yprd: 10, Zprd: 10}
	a.Natoms = 1
	a.AddAtom(5, 5, 5, 1, 0, 0)

	th := New(w.Proc(0), 10, 100)
	th.Quiet = true
	th.Setup(a, UnitsLJ)

	f := stubForce{}
	th.Compute(0, a, f)
	th.Compute(5, a, f)  // off cadence: skipped
	th.Compute(10, a, f) // on cadence
	th.Compute(-1, a, f) // duplicate of step 100: skipped

	require.Len(t, th.History, 2)
	assert.Equal(t, 0, th.History[0].Step)
	assert.Equal(t, 10, th.History[1].Step)
}

type stubForce struct{}

func (stubForce) Setup(*atom.Atom) error                                { return nil }
func (stubForce) Compute(*atom.Atom, *neighbor.Neighbor, *comm.Comm)    {}
func (stubForce) SetEVFlag(bool)                                        {}
func (stubForce) EngVdwl() float64                                      { return -6.0 }
func (stubForce) Virial() float64                                       { return 0.0 }
func (stubForce) Cutforce() float64                                     { return 2.5 }
func (stubForce) Mass() float64                                         { return 1.0 }
func (stubForce) Style() force.Style                                    { return force.StyleLJ }
