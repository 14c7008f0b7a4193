package force

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/neighbor"
)

// fccSystem builds an nx³-cell FCC lattice at the given density on a
// single rank, with ghosts and a neighbor list ready for a kernel.
func fccSystem(t *testing.T, nx int, rho, cutforce, cutneigh float64,
	half, ghostNewton bool) (*atom.Atom, *neighbor.Neighbor, *comm.Comm) {
	t.Helper()

	alat := math.Pow(4.0/rho, 1.0/3.0)
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{
		Xprd: float64(nx) * alat,
		Yprd: float64(nx) * alat,
		Zprd: float64(nx) * alat,
	}
	c := comm.NewComm(w.Proc(0))
	require.NoError(t, c.Setup(cutneigh, a))

	half2 := 0.5 * alat
	for k := 0; k < 2*nx; k++ {
		for j := 0; j < 2*nx; j++ {
			for i := 0; i < 2*nx; i++ {
				if (i+j+k)%2 == 0 {
					// slight displacement so forces are nonzero
					d := 0.01 * math.Sin(float64(i*3+j*5+k*7))
					a.AddAtom(half2*float64(i)+d, half2*float64(j), half2*float64(k), 0, 0, 0)
				}
			}
		}
	}
	a.Natoms = a.Nlocal

	c.Exchange(a)
	c.Borders(a)

	nl := neighbor.New(cutneigh, 20)
	nl.HalfNeigh = half
	nl.GhostNewton = ghostNewton
	nl.Setup(a)
	nl.Build(a)
	return a, nl, c
}

func forcesOf(a *atom.Atom) []float64 {
	out := make([]float64, a.Nlocal*3)
	for i := 0; i < a.Nlocal; i++ {
		copy(out[i*3:i*3+3], a.F[i*a.Pad:i*a.Pad+3])
	}
	return out
}

func TestNewtonThirdLawForceSum(t *testing.T) {
	a, nl, cm := fccSystem(t, 3, 0.8442, 2.5, 2.8, false, false)
	lj := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, lj.Setup(a))
	lj.SetEVFlag(true)

	lj.Compute(a, nl, cm)

	var sum [3]float64
	for i := 0; i < a.Nlocal; i++ {
		for d := 0; d < 3; d++ {
			sum[d] += a.F[i*a.Pad+d]
		}
	}
	tol := 1e-9 * float64(a.Nlocal)
	assert.InDelta(t, 0, sum[0], tol)
	assert.InDelta(t, 0, sum[1], tol)
	assert.InDelta(t, 0, sum[2], tol)
}

func TestFullMatchesHalfNewton(t *testing.T) {
	aF, nlF, cmF := fccSystem(t, 3, 0.8442, 2.5, 2.8, false, false)
	ljF := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, ljF.Setup(aF))
	ljF.SetEVFlag(true)
	ljF.Compute(aF, nlF, cmF)

	aH, nlH, cmH := fccSystem(t, 3, 0.8442, 2.5, 2.8, true, true)
	ljH := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, ljH.Setup(aH))
	ljH.SetEVFlag(true)
	ljH.Compute(aH, nlH, cmH)
	cmH.Reverse(aH)

	require.Equal(t, aF.Nlocal, aH.Nlocal)
	assert.InDeltaSlice(t, forcesOf(aF), forcesOf(aH), 1e-10)
	assert.InDelta(t, ljF.EngVdwl(), ljH.EngVdwl(), 1e-9)
	assert.InDelta(t, ljF.Virial(), ljH.Virial(), 1e-9)
}

func TestFullMatchesHalfWithoutGhostNewton(t *testing.T) {
	aF, nlF, cmF := fccSystem(t, 3, 0.8442, 2.5, 2.8, false, false)
	ljF := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, ljF.Setup(aF))
	ljF.SetEVFlag(true)
	ljF.Compute(aF, nlF, cmF)

	aH, nlH, cmH := fccSystem(t, 3, 0.8442, 2.5, 2.8, true, false)
	ljH := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, ljH.Setup(aH))
	ljH.SetEVFlag(true)
	ljH.Compute(aH, nlH, cmH)
	cmH.Reverse(aH)

	assert.InDeltaSlice(t, forcesOf(aF), forcesOf(aH), 1e-10)
	assert.InDelta(t, ljF.EngVdwl(), ljH.EngVdwl(), 1e-9)
}

func TestThreadedMatchesSerial(t *testing.T) {
	for _, tc := range []struct {
		name     string
		half, gn bool
	}{
		{"full", false, false},
		{"half", true, false},
		{"half_newton", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a1, nl1, cm1 := fccSystem(t, 3, 0.8442, 2.5, 2.8, tc.half, tc.gn)
			serial := NewLJ(1.0, 1.0, 2.5, 1)
			require.NoError(t, serial.Setup(a1))
			serial.SetEVFlag(true)
			serial.Compute(a1, nl1, cm1)

			a4, nl4, cm4 := fccSystem(t, 3, 0.8442, 2.5, 2.8, tc.half, tc.gn)
			threaded := NewLJ(1.0, 1.0, 2.5, 4)
			require.NoError(t, threaded.Setup(a4))
			threaded.SetEVFlag(true)
			threaded.Compute(a4, nl4, cm4)

			assert.InDeltaSlice(t, forcesOf(a1), forcesOf(a4), 1e-10)
			assert.InDelta(t, serial.EngVdwl(), threaded.EngVdwl(), 1e-9)
		})
	}
}

func TestAtomExactlyAtCutoffIsExcluded(t *testing.T) {
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: 20, Yprd: 20, Zprd: 20}
	c := comm.NewComm(w.Proc(0))
	require.NoError(t, c.Setup(2.8, a))
	a.AddAtom(5.0, 5.0, 5.0, 0, 0, 0)
	a.AddAtom(7.5, 5.0, 5.0, 0, 0, 0) // exactly cutforce away
	a.Natoms = 2
	c.Borders(a)

	nl := neighbor.New(2.8, 20)
	nl.Setup(a)
	nl.Build(a)

	lj := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, lj.Setup(a))
	lj.SetEVFlag(true)
	lj.Compute(a, nl, c)

	for i := 0; i < a.Nlocal*3; i++ {
		assert.Zero(t, a.F[i])
	}
	assert.Zero(t, lj.EngVdwl())
}

func TestPairForceMatchesAnalyticForm(t *testing.T) {
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: 20, Yprd: 20, Zprd: 20}
	c := comm.NewComm(w.Proc(0))
	require.NoError(t, c.Setup(2.8, a))
	r := 1.2
	a.AddAtom(5.0, 5.0, 5.0, 0, 0, 0)
	a.AddAtom(5.0+r, 5.0, 5.0, 0, 0, 0)
	a.Natoms = 2
	c.Borders(a)

	nl := neighbor.New(2.8, 20)
	nl.Setup(a)
	nl.Build(a)

	lj := NewLJ(1.0, 1.0, 2.5, 1)
	require.NoError(t, lj.Setup(a))
	lj.SetEVFlag(true)
	lj.Compute(a, nl, c)

	// f = 48·ε·σ⁶·r⁻⁸·(σ⁶·r⁻⁶ − 0.5)·Δx, u = 4·ε·σ⁶·r⁻⁶·(σ⁶·r⁻⁶ − 1)
	r6 := math.Pow(r, -6)
	fExpect := 48.0 * r6 * (r6 - 0.5) / (r * r) * (-r)
	uExpect := 4.0 * r6 * (r6 - 1.0)

	assert.InDelta(t, fExpect, a.F[0], 1e-12)
	assert.InDelta(t, -fExpect, a.F[a.Pad], 1e-12)
	assert.InDelta(t, uExpect, lj.EngVdwl(), 1e-12)
}
