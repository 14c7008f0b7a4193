package force

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/neighbor"
)

// writeSyntheticFuncfl produces a smooth single-element potential file
// with known analytic tables.
func writeSyntheticFuncfl(t *testing.T) string {
	t.Helper()
	const (
		nrho = 500
		drho = 0.02
		nr   = 500
		dr   = 0.01
	)
	cut := float64(nr-1) * dr

	var b strings.Builder
	fmt.Fprintf(&b, "synthetic test potential\n")
	fmt.Fprintf(&b, "29 63.550\n")
	fmt.Fprintf(&b, "%d %g %d %g %g\n", nrho, drho, nr, dr, cut)
	for i := 0; i < nrho; i++ {
		rho := float64(i) * drho
		fmt.Fprintf(&b, "%.12g\n", -rho+0.05*rho*rho)
	}
	for i := 0; i < nr; i++ {
		r := float64(i) * dr
		fmt.Fprintf(&b, "%.12g\n", 2.0*math.Exp(-0.8*r))
	}
	for i := 0; i < nr; i++ {
		r := float64(i) * dr
		fmt.Fprintf(&b, "%.12g\n", math.Exp(-1.2*r))
	}

	path := filepath.Join(t.TempDir(), "test.eam")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestReadFuncflHeader(t *testing.T) {
	path := writeSyntheticFuncfl(t)

	f, err := readFuncfl(path)
	require.NoError(t, err)

	assert.Equal(t, 63.550, f.mass)
	assert.Equal(t, 500, f.nrho)
	assert.Equal(t, 500, f.nr)
	assert.InDelta(t, 0.02, f.drho, 1e-15)
	assert.InDelta(t, 0.01, f.dr, 1e-15)
	// arrays are 1-shifted
	assert.InDelta(t, 0.0, f.frho[1], 1e-12)
	assert.InDelta(t, 2.0, f.zr[1], 1e-12)
}

func TestReadFuncflMissingFile(t *testing.T) {
	_, err := readFuncfl("does-not-exist.eam")
	assert.Error(t, err)
}

func TestSplineReproducesTableAtKnots(t *testing.T) {
	path := writeSyntheticFuncfl(t)
	eam := NewEAM(path, nil, 1)
	require.NoError(t, eam.Setup(atom.New(3)))

	for m := 2; m < eam.nr-1; m += 37 {
		assert.InDelta(t, eam.rhor[m], splineValue(eam.rhorSpline, m, 0.0), 1e-12)
	}
	for m := 2; m < eam.nrho-1; m += 37 {
		assert.InDelta(t, eam.frho[m], splineValue(eam.frhoSpline, m, 0.0), 1e-12)
	}
}

func TestSplineIsContinuousAcrossKnots(t *testing.T) {
	path := writeSyntheticFuncfl(t)
	eam := NewEAM(path, nil, 1)
	require.NoError(t, eam.Setup(atom.New(3)))

	for m := 3; m < eam.nr-2; m += 53 {
		left := splineValue(eam.rhorSpline, m, 1.0)
		right := splineValue(eam.rhorSpline, m+1, 0.0)
		assert.InDelta(t, left, right, 1e-12)
	}
}

func TestSplineDerivativeMatchesFiniteDifference(t *testing.T) {
	path := writeSyntheticFuncfl(t)
	eam := NewEAM(path, nil, 1)
	require.NoError(t, eam.Setup(atom.New(3)))

	const h = 1e-6
	for m := 5; m < eam.nr-5; m += 71 {
		p := 0.37
		num := (splineValue(eam.z2rSpline, m, p+h) - splineValue(eam.z2rSpline, m, p-h)) / (2 * h * eam.dr)
		assert.InDelta(t, num, splineDeriv(eam.z2rSpline, m, p), 1e-5)
	}
}

func TestSplineEvaluationAtGridEnds(t *testing.T) {
	path := writeSyntheticFuncfl(t)
	eam := NewEAM(path, nil, 1)
	require.NoError(t, eam.Setup(atom.New(3)))

	// r → 0⁺ clamps to the first interval
	m, p := eam.rIndex(1e-12)
	assert.Equal(t, 1, m)
	assert.GreaterOrEqual(t, p, 0.0)

	// r just below the cutoff clamps to the last interval
	m, p = eam.rIndex(eam.cutforce * (1 - 1e-12))
	assert.Equal(t, eam.nr-1, m)
	assert.LessOrEqual(t, p, 1.0)
}

func eamFCC(t *testing.T, path string, half bool, nthreads int) (*atom.Atom, *neighbor.Neighbor, *comm.Comm, *EAM) {
	t.Helper()
	const nx = 3
	alat := 3.615
	cutneigh := 5.3

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
					d := 0.02 * math.Sin(float64(i*3+j*5+k*7))
					a.AddAtom(half2*float64(i)+d, half2*float64(j), half2*float64(k), 0, 0, 0)
				}
			}
		}
	}
	a.Natoms = a.Nlocal

	eam := NewEAM(path, w.Proc(0), nthreads)
	require.NoError(t, eam.Setup(a))
	a.Mass = eam.Mass()

	c.Exchange(a)
	c.Borders(a)

	nl := neighbor.New(cutneigh, 20)
	nl.HalfNeigh = half
	nl.Setup(a)
	nl.Build(a)
	return a, nl, c, eam
}

func TestEAMFullMatchesHalf(t *testing.T) {
	path := writeSyntheticFuncfl(t)

	aF, nlF, cmF, eamF := eamFCC(t, path, false, 1)
	eamF.SetEVFlag(true)
	eamF.Compute(aF, nlF, cmF)

	aH, nlH, cmH, eamH := eamFCC(t, path, true, 1)
	eamH.SetEVFlag(true)
	eamH.Compute(aH, nlH, cmH)

	require.Equal(t, aF.Nlocal, aH.Nlocal)
	assert.InDeltaSlice(t, forcesOf(aF), forcesOf(aH), 1e-9)
	assert.InDelta(t, eamF.EngVdwl(), eamH.EngVdwl(), 1e-8)
	assert.InDelta(t, eamF.Virial(), eamH.Virial(), 1e-8)
}

func TestEAMNewtonThirdLaw(t *testing.T) {
	path := writeSyntheticFuncfl(t)
	a, nl, cm, eam := eamFCC(t, path, false, 1)
	eam.SetEVFlag(true)
	eam.Compute(a, nl, cm)

	var sum [3]float64
	for i := 0; i < a.Nlocal; i++ {
		for d := 0; d < 3; d++ {
			sum[d] += a.F[i*a.Pad+d]
		}
	}
	tol := 1e-9 * float64(a.Nlocal)
	for d := 0; d < 3; d++ {
		assert.InDelta(t, 0, sum[d], tol)
	}
}

func TestEAMThreadedMatchesSerial(t *testing.T) {
	path := writeSyntheticFuncfl(t)

	a1, nl1, cm1, e1 := eamFCC(t, path, true, 1)
	e1.SetEVFlag(true)
	e1.Compute(a1, nl1, cm1)

	a4, nl4, cm4, e4 := eamFCC(t, path, true, 4)
	e4.SetEVFlag(true)
	e4.Compute(a4, nl4, cm4)

	assert.InDeltaSlice(t, forcesOf(a1), forcesOf(a4), 1e-9)
	assert.InDelta(t, e1.EngVdwl(), e4.EngVdwl(), 1e-8)
}

func TestEAMSingleMatchesKernelPairTerm(t *testing.T) {
	path := writeSyntheticFuncfl(t)
	a, nl, cm, eam := eamFCC(t, path, false, 1)
	eam.SetEVFlag(true)
	eam.Compute(a, nl, cm)

	// pick the first in-range neighbor of atom 0
	require.Greater(t, nl.Numneigh[0], 0)
	j := nl.Neighbors[0]
	var rsq float64
	for d := 0; d < 3; d++ {
		dd := a.X[d] - a.X[j*a.Pad+d]
		rsq += dd * dd
	}
	require.Less(t, rsq, eam.cutforcesq)

	var fforce float64
	phi := eam.Single(0, j, rsq, &fforce)

	r := math.Sqrt(rsq)
	m, p := eam.rIndex(r)
	z2 := splineValue(eam.z2rSpline, m, p)
	assert.InDelta(t, z2/r, phi, 1e-12)
}
