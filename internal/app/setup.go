package app

import (
	"math"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/config"
	"github.com/arx-os/minimd/internal/thermo"
)

// Park-Miller minimal standard generator. Seeded per lattice site so
// the initial state is independent of the decomposition.
const (
	pmIA = 16807
	pmIM = 2147483647
	pmAM = 1.0 / float64(pmIM)
	pmIQ = 127773
	pmIR = 2836
)

func pmRandom(idum *int32) float64 {
	k := *idum / pmIQ
	*idum = pmIA*(*idum-k*pmIQ) - pmIR*k
	if *idum < 0 {
		*idum += pmIM
	}
	return float64(*idum) * pmAM
}

// latticeConstant returns the FCC cell edge for the requested density.
func latticeConstant(rho float64) float64 {
	return math.Pow(4.0/rho, 1.0/3.0)
}

// createBox sets the global extents for an nx×ny×nz FCC lattice.
func createBox(a *atom.Atom, in *config.In) {
	alat := latticeConstant(in.Rho)
	a.Box.Xprd = float64(in.Nx) * alat
	a.Box.Yprd = float64(in.Ny) * alat
	a.Box.Zprd = float64(in.Nz) * alat
	a.Natoms = 4 * in.Nx * in.Ny * in.Nz
}

// createAtoms fills this rank's sub-box with its portion of the FCC
// lattice. Each site's velocity comes from a generator seeded by the
// global site id, with a few draws burned between components to break
// correlations, so any decomposition produces the same initial state.
func createAtoms(a *atom.Atom, in *config.In) {
	alat := latticeConstant(in.Rho)
	half := 0.5 * alat

	bound := func(lo, hi float64, n int) (int, int) {
		ilo := int(lo/half - 1)
		ihi := int(hi/half + 1)
		if ilo < 0 {
			ilo = 0
		}
		if ihi > 2*n-1 {
			ihi = 2*n - 1
		}
		return ilo, ihi
	}
	ilo, ihi := bound(a.Box.Xlo, a.Box.Xhi, in.Nx)
	jlo, jhi := bound(a.Box.Ylo, a.Box.Yhi, in.Ny)
	klo, khi := bound(a.Box.Zlo, a.Box.Zhi, in.Nz)

	for k := klo; k <= khi; k++ {
		for j := jlo; j <= jhi; j++ {
			for i := ilo; i <= ihi; i++ {
				if (i+j+k)%2 != 0 {
					continue
				}
				xtmp := half * float64(i)
				ytmp := half * float64(j)
				ztmp := half * float64(k)
				if xtmp < a.Box.Xlo || xtmp >= a.Box.Xhi ||
					ytmp < a.Box.Ylo || ytmp >= a.Box.Yhi ||
					ztmp < a.Box.Zlo || ztmp >= a.Box.Zhi {
					continue
				}

				seed := int32(k*(2*in.Ny)*(2*in.Nx) + j*(2*in.Nx) + i + 1)
				for m := 0; m < 5; m++ {
					pmRandom(&seed)
				}
				vx := pmRandom(&seed)
				for m := 0; m < 5; m++ {
					pmRandom(&seed)
				}
				vy := pmRandom(&seed)
				for m := 0; m < 5; m++ {
					pmRandom(&seed)
				}
				vz := pmRandom(&seed)

				a.AddAtom(xtmp, ytmp, ztmp, vx, vy, vz)
			}
		}
	}
}

// createVelocity removes center-of-mass motion and rescales to the
// requested temperature. Both steps are global reductions, keeping the
// result decomposition independent.
func createVelocity(tRequest float64, a *atom.Atom, th *thermo.Thermo, p *comm.Proc) {
	var vx, vy, vz float64
	for i := 0; i < a.Nlocal; i++ {
		base := i * a.Pad
		vx += a.V[base+0]
		vy += a.V[base+1]
		vz += a.V[base+2]
	}
	tot := p.AllreduceSumVec([]float64{vx, vy, vz})
	n := float64(a.Natoms)
	for i := 0; i < a.Nlocal; i++ {
		base := i * a.Pad
		a.V[base+0] -= tot[0] / n
		a.V[base+1] -= tot[1] / n
		a.V[base+2] -= tot[2] / n
	}

	t := th.Temperature(a)
	factor := math.Sqrt(tRequest / t)
	for i := 0; i < a.Nlocal*a.Pad; i++ {
		a.V[i] *= factor
	}
}
