package force

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/neighbor"
	"github.com/arx-os/minimd/pkg/errors"
)

// hartreeBohr converts z_i·z_j (electron charge units) to eV·Å in the
// z²(r) pair term.
const hartreeBohr = 27.2 * 0.529

// EAM is the single-species Embedded Atom Method potential. Forces
// come from a two-pass kernel: a density pass producing the embedding
// derivative fp per atom, a halo exchange of fp, and a pair pass
// combining fp with the tabulated pair term.
type EAM struct {
	path string
	p    *comm.Proc

	cutforce   float64
	cutforcesq float64
	mass       float64

	nrho, nr   int
	drho, dr   float64
	rdr, rdrho float64

	// re-gridded tables, 1-based
	frho, rhor, z2r []float64

	// spline rows: 7 floats per knot; slots 3..6 interpolate the value,
	// slots 0..2 its derivative scaled by the grid spacing
	frhoSpline, rhorSpline, z2rSpline []float64

	rho, fp []float64
	nmax    int

	engVdwl float64
	virial  float64
	evflag  bool

	nthreads  int
	shadowF   [][]float64
	shadowRho [][]float64
}

// NewEAM creates the EAM kernel. Rank 0 reads the funcfl file at Setup
// and broadcasts the table to the other ranks.
func NewEAM(path string, p *comm.Proc, nthreads int) *EAM {
	if nthreads < 1 {
		nthreads = 1
	}
	return &EAM{path: path, p: p, nthreads: nthreads}
}

// Setup loads the potential table, re-grids it onto the simulation
// grid and builds the interpolation splines.
func (e *EAM) Setup(a *atom.Atom) error {
	var file *funcfl

	if e.p == nil || e.p.Size() == 1 {
		var err error
		if file, err = readFuncfl(e.path); err != nil {
			return err
		}
	} else {
		// rank 0 reads; everyone learns the outcome before the payload
		var flat []float64
		ok := 0
		if e.p.Rank() == 0 {
			f, err := readFuncfl(e.path)
			if err == nil {
				ok = 1
				flat = f.pack()
			}
		}
		if e.p.BroadcastInt(0, ok) == 0 {
			if e.p.Rank() == 0 {
				_, err := readFuncfl(e.path)
				return err
			}
			return errors.NewPotentialIOError(e.path, errors.ErrNotFound)
		}
		file = unpackFuncfl(e.p.Broadcast(0, flat))
	}

	e.mass = file.mass
	e.cutforce = file.cut
	e.cutforcesq = file.cut * file.cut

	e.file2array(file)
	e.array2spline()
	return nil
}

func (e *EAM) SetEVFlag(on bool) { e.evflag = on }
func (e *EAM) EngVdwl() float64  { return e.engVdwl }
func (e *EAM) Virial() float64   { return e.virial }
func (e *EAM) Cutforce() float64 { return e.cutforce }
func (e *EAM) Mass() float64     { return e.mass }
func (e *EAM) Style() Style      { return StyleEAM }

// file2array interpolates the raw file tables onto the simulation grid
// with a 4-point Lagrange stencil and builds z²(r) in eV·Å.
func (e *EAM) file2array(file *funcfl) {
	e.dr = file.dr
	e.drho = file.drho
	rmax := float64(file.nr-1) * file.dr
	rhomax := float64(file.nrho-1) * file.drho

	// 0.5 absorbs round-off in the divide
	e.nr = int(rmax/e.dr + 0.5)
	e.nrho = int(rhomax/e.drho + 0.5)

	e.frho = make([]float64, e.nrho+1)
	for m := 1; m <= e.nrho; m++ {
		r := float64(m-1) * e.drho
		e.frho[m] = lagrange4(file.frho, file.nrho, r/file.drho+1.0)
	}

	e.rhor = make([]float64, e.nr+1)
	e.z2r = make([]float64, e.nr+1)
	for m := 1; m <= e.nr; m++ {
		r := float64(m-1) * e.dr
		e.rhor[m] = lagrange4(file.rhor, file.nr, r/file.dr+1.0)
		z := lagrange4(file.zr, file.nr, r/file.dr+1.0)
		e.z2r[m] = hartreeBohr * z * z
	}
}

// lagrange4 evaluates the cubic Lagrange interpolant through four
// table points around fractional index p (1-based table of size n).
func lagrange4(tab []float64, n int, p float64) float64 {
	const sixth = 1.0 / 6.0
	k := int(p)
	if k > n-2 {
		k = n - 2
	}
	if k < 2 {
		k = 2
	}
	p -= float64(k)
	if p > 2.0 {
		p = 2.0
	}
	cof1 := -sixth * p * (p - 1.0) * (p - 2.0)
	cof2 := 0.5 * (p*p - 1.0) * (p - 2.0)
	cof3 := -0.5 * p * (p + 1.0) * (p - 2.0)
	cof4 := sixth * p * (p*p - 1.0)
	return cof1*tab[k-1] + cof2*tab[k] + cof3*tab[k+1] + cof4*tab[k+2]
}

func (e *EAM) array2spline() {
	e.rdr = 1.0 / e.dr
	e.rdrho = 1.0 / e.drho

	e.frhoSpline = interpolate(e.nrho, e.drho, e.frho)
	e.rhorSpline = interpolate(e.nr, e.dr, e.rhor)
	e.z2rSpline = interpolate(e.nr, e.dr, e.z2r)
}

// interpolate builds the 7-wide spline rows for a 1-based table: value
// in slot 6, finite-difference first derivative in slot 5 (one-sided at
// the ends, 4-point centered in the interior), cubic coefficients in
// slots 4 and 3, and the spacing-scaled derivative coefficients in
// slots 2..0.
func interpolate(n int, delta float64, f []float64) []float64 {
	sp := make([]float64, (n+1)*7)

	for m := 1; m <= n; m++ {
		sp[m*7+6] = f[m]
	}

	sp[1*7+5] = sp[2*7+6] - sp[1*7+6]
	sp[2*7+5] = 0.5 * (sp[3*7+6] - sp[1*7+6])
	sp[(n-1)*7+5] = 0.5 * (sp[n*7+6] - sp[(n-2)*7+6])
	sp[n*7+5] = sp[n*7+6] - sp[(n-1)*7+6]

	for m := 3; m <= n-2; m++ {
		sp[m*7+5] = ((sp[(m-2)*7+6] - sp[(m+2)*7+6]) +
			8.0*(sp[(m+1)*7+6]-sp[(m-1)*7+6])) / 12.0
	}

	for m := 1; m <= n-1; m++ {
		df := sp[(m+1)*7+6] - sp[m*7+6]
		sp[m*7+4] = 3.0*df - 2.0*sp[m*7+5] - sp[(m+1)*7+5]
		sp[m*7+3] = sp[m*7+5] + sp[(m+1)*7+5] - 2.0*df
	}
	sp[n*7+4] = 0.0
	sp[n*7+3] = 0.0

	for m := 1; m <= n; m++ {
		sp[m*7+2] = sp[m*7+5] / delta
		sp[m*7+1] = 2.0 * sp[m*7+4] / delta
		sp[m*7+0] = 3.0 * sp[m*7+3] / delta
	}
	return sp
}

func splineValue(sp []float64, m int, p float64) float64 {
	return ((sp[m*7+3]*p+sp[m*7+4])*p+sp[m*7+5])*p + sp[m*7+6]
}

func splineDeriv(sp []float64, m int, p float64) float64 {
	return (sp[m*7+0]*p+sp[m*7+1])*p + sp[m*7+2]
}

// rIndex clamps r onto the pair-table grid.
func (e *EAM) rIndex(r float64) (int, float64) {
	p := r*e.rdr + 1.0
	m := int(p)
	if m > e.nr-1 {
		m = e.nr - 1
	}
	p -= float64(m)
	if p > 1.0 {
		p = 1.0
	}
	return m, p
}

// rhoIndex clamps a density onto the embedding-table grid.
func (e *EAM) rhoIndex(rho float64) (int, float64) {
	p := rho*e.rdrho + 1.0
	m := int(p)
	if m < 1 {
		m = 1
	}
	if m > e.nrho-1 {
		m = e.nrho - 1
	}
	p -= float64(m)
	if p > 1.0 {
		p = 1.0
	}
	return m, p
}

func (e *EAM) growPerAtom(nmax int) {
	if nmax <= e.nmax {
		return
	}
	e.nmax = nmax + nmax/4
	e.rho = make([]float64, e.nmax)
	e.fp = make([]float64, e.nmax)
}

// Compute runs the two-pass kernel matched to the list style.
func (e *EAM) Compute(a *atom.Atom, nl *neighbor.Neighbor, cm *comm.Comm) {
	e.growPerAtom(a.Nmax)
	nall := a.Nall()
	zero(a.F[:nall*a.Pad])

	if nl.HalfNeigh {
		e.computeHalf(a, nl, cm)
	} else {
		e.computeFull(a, nl, cm)
	}
}

// computeHalf shares density and force across each pair, writing the
// symmetric contribution for local partners; ghost pairs are mirrored
// by the owning rank and carry half weight in the accounting.
func (e *EAM) computeHalf(a *atom.Atom, nl *neighbor.Neighbor, cm *comm.Comm) {
	nlocal := a.Nlocal
	var evdwl, virial float64

	zero(e.rho[:nlocal])

	// density pass
	runRange := func(ilo, ihi int, rho []float64) {
		for i := ilo; i < ihi; i++ {
			base := i * a.Pad
			xtmp := a.X[base+0]
			ytmp := a.X[base+1]
			ztmp := a.X[base+2]
			row := nl.Neighbors[i*nl.MaxNeighs:]
			rhoi := 0.0

			for jj := 0; jj < nl.Numneigh[i]; jj++ {
				j := row[jj]
				jb := j * a.Pad
				delx := xtmp - a.X[jb+0]
				dely := ytmp - a.X[jb+1]
				delz := ztmp - a.X[jb+2]
				rsq := delx*delx + dely*dely + delz*delz
				if rsq >= e.cutforcesq {
					continue
				}
				m, p := e.rIndex(math.Sqrt(rsq))
				contrib := splineValue(e.rhorSpline, m, p)
				rhoi += contrib
				if j < nlocal {
					rho[j] += contrib
				}
			}
			rho[i] += rhoi
		}
	}

	if e.nthreads == 1 {
		runRange(0, nlocal, e.rho)
	} else {
		e.growShadowRho(nlocal)
		var wg sync.WaitGroup
		for t := 0; t < e.nthreads; t++ {
			wg.Add(1)
			go func(t int) {
				defer wg.Done()
				ilo, ihi := chunk(nlocal, e.nthreads, t)
				zero(e.shadowRho[t][:nlocal])
				runRange(ilo, ihi, e.shadowRho[t])
			}(t)
		}
		wg.Wait()
		reduceShadow(e.rho[:nlocal], e.shadowRho, nlocal, e.nthreads)
	}

	// embedding derivative and energy
	for i := 0; i < nlocal; i++ {
		m, p := e.rhoIndex(e.rho[i])
		e.fp[i] = splineDeriv(e.frhoSpline, m, p)
		if e.evflag {
			evdwl += splineValue(e.frhoSpline, m, p)
		}
	}

	// halo: ghosts need fp for the pair pass
	cm.ForwardWith(a, e)

	// pair pass
	pairRange := func(ilo, ihi int, f []float64) (eng, vir float64) {
		for i := ilo; i < ihi; i++ {
			base := i * a.Pad
			xtmp := a.X[base+0]
			ytmp := a.X[base+1]
			ztmp := a.X[base+2]
			row := nl.Neighbors[i*nl.MaxNeighs:]
			var fx, fy, fz float64

			for jj := 0; jj < nl.Numneigh[i]; jj++ {
				j := row[jj]
				jb := j * a.Pad
				delx := xtmp - a.X[jb+0]
				dely := ytmp - a.X[jb+1]
				delz := ztmp - a.X[jb+2]
				rsq := delx*delx + dely*dely + delz*delz
				if rsq >= e.cutforcesq {
					continue
				}
				r := math.Sqrt(rsq)
				m, p := e.rIndex(r)

				// single species: the density derivative is the same seen
				// from either end, so both embedding terms use rhoip
				rhoip := splineDeriv(e.rhorSpline, m, p)
				z2p := splineDeriv(e.z2rSpline, m, p)
				z2 := splineValue(e.z2rSpline, m, p)

				recip := 1.0 / r
				phi := z2 * recip
				phip := z2p*recip - phi*recip
				psip := e.fp[i]*rhoip + e.fp[j]*rhoip + phip
				fpair := -psip * recip

				fx += delx * fpair
				fy += dely * fpair
				fz += delz * fpair

				scale := 1.0
				if j < nlocal {
					f[jb+0] -= delx * fpair
					f[jb+1] -= dely * fpair
					f[jb+2] -= delz * fpair
				} else {
					scale = 0.5
				}

				if e.evflag {
					vir += scale * rsq * fpair
					eng += scale * phi
				}
			}

			f[base+0] += fx
			f[base+1] += fy
			f[base+2] += fz
		}
		return eng, vir
	}

	if e.nthreads == 1 {
		eng, vir := pairRange(0, nlocal, a.F)
		evdwl += eng
		virial += vir
	} else {
		nall := a.Nall()
		e.growShadowF(nall * a.Pad)
		engs := make([]float64, e.nthreads)
		virs := make([]float64, e.nthreads)
		var wg sync.WaitGroup
		for t := 0; t < e.nthreads; t++ {
			wg.Add(1)
			go func(t int) {
				defer wg.Done()
				ilo, ihi := chunk(nlocal, e.nthreads, t)
				zero(e.shadowF[t][:nall*a.Pad])
				engs[t], virs[t] = pairRange(ilo, ihi, e.shadowF[t])
			}(t)
		}
		wg.Wait()
		reduceShadow(a.F, e.shadowF, nall*a.Pad, e.nthreads)
		evdwl += floats.Sum(engs)
		virial += floats.Sum(virs)
	}

	e.engVdwl = evdwl
	e.virial = virial
}

// computeFull writes only f[i] per atom, so workers split the owned
// range with no write hazard. Pair energy and virial are halved per
// visit; the embedding energy is per-atom and counts once.
func (e *EAM) computeFull(a *atom.Atom, nl *neighbor.Neighbor, cm *comm.Comm) {
	nlocal := a.Nlocal
	engs := make([]float64, e.nthreads)
	virs := make([]float64, e.nthreads)

	// density pass: every pair seen from both ends
	var wg sync.WaitGroup
	for t := 0; t < e.nthreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			ilo, ihi := chunk(nlocal, e.nthreads, t)
			var eng float64

			for i := ilo; i < ihi; i++ {
				base := i * a.Pad
				xtmp := a.X[base+0]
				ytmp := a.X[base+1]
				ztmp := a.X[base+2]
				row := nl.Neighbors[i*nl.MaxNeighs:]
				rhoi := 0.0

				for jj := 0; jj < nl.Numneigh[i]; jj++ {
					j := row[jj]
					jb := j * a.Pad
					delx := xtmp - a.X[jb+0]
					dely := ytmp - a.X[jb+1]
					delz := ztmp - a.X[jb+2]
					rsq := delx*delx + dely*dely + delz*delz
					if rsq >= e.cutforcesq {
						continue
					}
					m, p := e.rIndex(math.Sqrt(rsq))
					rhoi += splineValue(e.rhorSpline, m, p)
				}

				m, p := e.rhoIndex(rhoi)
				e.fp[i] = splineDeriv(e.frhoSpline, m, p)
				if e.evflag {
					eng += splineValue(e.frhoSpline, m, p)
				}
			}
			engs[t] = eng
		}(t)
	}
	wg.Wait()

	cm.ForwardWith(a, e)

	for t := 0; t < e.nthreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			ilo, ihi := chunk(nlocal, e.nthreads, t)
			var eng, vir float64

			for i := ilo; i < ihi; i++ {
				base := i * a.Pad
				xtmp := a.X[base+0]
				ytmp := a.X[base+1]
				ztmp := a.X[base+2]
				row := nl.Neighbors[i*nl.MaxNeighs:]
				var fx, fy, fz float64

				for jj := 0; jj < nl.Numneigh[i]; jj++ {
					j := row[jj]
					jb := j * a.Pad
					delx := xtmp - a.X[jb+0]
					dely := ytmp - a.X[jb+1]
					delz := ztmp - a.X[jb+2]
					rsq := delx*delx + dely*dely + delz*delz
					if rsq >= e.cutforcesq {
						continue
					}
					r := math.Sqrt(rsq)
					m, p := e.rIndex(r)

					rhoip := splineDeriv(e.rhorSpline, m, p)
					z2p := splineDeriv(e.z2rSpline, m, p)
					z2 := splineValue(e.z2rSpline, m, p)

					recip := 1.0 / r
					phi := z2 * recip
					phip := z2p*recip - phi*recip
					psip := e.fp[i]*rhoip + e.fp[j]*rhoip + phip
					fpair := -psip * recip

					fx += delx * fpair
					fy += dely * fpair
					fz += delz * fpair

					if e.evflag {
						vir += 0.5 * rsq * fpair
						eng += 0.5 * phi
					}
				}

				a.F[base+0] = fx
				a.F[base+1] = fy
				a.F[base+2] = fz
			}
			engs[t] += eng
			virs[t] = vir
		}(t)
	}
	wg.Wait()

	e.engVdwl = floats.Sum(engs)
	e.virial = floats.Sum(virs)
}

// Single evaluates one pair in isolation: returns φ(r) and writes the
// scalar force into fforce. Spot-check helper.
func (e *EAM) Single(i, j int, rsq float64, fforce *float64) float64 {
	r := math.Sqrt(rsq)
	m, p := e.rIndex(r)

	rhoip := splineDeriv(e.rhorSpline, m, p)
	rhojp := rhoip
	z2p := splineDeriv(e.z2rSpline, m, p)
	z2 := splineValue(e.z2rSpline, m, p)

	recip := 1.0 / r
	phi := z2 * recip
	phip := z2p*recip - phi*recip
	psip := e.fp[i]*rhojp + e.fp[j]*rhoip + phip
	*fforce = -psip * recip
	return phi
}

// ForwardSize implements comm.ForwardCapable: one scalar per atom.
func (e *EAM) ForwardSize() int { return 1 }

// PackForward implements comm.ForwardCapable for the fp halo.
func (e *EAM) PackForward(list []int, buf []float64) {
	for i, j := range list {
		buf[i] = e.fp[j]
	}
}

// UnpackForward implements comm.ForwardCapable for the fp halo.
func (e *EAM) UnpackForward(first, n int, buf []float64) {
	for i := 0; i < n; i++ {
		e.fp[first+i] = buf[i]
	}
}

func (e *EAM) growShadowF(n int) {
	if len(e.shadowF) < e.nthreads {
		e.shadowF = make([][]float64, e.nthreads)
	}
	for t := range e.shadowF {
		if len(e.shadowF[t]) < n {
			e.shadowF[t] = make([]float64, n)
		}
	}
}

func (e *EAM) growShadowRho(n int) {
	if len(e.shadowRho) < e.nthreads {
		e.shadowRho = make([][]float64, e.nthreads)
	}
	for t := range e.shadowRho {
		if len(e.shadowRho[t]) < n {
			e.shadowRho[t] = make([]float64, n)
		}
	}
}
