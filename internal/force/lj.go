package force

import (
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/neighbor"
)

// LJ is the Lennard-Jones 12-6 pair potential.
//
// Per pair inside the cutoff the scalar force is
// 48·ε·σ⁶·r⁻⁸·(σ⁶·r⁻⁶ − 0.5) along r_ij and the pair energy is
// 4·ε·σ⁶·r⁻⁶·(σ⁶·r⁻⁶ − 1). Atoms exactly at the cutoff are excluded
// (strict less-than).
type LJ struct {
	cutforce   float64
	cutforcesq float64

	epsilon float64
	sigma   float64
	sigma6  float64

	engVdwl float64
	virial  float64
	evflag  bool

	nthreads int
	shadow   [][]float64
}

// NewLJ creates the LJ kernel with the given parameters and intra-rank
// worker count.
func NewLJ(epsilon, sigma, cutforce float64, nthreads int) *LJ {
	s3 := sigma * sigma * sigma
	if nthreads < 1 {
		nthreads = 1
	}
	return &LJ{
		cutforce: cutforce,
		epsilon:  epsilon,
		sigma:    sigma,
		sigma6:   s3 * s3,
		nthreads: nthreads,
	}
}

// Setup finalizes derived constants.
func (lj *LJ) Setup(a *atom.Atom) error {
	lj.cutforcesq = lj.cutforce * lj.cutforce
	return nil
}

func (lj *LJ) SetEVFlag(on bool) { lj.evflag = on }
func (lj *LJ) EngVdwl() float64  { return lj.engVdwl }
func (lj *LJ) Virial() float64   { return lj.virial }
func (lj *LJ) Cutforce() float64 { return lj.cutforce }
func (lj *LJ) Mass() float64     { return 1.0 }
func (lj *LJ) Style() Style      { return StyleLJ }

// Compute zeroes the force array over owned and ghost atoms, then runs
// the list-matched kernel.
func (lj *LJ) Compute(a *atom.Atom, nl *neighbor.Neighbor, cm *comm.Comm) {
	nall := a.Nall()
	zero(a.F[:nall*a.Pad])

	switch {
	case !nl.HalfNeigh:
		lj.computeFull(a, nl)
	case nl.GhostNewton:
		lj.computeHalfNewton(a, nl)
	default:
		lj.computeHalf(a, nl)
	}
}

// computeFull visits every pair twice; each visit writes only f[i], so
// workers split the owned range freely. Energy and virial are halved at
// the end to fold the double count.
func (lj *LJ) computeFull(a *atom.Atom, nl *neighbor.Neighbor) {
	nlocal := a.Nlocal
	engs := make([]float64, lj.nthreads)
	virs := make([]float64, lj.nthreads)

	var wg sync.WaitGroup
	for t := 0; t < lj.nthreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			ilo, ihi := chunk(nlocal, lj.nthreads, t)
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
					if rsq >= lj.cutforcesq {
						continue
					}
					sr2 := 1.0 / rsq
					sr6 := sr2 * sr2 * sr2 * lj.sigma6
					f := 48.0 * sr6 * (sr6 - 0.5) * sr2 * lj.epsilon
					fx += delx * f
					fy += dely * f
					fz += delz * f
					if lj.evflag {
						eng += 4.0 * sr6 * (sr6 - 1.0) * lj.epsilon
						vir += rsq * f
					}
				}

				a.F[base+0] += fx
				a.F[base+1] += fy
				a.F[base+2] += fz
			}

			engs[t] = eng
			virs[t] = vir
		}(t)
	}
	wg.Wait()

	lj.engVdwl = 0.5 * floats.Sum(engs)
	lj.virial = 0.5 * floats.Sum(virs)
}

// computeHalfNewton accumulates each pair on both endpoints. With one
// worker it writes f[j] directly; with several, each worker scatters
// into a private shadow array reduced afterwards, so the result matches
// a serial evaluation up to summation order.
func (lj *LJ) computeHalfNewton(a *atom.Atom, nl *neighbor.Neighbor) {
	if lj.nthreads == 1 {
		lj.engVdwl, lj.virial = lj.halfNewtonRange(a, nl, 0, a.Nlocal, a.F)
		return
	}

	nall := a.Nall()
	lj.growShadow(nall * a.Pad)
	engs := make([]float64, lj.nthreads)
	virs := make([]float64, lj.nthreads)

	var wg sync.WaitGroup
	for t := 0; t < lj.nthreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			ilo, ihi := chunk(a.Nlocal, lj.nthreads, t)
			zero(lj.shadow[t][:nall*a.Pad])
			engs[t], virs[t] = lj.halfNewtonRange(a, nl, ilo, ihi, lj.shadow[t])
		}(t)
	}
	wg.Wait()

	reduceShadow(a.F, lj.shadow, nall*a.Pad, lj.nthreads)
	lj.engVdwl = floats.Sum(engs)
	lj.virial = floats.Sum(virs)
}

func (lj *LJ) halfNewtonRange(a *atom.Atom, nl *neighbor.Neighbor, ilo, ihi int, f []float64) (eng, vir float64) {
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
			if rsq >= lj.cutforcesq {
				continue
			}
			sr2 := 1.0 / rsq
			sr6 := sr2 * sr2 * sr2 * lj.sigma6
			force := 48.0 * sr6 * (sr6 - 0.5) * sr2 * lj.epsilon

			fx += delx * force
			fy += dely * force
			fz += delz * force
			f[jb+0] -= delx * force
			f[jb+1] -= dely * force
			f[jb+2] -= delz * force

			if lj.evflag {
				// the ghost tie-break records each cross-boundary pair on
				// exactly one rank, so every pair counts in full here
				eng += 4.0 * sr6 * (sr6 - 1.0) * lj.epsilon
				vir += rsq * force
			}
		}

		f[base+0] += fx
		f[base+1] += fy
		f[base+2] += fz
	}
	return eng, vir
}

// computeHalf handles half lists without ghost Newton: ghost-side
// forces are never written, and ghost pairs carry half weight because
// the owning rank mirrors them.
func (lj *LJ) computeHalf(a *atom.Atom, nl *neighbor.Neighbor) {
	nlocal := a.Nlocal

	if lj.nthreads == 1 {
		lj.engVdwl, lj.virial = lj.halfRange(a, nl, 0, nlocal, a.F)
		return
	}

	nall := a.Nall()
	lj.growShadow(nall * a.Pad)
	engs := make([]float64, lj.nthreads)
	virs := make([]float64, lj.nthreads)

	var wg sync.WaitGroup
	for t := 0; t < lj.nthreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			ilo, ihi := chunk(nlocal, lj.nthreads, t)
			zero(lj.shadow[t][:nall*a.Pad])
			engs[t], virs[t] = lj.halfRange(a, nl, ilo, ihi, lj.shadow[t])
		}(t)
	}
	wg.Wait()

	reduceShadow(a.F, lj.shadow, nall*a.Pad, lj.nthreads)
	lj.engVdwl = floats.Sum(engs)
	lj.virial = floats.Sum(virs)
}

func (lj *LJ) halfRange(a *atom.Atom, nl *neighbor.Neighbor, ilo, ihi int, f []float64) (eng, vir float64) {
	nlocal := a.Nlocal
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
			if rsq >= lj.cutforcesq {
				continue
			}
			sr2 := 1.0 / rsq
			sr6 := sr2 * sr2 * sr2 * lj.sigma6
			force := 48.0 * sr6 * (sr6 - 0.5) * sr2 * lj.epsilon

			fx += delx * force
			fy += dely * force
			fz += delz * force
			scale := 1.0
			if j < nlocal {
				f[jb+0] -= delx * force
				f[jb+1] -= dely * force
				f[jb+2] -= delz * force
			} else {
				scale = 0.5
			}

			if lj.evflag {
				eng += scale * 4.0 * sr6 * (sr6 - 1.0) * lj.epsilon
				vir += scale * rsq * force
			}
		}

		f[base+0] += fx
		f[base+1] += fy
		f[base+2] += fz
	}
	return eng, vir
}

func (lj *LJ) growShadow(n int) {
	if len(lj.shadow) < lj.nthreads {
		lj.shadow = make([][]float64, lj.nthreads)
	}
	for t := range lj.shadow {
		if len(lj.shadow[t]) < n {
			lj.shadow[t] = make([]float64, n)
		}
	}
}

// reduceShadow folds the per-worker arrays into f, splitting the index
// range across the same worker count.
func reduceShadow(f []float64, shadow [][]float64, n, nthreads int) {
	var wg sync.WaitGroup
	for t := 0; t < nthreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			lo, hi := chunk(n, nthreads, t)
			for _, s := range shadow[:nthreads] {
				for k := lo; k < hi; k++ {
					f[k] += s[k]
				}
			}
		}(t)
	}
	wg.Wait()
}

func chunk(n, parts, idx int) (int, int) {
	per := (n + parts - 1) / parts
	lo := idx * per
	hi := lo + per
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

func zero(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
