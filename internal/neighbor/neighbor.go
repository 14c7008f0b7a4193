// Package neighbor builds binned neighbor lists over the local and
// ghost atoms. Lists are reused across steps until the integrator
// triggers a rebuild.
package neighbor

import (
	"github.com/arx-os/minimd/internal/atom"
)

const small = 1.0e-6

// Neighbor owns the bin grid and the per-atom neighbor rows.
type Neighbor struct {
	// Every is the rebuild cadence in steps.
	Every int
	// Cutneigh is the force cutoff plus skin.
	Cutneigh   float64
	cutneighsq float64

	// HalfNeigh selects half lists; GhostNewton extends Newton's third
	// law to local/ghost pairs (requires reverse communication).
	HalfNeigh   bool
	GhostNewton bool

	// Nbinx, Nbiny, Nbinz are the global bin grid extents. Zero means
	// derive from the box at Setup.
	Nbinx, Nbiny, Nbinz int

	// Numneigh[i] counts the neighbors of owned atom i; the indices
	// live at Neighbors[i*MaxNeighs : i*MaxNeighs+Numneigh[i]]. The
	// row stride MaxNeighs is part of the contract with the force
	// kernels.
	Numneigh  []int
	Neighbors []int
	MaxNeighs int

	// bin grid covering the sub-box plus the ghost margin
	binsizex, binsizey, binsizez float64
	bininvx, bininvy, bininvz    float64
	mbinxlo, mbinylo, mbinzlo    int
	mbinx, mbiny, mbinz          int
	mbins                        int

	stencil []int

	bincount    []int
	bins        []int
	atomsPerBin int

	nmax int
}

// New creates a neighbor list builder.
func New(cutneigh float64, every int) *Neighbor {
	return &Neighbor{
		Every:       every,
		Cutneigh:    cutneigh,
		cutneighsq:  cutneigh * cutneigh,
		MaxNeighs:   100,
		atomsPerBin: 8,
	}
}

// Setup derives the bin geometry and stencil from the box. Must run
// after Comm.Setup has assigned the sub-box.
func (n *Neighbor) Setup(a *atom.Atom) {
	b := &a.Box

	// unset grid: aim for bins about half a cutoff wide
	defaultBins := func(prd float64) int {
		nb := int(prd / (0.5 * n.Cutneigh))
		if nb < 1 {
			nb = 1
		}
		return nb
	}
	if n.Nbinx <= 0 {
		n.Nbinx = defaultBins(b.Xprd)
	}
	if n.Nbiny <= 0 {
		n.Nbiny = defaultBins(b.Yprd)
	}
	if n.Nbinz <= 0 {
		n.Nbinz = defaultBins(b.Zprd)
	}

	n.binsizex = b.Xprd / float64(n.Nbinx)
	n.binsizey = b.Yprd / float64(n.Nbiny)
	n.binsizez = b.Zprd / float64(n.Nbinz)
	n.bininvx = 1.0 / n.binsizex
	n.bininvy = 1.0 / n.binsizey
	n.bininvz = 1.0 / n.binsizez

	cut := n.Cutneigh

	lo := b.Xlo - cut - small*b.Xprd
	n.mbinxlo = floorBin(lo * n.bininvx)
	hi := b.Xhi + cut + small*b.Xprd
	mbinxhi := floorBin(hi * n.bininvx)

	lo = b.Ylo - cut - small*b.Yprd
	n.mbinylo = floorBin(lo * n.bininvy)
	hi = b.Yhi + cut + small*b.Yprd
	mbinyhi := floorBin(hi * n.bininvy)

	lo = b.Zlo - cut - small*b.Zprd
	n.mbinzlo = floorBin(lo * n.bininvz)
	hi = b.Zhi + cut + small*b.Zprd
	mbinzhi := floorBin(hi * n.bininvz)

	// extend by one so the stencil never walks off the window
	n.mbinxlo--
	mbinxhi++
	n.mbinylo--
	mbinyhi++
	n.mbinzlo--
	mbinzhi++

	n.mbinx = mbinxhi - n.mbinxlo + 1
	n.mbiny = mbinyhi - n.mbinylo + 1
	n.mbinz = mbinzhi - n.mbinzlo + 1
	n.mbins = n.mbinx * n.mbiny * n.mbinz

	nextx := reach(cut, n.bininvx, n.binsizex)
	nexty := reach(cut, n.bininvy, n.binsizey)
	nextz := reach(cut, n.bininvz, n.binsizez)

	n.stencil = n.stencil[:0]
	for k := -nextz; k <= nextz; k++ {
		for j := -nexty; j <= nexty; j++ {
			for i := -nextx; i <= nextx; i++ {
				if n.binDistSq(i, j, k) < n.cutneighsq {
					n.stencil = append(n.stencil, k*n.mbiny*n.mbinx+j*n.mbinx+i)
				}
			}
		}
	}

	n.bincount = make([]int, n.mbins)
	n.bins = make([]int, n.mbins*n.atomsPerBin)
}

func floorBin(v float64) int {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}

// reach counts how many bins the cutoff spans in one direction.
func reach(cut, bininv, binsize float64) int {
	nx := int(cut * bininv)
	if float64(nx)*binsize < 0.999*cut {
		nx++
	}
	return nx
}

// binDistSq is the smallest squared distance between points in bins
// offset by (i,j,k).
func (n *Neighbor) binDistSq(i, j, k int) float64 {
	var dx, dy, dz float64
	switch {
	case i > 0:
		dx = float64(i-1) * n.binsizex
	case i < 0:
		dx = float64(-i-1) * n.binsizex
	}
	switch {
	case j > 0:
		dy = float64(j-1) * n.binsizey
	case j < 0:
		dy = float64(-j-1) * n.binsizey
	}
	switch {
	case k > 0:
		dz = float64(k-1) * n.binsizez
	case k < 0:
		dz = float64(-k-1) * n.binsizez
	}
	return dx*dx + dy*dy + dz*dz
}

// CoordToBin maps a position (local or ghost) into the bin window.
func (n *Neighbor) CoordToBin(x, y, z float64, b *atom.Box) int {
	var ix, iy, iz int

	switch {
	case x >= b.Xprd:
		ix = int((x-b.Xprd)*n.bininvx) + n.Nbinx - n.mbinxlo
	case x >= 0:
		ix = int(x*n.bininvx) - n.mbinxlo
	default:
		ix = int(x*n.bininvx) - n.mbinxlo - 1
	}
	switch {
	case y >= b.Yprd:
		iy = int((y-b.Yprd)*n.bininvy) + n.Nbiny - n.mbinylo
	case y >= 0:
		iy = int(y*n.bininvy) - n.mbinylo
	default:
		iy = int(y*n.bininvy) - n.mbinylo - 1
	}
	switch {
	case z >= b.Zprd:
		iz = int((z-b.Zprd)*n.bininvz) + n.Nbinz - n.mbinzlo
	case z >= 0:
		iz = int(z*n.bininvz) - n.mbinzlo
	default:
		iz = int(z*n.bininvz) - n.mbinzlo - 1
	}

	return iz*n.mbiny*n.mbinx + iy*n.mbinx + ix
}

// BinOfAtom returns the bin of owned atom i, for the locality sort.
func (n *Neighbor) BinOfAtom(a *atom.Atom, i int) int {
	base := i * a.Pad
	return n.CoordToBin(a.X[base], a.X[base+1], a.X[base+2], &a.Box)
}

// Mbins returns the bin window size.
func (n *Neighbor) Mbins() int { return n.mbins }

// binAtoms scatters local and ghost atoms into the bin lists, growing
// bin capacity and retrying on overflow.
func (n *Neighbor) binAtoms(a *atom.Atom) {
	nall := a.Nall()
	for {
		for i := range n.bincount {
			n.bincount[i] = 0
		}
		overflow := false
		for i := 0; i < nall; i++ {
			base := i * a.Pad
			bin := n.CoordToBin(a.X[base], a.X[base+1], a.X[base+2], &a.Box)
			if n.bincount[bin] < n.atomsPerBin {
				n.bins[bin*n.atomsPerBin+n.bincount[bin]] = i
				n.bincount[bin]++
			} else {
				overflow = true
				n.bincount[bin]++
			}
		}
		if !overflow {
			return
		}
		max := 0
		for _, c := range n.bincount {
			if c > max {
				max = c
			}
		}
		n.atomsPerBin = max + max/4 + 1
		n.bins = make([]int, n.mbins*n.atomsPerBin)
	}
}

// Build enumerates, for every owned atom, the candidate partners within
// cutneigh under the configured list policy. Restarts with a larger row
// stride when any row overflows.
func (n *Neighbor) Build(a *atom.Atom) {
	nlocal := a.Nlocal

	if nlocal > n.nmax {
		n.nmax = nlocal + nlocal/4
		n.Numneigh = make([]int, n.nmax)
	}

	n.binAtoms(a)

	for {
		if len(n.Neighbors) < nlocal*n.MaxNeighs {
			n.Neighbors = make([]int, n.nmax*n.MaxNeighs)
		}

		overflow := false
		for i := 0; i < nlocal; i++ {
			base := i * a.Pad
			xtmp := a.X[base+0]
			ytmp := a.X[base+1]
			ztmp := a.X[base+2]
			ibin := n.CoordToBin(xtmp, ytmp, ztmp, &a.Box)

			num := 0
			row := n.Neighbors[i*n.MaxNeighs : (i+1)*n.MaxNeighs]

			for _, off := range n.stencil {
				jbin := ibin + off
				cnt := n.bincount[jbin]
				for m := 0; m < cnt; m++ {
					j := n.bins[jbin*n.atomsPerBin+m]

					if n.HalfNeigh {
						if n.GhostNewton {
							// exactly one side of each pair records the
							// neighbor: higher index among locals, or the
							// lexicographically (z,y,x) greater ghost
							if j <= i && j < nlocal {
								continue
							}
							if j >= nlocal && !ghostBeyond(a, j, xtmp, ytmp, ztmp) {
								continue
							}
						} else {
							if j <= i {
								continue
							}
						}
					} else if j == i {
						continue
					}

					jb := j * a.Pad
					delx := xtmp - a.X[jb+0]
					dely := ytmp - a.X[jb+1]
					delz := ztmp - a.X[jb+2]
					rsq := delx*delx + dely*dely + delz*delz
					if rsq < n.cutneighsq {
						if num < n.MaxNeighs {
							row[num] = j
						}
						num++
					}
				}
			}

			n.Numneigh[i] = num
			if num > n.MaxNeighs {
				overflow = true
			}
		}

		if !overflow {
			return
		}
		max := 0
		for i := 0; i < nlocal; i++ {
			if n.Numneigh[i] > max {
				max = n.Numneigh[i]
			}
		}
		n.MaxNeighs = max + max/4
	}
}

// ghostBeyond orders a local/ghost pair deterministically: the ghost is
// the recording side's partner only if it is strictly greater in
// (z, y, x) lexicographic order.
func ghostBeyond(a *atom.Atom, j int, x, y, z float64) bool {
	jb := j * a.Pad
	zj := a.X[jb+2]
	if zj > z {
		return true
	}
	if zj < z {
		return false
	}
	yj := a.X[jb+1]
	if yj > y {
		return true
	}
	if yj < y {
		return false
	}
	return a.X[jb+0] > x
}
