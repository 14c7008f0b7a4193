// Package atom holds the spatially decomposed particle store: an SoA of
// positions, velocities and forces over the index space [0, Nlocal+Nghost),
// where [0, Nlocal) are owned atoms and the tail holds read-only ghost
// images rebuilt by the border communication.
package atom

// delta is the grow increment for the per-atom arrays. Growth is
// monotonic; owned-atom data survives every reallocation.
const delta = 20000

// Atom is the per-process particle store.
type Atom struct {
	// Natoms is the global atom count, Nlocal the owned count on this
	// process, Nghost the current ghost-image count and Nmax the
	// allocated capacity in atoms.
	Natoms int
	Nlocal int
	Nghost int
	Nmax   int

	// X, V, F are packed 3-vectors with stride Pad. Pad is fixed for
	// the lifetime of the run (3 for dense packing, 4 for aligned).
	X, V, F []float64
	Type    []int

	Mass float64
	Box  Box

	Pad int
}

// New creates an empty store with the given vector stride (3 or 4).
func New(pad int) *Atom {
	if pad != 3 && pad != 4 {
		pad = 3
	}
	return &Atom{Mass: 1.0, Pad: pad}
}

// Nall returns the number of owned plus ghost atoms.
func (a *Atom) Nall() int {
	return a.Nlocal + a.Nghost
}

// Grow extends capacity by the fixed increment, preserving owned data.
func (a *Atom) Grow() {
	a.GrowTo(a.Nmax + delta)
}

// GrowTo extends capacity to at least n atoms.
func (a *Atom) GrowTo(n int) {
	if n <= a.Nmax {
		return
	}
	a.Nmax = n

	grow := func(old []float64) []float64 {
		nw := make([]float64, a.Nmax*a.Pad)
		copy(nw, old)
		return nw
	}
	a.X = grow(a.X)
	a.V = grow(a.V)
	a.F = grow(a.F)

	nt := make([]int, a.Nmax)
	copy(nt, a.Type)
	a.Type = nt
}

// AddAtom appends one owned atom, growing storage on demand.
func (a *Atom) AddAtom(x, y, z, vx, vy, vz float64) {
	if a.Nlocal == a.Nmax {
		a.Grow()
	}
	i := a.Nlocal * a.Pad
	a.X[i+0] = x
	a.X[i+1] = y
	a.X[i+2] = z
	a.V[i+0] = vx
	a.V[i+1] = vy
	a.V[i+2] = vz
	a.Type[a.Nlocal] = 1
	a.Nlocal++
}

// Copy overwrites slot dst with the contents of slot src.
func (a *Atom) Copy(src, dst int) {
	s := src * a.Pad
	d := dst * a.Pad
	for k := 0; k < 3; k++ {
		a.X[d+k] = a.X[s+k]
		a.V[d+k] = a.V[s+k]
	}
	a.Type[dst] = a.Type[src]
}

// PBC wraps owned atoms back into the global box. Called before every
// exchange so migration only ever crosses sub-box faces.
func (a *Atom) PBC() {
	prd := [3]float64{a.Box.Xprd, a.Box.Yprd, a.Box.Zprd}
	for i := 0; i < a.Nlocal; i++ {
		base := i * a.Pad
		for d := 0; d < 3; d++ {
			if a.X[base+d] < 0 {
				a.X[base+d] += prd[d]
			}
			if a.X[base+d] >= prd[d] {
				a.X[base+d] -= prd[d]
			}
		}
	}
}

// exchangeWidth is the packed size of one migrating atom:
// position, velocity, type.
const exchangeWidth = 7

// PackExchange serializes owned atom i for migration.
func (a *Atom) PackExchange(i int, buf []float64) int {
	base := i * a.Pad
	buf[0] = a.X[base+0]
	buf[1] = a.X[base+1]
	buf[2] = a.X[base+2]
	buf[3] = a.V[base+0]
	buf[4] = a.V[base+1]
	buf[5] = a.V[base+2]
	buf[6] = float64(a.Type[i])
	return exchangeWidth
}

// UnpackExchange materializes a migrated atom into slot i.
func (a *Atom) UnpackExchange(i int, buf []float64) int {
	if i >= a.Nmax {
		a.Grow()
	}
	base := i * a.Pad
	a.X[base+0] = buf[0]
	a.X[base+1] = buf[1]
	a.X[base+2] = buf[2]
	a.V[base+0] = buf[3]
	a.V[base+1] = buf[4]
	a.V[base+2] = buf[5]
	a.Type[i] = int(buf[6])
	return exchangeWidth
}

// ExchangeWidth returns the packed size of one migrating atom.
func (a *Atom) ExchangeWidth() int { return exchangeWidth }

// borderWidth is the packed size of one ghost atom: position and type.
const borderWidth = 4

// PackBorder serializes atom j as a ghost image shifted by the swap's
// periodic correction.
func (a *Atom) PackBorder(j int, buf []float64, shift [3]float64) int {
	base := j * a.Pad
	buf[0] = a.X[base+0] + shift[0]
	buf[1] = a.X[base+1] + shift[1]
	buf[2] = a.X[base+2] + shift[2]
	buf[3] = float64(a.Type[j])
	return borderWidth
}

// UnpackBorder places a received ghost image into slot i.
func (a *Atom) UnpackBorder(i int, buf []float64) int {
	if i >= a.Nmax {
		a.Grow()
	}
	base := i * a.Pad
	a.X[base+0] = buf[0]
	a.X[base+1] = buf[1]
	a.X[base+2] = buf[2]
	a.Type[i] = int(buf[3])
	return borderWidth
}

// BorderWidth returns the packed size of one ghost atom.
func (a *Atom) BorderWidth() int { return borderWidth }

// PackComm refreshes ghost positions: serializes the recorded send list
// with the swap's periodic shift applied.
func (a *Atom) PackComm(n int, list []int, buf []float64, shift [3]float64) {
	for i := 0; i < n; i++ {
		base := list[i] * a.Pad
		buf[3*i+0] = a.X[base+0] + shift[0]
		buf[3*i+1] = a.X[base+1] + shift[1]
		buf[3*i+2] = a.X[base+2] + shift[2]
	}
}

// UnpackComm overwrites ghost positions starting at slot first.
func (a *Atom) UnpackComm(n, first int, buf []float64) {
	for i := 0; i < n; i++ {
		base := (first + i) * a.Pad
		a.X[base+0] = buf[3*i+0]
		a.X[base+1] = buf[3*i+1]
		a.X[base+2] = buf[3*i+2]
	}
}

// PackReverse serializes the force accumulated on the ghost slab
// starting at slot first.
func (a *Atom) PackReverse(n, first int, buf []float64) {
	for i := 0; i < n; i++ {
		base := (first + i) * a.Pad
		buf[3*i+0] = a.F[base+0]
		buf[3*i+1] = a.F[base+1]
		buf[3*i+2] = a.F[base+2]
	}
}

// UnpackReverse adds returned ghost force contributions onto the owners
// named by the send list.
func (a *Atom) UnpackReverse(n int, list []int, buf []float64) {
	for i := 0; i < n; i++ {
		base := list[i] * a.Pad
		a.F[base+0] += buf[3*i+0]
		a.F[base+1] += buf[3*i+1]
		a.F[base+2] += buf[3*i+2]
	}
}

// SortByBin re-permutes owned atoms into bin order to restore spatial
// locality. binOf maps an owned atom index to its bin; nbins is the bin
// count. Pure index shuffle; the physics is unchanged.
func (a *Atom) SortByBin(nbins int, binOf func(i int) int) {
	counts := make([]int, nbins+1)
	bin := make([]int, a.Nlocal)
	for i := 0; i < a.Nlocal; i++ {
		b := binOf(i)
		if b < 0 {
			b = 0
		}
		if b >= nbins {
			b = nbins - 1
		}
		bin[i] = b
		counts[b+1]++
	}
	for b := 0; b < nbins; b++ {
		counts[b+1] += counts[b]
	}

	nx := make([]float64, a.Nlocal*a.Pad)
	nv := make([]float64, a.Nlocal*a.Pad)
	nt := make([]int, a.Nlocal)
	for i := 0; i < a.Nlocal; i++ {
		dst := counts[bin[i]]
		counts[bin[i]]++
		copy(nx[dst*a.Pad:dst*a.Pad+3], a.X[i*a.Pad:i*a.Pad+3])
		copy(nv[dst*a.Pad:dst*a.Pad+3], a.V[i*a.Pad:i*a.Pad+3])
		nt[dst] = a.Type[i]
	}
	copy(a.X, nx)
	copy(a.V, nv)
	copy(a.Type[:a.Nlocal], nt)
}
