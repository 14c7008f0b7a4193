package comm

import (
	"math"

	"golang.org/x/time/rate"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/logger"
	"github.com/arx-os/minimd/pkg/errors"
)

// ForwardCapable lets a potential run its own per-atom payload through
// the recorded swap plan. Comm replays the plan without knowing which
// potential is on the other end; the EAM embedding-derivative halo is
// the one client.
type ForwardCapable interface {
	// ForwardSize returns the number of floats per atom in the payload.
	ForwardSize() int
	// PackForward serializes the payload for the atoms in list.
	PackForward(list []int, buf []float64)
	// UnpackForward deposits n received payloads starting at slot first.
	UnpackForward(first, n int, buf []float64)
}

// Comm owns the swap plan, the send/recv buffers and the migration
// protocol for one rank. Buffer sizes grow monotonically.
type Comm struct {
	p      *Proc
	me     int
	nprocs int

	procgrid  [3]int
	myloc     [3]int
	procneigh [3][2]int

	cutneigh float64

	// swap plan, ordered x-lo, x-hi, y-lo, y-hi, z-lo, z-hi
	nswap    int
	sendproc [6]int
	recvproc [6]int
	slablo   [6]float64
	slabhi   [6]float64
	pbcAny   [6]int
	pbcX     [6]int
	pbcY     [6]int
	pbcZ     [6]int

	sendnum   [6]int
	recvnum   [6]int
	firstrecv [6]int
	sendlist  [6][]int

	bufSend []float64
	bufRecv []float64

	// CheckExchange logs atoms that out-ran the one-sub-box-per-step
	// assumption of the non-safe exchange.
	CheckExchange bool
	// SafeExchange routes migrating atoms to their owner directly, at
	// the price of an all-to-all size exchange per pass.
	SafeExchange bool

	log         *logger.Logger
	warnLimiter *rate.Limiter
}

// NewComm creates the communicator for one rank endpoint.
func NewComm(p *Proc) *Comm {
	return &Comm{
		p:           p,
		me:          p.Rank(),
		nprocs:      p.Size(),
		log:         logger.ForRank(p.Rank()),
		warnLimiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Procgrid returns the process grid extents.
func (c *Comm) Procgrid() [3]int { return c.procgrid }

// Nswap returns the number of swaps in the halo plan.
func (c *Comm) Nswap() int { return c.nswap }

// Setup factors the rank count into a process grid matched to the box
// aspect, assigns this rank's sub-box, and lays out the six-swap halo
// plan with slab thickness cutneigh.
func (c *Comm) Setup(cutneigh float64, a *atom.Atom) error {
	c.cutneigh = cutneigh

	c.procgrid = factorGrid(c.nprocs, a.Box.Xprd, a.Box.Yprd, a.Box.Zprd)

	px, py := c.procgrid[0], c.procgrid[1]
	c.myloc[0] = c.me % px
	c.myloc[1] = (c.me / px) % py
	c.myloc[2] = c.me / (px * py)

	for dim := 0; dim < 3; dim++ {
		lo := c.myloc
		hi := c.myloc
		lo[dim] = wrap(c.myloc[dim]-1, c.procgrid[dim])
		hi[dim] = wrap(c.myloc[dim]+1, c.procgrid[dim])
		c.procneigh[dim][0] = lo[2]*py*px + lo[1]*px + lo[0]
		c.procneigh[dim][1] = hi[2]*py*px + hi[1]*px + hi[0]
	}

	prd := [3]float64{a.Box.Xprd, a.Box.Yprd, a.Box.Zprd}
	var sublo, subhi [3]float64
	for dim := 0; dim < 3; dim++ {
		w := prd[dim] / float64(c.procgrid[dim])
		sublo[dim] = float64(c.myloc[dim]) * w
		subhi[dim] = float64(c.myloc[dim]+1) * w
		if c.procgrid[dim] > 1 && w < cutneigh {
			return errors.NewDecompositionError(dim, w, cutneigh)
		}
	}
	a.Box.Xlo, a.Box.Xhi = sublo[0], subhi[0]
	a.Box.Ylo, a.Box.Yhi = sublo[1], subhi[1]
	a.Box.Zlo, a.Box.Zhi = sublo[2], subhi[2]

	// Swap plan. A dimension owned entirely by one rank folds into a
	// self-swap that images this rank's own slabs across the periodic
	// face.
	c.nswap = 0
	for dim := 0; dim < 3; dim++ {
		for dir := 0; dir < 2; dir++ {
			s := c.nswap
			c.nswap++

			c.pbcAny[s], c.pbcX[s], c.pbcY[s], c.pbcZ[s] = 0, 0, 0, 0
			if dir == 0 {
				// send low, receive from high
				c.sendproc[s] = c.procneigh[dim][0]
				c.recvproc[s] = c.procneigh[dim][1]
				c.slablo[s] = sublo[dim]
				c.slabhi[s] = sublo[dim] + cutneigh
				if c.myloc[dim] == 0 {
					c.pbcAny[s] = 1
					c.setPBCFlag(s, dim, 1)
				}
			} else {
				c.sendproc[s] = c.procneigh[dim][1]
				c.recvproc[s] = c.procneigh[dim][0]
				c.slablo[s] = subhi[dim] - cutneigh
				c.slabhi[s] = subhi[dim]
				if c.myloc[dim] == c.procgrid[dim]-1 {
					c.pbcAny[s] = 1
					c.setPBCFlag(s, dim, -1)
				}
			}
			if c.sendlist[s] == nil {
				c.sendlist[s] = make([]int, 0, 128)
			}
		}
	}
	return nil
}

func (c *Comm) setPBCFlag(s, dim, sign int) {
	switch dim {
	case 0:
		c.pbcX[s] = sign
	case 1:
		c.pbcY[s] = sign
	default:
		c.pbcZ[s] = sign
	}
}

func (c *Comm) shift(s int, a *atom.Atom) [3]float64 {
	if c.pbcAny[s] == 0 {
		return [3]float64{}
	}
	return [3]float64{
		float64(c.pbcX[s]) * a.Box.Xprd,
		float64(c.pbcY[s]) * a.Box.Yprd,
		float64(c.pbcZ[s]) * a.Box.Zprd,
	}
}

// Exchange migrates atoms that crossed a sub-box face to their new
// owner. In the default mode each dimension makes one hop; atoms that
// moved further are handled only by SafeExchange.
func (c *Comm) Exchange(a *atom.Atom) {
	a.PBC()
	if c.nprocs == 1 {
		return
	}
	if c.SafeExchange {
		c.exchangeSafe(a)
		return
	}
	c.exchangeOnce(a)
}

func (c *Comm) exchangeOnce(a *atom.Atom) {
	w := a.ExchangeWidth()
	for dim := 0; dim < 3; dim++ {
		if c.procgrid[dim] == 1 {
			continue
		}
		lo := a.Box.Lo(dim)
		hi := a.Box.Hi(dim)
		subw := hi - lo

		// pack leavers, compacting the local store
		nsend := 0
		i := 0
		for i < a.Nlocal {
			x := a.X[i*a.Pad+dim]
			if x < lo || x >= hi {
				if c.CheckExchange && tooFar(x, lo, hi, subw, a.Box.Prd(dim)) && c.warnLimiter.Allow() {
					c.log.Warnf("atom moved more than one sub-box in dim %d; enable --safe_exchange", dim)
				}
				c.growSend(nsend + w)
				nsend += a.PackExchange(i, c.bufSend[nsend:])
				a.Copy(a.Nlocal-1, i)
				a.Nlocal--
			} else {
				i++
			}
		}

		// Send the whole leaver set to both face neighbors; the
		// receiver claims what landed in its slab. The two neighbors
		// coincide on a two-wide grid, so send once there.
		var nrecv int
		if c.procgrid[dim] == 2 {
			other := c.procneigh[dim][0]
			c.p.SendInt(other, nsend)
			nrecv = c.p.RecvInt(other)
			c.p.SendFloats(other, c.bufSend[:nsend])
			c.growRecv(nrecv)
			copy(c.bufRecv, c.p.RecvFloats(other))
		} else {
			loN, hiN := c.procneigh[dim][0], c.procneigh[dim][1]
			c.p.SendInt(loN, nsend)
			c.p.SendInt(hiN, nsend)
			n1 := c.p.RecvInt(hiN)
			n2 := c.p.RecvInt(loN)
			nrecv = n1 + n2
			c.growRecv(nrecv)
			c.p.SendFloats(loN, c.bufSend[:nsend])
			c.p.SendFloats(hiN, c.bufSend[:nsend])
			copy(c.bufRecv[:n1], c.p.RecvFloats(hiN))
			copy(c.bufRecv[n1:nrecv], c.p.RecvFloats(loN))
		}

		// claim arrivals that fall inside my extent in this dimension
		for m := 0; m < nrecv; m += w {
			x := c.bufRecv[m+dim]
			if x >= lo && x < hi {
				a.UnpackExchange(a.Nlocal, c.bufRecv[m:])
				a.Nlocal++
			}
		}
	}
}

// exchangeSafe routes each leaver straight to the rank whose sub-box
// contains it, then repeats until every rank reports a settled store.
// Correct for arbitrarily fast atoms.
func (c *Comm) exchangeSafe(a *atom.Atom) {
	w := a.ExchangeWidth()
	prd := [3]float64{a.Box.Xprd, a.Box.Yprd, a.Box.Zprd}

	for {
		// group leavers by destination rank
		dest := make(map[int][]float64)
		i := 0
		for i < a.Nlocal {
			if c.inBox(a, i) {
				i++
				continue
			}
			loc := [3]int{}
			for dim := 0; dim < 3; dim++ {
				sw := prd[dim] / float64(c.procgrid[dim])
				l := int(a.X[i*a.Pad+dim] / sw)
				if l >= c.procgrid[dim] {
					l = c.procgrid[dim] - 1
				}
				loc[dim] = l
			}
			dst := loc[2]*c.procgrid[1]*c.procgrid[0] + loc[1]*c.procgrid[0] + loc[0]
			buf := make([]float64, w)
			a.PackExchange(i, buf)
			dest[dst] = append(dest[dst], buf...)
			a.Copy(a.Nlocal-1, i)
			a.Nlocal--
		}

		// all-to-all: counts first, then payloads
		moved := 0
		for r := 0; r < c.nprocs; r++ {
			if r == c.me {
				continue
			}
			out := dest[r]
			moved += len(out) / w
			c.p.SendInt(r, len(out))
		}
		incoming := make(map[int]int)
		for r := 0; r < c.nprocs; r++ {
			if r == c.me {
				continue
			}
			incoming[r] = c.p.RecvInt(r)
		}
		for r := 0; r < c.nprocs; r++ {
			if r == c.me || len(dest[r]) == 0 {
				continue
			}
			c.p.SendFloats(r, dest[r])
		}
		for r := 0; r < c.nprocs; r++ {
			if r == c.me || incoming[r] == 0 {
				continue
			}
			buf := c.p.RecvFloats(r)
			for m := 0; m < len(buf); m += w {
				a.UnpackExchange(a.Nlocal, buf[m:])
				a.Nlocal++
			}
		}

		a.PBC()
		if c.p.AllreduceSumInt(moved+c.unsettled(a)) == 0 {
			return
		}
	}
}

func (c *Comm) inBox(a *atom.Atom, i int) bool {
	for dim := 0; dim < 3; dim++ {
		x := a.X[i*a.Pad+dim]
		if x < a.Box.Lo(dim) || x >= a.Box.Hi(dim) {
			return false
		}
	}
	return true
}

func (c *Comm) unsettled(a *atom.Atom) int {
	n := 0
	for i := 0; i < a.Nlocal; i++ {
		if !c.inBox(a, i) {
			n++
		}
	}
	return n
}

// tooFar reports whether a leaver is beyond the face neighbor's extent,
// accounting for the periodic wrap at the global boundary.
func tooFar(x, lo, hi, subw, prd float64) bool {
	d := 0.0
	if x < lo {
		d = lo - x
	} else {
		d = x - hi
	}
	if d > prd/2 {
		d = prd - d - (hi - lo)
	}
	return d > subw
}

// Borders rebuilds the ghost region. Swaps run in plan order; the scan
// range for the y and z dimensions includes ghosts acquired by earlier
// dimensions so edge and corner images complete.
func (c *Comm) Borders(a *atom.Atom) {
	a.Nghost = 0
	w := a.BorderWidth()

	iswap := 0
	nlast := 0
	for dim := 0; dim < 3; dim++ {
		for dir := 0; dir < 2; dir++ {
			s := iswap
			iswap++
			if dir == 0 {
				nlast = a.Nlocal + a.Nghost
			}

			lo, hi := c.slablo[s], c.slabhi[s]
			shift := c.shift(s, a)

			list := c.sendlist[s][:0]
			for i := 0; i < nlast; i++ {
				x := a.X[i*a.Pad+dim]
				if x >= lo && x <= hi {
					list = append(list, i)
				}
			}
			c.sendlist[s] = list
			c.sendnum[s] = len(list)

			nsend := len(list) * w
			c.growSend(nsend)
			for k, j := range list {
				a.PackBorder(j, c.bufSend[k*w:], shift)
			}

			var buf []float64
			var nrecvAtoms int
			if c.sendproc[s] == c.me {
				// self-swap: alias the send buffer
				nrecvAtoms = c.sendnum[s]
				buf = c.bufSend[:nsend]
			} else {
				c.p.SendInt(c.sendproc[s], c.sendnum[s])
				nrecvAtoms = c.p.RecvInt(c.recvproc[s])
				c.p.SendFloats(c.sendproc[s], c.bufSend[:nsend])
				buf = c.p.RecvFloats(c.recvproc[s])
			}
			c.recvnum[s] = nrecvAtoms

			c.firstrecv[s] = a.Nall()
			for k := 0; k < nrecvAtoms; k++ {
				a.UnpackBorder(a.Nall(), buf[k*w:])
				a.Nghost++
			}
		}
	}
}

// Forward refreshes ghost positions in place by replaying the recorded
// send lists and periodic shifts. Membership is untouched.
func (c *Comm) Forward(a *atom.Atom) {
	for s := 0; s < c.nswap; s++ {
		shift := c.shift(s, a)
		n := c.sendnum[s]
		c.growSend(n * 3)
		a.PackComm(n, c.sendlist[s], c.bufSend, shift)

		var buf []float64
		if c.sendproc[s] == c.me {
			buf = c.bufSend[:n*3]
		} else {
			c.p.SendFloats(c.sendproc[s], c.bufSend[:n*3])
			buf = c.p.RecvFloats(c.recvproc[s])
		}
		a.UnpackComm(c.recvnum[s], c.firstrecv[s], buf)
	}
}

// ForwardWith replays the swap plan for a potential's own payload
// (the EAM embedding-derivative halo).
func (c *Comm) ForwardWith(a *atom.Atom, fc ForwardCapable) {
	per := fc.ForwardSize()
	for s := 0; s < c.nswap; s++ {
		n := c.sendnum[s]
		c.growSend(n * per)
		fc.PackForward(c.sendlist[s], c.bufSend[:n*per])

		var buf []float64
		if c.sendproc[s] == c.me {
			buf = c.bufSend[:n*per]
		} else {
			c.p.SendFloats(c.sendproc[s], c.bufSend[:n*per])
			buf = c.p.RecvFloats(c.recvproc[s])
		}
		fc.UnpackForward(c.firstrecv[s], c.recvnum[s], buf)
	}
}

// Reverse returns ghost force contributions to their owners. Swaps run
// in reverse order, sending the firstrecv slabs back along the plan and
// accumulating into the owners' force components.
func (c *Comm) Reverse(a *atom.Atom) {
	for s := c.nswap - 1; s >= 0; s-- {
		n := c.recvnum[s]
		c.growSend(n * 3)
		a.PackReverse(n, c.firstrecv[s], c.bufSend)

		var buf []float64
		if c.sendproc[s] == c.me {
			buf = c.bufSend[:n*3]
		} else {
			c.p.SendFloats(c.recvproc[s], c.bufSend[:n*3])
			buf = c.p.RecvFloats(c.sendproc[s])
		}
		a.UnpackReverse(c.sendnum[s], c.sendlist[s], buf)
	}
}

func (c *Comm) growSend(n int) {
	if n > len(c.bufSend) {
		nw := make([]float64, n+1024)
		copy(nw, c.bufSend)
		c.bufSend = nw
	}
}

func (c *Comm) growRecv(n int) {
	if n > len(c.bufRecv) {
		c.bufRecv = make([]float64, n+1024)
	}
}

func wrap(v, n int) int {
	return ((v % n) + n) % n
}

// factorGrid splits nprocs into a 3D grid minimizing the communication
// surface for the given box shape.
func factorGrid(nprocs int, xprd, yprd, zprd float64) [3]int {
	best := [3]int{nprocs, 1, 1}
	bestSurf := math.Inf(1)
	area := func(px, py, pz int) float64 {
		x := xprd / float64(px)
		y := yprd / float64(py)
		z := zprd / float64(pz)
		return x*y + y*z + z*x
	}
	for px := 1; px <= nprocs; px++ {
		if nprocs%px != 0 {
			continue
		}
		rem := nprocs / px
		for py := 1; py <= rem; py++ {
			if rem%py != 0 {
				continue
			}
			pz := rem / py
			if s := area(px, py, pz); s < bestSurf {
				bestSurf = s
				best = [3]int{px, py, pz}
			}
		}
	}
	return best
}
