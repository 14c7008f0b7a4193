package neighbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
)

// scatterAtoms fills the box with a deterministic pseudo-random cloud.
func scatterAtoms(a *atom.Atom, n int, prd float64) {
	seed := uint64(12345)
	next := func() float64 {
		seed = seed*6364136223846793005 + 1442695040888963407
		return float64(seed>>11) / float64(1<<53)
	}
	for i := 0; i < n; i++ {
		a.AddAtom(next()*prd, next()*prd, next()*prd, 0, 0, 0)
	}
}

func buildSystem(t *testing.T, n int, prd, cutneigh float64, half, ghostNewton bool) (*atom.Atom, *Neighbor) {
	t.Helper()
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: prd, Yprd: prd, Zprd: prd}
	c := comm.NewComm(w.Proc(0))
	require.NoError(t, c.Setup(cutneigh, a))

	scatterAtoms(a, n, prd)
	c.Borders(a)

	nl := New(cutneigh, 20)
	nl.HalfNeigh = half
	nl.GhostNewton = ghostNewton
	nl.Setup(a)
	nl.Build(a)
	return a, nl
}

func hasNeighbor(nl *Neighbor, i, j int) bool {
	for jj := 0; jj < nl.Numneigh[i]; jj++ {
		if nl.Neighbors[i*nl.MaxNeighs+jj] == j {
			return true
		}
	}
	return false
}

func TestFullListIsComplete(t *testing.T) {
	const cut = 2.3
	a, nl := buildSystem(t, 150, 8.0, cut, false, false)

	for i := 0; i < a.Nlocal; i++ {
		for j := 0; j < a.Nall(); j++ {
			if j == i {
				continue
			}
			var rsq float64
			for d := 0; d < 3; d++ {
				dd := a.X[i*a.Pad+d] - a.X[j*a.Pad+d]
				rsq += dd * dd
			}
			if rsq < cut*cut {
				assert.True(t, hasNeighbor(nl, i, j),
					"atom %d missing neighbor %d at rsq %f", i, j, rsq)
			} else {
				assert.False(t, hasNeighbor(nl, i, j),
					"atom %d has out-of-range neighbor %d at rsq %f", i, j, rsq)
			}
		}
	}
}

func TestHalfListCountsEachLocalPairOnce(t *testing.T) {
	a, nl := buildSystem(t, 150, 8.0, 2.3, true, false)

	for i := 0; i < a.Nlocal; i++ {
		for jj := 0; jj < nl.Numneigh[i]; jj++ {
			j := nl.Neighbors[i*nl.MaxNeighs+jj]
			if j < a.Nlocal {
				assert.Greater(t, j, i)
				assert.False(t, hasNeighbor(nl, j, i),
					"pair (%d,%d) recorded from both sides", i, j)
			}
		}
	}
}

func TestHalfListPairTotalMatchesFullList(t *testing.T) {
	aFull, nlFull := buildSystem(t, 150, 8.0, 2.3, false, false)
	_, nlHalf := buildSystem(t, 150, 8.0, 2.3, true, false)

	full := 0
	for i := 0; i < aFull.Nlocal; i++ {
		full += nlFull.Numneigh[i]
	}
	// every local-local pair appears twice in the full list, every
	// local-ghost pair once on each endpoint's row
	half := 0
	for i := 0; i < aFull.Nlocal; i++ {
		half += nlHalf.Numneigh[i]
	}
	assert.Equal(t, full, 2*half-countGhostEntries(aFull, nlHalf))
}

func countGhostEntries(a *atom.Atom, nl *Neighbor) int {
	n := 0
	for i := 0; i < a.Nlocal; i++ {
		for jj := 0; jj < nl.Numneigh[i]; jj++ {
			if nl.Neighbors[i*nl.MaxNeighs+jj] >= a.Nlocal {
				n++
			}
		}
	}
	return n
}

func TestGhostNewtonRecordsEachImagePairOnce(t *testing.T) {
	// with one rank every ghost is a periodic image of a local atom;
	// the (z,y,x) tie-break must leave exactly one record per physical
	// image pair, so the ghost-Newton list carries half the ghost
	// entries of the no-newton list
	a, nlNoGN := buildSystem(t, 150, 8.0, 2.3, true, false)
	_, nlGN := buildSystem(t, 150, 8.0, 2.3, true, true)

	assert.Equal(t, countGhostEntries(a, nlNoGN), 2*countGhostEntries(a, nlGN))
}

func TestCutoffIsStrict(t *testing.T) {
	const cut = 2.5
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: 20, Yprd: 20, Zprd: 20}
	c := comm.NewComm(w.Proc(0))
	require.NoError(t, c.Setup(cut, a))

	a.AddAtom(5.0, 5.0, 5.0, 0, 0, 0)
	a.AddAtom(5.0+cut, 5.0, 5.0, 0, 0, 0) // exactly at the cutoff
	a.AddAtom(5.0, 5.0+cut-1e-9, 5.0, 0, 0, 0)
	c.Borders(a)

	nl := New(cut, 20)
	nl.Setup(a)
	nl.Build(a)

	assert.False(t, hasNeighbor(nl, 0, 1))
	assert.True(t, hasNeighbor(nl, 0, 2))
}

func TestRowOverflowGrowsAndRebuilds(t *testing.T) {
	a, nl := func() (*atom.Atom, *Neighbor) {
		w := comm.NewWorld(1)
		a := atom.New(3)
		a.Box = atom.Box{Xprd: 6, Yprd: 6, Zprd: 6}
		c := comm.NewComm(w.Proc(0))
		if err := c.Setup(2.5, a); err != nil {
			return nil, nil
		}
		scatterAtoms(a, 400, 6.0)
		c.Borders(a)
		nl := New(2.5, 20)
		nl.MaxNeighs = 4 // force repeated restarts
		nl.Setup(a)
		nl.Build(a)
		return a, nl
	}()
	require.NotNil(t, nl)

	max := 0
	for i := 0; i < a.Nlocal; i++ {
		if nl.Numneigh[i] > max {
			max = nl.Numneigh[i]
		}
	}
	assert.LessOrEqual(t, max, nl.MaxNeighs)
	assert.Greater(t, max, 4)
}

func TestSingleAtomTinyCutHasNoGhosts(t *testing.T) {
	w := comm.NewWorld(1)
	a := atom.New(3)
	a.Box = atom.Box{Xprd: 50, Yprd: 50, Zprd: 50}
	c := comm.NewComm(w.Proc(0))
	require.NoError(t, c.Setup(0.5, a))
	a.AddAtom(25, 25, 25, 0, 0, 0)

	c.Borders(a)
	nl := New(0.5, 20)
	nl.Setup(a)
	nl.Build(a)

	assert.Equal(t, 0, a.Nghost)
	assert.Equal(t, 0, nl.Numneigh[0])
}
