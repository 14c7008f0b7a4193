package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowPreservesOwnedData(t *testing.T) {
	a := New(3)
	a.AddAtom(1.0, 2.0, 3.0, 0.1, 0.2, 0.3)
	a.AddAtom(4.0, 5.0, 6.0, 0.4, 0.5, 0.6)

	before := append([]float64(nil), a.X[:6]...)
	a.GrowTo(a.Nmax * 2)

	assert.Equal(t, before, a.X[:6])
	assert.Equal(t, 2, a.Nlocal)
	assert.Equal(t, 1, a.Type[0])
}

func TestPackUnpackExchangeRoundTrip(t *testing.T) {
	a := New(3)
	a.AddAtom(1.5, 2.5, 3.5, -0.5, 0.25, 0.75)

	buf := make([]float64, a.ExchangeWidth())
	n := a.PackExchange(0, buf)
	require.Equal(t, a.ExchangeWidth(), n)

	b := New(3)
	b.Grow()
	b.UnpackExchange(0, buf)
	b.Nlocal = 1

	assert.Equal(t, a.X[:3], b.X[:3])
	assert.Equal(t, a.V[:3], b.V[:3])
	assert.Equal(t, a.Type[0], b.Type[0])
}

func TestPackBorderAppliesShift(t *testing.T) {
	a := New(3)
	a.AddAtom(1.0, 2.0, 3.0, 0, 0, 0)

	buf := make([]float64, a.BorderWidth())
	a.PackBorder(0, buf, [3]float64{10.0, 0, -10.0})

	assert.Equal(t, 11.0, buf[0])
	assert.Equal(t, 2.0, buf[1])
	assert.Equal(t, -7.0, buf[2])
}

func TestPBCWrapsIntoBox(t *testing.T) {
	a := New(3)
	a.Box = Box{Xprd: 10, Yprd: 10, Zprd: 10}
	a.AddAtom(-0.5, 10.0, 3.0, 0, 0, 0)

	a.PBC()

	assert.InDelta(t, 9.5, a.X[0], 1e-15)
	assert.InDelta(t, 0.0, a.X[1], 1e-15)
	assert.InDelta(t, 3.0, a.X[2], 1e-15)
}

func TestCopyMovesAtom(t *testing.T) {
	a := New(3)
	a.AddAtom(1, 1, 1, 2, 2, 2)
	a.AddAtom(3, 3, 3, 4, 4, 4)

	a.Copy(1, 0)

	assert.Equal(t, []float64{3, 3, 3}, a.X[:3])
	assert.Equal(t, []float64{4, 4, 4}, a.V[:3])
}

func TestSortByBinPreservesAtomSet(t *testing.T) {
	a := New(3)
	a.Box = Box{Xprd: 4, Yprd: 4, Zprd: 4}
	coords := [][3]float64{{3.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {2.5, 0.5, 0.5}, {1.5, 0.5, 0.5}}
	for i, c := range coords {
		a.AddAtom(c[0], c[1], c[2], float64(i), 0, 0)
	}

	// bin by integer x coordinate
	a.SortByBin(4, func(i int) int { return int(a.X[i*a.Pad]) })

	for i := 0; i < a.Nlocal; i++ {
		assert.InDelta(t, float64(i)+0.5, a.X[i*a.Pad], 1e-15)
	}
	// velocity follows its atom
	assert.Equal(t, 1.0, a.V[0*a.Pad])
	assert.Equal(t, 3.0, a.V[1*a.Pad])
}

func TestPadFourStride(t *testing.T) {
	a := New(4)
	a.AddAtom(1, 2, 3, 0, 0, 0)
	a.AddAtom(4, 5, 6, 0, 0, 0)

	assert.Equal(t, 4.0, a.X[4])
	assert.Equal(t, 5.0, a.X[5])
}
