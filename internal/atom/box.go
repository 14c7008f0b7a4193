package atom

// Box holds the global periodic extents and this process' sub-box.
// Sub-boxes tile the global box exactly; periodicity applies at the
// global faces only.
type Box struct {
	Xprd, Yprd, Zprd float64

	Xlo, Xhi float64
	Ylo, Yhi float64
	Zlo, Zhi float64
}

// Prd returns the global extent along dim (0=x, 1=y, 2=z).
func (b *Box) Prd(dim int) float64 {
	switch dim {
	case 0:
		return b.Xprd
	case 1:
		return b.Yprd
	}
	return b.Zprd
}

// Lo returns the sub-box lower bound along dim.
func (b *Box) Lo(dim int) float64 {
	switch dim {
	case 0:
		return b.Xlo
	case 1:
		return b.Ylo
	}
	return b.Zlo
}

// Hi returns the sub-box upper bound along dim.
func (b *Box) Hi(dim int) float64 {
	switch dim {
	case 0:
		return b.Xhi
	case 1:
		return b.Yhi
	}
	return b.Zhi
}

// Volume returns the global box volume.
func (b *Box) Volume() float64 {
	return b.Xprd * b.Yprd * b.Zprd
}
