package force

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/arx-os/minimd/pkg/errors"
)

// funcfl holds one DYNAMO single-element potential file: the embedding
// function F(ρ), the effective charge z(r) and the density ρ(r) on
// uniform grids. Arrays are shifted to 1-based indexing after the read
// so the spline machinery can stay aligned with the table math.
type funcfl struct {
	mass float64
	nrho int
	drho float64
	nr   int
	dr   float64
	cut  float64

	frho []float64 // len nrho+1, 1-based
	zr   []float64 // len nr+1, 1-based
	rhor []float64 // len nr+1, 1-based
}

// readFuncfl parses a funcfl file:
//
//	line 1: comment
//	line 2: atomic number, mass
//	line 3: nrho drho nr dr cutoff
//	then nrho values of F(ρ), nr values of z(r), nr values of ρ(r),
//	whitespace separated with no fixed line structure.
func readFuncfl(path string) (*funcfl, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	if !sc.Scan() {
		return nil, errors.NewPotentialIOError(path, errors.ErrParse)
	}

	var f funcfl

	if !sc.Scan() {
		return nil, errors.NewPotentialIOError(path, errors.ErrParse)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 2 {
		return nil, errors.NewPotentialIOError(path, fmt.Errorf("short element line"))
	}
	if f.mass, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}

	if !sc.Scan() {
		return nil, errors.NewPotentialIOError(path, errors.ErrParse)
	}
	fields = strings.Fields(sc.Text())
	if len(fields) < 5 {
		return nil, errors.NewPotentialIOError(path, fmt.Errorf("short grid line"))
	}
	if f.nrho, err = strconv.Atoi(fields[0]); err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}
	if f.drho, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}
	if f.nr, err = strconv.Atoi(fields[2]); err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}
	if f.dr, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}
	if f.cut, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}

	vals, err := grabValues(sc, f.nrho+2*f.nr)
	if err != nil {
		return nil, errors.NewPotentialIOError(path, err)
	}

	f.frho = shiftOne(vals[:f.nrho])
	f.zr = shiftOne(vals[f.nrho : f.nrho+f.nr])
	f.rhor = shiftOne(vals[f.nrho+f.nr:])

	return &f, nil
}

// grabValues reads exactly n floats, several to a line.
func grabValues(sc *bufio.Scanner, n int) ([]float64, error) {
	out := make([]float64, 0, n)
	for len(out) < n && sc.Scan() {
		for _, tok := range strings.Fields(sc.Text()) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	if len(out) < n {
		return nil, fmt.Errorf("expected %d table values, got %d", n, len(out))
	}
	return out[:n], nil
}

// shiftOne copies vals into a 1-based array: slot 0 is unused.
func shiftOne(vals []float64) []float64 {
	out := make([]float64, len(vals)+1)
	copy(out[1:], vals)
	return out
}

// pack flattens the file for the startup broadcast from rank 0.
func (f *funcfl) pack() []float64 {
	out := make([]float64, 0, 6+f.nrho+2*f.nr)
	out = append(out, f.mass, float64(f.nrho), f.drho, float64(f.nr), f.dr, f.cut)
	out = append(out, f.frho[1:]...)
	out = append(out, f.zr[1:]...)
	out = append(out, f.rhor[1:]...)
	return out
}

func unpackFuncfl(buf []float64) *funcfl {
	f := &funcfl{
		mass: buf[0],
		nrho: int(buf[1]),
		drho: buf[2],
		nr:   int(buf[3]),
		dr:   buf[4],
		cut:  buf[5],
	}
	rest := buf[6:]
	f.frho = shiftOne(rest[:f.nrho])
	f.zr = shiftOne(rest[f.nrho : f.nrho+f.nr])
	f.rhor = shiftOne(rest[f.nrho+f.nr : f.nrho+2*f.nr])
	return f
}
