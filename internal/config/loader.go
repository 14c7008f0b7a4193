package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/arx-os/minimd/pkg/errors"
)

// LoadInput parses the fixed-order, line-oriented input file:
//
//	line 1: comment
//	line 2: blank
//	units (lj or metal)
//	data file (none or path)
//	force style (lj or eam)
//	epsilon sigma
//	nx ny nz
//	timesteps
//	timestep size
//	initial temperature
//	density
//	reneighboring cadence
//	force cutoff and neighbor skin
//	thermo cadence
func LoadInput(path string) (*In, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInputFileError(path, err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	lineno := 0
	next := func() (string, error) {
		for sc.Scan() {
			lineno++
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				return line, nil
			}
		}
		return "", fmt.Errorf("unexpected end of file")
	}

	in := &In{Epsilon: 1.0, Sigma: 1.0}

	// comment header
	if !sc.Scan() {
		return nil, errors.NewInputParseError(path, 1, fmt.Errorf("empty file"))
	}
	lineno++

	line, err := next()
	if err != nil {
		return nil, errors.NewInputParseError(path, lineno, err)
	}
	if strings.HasPrefix(line, "metal") {
		in.Units = UnitsMetal
	} else {
		in.Units = UnitsLJ
	}

	if line, err = next(); err != nil {
		return nil, errors.NewInputParseError(path, lineno, err)
	}
	if name := firstField(line); name != "none" {
		in.DataFile = name
	}

	if line, err = next(); err != nil {
		return nil, errors.NewInputParseError(path, lineno, err)
	}
	if strings.HasPrefix(line, "eam") {
		in.ForceType = ForceEAM
	} else {
		in.ForceType = ForceLJ
	}

	if err = scanFloats(path, &lineno, next, &in.Epsilon, &in.Sigma); err != nil {
		return nil, err
	}
	if err = scanInts(path, &lineno, next, &in.Nx, &in.Ny, &in.Nz); err != nil {
		return nil, err
	}
	if err = scanInts(path, &lineno, next, &in.Ntimes); err != nil {
		return nil, err
	}
	if err = scanFloats(path, &lineno, next, &in.Dt); err != nil {
		return nil, err
	}
	if err = scanFloats(path, &lineno, next, &in.TRequest); err != nil {
		return nil, err
	}
	if err = scanFloats(path, &lineno, next, &in.Rho); err != nil {
		return nil, err
	}
	if err = scanInts(path, &lineno, next, &in.NeighEvery); err != nil {
		return nil, err
	}
	var skin float64
	if err = scanFloats(path, &lineno, next, &in.ForceCut, &skin); err != nil {
		return nil, err
	}
	in.NeighCut = in.ForceCut + skin
	if err = scanInts(path, &lineno, next, &in.ThermoStat); err != nil {
		return nil, err
	}

	return in, nil
}

func firstField(line string) string {
	f := strings.Fields(line)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

type nextFunc func() (string, error)

func scanFloats(path string, lineno *int, next nextFunc, dst ...*float64) error {
	line, err := next()
	if err != nil {
		return errors.NewInputParseError(path, *lineno, err)
	}
	f := strings.Fields(line)
	if len(f) < len(dst) {
		return errors.NewInputParseError(path, *lineno, fmt.Errorf("expected %d values", len(dst)))
	}
	for i, d := range dst {
		v, err := strconv.ParseFloat(f[i], 64)
		if err != nil {
			return errors.NewInputParseError(path, *lineno, err)
		}
		*d = v
	}
	return nil
}

func scanInts(path string, lineno *int, next nextFunc, dst ...*int) error {
	line, err := next()
	if err != nil {
		return errors.NewInputParseError(path, *lineno, err)
	}
	f := strings.Fields(line)
	if len(f) < len(dst) {
		return errors.NewInputParseError(path, *lineno, fmt.Errorf("expected %d values", len(dst)))
	}
	for i, d := range dst {
		v, err := strconv.Atoi(f[i])
		if err != nil {
			return errors.NewInputParseError(path, *lineno, err)
		}
		*d = v
	}
	return nil
}
