package app

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/arx-os/minimd/pkg/errors"
)

// lammpsData is a parsed LAMMPS data file: the standard header plus
// the Atoms and Velocities sections. Every rank parses the file and
// keeps only the atoms that land in its sub-box; anything placed
// outside the global box is wrapped first.
type lammpsData struct {
	natoms int
	ntypes int

	xlo, xhi float64
	ylo, yhi float64
	zlo, zhi float64

	masses map[int]float64

	// id-ordered
	types []int
	pos   [][3]float64
	vel   [][3]float64
}

func readLammpsData(path string) (*lammpsData, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataFileError(path, err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	d := &lammpsData{masses: map[int]float64{}}

	// title line
	if !sc.Scan() {
		return nil, errors.NewDataFileError(path, fmt.Errorf("empty file"))
	}

	// header: keyword-suffixed lines until the first section name
	var section string
	for sc.Scan() {
		line := stripComment(sc.Text())
		if line == "" {
			continue
		}
		f := strings.Fields(line)

		switch {
		case strings.HasSuffix(line, "atoms"):
			d.natoms, err = strconv.Atoi(f[0])
		case strings.HasSuffix(line, "atom types"):
			d.ntypes, err = strconv.Atoi(f[0])
		case strings.HasSuffix(line, "xlo xhi"):
			d.xlo, d.xhi, err = parseBounds(f)
		case strings.HasSuffix(line, "ylo yhi"):
			d.ylo, d.yhi, err = parseBounds(f)
		case strings.HasSuffix(line, "zlo zhi"):
			d.zlo, d.zhi, err = parseBounds(f)
		case isSectionName(f[0]):
			section = f[0]
		}
		if err != nil {
			return nil, errors.NewDataFileError(path, err)
		}
		if section != "" {
			break
		}
	}

	if d.natoms <= 0 {
		return nil, errors.NewDataFileError(path, fmt.Errorf("no atom count in header"))
	}
	d.types = make([]int, d.natoms)
	d.pos = make([][3]float64, d.natoms)
	d.vel = make([][3]float64, d.natoms)

	for section != "" {
		next, err := d.readSection(sc, section)
		if err != nil {
			return nil, errors.NewDataFileError(path, err)
		}
		section = next
	}

	return d, nil
}

func (d *lammpsData) readSection(sc *bufio.Scanner, name string) (string, error) {
	rows := 0
	want := 0
	switch name {
	case "Masses":
		want = d.ntypes
	case "Atoms", "Velocities":
		want = d.natoms
	default:
		// unsupported section: skip to the next one
		for sc.Scan() {
			line := stripComment(sc.Text())
			if line == "" {
				continue
			}
			if f := strings.Fields(line); isSectionName(f[0]) {
				return f[0], nil
			}
		}
		return "", nil
	}

	for rows < want && sc.Scan() {
		line := stripComment(sc.Text())
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if isSectionName(f[0]) {
			return f[0], fmt.Errorf("section %s short: %d of %d rows", name, rows, want)
		}

		vals := make([]float64, len(f))
		for i, tok := range f {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return "", err
			}
			vals[i] = v
		}

		switch name {
		case "Masses":
			d.masses[int(vals[0])] = vals[1]
		case "Atoms":
			if len(vals) < 5 {
				return "", fmt.Errorf("short Atoms row")
			}
			id := int(vals[0]) - 1
			if id < 0 || id >= d.natoms {
				return "", fmt.Errorf("atom id %d out of range", id+1)
			}
			d.types[id] = int(vals[1])
			d.pos[id] = [3]float64{vals[2], vals[3], vals[4]}
		case "Velocities":
			if len(vals) < 4 {
				return "", fmt.Errorf("short Velocities row")
			}
			id := int(vals[0]) - 1
			if id < 0 || id >= d.natoms {
				return "", fmt.Errorf("atom id %d out of range", id+1)
			}
			d.vel[id] = [3]float64{vals[1], vals[2], vals[3]}
		}
		rows++
	}

	// scan ahead for the next section name
	for sc.Scan() {
		line := stripComment(sc.Text())
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if isSectionName(f[0]) {
			return f[0], nil
		}
		return "", fmt.Errorf("unexpected line after section %s: %q", name, line)
	}
	return "", nil
}

func parseBounds(f []string) (float64, float64, error) {
	if len(f) < 2 {
		return 0, 0, fmt.Errorf("short bounds line")
	}
	lo, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, 0, err
	}
	hi, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func isSectionName(tok string) bool {
	switch tok {
	case "Masses", "Atoms", "Velocities", "Bonds", "Angles", "Dihedrals", "Impropers":
		return true
	}
	return false
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
