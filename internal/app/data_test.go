package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleData = `LAMMPS data file for fcc copper

4 atoms
1 atom types

0.0 7.23 xlo xhi
0.0 7.23 ylo yhi
0.0 7.23 zlo zhi

Masses

1 63.55

Atoms

1 1 0.0 0.0 0.0
2 1 1.8075 1.8075 0.0
3 1 1.8075 0.0 1.8075
4 1 0.0 1.8075 1.8075

Velocities

1 0.1 0.0 0.0
2 0.0 0.2 0.0
3 0.0 0.0 0.3
4 -0.1 -0.2 -0.3
`

func writeData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.data")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadLammpsData(t *testing.T) {
	d, err := readLammpsData(writeData(t, sampleData))
	require.NoError(t, err)

	assert.Equal(t, 4, d.natoms)
	assert.Equal(t, 1, d.ntypes)
	assert.Equal(t, 7.23, d.xhi)
	assert.Equal(t, 63.55, d.masses[1])
	assert.Equal(t, [3]float64{1.8075, 1.8075, 0.0}, d.pos[1])
	assert.Equal(t, [3]float64{-0.1, -0.2, -0.3}, d.vel[3])
	assert.Equal(t, 1, d.types[2])
}

func TestReadLammpsDataMissingFile(t *testing.T) {
	_, err := readLammpsData("no-such-file.data")
	assert.Error(t, err)
}

func TestReadLammpsDataShortAtomsSection(t *testing.T) {
	broken := `broken

2 atoms
1 atom types

0.0 5.0 xlo xhi
0.0 5.0 ylo yhi
0.0 5.0 zlo zhi

Atoms

1 1 1.0 1.0 1.0

Velocities

1 0.0 0.0 0.0
2 0.0 0.0 0.0
`
	_, err := readLammpsData(writeData(t, broken))
	assert.Error(t, err)
}
