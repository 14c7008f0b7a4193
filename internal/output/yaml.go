// Package output writes the post-run YAML report: run settings,
// physics parameters, technical knobs, thermo history and the timer
// breakdown.
package output

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// RunSettings captures the execution shape.
type RunSettings struct {
	RunID     string `yaml:"run_id"`
	Ranks     int    `yaml:"ranks"`
	Threads   int    `yaml:"threads_per_rank"`
	InputFile string `yaml:"input_file"`
	DataFile  string `yaml:"data_file"`
}

// PhysicsSettings captures what was simulated.
type PhysicsSettings struct {
	ForceStyle  string     `yaml:"force_style"`
	Units       string     `yaml:"units"`
	Epsilon     float64    `yaml:"epsilon"`
	Sigma       float64    `yaml:"sigma"`
	Atoms       int        `yaml:"atoms"`
	SystemSize  [3]float64 `yaml:"system_size"`
	UnitCells   [3]int     `yaml:"unit_cells"`
	Density     float64    `yaml:"density"`
	ForceCutoff float64    `yaml:"force_cutoff"`
	Timestep    float64    `yaml:"timestep"`
	Steps       int        `yaml:"steps"`
}

// TechnicalSettings captures the performance knobs.
type TechnicalSettings struct {
	NeighCutoff   float64 `yaml:"neigh_cutoff"`
	HalfNeigh     bool    `yaml:"half_neighbors"`
	GhostNewton   bool    `yaml:"ghost_newton"`
	NeighborBins  [3]int  `yaml:"neighbor_bins"`
	NeighEvery    int     `yaml:"reneigh_every"`
	SortEvery     int     `yaml:"sort_every"`
	ThermoEvery   int     `yaml:"thermo_every"`
	SafeExchange  bool    `yaml:"safe_exchange"`
	CheckExchange bool    `yaml:"check_exchange"`
}

// ThermoSample is one row of the thermo history.
type ThermoSample struct {
	Step        int     `yaml:"step"`
	Temperature float64 `yaml:"T"`
	Energy      float64 `yaml:"U"`
	Pressure    float64 `yaml:"P"`
	Elapsed     float64 `yaml:"time"`
}

// Timing is the per-phase wall-time breakdown.
type Timing struct {
	Total float64 `yaml:"total"`
	Force float64 `yaml:"force"`
	Neigh float64 `yaml:"neigh"`
	Comm  float64 `yaml:"comm"`
	Sort  float64 `yaml:"sort"`
	Other float64 `yaml:"other"`
}

// Performance is the one-line summary.
type Performance struct {
	AtomStepsPerSecond float64 `yaml:"atom_steps_per_second"`
	PerThread          float64 `yaml:"atom_steps_per_second_per_thread"`
}

// Report is the full document.
type Report struct {
	Run         RunSettings       `yaml:"run_settings"`
	Physics     PhysicsSettings   `yaml:"physics_settings"`
	Technical   TechnicalSettings `yaml:"technical_settings"`
	Thermo      []ThermoSample    `yaml:"thermo"`
	Timing      Timing            `yaml:"timing"`
	Performance Performance       `yaml:"performance"`
}

// Write marshals the report to path; with screen it echoes the
// document to stdout as well.
func Write(path string, r *Report, screen bool) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	if screen {
		fmt.Println(string(data))
	}
	return os.WriteFile(path, data, 0o644)
}
