// miniMD-go - parallel short-range molecular dynamics benchmark
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arx-os/minimd/internal/app"
	"github.com/arx-os/minimd/internal/config"
	"github.com/arx-os/minimd/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	opts := config.Defaults()
	var halfNeigh, ghostNewton int
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "minimd",
		Short: "Parallel short-range molecular dynamics benchmark",
		Long: `miniMD-go advances a system of point particles under Lennard-Jones
or EAM interatomic potentials, using spatial decomposition across ranks
and neighbor-list acceleration of the force evaluation.

The run is defined by a line-oriented input file (default in.lj.miniMD);
command-line flags override individual settings. A LAMMPS data file can
supply the initial configuration instead of the built-in FCC lattice.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logger.Debug)
			}
			opts.HalfNeigh = halfNeigh != 0
			opts.GhostNewton = ghostNewton != 0
			return app.Run(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.InputFile, "input_file", "i", opts.InputFile, "simulation input file")
	flags.StringVarP(&opts.DataFile, "data_file", "f", "", "read configuration from LAMMPS data file")
	flags.IntVar(&opts.NumProcs, "num_procs", opts.NumProcs, "number of ranks (spatial decomposition)")
	flags.IntVarP(&opts.NumThreads, "num_threads", "t", opts.NumThreads, "worker threads per rank")
	flags.IntVarP(&opts.NumSteps, "nsteps", "n", opts.NumSteps, "number of timesteps")
	flags.IntVarP(&opts.SystemSize, "size", "s", opts.SystemSize, "linear dimension of the system box in unit cells")
	flags.IntVar(&opts.Nx, "nx", opts.Nx, "unit cells in x")
	flags.IntVar(&opts.Ny, "ny", opts.Ny, "unit cells in y")
	flags.IntVar(&opts.Nz, "nz", opts.Nz, "unit cells in z")
	flags.IntVarP(&opts.NeighborSize, "neigh_bins", "b", opts.NeighborSize, "linear dimension of the neighbor bin grid")
	flags.StringVarP(&opts.UnitsSet, "units", "u", "", "unit system (lj or metal)")
	flags.StringVarP(&opts.ForceSet, "force", "p", "", "interaction model (lj or eam)")
	flags.IntVar(&halfNeigh, "half_neigh", 0, "use half neighbor lists (0 full, 1 half)")
	flags.IntVar(&ghostNewton, "ghost_newton", 1, "apply Newton's third law across ghost atoms (half lists only)")
	flags.BoolVar(&opts.CheckExchange, "check_exchange", false, "warn when an atom moves further than one sub-box")
	flags.BoolVar(&opts.SafeExchange, "safe_exchange", false, "route migrating atoms to their owner regardless of distance")
	flags.IntVar(&opts.SortEvery, "sort", -1, "resort atoms into bin order every N steps (default: reneigh frequency, 0 never)")
	flags.IntVarP(&opts.YamlOutput, "yaml_output", "o", 0, "level of yaml output")
	flags.BoolVar(&opts.YamlScreen, "yaml_screen", false, "echo yaml output to the screen")
	flags.StringVar(&opts.YamlFile, "yaml_file", opts.YamlFile, "yaml report path")
	flags.StringVar(&opts.PotentialFile, "potential_file", opts.PotentialFile, "EAM funcfl potential file")
	flags.StringVar(&opts.MetricsAddr, "metrics_addr", "", "serve Prometheus metrics on this address during the run")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "minimd: %v\n", err)
		os.Exit(1)
	}
}
