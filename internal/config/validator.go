package config

import (
	"fmt"

	"github.com/arx-os/minimd/pkg/errors"
)

// Validate checks the merged run definition before any component is
// built. Input errors abort the run with a non-zero exit; nothing here
// is recoverable.
func Validate(o *Options, in *In) error {
	if o.NumProcs < 1 {
		return errors.NewInvalidOptionError("--num_procs", o.NumProcs)
	}
	if o.NumThreads < 1 {
		return errors.NewInvalidOptionError("--num_threads", o.NumThreads)
	}
	if in.Ntimes < 0 {
		return errors.NewInvalidOptionError("--nsteps", in.Ntimes)
	}
	if in.DataFile == "" {
		if in.Nx <= 0 || in.Ny <= 0 || in.Nz <= 0 {
			return errors.NewInvalidOptionError("--size", fmt.Sprintf("%d %d %d", in.Nx, in.Ny, in.Nz))
		}
		if in.Rho <= 0 {
			return errors.NewInvalidOptionError("density", in.Rho)
		}
	}
	if in.Dt <= 0 {
		return errors.NewInvalidOptionError("timestep", in.Dt)
	}
	if in.ForceCut <= 0 || in.NeighCut < in.ForceCut {
		return errors.NewInvalidOptionError("cutoff", fmt.Sprintf("%g %g", in.ForceCut, in.NeighCut))
	}
	if in.NeighEvery <= 0 {
		return errors.NewInvalidOptionError("reneighboring cadence", in.NeighEvery)
	}
	if o.YamlOutput < 0 {
		return errors.NewInvalidOptionError("--yaml_output", o.YamlOutput)
	}
	return nil
}
