// Package app wires a run together: it loads and validates the
// configuration, builds the per-rank component graph, spawns one
// goroutine per rank, and emits the summary, YAML report and metrics.
package app

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arx-os/minimd/internal/atom"
	"github.com/arx-os/minimd/internal/comm"
	"github.com/arx-os/minimd/internal/config"
	"github.com/arx-os/minimd/internal/force"
	"github.com/arx-os/minimd/internal/integrate"
	"github.com/arx-os/minimd/internal/logger"
	"github.com/arx-os/minimd/internal/metrics"
	"github.com/arx-os/minimd/internal/neighbor"
	"github.com/arx-os/minimd/internal/output"
	"github.com/arx-os/minimd/internal/thermo"
	"github.com/arx-os/minimd/internal/timer"
)

const variant = "miniMD-go 1.0"

// Run executes one complete simulation under the merged options.
func Run(opts config.Options) error {
	in, err := config.LoadInput(opts.InputFile)
	if err != nil {
		return err
	}
	opts.Merge(in)
	if err := config.Validate(&opts, in); err != nil {
		return err
	}

	if in.ForceType == config.ForceEAM && opts.GhostNewton {
		fmt.Println("# EAM currently requires '--ghost_newton 0'; changing setting now.")
		opts.GhostNewton = false
	}

	runID := uuid.NewString()
	var col *metrics.Collector
	if opts.MetricsAddr != "" {
		col = metrics.New(runID)
		col.Serve(opts.MetricsAddr)
	}

	world := comm.NewWorld(opts.NumProcs)
	var report *output.Report

	var g errgroup.Group
	for rank := 0; rank < opts.NumProcs; rank++ {
		r := rank
		g.Go(func() error {
			rep, err := runRank(r, world, opts, *in, runID, col)
			if r == 0 {
				report = rep
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.YamlOutput > 0 && report != nil {
		if err := output.Write(opts.YamlFile, report, opts.YamlScreen); err != nil {
			logger.Errorf("yaml report: %v", err)
			return err
		}
	}
	return nil
}

// runRank is the SPMD body executed by every rank.
func runRank(rank int, world *comm.World, opts config.Options, in config.In,
	runID string, col *metrics.Collector) (*output.Report, error) {

	p := world.Proc(rank)
	me := rank

	a := atom.New(3)
	cm := comm.NewComm(p)
	cm.CheckExchange = opts.CheckExchange
	cm.SafeExchange = opts.SafeExchange

	nl := neighbor.New(in.NeighCut, in.NeighEvery)
	nl.HalfNeigh = opts.HalfNeigh
	nl.GhostNewton = opts.GhostNewton
	if opts.NeighborSize > 0 {
		nl.Nbinx = opts.NeighborSize
		nl.Nbiny = opts.NeighborSize
		nl.Nbinz = opts.NeighborSize
	} else if in.DataFile == "" {
		// scale the bin grid with the lattice
		nl.Nbinx = 5 * in.Nx / 6
		nl.Nbiny = 5 * in.Ny / 6
		nl.Nbinz = 5 * in.Nz / 6
	}

	var f force.Force
	if in.ForceType == config.ForceEAM {
		f = force.NewEAM(opts.PotentialFile, p, opts.NumThreads)
	} else {
		f = force.NewLJ(in.Epsilon, in.Sigma, in.ForceCut, opts.NumThreads)
	}

	th := thermo.New(p, in.ThermoStat, in.Ntimes)
	it := &integrate.Integrate{
		Ntimes:    in.Ntimes,
		Dt:        in.Dt,
		SortEvery: opts.SortEvery,
		Skin:      in.NeighCut - in.ForceCut,
	}
	tm := timer.New()

	units := thermo.UnitsLJ
	if in.Units == config.UnitsMetal {
		units = thermo.UnitsMetal
	}

	if me == 0 {
		fmt.Println("# Create System:")
	}

	if in.DataFile != "" {
		d, err := readLammpsData(in.DataFile)
		if err != nil {
			return nil, err
		}
		a.Box.Xprd = d.xhi - d.xlo
		a.Box.Yprd = d.yhi - d.ylo
		a.Box.Zprd = d.zhi - d.zlo
		a.Natoms = d.natoms
		if m, ok := d.masses[1]; ok {
			a.Mass = m
		}
		if err := cm.Setup(in.NeighCut, a); err != nil {
			return nil, err
		}
		nl.Setup(a)
		if err := f.Setup(a); err != nil {
			return nil, err
		}
		if in.ForceType == config.ForceEAM {
			a.Mass = f.Mass()
		}
		// claim the atoms that land in my sub-box, wrapping strays
		for i := 0; i < d.natoms; i++ {
			x := wrapInto(d.pos[i][0]-d.xlo, a.Box.Xprd)
			y := wrapInto(d.pos[i][1]-d.ylo, a.Box.Yprd)
			z := wrapInto(d.pos[i][2]-d.zlo, a.Box.Zprd)
			if x >= a.Box.Xlo && x < a.Box.Xhi &&
				y >= a.Box.Ylo && y < a.Box.Yhi &&
				z >= a.Box.Zlo && z < a.Box.Zhi {
				a.AddAtom(x, y, z, d.vel[i][0], d.vel[i][1], d.vel[i][2])
				a.Type[a.Nlocal-1] = d.types[i]
			}
		}
		in.Rho = float64(a.Natoms) / a.Box.Volume()
		th.Setup(a, units)
	} else {
		createBox(a, &in)
		if err := cm.Setup(in.NeighCut, a); err != nil {
			return nil, err
		}
		nl.Setup(a)
		if err := f.Setup(a); err != nil {
			return nil, err
		}
		if in.ForceType == config.ForceEAM {
			a.Mass = f.Mass()
		}
		createAtoms(a, &in)
		th.Setup(a, units)
		createVelocity(in.TRequest, a, th, p)
	}

	it.Setup(a)

	if col != nil {
		th.OnSample = func(s thermo.Sample) {
			if me == 0 {
				col.ObserveThermo(s.Temperature, s.Energy, s.Pressure)
			}
		}
		if me == 0 {
			it.StepHook = func(step int) { col.StepDone() }
			col.SetAtoms(a.Natoms)
		}
	}

	if me == 0 {
		fmt.Println("# Done ....")
		printBanner(&opts, &in, a, nl, cm)
	}

	// initial halo, list and forces
	cm.Exchange(a)
	cm.Borders(a)
	nl.Build(a)
	f.SetEVFlag(true)
	f.Compute(a, nl, cm)
	if nl.HalfNeigh && nl.GhostNewton {
		cm.Reverse(a)
	}

	if me == 0 {
		fmt.Println("# Starting dynamics ...")
		fmt.Println("# Timestep T U P Time")
	}
	th.Compute(0, a, f)

	p.Barrier()
	stopTotal := tm.Start(timer.Total)
	it.Run(a, f, nl, cm, th, tm, p)
	p.Barrier()
	stopTotal()

	natoms := p.AllreduceSumInt(a.Nlocal)

	f.SetEVFlag(true)
	f.Compute(a, nl, cm)
	if nl.HalfNeigh && nl.GhostNewton {
		cm.Reverse(a)
	}
	th.Compute(-1, a, f)

	if col != nil && me == 0 {
		for _, k := range []timer.Key{timer.Total, timer.Force, timer.Neigh, timer.Comm, timer.Sort} {
			col.SetPhaseSeconds(k.String(), tm.Seconds(k))
		}
	}

	if me != 0 {
		return nil, nil
	}

	total := tm.Seconds(timer.Total)
	perf := 0.0
	if total > 0 {
		perf = float64(natoms) * float64(in.Ntimes) / total
	}
	fmt.Println()
	fmt.Println("# Performance Summary:")
	fmt.Println("# ranks threads nsteps natoms t_total t_force t_neigh t_comm t_other performance perf/thread")
	fmt.Printf("%d %d %d %d %f %f %f %f %f %f %f\n\n",
		opts.NumProcs, opts.NumThreads, in.Ntimes, natoms,
		total, tm.Seconds(timer.Force), tm.Seconds(timer.Neigh), tm.Seconds(timer.Comm), tm.Other(),
		perf, perf/float64(opts.NumProcs*opts.NumThreads))

	return buildReport(runID, &opts, &in, a, nl, th, tm, natoms, perf), nil
}

func wrapInto(x, prd float64) float64 {
	for x < 0 {
		x += prd
	}
	for x >= prd {
		x -= prd
	}
	return x
}

func printBanner(opts *config.Options, in *config.In, a *atom.Atom,
	nl *neighbor.Neighbor, cm *comm.Comm) {

	fmt.Printf("# %s output ...\n", variant)
	fmt.Println("# Run Settings:")
	fmt.Printf("\t# Ranks: %d\n", opts.NumProcs)
	fmt.Printf("\t# Threads per rank: %d\n", opts.NumThreads)
	fmt.Printf("\t# Inputfile: %s\n", opts.InputFile)
	fmt.Printf("\t# Datafile: %s\n", orNone(in.DataFile))
	fmt.Println("# Physics Settings:")
	fmt.Printf("\t# ForceStyle: %s\n", in.ForceType)
	fmt.Printf("\t# Force Parameters: %2.2f %2.2f\n", in.Epsilon, in.Sigma)
	fmt.Printf("\t# Units: %s\n", in.Units)
	fmt.Printf("\t# Atoms: %d\n", a.Natoms)
	fmt.Printf("\t# System size: %2.2f %2.2f %2.2f (unit cells: %d %d %d)\n",
		a.Box.Xprd, a.Box.Yprd, a.Box.Zprd, in.Nx, in.Ny, in.Nz)
	fmt.Printf("\t# Density: %f\n", in.Rho)
	fmt.Printf("\t# Force cutoff: %f\n", in.ForceCut)
	fmt.Printf("\t# Timestep size: %f\n", in.Dt)
	fmt.Println("# Technical Settings:")
	fmt.Printf("\t# Neigh cutoff: %f\n", in.NeighCut)
	fmt.Printf("\t# Half neighborlists: %v\n", opts.HalfNeigh)
	fmt.Printf("\t# Neighbor bins: %d %d %d\n", nl.Nbinx, nl.Nbiny, nl.Nbinz)
	fmt.Printf("\t# Neighbor frequency: %d\n", in.NeighEvery)
	fmt.Printf("\t# Sorting frequency: %d\n", opts.SortEvery)
	fmt.Printf("\t# Thermo frequency: %d\n", in.ThermoStat)
	fmt.Printf("\t# Ghost Newton: %v\n", opts.GhostNewton)
	fmt.Printf("\t# Do safe exchange: %v\n", opts.SafeExchange)
	fmt.Printf("\t# Process grid: %d %d %d\n", cm.Procgrid()[0], cm.Procgrid()[1], cm.Procgrid()[2])
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func buildReport(runID string, opts *config.Options, in *config.In, a *atom.Atom,
	nl *neighbor.Neighbor, th *thermo.Thermo, tm *timer.Timer,
	natoms int, perf float64) *output.Report {

	r := &output.Report{
		Run: output.RunSettings{
			RunID:     runID,
			Ranks:     opts.NumProcs,
			Threads:   opts.NumThreads,
			InputFile: opts.InputFile,
			DataFile:  orNone(in.DataFile),
		},
		Physics: output.PhysicsSettings{
			ForceStyle:  in.ForceType.String(),
			Units:       in.Units.String(),
			Epsilon:     in.Epsilon,
			Sigma:       in.Sigma,
			Atoms:       natoms,
			SystemSize:  [3]float64{a.Box.Xprd, a.Box.Yprd, a.Box.Zprd},
			UnitCells:   [3]int{in.Nx, in.Ny, in.Nz},
			Density:     in.Rho,
			ForceCutoff: in.ForceCut,
			Timestep:    in.Dt,
			Steps:       in.Ntimes,
		},
		Technical: output.TechnicalSettings{
			NeighCutoff:   in.NeighCut,
			HalfNeigh:     opts.HalfNeigh,
			GhostNewton:   opts.GhostNewton,
			NeighborBins:  [3]int{nl.Nbinx, nl.Nbiny, nl.Nbinz},
			NeighEvery:    in.NeighEvery,
			SortEvery:     opts.SortEvery,
			ThermoEvery:   in.ThermoStat,
			SafeExchange:  opts.SafeExchange,
			CheckExchange: opts.CheckExchange,
		},
		Timing: output.Timing{
			Total: tm.Seconds(timer.Total),
			Force: tm.Seconds(timer.Force),
			Neigh: tm.Seconds(timer.Neigh),
			Comm:  tm.Seconds(timer.Comm),
			Sort:  tm.Seconds(timer.Sort),
			Other: tm.Other(),
		},
		Performance: output.Performance{
			AtomStepsPerSecond: perf,
			PerThread:          perf / float64(opts.NumProcs*opts.NumThreads),
		},
	}
	for _, s := range th.History {
		r.Thermo = append(r.Thermo, output.ThermoSample{
			Step: s.Step, Temperature: s.Temperature, Energy: s.Energy,
			Pressure: s.Pressure, Elapsed: s.Elapsed,
		})
	}
	return r
}
