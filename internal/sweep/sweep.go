// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package sweep

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/logger"
	"github.com/sustainable-computing-io/rtsim/internal/service"
	"github.com/sustainable-computing-io/rtsim/internal/simulation"
	"golang.org/x/sync/errgroup"
)

// Point is one pair of operating points, one per cluster
type Point struct {
	Little int
	Big    int
}

// Result is one row of the sweep output
type Result struct {
	LittleOPP       int     `csv:"little_opp"`
	BigOPP          int     `csv:"big_opp"`
	LittleFrequency uint64  `csv:"little_mhz"`
	BigFrequency    uint64  `csv:"big_mhz"`
	Workload        string  `csv:"workload"`
	LittleEnergy    float64 `csv:"little_energy_j"`
	BigEnergy       float64 `csv:"big_energy_j"`
	TotalEnergy     float64 `csv:"total_energy_j"`
	Completions     uint64  `csv:"completions"`
	DeadlineMisses  uint64  `csv:"deadline_misses"`
	Aborts          uint64  `csv:"aborts"`
}

// Runner simulates every operating point pair of the LITTLE and big clusters
// in independent simulations and writes one CSV row per pair
type Runner struct {
	logger  *slog.Logger
	cfg     *config.Config
	out     io.WriteCloser
	workers int
}

var (
	_ service.Runner     = (*Runner)(nil)
	_ service.Shutdowner = (*Runner)(nil)
)

// NewRunner creates a Runner for cfg, which must hold a LITTLE and a big cluster
func NewRunner(cfg *config.Config, applyOpts ...OptionFn) *Runner {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Runner{
		logger:  opts.logger.With("service", "sweep"),
		cfg:     cfg,
		out:     opts.out,
		workers: opts.workers,
	}
}

func (r *Runner) Name() string {
	return "sweep"
}

// Points returns the pairs to simulate ordered by LITTLE then big operating
// point. Each cluster sweeps its configured subset or its whole table.
func (r *Runner) Points() []Point {
	little := sweepRange(r.cfg.Sweep.Little, r.cfg.Cluster(config.LittleCluster))
	big := sweepRange(r.cfg.Sweep.Big, r.cfg.Cluster(config.BigCluster))

	points := make([]Point, 0, len(little)*len(big))
	for _, l := range little {
		for _, b := range big {
			points = append(points, Point{Little: l, Big: b})
		}
	}
	return points
}

func sweepRange(subset []int, cl *config.Cluster) []int {
	if len(subset) > 0 {
		return subset
	}
	if cl == nil {
		return nil
	}
	all := make([]int, len(cl.OperatingPoints))
	for i := range all {
		all[i] = i
	}
	return all
}

// Run simulates every point and writes the results. Returning ends the
// service group.
func (r *Runner) Run(ctx context.Context) error {
	results, err := r.Sweep(ctx)
	if err != nil {
		return err
	}
	return WriteResults(r.out, results)
}

// Sweep simulates every point with at most workers simulations at a time.
// Results follow the order of Points whatever the completion order.
func (r *Runner) Sweep(ctx context.Context) ([]Result, error) {
	if r.cfg.Cluster(config.LittleCluster) == nil || r.cfg.Cluster(config.BigCluster) == nil {
		return nil, fmt.Errorf("sweep requires a %s and a %s cluster", config.LittleCluster, config.BigCluster)
	}

	points := r.Points()
	results := make([]Result, len(points))
	r.logger.Info("sweep started", "points", len(points), "workers", r.workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, pt := range points {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.simulate(pt)
			if err != nil {
				return fmt.Errorf("little opp %d, big opp %d: %w", pt.Little, pt.Big, err)
			}
			results[i] = res
			r.logger.Debug("point simulated", "little", pt.Little, "big", pt.Big, "energy", res.TotalEnergy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("sweep completed", "points", len(points))
	return results, nil
}

func (r *Runner) simulate(pt Point) (Result, error) {
	cfg := r.cfg.Clone()
	cfg.Trace.OutputDir = ""
	little := cfg.Cluster(config.LittleCluster)
	big := cfg.Cluster(config.BigCluster)
	little.OPP = pt.Little
	big.OPP = pt.Big

	// points are simulated concurrently; their logs would interleave
	p, err := simulation.Build(cfg, logger.Discard())
	if err != nil {
		return Result{}, err
	}
	snapshot, err := p.Run()
	if err != nil {
		return Result{}, err
	}

	res := Result{
		LittleOPP:       pt.Little,
		BigOPP:          pt.Big,
		LittleFrequency: little.OperatingPoints[pt.Little].Frequency,
		BigFrequency:    big.OperatingPoints[pt.Big].Frequency,
		Workload:        cfg.Simulation.Workload,
		LittleEnergy:    snapshot.ClusterEnergy(little.Name).Joules(),
		BigEnergy:       snapshot.ClusterEnergy(big.Name).Joules(),
		TotalEnergy:     snapshot.TotalEnergy().Joules(),
		DeadlineMisses:  snapshot.DeadlineMisses(),
	}
	for _, t := range snapshot.Tasks {
		res.Completions += t.Completions
		res.Aborts += t.Aborts
	}
	return res, nil
}

// WriteResults writes results as CSV with a header row
func WriteResults(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(Result{}); err != nil {
		return err
	}
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *Runner) Shutdown() error {
	if r.out == os.Stdout {
		return nil
	}
	return r.out.Close()
}
