// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sustainable-computing-io/rtsim/internal/service"
	"github.com/sustainable-computing-io/rtsim/internal/simulation"
)

type (
	Shutdowner = service.Shutdowner
	Reporter   = simulation.Reporter
)

// Exporter prints the snapshot of a simulation as tables
type Exporter struct {
	logger *slog.Logger
	out    io.WriteCloser
}

var (
	_ Reporter   = (*Exporter)(nil)
	_ Shutdowner = (*Exporter)(nil)
)

type Opts struct {
	logger *slog.Logger
	out    io.WriteCloser
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		out:    os.Stdout,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithOutput(out io.WriteCloser) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

func NewExporter(applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger: opts.logger.With("service", "stdout"),
		out:    opts.out,
	}
}

func (e *Exporter) Name() string {
	return "stdout"
}

// Report writes the CPU table, the task table and the energy totals
func (e *Exporter) Report(s *simulation.Snapshot) error {
	if err := writeCPUs(e.out, s.CPUs); err != nil {
		return err
	}
	if err := writeTasks(e.out, s.Tasks); err != nil {
		return err
	}
	return writeTotals(e.out, s)
}

func newTable(out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	return table
}

func writeCPUs(out io.Writer, cpus []simulation.CPU) error {
	rows := make([][]string, 0, len(cpus))
	for _, c := range cpus {
		rows = append(rows, []string{
			c.Name,
			c.Cluster,
			strconv.Itoa(c.OPP),
			strconv.FormatUint(c.Frequency, 10),
			fmt.Sprintf("%.3f", c.Voltage),
			c.AveragePower.String(),
			c.PeakPower.String(),
			c.Energy.String(),
		})
	}

	table := newTable(out)
	table.Header([]string{"CPU", "Cluster", "OPP", "Freq(MHz)", "Voltage(V)", "Avg(W)", "Peak(W)", "Energy(J)"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeTasks(out io.Writer, tasks []simulation.Task) error {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.Name,
			t.CPU,
			strconv.FormatUint(t.Activations, 10),
			strconv.FormatUint(t.Completions, 10),
			strconv.FormatUint(t.DeadlineMisses, 10),
			strconv.FormatUint(t.Aborts, 10),
			strconv.FormatUint(t.Preemptions, 10),
			strconv.FormatInt(int64(t.MaxLateness), 10),
			strconv.FormatInt(int64(t.MaxResponseTime), 10),
			fmt.Sprintf("%.2f", t.MeanResponseTime),
		})
	}

	table := newTable(out)
	table.Header([]string{"Task", "CPU", "Jobs", "Done", "Missed", "Aborted", "Preempted", "Max Late", "Max Resp", "Mean Resp"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeTotals(out io.Writer, s *simulation.Snapshot) error {
	var clusters []string
	seen := map[string]bool{}
	for _, c := range s.CPUs {
		if !seen[c.Cluster] {
			seen[c.Cluster] = true
			clusters = append(clusters, c.Cluster)
		}
	}

	rows := make([][]string, 0, len(clusters)+1)
	for _, name := range clusters {
		rows = append(rows, []string{name, s.ClusterEnergy(name).String()})
	}
	rows = append(rows, []string{"total", s.TotalEnergy().String()})

	table := newTable(out)
	table.Header([]string{"Cluster", "Energy(J)"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func (e *Exporter) Shutdown() error {
	if e.out == os.Stdout {
		return nil
	}
	return e.out.Close()
}
