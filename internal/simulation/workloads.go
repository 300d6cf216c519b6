// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/sustainable-computing-io/rtsim/config"
)

// workloadRow is one line of a coefficients file:
//
//	workload,p0,p1,p2,p3,c0,c1,c2,c3
type workloadRow struct {
	Workload string  `csv:"workload"`
	P0       float64 `csv:"p0"`
	P1       float64 `csv:"p1,omitempty"`
	P2       float64 `csv:"p2,omitempty"`
	P3       float64 `csv:"p3,omitempty"`
	C0       float64 `csv:"c0"`
	C1       float64 `csv:"c1,omitempty"`
	C2       float64 `csv:"c2,omitempty"`
	C3       float64 `csv:"c3,omitempty"`
}

func (r workloadRow) coefficients() config.Coefficients {
	return config.Coefficients{
		Power:       []float64{r.P0, r.P1, r.P2, r.P3},
		Computation: []float64{r.C0, r.C1, r.C2, r.C3},
	}
}

// readWorkloads parses a coefficients file. Later rows win over earlier rows
// with the same label.
func readWorkloads(r io.Reader) (map[string]config.Coefficients, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	workloads := map[string]config.Coefficients{}
	for line := 2; ; line++ {
		var row workloadRow
		if err := dec.Decode(&row); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		label := strings.TrimSpace(row.Workload)
		if label == "" {
			return nil, fmt.Errorf("line %d: workload label cannot be empty", line)
		}
		workloads[label] = row.coefficients()
	}
	return workloads, nil
}

func loadWorkloads(path string) (map[string]config.Coefficients, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	workloads, err := readWorkloads(f)
	if err != nil {
		return nil, fmt.Errorf("workloads file %s: %w", path, err)
	}
	return workloads, nil
}
