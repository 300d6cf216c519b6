// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a malformed instruction
type ParseError struct {
	Statement string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid instruction %q: %s", e.Statement, e.Reason)
}

var fixedRe = regexp.MustCompile(`^fixed\s*\(\s*([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*,\s*([A-Za-z0-9_.\-]+)\s*\)$`)

// ParseCode parses a sequence of instructions such as
//
//	fixed(100,bzip2);fixed(20,hash);
//
// Each fixed(N,label) executes N work units of the workload label.
func ParseCode(code string) ([]Instruction, error) {
	var instrs []Instruction
	for _, stmt := range strings.Split(code, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		m := fixedRe.FindStringSubmatch(stmt)
		if m == nil {
			return nil, &ParseError{Statement: stmt, Reason: "expected fixed(<work>,<workload>)"}
		}
		work, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, &ParseError{Statement: stmt, Reason: fmt.Sprintf("work %q is not a number", m[1])}
		}
		if work <= 0 {
			return nil, &ParseError{Statement: stmt, Reason: "work must be > 0"}
		}
		instrs = append(instrs, Instruction{Workload: m[2], Work: work})
	}

	if len(instrs) == 0 {
		return nil, &ParseError{Statement: code, Reason: "no instructions"}
	}
	return instrs, nil
}
