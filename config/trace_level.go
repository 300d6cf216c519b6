// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// TraceLevel selects the task events written by the text and JSON tracers
type TraceLevel uint32

const (
	TraceArrival TraceLevel = 1 << iota // 1
	TraceDispatch                       // 2
	TracePreempt                        // 4
	TraceDeadlineMiss                   // 8
	TraceEnd                            // 16
	TraceAbort                          // 32

	// TraceLevelAll enables every event kind
	TraceLevelAll = TraceArrival | TraceDispatch | TracePreempt | TraceDeadlineMiss | TraceEnd | TraceAbort
)

var traceLevelNames = []struct {
	level TraceLevel
	name  string
}{
	{TraceArrival, "arrival"},
	{TraceDispatch, "dispatch"},
	{TracePreempt, "preempt"},
	{TraceDeadlineMiss, "deadline-miss"},
	{TraceEnd, "end"},
	{TraceAbort, "abort"},
}

func (l TraceLevel) names() []string {
	var names []string
	for _, n := range traceLevelNames {
		if l&n.level != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

// String returns the enabled event kinds separated by commas
func (l TraceLevel) String() string {
	return strings.Join(l.names(), ",")
}

// Enabled reports whether the event kind with the given name is traced
func (l TraceLevel) Enabled(name string) bool {
	for _, n := range traceLevelNames {
		if n.name == name {
			return l&n.level != 0
		}
	}
	return false
}

// ParseTraceLevel parses event kind names into a TraceLevel. An empty list
// enables everything.
func ParseTraceLevel(levels []string) (TraceLevel, error) {
	if len(levels) == 0 {
		return TraceLevelAll, nil
	}

	var result TraceLevel
	for _, level := range levels {
		name := strings.ToLower(strings.TrimSpace(level))
		if name == "all" {
			result |= TraceLevelAll
			continue
		}
		found := false
		for _, n := range traceLevelNames {
			if n.name == name {
				result |= n.level
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown trace level: %s", level)
		}
	}
	return result, nil
}

// ValidTraceLevels returns the accepted event kind names
func ValidTraceLevels() []string {
	return TraceLevelAll.names()
}

// MarshalYAML implements yaml.Marshaler interface
func (l TraceLevel) MarshalYAML() (interface{}, error) {
	levels := l.names()
	if len(levels) == 1 {
		return levels[0], nil
	}
	return levels, nil
}

// UnmarshalYAML implements yaml.Unmarshaler interface
func (l *TraceLevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		parsed, parseErr := ParseTraceLevel([]string{single})
		if parseErr != nil {
			return parseErr
		}
		*l = parsed
		return nil
	}

	var multiple []string
	if err := unmarshal(&multiple); err == nil {
		parsed, parseErr := ParseTraceLevel(multiple)
		if parseErr != nil {
			return parseErr
		}
		*l = parsed
		return nil
	}

	return fmt.Errorf("cannot unmarshal trace level: must be a string or array of strings")
}

// TraceLevelValue is a kingpin.Value accumulating repeated --trace.level flags
type TraceLevelValue struct {
	level *TraceLevel
	set   bool
}

// NewTraceLevelValue creates a new TraceLevelValue with the given target
func NewTraceLevelValue(target *TraceLevel) *TraceLevelValue {
	return &TraceLevelValue{level: target}
}

// Set implements kingpin.Value interface
func (v *TraceLevelValue) Set(value string) error {
	level, err := ParseTraceLevel([]string{value})
	if err != nil {
		return err
	}

	// the first explicit value replaces the default
	if !v.set {
		*v.level = 0
		v.set = true
	}
	*v.level |= level
	return nil
}

// String implements kingpin.Value interface
func (v *TraceLevelValue) String() string {
	return v.level.String()
}

// IsCumulative implements kingpin.Value interface
func (v *TraceLevelValue) IsCumulative() bool {
	return true
}
