package cpustat

import (
	"strings"
)

// Snapshot is the ordered set of per-core counters captured from one dump.
// Index i refers to the same core in every snapshot of the same source.
type Snapshot []Times

// isCoreLine reports whether line carries a per-core record. The aggregate
// "cpu " line and every non-cpu line are rejected.
func isCoreLine(line string) bool {
	if !strings.HasPrefix(line, "cpu") {
		return false
	}
	label, _, _ := strings.Cut(line, " ")
	return label != "cpu"
}

// ParseSnapshot parses a full /proc/stat dump into one Times per core, in file
// order. The first malformed core line aborts the parse. A dump without any
// per-core line yields ErrNoCores.
func ParseSnapshot(text string) (Snapshot, error) {
	var snap Snapshot
	for i, line := range strings.Split(text, "\n") {
		if !isCoreLine(line) {
			continue
		}
		t, err := ParseLine(line)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Err: err}
		}
		snap = append(snap, t)
	}
	if len(snap) == 0 {
		return nil, ErrNoCores
	}
	return snap, nil
}

// clone returns a copy of s that shares no backing array with it.
func (s Snapshot) clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
