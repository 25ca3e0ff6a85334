package cpustat

import (
	"context"
	"iter"
)

// Source supplies the full text of a counter dump.
type Source interface {
	ReadStat(ctx context.Context) (string, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (string, error)

// ReadStat calls f(ctx).
func (f SourceFunc) ReadStat(ctx context.Context) (string, error) {
	return f(ctx)
}

// Tracker keeps the two most recent snapshots of a Source and derives
// utilization from their difference.
//
// A Tracker is not safe for concurrent use. Callers that share one across
// goroutines must serialize Update and every query.
type Tracker struct {
	source   Source
	current  Snapshot
	previous Snapshot
}

// NewTracker reads src twice back to back so that loads can be queried
// immediately. Both loads are close to zero until the first Update.
func NewTracker(ctx context.Context, src Source) (*Tracker, error) {
	t := &Tracker{source: src}

	previous, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	current, err := t.read(ctx)
	if err != nil {
		return nil, err
	}

	t.previous = previous
	t.current = current
	return t, nil
}

// read fetches and parses one snapshot from the source.
func (t *Tracker) read(ctx context.Context) (Snapshot, error) {
	text, err := t.source.ReadStat(ctx)
	if err != nil {
		return nil, &SourceError{Err: err}
	}
	return ParseSnapshot(text)
}

// Update takes a fresh snapshot. The old current snapshot becomes the
// previous one. On error the tracker keeps its prior state.
func (t *Tracker) Update(ctx context.Context) error {
	fresh, err := t.read(ctx)
	if err != nil {
		return err
	}
	t.previous, t.current = t.current, fresh
	return nil
}

// CoreCount returns the number of cores in the current snapshot.
func (t *Tracker) CoreCount() int {
	return len(t.current)
}

// CoreLoad returns the utilization of core i between the previous and the
// current snapshot, as a percentage in [0, 100].
func (t *Tracker) CoreLoad(i int) (float64, error) {
	if i < 0 || i >= len(t.current) || i >= len(t.previous) {
		return 0, &IndexError{Index: i, Count: len(t.current)}
	}
	return load(t.previous[i], t.current[i]), nil
}

// load computes the busy percentage between two samples of one core.
// Deltas are absolute differences so a reset or wrapped counter never
// underflows.
func load(prev, curr Times) float64 {
	totalDelta := absDiff(curr.Total(), prev.Total())
	if totalDelta == 0 {
		return 0.0
	}
	idleDelta := absDiff(curr.Idle, prev.Idle)

	usage := (float64(totalDelta) - float64(idleDelta)) * 100.0 / float64(totalDelta)
	if usage < 0 {
		return 0.0
	}
	if usage > 100 {
		return 100.0
	}
	return usage
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// AverageLoad returns the unweighted mean of every core's load.
func (t *Tracker) AverageLoad() (float64, error) {
	if len(t.current) == 0 {
		return 0, ErrNoCores
	}
	var sum float64
	for i := range t.current {
		l, err := t.CoreLoad(i)
		if err != nil {
			return 0, err
		}
		sum += l
	}
	return sum / float64(len(t.current)), nil
}

// Loads yields the load of every core in index order. A core that cannot be
// computed is yielded with its error instead of stopping the process; the
// caller decides whether to keep iterating. The sequence reflects the
// snapshots at the time each value is produced, so it should not be consumed
// across an Update.
func (t *Tracker) Loads() iter.Seq2[float64, error] {
	return func(yield func(float64, error) bool) {
		for i := 0; i < len(t.current); i++ {
			if !yield(t.CoreLoad(i)) {
				return
			}
		}
	}
}

// Sample is the set of loads derived from one snapshot pair.
type Sample struct {
	Average float64
	Cores   []float64
}

// Sample computes the average and every per-core load in one pass.
func (t *Tracker) Sample() (Sample, error) {
	s := Sample{Cores: make([]float64, 0, len(t.current))}
	for l, err := range t.Loads() {
		if err != nil {
			return Sample{}, err
		}
		s.Cores = append(s.Cores, l)
	}
	if len(s.Cores) == 0 {
		return Sample{}, ErrNoCores
	}
	var sum float64
	for _, l := range s.Cores {
		sum += l
	}
	s.Average = sum / float64(len(s.Cores))
	return s, nil
}

// Snapshots returns copies of the previous and current snapshots.
func (t *Tracker) Snapshots() (previous, current Snapshot) {
	return t.previous.clone(), t.current.clone()
}
