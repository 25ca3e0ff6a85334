package source

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/opd-ai/go-cpuload/internal/cpustat"
)

// userHZ is the tick rate the kernel reports /proc/stat counters in.
const userHZ = 100

// Host reads the local per-CPU counters through gopsutil and renders them in
// the /proc/stat format. It serves platforms that have no procfs.
type Host struct {
	times func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
}

// NewHost creates a Host source backed by gopsutil.
func NewHost() *Host {
	return &Host{times: cpu.TimesWithContext}
}

// ReadStat samples the per-CPU times and formats them as a counter dump.
func (h *Host) ReadStat(ctx context.Context) (string, error) {
	stats, err := h.times(ctx, true)
	if err != nil {
		return "", fmt.Errorf("reading cpu times: %w", err)
	}
	return FormatTimes(stats), nil
}

// String identifies the source in logs.
func (h *Host) String() string {
	return "host"
}

// FormatTimes renders gopsutil per-CPU times as a /proc/stat style dump:
// an aggregate "cpu" line followed by one "cpuN" line per entry.
func FormatTimes(stats []cpu.TimesStat) string {
	var (
		b     strings.Builder
		total cpustat.Times
		lines = make([]string, 0, len(stats))
	)
	for i, s := range stats {
		t := toTicks(s)
		total.User += t.User
		total.Nice += t.Nice
		total.System += t.System
		total.Idle += t.Idle
		total.IOWait += t.IOWait
		total.IRQ += t.IRQ
		total.SoftIRQ += t.SoftIRQ
		total.Steal += t.Steal
		total.Guest += t.Guest
		total.GuestNice += t.GuestNice
		lines = append(lines, t.Format("cpu"+strconv.Itoa(i)))
	}

	b.WriteString(total.Format("cpu "))
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// toTicks converts gopsutil's seconds into kernel ticks.
func toTicks(s cpu.TimesStat) cpustat.Times {
	return cpustat.Times{
		User:      seconds(s.User),
		Nice:      seconds(s.Nice),
		System:    seconds(s.System),
		Idle:      seconds(s.Idle),
		IOWait:    seconds(s.Iowait),
		IRQ:       seconds(s.Irq),
		SoftIRQ:   seconds(s.Softirq),
		Steal:     seconds(s.Steal),
		Guest:     seconds(s.Guest),
		GuestNice: seconds(s.GuestNice),
	}
}

func seconds(v float64) uint64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint64(math.Round(v * userHZ))
}
