// Package report writes poller readings to a terminal or pipe.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/opd-ai/go-cpuload/internal/config"
	"github.com/opd-ai/go-cpuload/internal/poller"
)

// Writer formats readings and writes one line per reading.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format config.Format
	styles styles
}

type styles struct {
	label lipgloss.Style
	time  lipgloss.Style
	low   lipgloss.Style
	mid   lipgloss.Style
	high  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		time:  r.NewStyle().Foreground(lipgloss.Color("8")),
		low:   r.NewStyle().Foreground(lipgloss.Color("10")),
		mid:   r.NewStyle().Foreground(lipgloss.Color("11")),
		high:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// New creates a Writer. Colours are only emitted when out is a terminal.
func New(out io.Writer, format config.Format) *Writer {
	return &Writer{
		out:    out,
		format: format,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// SetFormat changes the format of subsequent lines.
func (w *Writer) SetFormat(f config.Format) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.format = f
}

// Consume writes r in the current format.
func (w *Writer) Consume(r poller.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var line string
	switch w.format {
	case config.FormatJSON:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding reading: %w", err)
		}
		line = string(b)
	case config.FormatPretty:
		line = w.pretty(r)
	default:
		line = Plain(r)
	}

	_, err := io.WriteString(w.out, line+"\n")
	return err
}

// Finish terminates the output with an empty line.
func (w *Writer) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, "\n")
	return err
}

// Plain renders r as bare numbers: the per-core loads joined by ';' or the
// average alone.
func Plain(r poller.Reading) string {
	if !r.PerCore {
		return FormatLoad(r.Average)
	}
	parts := make([]string, len(r.Cores))
	for i, l := range r.Cores {
		parts[i] = FormatLoad(l)
	}
	return strings.Join(parts, ";")
}

// FormatLoad prints l with the fewest digits that represent it exactly.
func FormatLoad(l float64) string {
	return strconv.FormatFloat(l, 'f', -1, 64)
}

var barChars = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Bar maps a load in [0, 100] to a block character.
func Bar(l float64) string {
	i := int(l / 100 * float64(len(barChars)-1))
	i = max(0, min(i, len(barChars)-1))
	return barChars[i]
}

func (w *Writer) band(l float64) lipgloss.Style {
	switch {
	case l >= 80:
		return w.styles.high
	case l >= 50:
		return w.styles.mid
	default:
		return w.styles.low
	}
}

func (w *Writer) pretty(r poller.Reading) string {
	var b strings.Builder
	b.WriteString(w.styles.time.Render(r.Time.Format("15:04:05")))

	if !r.PerCore {
		b.WriteString("  ")
		b.WriteString(w.styles.label.Render("avg"))
		b.WriteString(" ")
		b.WriteString(w.band(r.Average).Render(fmt.Sprintf("%5.1f%% %s", r.Average, Bar(r.Average))))
		return b.String()
	}

	for i, l := range r.Cores {
		b.WriteString("  ")
		b.WriteString(w.styles.label.Render("cpu" + strconv.Itoa(i)))
		b.WriteString(" ")
		b.WriteString(w.band(l).Render(fmt.Sprintf("%s %5.1f%%", Bar(l), l)))
	}
	return b.String()
}
