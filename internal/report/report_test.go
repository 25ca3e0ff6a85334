package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-cpuload/internal/config"
	"github.com/opd-ai/go-cpuload/internal/poller"
)

var at = time.Date(2024, 5, 1, 12, 30, 5, 0, time.UTC)

func reading(perCore bool) poller.Reading {
	return poller.Reading{Time: at, Average: 62.5, Cores: []float64{25, 100}, PerCore: perCore}
}

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		r    poller.Reading
		want string
	}{
		{"average", reading(false), "62.5"},
		{"per core", reading(true), "25;100"},
		{"single core", poller.Reading{Cores: []float64{33.25}, PerCore: true}, "33.25"},
		{"zero", poller.Reading{}, "0"},
		{"repeating fraction", poller.Reading{Average: 100.0 / 3}, "33.333333333333336"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plain(tt.r))
		})
	}
}

func TestWriterPlainAndFinish(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, config.FormatPlain)

	require.NoError(t, w.Consume(reading(true)))
	require.NoError(t, w.Consume(reading(false)))
	require.NoError(t, w.Finish())

	assert.Equal(t, "25;100\n62.5\n\n", buf.String())
}

func TestWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, config.FormatJSON)

	require.NoError(t, w.Consume(reading(false)))

	var got struct {
		Time    time.Time `json:"time"`
		Average float64   `json:"average"`
		Cores   []float64 `json:"cores"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, at.Equal(got.Time))
	assert.Equal(t, 62.5, got.Average)
	assert.Equal(t, []float64{25, 100}, got.Cores)
	assert.NotContains(t, buf.String(), "PerCore")
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
}

func TestWriterPretty(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, config.FormatPretty)

	require.NoError(t, w.Consume(reading(true)))
	require.NoError(t, w.Consume(reading(false)))

	// A buffer is not a terminal, so no escape sequences are emitted.
	assert.Equal(t,
		"12:30:05  cpu0 ▂  25.0%  cpu1 █ 100.0%\n"+
			"12:30:05  avg  62.5% ▅\n",
		buf.String())
}

func TestWriterSetFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, config.FormatJSON)
	w.SetFormat(config.FormatPlain)

	require.NoError(t, w.Consume(reading(false)))
	assert.Equal(t, "62.5\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterError(t *testing.T) {
	w := New(failingWriter{}, config.FormatPlain)
	assert.Error(t, w.Consume(reading(false)))
	assert.Error(t, w.Finish())
}

func TestBar(t *testing.T) {
	assert.Equal(t, "▁", Bar(0))
	assert.Equal(t, "▁", Bar(-5))
	assert.Equal(t, "▄", Bar(50))
	assert.Equal(t, "█", Bar(100))
	assert.Equal(t, "█", Bar(250))
}
