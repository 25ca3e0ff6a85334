// Package cpustat parses the kernel's per-core CPU counters (the /proc/stat
// format) and turns two successive snapshots of them into utilization
// percentages.
package cpustat

import (
	"strconv"
	"strings"
)

// Times holds the cumulative tick counters of one logical core.
type Times struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	IRQ       uint64
	SoftIRQ   uint64
	Steal     uint64
	Guest     uint64
	GuestNice uint64
}

// Total returns the ticks counted towards utilization. IOWait, IRQ, SoftIRQ
// and both guest counters are left out; guest time is already part of
// User and Nice.
func (t Times) Total() uint64 {
	return t.User + t.Nice + t.System + t.Idle + t.Steal
}

// counter returns a pointer to the counter stored for f.
func (t *Times) counter(f Field) *uint64 {
	switch f {
	case FieldUser:
		return &t.User
	case FieldNice:
		return &t.Nice
	case FieldSystem:
		return &t.System
	case FieldIdle:
		return &t.Idle
	case FieldIOWait:
		return &t.IOWait
	case FieldIRQ:
		return &t.IRQ
	case FieldSoftIRQ:
		return &t.SoftIRQ
	case FieldSteal:
		return &t.Steal
	case FieldGuest:
		return &t.Guest
	case FieldGuestNice:
		return &t.GuestNice
	}
	return nil
}

// tokenize splits line on every single space. Runs of spaces produce empty
// tokens so that token positions stay fixed.
func tokenize(line string) []string {
	if line == "" {
		return nil
	}
	return strings.Split(line, " ")
}

// ParseLine parses one per-core line such as
//
//	cpu0 4705 356 584 3699 23 23 0 0 0 0
//
// The label is discarded. Tokens after guest_nice are ignored so that newer
// kernels appending counters keep working.
func ParseLine(line string) (Times, error) {
	tokens := tokenize(strings.TrimSuffix(line, "\r"))

	var t Times
	for f := FieldLabel; f <= FieldGuestNice; f++ {
		if int(f) >= len(tokens) {
			return Times{}, &FieldError{Field: f, Err: ErrMissingField}
		}
		if f == FieldLabel {
			continue
		}
		v, err := strconv.ParseUint(tokens[f], 10, 64)
		if err != nil {
			return Times{}, &FieldError{Field: f, Err: err}
		}
		*t.counter(f) = v
	}
	return t, nil
}

// Format renders t as a counter line labelled with label.
func (t Times) Format(label string) string {
	var b strings.Builder
	b.WriteString(label)
	for f := FieldUser; f <= FieldGuestNice; f++ {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(*t.counter(f), 10))
	}
	return b.String()
}
