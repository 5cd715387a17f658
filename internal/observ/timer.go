// Package observ collects per-session timings: one phase per facade call and
// running counters for the traffic exchanged with the interpreter.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase records the duration and outcome of one session operation.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks session phases and exchange counters. It is safe for
// concurrent use.
type Timer struct {
	mu        sync.Mutex
	phases    []Phase
	exchanges int
	sent      int64
	received  int64
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Exchange counts one round trip and the bytes it moved.
func (t *Timer) Exchange(sent, received int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exchanges++
	t.sent += sent
	t.received += received
}

// Summary returns a human-readable table of phases and counters.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&sb, "  %-20s %9.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-20s %9.2f ms\n", "total", report.TotalMS)
	fmt.Fprintf(&sb, "  %d exchanges, %d bytes sent, %d bytes received\n",
		report.Exchanges, report.BytesSent, report.BytesReceived)
	return sb.String()
}

// PhaseReport is the serialisable form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates a Timer.
type Report struct {
	TotalMS       float64       `json:"total_ms"`
	Phases        []PhaseReport `json:"phases"`
	Exchanges     int           `json:"exchanges"`
	BytesSent     int64         `json:"bytes_sent"`
	BytesReceived int64         `json:"bytes_received"`
}

// Report snapshots the phases and counters.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	report := Report{
		Phases:        make([]PhaseReport, len(t.phases)),
		Exchanges:     t.exchanges,
		BytesSent:     t.sent,
		BytesReceived: t.received,
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
