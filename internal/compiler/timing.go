package compiler

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
)

// timingEvent is one JSONL line. Offsets are milliseconds since the start
// of the run.
type timingEvent struct {
	Stage      string  `json:"stage"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder appends stage and file spans of one run to a JSONL file.
// A recorder without a file is a no-op.
type timingRecorder struct {
	origin time.Time

	mu     sync.Mutex
	out    *os.File
	enc    *json.Encoder
	events []timingEvent
	err    error
}

func newTimingRecorder(origin time.Time, path string) *timingRecorder {
	tr := &timingRecorder{origin: origin}
	if path == "" {
		return tr
	}
	tr.out, tr.err = os.Create(path)
	if tr.err != nil {
		tr.out = nil
		return tr
	}
	tr.enc = json.NewEncoder(tr.out)
	return tr
}

func (tr *timingRecorder) Enabled() bool { return tr != nil && tr.out != nil }

// Err returns the error that disabled the recorder, if any
func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr.Enabled() {
		_ = tr.out.Close()
	}
}

// Stage times fn as one pipeline stage and returns its error
func (tr *timingRecorder) Stage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	tr.record(timingEvent{Stage: stage, Kind: "stage", Status: status(err)}, start, time.Since(start))
	return err
}

// RecordFile records the time spent writing one output file
func (tr *timingRecorder) RecordFile(file, st string, start time.Time, d time.Duration) {
	tr.record(timingEvent{Stage: "write", Kind: "file", File: file, Status: st}, start, d)
}

func (tr *timingRecorder) record(ev timingEvent, start time.Time, d time.Duration) {
	if !tr.Enabled() {
		return
	}
	ev.StartMS = millis(start.Sub(tr.origin))
	ev.DurationMS = millis(d)
	ev.EndMS = ev.StartMS + ev.DurationMS

	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, ev)
	_ = tr.enc.Encode(ev)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// resolveTimingPath picks the JSONL destination: the RDL2SV_TIMING
// environment variable, then the configured path
func (c *Compiler) resolveTimingPath() string {
	if p := os.Getenv(config.EnvTiming); p != "" {
		return p
	}
	return c.Config.Timing.Path
}
