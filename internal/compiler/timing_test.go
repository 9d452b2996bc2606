package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTimingRecorderDisabled(t *testing.T) {
	tr := newTimingRecorder(time.Now(), "")
	if tr.Enabled() {
		t.Fatal("recorder without a path should be disabled")
	}
	called := false
	err := tr.Stage("lower", func() error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("Stage should run fn, called=%v err=%v", called, err)
	}
	if len(tr.events) != 0 {
		t.Fatalf("disabled recorder kept %d events", len(tr.events))
	}
	tr.Close()
}

func TestTimingRecorderStageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.jsonl")
	tr := newTimingRecorder(time.Now(), path)
	if err := tr.Err(); err != nil {
		t.Fatalf("open timing file: %v", err)
	}

	boom := errors.New("boom")
	if err := tr.Stage("render", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Stage should return the stage error, got %v", err)
	}
	tr.RecordFile("out.sv", "ok", time.Now(), time.Millisecond)
	tr.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d", len(lines))
	}

	var stage, file timingEvent
	if err := json.Unmarshal(lines[0], &stage); err != nil {
		t.Fatalf("parse timing event: %v", err)
	}
	if err := json.Unmarshal(lines[1], &file); err != nil {
		t.Fatalf("parse timing event: %v", err)
	}
	if stage.Stage != "render" || stage.Status != "error" {
		t.Errorf("stage event = %+v", stage)
	}
	if file.Kind != "file" || file.Stage != "write" || file.File != "out.sv" || file.DurationMS != 1 {
		t.Errorf("file event = %+v", file)
	}
}

func TestTimingRecorderBadPath(t *testing.T) {
	tr := newTimingRecorder(time.Now(), filepath.Join(t.TempDir(), "missing", "timing.jsonl"))
	if tr.Err() == nil {
		t.Fatal("expected an error for an unwritable path")
	}
	if tr.Enabled() {
		t.Fatal("recorder should be disabled after an open error")
	}
}

func TestResolveTimingPath(t *testing.T) {
	c := New(nil, nil)
	c.Config = defaultConfigWithTiming("cfg.jsonl")

	t.Setenv("RDL2SV_TIMING", "")
	if got := c.resolveTimingPath(); got != "cfg.jsonl" {
		t.Errorf("config path: got %q", got)
	}
	t.Setenv("RDL2SV_TIMING", "env.jsonl")
	if got := c.resolveTimingPath(); got != "env.jsonl" {
		t.Errorf("env path: got %q", got)
	}
}
