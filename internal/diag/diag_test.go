package diag

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestScopeTagsPath(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewReporter(log, false)

	r.At("top.ctrl.en").Warn("reset value %d without reset signal", 3)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warning, got %s", entry.Level)
	}
	if got := entry.Data["path"]; got != "top.ctrl.en" {
		t.Fatalf("expected path field, got %v", got)
	}
	if r.Warnings() != 1 {
		t.Fatalf("expected 1 warning, got %d", r.Warnings())
	}
}

func TestSanitySuppression(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewReporter(log, true)

	s := r.At("top.r.f")
	s.Sanity("useless software write")
	s.Warn("always reported")

	if len(hook.AllEntries()) != 1 {
		t.Fatalf("expected only the plain warning, got %d entries", len(hook.AllEntries()))
	}
	if r.Suppressed() != 1 {
		t.Fatalf("expected 1 suppressed warning, got %d", r.Suppressed())
	}
}

func TestConflictCarriesBothLocations(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewReporter(log, false)

	err := r.At("top.rf").Conflict(KindEnumCollision,
		[]string{"top.rf.a.mode", "top.rf.b.state"},
		"enum member %q defined twice", "IDLE")

	var derr *Error
	if !errors.As(error(err), &derr) {
		t.Fatalf("expected *Error")
	}
	if derr.Kind != KindEnumCollision {
		t.Fatalf("unexpected kind %s", derr.Kind)
	}
	msg := derr.Error()
	for _, want := range []string{"top.rf", "IDLE", "top.rf.a.mode", "top.rf.b.state"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
	if hook.LastEntry().Level != logrus.ErrorLevel {
		t.Fatalf("expected error level entry")
	}
}

func TestNewLoggerFileSink(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "rdl2sv.log")

	log, closeFn, err := NewLogger(&console, "warning", file, "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	log.WithField("path", "top.r").Debug("entering register")
	log.WithField("path", "top.r").Warn("something odd")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "entering register") {
		t.Fatalf("debug record leaked to console: %q", console.String())
	}
	if !strings.Contains(console.String(), "something odd") {
		t.Fatalf("warning missing from console: %q", console.String())
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 file records, got %d: %q", len(lines), raw)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("parse record: %v", err)
	}
	if rec["path"] != "top.r" {
		t.Fatalf("expected path in file record, got %v", rec)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, _, err := NewLogger(&bytes.Buffer{}, "loud", "", ""); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
