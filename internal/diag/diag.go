// Package diag carries lowering diagnostics. Every message is tagged with
// the fully-qualified hierarchical path of the node that raised it.
package diag

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Kind classifies a fatal lowering error.
type Kind int

const (
	KindInput Kind = iota + 1
	KindEnumCollision
	KindCounterConfig
	KindAliasRange
	KindAliasPrimary
	KindAddrMapRedeclared
	KindAddrMapInRegFile
	KindMemoryWidth
	KindOnWriteAccess
	KindPolicy
)

var kindNames = map[Kind]string{
	KindInput:             "input",
	KindEnumCollision:     "enum-collision",
	KindCounterConfig:     "counter-config",
	KindAliasRange:        "alias-range",
	KindAliasPrimary:      "alias-primary",
	KindAddrMapRedeclared: "addrmap-redeclared",
	KindAddrMapInRegFile:  "addrmap-in-regfile",
	KindMemoryWidth:       "memory-width",
	KindOnWriteAccess:     "onwrite-access",
	KindPolicy:            "policy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a fatal condition. The pass is aborted and no output is trusted.
type Error struct {
	Kind Kind
	// Path of the node that raised the error.
	Path string
	// Locations lists every conflicting occurrence, when there is more than one.
	Locations []string
	Msg       string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Path, e.Msg)
	if len(e.Locations) > 0 {
		fmt.Fprintf(&b, " (at %s)", strings.Join(e.Locations, ", "))
	}
	return b.String()
}

// Errorf builds a fatal error for the node at path
func Errorf(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// WithLocations attaches the conflicting occurrences
func (e *Error) WithLocations(locs ...string) *Error {
	e.Locations = append(e.Locations, locs...)
	return e
}

// Reporter routes diagnostics to a logrus logger and counts them
type Reporter struct {
	log           logrus.FieldLogger
	disableSanity bool

	warnings   int
	suppressed int
}

// NewReporter creates a Reporter. With disableSanity set, sanity warnings
// are dropped; fatal errors and plain warnings are still reported.
func NewReporter(log logrus.FieldLogger, disableSanity bool) *Reporter {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Reporter{log: log, disableSanity: disableSanity}
}

// At returns a scope for the node at path
func (r *Reporter) At(path string) *Scope {
	return &Scope{r: r, entry: r.log.WithField("path", path), path: path}
}

// Warnings returns the number of warnings that were emitted
func (r *Reporter) Warnings() int { return r.warnings }

// Suppressed returns the number of sanity warnings that were dropped
func (r *Reporter) Suppressed() int { return r.suppressed }

// Scope is a Reporter bound to one hierarchical path
type Scope struct {
	r     *Reporter
	entry *logrus.Entry
	path  string
}

// Path returns the hierarchical path of the scope
func (s *Scope) Path() string { return s.path }

// Sanity emits a warning that the disableSanity option can suppress
func (s *Scope) Sanity(format string, args ...any) {
	if s.r.disableSanity {
		s.r.suppressed++
		return
	}
	s.Warn(format, args...)
}

// Warn emits a warning that is never suppressed
func (s *Scope) Warn(format string, args ...any) {
	s.r.warnings++
	s.entry.Warnf(format, args...)
}

func (s *Scope) Info(format string, args ...any) {
	s.entry.Infof(format, args...)
}

func (s *Scope) Debug(format string, args ...any) {
	s.entry.Debugf(format, args...)
}

// Fatal logs a fatal condition and returns it as an error for the caller
// to propagate
func (s *Scope) Fatal(kind Kind, format string, args ...any) *Error {
	err := Errorf(kind, s.path, format, args...)
	s.entry.WithField("kind", kind.String()).Error(err.Msg)
	return err
}

// Conflict logs a fatal condition that involves two or more nodes
func (s *Scope) Conflict(kind Kind, locations []string, format string, args ...any) *Error {
	err := Errorf(kind, s.path, format, args...).WithLocations(locations...)
	s.entry.WithFields(logrus.Fields{
		"kind":      kind.String(),
		"locations": strings.Join(locations, ", "),
	}).Error(err.Msg)
	return err
}
