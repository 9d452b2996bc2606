// Package regmodel is a cycle-level software model of a lowered register
// map. It is built from the same access decisions as the RTL and lets
// tests exercise the behavior of a module without a simulator.
//
// Hardware inputs driven by references to other nodes are not modeled;
// only port-driven inputs set through SetInput and Pulse are.
package regmodel

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/rdl2sv/internal/lower"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
)

var (
	// ErrUnmapped is returned for an address no register decodes
	ErrUnmapped = errors.New("address is not mapped")
	// ErrWindow is returned for an address inside a memory or nested map
	ErrWindow = errors.New("address belongs to a pass-through window")
	// ErrExternal is returned for an external register
	ErrExternal = errors.New("register is implemented outside the module")
	// ErrUnknownField is returned for a field key the model does not hold
	ErrUnknownField = errors.New("unknown field")
)

// Signal is a one-cycle hardware strobe
type Signal string

const (
	Incr    Signal = "incr"
	Decr    Signal = "decr"
	HWWrite Signal = "we"
	HWSet   Signal = "hwset"
	HWClr   Signal = "hwclr"
)

// unit is one register element as software addresses it
type unit struct {
	entry lower.MuxEntry
	reg   *lower.Register
}

// Model holds the state of every field element of one module
type Model struct {
	log    logrus.FieldLogger
	units  map[uint64]unit
	fields []*fieldState
	byKey  map[string]*fieldState
	cycle  uint64
}

// New builds a model of mod. Field elements are keyed by the field's
// module-level name followed by the element index, e.g. "arr__v[1][0]".
func New(mod *lower.AddrMap, log logrus.FieldLogger) (*Model, error) {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	m := &Model{
		log:   log.WithField("module", mod.Module()),
		units: make(map[uint64]unit),
		byKey: make(map[string]*fieldState),
	}

	for _, r := range registers(mod) {
		for e := range r.MuxEntries() {
			if prev, dup := m.units[e.Address]; dup {
				return nil, fmt.Errorf("address 0x%x decoded by both %s and %s", e.Address, prev.entry.Path, e.Path)
			}
			m.units[e.Address] = unit{entry: e, reg: r}
		}
		for _, f := range r.Fields() {
			for idx := range f.Geometry().IndexSpace() {
				fs := newFieldState(f, f.Name()+lower.IndexSuffix(idx))
				m.fields = append(m.fields, fs)
				m.byKey[fs.key] = fs
			}
		}
	}
	for _, e := range mod.Entries() {
		if e.Kind == lower.EntryMemory || e.Kind == lower.EntryAddrMap {
			m.units[e.Address] = unit{entry: e}
		}
	}
	m.Reset()
	return m, nil
}

// registers collects the registers of a module in source order
func registers(n lower.Node) []*lower.Register {
	var out []*lower.Register
	for _, c := range n.Children() {
		if r, ok := c.(*lower.Register); ok {
			out = append(out, r)
			continue
		}
		if _, ok := c.(*lower.Memory); ok {
			continue
		}
		out = append(out, registers(c)...)
	}
	return out
}

// Reset applies the reset value of every field
func (m *Model) Reset() {
	for _, fs := range m.fields {
		fs.reset()
	}
	m.cycle = 0
}

// Cycle returns the number of clock edges since the last reset
func (m *Model) Cycle() uint64 { return m.cycle }

// Keys returns the field element keys in source order
func (m *Model) Keys() []string {
	out := make([]string, len(m.fields))
	for i, fs := range m.fields {
		out[i] = fs.key
	}
	return out
}

// Value returns the stored value of a field element
func (m *Model) Value(field string) (uint64, error) {
	fs, err := m.field(field)
	if err != nil {
		return 0, err
	}
	return fs.q, nil
}

// SetInput drives the hardware input of a field. It holds until changed.
func (m *Model) SetInput(field string, v uint64) error {
	fs, err := m.field(field)
	if err != nil {
		return err
	}
	fs.in = v & fs.mask()
	return nil
}

// Pulse asserts a hardware strobe of a field for the next cycle
func (m *Model) Pulse(field string, s Signal) error {
	fs, err := m.field(field)
	if err != nil {
		return err
	}
	fs.pulses[s] = true
	return nil
}

// Tick advances one clock cycle without a bus access
func (m *Model) Tick() {
	m.step(nil)
}

// Read returns the data software reads at addr, then clocks the read
// side effects
func (m *Model) Read(addr uint64) (uint64, error) {
	u, err := m.unit(addr)
	if err != nil {
		return 0, err
	}
	acc := &access{name: u.entry.Unit, index: u.entry.Index, read: true, byteEn: ^uint64(0)}

	width := u.reg.Width()
	var data uint64
	covered := uint64(0)
	for _, f := range u.reg.Fields() {
		if !slices.Contains(f.ReadableBy(), acc.name) {
			continue
		}
		fs := m.byKey[f.Name()+lower.IndexSuffix(acc.index)]
		data |= fs.q << f.LSB()
		covered |= fs.mask() << f.LSB()
	}
	if u.reg.ReservedFill() == "1" {
		data |= ^covered & widthMask(width)
	}

	m.log.WithFields(logrus.Fields{"addr": addr, "data": data}).Debug("read")
	m.step(acc)
	return data, nil
}

// Write performs a software write of data with byte enables byteEn
func (m *Model) Write(addr, data, byteEn uint64) error {
	u, err := m.unit(addr)
	if err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"addr": addr, "data": data, "byte_en": byteEn}).Debug("write")
	m.step(&access{name: u.entry.Unit, index: u.entry.Index, write: true, data: data, byteEn: byteEn})
	return nil
}

func (m *Model) unit(addr uint64) (unit, error) {
	u, ok := m.units[addr]
	switch {
	case !ok:
		return unit{}, fmt.Errorf("0x%x: %w", addr, ErrUnmapped)
	case u.reg == nil:
		return unit{}, fmt.Errorf("0x%x (%s): %w", addr, u.entry.Path, ErrWindow)
	case u.reg.External():
		return unit{}, fmt.Errorf("0x%x (%s): %w", addr, u.entry.Path, ErrExternal)
	}
	return u, nil
}

func (m *Model) field(key string) (*fieldState, error) {
	fs, ok := m.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrUnknownField)
	}
	return fs, nil
}

// step evaluates every field against one access and commits the new
// values together, like a clock edge
func (m *Model) step(acc *access) {
	next := make([]uint64, len(m.fields))
	for i, fs := range m.fields {
		a := acc
		if a != nil && !fs.addressedBy(a) {
			a = nil
		}
		next[i] = fs.next(a)
	}
	for i, fs := range m.fields {
		fs.commit(next[i])
	}
	m.cycle++
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// access is one bus transfer
type access struct {
	name   string
	index  []int
	read   bool
	write  bool
	data   uint64
	byteEn uint64
}

// fieldState is one element of a field
type fieldState struct {
	f   *lower.Field
	key string

	q     uint64
	in    uint64
	trigQ uint64

	pulses map[Signal]bool
}

func newFieldState(f *lower.Field, key string) *fieldState {
	return &fieldState{f: f, key: key, pulses: make(map[Signal]bool)}
}

func (fs *fieldState) mask() uint64 { return widthMask(fs.f.Width()) }

func (fs *fieldState) node() *rdl.Node { return fs.f.RDL() }

func (fs *fieldState) reset() {
	rst := fs.f.Decision().Reset
	fs.q = 0
	if rst.HasValue && rst.ValueRef == nil {
		fs.q = rst.Value & fs.mask()
	}
	fs.trigQ = 0
	clear(fs.pulses)
}

// addressedBy reports whether the access targets the element
func (fs *fieldState) addressedBy(a *access) bool {
	return fs.key == fs.f.Name()+lower.IndexSuffix(a.index)
}

func (fs *fieldState) commit(v uint64) {
	fs.q = v & fs.mask()
	fs.trigQ = fs.in
	clear(fs.pulses)
}
