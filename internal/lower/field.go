package lower

import (
	"slices"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// StorageKind is how a field is backed in hardware
type StorageKind int

const (
	Flops StorageKind = iota
	Wire
	Const
)

func (s StorageKind) String() string {
	switch s {
	case Wire:
		return "WIRE"
	case Const:
		return "CONST"
	}
	return "FLOPS"
}

// AccessDecision is the per-field verdict the RTL is built from
type AccessDecision struct {
	Storage    StorageKind
	Precedence rdl.Precedence
	Reset      rdl.ResetSpec
}

// InferStorage decides the storage of a field. Interrupts and fields
// driven by counter or set/clear logic always need flops: counter, hwset and
// hwclr are checked before the CONST/WIRE rules, so a read-only counter is
// never a constant.
func InferStorage(n *rdl.Node) StorageKind {
	sw, hw := n.Access("sw"), n.Access("hw")
	switch {
	case n.Bool("intr"), n.Bool("counter"), n.Bool("hwset"), n.Bool("hwclr"):
		return Flops
	case hw == rdl.AccessR && sw == rdl.AccessR, hw == rdl.AccessNA && sw == rdl.AccessR:
		return Const
	case hw == rdl.AccessW && sw == rdl.AccessR && !n.Reset().HasValue && !n.Bool("we") && !n.Bool("wel"):
		return Wire
	}
	return Flops
}

type block struct {
	frags []rtl.Fragment
	// exclusive blocks end the if/else chain: nothing after them is reachable
	exclusive bool
}

// swAccess is the software view of a field through one register name
type swAccess struct {
	node *rdl.Node
	// reg is the register name the access decodes, path the field as seen through it
	reg, path   string
	write, read block
}

// Field lowers one field. Hardware blocks are built once by the primary
// register; every alias appends one software view.
type Field struct {
	base
	reg      *Register
	ctx      *Context
	diag     *diag.Scope
	decision AccessDecision

	lsb, msb, width int
	lsbyte, msbyte  int
	// typ is the type of hardware facing ports
	typ      string
	enumType string

	hwSetClr    block
	hwWrite     block
	singlepulse block
	sw          []swAccess

	readableBy []string
	writableBy []string

	intr, halt         bool
	intrExpr, haltExpr string

	footer []rtl.Fragment
	frags  []rtl.Fragment
}

func newField(ctx *Context, reg *Register, n *rdl.Node) (*Field, error) {
	f := &Field{
		base:  newBase(n, ctx.owner, reg.geo),
		reg:   reg,
		ctx:   ctx,
		diag:  ctx.Diag.At(n.Path()),
		lsb:   n.LSB,
		msb:   n.MSB,
		width: n.FieldWidth(),
	}
	f.lsbyte, f.msbyte = f.lsb/8, f.msb/8
	f.decision = AccessDecision{
		Storage:    InferStorage(n),
		Precedence: n.Precedence(),
		Reset:      n.Reset(),
	}
	f.typ = vectorType(f.width)
	f.diag.Debug("storage %s, precedence %s", f.decision.Storage, f.decision.Precedence)

	if rst := f.decision.Reset; rst.Signal != "" {
		f.resets = append(f.resets, Reset{Name: rst.Signal, ActiveLow: rst.ActiveLow, Async: rst.Async})
	}
	f.initEnum()

	if !reg.external {
		f.addSignal(f.name+"_q", f.typ)
		if err := f.buildHW(); err != nil {
			return nil, err
		}
	}
	if err := f.addSWAccess(n, reg.name, f.name); err != nil {
		return nil, err
	}
	f.sanityChecks()
	return f, nil
}

// Decision returns the storage, precedence and reset verdict
func (f *Field) Decision() AccessDecision { return f.decision }

func (f *Field) LSB() int   { return f.lsb }
func (f *Field) MSB() int   { return f.msb }
func (f *Field) Width() int { return f.width }

// ReadableBy lists the register names software can read the field through
func (f *Field) ReadableBy() []string { return f.readableBy }

// WritableBy lists the register names software can write the field through
func (f *Field) WritableBy() []string { return f.writableBy }

// Views returns the field node as seen through every register name,
// primary first
func (f *Field) Views() []FieldView {
	out := make([]FieldView, len(f.sw))
	for i, a := range f.sw {
		out[i] = FieldView{Node: a.node, Register: a.reg, Path: a.path}
	}
	return out
}

// FieldView is a field reached through one register name
type FieldView struct {
	Node     *rdl.Node
	Register string
	Path     string
}

// EnumType returns the qualified enum type of the field, if any
func (f *Field) EnumType() string { return f.enumType }

// Interrupt reports whether the field contributes to the register
// interrupt and halt outputs
func (f *Field) Interrupt() (intr, halt bool) { return f.intr, f.halt }

// q is the storage signal of the field inside the generate loops
func (f *Field) q() string { return f.sig("q") }

func (f *Field) sig(suffix string) string {
	return f.name + "_" + suffix + f.geo.Genvars()
}

// rdData is what the register read mux concatenates for one view
func (f *Field) rdData(path string) string {
	if f.reg.external {
		return path + "_rd_dat" + f.geo.Genvars()
	}
	return f.q()
}

func (f *Field) sanityChecks() {
	n, d := f.node, f.decision
	hw := n.Access("hw")

	if d.Precedence == rdl.PrecedenceHW && hw.CanWrite() && !n.Bool("we") && !n.Bool("wel") &&
		n.Access("sw").CanWrite() && !f.reg.external {
		f.diag.Sanity("hardware has precedence and writes every cycle without we/wel; software writes have no effect")
	}
	if d.Reset.HasValue && d.Reset.Signal == "" && d.Storage == Flops {
		f.diag.Sanity("field has a reset value but no reset signal")
	}
	if n.Bool("counter") && !d.Reset.HasValue {
		f.diag.Sanity("counter has no reset value, its initial value is undefined")
	}
	if _, ok := n.Ref("next"); ok && hw == rdl.AccessR {
		f.diag.Sanity("'next' is set on a field hardware can only read")
	}
	if n.Bool("counter") && (n.Bool("sticky") || n.Bool("stickybit")) {
		f.diag.Sanity("sticky field is also a counter; the counter is ignored")
	}
}

// initEnum binds the encode property to a package typedef
func (f *Field) initEnum() {
	enum, ok := f.node.Encoding()
	if !ok || !f.ctx.Opts.Enums {
		return
	}
	td := newTypeDef(f.ctx.module, enum, f.width, f.node.Path())
	f.typedefs = append(f.typedefs, td)
	f.enumType = td.Qualified()
	f.diag.Info("parsed enum %s", td.Name)
}

// summary is the comment heading the field's RTL
func (f *Field) summary() []rtl.Fragment {
	n, d := f.node, f.decision
	var flags []string
	for name := range n.Properties {
		switch name {
		case "hw", "sw", "reset", "resetsignal", "desc", "precedence":
			continue
		}
		flags = append(flags, name)
	}
	sort.Strings(flags)

	rst := "none"
	if d.Reset.Signal != "" {
		rst = rtl.Expr("reset_summary", rtl.P{
			"name": d.Reset.Signal, "async": d.Reset.Async, "activelow": d.Reset.ActiveLow,
		})
	}
	frags := []rtl.Fragment{rtl.F("field_comment", rtl.P{
		"name":       f.name,
		"msb":        f.msb,
		"lsb":        f.lsb,
		"hw":         string(n.Access("hw")),
		"sw":         string(n.Access("sw")),
		"precedence": string(d.Precedence),
		"storage":    d.Storage.String(),
		"reset":      rst,
		"flags":      flags,
		"external":   f.reg.external,
	})}
	if desc := n.Desc(); desc != "" && f.ctx.describes(config.DescField) {
		frags = append(frags, commentBlock(desc))
	}
	return frags
}

// finalize builds the field RTL once every alias has been added
func (f *Field) finalize() {
	f.buildSWModAcc()

	frags := f.summary()
	switch {
	case f.reg.external:
		frags = append(frags, f.externalRTL()...)
	case f.decision.Storage == Flops:
		frags = append(frags, f.alwaysFF()...)
	default:
		frags = append(frags, f.hwWrite.frags...)
	}
	frags = append(frags, f.footer...)
	f.frags = append(frags, rtl.F("blank", nil))
}

// Fragments returns the field RTL
func (f *Field) Fragments() []rtl.Fragment { return f.frags }

// chain orders the access blocks by precedence and joins them with else.
// The chain stops after the first exclusive block.
func (f *Field) chain() []rtl.Fragment {
	var writes, reads []block
	for _, a := range f.sw {
		writes = append(writes, a.write)
		reads = append(reads, a.read)
	}
	hw := []block{f.hwSetClr, f.hwWrite}

	var order []block
	if f.decision.Precedence == rdl.PrecedenceHW {
		order = slices.Concat(hw, writes, reads)
	} else {
		order = slices.Concat(writes, reads, hw)
	}
	order = append(order, f.singlepulse)

	var out []rtl.Fragment
	for _, b := range order {
		if len(b.frags) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, rtl.F("else", nil))
		}
		out = append(out, b.frags...)
		if b.exclusive {
			break
		}
	}
	return out
}

// alwaysFF wraps the access chain in the clocked process of the field
func (f *Field) alwaysFF() []rtl.Fragment {
	chain := f.chain()
	rst := f.decision.Reset
	withReset := rst.Signal != "" && rst.HasValue
	if len(chain) == 0 && !withReset {
		return nil
	}

	frags := []rtl.Fragment{rtl.F("always_ff_start", rtl.P{
		"async":     withReset && rst.Async,
		"edge":      rst.Edge(),
		"rst":       rst.Signal,
		"activelow": rst.ActiveLow,
	})}
	if withReset {
		frags = append(frags, rtl.F("field_reset", rtl.P{
			"rst":       rst.Signal,
			"activelow": rst.ActiveLow,
			"q":         f.q(),
			"value":     f.resetValue(),
		}))
		frags = append(frags, chain...)
		frags = append(frags, rtl.F("end", nil))
	} else {
		frags = append(frags, chain...)
	}
	return append(frags, rtl.F("always_ff_end", rtl.P{"name": f.name}))
}

func (f *Field) resetValue() string {
	rst := f.decision.Reset
	if rst.ValueRef != nil {
		return f.refSignal(f.ctx.owner, rst.ValueRef)
	}
	return sized(f.width, rst.Value)
}

// sized renders a sized decimal constant
func sized(width int, v uint64) string {
	return rtl.Expr("sized_const", rtl.P{"width": width, "value": v})
}

// maxValue returns 2^width-1
func maxValue(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func commentBlock(text string) rtl.Fragment {
	return rtl.F("comment_block", rtl.P{"lines": splitLines(text)})
}

func splitLines(text string) []string {
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
