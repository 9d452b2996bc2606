package lower

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// regName is one name software reaches a register through: the primary
// or one of its aliases
type regName struct {
	name  string
	node  *rdl.Node
	addr  uint64
	alias bool
}

// Register lowers one register together with its aliases
type Register struct {
	base
	ctx      *Context
	diag     *diag.Scope
	width    int
	external bool
	// fill is the reserved-bit value of the owning address-map
	fill string

	fields  []*Field
	byRange map[string]*Field
	names   []regName

	frags []rtl.Fragment
}

func fieldRange(n *rdl.Node) string {
	return fmt.Sprintf("%d:%d", n.MSB, n.LSB)
}

func newRegister(ctx *Context, n *rdl.Node, parent Geometry) (*Register, error) {
	r := &Register{
		base:     newBase(n, ctx.owner, parent),
		ctx:      ctx,
		diag:     ctx.Diag.At(n.Path()),
		width:    n.RegWidth,
		external: ctx.Opts.External || n.Bool("external"),
		fill:     ctx.rsvd,
		byRange:  make(map[string]*Field),
	}
	if r.width == 0 {
		r.width = 32
	}
	r.names = []regName{{name: r.name, node: n, addr: n.AbsoluteAddress - ctx.base}}
	r.diag.Debug("register at 0x%x, %d bits, dims %v", r.names[0].addr, r.width, r.geo.Total)

	for _, fn := range n.Fields() {
		f, err := newField(ctx, r, fn)
		if err != nil {
			return nil, err
		}
		r.fields = append(r.fields, f)
		r.byRange[fieldRange(fn)] = f
		r.children = append(r.children, f)
	}
	return r, nil
}

// addAlias binds an alias register to the fields of r. Every alias field
// must cover exactly the bits of a primary field.
func (r *Register) addAlias(n *rdl.Node) error {
	name := n.RelPath(r.ctx.owner, "__")
	for _, fn := range n.Fields() {
		f, ok := r.byRange[fieldRange(fn)]
		if !ok {
			return r.ctx.Diag.At(fn.Path()).Conflict(diag.KindAliasRange, []string{r.Path(), fn.Path()},
				"alias field [%s] does not match the range of any field of %s", fieldRange(fn), r.Path())
		}
		if err := f.addSWAccess(fn, name, fn.RelPath(r.ctx.owner, "__")); err != nil {
			return err
		}
	}
	r.names = append(r.names, regName{name: name, node: n, addr: n.AbsoluteAddress - r.ctx.base, alias: true})
	r.diag.Info("alias %s added at 0x%x", n.Path(), n.AbsoluteAddress)
	return nil
}

// Names returns the register names, primary first
func (r *Register) Names() []string {
	out := make([]string, len(r.names))
	for i, rn := range r.names {
		out[i] = rn.name
	}
	return out
}

func (r *Register) Fields() []*Field { return r.fields }
func (r *Register) Width() int       { return r.width }
func (r *Register) External() bool   { return r.external }

// ReservedFill is the value unused bits read as: "0", "1" or "x"
func (r *Register) ReservedFill() string { return r.fill }

// finalize builds the register RTL. It must run after every alias has
// been added.
func (r *Register) finalize() {
	for _, f := range r.fields {
		f.finalize()
	}
	g := r.geo.Genvars()
	frags := []rtl.Fragment{rtl.F("reg_comment", rtl.P{
		"path":     r.Path(),
		"names":    r.Names(),
		"addr":     r.names[0].addr,
		"width":    r.width,
		"dims":     r.geo.Own,
		"external": r.external,
	})}
	if desc := r.node.Desc(); desc != "" && r.ctx.describes(config.DescRegister) {
		frags = append(frags, commentBlock(desc))
	}

	opened := len(r.geo.Own) > 0 && r.ctx.openGenerate()
	if opened {
		frags = append(frags, rtl.F("generate", nil))
	}
	frags = append(frags, forLoops(r.geo)...)

	terms := r.geo.OffsetTerms()
	for _, rn := range r.names {
		for _, s := range []string{"accss", "sw_wr", "sw_rd"} {
			r.addSignal(rn.name+"_"+s, logicType(1))
		}
		frags = append(frags, rtl.F("reg_decoder", rtl.P{
			"name":    rn.name,
			"g":       g,
			"addr":    rn.addr,
			"offsets": terms,
		}))
	}
	frags = append(frags, rtl.F("blank", nil))

	for _, f := range r.fields {
		frags = append(frags, f.Fragments()...)
	}

	for _, rn := range r.names {
		frags = append(frags, r.readData(rn.name)...)
	}
	frags = append(frags, r.interrupts()...)

	frags = append(frags, loopEnds(r.geo)...)
	if opened {
		frags = append(frags, rtl.F("endgenerate", nil))
	}
	r.ctx.closeGenerate(opened)
	r.frags = append(frags, rtl.F("blank", nil))
}

// Fragments returns the register RTL, fields included
func (r *Register) Fragments() []rtl.Fragment { return r.frags }

// readData concatenates the fields readable through name, most
// significant first, filling unused bits with the reserved value
func (r *Register) readData(name string) []rtl.Fragment {
	g := r.geo.Genvars()
	type slot struct {
		f    *Field
		path string
	}
	var slots []slot
	for _, f := range r.fields {
		if !slices.Contains(f.readableBy, name) {
			continue
		}
		for _, a := range f.sw {
			if a.reg == name {
				slots = append(slots, slot{f, a.path})
				break
			}
		}
	}
	slices.SortFunc(slots, func(a, b slot) int { return b.f.lsb - a.f.lsb })

	var items []string
	next := r.width - 1
	for _, s := range slots {
		if gap := next - s.f.msb; gap > 0 {
			items = append(items, r.rsvd(gap))
		}
		items = append(items, s.f.rdData(s.path))
		next = s.f.lsb - 1
	}
	if next >= 0 {
		items = append(items, r.rsvd(next+1))
	}

	r.addSignal(name+"_data_mux_in", logicType(r.width))
	frags := []rtl.Fragment{rtl.F("assign", rtl.P{
		"lhs": name + "_data_mux_in" + g,
		"rhs": rtl.Expr("concat", rtl.P{"items": items}),
	})}

	if r.external {
		r.addOutput(name+"_ext_wr", logicType(1))
		r.addOutput(name+"_ext_rd", logicType(1))
		r.addInput(name+"_ext_rdy", logicType(1))
		r.addInput(name+"_ext_err", logicType(1))
		return append(frags, rtl.F("reg_external", rtl.P{"name": name, "g": g}))
	}
	r.addSignal(name+"_rdy_mux_in", logicType(1))
	r.addSignal(name+"_err_mux_in", logicType(1))
	return append(frags, rtl.F("reg_internal_ack", rtl.P{"name": name, "g": g}))
}

func (r *Register) rsvd(width int) string {
	return rtl.Expr("rsvd_fill", rtl.P{"width": width, "bit": r.fill})
}

// interrupts reduces the interrupt and halt contributions of the fields
func (r *Register) interrupts() []rtl.Fragment {
	var intr, halt []string
	for _, f := range r.fields {
		if f.intr {
			intr = append(intr, f.intrExpr)
		}
		if f.halt {
			halt = append(halt, f.haltExpr)
		}
	}
	g := r.geo.Genvars()
	var frags []rtl.Fragment
	for _, out := range []struct {
		suffix string
		terms  []string
	}{
		{"intr", intr},
		{"halt", halt},
	} {
		if len(out.terms) == 0 {
			continue
		}
		reduced := make([]string, len(out.terms))
		for i, t := range out.terms {
			reduced[i] = rtl.Expr("reduce", rtl.P{"op": "|", "expr": t})
		}
		r.addOutput(r.name+"_"+out.suffix, logicType(1))
		frags = append(frags, rtl.F("assign", rtl.P{
			"lhs": r.name + "_" + out.suffix + g,
			"rhs": strings.Join(reduced, " || "),
		}))
	}
	return frags
}

// MuxEntries yields one entry per register name and array element
func (r *Register) MuxEntries() iter.Seq[MuxEntry] {
	return func(yield func(MuxEntry) bool) {
		for _, rn := range r.names {
			src := muxSource{
				kind:  EntryRegister,
				path:  rn.node.Path(),
				name:  rn.name,
				sel:   rn.name + "_accss",
				data:  rn.name + "_data_mux_in",
				ready: rn.name + "_rdy_mux_in",
				err:   rn.name + "_err_mux_in",
				base:  rn.addr,
				size:  uint64(r.width / 8),
			}
			if rn.alias {
				src.kind = EntryAlias
			}
			if r.external {
				src.ready, src.err = rn.name+"_ext_rdy", rn.name+"_ext_err"
			}
			for e := range src.expand(r.geo) {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// forLoops opens one generate loop per own dimension of g
func forLoops(g Geometry) []rtl.Fragment {
	frags := make([]rtl.Fragment, len(g.Own))
	for i, d := range g.Own {
		frags[i] = rtl.F("for_start", rtl.P{"genvar": Genvar(g.ParentDepth + i), "limit": d})
	}
	return frags
}

func loopEnds(g Geometry) []rtl.Fragment {
	frags := make([]rtl.Fragment, len(g.Own))
	for i := range g.Own {
		frags[i] = rtl.F("for_end", rtl.P{"genvar": Genvar(g.ParentDepth + len(g.Own) - 1 - i)})
	}
	return frags
}
