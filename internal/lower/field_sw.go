package lower

import (
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// lane is the slice of a field that one bus byte covers
type lane struct {
	index              int
	busMSB, busLSB     int
	fieldMSB, fieldLSB int
}

// lanes splits the field into its byte lanes, least significant first
func (f *Field) lanes() []lane {
	var out []lane
	for i := f.lsbyte; i <= f.msbyte; i++ {
		l := lane{index: i, busMSB: 8*(i+1) - 1, busLSB: 8 * i}
		if i == f.msbyte {
			l.busMSB = f.msb
		}
		if i == f.lsbyte {
			l.busLSB = f.lsb
		}
		l.fieldMSB, l.fieldLSB = l.busMSB-f.lsb, l.busLSB-f.lsb
		out = append(out, l)
	}
	return out
}

func (l lane) params(q string) rtl.P {
	return rtl.P{
		"i":         l.index,
		"q":         q,
		"msb_bus":   l.busMSB,
		"lsb_bus":   l.busLSB,
		"msb_field": l.fieldMSB,
		"lsb_field": l.fieldLSB,
		"width":     l.busMSB - l.busLSB + 1,
	}
}

// addSWAccess adds the software view of the field through register reg.
// The primary register calls it from newField, aliases from Register.
func (f *Field) addSWAccess(n *rdl.Node, reg, path string) error {
	d := f.diag
	if n != f.node {
		d = f.ctx.Diag.At(n.Path())
	}
	sw := n.Access("sw")
	a := swAccess{node: n, reg: reg, path: path}

	onwrite := n.OnWrite()
	if onwrite != rdl.OnWriteNone && !sw.CanWrite() {
		return d.Fatal(diag.KindOnWriteAccess, "onwrite=%s requires software write access, sw is %s", onwrite, sw)
	}

	if sw.CanWrite() {
		f.writableBy = append(f.writableBy, reg)
		if !f.reg.external {
			a.write = f.swWrite(n, reg, onwrite, d)
		}
	}
	if sw.CanRead() {
		f.readableBy = append(f.readableBy, reg)
		if !f.reg.external {
			a.read = f.swRead(n, reg, d)
		}
	}
	f.sw = append(f.sw, a)
	return nil
}

func (f *Field) swWrite(n *rdl.Node, reg string, onwrite rdl.OnWrite, d *diag.Scope) block {
	cond := ""
	if ref, ok := n.Ref("swwe"); ok {
		cond = f.refSignal(f.ctx.owner, ref)
	} else if n.Bool("swwe") {
		f.addInput(f.name+"_swwe", logicType(1))
		cond = f.sig("swwe")
	} else if ref, ok := n.Ref("swwel"); ok {
		cond = rtl.Expr("negate", rtl.P{"neg": true, "expr": f.refSignal(f.ctx.owner, ref)})
	} else if n.Bool("swwel") {
		f.addInput(f.name+"_swwel", logicType(1))
		cond = rtl.Expr("negate", rtl.P{"neg": true, "expr": f.sig("swwel")})
	}

	tmpl := "onwrite_plain"
	switch onwrite {
	case rdl.OnWriteNone:
	case rdl.OnWriteWUser:
		d.Warn("onwrite=wuser is not supported, the field is written as a plain field")
	default:
		tmpl = "onwrite_" + string(onwrite)
	}

	frags := []rtl.Fragment{rtl.F("sw_write_start", rtl.P{
		"wr":   reg + "_sw_wr" + f.geo.Genvars(),
		"cond": cond,
	})}
	for _, l := range f.lanes() {
		p := l.params(f.q())
		p["rhs"] = rtl.Expr(tmpl, p)
		frags = append(frags, rtl.F("sw_write_lane", p))
	}
	return block{frags: append(frags, rtl.F("end", nil))}
}

func (f *Field) swRead(n *rdl.Node, reg string, d *diag.Scope) block {
	onread := n.OnRead()
	switch {
	case onread == rdl.OnReadNone:
		return block{}
	case onread == rdl.OnReadRUser:
		d.Warn("onread=ruser is not supported and is ignored")
		return block{}
	case f.decision.Storage != Flops:
		d.Sanity("onread=%s has no effect on %s storage; use swacc to signal reads to hardware", onread, f.decision.Storage)
		return block{}
	}

	fill := "0"
	if onread == rdl.OnReadRSet {
		fill = "1"
	}
	frags := []rtl.Fragment{rtl.F("sw_read_start", rtl.P{"rd": reg + "_sw_rd" + f.geo.Genvars()})}
	for _, l := range f.lanes() {
		p := l.params(f.q())
		p["rhs"] = rtl.Expr("fill", rtl.P{"width": 0, "bit": fill})
		frags = append(frags, rtl.F("sw_write_lane", p))
	}
	return block{frags: append(frags, rtl.F("end", nil))}
}

// buildSWModAcc drives the swmod and swacc outputs. It runs at finalize
// so every alias counts.
func (f *Field) buildSWModAcc() {
	n := f.node
	strobe := func(reg, kind string) string {
		return rtl.Expr("sw_strobe", rtl.P{
			"access": reg + "_sw_" + kind + f.geo.Genvars(),
			"msbyte": f.msbyte,
			"lsbyte": f.lsbyte,
		})
	}

	if n.Bool("swmod") {
		var terms []string
		for _, r := range f.writableBy {
			terms = append(terms, strobe(r, "wr"))
		}
		if n.OnRead() != rdl.OnReadNone {
			for _, r := range f.readableBy {
				terms = append(terms, strobe(r, "rd"))
			}
		}
		f.strobeOutput("swmod", terms)
	}
	if n.Bool("swacc") {
		var terms []string
		for _, r := range f.readableBy {
			terms = append(terms, strobe(r, "rd"))
		}
		for _, r := range f.writableBy {
			terms = append(terms, strobe(r, "wr"))
		}
		f.strobeOutput("swacc", terms)
	}
}

func (f *Field) strobeOutput(prop string, terms []string) {
	if len(terms) == 0 {
		f.diag.Sanity("%s is set but software can never trigger it; tied to 0", prop)
	}
	f.addOutput(f.name+"_"+prop, logicType(1))
	f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(prop), "rhs": joinOr(terms)}))
}
