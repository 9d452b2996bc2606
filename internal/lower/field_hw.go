package lower

import (
	"math/bits"
	"strings"

	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// buildHW defines the hardware side of the field. It runs once, for the
// primary register only.
func (f *Field) buildHW() error {
	n := f.node

	switch f.decision.Storage {
	case Wire:
		f.hwWrite = block{frags: []rtl.Fragment{rtl.F("assign", rtl.P{
			"lhs": f.q(), "rhs": f.hwInput(),
		})}, exclusive: true}
	case Const:
		value := rtl.Expr("unknown_const", nil)
		if f.decision.Reset.HasValue {
			value = f.resetValue()
		}
		f.hwWrite = block{frags: []rtl.Fragment{rtl.F("assign", rtl.P{
			"lhs": f.q(), "rhs": value,
		})}, exclusive: true}
	default:
		switch {
		case n.Bool("intr"):
			f.buildInterrupt()
		case n.Bool("sticky") || n.Bool("stickybit"):
			f.buildSticky(rdl.IntrLevel)
		case n.Bool("counter"):
			if err := f.buildCounter(); err != nil {
				return err
			}
		case n.Access("hw").CanWrite():
			f.buildHWWrite()
		}
		f.buildSetClr()
		if n.Bool("singlepulse") {
			f.singlepulse = block{frags: []rtl.Fragment{rtl.F("singlepulse", rtl.P{"q": f.q()})}}
		}
	}

	f.buildHWRead()
	f.buildCombo()
	return nil
}

// hwInput is the value hardware writes: the 'next' reference or an input port
func (f *Field) hwInput() string {
	if ref, ok := f.node.Ref("next"); ok {
		return f.refSignal(f.ctx.owner, ref)
	}
	f.addInput(f.name+"_in", f.typ)
	return f.sig("in")
}

// flag resolves a property that is either a boolean, creating a one-bit
// input port, or a reference
func (f *Field) flag(prop, port string) (string, bool) {
	n := f.node
	if ref, ok := n.Ref(prop); ok {
		return f.refSignal(f.ctx.owner, ref), true
	}
	if n.Bool(prop) {
		f.addInput(f.name+"_"+port, logicType(1))
		return f.sig(port), true
	}
	return "", false
}

// enableMask returns the per-bit gate of hardware updates, if any
func (f *Field) enableMask() (signal string, negate bool) {
	if s, ok := f.flagWide("hwenable"); ok {
		return s, false
	}
	if s, ok := f.flagWide("hwmask"); ok {
		return s, true
	}
	return "", false
}

// flagWide is flag for field-wide vectors
func (f *Field) flagWide(prop string) (string, bool) {
	n := f.node
	if ref, ok := n.Ref(prop); ok {
		return f.refSignal(f.ctx.owner, ref), true
	}
	if n.Bool(prop) {
		f.addInput(f.name+"_"+prop, f.typ)
		return f.sig(prop), true
	}
	return "", false
}

func (f *Field) buildHWWrite() {
	n := f.node
	cond, hasCond := f.flag("we", "hw_wr")
	negate := false
	if !hasCond {
		cond, hasCond = f.flag("wel", "hw_wr")
		negate = hasCond
	}
	if _, ok := n.Ref("next"); ok && hasCond {
		f.diag.Info("field uses 'next' together with we/wel")
	}

	src := f.hwInput()
	mask, maskNeg := f.enableMask()

	var frags []rtl.Fragment
	if hasCond {
		frags = append(frags, rtl.F("if_begin", rtl.P{"cond": rtl.Expr("negate", rtl.P{"neg": negate, "expr": cond})}))
	} else {
		frags = append(frags, rtl.F("begin", nil))
	}
	frags = append(frags, f.maskedAssign(src, "", mask, maskNeg)...)
	frags = append(frags, rtl.F("end", nil))
	f.hwWrite = block{frags: frags, exclusive: !hasCond}
}

// maskedAssign assigns src to the storage, bit by bit when a mask gates
// it. A non-empty bit replaces src[idx] in the per-bit form.
func (f *Field) maskedAssign(src, bit, mask string, negate bool) []rtl.Fragment {
	if mask == "" {
		return []rtl.Fragment{rtl.F("nb_assign", rtl.P{"lhs": f.q(), "rhs": src})}
	}
	return []rtl.Fragment{rtl.F("masked_assign", rtl.P{
		"q":     f.q(),
		"src":   src,
		"bit":   bit,
		"mask":  mask,
		"neg":   negate,
		"width": f.width,
	})}
}

func (f *Field) buildSetClr() {
	set, hasSet := f.flag("hwset", "hwset")
	clr, hasClr := f.flag("hwclr", "hwclr")
	if !hasSet && !hasClr {
		return
	}
	mask, maskNeg := f.enableMask()

	var frags []rtl.Fragment
	emit := func(cond, bit string) {
		if len(frags) > 0 {
			frags = append(frags, rtl.F("else", nil))
		}
		fill := rtl.Expr("fill", rtl.P{"width": f.width, "bit": bit})
		frags = append(frags, rtl.F("if_begin", rtl.P{"cond": cond}))
		frags = append(frags, f.maskedAssign(fill, rtl.Expr("fill", rtl.P{"width": 1, "bit": bit}), mask, maskNeg)...)
		frags = append(frags, rtl.F("end", nil))
	}
	if hasSet {
		emit(set, "1")
	}
	if hasClr {
		emit(clr, "0")
	}
	f.hwSetClr = block{frags: frags}
}

// trigger is the input that sets a sticky or interrupt field
func (f *Field) trigger() string {
	return f.hwInput()
}

func (f *Field) buildSticky(kind rdl.InterruptType) {
	n := f.node
	trigger := f.trigger()
	f.addSignal(f.name+"_sticky_latch", f.typ)

	p := rtl.P{
		"latch":     f.sig("sticky_latch"),
		"trigger":   trigger,
		"trigger_q": f.sig("trigger_q"),
	}
	if kind != rdl.IntrLevel {
		f.addSignal(f.name+"_trigger_q", f.typ)
		rst := f.decision.Reset
		f.footer = append(f.footer, rtl.F("trigger_ff", rtl.P{
			"async":     rst.Signal != "" && rst.Async,
			"edge":      rst.Edge(),
			"rst":       rst.Signal,
			"activelow": rst.ActiveLow,
			"trigger":   trigger,
			"trigger_q": f.sig("trigger_q"),
		}))
		if f.width > 1 && n.Bool("sticky") {
			f.diag.Info("multi-bit sticky %s interrupt latches when any bit changes", kind)
		}
	}
	f.footer = append(f.footer, rtl.F("sticky_latch_"+string(kind), p))

	tmpl := "sticky"
	if n.Bool("stickybit") {
		tmpl = "stickybit"
	}
	f.hwWrite = block{frags: []rtl.Fragment{rtl.F(tmpl, rtl.P{
		"q": f.q(), "latch": f.sig("sticky_latch"),
	})}}
}

func (f *Field) buildInterrupt() {
	n := f.node
	f.intr = true

	if n.Bool("sticky") || n.Bool("stickybit") {
		f.buildSticky(n.InterruptType())
	} else {
		f.hwWrite = block{frags: []rtl.Fragment{
			rtl.F("begin", nil),
			rtl.F("nb_assign", rtl.P{"lhs": f.q(), "rhs": f.trigger()}),
			rtl.F("end", nil),
		}, exclusive: true}
	}

	owner := f.ctx.owner
	f.intrExpr = f.q()
	if ref, ok := n.Ref("mask"); ok {
		f.intrExpr = rtl.Expr("and_mask", rtl.P{"expr": f.q(), "mask": f.refSignal(owner, ref), "neg": true})
	} else if ref, ok := n.Ref("enable"); ok {
		f.intrExpr = rtl.Expr("and_mask", rtl.P{"expr": f.q(), "mask": f.refSignal(owner, ref), "neg": false})
	}

	if ref, ok := n.Ref("haltmask"); ok {
		f.halt = true
		f.haltExpr = rtl.Expr("and_mask", rtl.P{"expr": f.q(), "mask": f.refSignal(owner, ref), "neg": true})
	} else if ref, ok := n.Ref("haltenable"); ok {
		f.halt = true
		f.haltExpr = rtl.Expr("and_mask", rtl.P{"expr": f.q(), "mask": f.refSignal(owner, ref), "neg": false})
	}
}

// buildHWRead drives the output port hardware reads the field through
func (f *Field) buildHWRead() {
	if !f.node.Access("hw").CanRead() {
		return
	}
	typ, rhs := f.typ, f.q()
	if f.enumType != "" {
		typ = f.enumType
		rhs = rtl.Expr("cast", rtl.P{"type": f.enumType, "expr": f.q()})
	}
	f.addOutput(f.name+"_r", typ)
	f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig("r"), "rhs": rhs}))
}

var comboOps = []struct{ prop, op string }{
	{"anded", "&"},
	{"ored", "|"},
	{"xored", "^"},
}

func (f *Field) buildCombo() {
	for _, c := range comboOps {
		if !f.node.Bool(c.prop) {
			continue
		}
		f.addOutput(f.name+"_"+c.prop, logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{
			"lhs": f.sig(c.prop),
			"rhs": rtl.Expr("reduce", rtl.P{"op": c.op, "expr": f.q()}),
		}))
	}
}

// counterRail resolves the step of one counter direction. It returns
// false when the rail is forced to zero.
func (f *Field) counterRail(dir string) bool {
	n := f.node
	valProp, widthProp := dir+"value", dir+"width"
	val := f.name + "_" + dir + "_val"
	stepWidth, hasWidth := n.Int(widthProp)

	v, isInt := n.Int(valProp)
	ref, isRef := n.Ref(valProp)
	switch {
	case isInt && v == 0:
		f.addSignal(val, logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(dir + "_val"), "rhs": rtl.Expr("fill", rtl.P{"width": 1, "bit": "0"})}))
		f.addSignal(f.name+"_"+dir, logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(dir), "rhs": rtl.Expr("fill", rtl.P{"width": 1, "bit": "0"})}))
		return false
	case isInt:
		if hasWidth {
			f.diag.Sanity("both %s and %s are set; %s is ignored", valProp, widthProp, widthProp)
		}
		w := bitLen(v)
		f.addSignal(val, logicType(w))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(dir + "_val"), "rhs": sized(w, v)}))
	case isRef:
		if hasWidth {
			f.diag.Sanity("both %s and %s are set; %s is ignored", valProp, widthProp, widthProp)
		}
		w := refWidth(ref)
		if w > f.width {
			f.diag.Sanity("%s signal %s is %d bits wide, wider than the %d-bit counter", valProp, ref.Target, w, f.width)
		}
		f.addSignal(val, logicType(w))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(dir + "_val"), "rhs": f.refSignal(f.ctx.owner, ref)}))
	case hasWidth && stepWidth > 0:
		f.addInput(val, logicType(int(stepWidth)))
	default:
		f.addSignal(val, logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(dir + "_val"), "rhs": sized(1, 1)}))
	}

	if ref, ok := n.Ref(dir); ok {
		if refWidth(ref) > 1 {
			f.diag.Sanity("%s signal %s is wider than one bit", dir, ref.Target)
		}
		f.addSignal(f.name+"_"+dir, logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{"lhs": f.sig(dir), "rhs": f.refSignal(f.ctx.owner, ref)}))
	} else {
		f.addInput(f.name+"_"+dir, logicType(1))
	}
	return true
}

// limit resolves a saturate or threshold property. Boolean true selects
// the given default.
func (f *Field) limit(prop string, def uint64) (string, bool) {
	n := f.node
	if ref, ok := n.Ref(prop); ok {
		return f.refSignal(f.ctx.owner, ref), true
	}
	if v, ok := n.Int(prop); ok {
		return sized(f.width, v), true
	}
	if n.Bool(prop) {
		return sized(f.width, def), true
	}
	return "", false
}

func (f *Field) buildCounter() error {
	n, w := f.node, f.width
	incrOn := f.counterRail("incr")
	decrOn := f.counterRail("decr")
	if !incrOn && !decrOn {
		return f.diag.Fatal(diag.KindCounterConfig,
			"both incrvalue and decrvalue are forced to 0; leave them unset to use incrwidth/decrwidth")
	}

	wide := logicType(w + 2)
	for _, s := range []string{"incr_upd", "decr_upd", "cnt_next"} {
		f.addSignal(f.name+"_"+s, wide)
	}
	for _, s := range []string{"incr_sat", "decr_sat"} {
		f.addSignal(f.name+"_"+s, logicType(1))
	}

	sat, hasSat := f.limit("incrsaturate", maxValue(w))
	dsat, hasDsat := f.limit("decrsaturate", 0)

	p := rtl.P{
		"q":        f.q(),
		"incr":     f.sig("incr"),
		"decr":     f.sig("decr"),
		"incr_val": f.sig("incr_val"),
		"decr_val": f.sig("decr_val"),
		"incr_upd": f.sig("incr_upd"),
		"decr_upd": f.sig("decr_upd"),
		"next":     f.sig("cnt_next"),
		"incr_sat": f.sig("incr_sat"),
		"decr_sat": f.sig("decr_sat"),
		"width":    w,
		"sat":      sat,
		"has_sat":  hasSat,
		"dsat":     dsat,
		"has_dsat": hasDsat,
	}
	f.footer = append(f.footer, rtl.F("counter_comment", nil), rtl.F("counter_next", p))

	// Overflow and underflow are always derived so other fields can
	// reference them; the ports only exist when requested.
	over, under := sat, dsat
	if !hasSat {
		over = sized(w, maxValue(w))
	}
	for _, fl := range []struct {
		prop, tmpl, limit string
	}{
		{"overflow", "counter_overflow", over},
		{"underflow", "counter_underflow", under},
	} {
		if n.Bool(fl.prop) {
			f.addOutput(f.name+"_"+fl.prop, logicType(1))
		} else {
			f.addSignal(f.name+"_"+fl.prop, logicType(1))
		}
		f.footer = append(f.footer, rtl.F(fl.tmpl, rtl.P{
			"flag":  f.sig(fl.prop),
			"next":  f.sig("cnt_next"),
			"width": w,
			"limit": fl.limit,
		}))
	}

	if thr, ok := f.limit("incrthreshold", maxValue(w)); ok {
		f.addOutput(f.name+"_incr_thr", logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{
			"lhs": f.sig("incr_thr"), "rhs": rtl.Expr("cmp", rtl.P{"a": f.q(), "op": ">=", "b": thr}),
		}))
	}
	if thr, ok := f.limit("decrthreshold", 0); ok {
		f.addOutput(f.name+"_decr_thr", logicType(1))
		f.footer = append(f.footer, rtl.F("assign", rtl.P{
			"lhs": f.sig("decr_thr"), "rhs": rtl.Expr("cmp", rtl.P{"a": f.q(), "op": "<=", "b": thr}),
		}))
	}

	f.hwWrite = block{frags: []rtl.Fragment{rtl.F("counter_update", p)}}
	return nil
}

// bitLen is the width needed to hold v, at least one bit
func bitLen(v uint64) int {
	return max(bits.Len64(v), 1)
}

// joinOr joins expressions with ||, 1'b0 for an empty list
func joinOr(terms []string) string {
	if len(terms) == 0 {
		return rtl.Expr("fill", rtl.P{"width": 1, "bit": "0"})
	}
	return strings.Join(terms, " || ")
}
