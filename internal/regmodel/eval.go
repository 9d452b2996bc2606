package regmodel

import (
	"slices"

	"github.com/robert-at-pretension-io/rdl2sv/internal/lower"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
)

// update is one candidate of the access chain. Active updates are tried
// in chain order and the first one wins.
type update func() (uint64, bool)

// next computes the value the element holds after the clock edge
func (fs *fieldState) next(a *access) uint64 {
	d := fs.f.Decision()
	switch d.Storage {
	case lower.Wire:
		return fs.in
	case lower.Const:
		return fs.q
	}

	var writes, reads []update
	for _, v := range fs.f.Views() {
		writes = append(writes, fs.swWrite(a, v))
		reads = append(reads, fs.swRead(a, v))
	}
	hw := []update{fs.setClr, fs.hwWrite}

	var chain []update
	if d.Precedence == rdl.PrecedenceHW {
		chain = slices.Concat(hw, writes, reads)
	} else {
		chain = slices.Concat(writes, reads, hw)
	}
	chain = append(chain, fs.singlepulse)

	for _, u := range chain {
		if v, ok := u(); ok {
			return v
		}
	}
	return fs.q
}

func (fs *fieldState) swWrite(a *access, v lower.FieldView) update {
	return func() (uint64, bool) {
		if a == nil || !a.write || v.Register != a.name || !v.Node.Access("sw").CanWrite() {
			return 0, false
		}
		q := fs.q
		for _, l := range fs.lanes() {
			if a.byteEn&(1<<l.index) == 0 {
				continue
			}
			bits := (a.data >> l.busLSB) & widthMask(l.width)
			old := (q >> l.fieldLSB) & widthMask(l.width)
			q = place(q, onWrite(v.Node.OnWrite(), old, bits, l.width), l.fieldLSB, l.width)
		}
		return q, true
	}
}

func (fs *fieldState) swRead(a *access, v lower.FieldView) update {
	return func() (uint64, bool) {
		if a == nil || !a.read || v.Register != a.name || !v.Node.Access("sw").CanRead() {
			return 0, false
		}
		var fill uint64
		switch v.Node.OnRead() {
		case rdl.OnReadRClr:
		case rdl.OnReadRSet:
			fill = ^uint64(0)
		default:
			return 0, false
		}
		q := fs.q
		for _, l := range fs.lanes() {
			if a.byteEn&(1<<l.index) != 0 {
				q = place(q, fill, l.fieldLSB, l.width)
			}
		}
		return q, true
	}
}

func (fs *fieldState) setClr() (uint64, bool) {
	n := fs.node()
	switch {
	case n.Bool("hwset") && fs.pulses[HWSet]:
		return fs.mask(), true
	case n.Bool("hwclr") && fs.pulses[HWClr]:
		return 0, true
	}
	return 0, false
}

func (fs *fieldState) hwWrite() (uint64, bool) {
	n := fs.node()
	switch {
	case n.Bool("intr") && !n.Bool("sticky") && !n.Bool("stickybit"):
		return fs.in, true
	case n.Bool("intr"):
		return fs.sticky(n.InterruptType())
	case n.Bool("sticky") || n.Bool("stickybit"):
		return fs.sticky(rdl.IntrLevel)
	case n.Bool("counter"):
		return fs.count()
	case n.Access("hw").CanWrite():
		if n.Bool("we") || n.Bool("wel") {
			return fs.in, fs.pulses[HWWrite]
		}
		return fs.in, true
	}
	return 0, false
}

func (fs *fieldState) sticky(kind rdl.InterruptType) (uint64, bool) {
	var latch uint64
	switch kind {
	case rdl.IntrPosedge:
		latch = fs.in &^ fs.trigQ
	case rdl.IntrNegedge:
		latch = ^fs.in & fs.trigQ
	case rdl.IntrBothedge:
		latch = fs.in ^ fs.trigQ
	default:
		latch = fs.in
	}
	latch &= fs.mask()
	if fs.node().Bool("stickybit") {
		return fs.q | latch, latch != 0
	}
	return latch, latch != 0 && fs.q == 0
}

// count follows the counter update: saturation first, then the wrapped sum
func (fs *fieldState) count() (uint64, bool) {
	n := fs.node()
	w := fs.f.Width()
	incr, decr := fs.pulses[Incr], fs.pulses[Decr]

	next := int64(fs.q)
	if v, ok := counterStep(n, "incr"); ok && incr {
		next += int64(v)
	}
	if v, ok := counterStep(n, "decr"); ok && decr {
		next -= int64(v)
	}

	if sat, ok := limit(n, "incrsaturate", fs.mask()); ok && next >= 0 && uint64(next) > sat {
		return sat, true
	}
	if dsat, ok := limit(n, "decrsaturate", 0); ok && (next < 0 || uint64(next) < dsat) {
		return dsat, true
	}
	if incr || decr {
		return uint64(next) & widthMask(w), true
	}
	return 0, false
}

// counterStep returns the amount one strobe moves the counter by. Rails with a
// step width are driven by an input the model holds at 1.
func counterStep(n *rdl.Node, dir string) (uint64, bool) {
	if v, ok := n.Int(dir + "value"); ok {
		return v, v != 0
	}
	return 1, true
}

func limit(n *rdl.Node, prop string, def uint64) (uint64, bool) {
	if v, ok := n.Int(prop); ok {
		return v, true
	}
	if _, ok := n.Ref(prop); ok {
		return 0, false
	}
	return def, n.Bool(prop)
}

func (fs *fieldState) singlepulse() (uint64, bool) {
	return 0, fs.node().Bool("singlepulse")
}

// lane mirrors the byte lanes of the RTL
type lane struct {
	index    int
	busLSB   int
	fieldLSB int
	width    int
}

func (fs *fieldState) lanes() []lane {
	lsb, msb := fs.f.LSB(), fs.f.MSB()
	var out []lane
	for i := lsb / 8; i <= msb/8; i++ {
		lo, hi := max(8*i, lsb), min(8*i+7, msb)
		out = append(out, lane{index: i, busLSB: lo, fieldLSB: lo - lsb, width: hi - lo + 1})
	}
	return out
}

// place replaces width bits of q at lsb with v
func place(q, v uint64, lsb, width int) uint64 {
	m := widthMask(width) << lsb
	return q&^m | (v<<lsb)&m
}

func onWrite(kind rdl.OnWrite, old, data uint64, width int) uint64 {
	m := widthMask(width)
	switch kind {
	case rdl.OnWriteWOSet:
		return old | data
	case rdl.OnWriteWOClr:
		return old &^ data
	case rdl.OnWriteWOT:
		return old ^ data
	case rdl.OnWriteWZS:
		return (old | ^data) & m
	case rdl.OnWriteWZC:
		return old & data
	case rdl.OnWriteWZT:
		return (old ^ ^data) & m
	case rdl.OnWriteWClr:
		return 0
	case rdl.OnWriteWSet:
		return m
	}
	return data
}
