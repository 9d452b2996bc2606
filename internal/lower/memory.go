package lower

import (
	"iter"
	"math/bits"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// Memory is a pass-through address window. Memories forward accesses to
// an external storage block; nested address-maps forward them to the
// module lowered for their type.
type Memory struct {
	base
	kind   EntryKind
	prefix string
	width  int
	lower  uint64
	size   uint64
	// Module is the lowered nested address-map behind a window
	Module *AddrMap

	frags []rtl.Fragment
}

func newMemory(ctx *Context, n *rdl.Node, parent Geometry) (*Memory, error) {
	d := ctx.Diag.At(n.Path())
	if n.MemWidth <= 0 || bits.OnesCount(uint(n.MemWidth)) != 1 {
		return nil, d.Fatal(diag.KindMemoryWidth, "memory width %d is not a power of 2", n.MemWidth)
	}

	size := n.Size
	if n.IsArray() {
		expected := n.MemEntries * uint64(n.MemWidth) / 8
		if n.ArrayStride != expected {
			d.Sanity("memory stride %d differs from its depth %d x %d / 8 = %d; the external block must account for it",
				n.ArrayStride, n.MemEntries, n.MemWidth, expected)
		}
		size = n.ArrayStride
		for _, dim := range n.ArrayDimensions {
			size *= uint64(dim)
		}
		d.Info("memory array is exposed as one window of %d bytes", size)
	}
	if size == 0 {
		size = n.MemEntries * uint64(n.MemWidth) / 8
	}

	m := &Memory{
		base:  newBase(n, ctx.owner, parent),
		kind:  EntryMemory,
		width: n.MemWidth,
		lower: n.AbsoluteAddress - ctx.base,
		size:  size,
	}
	m.geo = NewGeometry(parent, nil, 0)
	m.prefix = m.name + "_mem"

	shift := bits.Len(uint(max(m.width/8, 1))) - 1
	m.build(ctx, n.Access("sw"), shift)
	return m, nil
}

// newWindow lowers a nested address-map: its module is built or reused,
// and the parent gets a window forwarding the map's address range
func newWindow(ctx *Context, n *rdl.Node, parent Geometry) (*Memory, error) {
	mod, err := ctx.nestedAddrMap(n)
	if err != nil {
		return nil, err
	}
	size := n.Size
	if n.IsArray() {
		size = n.ArrayStride
		for _, dim := range n.ArrayDimensions {
			size *= uint64(dim)
		}
	}
	m := &Memory{
		base:   newBase(n, ctx.owner, parent),
		kind:   EntryAddrMap,
		width:  ctx.dataWidth,
		lower:  n.AbsoluteAddress - ctx.base,
		size:   size,
		Module: mod,
	}
	m.geo = NewGeometry(parent, nil, 0)
	m.prefix = m.name + "_win"
	m.build(ctx, rdl.AccessRW, -1)
	return m, nil
}

// build emits the window logic. A negative shift forwards the byte
// address unchanged.
func (m *Memory) build(ctx *Context, sw rdl.AccessType, shift int) {
	n := m.node
	g := m.geo.Genvars()
	addrW := bits.Len64(max(m.size, 1) - 1)
	if shift > 0 {
		addrW -= shift
	}
	addrW = max(addrW, 1)

	frags := []rtl.Fragment{rtl.F("mem_comment", rtl.P{
		"path":    n.Path(),
		"kind":    string(m.kind),
		"width":   m.width,
		"entries": n.MemEntries,
		"lower":   m.lower,
		"upper":   m.lower + m.size,
		"dims":    n.ArrayDimensions,
	})}
	if desc := n.Desc(); desc != "" && ctx.describes(config.DescMemory) {
		frags = append(frags, commentBlock(desc))
	}

	p := m.prefix
	m.addSignal(p+"_active", logicType(1))
	m.addSignal(p+"_data_mux_in", logicType(ctx.dataWidth))
	m.addSignal(p+"_err_mux_in", logicType(1))
	m.addOutput(p+"_req", logicType(1))
	m.addOutput(p+"_addr", logicType(addrW))
	m.addInput(p+"_rdy", logicType(1))
	m.addInput(p+"_err", logicType(1))

	params := rtl.P{
		"p":       p,
		"g":       g,
		"lower":   m.lower,
		"upper":   m.lower + m.size,
		"offsets": m.geo.OffsetTerms(),
		"shift":   shift,
		"read":    sw.CanRead(),
		"write":   sw.CanWrite(),
		"width":   m.width,
		"data_w":  ctx.dataWidth,
		"bytes":   max(m.width/8, 1),
	}
	if sw.CanRead() {
		m.addOutput(p+"_r_vld", logicType(1))
		m.addInput(p+"_data_in", logicType(m.width))
	}
	if sw.CanWrite() {
		m.addOutput(p+"_w_vld", logicType(1))
		m.addOutput(p+"_data", logicType(m.width))
		m.addOutput(p+"_byte_en", logicType(max(m.width/8, 1)))
	}
	frags = append(frags, rtl.F("mem_window", params))
	m.frags = append(frags, rtl.F("blank", nil))
}

func (m *Memory) Fragments() []rtl.Fragment { return m.frags }

// Window returns the address range [lower, upper) relative to the module
func (m *Memory) Window() (lower, upper uint64) { return m.lower, m.lower + m.size }

func (m *Memory) Kind() EntryKind { return m.kind }

// MuxEntries yields one entry per element of the inherited dimensions
func (m *Memory) MuxEntries() iter.Seq[MuxEntry] {
	return muxSource{
		kind:  m.kind,
		path:  m.node.Path(),
		name:  m.prefix,
		sel:   m.prefix + "_active",
		data:  m.prefix + "_data_mux_in",
		ready: m.prefix + "_rdy",
		err:   m.prefix + "_err_mux_in",
		base:  m.lower,
		size:  m.size,
	}.expand(m.geo)
}
