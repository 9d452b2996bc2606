package lower

import (
	"iter"

	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// Direction of a module port
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Port is a module port contributed by a node
type Port struct {
	Name string
	Dir  Direction
	// Type is the full SystemVerilog type, e.g. "logic [3:0]" or an enum
	Type string
	Dims []int
}

// Signal is an internal signal declared at module scope
type Signal struct {
	Name string
	Type string
	Dims []int
}

// Reset is a reset input of the module
type Reset struct {
	Name      string
	ActiveLow bool
	Async     bool
}

// Node is implemented by every lowered component. Ports, Signals, Resets
// and TypeDefs return the node's own contributions; the All* folds walk a
// subtree. Fragments returns the node's RTL including its children's.
type Node interface {
	Path() string
	Ports() []Port
	Signals() []Signal
	Resets() []Reset
	TypeDefs() []TypeDef
	// Depth is the number of array dimensions, inherited ones included
	Depth() int
	Fragments() []rtl.Fragment
	MuxEntries() iter.Seq[MuxEntry]
	Children() []Node
}

// base carries what every component shares
type base struct {
	node *rdl.Node
	geo  Geometry
	// name is the path below the owning address-map joined with "__"
	name string

	ports    []Port
	signals  []Signal
	resets   []Reset
	typedefs []TypeDef
	children []Node
}

func newBase(n *rdl.Node, owner *rdl.Node, parent Geometry) base {
	return base{
		node: n,
		geo:  NewGeometry(parent, n.ArrayDimensions, n.ArrayStride),
		name: n.RelPath(owner, "__"),
	}
}

func (b *base) Path() string { return b.node.Path() }
func (b *base) Name() string { return b.name }
func (b *base) Ports() []Port { return b.ports }
func (b *base) Signals() []Signal { return b.signals }
func (b *base) Resets() []Reset { return b.resets }
func (b *base) TypeDefs() []TypeDef { return b.typedefs }
func (b *base) Depth() int { return len(b.geo.Total) }
func (b *base) Children() []Node { return b.children }
func (b *base) Geometry() Geometry { return b.geo }
func (b *base) RDL() *rdl.Node { return b.node }
func (b *base) MuxEntries() iter.Seq[MuxEntry] {
	return func(func(MuxEntry) bool) {}
}

func (b *base) addInput(name, typ string) {
	b.ports = append(b.ports, Port{Name: name, Dir: Input, Type: typ, Dims: b.geo.Total})
}

func (b *base) addOutput(name, typ string) {
	b.ports = append(b.ports, Port{Name: name, Dir: Output, Type: typ, Dims: b.geo.Total})
}

func (b *base) addSignal(name, typ string) {
	b.signals = append(b.signals, Signal{Name: name, Type: typ, Dims: b.geo.Total})
}

// logicType renders a packed logic type of width bits, scalar for one bit
func logicType(width int) string {
	return rtl.Expr("logic_type", rtl.P{"width": width, "vector": false})
}

// vectorType is logicType that stays a vector at one bit, for signals that
// are bit- or part-selected
func vectorType(width int) string {
	return rtl.Expr("logic_type", rtl.P{"width": width, "vector": true})
}

func fold[T any](n Node, own func(Node) []T, key func(T) string) []T {
	seen := make(map[string]bool)
	var out []T
	var walk func(Node)
	walk = func(n Node) {
		for _, v := range own(n) {
			k := key(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

// AllPorts collects the ports of a subtree, first occurrence of a name wins
func AllPorts(n Node) []Port {
	return fold(n, Node.Ports, func(p Port) string { return p.Name })
}

func AllSignals(n Node) []Signal {
	return fold(n, Node.Signals, func(s Signal) string { return s.Name })
}

func AllResets(n Node) []Reset {
	return fold(n, Node.Resets, func(r Reset) string { return r.Name })
}

// AllTypeDefs keeps every occurrence; packages deduplicate and check them
func AllTypeDefs(n Node) []TypeDef {
	var out []TypeDef
	var walk func(Node)
	walk = func(n Node) {
		out = append(out, n.TypeDefs()...)
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

// AllMuxEntries chains the mux entries of a subtree in source order
func AllMuxEntries(n Node) iter.Seq[MuxEntry] {
	return func(yield func(MuxEntry) bool) {
		var walk func(Node) bool
		walk = func(n Node) bool {
			for e := range n.MuxEntries() {
				if !yield(e) {
					return false
				}
			}
			for _, c := range n.Children() {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(n)
	}
}

// MaxDimDepth returns the deepest array nesting found in a subtree
func MaxDimDepth(n Node) int {
	depth := n.Depth()
	for _, c := range n.Children() {
		depth = max(depth, MaxDimDepth(c))
	}
	return depth
}
