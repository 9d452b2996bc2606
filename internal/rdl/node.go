// Package rdl holds the elaborated register-map tree handed over by the
// front-end. The tree is read-only once loaded.
package rdl

import (
	"strings"
)

// Kind is the component type of a node
type Kind string

const (
	KindAddrMap Kind = "addrmap"
	KindRegFile Kind = "regfile"
	KindReg     Kind = "reg"
	KindField   Kind = "field"
	KindMem     Kind = "mem"
	KindSignal  Kind = "signal"
)

// Node is one elaborated instance. Array instances are described once,
// with AbsoluteAddress pointing at element zero.
type Node struct {
	Kind            Kind    `json:"kind"`
	InstName        string  `json:"inst_name"`
	TypeName        string  `json:"type_name,omitempty"`
	AbsoluteAddress uint64  `json:"absolute_address,omitempty"`
	Size            uint64  `json:"size,omitempty"`
	ArrayDimensions []int   `json:"array_dimensions,omitempty"`
	ArrayStride     uint64  `json:"array_stride,omitempty"`
	IsAlias         bool    `json:"is_alias,omitempty"`
	AliasPrimary    string  `json:"alias_primary,omitempty"`
	LSB             int     `json:"lsb,omitempty"`
	MSB             int     `json:"msb,omitempty"`
	Width           int     `json:"width,omitempty"`
	RegWidth        int     `json:"regwidth,omitempty"`
	AccessWidth     int     `json:"accesswidth,omitempty"`
	MemEntries      uint64  `json:"mementries,omitempty"`
	MemWidth        int     `json:"memwidth,omitempty"`
	Properties      Props   `json:"properties,omitempty"`
	Children        []*Node `json:"children,omitempty"`

	parent *Node
	path   string
}

// Parent returns the enclosing node, nil for the root
func (n *Node) Parent() *Node { return n.parent }

// Path returns the dotted hierarchical path, starting at the root instance
func (n *Node) Path() string { return n.path }

// IsArray reports whether the node is instantiated as an array
func (n *Node) IsArray() bool { return len(n.ArrayDimensions) > 0 }

// FieldWidth returns the bit width of a field
func (n *Node) FieldWidth() int {
	if n.Width > 0 {
		return n.Width
	}
	return n.MSB - n.LSB + 1
}

// Name returns the type name when set, the instance name otherwise
func (n *Node) Name() string {
	if n.TypeName != "" {
		return n.TypeName
	}
	return n.InstName
}

// RelPath returns the path of n below ancestor, joined with sep. It
// returns the full path when ancestor is not an ancestor of n.
func (n *Node) RelPath(ancestor *Node, sep string) string {
	p := n.path
	if ancestor != nil && strings.HasPrefix(p, ancestor.path+".") {
		p = p[len(ancestor.path)+1:]
	}
	return strings.ReplaceAll(p, ".", sep)
}

// Fields returns the field children of a register
func (n *Node) Fields() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == KindField {
			out = append(out, c)
		}
	}
	return out
}

// Prop returns a property value
func (n *Node) Prop(name string) (any, bool) {
	v, ok := n.Properties[name]
	return v, ok
}
