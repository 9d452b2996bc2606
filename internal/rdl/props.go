package rdl

import (
	"encoding/json"
	"strconv"
)

// Props is the resolved property bag of a node. Values are bool,
// json.Number, string, *Ref or *Enum.
type Props map[string]any

// AccessType is a software or hardware access mode
type AccessType string

const (
	AccessRW AccessType = "rw"
	AccessR  AccessType = "r"
	AccessW  AccessType = "w"
	AccessNA AccessType = "na"
)

// CanRead reports read access
func (a AccessType) CanRead() bool { return a == AccessRW || a == AccessR }

// CanWrite reports write access
func (a AccessType) CanWrite() bool { return a == AccessRW || a == AccessW }

// OnWrite is a write side effect
type OnWrite string

const (
	OnWriteNone  OnWrite = ""
	OnWriteWOSet OnWrite = "woset"
	OnWriteWOClr OnWrite = "woclr"
	OnWriteWOT   OnWrite = "wot"
	OnWriteWZS   OnWrite = "wzs"
	OnWriteWZC   OnWrite = "wzc"
	OnWriteWZT   OnWrite = "wzt"
	OnWriteWClr  OnWrite = "wclr"
	OnWriteWSet  OnWrite = "wset"
	OnWriteWUser OnWrite = "wuser"
)

// OnRead is a read side effect
type OnRead string

const (
	OnReadNone  OnRead = ""
	OnReadRClr  OnRead = "rclr"
	OnReadRSet  OnRead = "rset"
	OnReadRUser OnRead = "ruser"
)

// Precedence decides who wins when software and hardware update a field
// in the same cycle
type Precedence string

const (
	PrecedenceSW Precedence = "sw"
	PrecedenceHW Precedence = "hw"
)

// InterruptType selects how an interrupt trigger is sampled
type InterruptType string

const (
	IntrLevel    InterruptType = "level"
	IntrPosedge  InterruptType = "posedge"
	IntrNegedge  InterruptType = "negedge"
	IntrBothedge InterruptType = "bothedge"
)

// Ref points at another node, or at a property of another node such as
// a counter's overflow.
type Ref struct {
	Target string `json:"ref"`
	Prop   string `json:"prop,omitempty"`

	Node *Node `json:"-"`
}

// Enum is an encode property
type Enum struct {
	Name    string       `json:"name"`
	Scope   []ScopeEntry `json:"scope,omitempty"`
	Members []EnumMember `json:"members"`
}

// ScopeEntry is one lexical scope the enum was declared in, outermost first
type ScopeEntry struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

// EnumMember is a named encoding value
type EnumMember struct {
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
	Desc  string      `json:"desc,omitempty"`
}

// Uint returns the member value
func (m EnumMember) Uint() uint64 {
	v, _ := strconv.ParseUint(string(m.Value), 0, 64)
	return v
}

// Access returns the "sw" or "hw" access mode, defaulting to rw
func (n *Node) Access(name string) AccessType {
	if s, ok := n.String(name); ok && s != "" {
		return AccessType(s)
	}
	return AccessRW
}

func (n *Node) OnWrite() OnWrite {
	s, _ := n.String("onwrite")
	return OnWrite(s)
}

func (n *Node) OnRead() OnRead {
	s, _ := n.String("onread")
	return OnRead(s)
}

func (n *Node) Precedence() Precedence {
	if s, ok := n.String("precedence"); ok && s == string(PrecedenceHW) {
		return PrecedenceHW
	}
	return PrecedenceSW
}

func (n *Node) InterruptType() InterruptType {
	if s, ok := n.String("intrtype"); ok && s != "" {
		return InterruptType(s)
	}
	return IntrLevel
}

// Bool reports whether a property is set: boolean true, a reference or a
// non-zero number
func (n *Node) Bool(name string) bool {
	switch v := n.Properties[name].(type) {
	case bool:
		return v
	case *Ref:
		return v != nil
	case json.Number:
		return v != "0"
	case string:
		return v != ""
	case *Enum:
		return v != nil
	}
	return false
}

// Int returns a numeric property
func (n *Node) Int(name string) (uint64, bool) {
	switch v := n.Properties[name].(type) {
	case json.Number:
		u, err := strconv.ParseUint(string(v), 0, 64)
		if err != nil {
			return 0, false
		}
		return u, true
	case bool:
		// A boolean is not a magnitude
		return 0, false
	}
	return 0, false
}

// IsBool reports whether a property holds a boolean
func (n *Node) IsBool(name string) bool {
	_, ok := n.Properties[name].(bool)
	return ok
}

// Ref returns a reference property
func (n *Node) Ref(name string) (*Ref, bool) {
	r, ok := n.Properties[name].(*Ref)
	return r, ok && r != nil
}

// String returns a string property
func (n *Node) String(name string) (string, bool) {
	s, ok := n.Properties[name].(string)
	return s, ok
}

// Encoding returns the encode property
func (n *Node) Encoding() (*Enum, bool) {
	e, ok := n.Properties["encode"].(*Enum)
	return e, ok && e != nil
}

// Desc returns the description property
func (n *Node) Desc() string {
	s, _ := n.String("desc")
	return s
}

// ResetSpec describes how a field is reset
type ResetSpec struct {
	// Signal is the reset port name, empty when no reset signal is bound
	Signal    string
	Async     bool
	ActiveLow bool

	HasValue bool
	Value    uint64
	// ValueRef is set when the reset value comes from another node
	ValueRef *Ref
}

// Edge returns the sensitivity edge keyword of the reset
func (r ResetSpec) Edge() string {
	if r.ActiveLow {
		return "negedge"
	}
	return "posedge"
}

// Reset resolves the reset and resetsignal properties of a field
func (n *Node) Reset() ResetSpec {
	var rst ResetSpec
	if ref, ok := n.Ref("resetsignal"); ok && ref.Node != nil {
		rst.Signal = ref.Node.InstName
		rst.Async = ref.Node.Bool("async")
		rst.ActiveLow = ref.Node.Bool("activelow")
	}
	if v, ok := n.Int("reset"); ok {
		rst.HasValue = true
		rst.Value = v
	} else if ref, ok := n.Ref("reset"); ok {
		rst.HasValue = true
		rst.ValueRef = ref
	}
	return rst
}
