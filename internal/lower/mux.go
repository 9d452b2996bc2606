package lower

import (
	"iter"
	"slices"
)

// EntryKind tells what an addressable unit is
type EntryKind string

const (
	EntryRegister EntryKind = "reg"
	EntryAlias    EntryKind = "alias"
	EntryMemory   EntryKind = "mem"
	EntryAddrMap  EntryKind = "addrmap"
)

// MuxEntry is one arm of the read multiplexer, already qualified with a
// concrete index for array units
type MuxEntry struct {
	Kind EntryKind
	// Path is the hierarchical path of the unit, with the index appended
	Path string
	Name string
	// Unit is Name without the index, Index the element it addresses
	Unit  string
	Index []int

	Select string
	Data   string
	Ready  string
	Error  string

	Address uint64
	Size    uint64
}

// muxSource describes the signals of one addressable name before it is
// expanded over an index space
type muxSource struct {
	kind       EntryKind
	path, name string
	sel, data  string
	ready, err string
	base, size uint64
}

// expand yields one entry per index tuple of g. The iterator can be
// ranged over any number of times.
func (m muxSource) expand(g Geometry) iter.Seq[MuxEntry] {
	return func(yield func(MuxEntry) bool) {
		for idx := range g.IndexSpace() {
			suffix := IndexSuffix(idx)
			e := MuxEntry{
				Kind:    m.kind,
				Path:    m.path + suffix,
				Name:    m.name + suffix,
				Unit:    m.name,
				Index:   slices.Clone(idx),
				Select:  m.sel + suffix,
				Data:    m.data + suffix,
				Ready:   m.ready + suffix,
				Error:   m.err + suffix,
				Address: g.Address(m.base, idx),
				Size:    m.size,
			}
			if !yield(e) {
				return
			}
		}
	}
}
