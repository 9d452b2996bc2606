// Package lower turns an elaborated register-map tree into RTL fragments.
// Every component computes its fragments and its structural metadata
// (ports, signals, resets, enumerations, mux entries) when it is built;
// the address-map folds them into modules.
package lower

import (
	"cmp"

	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// Result is the outcome of one lowering pass
type Result struct {
	Top *AddrMap
	// Modules lists every emitted module, nested address-maps before the
	// modules instantiating them
	Modules []*AddrMap

	AddrWidth int
	DataWidth int
	// Warnings counts the warnings raised during the pass
	Warnings int
}

// Interface returns the fragments of the shared interface package
func (r *Result) Interface() []rtl.Fragment {
	return InterfacePackage(r.AddrWidth, r.DataWidth)
}

// Packages returns the enumeration packages of every module
func (r *Result) Packages() []Package {
	var out []Package
	for _, m := range r.Modules {
		out = append(out, m.Packages()...)
	}
	return out
}

// Lower runs one lowering pass. Fatal conditions are returned as
// *diag.Error.
func Lower(tree *rdl.Tree, opts Options, rep *diag.Reporter) (*Result, error) {
	ctx := NewContext(opts, rep)
	ctx.dataWidth = dataWidth(tree)
	ctx.Diag.At(tree.Root.Path()).Info("bus data width is %d bits", ctx.dataWidth)

	top, err := newAddrMap(ctx, tree.Root, true)
	if err != nil {
		return nil, err
	}
	return &Result{
		Top:       top,
		Modules:   ctx.modules,
		AddrWidth: ctx.Opts.AddrWidth,
		DataWidth: ctx.dataWidth,
		Warnings:  ctx.Diag.Warnings(),
	}, nil
}

// dataWidth is the widest register or memory of the tree
func dataWidth(tree *rdl.Tree) int {
	w := 0
	tree.Walk(func(n *rdl.Node) bool {
		switch n.Kind {
		case rdl.KindReg:
			w = max(w, cmp.Or(n.RegWidth, 32))
		case rdl.KindMem:
			w = max(w, n.MemWidth)
			return false
		case rdl.KindField:
			return false
		}
		return true
	})
	if w == 0 {
		w = 32
	}
	return w
}
