package lower

import (
	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// RegFile groups registers. It has no storage; it only forwards its
// dimensions to its children and wraps them in generate loops.
type RegFile struct {
	base
	frags []rtl.Fragment
}

func newRegFile(ctx *Context, n *rdl.Node, parent Geometry) (*RegFile, error) {
	rf := &RegFile{base: newBase(n, ctx.owner, parent)}
	d := ctx.Diag.At(n.Path())
	d.Debug("register file at 0x%x, dims %v", n.AbsoluteAddress, rf.geo.Total)

	opened := len(rf.geo.Own) > 0 && ctx.openGenerate()
	defer ctx.closeGenerate(opened)

	children, err := buildChildren(ctx, n, rf.geo, true)
	if err != nil {
		return nil, err
	}
	rf.children = children

	frags := []rtl.Fragment{rtl.F("regfile_comment", rtl.P{"path": n.Path(), "dims": rf.geo.Own})}
	if desc := n.Desc(); desc != "" && ctx.describes(config.DescRegFile) {
		frags = append(frags, commentBlock(desc))
	}
	if opened {
		frags = append(frags, rtl.F("generate", nil))
	}
	frags = append(frags, forLoops(rf.geo)...)
	for _, c := range children {
		frags = append(frags, c.Fragments()...)
	}
	frags = append(frags, loopEnds(rf.geo)...)
	if opened {
		frags = append(frags, rtl.F("endgenerate", nil))
	}
	rf.frags = append(frags, rtl.F("blank", nil))
	return rf, nil
}

func (rf *RegFile) Fragments() []rtl.Fragment { return rf.frags }

// buildChildren lowers the children of an address-map or register-file in
// source order. Aliases are bound once every primary of the level exists,
// and registers are finalized after that.
func buildChildren(ctx *Context, n *rdl.Node, geo Geometry, inRegFile bool) ([]Node, error) {
	var (
		out     []Node
		regs    []*Register
		byPath  = make(map[string]*Register)
		aliases []*rdl.Node
	)
	for _, c := range n.Children {
		switch c.Kind {
		case rdl.KindReg:
			if c.IsAlias {
				aliases = append(aliases, c)
				continue
			}
			r, err := newRegister(ctx, c, geo)
			if err != nil {
				return nil, err
			}
			regs = append(regs, r)
			byPath[c.Path()] = r
			out = append(out, r)
		case rdl.KindRegFile:
			rf, err := newRegFile(ctx, c, geo)
			if err != nil {
				return nil, err
			}
			out = append(out, rf)
		case rdl.KindMem:
			m, err := newMemory(ctx, c, geo)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		case rdl.KindAddrMap:
			if inRegFile {
				return nil, ctx.Diag.At(c.Path()).Fatal(diag.KindAddrMapInRegFile,
					"address-map %s is instantiated inside register file %s", c.InstName, n.Path())
			}
			w, err := newWindow(ctx, c, geo)
			if err != nil {
				return nil, err
			}
			out = append(out, w)
		}
	}

	for _, a := range aliases {
		primary, ok := byPath[a.AliasPrimary]
		if !ok {
			return nil, ctx.Diag.At(a.Path()).Fatal(diag.KindAliasPrimary,
				"alias primary %q is not a register of %s", a.AliasPrimary, n.Path())
		}
		if err := primary.addAlias(a); err != nil {
			return nil, err
		}
	}
	for _, r := range regs {
		r.finalize()
	}
	return out, nil
}
