package lower

import "github.com/robert-at-pretension-io/rdl2sv/internal/rtl"

// externalRTL forwards software accesses of an external field to the
// ports of the block implementing it, one set per register name
func (f *Field) externalRTL() []rtl.Fragment {
	g := f.geo.Genvars()
	var frags []rtl.Fragment
	for _, a := range f.sw {
		if a.node.Access("sw").CanWrite() {
			f.addOutput(a.path+"_wr_dat", f.typ)
			f.addOutput(a.path+"_wr_bmask", f.typ)

			var mask []string
			lanes := f.lanes()
			for i := len(lanes) - 1; i >= 0; i-- {
				l := lanes[i]
				mask = append(mask, rtl.Expr("byte_en_repl", rtl.P{"i": l.index, "width": l.busMSB - l.busLSB + 1}))
			}
			frags = append(frags,
				rtl.F("assign", rtl.P{
					"lhs": a.path + "_wr_dat" + g,
					"rhs": rtl.Expr("bus_slice", rtl.P{"msb": f.msb, "lsb": f.lsb}),
				}),
				rtl.F("assign", rtl.P{
					"lhs": a.path + "_wr_bmask" + g,
					"rhs": rtl.Expr("concat", rtl.P{"items": mask}),
				}),
			)
		}
		if a.node.Access("sw").CanRead() {
			f.addInput(a.path+"_rd_dat", f.typ)
		}
	}
	return frags
}
