package lower

import (
	"fmt"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// Widget describes the bus adapter instantiated in every module. The
// adapter RTL itself is supplied by the user.
type Widget struct {
	Bus     string
	Module  string
	Inputs  []Port
	Outputs []Port
}

// NewWidget returns the adapter of a supported bus
func NewWidget(bus string, addrW, dataW int) (Widget, error) {
	in := func(name string, w int) Port { return Port{Name: name, Dir: Input, Type: logicType(w)} }
	out := func(name string, w int) Port { return Port{Name: name, Dir: Output, Type: logicType(w)} }

	w := Widget{Bus: bus, Module: "rdl2sv_" + bus}
	switch bus {
	case config.BusAHBLite:
		w.Inputs = []Port{
			in("HRESETn", 1),
			in("HADDR", addrW),
			in("HWRITE", 1),
			in("HSIZE", 3),
			in("HTRANS", 2),
			in("HPROT", 4),
			in("HBURST", 3),
			in("HWDATA", dataW),
			in("HSEL", 1),
			in("HREADY", 1),
		}
		w.Outputs = []Port{
			out("HRDATA", dataW),
			out("HREADYOUT", 1),
			out("HRESP", 1),
		}
	case config.BusAPB4:
		w.Inputs = []Port{
			in("PRESETn", 1),
			in("PSEL", 1),
			in("PENABLE", 1),
			in("PWRITE", 1),
			in("PADDR", addrW),
			in("PPROT", 3),
			in("PWDATA", dataW),
			in("PSTRB", max(dataW/8, 1)),
		}
		w.Outputs = []Port{
			out("PRDATA", dataW),
			out("PREADY", 1),
			out("PSLVERR", 1),
		}
	default:
		return Widget{}, fmt.Errorf("unsupported bus %q", bus)
	}
	return w, nil
}

// Instance renders the instantiation of the adapter
func (w Widget) Instance(addrW, dataW int, noByteEnable bool) rtl.Fragment {
	var conns []string
	for _, p := range w.Inputs {
		conns = append(conns, p.Name)
	}
	for _, p := range w.Outputs {
		conns = append(conns, p.Name)
	}
	return rtl.F("widget_instance", rtl.P{
		"module":         w.Module,
		"addr_w":         addrW,
		"data_w":         dataW,
		"no_byte_enable": noByteEnable,
		"ports":          conns,
	})
}

// InterfacePackageName is the package every module imports
const InterfacePackageName = "rdl2sv_if_pkg"

// InterfacePackage renders the package shared by the widget and every
// module: the bus-to-register and register-to-bus structures
func InterfacePackage(addrW, dataW int) []rtl.Fragment {
	return []rtl.Fragment{rtl.F("if_package", rtl.P{
		"addr_w": addrW,
		"data_w": dataW,
		"bytes":  max(dataW/8, 1),
	})}
}
