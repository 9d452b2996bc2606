package lower

import (
	"encoding/json"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

const maxAlign = 40

// AddrMap is one emitted module: the root address-map or the type of a
// nested one
type AddrMap struct {
	base
	ctx         *Context
	module      string
	fingerprint uint64
	widget      Widget

	modulePorts []Port
	packages    []Package
	entries     []MuxEntry
	frags       []rtl.Fragment
}

func newAddrMap(ctx *Context, n *rdl.Node, root bool) (*AddrMap, error) {
	module := n.Name()
	if root {
		module = n.InstName
	}

	saved := *ctx
	defer func() {
		ctx.owner, ctx.module, ctx.base = saved.owner, saved.module, saved.base
		ctx.rsvd, ctx.generateActive = saved.rsvd, saved.generateActive
	}()
	ctx.owner, ctx.module, ctx.base = n, module, n.AbsoluteAddress
	ctx.rsvd = reservedFill(n)
	ctx.generateActive = false

	a := &AddrMap{
		base:        base{node: n, name: module},
		ctx:         ctx,
		module:      module,
		fingerprint: Fingerprint(n),
	}
	if root {
		ctx.addrmaps[n.Name()] = a
	}
	d := ctx.Diag.At(n.Path())
	d.Debug("lowering module %s, reserved bits read as %s", module, ctx.rsvd)

	children, err := buildChildren(ctx, n, Geometry{}, false)
	if err != nil {
		return nil, err
	}
	a.children = children

	if a.widget, err = NewWidget(ctx.Opts.Bus, ctx.Opts.AddrWidth, ctx.dataWidth); err != nil {
		return nil, d.Fatal(diag.KindInput, "%v", err)
	}
	if ctx.Opts.Enums {
		if a.packages, err = BuildPackages(AllTypeDefs(a), ctx.Diag); err != nil {
			return nil, err
		}
	}
	a.entries = slices.Collect(AllMuxEntries(a))
	a.assemble()

	ctx.modules = append(ctx.modules, a)
	d.Info("module %s: %d ports, %d mux entries", module, len(a.modulePorts), len(a.entries))
	return a, nil
}

// nestedAddrMap returns the module of a nested address-map, lowering it
// the first time its type is seen
func (c *Context) nestedAddrMap(n *rdl.Node) (*AddrMap, error) {
	key := n.Name()
	fp := Fingerprint(n)
	d := c.Diag.At(n.Path())
	if prev, ok := c.addrmaps[key]; ok {
		if prev.fingerprint != fp {
			return nil, d.Conflict(diag.KindAddrMapRedeclared, []string{prev.Path(), n.Path()},
				"address-map type %s is redeclared with a different definition", key)
		}
		d.Info("reusing module %s lowered for %s", prev.module, prev.Path())
		return prev, nil
	}

	d.Info("entering hierarchical address-map %s", key)
	a, err := newAddrMap(c, n, false)
	if err != nil {
		return nil, err
	}
	c.addrmaps[key] = a
	return a, nil
}

func reservedFill(n *rdl.Node) string {
	switch {
	case n.Bool("rsvdset"):
		return "1"
	case n.Bool("rsvdsetX"):
		return "x"
	}
	return "0"
}

// Module returns the SystemVerilog module name
func (a *AddrMap) Module() string { return a.module }

// Fingerprint returns the structural hash the module is deduplicated by
func (a *AddrMap) Fingerprint() uint64 { return a.fingerprint }

// ModulePorts returns the ports in declaration order
func (a *AddrMap) ModulePorts() []Port { return a.modulePorts }

// Packages returns the enumeration packages of the module
func (a *AddrMap) Packages() []Package { return a.packages }

// Entries returns the arms of the read multiplexer
func (a *AddrMap) Entries() []MuxEntry { return a.entries }

// DataWidth is the bus data width of the module
func (a *AddrMap) DataWidth() int { return a.ctx.dataWidth }

func (a *AddrMap) Fragments() []rtl.Fragment { return a.frags }

func (a *AddrMap) assemble() {
	ctx := a.ctx
	resets := AllResets(a)
	isReset := make(map[string]bool, len(resets))
	ports := []Port{{Name: "clk", Dir: Input, Type: logicType(1)}}
	for _, r := range resets {
		isReset[r.Name] = true
		ports = append(ports, Port{Name: r.Name, Dir: Input, Type: logicType(1)})
	}
	var outputs []Port
	for _, p := range AllPorts(a) {
		switch {
		case p.Dir == Output:
			outputs = append(outputs, p)
		case !isReset[p.Name] && p.Name != "clk":
			ports = append(ports, p)
		}
	}
	ports = append(ports, a.widget.Inputs...)
	ports = append(ports, a.widget.Outputs...)
	a.modulePorts = append(ports, outputs...)

	imports := []string{InterfacePackageName}
	for _, p := range a.packages {
		imports = append(imports, p.Name)
	}
	frags := []rtl.Fragment{rtl.F("module_start", rtl.P{"name": a.module, "imports": imports})}

	tw := 0
	for _, p := range a.modulePorts {
		tw = max(tw, len(p.Type))
	}
	tw = min(tw, maxAlign)
	for i, p := range a.modulePorts {
		frags = append(frags, rtl.F("port", rtl.P{
			"dir":   string(p.Dir),
			"type":  p.Type,
			"tw":    tw,
			"name":  p.Name,
			"dims":  rtl.Dims(p.Dims),
			"comma": i < len(a.modulePorts)-1,
		}))
	}
	frags = append(frags, rtl.F("module_ports_end", nil))

	if desc := a.node.Desc(); desc != "" && ctx.describes(config.DescAddrMap) {
		frags = append(frags, commentBlock(desc))
	}

	signals := AllSignals(a)
	tw = 0
	for _, s := range signals {
		tw = max(tw, len(s.Type))
	}
	tw = min(tw, maxAlign)
	frags = append(frags, rtl.F("signals_start", nil))
	for _, s := range signals {
		frags = append(frags, rtl.F("signal", rtl.P{
			"type": s.Type,
			"tw":   tw,
			"name": s.Name,
			"dims": rtl.Dims(s.Dims),
		}))
	}
	frags = append(frags,
		rtl.F("bus_structs", nil),
		rtl.F("blank", nil),
		a.widget.Instance(ctx.Opts.AddrWidth, ctx.dataWidth, ctx.Opts.NoByteEnable),
		rtl.F("blank", nil),
	)

	if depth := MaxDimDepth(a); depth > 0 {
		names := make([]string, depth)
		for i := range names {
			names[i] = Genvar(i)
		}
		frags = append(frags, rtl.F("genvars", rtl.P{"names": names}), rtl.F("blank", nil))
	}

	for _, c := range a.children {
		frags = append(frags, c.Fragments()...)
	}

	frags = append(frags,
		rtl.F("read_mux", rtl.P{"entries": a.entries, "illegal_err": ctx.Opts.IllegalAddrErr}),
		rtl.F("module_end", nil),
	)
	a.frags = frags
}

// canonNode is the position independent form of a subtree hashed by
// Fingerprint
type canonNode struct {
	Kind         rdl.Kind       `json:"k"`
	InstName     string         `json:"i,omitempty"`
	TypeName     string         `json:"t,omitempty"`
	Offset       uint64         `json:"o"`
	Size         uint64         `json:"s,omitempty"`
	Dims         []int          `json:"d,omitempty"`
	Stride       uint64         `json:"st,omitempty"`
	AliasPrimary string         `json:"ap,omitempty"`
	Bits         [6]int         `json:"b"`
	MemEntries   uint64         `json:"me,omitempty"`
	Props        map[string]any `json:"p,omitempty"`
	Children     []canonNode    `json:"c,omitempty"`
}

func canonicalize(root, n *rdl.Node) canonNode {
	c := canonNode{
		Kind:       n.Kind,
		TypeName:   n.TypeName,
		Size:       n.Size,
		Dims:       n.ArrayDimensions,
		Stride:     n.ArrayStride,
		Bits:       [6]int{n.LSB, n.MSB, n.Width, n.RegWidth, n.AccessWidth, n.MemWidth},
		MemEntries: n.MemEntries,
	}
	// Fields and signals carry no address
	if n.AbsoluteAddress >= root.AbsoluteAddress {
		c.Offset = n.AbsoluteAddress - root.AbsoluteAddress
	}
	if n != root {
		c.InstName = n.InstName
	}
	if n.IsAlias {
		c.AliasPrimary = relTo(root, n.AliasPrimary)
	}
	if len(n.Properties) > 0 {
		c.Props = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			if ref, ok := v.(*rdl.Ref); ok {
				target := ref.Target
				if ref.Node != nil {
					target = ref.Node.Path()
				}
				v = map[string]string{"ref": relTo(root, target), "prop": ref.Prop}
			}
			c.Props[k] = v
		}
	}
	for _, ch := range n.Children {
		c.Children = append(c.Children, canonicalize(root, ch))
	}
	return c
}

func relTo(root *rdl.Node, path string) string {
	prefix := root.Path() + "."
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return "." + path[len(prefix):]
	}
	return path
}

// Fingerprint hashes the definition of an address-map independently of
// where it is instantiated. Two instances of one type hash equal.
func Fingerprint(n *rdl.Node) uint64 {
	d := xxhash.New()
	if err := json.NewEncoder(d).Encode(canonicalize(n, n)); err != nil {
		// Property values are JSON scalars, references and encodings
		panic(err)
	}
	return d.Sum64()
}
