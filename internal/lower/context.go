package lower

import (
	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
)

// Options are the settings the lowering pass reads
type Options struct {
	Enums          bool
	NoByteEnable   bool
	Bus            string
	AddrWidth      int
	Descriptions   int
	IllegalAddrErr bool
	External       bool
}

// OptionsFromConfig extracts the lowering options of a loaded config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Enums:          cfg.EnumsEnabled(),
		NoByteEnable:   cfg.NoByteEnable,
		Bus:            cfg.Bus,
		AddrWidth:      cfg.AddressWidth,
		Descriptions:   cfg.Descriptions,
		IllegalAddrErr: cfg.Checks.IllegalAddressError,
		External:       cfg.External,
	}
}

// DefaultOptions matches config.DefaultConfig
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// Context is threaded by reference through one lowering pass
type Context struct {
	Opts Options
	Diag *diag.Reporter

	// owner is the address-map whose module is being built, module its
	// module name and base its absolute address
	owner  *rdl.Node
	module string
	base   uint64
	// dataWidth is the bus data width shared by every module of the pass
	dataWidth int
	// rsvd is the reserved-bit fill of the address-map being lowered
	rsvd string
	// generateActive is set while an array subtree has an open generate block
	generateActive bool

	addrmaps map[string]*AddrMap
	modules  []*AddrMap
}

// NewContext creates a context for one pass
func NewContext(opts Options, rep *diag.Reporter) *Context {
	if rep == nil {
		rep = diag.NewReporter(nil, false)
	}
	if opts.Bus == "" {
		opts.Bus = config.BusAHBLite
	}
	if opts.AddrWidth == 0 {
		opts.AddrWidth = 32
	}
	return &Context{
		Opts:     opts,
		Diag:     rep,
		rsvd:     "0",
		addrmaps: make(map[string]*AddrMap),
	}
}

// openGenerate claims the generate block for a subtree. It returns false
// when an ancestor already holds it.
func (c *Context) openGenerate() bool {
	if c.generateActive {
		return false
	}
	c.generateActive = true
	return true
}

func (c *Context) closeGenerate(opened bool) {
	if opened {
		c.generateActive = false
	}
}

func (c *Context) describes(kind int) bool {
	return c.Opts.Descriptions&kind != 0
}
