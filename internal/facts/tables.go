package facts

import (
	"sort"
	"strconv"

	"github.com/robert-at-pretension-io/rdl2sv/internal/lower"
)

// Tables is the relational model of a lowered register map.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Modules   []ModuleRow  `json:"modules"`
	Addresses []AddressRow `json:"addresses"`
	Fields    []FieldRow   `json:"fields"`
	Ports     []PortRow    `json:"ports"`
	Enums     []EnumRow    `json:"enums"`
}

type ModuleRow struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	DataWidth   int    `json:"data_width"`
	Fingerprint string `json:"fingerprint"`
}

// AddressRow is one software-visible unit with its index resolved
type AddressRow struct {
	Module  string `json:"module"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Address uint64 `json:"address"`
	Size    uint64 `json:"size"`
}

// FieldRow is a field as seen through one register name. Aliased fields
// have one row per alias.
type FieldRow struct {
	Module     string `json:"module"`
	Register   string `json:"register"`
	Path       string `json:"path"`
	LSB        int    `json:"lsb"`
	MSB        int    `json:"msb"`
	Storage    string `json:"storage"`
	SW         string `json:"sw"`
	HW         string `json:"hw"`
	Precedence string `json:"precedence"`
	// Reset is the hexadecimal reset value, empty when the field has none
	Reset string `json:"reset"`
}

type PortRow struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
}

type EnumRow struct {
	Package string `json:"package"`
	Type    string `json:"type"`
	Member  string `json:"member"`
	Value   uint64 `json:"value"`
}

// BuildTables flattens every module of a lowering result.
func BuildTables(res *lower.Result) Tables {
	tables := emptyTables()
	for _, m := range res.Modules {
		name := m.Module()

		tables.Modules = append(tables.Modules, ModuleRow{
			Name:        name,
			Path:        m.Path(),
			DataWidth:   m.DataWidth(),
			Fingerprint: strconv.FormatUint(m.Fingerprint(), 16),
		})

		for _, e := range m.Entries() {
			tables.Addresses = append(tables.Addresses, AddressRow{
				Module:  name,
				Name:    e.Name,
				Path:    e.Path,
				Kind:    string(e.Kind),
				Address: e.Address,
				Size:    e.Size,
			})
		}

		for _, f := range fields(m) {
			d := f.Decision()
			reset := ""
			if d.Reset.HasValue && d.Reset.ValueRef == nil {
				reset = "0x" + strconv.FormatUint(d.Reset.Value, 16)
			}
			for _, v := range f.Views() {
				tables.Fields = append(tables.Fields, FieldRow{
					Module:     name,
					Register:   v.Register,
					Path:       v.Node.Path(),
					LSB:        f.LSB(),
					MSB:        f.MSB(),
					Storage:    d.Storage.String(),
					SW:         string(v.Node.Access("sw")),
					HW:         string(f.RDL().Access("hw")),
					Precedence: string(d.Precedence),
					Reset:      reset,
				})
			}
		}

		for _, p := range m.ModulePorts() {
			tables.Ports = append(tables.Ports, PortRow{
				Module:    name,
				Name:      p.Name,
				Direction: string(p.Dir),
				Type:      p.Type,
			})
		}

		for _, pkg := range m.Packages() {
			for _, td := range pkg.TypeDefs {
				for _, mem := range td.Members {
					tables.Enums = append(tables.Enums, EnumRow{
						Package: pkg.Name,
						Type:    td.Name,
						Member:  mem.Name,
						Value:   mem.Uint(),
					})
				}
			}
		}
	}

	sort.SliceStable(tables.Addresses, func(i, j int) bool {
		a, b := tables.Addresses[i], tables.Addresses[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.Address < b.Address
	})

	return tables
}

// fields collects the fields of a module in source order, without
// descending into memories or windows
func fields(n lower.Node) []*lower.Field {
	var out []*lower.Field
	for _, c := range n.Children() {
		switch c := c.(type) {
		case *lower.Field:
			out = append(out, c)
		case *lower.Memory:
		default:
			out = append(out, fields(c)...)
		}
	}
	return out
}
