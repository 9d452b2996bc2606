package lower

import (
	"fmt"
	"slices"

	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// TypeDef is an enumeration emitted into the package of its scope
type TypeDef struct {
	Name    string
	Scope   string
	Width   int
	Members []rdl.EnumMember
	// Path is the field that declared it, for diagnostics
	Path string
}

// newTypeDef places an encoding in its scope. Register-files nest the
// scope below the owning module; an enclosing register only prefixes the
// type name because registers have no package of their own.
func newTypeDef(module string, enum *rdl.Enum, width int, path string) TypeDef {
	scope := module
	name := enum.Name
	for _, s := range enum.Scope {
		if s.Kind == rdl.KindRegFile {
			scope += "__" + s.Name
		}
	}
	if n := len(enum.Scope); n > 0 && enum.Scope[n-1].Kind == rdl.KindReg {
		name = enum.Scope[n-1].Name + "__" + name
	}
	return TypeDef{Name: name, Scope: scope, Width: width, Members: enum.Members, Path: path}
}

// Package is the SystemVerilog package name of the scope
func (t TypeDef) Package() string { return t.Scope + "_pkg" }

// Qualified returns the type name as seen from outside the package
func (t TypeDef) Qualified() string { return t.Package() + "::" + t.Name }

func (t TypeDef) sameAs(o TypeDef) bool {
	return t.Width == o.Width && slices.EqualFunc(t.Members, o.Members, func(a, b rdl.EnumMember) bool {
		return a.Name == b.Name && a.Uint() == b.Uint()
	})
}

// Package groups the enumerations of one scope
type Package struct {
	Name     string
	TypeDefs []TypeDef
}

// Fragments renders the package
func (p Package) Fragments() []rtl.Fragment {
	type member struct {
		Name  string
		Value string
	}
	type enum struct {
		Name    string
		Width   int
		Members []member
	}
	enums := make([]enum, len(p.TypeDefs))
	for i, td := range p.TypeDefs {
		e := enum{Name: td.Name, Width: td.Width}
		for _, m := range td.Members {
			e.Members = append(e.Members, member{Name: m.Name, Value: sized(td.Width, m.Uint())})
		}
		enums[i] = e
	}
	return []rtl.Fragment{rtl.F("enum_package", rtl.P{"name": p.Name, "enums": enums})}
}

// BuildPackages groups typedefs by scope, in order of first appearance.
// Redeclaring an enum identically is allowed; a different definition
// under the same name, or a member name reused by another enum of the
// same scope, is fatal.
func BuildPackages(defs []TypeDef, rep *diag.Reporter) ([]Package, error) {
	var pkgs []Package
	index := make(map[string]int)
	// member name -> declaring typedef, per scope
	members := make(map[string]map[string]TypeDef)

	for _, td := range defs {
		i, ok := index[td.Scope]
		if !ok {
			i = len(pkgs)
			index[td.Scope] = i
			pkgs = append(pkgs, Package{Name: td.Package()})
			members[td.Scope] = make(map[string]TypeDef)
		}
		pkg := &pkgs[i]

		dup := false
		for _, prev := range pkg.TypeDefs {
			if prev.Name != td.Name {
				continue
			}
			if !prev.sameAs(td) {
				return nil, rep.At(td.Path).Conflict(diag.KindEnumCollision, []string{prev.Path, td.Path},
					"enum %s is declared twice in %s with different members", td.Name, pkg.Name)
			}
			dup = true
			break
		}
		if dup {
			continue
		}

		seen := members[td.Scope]
		for _, m := range td.Members {
			if prev, ok := seen[m.Name]; ok {
				return nil, rep.At(td.Path).Conflict(diag.KindEnumCollision, []string{prev.Path, td.Path},
					"enum member %s of %s collides with enum %s in %s", m.Name, td.Name, prev.Name, pkg.Name)
			}
			seen[m.Name] = td
		}
		pkg.TypeDefs = append(pkg.TypeDefs, td)
	}
	return pkgs, nil
}

func (t TypeDef) String() string {
	return fmt.Sprintf("%s (%d bits, %d members)", t.Qualified(), t.Width, len(t.Members))
}
