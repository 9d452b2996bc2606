// Package rtl renders SystemVerilog from named templates. Templates live in
// YAML catalogs embedded in the binary; lowering code only produces
// Fragment values and inline expressions through Expr.
package rtl

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

// P holds the named parameters of a template
type P map[string]any

// Fragment is one template invocation
type Fragment struct {
	Template string
	Params   P
}

// F builds a fragment
func F(name string, p P) Fragment {
	return Fragment{Template: name, Params: p}
}

// Engine holds every template of a set of catalogs
type Engine struct {
	root   *template.Template
	origin map[string]string
}

var funcs = template.FuncMap{
	"join":  func(elems []string, sep string) string { return strings.Join(elems, sep) },
	"add":   func(a, b int) int { return a + b },
	"sub":   func(a, b int) int { return a - b },
	"upper": strings.ToUpper,
	"dims":  Dims,
}

// NewEngine loads every *.yaml catalog found in fsys. A template name may
// only be defined once across catalogs.
func NewEngine(fsys fs.FS) (*Engine, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no template catalogs found")
	}

	e := &Engine{
		root:   template.New("").Funcs(funcs),
		origin: make(map[string]string),
	}
	for _, file := range files {
		if err := e.loadCatalog(fsys, file); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) loadCatalog(fsys fs.FS, file string) error {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("reading catalog %s: %w", file, err)
	}
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing catalog %s: %w", file, err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if prev, dup := e.origin[name]; dup {
			return fmt.Errorf("template %q defined in %s and %s", name, prev, file)
		}
		if _, err := e.root.New(name).Parse(entries[name]); err != nil {
			return fmt.Errorf("catalog %s: %w", file, err)
		}
		e.origin[name] = file
	}
	return nil
}

// Has reports whether a template exists
func (e *Engine) Has(name string) bool {
	_, ok := e.origin[name]
	return ok
}

// Names returns all template names in sorted order
func (e *Engine) Names() []string {
	out := make([]string, 0, len(e.origin))
	for name := range e.origin {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute renders one template to a string
func (e *Engine) Execute(name string, p P) (string, error) {
	t := e.root.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, p); err != nil {
		return "", err
	}
	out := b.String()
	if strings.Contains(out, "<no value>") {
		return "", fmt.Errorf("template %q: missing parameter", name)
	}
	return out, nil
}

// Render expands fragments into output lines
func (e *Engine) Render(frags []Fragment) ([]string, error) {
	var lines []string
	for _, f := range frags {
		out, err := e.Execute(f.Template, f.Params)
		if err != nil {
			return nil, err
		}
		lines = append(lines, strings.Split(out, "\n")...)
	}
	return lines, nil
}

// Default returns the engine over the embedded catalogs
var Default = sync.OnceValue(func() *Engine {
	sub, err := fs.Sub(catalogFS, "catalog")
	if err != nil {
		panic(err)
	}
	e, err := NewEngine(sub)
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	return e
})

// Expr renders an inline expression from the embedded catalogs. It panics
// when the template fails, which only happens on a broken catalog.
func Expr(name string, p P) string {
	out, err := Default().Execute(name, p)
	if err != nil {
		panic(err)
	}
	return out
}

// Dims renders unpacked dimensions such as [2][4]
func Dims(dims []int) string {
	var b strings.Builder
	for _, d := range dims {
		fmt.Fprintf(&b, "[%d]", d)
	}
	return b.String()
}
