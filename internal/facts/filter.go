package facts

import "strings"

// FilterByModule returns a new Tables object containing only the rows of
// the named modules. Enum rows are kept when their package belongs to one
// of the modules.
func FilterByModule(tables Tables, modules map[string]bool) Tables {
	out := emptyTables()
	if len(modules) == 0 {
		return out
	}

	for _, row := range tables.Modules {
		if modules[row.Name] {
			out.Modules = append(out.Modules, row)
		}
	}
	for _, row := range tables.Addresses {
		if modules[row.Module] {
			out.Addresses = append(out.Addresses, row)
		}
	}
	for _, row := range tables.Fields {
		if modules[row.Module] {
			out.Fields = append(out.Fields, row)
		}
	}
	for _, row := range tables.Ports {
		if modules[row.Module] {
			out.Ports = append(out.Ports, row)
		}
	}
	for _, row := range tables.Enums {
		if modules[packageModule(row.Package, modules)] {
			out.Enums = append(out.Enums, row)
		}
	}
	return out
}

// FilterDeltaByModule filters both sides of a delta
func FilterDeltaByModule(delta Delta, modules map[string]bool) Delta {
	return Delta{
		Added:   FilterByModule(delta.Added, modules),
		Removed: FilterByModule(delta.Removed, modules),
	}
}

// packageModule maps "<module>[__<regfile>...]_pkg" back to the module
// name, picking the longest known module that prefixes it
func packageModule(pkg string, modules map[string]bool) string {
	best := ""
	for m := range modules {
		rest, ok := strings.CutPrefix(pkg, m)
		if !ok || len(m) <= len(best) {
			continue
		}
		if rest == "_pkg" || strings.HasPrefix(rest, "__") {
			best = m
		}
	}
	return best
}
