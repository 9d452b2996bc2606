package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the snapshots were identical
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len is the total number of rows
func (t Tables) Len() int {
	return len(t.Modules) + len(t.Addresses) + len(t.Fields) + len(t.Ports) + len(t.Enums)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return r.Name + "|" + r.Path + "|" + intKey(r.DataWidth) + "|" + r.Fingerprint
	})
	out.Addresses = diffRows(from.Addresses, to.Addresses, func(r AddressRow) string {
		return r.Module + "|" + r.Path + "|" + r.Kind + "|" + uintKey(r.Address) + "|" + uintKey(r.Size)
	})
	out.Fields = diffRows(from.Fields, to.Fields, func(r FieldRow) string {
		return r.Module + "|" + r.Register + "|" + r.Path + "|" + intKey(r.LSB) + "|" + intKey(r.MSB) + "|" +
			r.Storage + "|" + r.SW + "|" + r.HW + "|" + r.Precedence + "|" + r.Reset
	})
	out.Ports = diffRows(from.Ports, to.Ports, func(r PortRow) string {
		return r.Module + "|" + r.Name + "|" + r.Direction + "|" + r.Type
	})
	out.Enums = diffRows(from.Enums, to.Enums, func(r EnumRow) string {
		return r.Package + "|" + r.Type + "|" + r.Member + "|" + uintKey(r.Value)
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Modules:   []ModuleRow{},
		Addresses: []AddressRow{},
		Fields:    []FieldRow{},
		Ports:     []PortRow{},
		Enums:     []EnumRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func intKey(v int) string { return strconv.Itoa(v) }

func uintKey(v uint64) string { return strconv.FormatUint(v, 10) }
