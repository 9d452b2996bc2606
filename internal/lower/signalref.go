package lower

import (
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
)

// property references that name a derived signal of a field
var refSuffix = map[string]string{
	"":              "q",
	"incrthreshold": "incr_thr",
	"decrthreshold": "decr_thr",
}

// refSignal renders the name a reference points at, as seen from b inside
// the module of owner. User signals become input ports of b.
func (b *base) refSignal(owner *rdl.Node, ref *rdl.Ref) string {
	t := ref.Node
	switch t.Kind {
	case rdl.KindSignal:
		b.ports = append(b.ports, Port{Name: t.InstName, Dir: Input, Type: logicType(signalWidth(t))})
		return t.InstName
	case rdl.KindReg:
		prop := ref.Prop
		if prop == "" {
			prop = "intr"
		}
		return t.RelPath(owner, "__") + "_" + prop + b.indexFor(owner, t)
	default:
		suffix, ok := refSuffix[ref.Prop]
		if !ok {
			suffix = ref.Prop
		}
		return t.RelPath(owner, "__") + "_" + suffix + b.indexFor(owner, t)
	}
}

// indexFor indexes an arrayed target from inside b's generate loops. The
// leading dimensions reuse b's genvars, any the target has beyond b's
// depth are pinned to element zero.
func (b *base) indexFor(owner, target *rdl.Node) string {
	depth := arrayDepth(owner, target)
	var out string
	for i := 0; i < depth; i++ {
		if i < len(b.geo.Total) {
			out += "[" + Genvar(i) + "]"
		} else {
			out += "[0]"
		}
	}
	return out
}

// arrayDepth counts the array dimensions between owner and n, n included
func arrayDepth(owner, n *rdl.Node) int {
	depth := 0
	for p := n; p != nil && p != owner; p = p.Parent() {
		depth += len(p.ArrayDimensions)
	}
	return depth
}

// refWidth returns the bit width of a referenced value
func refWidth(ref *rdl.Ref) int {
	t := ref.Node
	switch {
	case t.Kind == rdl.KindSignal:
		return signalWidth(t)
	case t.Kind == rdl.KindField && ref.Prop == "":
		return t.FieldWidth()
	}
	return 1
}

func signalWidth(n *rdl.Node) int {
	if n.Width > 0 {
		return n.Width
	}
	if w, ok := n.Int("signalwidth"); ok && w > 0 {
		return int(w)
	}
	return 1
}
