package lower

import (
	"iter"
	"strings"

	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
)

// Geometry is the array shape of a node. Total holds the inherited
// dimensions followed by the node's own; strides follow the same order.
type Geometry struct {
	Own         []int
	Total       []int
	OwnStride   []uint64
	TotalStride []uint64
	// ParentDepth is the number of inherited dimensions
	ParentDepth int
}

// NewGeometry derives a node's geometry from its parent's. The stride of
// an own dimension is the element count nested inside it times the array
// stride of the node.
func NewGeometry(parent Geometry, dims []int, arrayStride uint64) Geometry {
	g := Geometry{
		Own:         dims,
		ParentDepth: len(parent.Total),
	}
	g.OwnStride = make([]uint64, len(dims))
	for i := range dims {
		inner := uint64(1)
		for _, d := range dims[i+1:] {
			inner *= uint64(d)
		}
		g.OwnStride[i] = inner * arrayStride
	}
	g.Total = append(append([]int{}, parent.Total...), dims...)
	g.TotalStride = append(append([]uint64{}, parent.TotalStride...), g.OwnStride...)
	return g
}

// Genvar names the loop variable of total dimension i
func Genvar(i int) string {
	return "gv_" + string(rune('a'+i))
}

// Genvars returns the index suffix used inside generate loops, e.g. [gv_a][gv_b]
func (g Geometry) Genvars() string {
	var b strings.Builder
	for i := range g.Total {
		b.WriteString("[" + Genvar(i) + "]")
	}
	return b.String()
}

// OffsetTerms returns the symbolic address offset, one term per dimension
func (g Geometry) OffsetTerms() []string {
	terms := make([]string, len(g.Total))
	for i, s := range g.TotalStride {
		terms[i] = rtl.Expr("offset_term", rtl.P{"genvar": Genvar(i), "stride": s})
	}
	return terms
}

// Address resolves base + Σ idx_i*stride_i
func (g Geometry) Address(base uint64, idx []int) uint64 {
	addr := base
	for i, v := range idx {
		addr += uint64(v) * g.TotalStride[i]
	}
	return addr
}

// Elements returns the number of array elements
func (g Geometry) Elements() int {
	n := 1
	for _, d := range g.Total {
		n *= d
	}
	return n
}

// IndexSpace walks every index tuple of the total dimensions, last
// dimension fastest. A scalar node yields one empty tuple. The yielded
// slice is reused between iterations.
func (g Geometry) IndexSpace() iter.Seq[[]int] {
	dims := g.Total
	return func(yield func([]int) bool) {
		for _, d := range dims {
			if d <= 0 {
				return
			}
		}
		idx := make([]int, len(dims))
		for {
			if !yield(idx) {
				return
			}
			i := len(dims) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < dims[i] {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// IndexSuffix renders a concrete index tuple, e.g. [1][0]
func IndexSuffix(idx []int) string {
	return rtl.Dims(idx)
}
