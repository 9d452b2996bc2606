package lower

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNewGeometryStrides(t *testing.T) {
	g := NewGeometry(Geometry{}, []int{2, 3}, 4)
	assert.Equal(t, []uint64{12, 4}, g.OwnStride)
	assert.Equal(t, []int{2, 3}, g.Total)
	assert.Equal(t, 0, g.ParentDepth)

	child := NewGeometry(NewGeometry(Geometry{}, []int{2}, 64), []int{4}, 4)
	assert.Equal(t, []int{2, 4}, child.Total)
	assert.Equal(t, []uint64{64, 4}, child.TotalStride)
	assert.Equal(t, 1, child.ParentDepth)
	assert.Equal(t, "[gv_a][gv_b]", child.Genvars())
	assert.Equal(t, []string{"gv_a*64", "gv_b*4"}, child.OffsetTerms())
}

func TestGeometryAddressesAreUnique(t *testing.T) {
	tests := []struct {
		name   string
		parent Geometry
		dims   []int
		stride uint64
		base   uint64
		want   []uint64
	}{
		{
			name: "scalar",
			base: 0x10,
			want: []uint64{0x10},
		},
		{
			name:   "two dimensions",
			dims:   []int{2, 3},
			stride: 4,
			base:   16,
			want:   []uint64{16, 20, 24, 28, 32, 36},
		},
		{
			name:   "nested in an array",
			parent: NewGeometry(Geometry{}, []int{2}, 0x20),
			dims:   []int{2},
			stride: 8,
			base:   0x100,
			want:   []uint64{0x100, 0x108, 0x120, 0x128},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeometry(tt.parent, tt.dims, tt.stride)
			var got []uint64
			for idx := range g.IndexSpace() {
				got = append(got, g.Address(tt.base, idx))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("addresses mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, g.Elements(), len(got))

			sorted := slices.Clone(got)
			slices.Sort(sorted)
			assert.Len(t, slices.Compact(sorted), len(got), "addresses must not repeat")
		})
	}
}

func TestIndexSpaceOrder(t *testing.T) {
	g := NewGeometry(Geometry{}, []int{2, 2}, 4)
	var got [][]int
	for idx := range g.IndexSpace() {
		got = append(got, slices.Clone(idx))
	}
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, got)

	// The sequence restarts from the first tuple
	n := 0
	for range g.IndexSpace() {
		n++
	}
	assert.Equal(t, 4, n)

	empty := NewGeometry(Geometry{}, []int{0}, 4)
	for range empty.IndexSpace() {
		t.Fatal("a zero dimension yields nothing")
	}
}

func TestIndexSuffix(t *testing.T) {
	assert.Equal(t, "[1][0]", IndexSuffix([]int{1, 0}))
	assert.Equal(t, "", IndexSuffix(nil))
}
