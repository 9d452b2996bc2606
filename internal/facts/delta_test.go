package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeltaIdentical(t *testing.T) {
	a, b := buildTables(t, "0"), buildTables(t, "0")
	delta := ComputeDelta(a, b)
	assert.True(t, delta.Empty())
	assert.NotNil(t, delta.Added.Fields, "empty relations serialize as []")
}

func TestComputeDeltaResetChange(t *testing.T) {
	prev, next := buildTables(t, "0"), buildTables(t, "2")
	delta := ComputeDelta(prev, next)

	require.Len(t, delta.Added.Fields, 1)
	require.Len(t, delta.Removed.Fields, 1)
	assert.Equal(t, "0x2", delta.Added.Fields[0].Reset)
	assert.Equal(t, "0x0", delta.Removed.Fields[0].Reset)

	require.Len(t, delta.Added.Modules, 1, "the fingerprint follows the definition")
	require.Len(t, delta.Removed.Modules, 1)
	assert.NotEqual(t, delta.Added.Modules[0].Fingerprint, delta.Removed.Modules[0].Fingerprint)

	assert.Empty(t, delta.Added.Addresses)
	assert.Empty(t, delta.Added.Ports)
	assert.Empty(t, delta.Removed.Enums)
}

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		Addresses: []AddressRow{{Module: "m", Path: "m.a", Kind: "reg", Address: 0, Size: 4}},
		Enums:     []EnumRow{{Package: "m_pkg", Type: "e", Member: "A", Value: 0}},
	}
	next := Tables{
		Addresses: []AddressRow{{Module: "m", Path: "m.a", Kind: "reg", Address: 4, Size: 4}},
		Enums:     []EnumRow{{Package: "m_pkg", Type: "e", Member: "A", Value: 0}},
	}

	delta := ComputeDelta(prev, next)
	assert.Equal(t, []AddressRow{next.Addresses[0]}, delta.Added.Addresses)
	assert.Equal(t, []AddressRow{prev.Addresses[0]}, delta.Removed.Addresses)
	assert.Empty(t, delta.Added.Enums)
	assert.False(t, delta.Empty())
}
