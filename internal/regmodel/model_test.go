package regmodel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/lower"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
)

const allBytes = 0xf

func build(t *testing.T, src string) *Model {
	t.Helper()
	tree, err := rdl.Decode([]byte(src))
	require.NoError(t, err)
	res, err := lower.Lower(tree, lower.DefaultOptions(), diag.NewReporter(nil, true))
	require.NoError(t, err)
	m, err := New(res.Top, nil)
	require.NoError(t, err)
	return m
}

func oneField(props string) string {
	return `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "r", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "f", "lsb": 0, "msb": 7, "properties": ` + props + `}]}]}`
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "r", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "lo", "lsb": 0, "msb": 11, "properties": {"sw": "rw", "hw": "r", "reset": 0}},
	    {"kind": "field", "inst_name": "hi", "lsb": 16, "msb": 31, "properties": {"sw": "rw", "hw": "r", "reset": 0}}]}]}`)

	for _, v := range []uint64{0, 1, 0x5a5, 0xfff, 0xabcd0123, 0xffff0fff} {
		require.NoError(t, m.Write(0, v, allBytes))
		got, err := m.Read(0)
		require.NoError(t, err)
		assert.Equal(t, v, got, "value 0x%x", v)
	}
}

func TestByteEnables(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "r", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "f", "lsb": 4, "msb": 19, "properties": {"sw": "rw", "hw": "r", "reset": 0}}]}]}`)

	require.NoError(t, m.Write(0, 0xfffff, 0b010))
	v, err := m.Value("r__f")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xff0), v, "only the middle lane is written")
}

func TestCounterSaturates(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "r", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "cnt", "lsb": 0, "msb": 3,
	     "properties": {"sw": "r", "hw": "r", "counter": true, "incrvalue": 1, "incrsaturate": true,
	                    "decrvalue": 0, "reset": 0}}]}]}`)

	for i := range 20 {
		require.NoError(t, m.Pulse("r__cnt", Incr))
		m.Tick()
		v, _ := m.Value("r__cnt")
		assert.Equal(t, uint64(min(i+1, 15)), v, "after %d increments", i+1)
	}
	got, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), got)
}

func TestCounterWraps(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "r", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "cnt", "lsb": 0, "msb": 1,
	     "properties": {"sw": "r", "hw": "r", "counter": true, "reset": 0}}]}]}`)

	for range 5 {
		require.NoError(t, m.Pulse("r__cnt", Incr))
		m.Tick()
	}
	v, _ := m.Value("r__cnt")
	assert.Equal(t, uint64(1), v)

	require.NoError(t, m.Pulse("r__cnt", Decr))
	require.NoError(t, m.Pulse("r__cnt", Decr))
	m.Tick()
	v, _ = m.Value("r__cnt")
	assert.Equal(t, uint64(0), v, "one strobe per cycle")
}

func TestOnWrite(t *testing.T) {
	tests := []struct {
		onwrite string
		write   uint64
		want    uint64
	}{
		{"woset", 0x0f, 0x3f},
		{"woclr", 0x0f, 0x30},
		{"wot", 0x0f, 0x39},
		{"wzs", 0xf0, 0x3f},
		{"wzc", 0xf0, 0x30},
		{"wzt", 0xf0, 0x39},
		{"wclr", 0x12, 0x00},
		{"wset", 0x12, 0xff},
	}
	for _, tt := range tests {
		t.Run(tt.onwrite, func(t *testing.T) {
			m := build(t, oneField(`{"sw": "rw", "hw": "r", "reset": 54, "onwrite": "`+tt.onwrite+`"}`))
			require.NoError(t, m.Write(0, tt.write, allBytes))
			v, err := m.Value("r__f")
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestReadClear(t *testing.T) {
	m := build(t, oneField(`{"sw": "r", "hw": "w", "we": true, "onread": "rclr", "reset": 0}`))
	require.NoError(t, m.SetInput("r__f", 0x42))
	require.NoError(t, m.Pulse("r__f", HWWrite))
	m.Tick()

	first, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x42), first)
	second, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), second)
}

func TestHardwarePrecedence(t *testing.T) {
	src := func(prec string) string {
		return oneField(`{"sw": "rw", "hw": "w", "we": true, "precedence": "` + prec + `", "reset": 0}`)
	}
	for prec, want := range map[string]uint64{"hw": 0x11, "sw": 0x22} {
		t.Run(prec, func(t *testing.T) {
			m := build(t, src(prec))
			require.NoError(t, m.SetInput("r__f", 0x11))
			require.NoError(t, m.Pulse("r__f", HWWrite))
			require.NoError(t, m.Write(0, 0x22, allBytes))
			v, _ := m.Value("r__f")
			assert.Equal(t, want, v)
		})
	}
}

func TestStickyInterrupt(t *testing.T) {
	m := build(t, oneField(`{"sw": "rw", "hw": "w", "intr": true, "stickybit": true, "onwrite": "woclr", "reset": 0}`))

	require.NoError(t, m.SetInput("r__f", 0x01))
	m.Tick()
	require.NoError(t, m.SetInput("r__f", 0x04))
	m.Tick()
	require.NoError(t, m.SetInput("r__f", 0))
	m.Tick()
	v, _ := m.Value("r__f")
	assert.Equal(t, uint64(0x05), v, "bits accumulate and hold")

	require.NoError(t, m.Write(0, 0x01, allBytes))
	v, _ = m.Value("r__f")
	assert.Equal(t, uint64(0x04), v)
}

func TestPosedgeInterrupt(t *testing.T) {
	m := build(t, oneField(`{"sw": "rw", "hw": "w", "intr": true, "stickybit": true, "intrtype": "posedge",
	  "onwrite": "woclr", "reset": 0}`))

	require.NoError(t, m.SetInput("r__f", 0x01))
	m.Tick()
	require.NoError(t, m.Write(0, 0x01, allBytes))
	m.Tick()
	v, _ := m.Value("r__f")
	assert.Equal(t, uint64(0), v, "a held level does not latch again")
}

func TestConstantAndWire(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "r", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "id", "lsb": 0, "msb": 7, "properties": {"sw": "r", "hw": "r", "reset": 171}},
	    {"kind": "field", "inst_name": "st", "lsb": 8, "msb": 15, "properties": {"sw": "r", "hw": "w"}}]}]}`)

	require.NoError(t, m.SetInput("r__st", 0x3c))
	require.NoError(t, m.Write(0, 0xffff, allBytes))
	got, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3cab), got)
}

func TestAliasAndArrays(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "properties": {"rsvdset": true}, "children": [
	  {"kind": "reg", "inst_name": "p", "regwidth": 32, "children": [
	    {"kind": "field", "inst_name": "f", "lsb": 0, "msb": 7, "properties": {"sw": "rw", "hw": "r", "reset": 0}}]},
	  {"kind": "reg", "inst_name": "a", "absolute_address": 4, "regwidth": 32, "is_alias": true,
	   "alias_primary": "top.p", "children": [
	    {"kind": "field", "inst_name": "f", "lsb": 0, "msb": 7,
	     "properties": {"sw": "rw", "hw": "r", "onwrite": "woclr"}}]},
	  {"kind": "reg", "inst_name": "arr", "absolute_address": 16, "regwidth": 32,
	   "array_dimensions": [2], "array_stride": 4, "children": [
	    {"kind": "field", "inst_name": "v", "lsb": 0, "msb": 15, "properties": {"sw": "rw", "hw": "r", "reset": 0}}]}]}`)

	assert.Equal(t, []string{"p__f", "arr__v[0]", "arr__v[1]"}, m.Keys())

	require.NoError(t, m.Write(0, 0xff, allBytes))
	require.NoError(t, m.Write(4, 0x0f, allBytes))
	got, err := m.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffffff00|0xf0), got, "reserved bits read as ones")

	require.NoError(t, m.Write(20, 0x1234, allBytes))
	v0, _ := m.Value("arr__v[0]")
	v1, _ := m.Value("arr__v[1]")
	assert.Equal(t, uint64(0), v0)
	assert.Equal(t, uint64(0x1234), v1)
}

func TestModelErrors(t *testing.T) {
	m := build(t, `{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "x", "regwidth": 32, "properties": {"external": true}, "children": [
	    {"kind": "field", "inst_name": "f", "lsb": 0, "msb": 7, "properties": {"sw": "rw", "hw": "r"}}]},
	  {"kind": "mem", "inst_name": "ram", "absolute_address": 256, "size": 256,
	   "mementries": 64, "memwidth": 32, "properties": {"sw": "rw"}}]}`)

	_, err := m.Read(0x40)
	assert.True(t, errors.Is(err, ErrUnmapped))
	_, err = m.Read(0)
	assert.True(t, errors.Is(err, ErrExternal))
	assert.True(t, errors.Is(m.Write(256, 0, allBytes), ErrWindow))
	assert.True(t, errors.Is(m.SetInput("nope", 1), ErrUnknownField))
	assert.True(t, errors.Is(m.Pulse("nope", Incr), ErrUnknownField))
}

func TestResetRestoresValues(t *testing.T) {
	m := build(t, oneField(`{"sw": "rw", "hw": "r", "reset": 7}`))
	require.NoError(t, m.Write(0, 0x99, allBytes))
	assert.Equal(t, uint64(1), m.Cycle())
	m.Reset()
	v, _ := m.Value("r__f")
	assert.Equal(t, uint64(7), v)
	assert.Equal(t, uint64(0), m.Cycle())
}
