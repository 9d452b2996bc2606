package rdl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTree = `{
  "kind": "addrmap", "inst_name": "top",
  "children": [
    {"kind": "signal", "inst_name": "rst_n",
     "properties": {"async": true, "activelow": true}},
    {"kind": "reg", "inst_name": "ctrl", "absolute_address": 4, "regwidth": 32,
     "children": [
       {"kind": "field", "inst_name": "en", "lsb": 0, "msb": 0,
        "properties": {"sw": "rw", "hw": "r", "reset": 1,
                       "resetsignal": {"ref": "top.rst_n"}}},
       {"kind": "field", "inst_name": "mode", "lsb": 4, "msb": 5,
        "properties": {"sw": "rw", "hw": "r", "onwrite": "woclr",
                       "we": {"ref": "top.ctrl[0].en"},
                       "encode": {"name": "mode_e",
                                  "members": [{"name": "IDLE", "value": 0},
                                              {"name": "RUN", "value": 2, "desc": "running"}]}}}
     ]}
  ]
}`

func TestDecodeLinksTree(t *testing.T) {
	tree, err := Decode([]byte(sampleTree))
	require.NoError(t, err)

	mode, ok := tree.Lookup("top.ctrl.mode")
	require.True(t, ok)
	assert.Equal(t, "top.ctrl.mode", mode.Path())
	assert.Equal(t, "ctrl", mode.Parent().InstName)
	assert.Equal(t, 2, mode.FieldWidth())
	assert.Equal(t, "ctrl__mode", mode.RelPath(tree.Root, "__"))
	assert.Equal(t, 5, tree.Len())
}

func TestDecodeResolvesReferences(t *testing.T) {
	tree, err := Decode([]byte(sampleTree))
	require.NoError(t, err)

	mode, _ := tree.Lookup("top.ctrl.mode")
	we, ok := mode.Ref("we")
	require.True(t, ok)
	require.NotNil(t, we.Node)
	assert.Equal(t, "top.ctrl.en", we.Node.Path())
	assert.True(t, mode.Bool("we"))

	enum, ok := mode.Encoding()
	require.True(t, ok)
	assert.Equal(t, "mode_e", enum.Name)
	require.Len(t, enum.Members, 2)
	assert.Equal(t, uint64(2), enum.Members[1].Uint())
}

func TestAccessors(t *testing.T) {
	tree, err := Decode([]byte(sampleTree))
	require.NoError(t, err)

	en, _ := tree.Lookup("top.ctrl.en")
	assert.Equal(t, AccessRW, en.Access("sw"))
	assert.Equal(t, AccessR, en.Access("hw"))
	assert.Equal(t, PrecedenceSW, en.Precedence())
	assert.Equal(t, IntrLevel, en.InterruptType())

	rst := en.Reset()
	assert.Equal(t, "rst_n", rst.Signal)
	assert.True(t, rst.Async)
	assert.True(t, rst.ActiveLow)
	assert.Equal(t, "negedge", rst.Edge())
	assert.True(t, rst.HasValue)
	assert.Equal(t, uint64(1), rst.Value)

	mode, _ := tree.Lookup("top.ctrl.mode")
	assert.Equal(t, OnWriteWOClr, mode.OnWrite())
	assert.Equal(t, OnReadNone, mode.OnRead())
	assert.False(t, mode.Reset().HasValue)
	assert.Equal(t, "", mode.Reset().Signal)
}

func TestAccessTypePermissions(t *testing.T) {
	tests := []struct {
		access        AccessType
		read, written bool
	}{
		{AccessRW, true, true},
		{AccessR, true, false},
		{AccessW, false, true},
		{AccessNA, false, false},
	}
	for _, tt := range tests {
		if got := tt.access.CanRead(); got != tt.read {
			t.Errorf("%s.CanRead() = %v, want %v", tt.access, got, tt.read)
		}
		if got := tt.access.CanWrite(); got != tt.written {
			t.Errorf("%s.CanWrite() = %v, want %v", tt.access, got, tt.written)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "root kind",
			doc:  `{"kind": "reg", "inst_name": "r"}`,
			want: "expected an addrmap",
		},
		{
			name: "unknown reference",
			doc: `{"kind": "addrmap", "inst_name": "top", "children": [
			        {"kind": "reg", "inst_name": "r", "children": [
			          {"kind": "field", "inst_name": "f", "lsb": 0, "msb": 0,
			           "properties": {"we": {"ref": "top.missing"}}}]}]}`,
			want: "unknown instance",
		},
		{
			name: "duplicate sibling",
			doc: `{"kind": "addrmap", "inst_name": "top", "children": [
			        {"kind": "reg", "inst_name": "r"}, {"kind": "reg", "inst_name": "r"}]}`,
			want: "duplicate instance",
		},
		{
			name: "inverted range",
			doc: `{"kind": "addrmap", "inst_name": "top", "children": [
			        {"kind": "reg", "inst_name": "r", "children": [
			          {"kind": "field", "inst_name": "f", "lsb": 3, "msb": 1}]}]}`,
			want: "below lsb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err)
			}
		})
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	tree, err := Decode([]byte(sampleTree))
	require.NoError(t, err)

	var seen []string
	tree.Walk(func(n *Node) bool {
		seen = append(seen, n.InstName)
		return n.Kind != KindReg
	})
	assert.Equal(t, []string{"top", "rst_n", "ctrl"}, seen)
}
