package rtl

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	e := Default()
	for _, name := range []string{
		"blank", "assign", "concat", "field_comment", "sw_write_lane",
		"reg_decoder", "mem_window", "read_mux", "module_start", "if_package",
	} {
		assert.True(t, e.Has(name), "template %s", name)
	}
	names := e.Names()
	assert.IsIncreasing(t, names)
	assert.False(t, e.Has("no_such_template"))
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		p    P
		want string
	}{
		{"scalar type", "logic_type", P{"width": 1}, "logic"},
		{"vector type", "logic_type", P{"width": 8}, "logic [7:0]"},
		{"one-bit vector type", "logic_type", P{"width": 1, "vector": true}, "logic [0:0]"},
		{"sized constant", "sized_const", P{"width": 4, "value": uint64(9)}, "4'd9"},
		{"single bit fill", "fill", P{"width": 1, "bit": "0"}, "1'b0"},
		{"wide fill", "fill", P{"width": 0, "bit": "1"}, "'1"},
		{"reserved fill", "rsvd_fill", P{"width": 3, "bit": "x"}, "{3{1'bx}}"},
		{"concatenation", "concat", P{"items": []string{"a", "b"}}, "{a, b}"},
		{"negation", "negate", P{"neg": true, "expr": "we"}, "!we"},
		{"plain", "negate", P{"neg": false, "expr": "we"}, "we"},
		{"inverted mask", "and_mask", P{"expr": "q", "mask": "m", "neg": true}, "q & ~m"},
		{"reduction", "reduce", P{"op": "|", "expr": "q"}, "|(q)"},
		{"cast", "cast", P{"type": "p::e", "expr": "q"}, "p::e'(q)"},
		{"offset", "offset_term", P{"genvar": "gv_a", "stride": uint64(16)}, "gv_a*16"},
		{"bus slice", "bus_slice", P{"msb": 15, "lsb": 8}, "b2r.data[15:8]"},
		{"byte enable", "byte_en_repl", P{"i": 2, "width": 8}, "{8{b2r.byte_en[2]}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expr(tt.tmpl, tt.p))
		})
	}
}

func TestOnWriteTemplates(t *testing.T) {
	p := P{"q": "f_q", "msb_field": 3, "lsb_field": 0, "msb_bus": 11, "lsb_bus": 8}
	tests := map[string]string{
		"onwrite_plain": "b2r.data[11:8]",
		"onwrite_woset": "f_q[3:0] | b2r.data[11:8]",
		"onwrite_woclr": "f_q[3:0] & ~b2r.data[11:8]",
		"onwrite_wot":   "f_q[3:0] ^ b2r.data[11:8]",
		"onwrite_wzs":   "f_q[3:0] | ~b2r.data[11:8]",
		"onwrite_wzc":   "f_q[3:0] & b2r.data[11:8]",
		"onwrite_wzt":   "f_q[3:0] ^ ~b2r.data[11:8]",
		"onwrite_wclr":  "'0",
		"onwrite_wset":  "'1",
	}
	for name, want := range tests {
		assert.Equal(t, want, Expr(name, p), name)
	}
}

func TestExecuteMissingParameter(t *testing.T) {
	_, err := Default().Execute("assign", P{"lhs": "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing parameter")

	_, err = Default().Execute("nope", nil)
	assert.Error(t, err)

	assert.Panics(t, func() { Expr("assign", P{}) })
}

func TestRenderSplitsLines(t *testing.T) {
	lines, err := Default().Render([]Fragment{
		F("reg_decoder", P{"name": "r", "g": "", "addr": uint64(4), "offsets": []string{"gv_a*8"}}),
		F("blank", nil),
		F("end", nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"// Register-activation for 'r'",
		"assign r_accss = b2r.addr == 4 + gv_a*8;",
		"assign r_sw_wr = r_accss && b2r.w_vld;",
		"assign r_sw_rd = r_accss && b2r.r_vld;",
		"",
		"end",
	}, lines)
}

func TestNewEngine(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		fsys := fstest.MapFS{
			"a.yaml": {Data: []byte("x: |-\n  one\n")},
			"b.yaml": {Data: []byte("x: |-\n  two\n")},
		}
		_, err := NewEngine(fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `template "x" defined in a.yaml and b.yaml`)
	})

	t.Run("broken template", func(t *testing.T) {
		fsys := fstest.MapFS{"a.yaml": {Data: []byte("x: '{{.a'\n")}}
		_, err := NewEngine(fsys)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewEngine(fstest.MapFS{})
		assert.Error(t, err)
	})

	t.Run("custom catalog", func(t *testing.T) {
		fsys := fstest.MapFS{"a.yaml": {Data: []byte("greet: |-\n  hello {{upper .who}} {{dims .d}}\n")}}
		e, err := NewEngine(fsys)
		require.NoError(t, err)
		out, err := e.Execute("greet", P{"who": "bus", "d": []int{2, 4}})
		require.NoError(t, err)
		assert.Equal(t, "hello BUS [2][4]", out)
	})
}

func TestDims(t *testing.T) {
	assert.Equal(t, "", Dims(nil))
	assert.Equal(t, "[3]", Dims([]int{3}))
}
