package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputContract(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{
			name: "valid map",
			json: `{"kind": "addrmap", "inst_name": "top", "children": [
			  {"kind": "signal", "inst_name": "rst_n", "properties": {"activelow": true}},
			  {"kind": "reg", "inst_name": "r", "regwidth": 32, "array_dimensions": [4], "array_stride": 4, "children": [
			    {"kind": "field", "inst_name": "f", "lsb": 0, "msb": 3, "properties": {
			      "sw": "rw", "hw": "r", "reset": 0, "resetsignal": {"ref": "top.rst_n"},
			      "encode": {"name": "f_e", "scope": [{"kind": "reg", "name": "r"}],
			                 "members": [{"name": "A", "value": 0}, {"name": "B", "value": 3, "desc": "b"}]}}}]}]}`,
		},
		{
			name:    "root must be an address-map",
			json:    `{"kind": "reg", "inst_name": "r"}`,
			wantErr: "kind",
		},
		{
			name:    "unknown kind",
			json:    `{"kind": "addrmap", "inst_name": "top", "children": [{"kind": "block", "inst_name": "b"}]}`,
			wantErr: "kind",
		},
		{
			name:    "unknown key",
			json:    `{"kind": "addrmap", "inst_name": "top", "base_address": 0}`,
			wantErr: "base_address",
		},
		{
			name:    "missing instance name",
			json:    `{"kind": "addrmap"}`,
			wantErr: "inst_name",
		},
		{
			name:    "bad identifier",
			json:    `{"kind": "addrmap", "inst_name": "1top"}`,
			wantErr: "inst_name",
		},
		{
			name:    "negative address",
			json:    `{"kind": "addrmap", "inst_name": "top", "absolute_address": -4}`,
			wantErr: "absolute_address",
		},
		{
			name: "bad access",
			json: `{"kind": "addrmap", "inst_name": "top", "children": [{"kind": "reg", "inst_name": "r", "children": [
			  {"kind": "field", "inst_name": "f", "properties": {"sw": "rx"}}]}]}`,
			wantErr: "sw",
		},
		{
			name: "encoding without members",
			json: `{"kind": "addrmap", "inst_name": "top", "children": [{"kind": "reg", "inst_name": "r", "children": [
			  {"kind": "field", "inst_name": "f", "properties": {"encode": {"name": "e", "members": []}}}]}]}`,
			wantErr: "encode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tt.json))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.Nil(t, v.ValidationErrors([]byte(tt.json)))
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NotEmpty(t, v.ValidationErrors([]byte(tt.json)))
		})
	}
}

func TestValidateMarshalsGoValues(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]any{"kind": "addrmap", "inst_name": "top"}))
	assert.Error(t, v.Validate(map[string]any{"kind": "addrmap", "inst_name": "top", "regwidth": "32"}))
	assert.Error(t, v.Validate(func() {}), "functions cannot be marshaled")
}

func TestValidationErrorsListsEveryError(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	errs := v.ValidationErrors([]byte(`{"kind": "addrmap", "inst_name": "top", "children": [
	  {"kind": "reg", "inst_name": "a", "regwidth": "wide"},
	  {"kind": "reg", "inst_name": "b", "size": -1}]}`))
	require.GreaterOrEqual(t, len(errs), 2)
	joined := strings.Join(errs, "\n")
	assert.Contains(t, joined, "regwidth")
	assert.Contains(t, joined, "size")

	assert.NotEmpty(t, v.ValidationErrors([]byte(`{not json`)))
}

func TestFactsContract(t *testing.T) {
	v, err := NewFactsValidator()
	require.NoError(t, err)

	valid := map[string]any{
		"modules":   []any{map[string]any{"name": "top", "path": "top", "data_width": 32, "fingerprint": "9f3a"}},
		"addresses": []any{map[string]any{"module": "top", "name": "r", "path": "top.r", "kind": "reg", "address": 0, "size": 4}},
		"fields": []any{map[string]any{
			"module": "top", "register": "r", "path": "top.r.f", "lsb": 0, "msb": 3,
			"storage": "FLOPS", "sw": "rw", "hw": "r", "precedence": "sw", "reset": "0x0",
		}},
		"ports": []any{map[string]any{"module": "top", "name": "clk", "direction": "input", "type": "logic"}},
		"enums": []any{map[string]any{"package": "top_pkg", "type": "e", "member": "A", "value": 0}},
	}
	assert.NoError(t, v.Validate(valid))

	badRange := map[string]any{
		"fields": []any{map[string]any{
			"module": "top", "register": "r", "path": "top.r.f", "lsb": 4, "msb": 3,
			"storage": "FLOPS", "sw": "rw", "hw": "r", "precedence": "sw", "reset": "",
		}},
	}
	assert.Error(t, v.Validate(badRange))

	badKind := map[string]any{
		"addresses": []any{map[string]any{"module": "top", "name": "r", "path": "top.r", "kind": "window", "address": 0, "size": 4}},
	}
	assert.Error(t, v.Validate(badKind))
}
