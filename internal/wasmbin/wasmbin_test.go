package wasmbin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLEB128(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0x7F}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, appendSLEB(nil, tt.v), "sleb(%d)", tt.v)
	}

	require.Equal(t, []byte{0xE5, 0x8E, 0x26}, appendULEB(nil, 624485))
	require.Equal(t, []byte{0x80, 0x01}, appendULEB(nil, 128))
}

func TestEncodeMinimal(t *testing.T) {
	m := &Module{
		Funcs: []Func{{
			Export: "one",
			Type:   FuncType{Results: []ValType{I64}},
			Body:   new(Code).I64Const(1).Bytes(),
		}},
	}
	got := m.Encode()

	want := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		// type: one func () -> i64
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7E,
		// function: type 0
		0x03, 0x02, 0x01, 0x00,
		// export "one" func 0
		0x07, 0x07, 0x01, 0x03, 'o', 'n', 'e', 0x00, 0x00,
		// code: one body, size 4, no locals, i64.const 1, end
		0x0A, 0x06, 0x01, 0x04, 0x00, 0x42, 0x01, 0x0B,
	}
	require.Equal(t, want, got)
}

func TestEncodeDedupesTypes(t *testing.T) {
	sig := FuncType{Params: []ValType{I64}, Results: []ValType{I64}}
	m := &Module{
		Imports: []Import{{Module: "env", Name: "f", Type: sig}},
		Funcs: []Func{
			{Export: "a", Type: sig, Body: new(Code).LocalGet(0).Bytes()},
			{Export: "b", Type: sig, Body: new(Code).LocalGet(0).Bytes()},
		},
	}
	out := m.Encode()

	// Type section holds exactly one signature.
	require.True(t, bytes.HasPrefix(out[8:], []byte{0x01, 0x06, 0x01, 0x60, 0x01, 0x7E, 0x01, 0x7E}))
	require.Equal(t, 0, m.ImportIndex("f"))
	require.Equal(t, -1, m.ImportIndex("g"))
	require.Equal(t, uint32(2), m.FuncIndex(1))
	require.NotNil(t, m.Export("b"))
	require.Nil(t, m.Export("c"))
}

func TestEncodeLocalGroups(t *testing.T) {
	body := encodeBody(Func{Locals: []ValType{I64, I64, I32}})
	require.Equal(t, []byte{0x02, 0x02, 0x7E, 0x01, 0x7F, 0x0B}, body)
}
