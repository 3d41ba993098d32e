// Package wasmbin encodes small WebAssembly modules.
//
// It covers what the reference contracts and test fixtures need: function
// types, function imports, one memory, exports and code. Modules are built in
// Go and encoded to the binary format; there is no text format parser.
package wasmbin

import (
	"bytes"
)

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
)

// Section ids.
const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
)

// Export kinds.
const (
	exportFunc   = 0x00
	exportMemory = 0x02
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (t FuncType) key() string {
	return string(t.Params) + "|" + string(t.Results)
}

// Import is an imported function.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Func is a function defined by the module.
type Func struct {
	// Export is the export name. Empty keeps the function internal.
	Export string

	Type FuncType

	// Locals are declared after the parameters.
	Locals []ValType

	// Body is the instruction sequence without the final end.
	Body []byte
}

// Module is a module under construction.
type Module struct {
	Imports []Import
	Funcs   []Func

	// MemoryPages is the minimum memory size. Zero declares no memory.
	MemoryPages uint32

	// MemoryExport names the exported memory, if any.
	MemoryExport string
}

// ImportIndex returns the function index of an import, or -1.
func (m *Module) ImportIndex(name string) int {
	for i, imp := range m.Imports {
		if imp.Name == name {
			return i
		}
	}
	return -1
}

// FuncIndex returns the function index of the nth defined function.
func (m *Module) FuncIndex(n int) uint32 {
	return uint32(len(m.Imports) + n)
}

// Export returns the defined function exported under name, or nil.
func (m *Module) Export(name string) *Func {
	for i := range m.Funcs {
		if m.Funcs[i].Export == name {
			return &m.Funcs[i]
		}
	}
	return nil
}

// Encode returns the module in binary format.
func (m *Module) Encode() []byte {
	var types []FuncType
	typeIdx := make(map[string]uint32)
	typeOf := func(t FuncType) uint32 {
		if idx, ok := typeIdx[t.key()]; ok {
			return idx
		}
		idx := uint32(len(types))
		types = append(types, t)
		typeIdx[t.key()] = idx
		return idx
	}

	var imports, funcs, exports, code bytes.Buffer
	var nexports uint32

	writeU32(&imports, uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		writeName(&imports, imp.Module)
		writeName(&imports, imp.Name)
		imports.WriteByte(exportFunc)
		writeU32(&imports, typeOf(imp.Type))
	}

	writeU32(&funcs, uint32(len(m.Funcs)))
	writeU32(&code, uint32(len(m.Funcs)))
	for i, fn := range m.Funcs {
		writeU32(&funcs, typeOf(fn.Type))
		if fn.Export != "" {
			writeName(&exports, fn.Export)
			exports.WriteByte(exportFunc)
			writeU32(&exports, m.FuncIndex(i))
			nexports++
		}
		body := encodeBody(fn)
		writeU32(&code, uint32(len(body)))
		code.Write(body)
	}
	if m.MemoryPages > 0 && m.MemoryExport != "" {
		writeName(&exports, m.MemoryExport)
		exports.WriteByte(exportMemory)
		writeU32(&exports, 0)
		nexports++
	}

	var typeSec bytes.Buffer
	writeU32(&typeSec, uint32(len(types)))
	for _, t := range types {
		typeSec.WriteByte(0x60)
		writeU32(&typeSec, uint32(len(t.Params)))
		for _, p := range t.Params {
			typeSec.WriteByte(byte(p))
		}
		writeU32(&typeSec, uint32(len(t.Results)))
		for _, r := range t.Results {
			typeSec.WriteByte(byte(r))
		}
	}

	var out bytes.Buffer
	out.Write(header)
	writeSection(&out, sectionType, typeSec.Bytes())
	if len(m.Imports) > 0 {
		writeSection(&out, sectionImport, imports.Bytes())
	}
	writeSection(&out, sectionFunction, funcs.Bytes())
	if m.MemoryPages > 0 {
		var mem bytes.Buffer
		writeU32(&mem, 1)
		mem.WriteByte(0x00) // min only
		writeU32(&mem, m.MemoryPages)
		writeSection(&out, sectionMemory, mem.Bytes())
	}
	var exportSec bytes.Buffer
	writeU32(&exportSec, nexports)
	exportSec.Write(exports.Bytes())
	writeSection(&out, sectionExport, exportSec.Bytes())
	writeSection(&out, sectionCode, code.Bytes())
	return out.Bytes()
}

func encodeBody(fn Func) []byte {
	var b bytes.Buffer

	// Locals are grouped by consecutive runs of the same type.
	type group struct {
		n uint32
		t ValType
	}
	var groups []group
	for _, l := range fn.Locals {
		if len(groups) > 0 && groups[len(groups)-1].t == l {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: l})
	}
	writeU32(&b, uint32(len(groups)))
	for _, g := range groups {
		writeU32(&b, g.n)
		b.WriteByte(byte(g.t))
	}

	b.Write(fn.Body)
	b.WriteByte(opEnd)
	return b.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, payload []byte) {
	out.WriteByte(id)
	writeU32(out, uint32(len(payload)))
	out.Write(payload)
}

func writeName(b *bytes.Buffer, s string) {
	writeU32(b, uint32(len(s)))
	b.WriteString(s)
}

func writeU32(b *bytes.Buffer, v uint32) {
	b.Write(appendULEB(nil, uint64(v)))
}

func appendULEB(dst []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			dst = append(dst, c|0x80)
			continue
		}
		return append(dst, c)
	}
}

func appendSLEB(dst []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(dst, c)
		}
		dst = append(dst, c|0x80)
	}
}
