package wasmbin

// Opcodes.
const (
	opUnreachable = 0x00
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0B
	opBr          = 0x0C
	opBrIf        = 0x0D
	opReturn      = 0x0F
	opCall        = 0x10
	opDrop        = 0x1A
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opI64Const    = 0x42
	opI32Eqz      = 0x45
	opI64Eqz      = 0x50
	opI64LtS      = 0x53
	opI64GtS      = 0x55
	opI64Add      = 0x7C
	opI64Sub      = 0x7D

	blockEmpty = 0x40
)

// Code builds a function body.
type Code struct {
	buf []byte
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte {
	return c.buf
}

func (c *Code) op(b ...byte) *Code {
	c.buf = append(c.buf, b...)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Else() *Code        { return c.op(opElse) }
func (c *Code) End() *Code         { return c.op(opEnd) }
func (c *Code) Return() *Code      { return c.op(opReturn) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) I32Eqz() *Code      { return c.op(opI32Eqz) }
func (c *Code) I64Eqz() *Code      { return c.op(opI64Eqz) }
func (c *Code) I64LtS() *Code      { return c.op(opI64LtS) }
func (c *Code) I64GtS() *Code      { return c.op(opI64GtS) }
func (c *Code) I64Add() *Code      { return c.op(opI64Add) }
func (c *Code) I64Sub() *Code      { return c.op(opI64Sub) }

// If opens an if block with no result.
func (c *Code) If() *Code { return c.op(opIf, blockEmpty) }

// Loop opens a loop block with no result.
func (c *Code) Loop() *Code { return c.op(opLoop, blockEmpty) }

// Br branches to the enclosing block at depth.
func (c *Code) Br(depth uint32) *Code {
	c.op(opBr)
	c.buf = appendULEB(c.buf, uint64(depth))
	return c
}

// BrIf branches to the block at depth if the i32 on the stack is non-zero.
func (c *Code) BrIf(depth uint32) *Code {
	c.op(opBrIf)
	c.buf = appendULEB(c.buf, uint64(depth))
	return c
}

// Call calls the function at idx.
func (c *Code) Call(idx uint32) *Code {
	c.op(opCall)
	c.buf = appendULEB(c.buf, uint64(idx))
	return c
}

// LocalGet pushes local idx.
func (c *Code) LocalGet(idx uint32) *Code {
	c.op(opLocalGet)
	c.buf = appendULEB(c.buf, uint64(idx))
	return c
}

// LocalSet pops into local idx.
func (c *Code) LocalSet(idx uint32) *Code {
	c.op(opLocalSet)
	c.buf = appendULEB(c.buf, uint64(idx))
	return c
}

// I64Const pushes v.
func (c *Code) I64Const(v int64) *Code {
	c.op(opI64Const)
	c.buf = appendSLEB(c.buf, v)
	return c
}

// TrapIf traps when the i32 on the stack is non-zero.
func (c *Code) TrapIf() *Code {
	return c.If().Unreachable().End()
}
