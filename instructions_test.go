package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction(tb *testing.T) {
	var d InstructionsDecoder

	for _, x := range []struct {
		b  []byte
		op Opcode
	}{
		{[]byte{Nop}, Nop},
		{[]byte{Block, EmptyBlock}, Block},
		{[]byte{Loop, I32}, Loop},
		{[]byte{If, 0x05}, If},
		{[]byte{Br, 0x80, 0x01}, Br},
		{[]byte{BrTable, 0x02, 0x00, 0x01, 0x02}, BrTable},
		{[]byte{CallIndir, 0x01, 0x00}, CallIndir},
		{[]byte{SelectT, 0x01, I64}, SelectT},
		{[]byte{I32Load, 0x02, 0x10}, I32Load},
		{[]byte{I64Store32, 0x02, 0x80, 0x01}, I64Store32},
		{[]byte{MemoryGrow, 0x00}, MemoryGrow},
		{[]byte{I32Const, 0x7f}, I32Const},
		{[]byte{I64Const, 0xc0, 0xbb, 0x78}, I64Const},
		{[]byte{F32Const, 0, 0, 0x80, 0x3f}, F32Const},
		{[]byte{F64Const, 0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, F64Const},
		{[]byte{0x6a}, 0x6a},
		{[]byte{0xc4}, 0xc4},
		{[]byte{RefNull, FuncRef}, RefNull},
		{[]byte{RefIsNull}, RefIsNull},
		{[]byte{RefFunc, 0x03}, RefFunc},
		{[]byte{FCExt, 0x00}, FCExt},
		{[]byte{FCExt, FCMemoryInit, 0x01, 0x00}, FCExt},
		{[]byte{FCExt, FCMemoryCopy, 0x00, 0x00}, FCExt},
		{[]byte{FCExt, FCMemoryFill, 0x00}, FCExt},
		{[]byte{FCExt, FCTableFill, 0x00}, FCExt},
	} {
		op, i, err := d.Instruction(x.b, 0)
		assert.NoError(tb, err, "% x", x.b)
		assert.Equal(tb, x.op, op, "% x", x.b)
		assert.Equal(tb, len(x.b), i, "% x", x.b)
	}
}

func TestInstructionUnsupported(tb *testing.T) {
	var d InstructionsDecoder

	for _, b := range [][]byte{
		{0x06},
		{0xfd, 0x00},
		{0xfe, 0x00},
		{FCExt, 0x12},
	} {
		_, i, err := d.Instruction(b, 0)
		assert.ErrorAs(tb, err, new(UnsupportedOpcodeError), "% x", b)
		assert.Equal(tb, 0, i)
	}

	_, _, err := d.Instruction([]byte{F64Const, 0, 0}, 0)
	assert.ErrorIs(tb, err, ErrUnexpectedEOF)
}

func TestExpr(tb *testing.T) {
	var d InstructionsDecoder

	tb.Run("Const", func(tb *testing.T) {
		b := []byte{I32Const, 0x2a, End, Nop}

		code, i, err := d.Expr(b, 0)
		require.NoError(tb, err)
		assert.Equal(tb, 3, i)
		assert.Equal(tb, Code(b[:3]), code)
	})

	tb.Run("Nested", func(tb *testing.T) {
		b := []byte{
			Block, EmptyBlock,
			LocalGet, 0x00,
			If, I32,
			I32Const, 0x01,
			Else,
			I32Const, 0x02,
			End,
			Drop,
			End,
			End,
		}

		_, i, err := d.Expr(b, 0)
		require.NoError(tb, err)
		assert.Equal(tb, len(b), i)
	})

	tb.Run("Unterminated", func(tb *testing.T) {
		_, i, err := d.Expr([]byte{Block, EmptyBlock, End}, 0)
		assert.ErrorIs(tb, err, ErrUnexpectedEOF)
		assert.Equal(tb, 0, i)
	})
}

func TestOpcodeString(tb *testing.T) {
	assert.Equal(tb, "i32.const", Opcode(I32Const).String())
	assert.Equal(tb, "i32.add", Opcode(0x6a).String())
	assert.Equal(tb, "i64.extend32_s", Opcode(0xc4).String())
	assert.Equal(tb, "i64.store32", Opcode(I64Store32).String())
	assert.Equal(tb, "fd", Opcode(0xfd).String())
}
