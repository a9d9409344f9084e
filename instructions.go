package wasm

import (
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	InstructionsDecoder struct {
		LowDecoder
	}

	UnsupportedOpcodeError struct {
		Opcode Opcode
		Args   []byte
	}

	Opcode byte

	// immediate is the shape of the operands following an opcode.
	immediate byte

	opInfo struct {
		name string
		imm  immediate
	}
)

const (
	immInvalid immediate = iota
	immNone
	immIndex    // one leb
	immIndex2   // two lebs: memarg, call_indirect
	immBlock    // block type
	immBrTable  // vector of labels and default
	immF32      // 4 raw bytes
	immF64      // 8 raw bytes
	immSelectT  // vector of value types
	immRefType  // one byte
	immPrefixFC // sub opcode and its operands
)

// Control and structural opcodes referenced by name.
const (
	Unreachable = 0x00
	Nop         = 0x01

	Block = 0x02
	Loop  = 0x03
	If    = 0x04
	Else  = 0x05
	End   = 0x0b

	Br      = 0x0c
	BrIf    = 0x0d
	BrTable = 0x0e
	Ret     = 0x0f

	Call      = 0x10
	CallIndir = 0x11

	Drop    = 0x1a
	Select  = 0x1b
	SelectT = 0x1c

	LocalGet  = 0x20
	GlobalSet = 0x24
	TableGet  = 0x25
	TableSet  = 0x26

	I32Load    = 0x28
	I64Store32 = 0x3e

	MemorySize = 0x3f
	MemoryGrow = 0x40

	I32Const = 0x41
	I64Const = 0x42
	F32Const = 0x43
	F64Const = 0x44

	I32EqZ = 0x45

	RefNull   = 0xd0
	RefIsNull = 0xd1
	RefFunc   = 0xd2

	FCExt = 0xfc
)

// FC ext opcodes
const (
	FCMemoryInit = 0x08
	FCMemoryCopy = 0x0a
	FCMemoryFill = 0x0b
	FCTableFill  = 0x11
)

var ops [256]opInfo

// number of leb operands of each FC sub opcode
var fcArgs = [...]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	2, 1, 2, 1,
	2, 1, 2, 1, 1, 1,
}

// numeric ops without immediates, in opcode order from I32EqZ
var numericNames = []string{
	"i32.eqz", "i32.eq", "i32.ne", "i32.lt_s", "i32.lt_u", "i32.gt_s", "i32.gt_u", "i32.le_s", "i32.le_u", "i32.ge_s", "i32.ge_u",
	"i64.eqz", "i64.eq", "i64.ne", "i64.lt_s", "i64.lt_u", "i64.gt_s", "i64.gt_u", "i64.le_s", "i64.le_u", "i64.ge_s", "i64.ge_u",
	"f32.eq", "f32.ne", "f32.lt", "f32.gt", "f32.le", "f32.ge",
	"f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge",
	"i32.clz", "i32.ctz", "i32.popcnt", "i32.add", "i32.sub", "i32.mul", "i32.div_s", "i32.div_u", "i32.rem_s", "i32.rem_u",
	"i32.and", "i32.or", "i32.xor", "i32.shl", "i32.shr_s", "i32.shr_u", "i32.rotl", "i32.rotr",
	"i64.clz", "i64.ctz", "i64.popcnt", "i64.add", "i64.sub", "i64.mul", "i64.div_s", "i64.div_u", "i64.rem_s", "i64.rem_u",
	"i64.and", "i64.or", "i64.xor", "i64.shl", "i64.shr_s", "i64.shr_u", "i64.rotl", "i64.rotr",
	"f32.abs", "f32.neg", "f32.ceil", "f32.floor", "f32.trunc", "f32.nearest", "f32.sqrt",
	"f32.add", "f32.sub", "f32.mul", "f32.div", "f32.min", "f32.max", "f32.copysign",
	"f64.abs", "f64.neg", "f64.ceil", "f64.floor", "f64.trunc", "f64.nearest", "f64.sqrt",
	"f64.add", "f64.sub", "f64.mul", "f64.div", "f64.min", "f64.max", "f64.copysign",
	"i32.wrap_i64", "i32.trunc_f32_s", "i32.trunc_f32_u", "i32.trunc_f64_s", "i32.trunc_f64_u",
	"i64.extend_i32_s", "i64.extend_i32_u", "i64.trunc_f32_s", "i64.trunc_f32_u", "i64.trunc_f64_s", "i64.trunc_f64_u",
	"f32.convert_i32_s", "f32.convert_i32_u", "f32.convert_i64_s", "f32.convert_i64_u", "f32.demote_f64",
	"f64.convert_i32_s", "f64.convert_i32_u", "f64.convert_i64_s", "f64.convert_i64_u", "f64.promote_f32",
	"i32.reinterpret_f32", "i64.reinterpret_f64", "f32.reinterpret_i32", "f64.reinterpret_i64",
	"i32.extend8_s", "i32.extend16_s", "i64.extend8_s", "i64.extend16_s", "i64.extend32_s",
}

var memoryNames = []string{
	"i32.load", "i64.load", "f32.load", "f64.load",
	"i32.load8_s", "i32.load8_u", "i32.load16_s", "i32.load16_u",
	"i64.load8_s", "i64.load8_u", "i64.load16_s", "i64.load16_u", "i64.load32_s", "i64.load32_u",
	"i32.store", "i64.store", "f32.store", "f64.store",
	"i32.store8", "i32.store16", "i64.store8", "i64.store16", "i64.store32",
}

func init() {
	set := func(op Opcode, name string, imm immediate) {
		ops[op] = opInfo{name: name, imm: imm}
	}

	set(Unreachable, "unreachable", immNone)
	set(Nop, "nop", immNone)
	set(Block, "block", immBlock)
	set(Loop, "loop", immBlock)
	set(If, "if", immBlock)
	set(Else, "else", immNone)
	set(End, "end", immNone)
	set(Br, "br", immIndex)
	set(BrIf, "br_if", immIndex)
	set(BrTable, "br_table", immBrTable)
	set(Ret, "return", immNone)
	set(Call, "call", immIndex)
	set(CallIndir, "call_indirect", immIndex2)

	set(Drop, "drop", immNone)
	set(Select, "select", immNone)
	set(SelectT, "select", immSelectT)

	set(LocalGet, "local.get", immIndex)
	set(0x21, "local.set", immIndex)
	set(0x22, "local.tee", immIndex)
	set(0x23, "global.get", immIndex)
	set(GlobalSet, "global.set", immIndex)
	set(TableGet, "table.get", immIndex)
	set(TableSet, "table.set", immIndex)

	for j, name := range memoryNames {
		set(Opcode(I32Load+j), name, immIndex2)
	}

	set(MemorySize, "memory.size", immIndex)
	set(MemoryGrow, "memory.grow", immIndex)

	// signed lebs, skipped the same way
	set(I32Const, "i32.const", immIndex)
	set(I64Const, "i64.const", immIndex)
	set(F32Const, "f32.const", immF32)
	set(F64Const, "f64.const", immF64)

	for j, name := range numericNames {
		set(Opcode(I32EqZ+j), name, immNone)
	}

	set(RefNull, "ref.null", immRefType)
	set(RefIsNull, "ref.is_null", immNone)
	set(RefFunc, "ref.func", immIndex)

	set(FCExt, "fc", immPrefixFC)

	if got := Opcode(I32EqZ + len(numericNames) - 1); got != 0xc4 {
		panic(got)
	}

	if got := Opcode(I32Load + len(memoryNames) - 1); got != I64Store32 {
		panic(got)
	}
}

// Instruction decodes one instruction at st and returns the position after it.
func (d *InstructionsDecoder) Instruction(b []byte, st int) (op Opcode, i int, err error) {
	x, i, err := d.Byte(b, st)
	if err != nil {
		return 0, st, err
	}

	op = Opcode(x)

	switch ops[op].imm {
	case immNone:
	case immIndex:
		_, i, err = d.Int64(b, i)
	case immIndex2:
		_, i, err = d.Int64(b, i)
		if err == nil {
			_, i, err = d.Int64(b, i)
		}
	case immBlock:
		i, err = d.blockType(b, i)
	case immBrTable:
		var l int

		l, i, err = d.Int(b, i)

		for j := 0; err == nil && j < l+1; j++ {
			_, i, err = d.Int(b, i)
		}
	case immF32:
		i, err = d.Skip(b, i, 4)
	case immF64:
		i, err = d.Skip(b, i, 8)
	case immSelectT:
		var l int

		l, i, err = d.Int(b, i)
		if err == nil {
			i, err = d.Skip(b, i, l)
		}
	case immRefType:
		_, i, err = d.Byte(b, i)
	case immPrefixFC:
		i, err = d.fcExt(b, st)
	default:
		err = UnsupportedOpcodeError{Opcode: op}
	}

	if err != nil {
		return op, st, errors.Wrap(err, "at pos 0x%x", st)
	}

	tlog.V("opcode").Printw("opcode", "i", tlog.NextAsHex, st, "op", op, "code", Code(b[st:i]))

	return op, i, nil
}

// Expr decodes instructions until the end matching the first block level.
func (d *InstructionsDecoder) Expr(b []byte, st int) (code Code, i int, err error) {
	i = st
	depth := 0

	for i < len(b) {
		var op Opcode

		op, i, err = d.Instruction(b, i)
		if err != nil {
			return nil, st, err
		}

		switch op {
		case Block, Loop, If:
			depth++
		case End:
			depth--
		}

		if depth < 0 {
			return b[st:i], i, nil
		}
	}

	return nil, st, ErrUnexpectedEOF
}

func (d *InstructionsDecoder) blockType(b []byte, st int) (i int, err error) {
	x, i, err := d.Byte(b, st)
	if err != nil {
		return st, err
	}

	switch x {
	case EmptyBlock, I32, I64, F32, F64, V128, FuncRef, ExternRef:
		return i, nil
	}

	// type index as s33
	_, i, err = d.Int64(b, st)

	return i, err
}

func (d *InstructionsDecoder) fcExt(b []byte, st int) (i int, err error) {
	op, i, err := d.Byte(b, st)
	if err != nil {
		return
	}
	if op != FCExt {
		return st, errors.New("fc ext expected")
	}

	p := i

	sub, i, err := d.Int(b, i)
	if err != nil {
		return st, err
	}

	if sub >= len(fcArgs) {
		return st, UnsupportedOpcodeError{Opcode: FCExt, Args: b[p:i]}
	}

	for j := 0; j < fcArgs[sub]; j++ {
		_, i, err = d.Int(b, i)
		if err != nil {
			return st, err
		}
	}

	return i, nil
}

func (e UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode: %v [% 02x]", e.Opcode, e.Args)
}

func (op Opcode) String() string {
	if n := ops[op].name; n != "" {
		return n
	}

	return fmt.Sprintf("%02x", int(op))
}
