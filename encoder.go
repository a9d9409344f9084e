package wasm

import (
	"encoding/binary"
	"math"
)

type (
	LowEncoder struct{}
)

func (e *LowEncoder) Int(b []byte, v int) []byte {
	return e.Uint64(b, uint64(v))
}

func (e *LowEncoder) Uint64(b []byte, v uint64) []byte {
	for {
		x := byte(v) & 0x7f
		v >>= 7

		if v != 0 {
			x |= 0x80
		}

		b = append(b, x)

		if x&0x80 == 0 {
			break
		}
	}

	return b
}

func (e *LowEncoder) Int64(b []byte, v int64) []byte {
	for {
		x := byte(v) & 0x7f
		s := byte(v) & 0x40
		v >>= 7

		if s == 0 && v != 0 || s != 0 && v != -1 {
			x |= 0x80
		}

		b = append(b, x)

		if x&0x80 == 0 {
			break
		}
	}

	return b
}

// Padded writes v as a leb of exactly n bytes.
// Producers use it to reserve space for lengths patched later.
func (e *LowEncoder) Padded(b []byte, v uint64, n int) []byte {
	for j := 0; j < n; j++ {
		x := byte(v) & 0x7f
		v >>= 7

		if j < n-1 {
			x |= 0x80
		}

		b = append(b, x)
	}

	return b
}

func (e *LowEncoder) Float64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func (e *LowEncoder) Name(b []byte, v string) []byte {
	b = e.Int(b, len(v))
	b = append(b, v...)

	return b
}

func (e *LowEncoder) Header(b []byte, version int) []byte {
	b = append(b, Magic...)

	return binary.LittleEndian.AppendUint32(b, uint32(version))
}

func (e *LowEncoder) Section(b []byte, id SectionID, data []byte) []byte {
	b = append(b, byte(id))
	b = e.Int(b, len(data))
	b = append(b, data...)

	return b
}

func (e *LowEncoder) CustomSection(b []byte, name string, data []byte) []byte {
	var p []byte

	p = e.Name(p, name)
	p = append(p, data...)

	return e.Section(b, CustomSection, p)
}

// Vector writes the element count followed by already encoded elements.
func (e *LowEncoder) Vector(b []byte, elems ...[]byte) []byte {
	b = e.Int(b, len(elems))

	for _, x := range elems {
		b = append(b, x...)
	}

	return b
}

func (e *LowEncoder) ResultType(b []byte, tp ...Type) []byte {
	b = e.Int(b, len(tp))

	for _, t := range tp {
		b = append(b, byte(t))
	}

	return b
}

func (e *LowEncoder) FuncType(b []byte, params, result []Type) []byte {
	b = append(b, FuncTypeHeader)
	b = e.ResultType(b, params...)
	b = e.ResultType(b, result...)

	return b
}

func (e *LowEncoder) Limits(b []byte, lo, hi int) []byte {
	if hi < 0 {
		b = append(b, LimitLo)
		return e.Int(b, lo)
	}

	b = append(b, LimitLoHi)
	b = e.Int(b, lo)
	b = e.Int(b, hi)

	return b
}

func (e *LowEncoder) TableType(b []byte, tp Type, lo, hi int) []byte {
	b = append(b, byte(tp))
	b = e.Limits(b, lo, hi)
	return b
}

func (e *LowEncoder) GlobalType(b []byte, tp Type, mut byte) []byte {
	return append(b, byte(tp), mut)
}

// FuncBody writes a code section entry with its body_size prefix.
func (e *LowEncoder) FuncBody(b []byte, locals []Local, code []byte) []byte {
	var body []byte

	body = e.Int(body, len(locals))

	for _, l := range locals {
		body = e.Int(body, l.Count)
		body = append(body, byte(l.Type))
	}

	body = append(body, code...)

	b = e.Int(b, len(body))
	b = append(b, body...)

	return b
}
