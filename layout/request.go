package layout

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Op is a host operation a Request asks for.
	Op byte

	// Kind is a segment type as the host knows it.
	Kind byte

	// Request is one host annotation call.
	// Addr is an absolute offset in the module buffer.
	Request struct {
		Op   Op
		Addr int

		// OpSegment: exclusive end.
		End int

		// OpName: bytes the label stands for. OpScalar: width.
		Size int

		Name string
		Kind Kind
	}
)

const (
	OpProcessor Op = iota
	OpSegment
	OpName
	OpScalar
	OpByte
	OpCode
)

const (
	Data Kind = iota
	Code
)

var opNames = [...]string{
	OpProcessor: "processor",
	OpSegment:   "segment",
	OpName:      "name",
	OpScalar:    "scalar",
	OpByte:      "byte",
	OpCode:      "code",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}

	return fmt.Sprintf("op%d", int(op))
}

func (k Kind) String() string {
	if k == Code {
		return "CODE"
	}

	return "DATA"
}

func (k Kind) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, k.String())
}

func (r Request) String() string {
	switch r.Op {
	case OpProcessor:
		return fmt.Sprintf("%v %q", r.Op, r.Name)
	case OpSegment:
		return fmt.Sprintf("%v [0x%x, 0x%x) %q %v", r.Op, r.Addr, r.End, r.Name, r.Kind)
	case OpName:
		return fmt.Sprintf("%v 0x%x %q /%d", r.Op, r.Addr, r.Name, r.Size)
	case OpScalar:
		return fmt.Sprintf("%v 0x%x /%d", r.Op, r.Addr, r.Size)
	default:
		return fmt.Sprintf("%v 0x%x", r.Op, r.Addr)
	}
}

func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}
