package wasm

import "tlog.app/go/tlog/tlwire"

type (
	// Module is a decoded binary split into length-annotated nodes.
	// Header and Sections together cover the whole input buffer.
	Module struct {
		Version int

		Header   *Node
		Sections []*Section
	}

	// Section is one top-level unit of the module.
	// Node declares id, payload_len, name_len, name, payload and overhang.
	Section struct {
		ID   SectionID
		Name string // custom sections only

		Node *Node
	}

	SectionID byte

	Type byte
	Code []byte

	Local struct {
		Count int
		Type  Type
	}
)

// Basic types.
const (
	I32 = 0x7f
	I64 = 0x7e
	F32 = 0x7d
	F64 = 0x7c

	V128 = 0x7b

	FuncRef   = 0x70
	ExternRef = 0x6f

	FuncTypeHeader = 0x60

	EmptyBlock = 0x40

	LimitLo   = 0x00
	LimitLoHi = 0x01
)

// Section ids.
const (
	CustomSection SectionID = iota
	TypeSection
	ImportSection
	FunctionSection
	TableSection
	MemorySection
	GlobalSection
	ExportSection
	StartSection
	ElementSection
	CodeSection
	DataSection
	DataCountSection

	sectionNext
)

// Import and export kinds.
const (
	ExternFunc = iota
	ExternTable
	ExternMemory
	ExternGlobal
)

func init() {
	if sectionNext != 13 {
		panic(sectionNext)
	}
}

// Known reports whether the id is one of the sections the decoder
// has a structural payload decoder for.
// Custom sections and unknown ids carry opaque payloads.
func (id SectionID) Known() bool {
	return id > CustomSection && id < sectionNext
}

func (id SectionID) String() string {
	switch {
	case id == CustomSection:
		return "custom"
	case id.Known():
		return sectionIDNames[id]
	default:
		return "unknown"
	}
}

var sectionIDNames = [...]string{
	TypeSection:      "type",
	ImportSection:    "import",
	FunctionSection:  "function",
	TableSection:     "table",
	MemorySection:    "memory",
	GlobalSection:    "global",
	ExportSection:    "export",
	StartSection:     "start",
	ElementSection:   "element",
	CodeSection:      "code",
	DataSection:      "data",
	DataCountSection: "datacount",
}

func (c Code) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendSemantic(b, tlwire.Hex)

	return e.AppendBytes(b, c)
}
