package wasm

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"math"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	Decoder struct {
		InstructionsDecoder
	}

	LowDecoder struct{}
)

var (
	Magic               = []byte("\000asm")
	MaxSupportedVersion = 1
)

const HeaderSize = 8

var (
	ErrUnrecognizedFormat = stderrors.New("unrecognized format")
	ErrOverflow           = stderrors.New("integer overflow")
	ErrSizeMismatch       = ErrMalformedLength
	ErrUnexpectedEOF      = io.ErrUnexpectedEOF

	ErrMagic              = fmt.Errorf("%w: magic mismatch", ErrUnrecognizedFormat)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported binary format version", ErrUnrecognizedFormat)
)

// Module decodes b into m.
// m is reset, previously decoded sections are dropped.
func (d *Decoder) Module(b []byte, m *Module) (err error) {
	i := 0

	defer func() {
		if err == nil {
			return
		}

		err = errors.Wrap(err, "at pos 0x%x", i)
	}()

	m.Header, m.Version, i, err = d.Header(b, i)
	if err != nil {
		return err
	}

	m.Sections = m.Sections[:0]

	for i < len(b) {
		var s *Section

		s, i, err = d.Section(b, i)
		if err != nil {
			return err
		}

		tlog.V("decode").Printw("section", "id", s.ID.String(), "size", s.Node.Size(), "end", tlog.NextAsHex, i)

		m.Sections = append(m.Sections, s)
	}

	return nil
}

func (d *Decoder) Header(b []byte, st int) (n *Node, ver, i int, err error) {
	i = st

	if common(b[i:], Magic) != len(Magic) {
		return nil, 0, i, ErrMagic
	}

	i += len(Magic)

	if i+4 > len(b) {
		return nil, 0, i, ErrUnexpectedEOF
	}

	ver = int(binary.LittleEndian.Uint32(b[i:]))
	if ver != MaxSupportedVersion {
		return nil, 0, i, ErrUnsupportedVersion
	}

	i += 4

	n = NewNode("module_header").
		Add("magic", len(Magic)).
		Add("version", 4)

	return n, ver, i, nil
}

// Section decodes one section starting at st.
// Kind specific decoders are bounded by the declared payload length.
func (d *Decoder) Section(b []byte, st int) (s *Section, i int, err error) {
	n := NewNode("section")

	id, i, err := d.Byte(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "section id")
	}

	n.Add("id", i-st)

	s = &Section{ID: SectionID(id), Node: n}

	p := i

	size, i, err := d.Int(b, i)
	if err != nil {
		return nil, p, errors.Wrap(err, "section size")
	}

	n.Add("payload_len", i-p)

	end := i + size
	if size < 0 || end > len(b) {
		return nil, st, errors.Wrap(ErrUnexpectedEOF, "section id %x: payload_len %d", id, size)
	}

	b = b[:end]
	p = i

	if s.ID == CustomSection {
		var name []byte
		var l int

		l, i, err = d.Int(b, i)
		if err != nil {
			return nil, p, errors.Wrap(overrun(err), "custom section name length")
		}

		n.Add("name_len", i-p)

		name, i, err = d.bytes(b, i, l)
		if err != nil {
			return nil, p, errors.Wrap(overrun(err), "custom section name")
		}

		n.Add("name", l)

		s.Name = string(name)
		p = i
	} else {
		n.Add("name_len", 0)
		n.Add("name", 0)
	}

	pl, i, err := d.payload(b, p, s.ID)
	if err != nil {
		return nil, i, errors.Wrap(overrun(err), "section id %x", id)
	}

	if pl != nil {
		n.AddNode("payload", i-p, pl)
	} else {
		n.Add("payload", i-p)
	}

	if i != end {
		tlog.V("decode").Printw("section overhang", "id", s.ID.String(), "pos", tlog.NextAsHex, i, "size", end-i)
	}

	n.Add("overhang", end-i)

	err = n.Check()
	if err != nil {
		return nil, st, errors.Wrap(err, "section id %x", id)
	}

	return s, end, nil
}

func (d *Decoder) payload(b []byte, st int, id SectionID) (n *Node, i int, err error) {
	switch id {
	case TypeSection:
		return d.vector(b, st, "type_section", "entries", d.FuncType)
	case ImportSection:
		return d.vector(b, st, "import_section", "entries", d.Import)
	case FunctionSection:
		return d.FunctionSection(b, st)
	case TableSection:
		return d.vector(b, st, "table_section", "entries", d.TableType)
	case MemorySection:
		return d.vector(b, st, "memory_section", "entries", d.MemoryType)
	case GlobalSection:
		return d.vector(b, st, "global_section", "globals", d.Global)
	case ExportSection:
		return d.vector(b, st, "export_section", "entries", d.Export)
	case StartSection:
		return d.index(b, st, "start_section", "index")
	case ElementSection:
		return d.vector(b, st, "element_section", "entries", d.Element)
	case CodeSection:
		return d.vector(b, st, "code_section", "bodies", d.FuncBody)
	case DataSection:
		return d.vector(b, st, "data_section", "entries", d.Data)
	case DataCountSection:
		return d.index(b, st, "datacount_section", "count")
	default:
		// custom and unknown
		return nil, len(b), nil
	}
}

func (d *LowDecoder) Byte(b []byte, st int) (r byte, i int, err error) {
	i = st

	if i >= len(b) {
		return 0, i, ErrUnexpectedEOF
	}

	return b[i], i + 1, nil
}

func (d *LowDecoder) Int(b []byte, st int) (l, i int, err error) {
	x, i, err := d.Uint64(b, st)
	if err == nil && x > math.MaxInt32 {
		return 0, st, ErrOverflow
	}

	return int(x), i, err
}

func (d *LowDecoder) Uint64(b []byte, st int) (v uint64, i int, err error) {
	var s uint
	i = st

	for i < len(b) {
		v |= uint64(b[i]&0x7f) << s
		i++
		s += 7

		if b[i-1]&0x80 == 0 {
			return v, i, nil
		}

		if s >= 64 {
			return v, st, ErrOverflow
		}
	}

	return 0, st, ErrUnexpectedEOF
}

func (d *LowDecoder) Int64(b []byte, st int) (v int64, i int, err error) {
	var s uint
	i = st

	for i < len(b) {
		v |= int64(b[i]&0x7f) << s
		i++
		s += 7

		if b[i-1]&0x80 == 0 {
			if s < 64 {
				v = v << (64 - s) >> (64 - s)
			}

			return v, i, nil
		}

		if s >= 64 {
			return v, st, ErrOverflow
		}
	}

	return 0, st, ErrUnexpectedEOF
}

func (d *LowDecoder) Float64(b []byte, st int) (v float64, i int, err error) {
	if st+8 > len(b) {
		return 0, st, ErrUnexpectedEOF
	}

	x := binary.LittleEndian.Uint64(b[st:])

	return math.Float64frombits(x), st + 8, nil
}

func (d *LowDecoder) Name(b []byte, st int) (v []byte, i int, err error) {
	l, i, err := d.Int(b, st)
	if err != nil {
		return nil, st, err
	}

	v, i, err = d.bytes(b, i, l)
	if err != nil {
		return nil, st, err
	}

	return v, i, nil
}

func (d *LowDecoder) NameString(b []byte, st int) (v string, i int, err error) {
	r, i, err := d.Name(b, st)

	return string(r), i, err
}

// Skip advances over n raw bytes.
func (d *LowDecoder) Skip(b []byte, st, n int) (i int, err error) {
	if st+n > len(b) {
		return st, ErrUnexpectedEOF
	}

	return st + n, nil
}

func (d *LowDecoder) bytes(b []byte, st, n int) (v []byte, i int, err error) {
	i, err = d.Skip(b, st, n)
	if err != nil {
		return nil, st, err
	}

	return b[st:i], i, nil
}

// overrun reports reading past a bounded section payload as a length error.
// Truncated input is detected before the payload is decoded.
func overrun(err error) error {
	if !stderrors.Is(err, ErrUnexpectedEOF) {
		return err
	}

	return errors.Wrap(ErrMalformedLength, "payload overruns payload_len: %v", err)
}

func common(a, b []byte) (c int) {
	for c < len(a) && c < len(b) && a[c] == b[c] {
		c++
	}

	return
}
