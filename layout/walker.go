package layout

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	wasm "nikand.dev/go/wasmlayout"
)

type (
	Options struct {
		// Processor is the host instruction set module. Default is "wasm".
		Processor string

		// AllFields annotates fields of sections without a dedicated loader.
		AllFields bool

		// CustomNames names custom section segments after their embedded name.
		CustomNames bool
	}

	walker struct {
		opts Options
		reqs []Request
	}

	// loader annotates the fields of a section starting at absolute offset p.
	loader func(w *walker, s *wasm.Section, p int) error
)

const DefaultProcessor = "wasm"

var loaders = map[wasm.SectionID]loader{
	wasm.CodeSection: loadCodeSection,
}

// Walk lays the module out from offset 0 and returns the host requests for it.
// No requests are returned if any section fails.
func Walk(m *wasm.Module, opts Options) (_ []Request, err error) {
	w := &walker{opts: opts}

	proc := opts.Processor
	if proc == "" {
		proc = DefaultProcessor
	}

	w.reqs = append(w.reqs, Request{Op: OpProcessor, Name: proc})

	if m.Header == nil {
		return nil, errors.New("no module header")
	}

	name, kind := Classify(0, nil, opts)
	p := m.Header.Size()

	w.segment(0, p, name, kind)

	for j, s := range m.Sections {
		name, kind := Classify(j+1, s, opts)
		size := s.Node.Size()

		tlog.V("walk").Printw("section", "i", j+1, "name", name, "kind", kind, "start", tlog.NextAsHex, p, "size", size)

		w.segment(p, p+size, name, kind)

		ld := loaders[s.ID]
		if ld == nil && opts.AllFields {
			ld = loadFields
		}

		if ld != nil {
			err = ld(w, s, p)
			if err != nil {
				return nil, errors.Wrap(err, "section %d (%v) at 0x%x", j+1, s.ID, p)
			}
		}

		p += size
	}

	w.scalar(0, 4)
	w.name(0, 4, "WASM_MAGIC")
	w.scalar(4, 4)
	w.name(4, 4, "WASM_VERSION")

	return w.reqs, nil
}

func (w *walker) segment(st, end int, name string, kind Kind) {
	w.reqs = append(w.reqs, Request{Op: OpSegment, Addr: st, End: end, Name: name, Kind: kind})
}

func (w *walker) name(addr, size int, name string) {
	w.reqs = append(w.reqs, Request{Op: OpName, Addr: addr, Size: size, Name: name})
}

// scalar marks integers of host native widths only.
// Other leb lengths stay unmarked.
func (w *walker) scalar(addr, width int) {
	switch width {
	case 1, 2, 4, 8:
	default:
		return
	}

	w.reqs = append(w.reqs, Request{Op: OpScalar, Addr: addr, Size: width})
}

func (w *walker) markByte(addr int) {
	w.reqs = append(w.reqs, Request{Op: OpByte, Addr: addr})
}

func (w *walker) code(addr int) {
	w.reqs = append(w.reqs, Request{Op: OpCode, Addr: addr})
}

// field returns the offset and size of a field relative to the node.
func field(n *wasm.Node, name string) (off, size int, err error) {
	off, err = n.OffsetOf(name)
	if err != nil {
		return 0, 0, err
	}

	size, err = n.SizeOf(name)
	if err != nil {
		return 0, 0, err
	}

	return off, size, nil
}
