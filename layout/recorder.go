package layout

import (
	"sort"

	"github.com/willf/bitset"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	wasm "nikand.dev/go/wasmlayout"
)

type (
	// Recorder is a Host keeping everything in memory.
	// It resolves instruction ranges with its own instruction decoder
	// and tracks which buffer bytes are covered by segments.
	Recorder struct {
		Processor string

		Segments []Segment
		Names    map[int]string
		Scalars  map[int]int
		Code     []CodeRange

		b []byte
		d wasm.InstructionsDecoder

		covered *bitset.BitSet
		marked  *bitset.BitSet
		overlap int
	}

	Segment struct {
		Start int    `yaml:"start"`
		End   int    `yaml:"end"`
		Name  string `yaml:"name"`
		Kind  Kind   `yaml:"kind"`
	}

	CodeRange struct {
		Start int
		End   int

		// Err is set if instructions could not be decoded up to the closing end.
		Err error
	}

	Label struct {
		Addr    int
		Name    string
		Width   int
		Segment string
	}

	Coverage struct {
		Size        int
		Covered     int
		Overlapping int
	}
)

func NewRecorder(b []byte) *Recorder {
	return &Recorder{
		Names:   map[int]string{},
		Scalars: map[int]int{},

		b:       b,
		covered: bitset.New(uint(len(b))),
		marked:  bitset.New(uint(len(b))),
	}
}

func (r *Recorder) SetProcessor(name string) error {
	if name == "" {
		return errors.New("empty processor name")
	}

	r.Processor = name

	return nil
}

func (r *Recorder) CreateSegment(start, end int, name string, kind Kind) error {
	if start < 0 || start >= end || end > len(r.b) {
		return errors.New("segment [0x%x, 0x%x) out of buffer of 0x%x bytes", start, end, len(r.b))
	}

	for a := start; a < end; a++ {
		if r.covered.Test(uint(a)) {
			r.overlap++
		}

		r.covered.Set(uint(a))
	}

	r.Segments = append(r.Segments, Segment{Start: start, End: end, Name: name, Kind: kind})

	return nil
}

func (r *Recorder) SetName(addr int, name string) error {
	if _, ok := r.SegmentAt(addr); !ok {
		return errors.New("name %q at 0x%x: no segment", name, addr)
	}

	r.Names[addr] = name

	return nil
}

func (r *Recorder) MarkScalar(addr, width int) error {
	switch width {
	case 1, 2, 4, 8:
	default:
		return errors.New("unsupported scalar width: %d", width)
	}

	s, ok := r.SegmentAt(addr)
	if !ok || addr+width > s.End {
		return errors.New("scalar at 0x%x/%d: no segment", addr, width)
	}

	r.Scalars[addr] = width

	return nil
}

func (r *Recorder) MarkByte(addr int) error {
	if _, ok := r.SegmentAt(addr); !ok {
		return errors.New("byte at 0x%x: no segment", addr)
	}

	r.marked.Set(uint(addr))

	return nil
}

// MarkCode decodes instructions from addr to the end closing the function body.
// Undecodable code is recorded, not returned as an error.
func (r *Recorder) MarkCode(addr int) error {
	s, ok := r.SegmentAt(addr)
	if !ok {
		return errors.New("code at 0x%x: no segment", addr)
	}

	_, end, err := r.d.Expr(r.b[:s.End], addr)
	if err != nil {
		tlog.V("replay").Printw("undecodable code", "addr", tlog.NextAsHex, addr, "err", err)

		end = addr
	}

	r.Code = append(r.Code, CodeRange{Start: addr, End: end, Err: err})

	return nil
}

// SegmentAt finds the segment containing addr.
func (r *Recorder) SegmentAt(addr int) (Segment, bool) {
	for j := len(r.Segments) - 1; j >= 0; j-- {
		s := r.Segments[j]

		if addr >= s.Start && addr < s.End {
			return s, true
		}
	}

	return Segment{}, false
}

// IsByte reports whether addr was marked as a single opaque byte.
func (r *Recorder) IsByte(addr int) bool {
	return addr >= 0 && r.marked.Test(uint(addr))
}

func (r *Recorder) ByteMarks() int {
	return int(r.marked.Count())
}

// Labels returns the offset to name map ordered by offset.
func (r *Recorder) Labels() []Label {
	l := make([]Label, 0, len(r.Names))

	for addr, name := range r.Names {
		s, _ := r.SegmentAt(addr)

		l = append(l, Label{Addr: addr, Name: name, Width: r.Scalars[addr], Segment: s.Name})
	}

	sort.Slice(l, func(i, j int) bool {
		return l[i].Addr < l[j].Addr
	})

	return l
}

func (r *Recorder) Coverage() Coverage {
	return Coverage{
		Size:        len(r.b),
		Covered:     int(r.covered.Count()),
		Overlapping: r.overlap,
	}
}

// Check verifies that segments cover the buffer exactly once.
func (r *Recorder) Check() error {
	c := r.Coverage()

	if c.Covered != c.Size || c.Overlapping != 0 {
		return errors.Wrap(wasm.ErrMalformedLength, "segments cover %d of %d bytes, %d overlapping", c.Covered, c.Size, c.Overlapping)
	}

	return nil
}
