package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wasm "nikand.dev/go/wasmlayout"
)

var (
	noFunctions = []byte{
		0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00,
		0x0a, 0x01, 0x00,
	}

	twoFunctions = []byte{
		0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00,
		0x0a, 0x0c, 0x02,
		0x02, 0x00, 0x0b,
		0x07, 0x01, 0xc8, 0x01, 0x7f, 0x41, 0x2a, 0x0b,
	}
)

func manySections() []byte {
	var e wasm.LowEncoder
	var b []byte

	b = e.Header(b, 1)
	b = e.Section(b, wasm.TypeSection, e.Vector(nil, e.FuncType(nil, []wasm.Type{wasm.I32}, nil)))
	b = e.Section(b, wasm.FunctionSection, e.Vector(nil, e.Int(nil, 0)))
	b = e.Section(b, wasm.MemorySection, e.Vector(nil, e.Limits(nil, 1, -1)))
	b = e.Section(b, wasm.ExportSection, e.Vector(nil, append(e.Name(nil, "main"), wasm.ExternFunc, 0)))
	b = e.Section(b, wasm.CodeSection, e.Vector(nil,
		e.FuncBody(nil, []wasm.Local{{Count: 1, Type: wasm.I64}}, []byte{wasm.I32Const, 0x00, wasm.End}),
	))
	b = e.CustomSection(b, "producers", []byte{0x00})

	return b
}

func decode(tb testing.TB, b []byte) *wasm.Module {
	tb.Helper()

	var d wasm.Decoder
	var m wasm.Module

	err := d.Module(b, &m)
	require.NoError(tb, err)

	return &m
}

func requests(reqs []Request, op Op) (r []Request) {
	for _, x := range reqs {
		if x.Op == op {
			r = append(r, x)
		}
	}

	return r
}

func TestWalkNoFunctions(tb *testing.T) {
	reqs, err := Walk(decode(tb, noFunctions), Options{})
	require.NoError(tb, err)

	assert.Equal(tb, []Request{
		{Op: OpProcessor, Name: "wasm"},
		{Op: OpSegment, Addr: 0, End: 8, Name: "header", Kind: Data},
		{Op: OpSegment, Addr: 8, End: 11, Name: "code", Kind: Code},
		{Op: OpName, Addr: 8, Size: 1, Name: "code_id"},
		{Op: OpScalar, Addr: 8, Size: 1},
		{Op: OpName, Addr: 10, Size: 1, Name: "function_count"},
		{Op: OpScalar, Addr: 10, Size: 1},
		{Op: OpScalar, Addr: 0, Size: 4},
		{Op: OpName, Addr: 0, Size: 4, Name: "WASM_MAGIC"},
		{Op: OpScalar, Addr: 4, Size: 4},
		{Op: OpName, Addr: 4, Size: 4, Name: "WASM_VERSION"},
	}, reqs)
}

func TestWalkTwoFunctions(tb *testing.T) {
	reqs, err := Walk(decode(tb, twoFunctions), Options{Processor: "wasm32"})
	require.NoError(tb, err)

	assert.Equal(tb, Request{Op: OpProcessor, Name: "wasm32"}, reqs[0])

	assert.Equal(tb, []Request{
		{Op: OpSegment, Addr: 0, End: 8, Name: "header", Kind: Data},
		{Op: OpSegment, Addr: 8, End: 22, Name: "code", Kind: Code},
	}, requests(reqs, OpSegment))

	names := map[string]Request{}

	for _, r := range requests(reqs, OpName) {
		names[r.Name] = r
	}

	for _, x := range []struct {
		name       string
		addr, size int
	}{
		{"code_id", 8, 1},
		{"function_count", 10, 1},
		{"function_0", 11, 3},
		{"function_0_local_count", 12, 1},
		{"function_0_code", 13, 1},
		{"function_1", 14, 8},
		{"function_1_local_count", 15, 1},
		{"function_1_locals", 16, 3},
		{"function_1_code", 19, 3},
	} {
		r, ok := names[x.name]
		if assert.True(tb, ok, x.name) {
			assert.Equal(tb, x.addr, r.Addr, x.name)
			assert.Equal(tb, x.size, r.Size, x.name)
		}
	}

	_, ok := names["function_0_locals"]
	assert.False(tb, ok, "empty locals named")

	assert.Equal(tb, []Request{
		{Op: OpByte, Addr: 16},
		{Op: OpByte, Addr: 17},
		{Op: OpByte, Addr: 18},
	}, requests(reqs, OpByte))

	assert.Equal(tb, []Request{
		{Op: OpCode, Addr: 13},
		{Op: OpCode, Addr: 19},
	}, requests(reqs, OpCode))
}

func TestWalkMissingField(tb *testing.T) {
	body := wasm.NewNode("function_body").Add("body_size", 1).Add("code", 1)
	payload := wasm.NewNode("code_section").Add("count", 1).AddList("bodies", 2, []*wasm.Node{body})

	sec := wasm.NewNode("section").
		Add("id", 1).
		Add("payload_len", 1).
		Add("name_len", 0).
		Add("name", 0).
		AddNode("payload", 3, payload).
		Add("overhang", 0)

	m := &wasm.Module{
		Version: 1,
		Header:  wasm.NewNode("module_header").Add("magic", 4).Add("version", 4),
		Sections: []*wasm.Section{
			{ID: wasm.CodeSection, Node: sec},
		},
	}

	reqs, err := Walk(m, Options{})
	assert.ErrorIs(tb, err, wasm.ErrFieldNotFound)
	assert.Nil(tb, reqs)

	r := NewRecorder(make([]byte, 13))

	err = LoadModule(m, r, Options{})
	assert.ErrorIs(tb, err, wasm.ErrFieldNotFound)
	assert.Empty(tb, r.Segments)
	assert.Empty(tb, r.Processor)
}

func TestWalkBadMagic(tb *testing.T) {
	b := append([]byte{}, twoFunctions...)
	b[1] = 'A'

	r := NewRecorder(b)

	err := Load(b, r, Options{})
	assert.ErrorIs(tb, err, wasm.ErrUnrecognizedFormat)
	assert.Empty(tb, r.Segments)
	assert.Empty(tb, r.Names)

	_, ok := wasm.Accept(b)
	assert.False(tb, ok)
}

func TestWalkProperties(tb *testing.T) {
	for _, opts := range []Options{
		{},
		{AllFields: true},
		{AllFields: true, CustomNames: true},
	} {
		for _, b := range [][]byte{noFunctions, twoFunctions, manySections()} {
			reqs, err := Walk(decode(tb, b), opts)
			require.NoError(tb, err)

			// segments tile the buffer in order
			end := 0

			for _, s := range requests(reqs, OpSegment) {
				assert.Equal(tb, end, s.Addr)
				assert.Greater(tb, s.End, s.Addr)

				end = s.End
			}

			assert.Equal(tb, len(b), end, "opts %+v", opts)

			addrs := map[int]string{}

			for _, r := range requests(reqs, OpName) {
				assert.GreaterOrEqual(tb, r.Addr, 0)
				assert.LessOrEqual(tb, r.Addr+r.Size, len(b), r.Name)

				if prev, ok := addrs[r.Addr]; ok && opts.AllFields {
					tb.Errorf("0x%x named twice: %v and %v", r.Addr, prev, r.Name)
				}

				addrs[r.Addr] = r.Name
			}

			rec := NewRecorder(b)

			err = Replay(reqs, rec)
			require.NoError(tb, err)
			assert.NoError(tb, rec.Check())

			for _, c := range rec.Code {
				assert.NoError(tb, c.Err, "code at 0x%x", c.Start)
			}
		}
	}
}

func TestWalkAllFields(tb *testing.T) {
	b := manySections()

	rec := NewRecorder(b)

	err := Load(b, rec, Options{AllFields: true})
	require.NoError(tb, err)

	byName := map[string]int{}

	for addr, name := range rec.Names {
		byName[name] = addr
	}

	for name, addr := range map[string]int{
		"types_id":                           8,
		"types_payload_len":                  9,
		"types_payload_count":                10,
		"types_payload_entries_0_form":       11,
		"types_payload_entries_0_param_count": 12,
		"types_payload_entries_0_param_types": 13,
	} {
		got, ok := byName[name]
		if assert.True(tb, ok, name) {
			assert.Equal(tb, addr, got, name)
		}
	}

	assert.Contains(tb, byName, "exports_payload_entries_0_field_str")
	assert.Contains(tb, byName, "memory_payload_entries_0_limits_initial")
	assert.Contains(tb, byName, "custom_name_len")
	assert.Contains(tb, byName, "function_0_locals")
	assert.NotContains(tb, byName, "memory_payload_entries_0_limits_maximum")
	assert.NotContains(tb, byName, "types_name_len")

	str := byName["exports_payload_entries_0_field_str"]
	_, ok := rec.Scalars[str]
	assert.False(tb, ok, "string marked as scalar")

	assert.Equal(tb, 1, rec.Scalars[byName["types_payload_count"]])
}

func TestWalkCustomNames(tb *testing.T) {
	b := manySections()
	m := decode(tb, b)

	for _, x := range []struct {
		opts Options
		name string
	}{
		{Options{}, ""},
		{Options{CustomNames: true}, "producers"},
	} {
		reqs, err := Walk(m, x.opts)
		require.NoError(tb, err)

		segs := requests(reqs, OpSegment)
		last := segs[len(segs)-1]

		assert.Equal(tb, x.name, last.Name)
		assert.Equal(tb, Data, last.Kind)
		assert.Equal(tb, len(b), last.End)
	}
}

func TestClassify(tb *testing.T) {
	name, kind := Classify(0, nil, Options{})
	assert.Equal(tb, HeaderName, name)
	assert.Equal(tb, Data, kind)

	for _, x := range []struct {
		id   wasm.SectionID
		name string
		kind Kind
	}{
		{wasm.TypeSection, "types", Data},
		{wasm.ImportSection, "imports", Data},
		{wasm.FunctionSection, "functions", Data},
		{wasm.TableSection, "tables", Data},
		{wasm.MemorySection, "memory", Data},
		{wasm.GlobalSection, "globals", Data},
		{wasm.ExportSection, "exports", Data},
		{wasm.StartSection, "starts", Data},
		{wasm.ElementSection, "elements", Data},
		{wasm.CodeSection, "code", Code},
		{wasm.DataSection, "data", Data},
		{wasm.DataCountSection, "unknown", Data},
		{0x20, "unknown", Data},
		{wasm.CustomSection, "", Data},
	} {
		name, kind := Classify(1, &wasm.Section{ID: x.id, Name: "dbg"}, Options{})
		assert.Equal(tb, x.name, name, "id %d", x.id)
		assert.Equal(tb, x.kind, kind, "id %d", x.id)
	}

	name, _ = Classify(3, &wasm.Section{ID: wasm.CustomSection, Name: "dbg"}, Options{CustomNames: true})
	assert.Equal(tb, "dbg", name)
}

func TestRequestString(tb *testing.T) {
	assert.Equal(tb, `segment [0x8, 0x16) "code" CODE`, Request{Op: OpSegment, Addr: 8, End: 22, Name: "code", Kind: Code}.String())
	assert.Equal(tb, `name 0xa "function_count" /1`, Request{Op: OpName, Addr: 10, Size: 1, Name: "function_count"}.String())
	assert.Equal(tb, "byte 0x10", Request{Op: OpByte, Addr: 16}.String())
	assert.Equal(tb, "op17", Op(17).String())
}
