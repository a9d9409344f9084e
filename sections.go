package wasm

import (
	"tlog.app/go/errors"
)

type elemDecoder func(b []byte, st int) (*Node, int, error)

// vector decodes count followed by count elements into a list field.
func (d *Decoder) vector(b []byte, st int, tp, list string, elem elemDecoder) (n *Node, i int, err error) {
	n = NewNode(tp)

	l, i, err := d.Int(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "vector length")
	}

	n.Add("count", i-st)

	// every element takes at least a byte
	if l > len(b)-i {
		return nil, st, errors.Wrap(ErrMalformedLength, "vector length %d exceeds payload", l)
	}

	items := make([]*Node, 0, l)
	p := i

	for j := 0; j < l; j++ {
		var x *Node

		x, i, err = elem(b, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "%v %d", list, j)
		}

		items = append(items, x)
	}

	n.AddList(list, i-p, items)

	return n, i, nil
}

func (d *Decoder) index(b []byte, st int, tp, name string) (n *Node, i int, err error) {
	_, i, err = d.Int(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "%v", name)
	}

	return NewNode(tp).Add(name, i-st), i, nil
}

// counted decodes a length prefixed area of fixed width elements.
func (d *Decoder) counted(n *Node, b []byte, st int, count, area string, width int) (i int, err error) {
	l, i, err := d.Int(b, st)
	if err != nil {
		return st, errors.Wrap(err, "%v", count)
	}

	n.Add(count, i-st)

	p := i

	i, err = d.Skip(b, i, l*width)
	if err != nil {
		return p, errors.Wrap(err, "%v", area)
	}

	n.Add(area, i-p)

	return i, nil
}

// leb is a single integer field.
func (d *Decoder) leb(n *Node, b []byte, st int, name string) (v, i int, err error) {
	v, i, err = d.Int(b, st)
	if err != nil {
		return 0, st, errors.Wrap(err, "%v", name)
	}

	n.Add(name, i-st)

	return v, i, nil
}

func (d *Decoder) byteField(n *Node, b []byte, st int, name string) (v byte, i int, err error) {
	v, i, err = d.Byte(b, st)
	if err != nil {
		return 0, st, errors.Wrap(err, "%v", name)
	}

	n.Add(name, i-st)

	return v, i, nil
}

func (d *Decoder) expr(n *Node, b []byte, st int, name string) (i int, err error) {
	_, i, err = d.Expr(b, st)
	if err != nil {
		return st, errors.Wrap(err, "%v", name)
	}

	n.Add(name, i-st)

	return i, nil
}

func (d *Decoder) FuncType(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("func_type")

	form, i, err := d.byteField(n, b, st, "form")
	if err != nil {
		return nil, st, err
	}

	if form != FuncTypeHeader {
		return nil, st, errors.New("expected function type, got 0x%02x", form)
	}

	i, err = d.counted(n, b, i, "param_count", "param_types", 1)
	if err != nil {
		return nil, i, err
	}

	i, err = d.counted(n, b, i, "return_count", "return_types", 1)
	if err != nil {
		return nil, i, err
	}

	return n, i, nil
}

func (d *Decoder) Import(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("import_entry")

	i, err = d.counted(n, b, st, "module_len", "module_str", 1)
	if err != nil {
		return nil, i, err
	}

	i, err = d.counted(n, b, i, "field_len", "field_str", 1)
	if err != nil {
		return nil, i, err
	}

	kind, i, err := d.byteField(n, b, i, "kind")
	if err != nil {
		return nil, i, err
	}

	p := i
	var tp *Node

	switch kind {
	case ExternFunc:
		tp, i, err = d.index(b, i, "function_type", "index")
	case ExternTable:
		tp, i, err = d.TableType(b, i)
	case ExternMemory:
		tp, i, err = d.MemoryType(b, i)
	case ExternGlobal:
		tp, i, err = d.GlobalType(b, i)
	default:
		return nil, i - 1, errors.New("unsupported import description type: 0x%02x", kind)
	}

	if err != nil {
		return nil, i, errors.Wrap(err, "type")
	}

	n.AddNode("type", i-p, tp)

	return n, i, nil
}

func (d *Decoder) FunctionSection(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("function_section")

	l, i, err := d.leb(n, b, st, "count")
	if err != nil {
		return nil, st, err
	}

	p := i

	for j := 0; j < l; j++ {
		_, i, err = d.Int(b, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "func %d", j)
		}
	}

	n.Add("types", i-p)

	return n, i, nil
}

func (d *Decoder) Limits(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("resizable_limits")

	flags, i, err := d.byteField(n, b, st, "flags")
	if err != nil {
		return nil, st, err
	}

	if flags&^(LimitLoHi|0x2) != 0 {
		return nil, st, errors.New("expected limit, got 0x%02x", flags)
	}

	_, i, err = d.leb(n, b, i, "initial")
	if err != nil {
		return nil, i, err
	}

	if flags&LimitLoHi == 0 {
		n.Add("maximum", 0)

		return n, i, nil
	}

	_, i, err = d.leb(n, b, i, "maximum")
	if err != nil {
		return nil, i, err
	}

	return n, i, nil
}

func (d *Decoder) TableType(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("table_type")

	_, i, err = d.byteField(n, b, st, "element_type")
	if err != nil {
		return nil, st, err
	}

	p := i

	lim, i, err := d.Limits(b, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "limits")
	}

	n.AddNode("limits", i-p, lim)

	return n, i, nil
}

func (d *Decoder) MemoryType(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("memory_type")

	lim, i, err := d.Limits(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "limits")
	}

	n.AddNode("limits", i-st, lim)

	return n, i, nil
}

func (d *Decoder) GlobalType(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("global_type")

	_, i, err = d.byteField(n, b, st, "content_type")
	if err != nil {
		return nil, st, err
	}

	_, i, err = d.byteField(n, b, i, "mutability")
	if err != nil {
		return nil, i, err
	}

	return n, i, nil
}

func (d *Decoder) Global(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("global_entry")

	tp, i, err := d.GlobalType(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "type")
	}

	n.AddNode("type", i-st, tp)

	i, err = d.expr(n, b, i, "init")
	if err != nil {
		return nil, i, err
	}

	return n, i, nil
}

func (d *Decoder) Export(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("export_entry")

	i, err = d.counted(n, b, st, "field_len", "field_str", 1)
	if err != nil {
		return nil, i, err
	}

	kind, i, err := d.byteField(n, b, i, "kind")
	if err != nil {
		return nil, i, err
	}

	if kind > ExternGlobal {
		return nil, i - 1, errors.New("unsupported export kind: 0x%02x", kind)
	}

	_, i, err = d.leb(n, b, i, "index")
	if err != nil {
		return nil, i, err
	}

	return n, i, nil
}

// Element decodes any of the eight element segment encodings.
// Fields the encoding doesn't have are declared empty.
//
//	bit 0: passive or declarative
//	bit 1: explicit table index (active) or declarative (passive)
//	bit 2: elements are expressions
func (d *Decoder) Element(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("elem_segment")

	flags, i, err := d.leb(n, b, st, "flags")
	if err != nil {
		return nil, st, err
	}

	if flags > 7 {
		return nil, st, errors.New("unsupported elem: 0x%02x", flags)
	}

	active := flags&1 == 0
	exprs := flags&4 != 0

	if active && flags&2 != 0 {
		_, i, err = d.leb(n, b, i, "table_index")
		if err != nil {
			return nil, i, err
		}
	} else {
		n.Add("table_index", 0)
	}

	if active {
		i, err = d.expr(n, b, i, "offset")
		if err != nil {
			return nil, i, err
		}
	} else {
		n.Add("offset", 0)
	}

	if flags&3 != 0 {
		_, i, err = d.byteField(n, b, i, "elem_type")
		if err != nil {
			return nil, i, err
		}
	} else {
		n.Add("elem_type", 0)
	}

	l, i, err := d.leb(n, b, i, "num_elem")
	if err != nil {
		return nil, i, err
	}

	p := i

	for j := 0; j < l; j++ {
		if exprs {
			_, i, err = d.Expr(b, i)
		} else {
			_, i, err = d.Int(b, i)
		}

		if err != nil {
			return nil, i, errors.Wrap(err, "elem %d", j)
		}
	}

	n.Add("elems", i-p)

	return n, i, nil
}

// FuncBody decodes a code section entry.
// The code field is whatever body_size leaves after the locals.
func (d *Decoder) FuncBody(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("function_body")

	size, i, err := d.leb(n, b, st, "body_size")
	if err != nil {
		return nil, st, err
	}

	end := i + size
	if end > len(b) {
		return nil, st, errors.Wrap(ErrMalformedLength, "body_size %d exceeds section", size)
	}

	b = b[:end]

	l, i, err := d.leb(n, b, i, "local_count")
	if err != nil {
		return nil, i, overrunBody(err)
	}

	p := i

	for j := 0; j < l; j++ {
		_, i, err = d.Int(b, i)
		if err == nil {
			_, i, err = d.Byte(b, i)
		}

		if err != nil {
			return nil, i, errors.Wrap(overrunBody(err), "local %d", j)
		}
	}

	n.Add("locals", i-p)

	// at least the final end instruction
	if i == end {
		return nil, i, errors.Wrap(ErrMalformedLength, "no code after locals")
	}

	n.Add("code", end-i)

	return n, end, nil
}

func (d *Decoder) Data(b []byte, st int) (n *Node, i int, err error) {
	n = NewNode("data_segment")

	flags, i, err := d.leb(n, b, st, "flags")
	if err != nil {
		return nil, st, err
	}

	switch flags {
	case 0, 1:
		n.Add("memory_index", 0)
	case 2:
		_, i, err = d.leb(n, b, i, "memory_index")
		if err != nil {
			return nil, i, err
		}
	default:
		return nil, st, errors.New("unsupported data type: 0x%02x", flags)
	}

	if flags == 1 {
		n.Add("offset", 0)
	} else {
		i, err = d.expr(n, b, i, "offset")
		if err != nil {
			return nil, i, err
		}
	}

	i, err = d.counted(n, b, i, "size", "data", 1)
	if err != nil {
		return nil, i, err
	}

	return n, i, nil
}

// overrunBody reports locals reading past body_size.
func overrunBody(err error) error {
	return errors.Wrap(overrun(err), "locals exceed body_size")
}
