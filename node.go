package wasm

import (
	stderrors "errors"

	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Node is a decoded struct-like element.
	// It carries its fields in declaration order together with
	// the number of bytes each of them took in the input.
	Node struct {
		Type string

		members []member
	}

	member struct {
		name string
		size int

		node *Node
		list []*Node
	}

	// Field is a non-empty field of a Node.
	// Offset is relative to the start of the Node.
	Field struct {
		Offset int
		Name   string
		Size   int
	}

	// FieldIter yields Node fields of non-zero size in declaration order.
	FieldIter struct {
		n *Node

		j   int
		off int
		f   Field
	}
)

var (
	ErrFieldNotFound   = stderrors.New("field not found")
	ErrMalformedLength = stderrors.New("malformed length")
)

func NewNode(tp string) *Node {
	return &Node{Type: tp}
}

// Add declares a leaf field of size bytes.
// Size 0 declares a field which is absent in this instance.
func (n *Node) Add(name string, size int) *Node {
	n.members = append(n.members, member{name: name, size: size})

	return n
}

// AddNode declares a struct-valued field.
// size is the number of bytes the decoder consumed for it,
// Check verifies it against the child.
func (n *Node) AddNode(name string, size int, c *Node) *Node {
	n.members = append(n.members, member{name: name, size: size, node: c})

	return n
}

// AddList declares a field holding a sequence of nodes laid out back to back.
func (n *Node) AddList(name string, size int, l []*Node) *Node {
	if l == nil {
		l = []*Node{}
	}

	n.members = append(n.members, member{name: name, size: size, list: l})

	return n
}

func (n *Node) FieldNames() []string {
	r := make([]string, len(n.members))

	for j, m := range n.members {
		r[j] = m.name
	}

	return r
}

// OffsetOf returns the offset of the field relative to the node start.
func (n *Node) OffsetOf(name string) (int, error) {
	p := 0

	for _, m := range n.members {
		if m.name == name {
			return p, nil
		}

		p += m.size
	}

	return 0, n.notFound(name)
}

// SizeOf returns the encoded length of the field.
func (n *Node) SizeOf(name string) (int, error) {
	m, err := n.member(name)
	if err != nil {
		return 0, err
	}

	return m.size, nil
}

// Size returns the encoded length of the whole node.
func (n *Node) Size() (s int) {
	for _, m := range n.members {
		s += m.size
	}

	return s
}

// Child returns the struct value of the field.
// It's nil without an error if the field is declared but is not a struct.
func (n *Node) Child(name string) (*Node, error) {
	m, err := n.member(name)
	if err != nil {
		return nil, err
	}

	return m.node, nil
}

// List returns the items of a sequence field.
// It's nil without an error if the field is declared but is not a sequence.
func (n *Node) List(name string) ([]*Node, error) {
	m, err := n.member(name)
	if err != nil {
		return nil, err
	}

	return m.list, nil
}

// Fields returns a new iterator over non-empty fields.
// Each call starts over from the first field.
func (n *Node) Fields() *FieldIter {
	return &FieldIter{n: n}
}

// Check verifies recursively that the size recorded for every struct or sequence field
// equals the size of its contents.
func (n *Node) Check() error {
	for _, m := range n.members {
		switch {
		case m.node != nil:
			if s := m.node.Size(); s != m.size {
				return errors.Wrap(ErrMalformedLength, "%v.%v: %d bytes declared, %d in fields", n.Type, m.name, m.size, s)
			}

			err := m.node.Check()
			if err != nil {
				return errors.Wrap(err, "%v", m.name)
			}
		case m.list != nil:
			s := 0

			for j, x := range m.list {
				s += x.Size()

				err := x.Check()
				if err != nil {
					return errors.Wrap(err, "%v %d", m.name, j)
				}
			}

			if s != m.size {
				return errors.Wrap(ErrMalformedLength, "%v.%v: %d bytes declared, %d in items", n.Type, m.name, m.size, s)
			}
		}
	}

	return nil
}

func (n *Node) member(name string) (*member, error) {
	for j := range n.members {
		if n.members[j].name == name {
			return &n.members[j], nil
		}
	}

	return nil, n.notFound(name)
}

func (n *Node) notFound(name string) error {
	return errors.Wrap(ErrFieldNotFound, "%v.%v", n.Type, name)
}

// Next advances to the next non-empty field.
func (it *FieldIter) Next() bool {
	for it.j < len(it.n.members) {
		m := it.n.members[it.j]
		it.j++

		off := it.off
		it.off += m.size

		if m.size > 0 {
			it.f = Field{Offset: off, Name: m.name, Size: m.size}
			return true
		}
	}

	return false
}

func (it *FieldIter) Field() Field {
	return it.f
}

func (f Field) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)
	b = e.AppendString(b, "offset")
	b = e.AppendInt(b, f.Offset)
	b = e.AppendString(b, "name")
	b = e.AppendString(b, f.Name)
	b = e.AppendString(b, "size")
	b = e.AppendInt(b, f.Size)

	return b
}
