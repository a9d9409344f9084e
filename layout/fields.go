package layout

import (
	"strconv"

	"tlog.app/go/errors"

	wasm "nikand.dev/go/wasmlayout"
)

// byte areas named but never marked as integers
var opaque = map[string]bool{
	"name": true, "module_str": true, "field_str": true,
	"param_types": true, "return_types": true, "types": true,
	"offset": true, "init": true, "elems": true,
	"locals": true, "code": true, "data": true,
	"payload": true, "overhang": true,
}

// loadFields names every leaf field of the section after its path,
// like imports_payload_entries_0_module_str.
func loadFields(w *walker, s *wasm.Section, p int) error {
	prefix := SectionName(s, w.opts)
	if prefix == "" {
		prefix = s.ID.String()
	}

	return w.fields(s.Node, p, prefix)
}

func (w *walker) fields(n *wasm.Node, base int, prefix string) error {
	for it := n.Fields(); it.Next(); {
		f := it.Field()
		path := prefix + "_" + f.Name
		addr := base + f.Offset

		c, err := n.Child(f.Name)
		if err != nil {
			return err
		}

		if c != nil {
			err = w.fields(c, addr, path)
			if err != nil {
				return errors.Wrap(err, "%v", f.Name)
			}

			continue
		}

		l, err := n.List(f.Name)
		if err != nil {
			return err
		}

		if l == nil {
			w.name(addr, f.Size, path)

			if !opaque[f.Name] {
				w.scalar(addr, f.Size)
			}

			continue
		}

		for j, x := range l {
			err = w.fields(x, addr, path+"_"+strconv.Itoa(j))
			if err != nil {
				return errors.Wrap(err, "%v %d", f.Name, j)
			}

			addr += x.Size()
		}
	}

	return nil
}
