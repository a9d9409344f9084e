package layout

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	wasm "nikand.dev/go/wasmlayout"
)

// Host is the disassembly environment the layout is played against.
// Calls are fire-and-forget, nothing is read back.
type Host interface {
	SetProcessor(name string) error
	CreateSegment(start, end int, name string, kind Kind) error
	SetName(addr int, name string) error
	MarkScalar(addr, width int) error
	MarkByte(addr int) error
	MarkCode(addr int) error
}

// Load decodes b, lays it out and replays the result against h.
// Decode and walk errors are returned before h is called at all.
func Load(b []byte, h Host, opts Options) error {
	var d wasm.Decoder
	var m wasm.Module

	err := d.Module(b, &m)
	if err != nil {
		return errors.Wrap(err, "decode")
	}

	return LoadModule(&m, h, opts)
}

func LoadModule(m *wasm.Module, h Host, opts Options) error {
	reqs, err := Walk(m, opts)
	if err != nil {
		return errors.Wrap(err, "walk")
	}

	return Replay(reqs, h)
}

// Replay plays requests in order.
// The first host error stops it, calls made before stay in effect.
func Replay(reqs []Request, h Host) (err error) {
	for j, r := range reqs {
		switch r.Op {
		case OpProcessor:
			err = h.SetProcessor(r.Name)
		case OpSegment:
			err = h.CreateSegment(r.Addr, r.End, r.Name, r.Kind)
		case OpName:
			err = h.SetName(r.Addr, r.Name)
		case OpScalar:
			err = h.MarkScalar(r.Addr, r.Size)
		case OpByte:
			err = h.MarkByte(r.Addr)
		case OpCode:
			err = h.MarkCode(r.Addr)
		default:
			err = errors.New("unsupported request op: %v", r.Op)
		}

		if err != nil {
			return errors.Wrap(err, "request %d: %v", j, r)
		}
	}

	tlog.V("replay").Printw("replayed", "requests", len(reqs))

	return nil
}
