package layout

import (
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	wasm "nikand.dev/go/wasmlayout"
)

func loadCodeSection(w *walker, s *wasm.Section, p int) error {
	sec := s.Node

	off, size, err := field(sec, "id")
	if err != nil {
		return err
	}

	w.name(p+off, size, "code_id")
	w.scalar(p+off, size)

	off, err = sec.OffsetOf("payload")
	if err != nil {
		return err
	}

	ppayload := p + off

	payload, err := sec.Child("payload")
	if err != nil {
		return err
	}

	if payload == nil {
		return errors.Wrap(wasm.ErrFieldNotFound, "code section payload is not decoded")
	}

	off, size, err = field(payload, "count")
	if err != nil {
		return err
	}

	w.name(ppayload+off, size, "function_count")
	w.scalar(ppayload+off, size)

	off, size, err = field(payload, "bodies")
	if err != nil {
		return err
	}

	pbodies := ppayload + off
	end := pbodies + size

	bodies, err := payload.List("bodies")
	if err != nil {
		return err
	}

	pcur := pbodies

	for j, body := range bodies {
		err = loadFuncBody(w, body, pcur, fmt.Sprintf("function_%X", j))
		if err != nil {
			return errors.Wrap(err, "function %d", j)
		}

		pcur += body.Size()
	}

	if pcur != end {
		return errors.Wrap(wasm.ErrMalformedLength, "function bodies end at 0x%x, section declares 0x%x", pcur, end)
	}

	return nil
}

func loadFuncBody(w *walker, body *wasm.Node, pcur int, fname string) error {
	w.name(pcur, body.Size(), fname)

	off, size, err := field(body, "local_count")
	if err != nil {
		return err
	}

	w.name(pcur+off, size, fname+"_local_count")
	w.scalar(pcur+off, size)

	off, size, err = field(body, "locals")
	if err != nil {
		return err
	}

	// locals are (count, type) pairs, not decoded further
	if size > 0 {
		w.name(pcur+off, size, fname+"_locals")

		for j := 0; j < size; j++ {
			w.markByte(pcur + off + j)
		}
	}

	off, size, err = field(body, "code")
	if err != nil {
		return err
	}

	w.name(pcur+off, size, fname+"_code")
	w.code(pcur + off)

	tlog.V("walk").Printw("function", "name", fname, "start", tlog.NextAsHex, pcur, "code", tlog.NextAsHex, pcur+off, "size", size)

	return nil
}
