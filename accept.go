package wasm

import (
	"encoding/binary"
	"fmt"
)

// Accept reports whether b looks like a module this package decodes.
// It only checks the magic and version, many unrelated files are probed with it.
func Accept(b []byte) (version int, ok bool) {
	if len(b) < HeaderSize || common(b, Magic) != len(Magic) {
		return 0, false
	}

	version = int(binary.LittleEndian.Uint32(b[len(Magic):]))

	return version, version == MaxSupportedVersion
}

func Description(version int) string {
	return fmt.Sprintf("WebAssembly v%d executable", version)
}
