package layout

import (
	wasm "nikand.dev/go/wasmlayout"
)

const HeaderName = "header"

var sectionNames = [...]string{
	wasm.TypeSection:     "types",
	wasm.ImportSection:   "imports",
	wasm.FunctionSection: "functions",
	wasm.TableSection:    "tables",
	wasm.MemorySection:   "memory",
	wasm.GlobalSection:   "globals",
	wasm.ExportSection:   "exports",
	wasm.StartSection:    "starts",
	wasm.ElementSection:  "elements",
	wasm.CodeSection:     "code",
	wasm.DataSection:     "data",
}

// Classify names the i-th segment of the module and picks its kind.
// Index 0 is the module header, s is not used for it.
func Classify(i int, s *wasm.Section, opts Options) (name string, kind Kind) {
	if i == 0 {
		return HeaderName, Data
	}

	if s.ID == wasm.CodeSection {
		kind = Code
	}

	return SectionName(s, opts), kind
}

// SectionName is the segment name of a section.
// Custom sections are unnamed unless Options.CustomNames is set.
func SectionName(s *wasm.Section, opts Options) string {
	switch {
	case s.ID == wasm.CustomSection && opts.CustomNames:
		return s.Name
	case s.ID == wasm.CustomSection:
		return ""
	case int(s.ID) < len(sectionNames):
		return sectionNames[s.ID]
	default:
		return "unknown"
	}
}
