package layout

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type (
	labelRow struct {
		Addr    string `csv:"addr" yaml:"addr"`
		Name    string `csv:"name" yaml:"name"`
		Width   int    `csv:"width,omitempty" yaml:"width,omitempty"`
		Segment string `csv:"segment" yaml:"segment"`
	}

	codeRow struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
		Err   string `yaml:"err,omitempty"`
	}

	document struct {
		Processor string     `yaml:"processor"`
		Segments  []Segment  `yaml:"segments"`
		Labels    []labelRow `yaml:"labels"`
		Code      []codeRow  `yaml:"code,omitempty"`
	}
)

func labelRows(r *Recorder) []labelRow {
	labels := r.Labels()
	rows := make([]labelRow, len(labels))

	for j, l := range labels {
		rows[j] = labelRow{
			Addr:    hex(l.Addr),
			Name:    l.Name,
			Width:   l.Width,
			Segment: l.Segment,
		}
	}

	return rows
}

// WriteCSV writes the offset to name map, one label per row.
func WriteCSV(w io.Writer, r *Recorder) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	for _, row := range labelRows(r) {
		err := enc.Encode(row)
		if err != nil {
			return errors.Wrap(err, "encode label")
		}
	}

	cw.Flush()

	return cw.Error()
}

func WriteYAML(w io.Writer, r *Recorder) error {
	doc := document{
		Processor: r.Processor,
		Segments:  r.Segments,
		Labels:    labelRows(r),
	}

	for _, c := range r.Code {
		row := codeRow{Start: hex(c.Start), End: hex(c.End)}

		if c.Err != nil {
			row.Err = c.Err.Error()
		}

		doc.Code = append(doc.Code, row)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(doc)
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	return enc.Close()
}

// WriteText writes segments and labels as a plain listing.
func WriteText(w io.Writer, r *Recorder) error {
	err := WriteSegments(w, r)
	if err != nil {
		return err
	}

	for _, l := range r.Labels() {
		_, err = fmt.Fprintf(w, "%08x  %-40s %s\n", l.Addr, l.Name, width(l.Width))
		if err != nil {
			return err
		}
	}

	return nil
}

func WriteSegments(w io.Writer, r *Recorder) error {
	for _, s := range r.Segments {
		_, err := fmt.Fprintf(w, "%08x-%08x  %-4v %q\n", s.Start, s.End, s.Kind, s.Name)
		if err != nil {
			return err
		}
	}

	return nil
}

func width(w int) string {
	switch w {
	case 1:
		return "db"
	case 2:
		return "dw"
	case 4:
		return "dd"
	case 8:
		return "dq"
	default:
		return ""
	}
}

func hex(x int) string {
	return fmt.Sprintf("0x%x", x)
}
