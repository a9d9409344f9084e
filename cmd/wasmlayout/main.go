package main

import (
	"io"
	"net"
	"net/http"
	"os"

	"nikand.dev/go/cli"
	"nikand.dev/go/cli/flag"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/ext/tlflag"
	"tlog.app/go/tlog/tlio"

	wasm "nikand.dev/go/wasmlayout"
	"nikand.dev/go/wasmlayout/layout"
)

func main() {
	mapCmd := &cli.Command{
		Name:        "map",
		Description: "print offset to field name map",
		Args:        cli.Args{},
		Flags: append([]*cli.Flag{
			cli.NewFlag("format,f", "text", "output format: text, csv, yaml"),
		}, loadFlags()...),
		Action: mapRun,
	}

	segments := &cli.Command{
		Name:        "segments",
		Description: "print segments",
		Args:        cli.Args{},
		Flags:       loadFlags(),
		Action:      segmentsRun,
	}

	check := &cli.Command{
		Name:        "check",
		Description: "verify segments cover every module byte exactly once",
		Args:        cli.Args{},
		Flags:       loadFlags(),
		Action:      checkRun,
	}

	app := &cli.Command{
		Name:        "wasmlayout",
		Description: "structural map of wasm modules",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr?dm", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.NewFlag("debug", "", "debug address", flag.Hidden),
			cli.FlagfileFlag,
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			mapCmd,
			segments,
			check,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func loadFlags() []*cli.Flag {
	return []*cli.Flag{
		cli.NewFlag("fields", "code", "annotate fields of: code (code section only), all (every section)"),
		cli.NewFlag("custom", "none", "custom section segment names: none, embedded"),
		cli.NewFlag("processor", layout.DefaultProcessor, "host processor module"),
	}
}

func before(c *cli.Command) error {
	w, err := tlflag.OpenWriter(c.String("log"))
	if err != nil {
		return errors.Wrap(err, "open log file")
	}

	err = tlio.WalkWriter(w, func(w io.Writer) error {
		c, ok := w.(*tlog.ConsoleWriter)
		if !ok {
			return nil
		}

		c.StringOnNewLineMinLen = 16

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "walk writer")
	}

	tlog.DefaultLogger = tlog.New(w)

	tlog.SetVerbosity(c.String("verbosity"))

	if q := c.String("debug"); q != "" {
		l, err := net.Listen("tcp", q)
		if err != nil {
			return errors.Wrap(err, "listen debug")
		}

		tlog.Printw("start debug interface", "addr", l.Addr())

		go func() {
			err := http.Serve(l, nil)
			if err != nil {
				tlog.Printw("debug", "addr", q, "err", err, "", tlog.Fatal)
				panic(err)
			}
		}()
	}

	return nil
}

func options(c *cli.Command) (opts layout.Options, err error) {
	opts.Processor = c.String("processor")

	switch q := c.String("fields"); q {
	case "code":
	case "all":
		opts.AllFields = true
	default:
		return opts, errors.New("unsupported fields: %q", q)
	}

	switch q := c.String("custom"); q {
	case "none":
	case "embedded":
		opts.CustomNames = true
	default:
		return opts, errors.New("unsupported custom: %q", q)
	}

	return opts, nil
}

// eachModule loads every wasm argument into a new Recorder.
// Other files are reported and skipped.
func eachModule(c *cli.Command, f func(name string, r *layout.Recorder) error) error {
	opts, err := options(c)
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		data, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read file")
		}

		ver, ok := wasm.Accept(data)
		if !ok {
			tlog.Printw("not a wasm module", "file", a)
			continue
		}

		tlog.V("load").Printw("load", "file", a, "format", wasm.Description(ver), "size", len(data))

		r := layout.NewRecorder(data)

		err = layout.Load(data, r, opts)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		err = f(a, r)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}
	}

	return nil
}

func mapRun(c *cli.Command) error {
	format := c.String("format")

	var write func(io.Writer, *layout.Recorder) error

	switch format {
	case "text":
		write = layout.WriteText
	case "csv":
		write = layout.WriteCSV
	case "yaml":
		write = layout.WriteYAML
	default:
		return errors.New("unsupported format: %q", format)
	}

	return eachModule(c, func(name string, r *layout.Recorder) error {
		return write(os.Stdout, r)
	})
}

func segmentsRun(c *cli.Command) error {
	return eachModule(c, func(name string, r *layout.Recorder) error {
		return layout.WriteSegments(os.Stdout, r)
	})
}

func checkRun(c *cli.Command) error {
	return eachModule(c, func(name string, r *layout.Recorder) error {
		err := r.Check()
		if err != nil {
			return err
		}

		bad := 0

		for _, x := range r.Code {
			if x.Err != nil {
				tlog.Printw("undecodable code", "file", name, "addr", tlog.NextAsHex, x.Start, "err", x.Err)
				bad++
			}
		}

		cov := r.Coverage()

		tlog.Printw("ok", "file", name, "size", cov.Size, "segments", len(r.Segments), "labels", len(r.Names), "functions", len(r.Code), "undecodable", bad)

		return nil
	})
}
