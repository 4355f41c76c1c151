// Package pipeline wires the ten passes (spec.md §2) into the single
// `Compile` entry point the CLI front-end calls: Parse, Validate, Reveal,
// Atomize, Explicate, Eliminate, Select, Allocate, Conclude, Emit. Each
// pass is a pure function from one representation to the next; this
// package's only job is sequencing them and, optionally, reporting
// per-pass timings or dumping an intermediate representation — the
// `--time`/`--display` flags spec.md §6 names.
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"jjc/grammar"
	"jjc/internal/ast"
	"jjc/internal/atomize"
	"jjc/internal/conclude"
	"jjc/internal/eliminate"
	"jjc/internal/elfwriter"
	"jjc/internal/encode"
	"jjc/internal/explicate"
	"jjc/internal/interp"
	"jjc/internal/regalloc"
	"jjc/internal/reveal"
	xselect "jjc/internal/select"
	"jjc/internal/tast"
	"jjc/internal/validate"
)

// Pass names a single stage, for --display <pass> (spec.md §6). Only the
// stages that still produce a tree worth inspecting are nameable — once
// Select lowers to machine instructions, the remaining stages (Allocate,
// Conclude, Emit) differ only in register/stack assignment and byte
// layout, which a hex dump of the final executable already shows.
type Pass string

const (
	PassParse     Pass = "parse"
	PassValidate  Pass = "validate"
	PassReveal    Pass = "reveal"
	PassAtomize   Pass = "atomize"
	PassExplicate Pass = "explicate"
	PassSelect    Pass = "select"
)

// Options controls the optional debug/timing behavior of Compile.
type Options struct {
	// Time, when non-nil, receives one line per pass: "<pass> <duration>".
	Time io.Writer
	// Display, when non-empty, dumps the named pass's IR to Out after it runs.
	Display Pass
	Out     io.Writer
}

// Compile runs every pass in order and returns the finished ELF64
// executable's bytes. filename is used only for error positions.
func Compile(filename, source string, opts Options) ([]byte, error) {
	run := func(name Pass, f func() error) error {
		start := time.Now()
		err := f()
		if opts.Time != nil {
			fmt.Fprintf(opts.Time, "%-10s %s\n", name, time.Since(start))
		}
		return err
	}

	var (
		cst        *ast.Program
		checked    *tast.Program
		revealed   *reveal.Program
		atomized   *reveal.Program
		explicated *explicate.Program
		eliminated *eliminate.Program
		selected   *xselect.Program
		allocated  *xselect.Program
		concluded  *xselect.Program
		encoded    *encode.Encoded
	)

	if err := run(PassParse, func() error {
		p, err := grammar.Parse(filename, source)
		cst = p
		return err
	}); err != nil {
		return nil, err
	}
	dump(opts, PassParse, cst)

	if err := run(PassValidate, func() error {
		p, err := validate.Validate(cst)
		checked = p
		return err
	}); err != nil {
		return nil, err
	}
	dump(opts, PassValidate, checked)

	if err := run(PassReveal, func() error {
		revealed = reveal.Reveal(checked)
		return nil
	}); err != nil {
		return nil, err
	}
	dump(opts, PassReveal, revealed)

	if err := run(PassAtomize, func() error {
		atomized = atomize.Atomize(revealed)
		return nil
	}); err != nil {
		return nil, err
	}
	dump(opts, PassAtomize, atomized)

	if err := run(PassExplicate, func() error {
		explicated = explicate.Explicate(atomized)
		return nil
	}); err != nil {
		return nil, err
	}
	dump(opts, PassExplicate, explicated)

	if err := run("eliminate", func() error {
		eliminated = eliminate.Eliminate(explicated)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := run(PassSelect, func() error {
		selected = xselect.Select(eliminated)
		return nil
	}); err != nil {
		return nil, err
	}
	dump(opts, PassSelect, selected)

	if err := run("allocate", func() error {
		allocated = regalloc.Allocate(selected)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := run("conclude", func() error {
		concluded = conclude.Conclude(allocated)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := run("encode", func() error {
		e, err := encode.Encode(concluded)
		encoded = e
		return err
	}); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := run("emit", func() error {
		return elfwriter.Write(&out, encoded.Code, encoded.EntryOffset)
	}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Interpret runs only the front end (Parse, Validate) and evaluates the
// result with the tree-walking oracle in internal/interp instead of
// continuing on to the x86 backend, for the --interpret CLI flag (spec.md
// §6's "when given, interpret the program instead of compiling it, using
// stdin/stdout for its read/print builtins").
func Interpret(filename, source string, stdin io.Reader, stdout io.Writer) (interp.Value, error) {
	cst, err := grammar.Parse(filename, source)
	if err != nil {
		return interp.Value{}, err
	}
	checked, err := validate.Validate(cst)
	if err != nil {
		return interp.Value{}, err
	}
	return interp.New(checked, interp.NewStdIO(stdin, stdout)).Run(), nil
}

func dump(opts Options, pass Pass, v interface{}) {
	if opts.Display != pass || opts.Out == nil {
		return
	}
	fmt.Fprintf(opts.Out, "%+v\n", v)
}
