// Command jjc is the front-end collaborator of the AOT compiler
// (spec.md §6): it owns all I/O (reading the source, writing the
// emitted ELF64 file and marking it executable) and renders whatever
// structured diagnostic a pass returns. No pass in internal/pipeline
// touches a filesystem or terminal itself.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	jjerrors "jjc/internal/errors"
	"jjc/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jjc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "path to the emitted binary")
	showTime := fs.Bool("time", false, "print per-pass timings")
	display := fs.String("display", "", "dump the IR after the named pass (parse, validate, reveal, atomize, explicate, select)")
	interpret := fs.Bool("interpret", false, "interpret the program instead of compiling it")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var input string
	if fs.NArg() > 0 {
		input = fs.Arg(0)
	}

	source, err := readSource(input, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", color.RedString("error"), err)
		return 1
	}

	filename := input
	if filename == "" {
		filename = "<stdin>"
	}

	if *interpret {
		result, err := pipeline.Interpret(filename, source, stdin, stdout)
		if err != nil {
			reportError(stderr, filename, source, err)
			return 1
		}
		return int(result.AsInt())
	}

	outPath := *output
	if outPath == "" {
		outPath = defaultOutputName(input)
	}

	opts := pipeline.Options{Out: stdout}
	if *showTime {
		opts.Time = stderr
	}
	if *display != "" {
		opts.Display = pipeline.Pass(*display)
	}

	elf, err := pipeline.Compile(filename, source, opts)
	if err != nil {
		reportError(stderr, filename, source, err)
		return 1
	}

	if err := os.WriteFile(outPath, elf, 0o755); err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", color.RedString("error"), err)
		return 1
	}

	fmt.Fprintf(stderr, "%s %s\n", color.GreenString("compiled"), outPath)
	return 0
}

// readSource reads the whole program from path, or from stdin when path
// is empty (spec.md §6: "when absent, read the entire source program
// from standard input until EOF").
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

// defaultOutputName derives the output path from INPUT by stripping its
// directory and any trailing ".jj" extension, or "output" if INPUT is
// itself empty (spec.md §6). The output is written to the current
// directory.
func defaultOutputName(input string) string {
	if input == "" {
		return "output"
	}
	base := input
	if slash := strings.LastIndexAny(base, "/\\"); slash >= 0 {
		base = base[slash+1:]
	}
	return strings.TrimSuffix(base, ".jj")
}

func reportError(stderr io.Writer, filename, source string, err error) {
	ce, ok := err.(*jjerrors.CompilerError)
	if !ok {
		fmt.Fprintf(stderr, "%s: %s\n", color.RedString("error"), err)
		return
	}
	reporter := jjerrors.NewReporter(filename, source)
	fmt.Fprint(stderr, reporter.Format(ce))
}
