package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCompilesAFileToADefaultNamedOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.jj")
	require.NoError(t, os.WriteFile(src, []byte(`fn main() -> I64 { 42 }`), 0o644))

	t.Chdir(dir)
	var stdout, stderr bytes.Buffer
	code := run([]string{src}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := filepath.Join(dir, "prog")
	info, err := os.Stat(out)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o111, "emitted file must be executable")
}

func TestRunReportsAValidationErrorAndExitsNonzero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{}, strings.NewReader(`fn main() -> I64 { undeclared_name }`), &stdout, &stderr)
	require.NotEqual(t, 0, code)
	require.NotEmpty(t, stderr.String())
}

func TestRunInterpretEvaluatesWithoutEmittingABinary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.jj")
	require.NoError(t, os.WriteFile(src, []byte(`fn main() -> I64 { return 7; }`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--interpret", src}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 7, code, stderr.String())

	_, err := os.Stat(filepath.Join(dir, "prog"))
	require.True(t, os.IsNotExist(err), "--interpret must not write an output binary")
}

func TestRunInterpretUsesStdinForRead(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.jj")
	require.NoError(t, os.WriteFile(src, []byte(`fn main() -> I64 { let x = read(); return x + 1; }`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--interpret", src}, strings.NewReader("41\n"), &stdout, &stderr)
	require.Equal(t, 42, code, stderr.String())
}

func TestDefaultOutputNameStripsDotJJAndDirectory(t *testing.T) {
	require.Equal(t, "output", defaultOutputName(""))
	require.Equal(t, "prog", defaultOutputName("prog.jj"))
	require.Equal(t, "prog", defaultOutputName("dir/sub/prog.jj"))
	require.Equal(t, "noext", defaultOutputName("noext"))
}
