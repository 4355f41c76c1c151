package pipeline_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/internal/pipeline"
)

func TestCompileProducesAValidElfHeader(t *testing.T) {
	out, err := pipeline.Compile("t.jj", `fn main() -> I64 { 42 }`, pipeline.Options{})
	require.NoError(t, err)
	require.True(t, len(out) > 0x1000)
	require.Equal(t, []byte{0x7F, 'E', 'L', 'F'}, out[0:4])
	require.Equal(t, []byte{0x0F, 0x05}, out[len(out)-2:], "the synthesized _start block ends in the exit syscall")
}

func TestCompilePropagatesAValidationError(t *testing.T) {
	_, err := pipeline.Compile("t.jj", `fn main() -> I64 { undeclared_name }`, pipeline.Options{})
	require.Error(t, err)
}

func TestCompileReportsPerPassTimings(t *testing.T) {
	var timings bytes.Buffer
	_, err := pipeline.Compile("t.jj", `fn main() -> I64 { 1 }`, pipeline.Options{Time: &timings})
	require.NoError(t, err)
	require.Contains(t, timings.String(), "parse")
	require.Contains(t, timings.String(), "encode")
}

func TestCompileDisplaysTheRequestedPass(t *testing.T) {
	var out bytes.Buffer
	_, err := pipeline.Compile("t.jj", `fn main() -> I64 { 1 }`, pipeline.Options{Display: pipeline.PassValidate, Out: &out})
	require.NoError(t, err)
	require.NotEmpty(t, out.String())
}
