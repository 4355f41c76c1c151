package interp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/interp"
	"jjc/internal/validate"
)

func mustInterp(t *testing.T, src string, inputs ...int64) (interp.Value, *interp.TestIO) {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	io := interp.NewTestIO(inputs...)
	return interp.New(checked, io).Run(), io
}

func TestInterpReturnsTheTailExpression(t *testing.T) {
	v, _ := mustInterp(t, `fn main() -> I64 { 42 }`)
	require.Equal(t, int64(42), v.AsInt())
}

func TestInterpReadThenPrint(t *testing.T) {
	v, io := mustInterp(t, `
	fn main() -> I64 {
		let x = read();
		print(x + 1);
		0
	}`, 7)
	require.Equal(t, int64(0), v.AsInt())
	require.Equal(t, []int64{8}, io.Outputs)
}

func TestInterpIfExpression(t *testing.T) {
	v, _ := mustInterp(t, `fn main() -> I64 { if true { 1 } else { 2 } }`)
	require.Equal(t, int64(1), v.AsInt())
}

func TestInterpLoopWithBreakValue(t *testing.T) {
	v, _ := mustInterp(t, `
	fn main() -> I64 {
		let i = 0;
		let sum = 0;
		loop {
			if i == 11 {
				break sum;
			};
			sum = sum + i;
			i = i + 1;
		}
	}`)
	require.Equal(t, int64(55), v.AsInt())
}

func TestInterpFunctionCall(t *testing.T) {
	v, _ := mustInterp(t, `
	fn f(x: I64) -> I64 { x * x }
	fn main() -> I64 { f(6) }
	`)
	require.Equal(t, int64(36), v.AsInt())
}

func TestInterpEarlyReturnFromNestedLoop(t *testing.T) {
	v, _ := mustInterp(t, `
	fn main() -> I64 {
		loop {
			return 9;
		};
		0
	}`)
	require.Equal(t, int64(9), v.AsInt())
}
