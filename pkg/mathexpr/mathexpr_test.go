package mathexpr

import (
	"math"
	"testing"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"3*7", 21},
		{"10 - 4 / 2", 8},
		{"(10 - 4) / 2", 3},
		{"2^10", 1024},
		{"2**10", 1024},
		{"2^3^2", 512}, // right-associative
		{"-2^2", -4},
		{"7 % 3", 1},
		{"1.5e3 + 0.5", 1500.5},
		{".5 * 4", 2},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr)
		if err != nil {
			t.Errorf("Evaluate(%q) returned error: %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluate_Functions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		want float64
	}{
		{"sqrt(16)", 4},
		{"abs(-3.5)", 3.5},
		{"pow(2, 8)", 256},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{"sum(1, 2, 3, 4)", 10},
		{"round(2.7)", 3},
		{"round(2.345, 2)", 2.35},
		{"log(e)", 1},
		{"log(8, 2)", 3},
		{"log10(1000)", 3},
		{"exp(0)", 1},
		{"floor(2.9)", 2},
		{"ceil(2.1)", 3},
		{"cos(0)", 1},
		{"sin(0)", 0},
		{"2 * pi * 0", 0},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr)
		if err != nil {
			t.Errorf("Evaluate(%q) returned error: %v", tc.expr, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluate_RejectsOutsideAllowList(t *testing.T) {
	t.Parallel()

	// Everything not in the closed grammar must fail with an error,
	// never evaluate. These mirror the kinds of strings a model emits
	// when it confuses the calculator with a code interpreter.
	exprs := []string{
		"import os",
		"__import__('os')",
		"open('/etc/passwd')",
		"x + 1",
		"eval(1)",
		"pi.numerator",
		"abs",   // dangling function name without call or constant meaning
		"1 +",   // truncated
		"(1+2",  // unbalanced
		"1 // 2",
		"'a' + 'b'",
		"",
	}
	for _, expr := range exprs {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) succeeded, want error", expr)
		}
	}
}

func TestEvaluate_DomainErrors(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"1/0",
		"5 % 0",
		"log(8, 1)",
		"pow(2, 10000) * 2", // +Inf
		"sqrt(-1)",          // NaN
		"min()",
		"pow(1)",
		"sqrt(1, 2)",
	}
	for _, expr := range exprs {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) succeeded, want error", expr)
		}
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{21, "21"},
		{2.5, "2.5"},
		{-0.125, "-0.125"},
	}
	for _, tc := range cases {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
