// Package mathexpr evaluates restricted arithmetic expressions.
// The grammar is closed: numbers, the operators + - * / % ^ (with ** as an
// alias for ^), parentheses, the constants pi and e, and an allow-listed set
// of named functions. Anything else is a parse error, so the evaluator can be
// exposed to untrusted input (model-generated expressions) without any reach
// into the host language.
package mathexpr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// constants resolvable as bare identifiers.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// fixedArgFuncs maps single-argument function names to implementations.
var fixedArgFuncs = map[string]func(float64) float64{
	"abs":   math.Abs,
	"sqrt":  math.Sqrt,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"log10": math.Log10,
	"exp":   math.Exp,
	"floor": math.Floor,
	"ceil":  math.Ceil,
}

// Evaluate parses and evaluates expr, returning the numeric result.
// Any syntax error, unknown identifier, wrong arity or domain error
// (division by zero, non-finite result) is returned as an error.
func Evaluate(expr string) (float64, error) {
	p := &parser{input: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return v, nil
}

// Format renders an evaluation result the way the calculator tool reports it:
// integers without a decimal point, everything else in shortest form.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parser is a recursive-descent parser over the raw expression bytes.
// Precedence, loosest to tightest: +- | */% | unary +- | ^ | primary.
type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left = math.Mod(left, right)
		}
	}
}

// parseUnary binds looser than ^ so that -2^2 evaluates to -4.
func (p *parser) parseUnary() (float64, error) {
	if op, ok := p.peekOp("+", "-"); ok {
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	// ** must be matched before * would be; peekOp tries longest first.
	if _, ok := p.peekOp("**", "^"); !ok {
		return base, nil
	}
	// Right-associative: 2^3^2 == 2^(3^2).
	exp, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	c := p.input[p.pos]
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(')'); err != nil {
			return 0, err
		}
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(rune(c)):
		return p.parseIdent()
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", c, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		// scientific notation: 1e6, 2.5E-3
		if (c == 'e' || c == 'E') && p.pos > start {
			next := p.pos + 1
			if next < len(p.input) && (p.input[next] == '+' || p.input[next] == '-') {
				next++
			}
			if next < len(p.input) && p.input[next] >= '0' && p.input[next] <= '9' {
				p.pos = next + 1
				continue
			}
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

// parseIdent resolves an allow-listed constant or function call.
func (p *parser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(rune(p.input[p.pos])) {
		p.pos++
	}
	name := p.input[start:p.pos]

	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		p.pos++
		args, err := p.parseArgs()
		if err != nil {
			return 0, err
		}
		return applyFunc(name, args)
	}

	if v, ok := constants[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown identifier %q", name)
}

// parseArgs consumes a comma-separated argument list up to the closing paren.
func (p *parser) parseArgs() ([]float64, error) {
	var args []float64
	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		p.pos++
		return args, nil
	}
	for {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
		}
	}
}

func applyFunc(name string, args []float64) (float64, error) {
	if fn, ok := fixedArgFuncs[name]; ok {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		return fn(args[0]), nil
	}

	switch name {
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "log":
		// log(x) is the natural log; log(x, base) changes base.
		switch len(args) {
		case 1:
			return math.Log(args[0]), nil
		case 2:
			if args[1] <= 0 || args[1] == 1 {
				return 0, fmt.Errorf("invalid log base %v", args[1])
			}
			return math.Log(args[0]) / math.Log(args[1]), nil
		default:
			return 0, fmt.Errorf("log expects 1 or 2 arguments, got %d", len(args))
		}
	case "round":
		switch len(args) {
		case 1:
			return math.Round(args[0]), nil
		case 2:
			shift := math.Pow(10, math.Trunc(args[1]))
			return math.Round(args[0]*shift) / shift, nil
		default:
			return 0, fmt.Errorf("round expects 1 or 2 arguments, got %d", len(args))
		}
	case "min", "max", "sum":
		if len(args) == 0 {
			return 0, fmt.Errorf("%s expects at least 1 argument", name)
		}
		return reduce(name, args), nil
	default:
		return 0, fmt.Errorf("unknown function %q", name)
	}
}

func reduce(name string, args []float64) float64 {
	acc := args[0]
	if name == "sum" {
		acc = 0
		for _, v := range args {
			acc += v
		}
		return acc
	}
	for _, v := range args[1:] {
		if name == "min" && v < acc || name == "max" && v > acc {
			acc = v
		}
	}
	return acc
}

// peekOp consumes and returns the first matching operator, trying candidates
// in order (callers list longer operators first where prefixes overlap).
func (p *parser) peekOp(ops ...string) (string, bool) {
	p.skipSpaces()
	for _, op := range ops {
		if strings.HasPrefix(p.input[p.pos:], op) {
			p.pos += len(op)
			return op, true
		}
	}
	return "", false
}

func (p *parser) expect(c byte) error {
	p.skipSpaces()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("expected %q at position %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
