// Package builtin contains ready-made local tools.
package builtin

import (
	"context"
	"fmt"
	"go/scanner"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/reactmesh/tool"
)

// SafeCalculatorName is the registered name of the calculator tool.
const SafeCalculatorName = "safe_calculator"

// NewSafeCalculator returns a tool evaluating arithmetic expressions such as
// "15 + 27" or "sqrt(16) * 2^3". Only numeric literals, + - * / %, ^ (power),
// parentheses and a fixed set of math functions are accepted; nothing is executed.
func NewSafeCalculator() tool.Tool {
	return tool.NewFunctionTool(
		SafeCalculatorName,
		"Evaluates an arithmetic expression (e.g. '15 + 27', '2^10', 'sqrt(2) * 3') and returns the numeric result.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "arithmetic expression to evaluate",
				},
			},
			"required": []string{"expression"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			expr, _ := args["expression"].(string)
			v, err := Evaluate(expr)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	)
}

var functions = map[string]func(args []float64) (float64, error){
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"exp":   unary(math.Exp),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"pow": func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	},
	"min": variadic(math.Min),
	"max": variadic(math.Max),
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func unary(f func(float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return f(args[0]), nil
	}
}

func variadic(f func(a, b float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("expected at least 1 argument")
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = f(acc, a)
		}
		return acc, nil
	}
}

// Evaluate parses and evaluates an arithmetic expression. Precedence from
// lowest to highest: + -, * / %, unary sign, ^ (right associative).
func Evaluate(expression string) (float64, error) {
	src := strings.ReplaceAll(strings.TrimSpace(expression), "**", "^")
	if src == "" {
		return 0, fmt.Errorf("empty expression")
	}

	p := newCalcParser(src)

	v, err := p.expr()
	if err != nil {
		return 0, err
	}

	if p.tok != token.EOF && p.tok != token.SEMICOLON {
		return 0, fmt.Errorf("unexpected %q in expression", p.lit)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}

	return v, nil
}

type calcParser struct {
	s    scanner.Scanner
	tok  token.Token
	lit  string
	errs int
}

func newCalcParser(src string) *calcParser {
	p := &calcParser{}
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	p.s.Init(file, []byte(src), func(token.Position, string) { p.errs++ }, 0)
	p.next()
	return p
}

func (p *calcParser) next() {
	_, p.tok, p.lit = p.s.Scan()
	if p.lit == "" {
		p.lit = p.tok.String()
	}
}

func (p *calcParser) expr() (float64, error) {
	x, err := p.term()
	if err != nil {
		return 0, err
	}

	for p.tok == token.ADD || p.tok == token.SUB {
		op := p.tok
		p.next()

		y, err := p.term()
		if err != nil {
			return 0, err
		}

		if op == token.ADD {
			x += y
		} else {
			x -= y
		}
	}

	return x, nil
}

func (p *calcParser) term() (float64, error) {
	x, err := p.unary()
	if err != nil {
		return 0, err
	}

	for p.tok == token.MUL || p.tok == token.QUO || p.tok == token.REM {
		op := p.tok
		p.next()

		y, err := p.unary()
		if err != nil {
			return 0, err
		}

		switch op {
		case token.MUL:
			x *= y
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			x /= y
		case token.REM:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			x = math.Mod(x, y)
		}
	}

	return x, nil
}

func (p *calcParser) unary() (float64, error) {
	switch p.tok {
	case token.SUB:
		p.next()
		x, err := p.unary()
		return -x, err
	case token.ADD:
		p.next()
		return p.unary()
	}

	return p.power()
}

func (p *calcParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}

	if p.tok != token.XOR {
		return base, nil
	}

	p.next()

	exp, err := p.unary()
	if err != nil {
		return 0, err
	}

	return math.Pow(base, exp), nil
}

func (p *calcParser) primary() (float64, error) {
	if p.errs > 0 {
		return 0, fmt.Errorf("invalid expression")
	}

	switch p.tok {
	case token.INT, token.FLOAT:
		v, err := strconv.ParseFloat(strings.ReplaceAll(p.lit, "_", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", p.lit)
		}
		p.next()
		return v, nil
	case token.LPAREN:
		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.tok != token.RPAREN {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return v, nil
	case token.IDENT:
		name := strings.ToLower(p.lit)
		p.next()
		if p.tok != token.LPAREN {
			if c, ok := constants[name]; ok {
				return c, nil
			}
			return 0, fmt.Errorf("unknown identifier %q", name)
		}
		fn, ok := functions[name]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", name)
		}
		args, err := p.arguments()
		if err != nil {
			return 0, err
		}
		return fn(args)
	}

	return 0, fmt.Errorf("unexpected %q in expression", p.lit)
}

func (p *calcParser) arguments() ([]float64, error) {
	p.next() // (

	var args []float64

	for p.tok != token.RPAREN {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)

		if p.tok == token.COMMA {
			p.next()
			continue
		}

		if p.tok != token.RPAREN {
			return nil, fmt.Errorf("expected ',' or ')' in argument list")
		}
	}

	p.next() // )

	return args, nil
}
