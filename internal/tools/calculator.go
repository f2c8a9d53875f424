package tools

import (
	"context"
	"math"
	"strconv"
	"strings"
	"unicode"

	reerrors "reagent/internal/errors"
)

// Calculator evaluates arithmetic expressions: + - * / with parentheses
// and the usual precedence. No identifiers, no function calls.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculate" }

func (c *Calculator) Description() string {
	return "Evaluate an arithmetic expression (+, -, *, /, parentheses)"
}

func (c *Calculator) Execute(ctx context.Context, input string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	expr := strings.TrimSpace(input)
	if expr == "" {
		return nil, reerrors.NewInput("calculator needs an expression")
	}
	value, err := evaluate(expr)
	if err != nil {
		return nil, err
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return nil, reerrors.NewInput("expression has no finite value")
	}
	return &Result{
		Content: formatNumber(value),
		Data:    map[string]any{"expression": expr, "value": value},
	}, nil
}

// formatNumber renders integers without a decimal point.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// evaluate parses and computes expr by recursive descent.
func evaluate(expr string) (float64, error) {
	p := &exprParser{input: expr}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, reerrors.NewInput("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpr handles + and -.
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, reerrors.NewInput("division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	op, ok := p.peek()
	if !ok {
		return 0, reerrors.NewInput("expression ended unexpectedly")
	}
	if op == '-' {
		p.pos++
		value, err := p.parseUnary()
		return -value, err
	}
	if op == '+' {
		p.pos++
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, reerrors.NewInput("expression ended unexpectedly")
	}
	if ch == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		closer, ok := p.peek()
		if !ok || closer != ')' {
			return 0, reerrors.NewInput("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, reerrors.NewInput("expected a number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, reerrors.NewInput("bad number %q", p.input[start:p.pos])
	}
	return value, nil
}

// ExtractExpression pulls the longest arithmetic-looking run out of free
// text, so "what is 2 + 3 * 4" yields "2 + 3 * 4".
func ExtractExpression(text string) string {
	best := ""
	current := strings.Builder{}
	flush := func() {
		candidate := strings.TrimSpace(current.String())
		current.Reset()
		if strings.IndexFunc(candidate, unicode.IsDigit) < 0 {
			return
		}
		if len(candidate) > len(best) {
			best = candidate
		}
	}
	for _, r := range text {
		if unicode.IsDigit(r) || strings.ContainsRune("+-*/(). ", r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.Trim(best, ". ")
}

var _ Tool = (*Calculator)(nil)
