package tool_calculate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"chatgate/src/agent"
)

// Tool name constant
const Name = "calculate"

const calculatePrompt = `Evaluates an arithmetic expression and returns the result.

HOW TO USE:
- Provide the expression as a string, e.g. "2 * (3 + 4.5)"

FEATURES:
- Supports + - * / % ^ with standard precedence
- Parentheses and unary minus
- Floating point numbers

LIMITATIONS:
- No variables or functions
- Division by zero is reported as an error`

// CalculateInput represents the parameters for calculate
type CalculateInput struct {
	Expression string `json:"expression" required:"true" description:"The arithmetic expression to evaluate"`
}

// CalculateOutput represents the response from calculate
type CalculateOutput struct {
	Expression string  `json:"expression" description:"The expression that was evaluated"`
	Result     float64 `json:"result" description:"The numeric result"`
}

// Tool returns the calculate tool definition.
func Tool() (agent.Tool, error) {
	return agent.NewGenericTool(Name, calculatePrompt, calculateHandler)
}

func calculateHandler(ctx context.Context, input CalculateInput) (CalculateOutput, error) {
	result, err := Evaluate(input.Expression)
	if err != nil {
		return CalculateOutput{}, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return CalculateOutput{}, fmt.Errorf("expression has no finite result")
	}
	return CalculateOutput{Expression: input.Expression, Result: result}, nil
}

// Evaluate parses and evaluates an arithmetic expression.
func Evaluate(expr string) (float64, error) {
	p := &parser{input: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

// parser is a recursive-descent evaluator. Grammar, lowest precedence
// first: expr = term (('+'|'-') term)*; term = power (('*'|'/'|'%') power)*;
// power = unary ('^' power)?; unary = '-' unary | primary.
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
		p.skipSpace()
		switch {
		case p.accept('+'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept('-'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.accept('*'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept('/'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case p.accept('%'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.accept('^') {
		// right associative
		exp, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.accept('-') {
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (float64, error) {
	p.skipSpace()
	if p.accept('(') {
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return v, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		if p.pos >= len(p.input) {
			return 0, fmt.Errorf("unexpected end of expression")
		}
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *parser) accept(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && strings.ContainsRune(" \t\r\n", rune(p.input[p.pos])) {
		p.pos++
	}
}
