package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-matricula/pkg/visibility"
)

// Evaluator compiles visibility rules and caches the compiled programs.
//
// Grammar:
//
//	expr    := or
//	or      := and ("||" and)*
//	and     := unary ("&&" unary)*
//	unary   := "!" unary | primary
//	primary := "(" expr ")" | operand (cmp operand | "in" list)?
//	cmp     := "==" | "!=" | "<" | "<=" | ">" | ">="
//	list    := "[" operand ("," operand)* "]"
//
// Operands are identifiers, quoted strings, numbers, true, false or null.
// Identifiers read visibility.Context.Values, or Extras with the "extras."
// prefix. A bare identifier is tested for truthiness.
type Evaluator struct {
	programs sync.Map
}

// New returns an Evaluator with an empty program cache.
func New() *Evaluator { return &Evaluator{} }

var _ visibility.Evaluator = (*Evaluator)(nil)

// Eval compiles (once) and evaluates rule. An empty rule is always visible.
func (e *Evaluator) Eval(_ string, rule string, ctx visibility.Context) (bool, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return true, nil
	}
	prog, err := e.compile(rule)
	if err != nil {
		return false, err
	}
	return prog.eval(ctx)
}

// Compile validates a rule without evaluating it.
func (e *Evaluator) Compile(rule string) error {
	_, err := e.compile(strings.TrimSpace(rule))
	return err
}

func (e *Evaluator) compile(rule string) (node, error) {
	if cached, ok := e.programs.Load(rule); ok {
		return cached.(node), nil
	}
	toks, err := lex(rule)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("expr: unexpected %q in %q", p.peek().text, rule)
	}
	e.programs.Store(rule, prog)
	return prog, nil
}

type kind int

const (
	kIdent kind = iota
	kString
	kNumber
	kTrue
	kFalse
	kNull
	kOp
	kIn
	kLParen
	kRParen
	kLBracket
	kRBracket
	kComma
)

type tok struct {
	kind kind
	text string
}

var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!"}

func lex(input string) ([]tok, error) {
	var out []tok
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case c == '(':
			out = append(out, tok{kLParen, "("})
			i++
			continue
		case c == ')':
			out = append(out, tok{kRParen, ")"})
			i++
			continue
		case c == '[':
			out = append(out, tok{kLBracket, "["})
			i++
			continue
		case c == ']':
			out = append(out, tok{kRBracket, "]"})
			i++
			continue
		case c == ',':
			out = append(out, tok{kComma, ","})
			i++
			continue
		case c == '"' || c == '\'':
			end := i + 1
			for end < len(input) && input[end] != c {
				if input[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(input) {
				return nil, errors.New("expr: unterminated string")
			}
			body := input[i+1 : end]
			if c == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			text, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return nil, fmt.Errorf("expr: invalid string %q: %w", input[i:end+1], err)
			}
			out = append(out, tok{kString, text})
			i = end + 1
			continue
		}

		if op := matchOperator(input[i:]); op != "" {
			out = append(out, tok{kOp, op})
			i += len(op)
			continue
		}

		start := i
		for i < len(input) && isWordByte(input[i]) {
			i++
		}
		if start == i {
			return nil, fmt.Errorf("expr: unexpected character %q", string(c))
		}
		word := input[start:i]
		switch strings.ToLower(word) {
		case "true":
			out = append(out, tok{kTrue, word})
		case "false":
			out = append(out, tok{kFalse, word})
		case "null", "nil":
			out = append(out, tok{kNull, word})
		case "in":
			out = append(out, tok{kIn, word})
		default:
			if _, err := strconv.ParseFloat(word, 64); err == nil {
				out = append(out, tok{kNumber, word})
			} else {
				out = append(out, tok{kIdent, word})
			}
		}
	}
	return out, nil
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == '+' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() tok {
	if p.done() {
		return tok{}
	}
	return p.toks[p.pos]
}

func (p *parser) accept(k kind, text string) bool {
	if p.done() {
		return false
	}
	t := p.toks[p.pos]
	if t.kind != k || (text != "" && t.text != text) {
		return false
	}
	p.pos++
	return true
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(kOp, "||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept(kOp, "&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.accept(kOp, "!") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.accept(kLParen, "") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(kRParen, "") {
			return nil, errors.New("expr: missing ')'")
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.accept(kIn, "") {
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return inNode{left, list}, nil
	}

	next := p.peek()
	if next.kind == kOp {
		switch next.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.pos++
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return cmpNode{op: next.text, left: left, right: right}, nil
		}
	}
	return truthyNode{left}, nil
}

func (p *parser) parseList() ([]operand, error) {
	if !p.accept(kLBracket, "") {
		return nil, errors.New("expr: expected '[' after in")
	}
	var out []operand
	for {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		if p.accept(kComma, "") {
			continue
		}
		if p.accept(kRBracket, "") {
			return out, nil
		}
		return nil, errors.New("expr: expected ',' or ']'")
	}
}

func (p *parser) parseOperand() (operand, error) {
	if p.done() {
		return operand{}, errors.New("expr: unexpected end of rule")
	}
	t := p.toks[p.pos]
	p.pos++
	switch t.kind {
	case kIdent:
		return operand{ident: t.text}, nil
	case kString:
		return operand{literal: t.text, isLiteral: true}, nil
	case kNumber:
		f, _ := strconv.ParseFloat(t.text, 64)
		return operand{literal: f, isLiteral: true}, nil
	case kTrue:
		return operand{literal: true, isLiteral: true}, nil
	case kFalse:
		return operand{literal: false, isLiteral: true}, nil
	case kNull:
		return operand{isLiteral: true}, nil
	default:
		return operand{}, fmt.Errorf("expr: expected operand, got %q", t.text)
	}
}
