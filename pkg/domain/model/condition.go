package model

import "strings"

// ShouldRunStep evaluates a step's if: expression given whether an earlier
// step of the cell failed. The status functions success(), failure(),
// always() and cancelled() are combined with !, && and || and parentheses.
// Cells are never cancelled. Any other operand, such as a comparison of
// matrix values, cannot be evaluated here and counts as true. Without a
// status function the expression is guarded by an implicit success().
func ShouldRunStep(cond string, failed bool) bool {
	expr := strings.TrimSpace(cond)
	if inner, ok := strings.CutPrefix(expr, "${{"); ok {
		expr = strings.TrimSpace(strings.TrimSuffix(inner, "}}"))
	}
	if expr == "" {
		return !failed
	}

	p := &condParser{src: expr, failed: failed}
	result := p.parseOr()
	if p.invalid || p.pos < len(p.src) {
		// unbalanced input, fall back to the default guard
		return !failed
	}
	if !p.statusCheck {
		return !failed && result
	}
	return result
}

type condParser struct {
	src         string
	pos         int
	failed      bool
	statusCheck bool
	invalid     bool
}

func (p *condParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *condParser) consume(token string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *condParser) parseOr() bool {
	v := p.parseAnd()
	for p.consume("||") {
		rhs := p.parseAnd()
		v = v || rhs
	}
	return v
}

func (p *condParser) parseAnd() bool {
	v := p.parseUnary()
	for p.consume("&&") {
		rhs := p.parseUnary()
		v = v && rhs
	}
	return v
}

func (p *condParser) parseUnary() bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '!' && !strings.HasPrefix(p.src[p.pos:], "!=") {
		p.pos++
		return !p.parseUnary()
	}
	if p.consume("(") {
		v := p.parseOr()
		if !p.consume(")") {
			p.invalid = true
		}
		return v
	}
	return p.operand(p.readOperand())
}

// readOperand reads up to the next && or || or closing parenthesis outside
// quotes and nested calls.
func (p *condParser) readOperand() string {
	start := p.pos
	depth := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\'':
			if end := strings.IndexByte(p.src[p.pos+1:], '\''); end >= 0 {
				p.pos += end + 2
				continue
			}
			p.pos = len(p.src)
			continue
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return strings.TrimSpace(p.src[start:p.pos])
			}
			depth--
		case depth == 0 && (strings.HasPrefix(p.src[p.pos:], "&&") || strings.HasPrefix(p.src[p.pos:], "||")):
			return strings.TrimSpace(p.src[start:p.pos])
		}
		p.pos++
	}
	return strings.TrimSpace(p.src[start:])
}

func (p *condParser) operand(op string) bool {
	switch strings.ReplaceAll(op, " ", "") {
	case "success()":
		p.statusCheck = true
		return !p.failed
	case "failure()":
		p.statusCheck = true
		return p.failed
	case "always()":
		p.statusCheck = true
		return true
	case "cancelled()":
		p.statusCheck = true
		return false
	case "false":
		return false
	default:
		return true
	}
}
