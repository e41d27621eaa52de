package parser

import (
	"fmt"
	"strings"
)

const (
	_ int = iota
	LOWEST
	DISJUNCTION // ||
	CONJUNCTION // &&
	PREFIX      // !X
)

var precedences = map[TokenType]int{
	OR:  DISJUNCTION,
	AND: CONJUNCTION,
}

type (
	prefixParseFn func() Expression
	infixParseFn  func(Expression) Expression
)

type Parser struct {
	l *Lexer

	curToken  Token
	peekToken Token

	errors []string

	prefixParseFns map[TokenType]prefixParseFn
	infixParseFns  map[TokenType]infixParseFn
}

func New(l *Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}

	p.prefixParseFns = make(map[TokenType]prefixParseFn)
	p.registerPrefix(IDENT, p.parseTermExpression)
	p.registerPrefix(NOT, p.parsePrefixExpression)
	p.registerPrefix(LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[TokenType]infixParseFn)
	p.registerInfix(AND, p.parseInfixExpression)
	p.registerInfix(OR, p.parseInfixExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Error aggregates every message reported while parsing one source.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "parse errors: " + strings.Join(e.Messages, "; ")
}

// ParseRule parses a source holding exactly one rule statement.
func ParseRule(input string) (*RuleStatement, error) {
	p := New(NewLexer(input))
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		return nil, &Error{Messages: p.Errors()}
	}
	if len(program.Rules) != 1 {
		return nil, &Error{Messages: []string{fmt.Sprintf("expected exactly one rule, got %d", len(program.Rules))}}
	}
	return program.Rules[0], nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) ParseProgram() *Program {
	program := &Program{}
	program.Rules = []*RuleStatement{}

	for !p.curTokenIs(EOF) {
		before := len(p.errors)

		var stmt *RuleStatement
		switch p.curToken.Type {
		case WHEN:
			stmt = p.parseWhenStatement()
		case IF:
			stmt = p.parseIfStatement()
		default:
			p.errorAt(p.curToken, "expected WHEN or IF to start a rule, got %s", p.curToken.Type)
		}

		if stmt == nil || len(p.errors) > before {
			p.synchronize()
			continue
		}
		program.Rules = append(program.Rules, stmt)
		p.nextToken()
	}

	return program
}

// synchronize skips to the start of the next rule after an error.
func (p *Parser) synchronize() {
	p.nextToken()
	for !p.curTokenIs(EOF) && !p.curTokenIs(WHEN) && !p.curTokenIs(IF) {
		p.nextToken()
	}
}

func (p *Parser) parseWhenStatement() *RuleStatement {
	stmt := &RuleStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}

	if !p.expectPeek(LBRACE) {
		return nil
	}
	if !p.expectPeek(IDENT) {
		return nil
	}
	stmt.Consequent = p.parseTerm()
	if stmt.Consequent == nil {
		return nil
	}

	if p.peekTokenIs(SEMICOLON) {
		p.nextToken()
	}
	if !p.expectPeek(RBRACE) {
		return nil
	}

	return stmt
}

func (p *Parser) parseIfStatement() *RuleStatement {
	stmt := &RuleStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}

	if !p.expectPeek(THEN) {
		return nil
	}
	if !p.expectPeek(IDENT) {
		return nil
	}
	stmt.Consequent = p.parseTerm()
	if stmt.Consequent == nil {
		return nil
	}

	if p.peekTokenIs(SEMICOLON) {
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseExpression(precedence int) Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseTermExpression() Expression {
	term := p.parseTerm()
	if term == nil {
		return nil
	}
	return term
}

// parseTerm expects the current token to be the variable identifier.
func (p *Parser) parseTerm() *Term {
	term := &Term{Token: p.curToken, Variable: p.curToken.Literal}

	if !p.peekTokenIs(DOT) && !p.peekTokenIs(IS) {
		p.errorAt(p.peekToken, "expected . or IS after variable %q, got %s instead", term.Variable, p.peekToken.Type)
		return nil
	}
	p.nextToken()

	if !p.expectPeek(IDENT) {
		return nil
	}
	term.Label = p.curToken.Literal

	return term
}

func (p *Parser) parsePrefixExpression() Expression {
	expression := &PrefixExpression{Token: p.curToken}

	p.nextToken()

	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseInfixExpression(left Expression) Expression {
	expression := &InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Type,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseGroupedExpression() Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}

	if !p.expectPeek(RPAREN) {
		return nil
	}

	return exp
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) errorAt(tok Token, format string, args ...interface{}) {
	msg := fmt.Sprintf("line %d, column %d: ", tok.Line, tok.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) peekError(t TokenType) {
	p.errorAt(p.peekToken, "expected next token to be %s, got %s instead", t, p.peekToken.Type)
}

func (p *Parser) noPrefixParseFnError(tok Token) {
	p.errorAt(tok, "unexpected %s %q in condition", tok.Type, tok.Literal)
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}

	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}

	return LOWEST
}

func (p *Parser) registerPrefix(tokenType TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}
