package parser

import (
	"bytes"
)

type Node interface {
	TokenLiteral() string
	String() string
	// CountNodes returns the number of AST nodes rooted at this node.
	CountNodes() int
}

type Expression interface {
	Node
	expressionNode()
}

type Program struct {
	Rules []*RuleStatement
}

func (p *Program) TokenLiteral() string {
	if len(p.Rules) > 0 {
		return p.Rules[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for i, r := range p.Rules {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(r.String())
	}
	return out.String()
}

func (p *Program) CountNodes() int {
	n := 1
	for _, r := range p.Rules {
		n += r.CountNodes()
	}
	return n
}

// RuleStatement is either `when <cond> { <term> }` or `if <cond> then <term>`.
type RuleStatement struct {
	Token      Token // the 'when' or 'if' token
	Condition  Expression
	Consequent *Term
}

func (rs *RuleStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *RuleStatement) String() string {
	var out bytes.Buffer
	out.WriteString("when ")
	if rs.Condition != nil {
		out.WriteString(rs.Condition.String())
	}
	out.WriteString(" { ")
	if rs.Consequent != nil {
		out.WriteString(rs.Consequent.String())
	}
	out.WriteString(" }")
	return out.String()
}

func (rs *RuleStatement) CountNodes() int {
	n := 1
	if rs.Condition != nil {
		n += rs.Condition.CountNodes()
	}
	if rs.Consequent != nil {
		n += rs.Consequent.CountNodes()
	}
	return n
}

// Term names a fuzzy set of a variable: `variable.label` or `variable is label`.
type Term struct {
	Token    Token // the variable identifier token
	Variable string
	Label    string
}

func (t *Term) expressionNode()      {}
func (t *Term) TokenLiteral() string { return t.Token.Literal }
func (t *Term) String() string       { return t.Variable + "." + t.Label }
func (t *Term) CountNodes() int      { return 1 }

type InfixExpression struct {
	Token    Token // the operator token, && or ||
	Left     Expression
	Operator TokenType
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	if ie.Left != nil {
		out.WriteString(ie.Left.String())
	}
	out.WriteString(" " + ie.Operator.String() + " ")
	if ie.Right != nil {
		out.WriteString(ie.Right.String())
	}
	out.WriteString(")")
	return out.String()
}

func (ie *InfixExpression) CountNodes() int {
	n := 1
	if ie.Left != nil {
		n += ie.Left.CountNodes()
	}
	if ie.Right != nil {
		n += ie.Right.CountNodes()
	}
	return n
}

type PrefixExpression struct {
	Token Token // the ! token
	Right Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(!")
	if pe.Right != nil {
		out.WriteString(pe.Right.String())
	}
	out.WriteString(")")
	return out.String()
}

func (pe *PrefixExpression) CountNodes() int {
	if pe.Right == nil {
		return 1
	}
	return 1 + pe.Right.CountNodes()
}
