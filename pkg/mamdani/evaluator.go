package mamdani

import (
	"fmt"

	"github.com/chosenoffset/mamdani/pkg/mamdani/parser"
)

// ParseRule parses one rule written in the rule language, e.g.
//
//	when soil_moisture.dry && air_temperature.cold { irrigation_duration.very_long }
//	if soil_moisture is wet then irrigation_duration is zero
//
// Chains of the same operator are flattened into a single And or Or node.
func ParseRule(name, source string) (RuleSpec, error) {
	stmt, err := parser.ParseRule(source)
	if err != nil {
		return RuleSpec{}, fmt.Errorf("rule %q: %w", name, err)
	}
	return fromStatement(name, stmt), nil
}

// ParseRules parses a program of rules. Rules are named by prefix and their
// one-based position.
func ParseRules(prefix, source string) ([]RuleSpec, error) {
	p := parser.New(parser.NewLexer(source))
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		return nil, &parser.Error{Messages: p.Errors()}
	}
	specs := make([]RuleSpec, len(program.Rules))
	for i, stmt := range program.Rules {
		specs[i] = fromStatement(fmt.Sprintf("%s%d", prefix, i+1), stmt)
	}
	return specs, nil
}

func fromStatement(name string, stmt *parser.RuleStatement) RuleSpec {
	return RuleSpec{
		Name:       name,
		Antecedent: fromExpression(stmt.Condition),
		Consequent: fromTerm(stmt.Consequent),
	}
}

func fromTerm(t *parser.Term) Term {
	return Term{Variable: VariableName(t.Variable), Label: Label(t.Label)}
}

func fromExpression(exp parser.Expression) Expr {
	switch e := exp.(type) {
	case *parser.Term:
		return fromTerm(e)
	case *parser.PrefixExpression:
		return Not{Child: fromExpression(e.Right)}
	case *parser.InfixExpression:
		children := flatten(e.Operator, e, nil)
		if e.Operator == parser.AND {
			return And{Children: children}
		}
		return Or{Children: children}
	}
	return nil
}

func flatten(op parser.TokenType, exp parser.Expression, acc []Expr) []Expr {
	if ie, ok := exp.(*parser.InfixExpression); ok && ie.Operator == op {
		acc = flatten(op, ie.Left, acc)
		return flatten(op, ie.Right, acc)
	}
	return append(acc, fromExpression(exp))
}

// compiler resolves rule references against the variables of one model.
type compiler struct {
	byName      map[VariableName]*Variable
	antecedents map[VariableName]int
	consequents map[VariableName]int
	maxNodes    int
}

func (c *compiler) compileRule(spec RuleSpec) (*Rule, error) {
	if spec.Antecedent == nil {
		return nil, configErr("rule", spec.Name, nil, "antecedent is required")
	}

	root, err := c.compileExpr(spec.Name, spec.Antecedent, 0)
	if err != nil {
		return nil, err
	}
	complexity := root.count()
	if complexity > c.maxNodes {
		return nil, configErr("rule", spec.Name, nil, "antecedent has %d nodes, limit is %d", complexity, c.maxNodes)
	}

	ct := spec.Consequent
	v, ok := c.byName[ct.Variable]
	if !ok {
		return nil, configErr("rule", spec.Name, nil, "consequent references undefined variable %q", ct.Variable)
	}
	if v.role != Consequent {
		return nil, configErr("rule", spec.Name, nil, "consequent %q is an antecedent variable", ct.Variable)
	}
	label, ok := v.index[ct.Label]
	if !ok {
		return nil, configErr("rule", spec.Name, nil, "consequent references undefined label %q of %q", ct.Label, ct.Variable)
	}

	return &Rule{
		name:       spec.Name,
		spec:       spec,
		root:       root,
		consequent: c.consequents[ct.Variable],
		label:      label,
		complexity: complexity,
	}, nil
}

func (c *compiler) compileExpr(rule string, e Expr, depth int) (node, error) {
	if depth > c.maxNodes {
		return node{}, configErr("rule", rule, nil, "antecedent nesting exceeds %d", c.maxNodes)
	}

	switch x := e.(type) {
	case Term:
		v, ok := c.byName[x.Variable]
		if !ok {
			return node{}, configErr("rule", rule, nil, "references undefined variable %q", x.Variable)
		}
		if v.role != Antecedent {
			return node{}, configErr("rule", rule, nil, "antecedent uses consequent variable %q", x.Variable)
		}
		set, ok := v.index[x.Label]
		if !ok {
			return node{}, configErr("rule", rule, nil, "references undefined label %q of %q", x.Label, x.Variable)
		}
		return node{op: opTerm, term: x, variable: c.antecedents[x.Variable], set: set}, nil
	case And:
		return c.compileChildren(rule, opAnd, x.Children, depth)
	case Or:
		return c.compileChildren(rule, opOr, x.Children, depth)
	case Not:
		if x.Child == nil {
			return node{}, configErr("rule", rule, nil, "negation without operand")
		}
		child, err := c.compileExpr(rule, x.Child, depth+1)
		if err != nil {
			return node{}, err
		}
		return node{op: opNot, children: []node{child}}, nil
	case nil:
		return node{}, configErr("rule", rule, nil, "empty expression")
	default:
		return node{}, configErr("rule", rule, nil, "unsupported expression %T", e)
	}
}

func (c *compiler) compileChildren(rule string, op opKind, children []Expr, depth int) (node, error) {
	if len(children) == 0 {
		return node{}, configErr("rule", rule, nil, "operator without operands")
	}
	n := node{op: op, children: make([]node, 0, len(children))}
	for _, child := range children {
		compiled, err := c.compileExpr(rule, child, depth+1)
		if err != nil {
			return node{}, err
		}
		n.children = append(n.children, compiled)
	}
	return n, nil
}
