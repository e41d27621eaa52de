package mamdani

import (
	"math"
	"strings"
)

// Expr is a rule antecedent: a Term, And, Or or Not.
type Expr interface {
	String() string
	exprNode()
}

// Term refers to one fuzzy set of one variable. It is also used as a rule
// consequent.
type Term struct {
	Variable VariableName `json:"variable"`
	Label    Label        `json:"label"`
}

// And takes the minimum of its children.
type And struct {
	Children []Expr
}

// Or takes the maximum of its children.
type Or struct {
	Children []Expr
}

// Not takes the complement 1-x of its child.
type Not struct {
	Child Expr
}

func (Term) exprNode() {}
func (And) exprNode()  {}
func (Or) exprNode()   {}
func (Not) exprNode()  {}

func (t Term) String() string { return string(t.Variable) + "." + string(t.Label) }

func (a And) String() string { return joinExprs(a.Children, " && ") }

func (o Or) String() string { return joinExprs(o.Children, " || ") }

func (n Not) String() string {
	if n.Child == nil {
		return "!<nil>"
	}
	return "!" + n.Child.String()
}

func joinExprs(children []Expr, op string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		if c == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, op) + ")"
}

// Is builds a Term.
func Is(variable VariableName, label Label) Term {
	return Term{Variable: variable, Label: label}
}

// AllOf builds an And node.
func AllOf(children ...Expr) And { return And{Children: children} }

// AnyOf builds an Or node.
func AnyOf(children ...Expr) Or { return Or{Children: children} }

// Negate builds a Not node.
func Negate(child Expr) Not { return Not{Child: child} }

// RuleSpec declares a rule for Build.
type RuleSpec struct {
	Name       string
	Antecedent Expr
	Consequent Term
}

// String renders the rule in the `when ... { ... }` rule language.
func (r RuleSpec) String() string {
	cond := "<nil>"
	switch a := r.Antecedent.(type) {
	case And, Or:
		s := a.String()
		cond = s[1 : len(s)-1]
	case nil:
	default:
		cond = a.String()
	}
	return "when " + cond + " { " + r.Consequent.String() + " }"
}

// Memberships holds fuzzified inputs: variable → label → degree.
type Memberships map[VariableName]map[Label]float64

type opKind uint8

const (
	opTerm opKind = iota
	opAnd
	opOr
	opNot
)

// node is a compiled antecedent with every term resolved to indexes.
type node struct {
	op       opKind
	term     Term
	variable int // index into Engine.antecedents
	set      int // index into that variable's sets
	children []node
}

// degreeFunc resolves a compiled term to its membership degree.
type degreeFunc func(n *node) float64

func (n *node) eval(degree degreeFunc) float64 {
	switch n.op {
	case opTerm:
		return degree(n)
	case opAnd:
		v := 1.0
		for i := range n.children {
			v = math.Min(v, n.children[i].eval(degree))
		}
		return v
	case opOr:
		v := 0.0
		for i := range n.children {
			v = math.Max(v, n.children[i].eval(degree))
		}
		return v
	case opNot:
		return 1 - n.children[0].eval(degree)
	}
	return 0
}

func (n *node) count() int {
	c := 1
	for i := range n.children {
		c += n.children[i].count()
	}
	return c
}

// walkTerms visits every term node in evaluation order.
func (n *node) walkTerms(fn func(*node)) {
	if n.op == opTerm {
		fn(n)
		return
	}
	for i := range n.children {
		n.children[i].walkTerms(fn)
	}
}

// Rule is a compiled, read-only rule owned by an Engine.
type Rule struct {
	name       string
	spec       RuleSpec
	root       node
	consequent int // index into Engine.consequents
	label      int // index into the consequent's sets
	complexity int
}

func (r *Rule) Name() string { return r.name }

// Spec returns the declaration the rule was built from.
func (r *Rule) Spec() RuleSpec { return r.spec }

func (r *Rule) Consequent() Term { return r.spec.Consequent }

// Complexity is the number of expression nodes in the antecedent.
func (r *Rule) Complexity() int { return r.complexity }

// Fire evaluates the antecedent against fuzzified inputs and returns the
// consequent with its firing strength. Terms absent from m count as 0.
func (r *Rule) Fire(m Memberships) (Term, float64) {
	strength := r.root.eval(func(n *node) float64 {
		return m[n.term.Variable][n.term.Label]
	})
	return r.spec.Consequent, strength
}

// fire is the index-based hot path used by the engine.
func (r *Rule) fire(degrees [][]float64) float64 {
	return r.root.eval(func(n *node) float64 {
		return degrees[n.variable][n.set]
	})
}
