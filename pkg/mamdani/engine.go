package mamdani

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Values maps variable names to crisp values: inputs keyed by antecedent,
// outputs keyed by consequent.
type Values map[VariableName]float64

// Observer receives every finished inference, successful or not. It is
// called synchronously from Infer and must be safe for concurrent use.
type Observer interface {
	ObserveInference(ic *InferenceContext, elapsed time.Duration, err error)
}

// Observers fans one inference out to several observers in order.
type Observers []Observer

func (o Observers) ObserveInference(ic *InferenceContext, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.ObserveInference(ic, elapsed, err)
	}
}

type Option func(*options)

type options struct {
	logger   *zap.Logger
	limits   Limits
	observer Observer
}

// WithLogger sets the logger used for build diagnostics and per-call debug
// output. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLimits overrides DefaultLimits. Zero fields keep their default.
func WithLimits(l Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithObserver attaches an Observer, e.g. a metrics collector.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Engine is an immutable Mamdani inference system. Build it once and call
// Compute or Infer from any number of goroutines; each call keeps its
// state in its own InferenceContext.
type Engine struct {
	variables   []*Variable
	byName      map[VariableName]*Variable
	antecedents []*Variable
	consequents []*Variable
	required    []bool // per antecedent: referenced by at least one rule
	rules       []*Rule
	limits      Limits
	logger      *zap.Logger
	observer    Observer
}

// Build validates variables and rules and compiles them into an Engine.
// Every failure is a *ConfigurationError.
func Build(variables []VariableSpec, rules []RuleSpec, opts ...Option) (*Engine, error) {
	o := options{logger: zap.NewNop(), limits: DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}
	limits := o.limits.withDefaults()

	if len(variables) > limits.MaxVariables {
		return nil, configErr("model", "", nil, "%d variables exceeds limit %d", len(variables), limits.MaxVariables)
	}
	if len(rules) > limits.MaxRules {
		return nil, configErr("model", "", nil, "%d rules exceeds limit %d", len(rules), limits.MaxRules)
	}
	if len(rules) == 0 {
		return nil, configErr("model", "", nil, "at least one rule is required")
	}

	e := &Engine{
		byName:   make(map[VariableName]*Variable, len(variables)),
		limits:   limits,
		logger:   o.logger,
		observer: o.observer,
	}

	c := &compiler{
		byName:      e.byName,
		antecedents: make(map[VariableName]int),
		consequents: make(map[VariableName]int),
		maxNodes:    limits.MaxRuleComplexity,
	}

	for _, spec := range variables {
		if _, dup := e.byName[spec.Name]; dup {
			return nil, configErr("variable", string(spec.Name), nil, "duplicate variable name")
		}
		v, err := newVariable(spec, limits)
		if err != nil {
			return nil, err
		}
		e.variables = append(e.variables, v)
		e.byName[v.name] = v
		switch v.role {
		case Antecedent:
			c.antecedents[v.name] = len(e.antecedents)
			e.antecedents = append(e.antecedents, v)
		case Consequent:
			c.consequents[v.name] = len(e.consequents)
			e.consequents = append(e.consequents, v)
		}
	}
	if len(e.consequents) == 0 {
		return nil, configErr("model", "", nil, "at least one consequent variable is required")
	}

	e.required = make([]bool, len(e.antecedents))
	targeted := make([]bool, len(e.consequents))
	names := make(map[string]struct{}, len(rules))

	for i, spec := range rules {
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("rule_%d", i+1)
		}
		if _, dup := names[spec.Name]; dup {
			return nil, configErr("rule", spec.Name, nil, "duplicate rule name")
		}
		names[spec.Name] = struct{}{}

		r, err := c.compileRule(spec)
		if err != nil {
			return nil, err
		}
		r.root.walkTerms(func(n *node) { e.required[n.variable] = true })
		targeted[r.consequent] = true
		e.rules = append(e.rules, r)
	}

	for i, ok := range targeted {
		if !ok {
			return nil, configErr("variable", string(e.consequents[i].name), nil, "no rule targets this consequent")
		}
	}

	e.logger.Debug("engine built",
		zap.Int("antecedents", len(e.antecedents)),
		zap.Int("consequents", len(e.consequents)),
		zap.Int("rules", len(e.rules)))

	return e, nil
}

// RuleFiring records the strength one rule fired with during an inference.
type RuleFiring struct {
	Rule       string  `json:"rule"`
	Consequent Term    `json:"consequent"`
	Strength   float64 `json:"strength"`
}

// InferenceContext is the private state of a single inference call.
type InferenceContext struct {
	Inputs      Values                             `json:"inputs"`
	Memberships Memberships                        `json:"memberships"`
	Firings     []RuleFiring                       `json:"firings"`
	Activations map[VariableName]map[Label]float64 `json:"activations"`
	Curves      map[VariableName]Curve             `json:"curves,omitempty"`
	Outputs     Values                             `json:"outputs"`
}

// Compute runs an inference and returns one crisp value per consequent.
// It is all-or-nothing: on error no outputs are returned.
func (e *Engine) Compute(inputs Values) (Values, error) {
	ic, err := e.Infer(inputs)
	if err != nil {
		return nil, err
	}
	return ic.Outputs, nil
}

// Infer runs an inference and returns its full trace. On error the context
// is returned as far as it was filled, for diagnostics.
func (e *Engine) Infer(inputs Values) (*InferenceContext, error) {
	start := time.Now()
	ic, err := e.infer(inputs)
	if e.observer != nil {
		e.observer.ObserveInference(ic, time.Since(start), err)
	}
	if err != nil {
		e.logger.Debug("inference failed", zap.Error(err))
		return ic, err
	}
	if ce := e.logger.Check(zapcore.DebugLevel, "inference complete"); ce != nil {
		fields := make([]zap.Field, 0, len(ic.Outputs))
		for name, v := range ic.Outputs {
			fields = append(fields, zap.Float64(string(name), v))
		}
		ce.Write(fields...)
	}
	return ic, nil
}

func (e *Engine) infer(inputs Values) (*InferenceContext, error) {
	ic := &InferenceContext{
		Inputs:      make(Values, len(e.antecedents)),
		Memberships: make(Memberships, len(e.antecedents)),
		Activations: make(map[VariableName]map[Label]float64, len(e.consequents)),
		Curves:      make(map[VariableName]Curve, len(e.consequents)),
		Outputs:     make(Values, len(e.consequents)),
	}

	for name := range inputs {
		if v, ok := e.byName[name]; !ok || v.role != Antecedent {
			e.logger.Debug("ignoring input", zap.String("variable", string(name)))
		}
	}

	// Bind and fuzzify.
	degrees := make([][]float64, len(e.antecedents))
	for i, v := range e.antecedents {
		degrees[i] = make([]float64, len(v.sets))
		x, ok := inputs[v.name]
		if !ok || math.IsNaN(x) {
			if e.required[i] {
				return ic, &MissingInputError{Variable: v.name}
			}
			continue
		}
		ic.Inputs[v.name] = x
		v.fuzzifyInto(x, degrees[i])
		ic.Memberships[v.name] = v.labelled(degrees[i])
	}

	// Evaluate rules and aggregate by max per consequent label.
	activations := make([][]float64, len(e.consequents))
	for i, v := range e.consequents {
		activations[i] = make([]float64, len(v.sets))
	}
	ic.Firings = make([]RuleFiring, len(e.rules))
	for i, r := range e.rules {
		strength := r.fire(degrees)
		ic.Firings[i] = RuleFiring{Rule: r.name, Consequent: r.spec.Consequent, Strength: strength}
		act := activations[r.consequent]
		act[r.label] = math.Max(act[r.label], strength)
	}

	// Aggregate curves and defuzzify.
	for i, v := range e.consequents {
		ic.Activations[v.name] = v.labelled(activations[i])
		curve := v.activationCurve(activations[i])
		ic.Curves[v.name] = curve
		out, err := v.Defuzzify(curve)
		if err != nil {
			return ic, err
		}
		ic.Outputs[v.name] = out
	}

	return ic, nil
}

// Variables returns every variable in declaration order.
func (e *Engine) Variables() []*Variable {
	out := make([]*Variable, len(e.variables))
	copy(out, e.variables)
	return out
}

func (e *Engine) Antecedents() []*Variable {
	out := make([]*Variable, len(e.antecedents))
	copy(out, e.antecedents)
	return out
}

func (e *Engine) Consequents() []*Variable {
	out := make([]*Variable, len(e.consequents))
	copy(out, e.consequents)
	return out
}

// Variable looks up a variable by name.
func (e *Engine) Variable(name VariableName) (*Variable, bool) {
	v, ok := e.byName[name]
	return v, ok
}

// Rules returns the compiled rules in declaration order.
func (e *Engine) Rules() []*Rule {
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// RequiredInputs lists the antecedents Compute needs a value for.
func (e *Engine) RequiredInputs() []VariableName {
	var names []VariableName
	for i, v := range e.antecedents {
		if e.required[i] {
			names = append(names, v.name)
		}
	}
	return names
}

func (e *Engine) Limits() Limits { return e.limits }

// CompileRule checks a rule against this engine's variables without
// modifying the engine.
func (e *Engine) CompileRule(spec RuleSpec) (*Rule, error) {
	c := &compiler{
		byName:      e.byName,
		antecedents: make(map[VariableName]int, len(e.antecedents)),
		consequents: make(map[VariableName]int, len(e.consequents)),
		maxNodes:    e.limits.MaxRuleComplexity,
	}
	for i, v := range e.antecedents {
		c.antecedents[v.name] = i
	}
	for i, v := range e.consequents {
		c.consequents[v.name] = i
	}
	if spec.Name == "" {
		spec.Name = "rule"
	}
	return c.compileRule(spec)
}
