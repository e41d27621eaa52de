package mamdani

import (
	"fmt"
	"math"
	"strings"

	"github.com/chosenoffset/mamdani/pkg/mamdani/membership"
)

// VariableName identifies a linguistic variable within a model.
type VariableName string

// Label identifies a fuzzy set within its variable.
type Label string

// Role says whether a variable consumes a crisp input or produces a crisp output.
type Role int

const (
	Antecedent Role = iota + 1
	Consequent
)

func (r Role) String() string {
	switch r {
	case Antecedent:
		return "antecedent"
	case Consequent:
		return "consequent"
	default:
		return "unknown"
	}
}

// ParseRole accepts "antecedent"/"input" and "consequent"/"output".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "antecedent", "input":
		return Antecedent, nil
	case "consequent", "output":
		return Consequent, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Universe is the closed domain [Min, Max] of a variable, sampled every Step
// for defuzzification.
type Universe struct {
	Min  float64
	Max  float64
	Step float64
}

func (u Universe) validate() error {
	for _, v := range []float64{u.Min, u.Max, u.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounds and step must be finite, got [%g, %g] step %g", u.Min, u.Max, u.Step)
		}
	}
	if u.Min >= u.Max {
		return fmt.Errorf("min %g must be below max %g", u.Min, u.Max)
	}
	if u.Step <= 0 {
		return fmt.Errorf("step %g must be positive", u.Step)
	}
	return nil
}

// SampleCount returns how many points Samples will produce.
func (u Universe) SampleCount() int {
	n := int(math.Floor((u.Max-u.Min)/u.Step+1e-9)) + 1
	if u.Min+float64(n-1)*u.Step < u.Max-u.Step*1e-9 {
		n++
	}
	return n
}

// Samples returns Min, Min+Step, ... and always ends exactly at Max.
func (u Universe) Samples() []float64 {
	n := u.SampleCount()
	points := make([]float64, n)
	for i := range points {
		points[i] = u.Min + float64(i)*u.Step
	}
	points[n-1] = u.Max
	return points
}

// Contains reports whether x lies in [Min, Max].
func (u Universe) Contains(x float64) bool {
	return x >= u.Min && x <= u.Max
}

// SetSpec declares one fuzzy set of a variable.
type SetSpec struct {
	Label    Label
	Function membership.Function
}

// VariableSpec declares a linguistic variable for Build.
type VariableSpec struct {
	Name     VariableName
	Role     Role
	Universe Universe
	Sets     []SetSpec
	// Defuzzifier applies to consequents only; empty means Centroid.
	Defuzzifier DefuzzMethod
}

// FuzzySet is a labelled membership function owned by one variable.
type FuzzySet struct {
	Label    Label
	Function membership.Function
}

// Variable is a built, read-only linguistic variable.
type Variable struct {
	name        VariableName
	role        Role
	universe    Universe
	sets        []FuzzySet
	index       map[Label]int
	samples     []float64
	defuzzifier DefuzzMethod
}

func newVariable(spec VariableSpec, limits Limits) (*Variable, error) {
	name := string(spec.Name)
	if name == "" {
		return nil, configErr("variable", name, nil, "name is required")
	}
	if spec.Role != Antecedent && spec.Role != Consequent {
		return nil, configErr("variable", name, nil, "role must be antecedent or consequent")
	}
	if err := spec.Universe.validate(); err != nil {
		return nil, configErr("variable", name, err, "invalid universe")
	}
	if n := spec.Universe.SampleCount(); n > limits.MaxSamples {
		return nil, configErr("variable", name, nil, "universe has %d samples, limit is %d", n, limits.MaxSamples)
	}
	if len(spec.Sets) == 0 {
		return nil, configErr("variable", name, nil, "at least one fuzzy set is required")
	}
	if len(spec.Sets) > limits.MaxSetsPerVariable {
		return nil, configErr("variable", name, nil, "%d fuzzy sets exceeds limit %d", len(spec.Sets), limits.MaxSetsPerVariable)
	}

	method := spec.Defuzzifier
	if method == "" {
		method = Centroid
	}
	if spec.Role == Consequent && !method.valid() {
		return nil, configErr("variable", name, nil, "unknown defuzzifier %q", method)
	}

	v := &Variable{
		name:        spec.Name,
		role:        spec.Role,
		universe:    spec.Universe,
		sets:        make([]FuzzySet, 0, len(spec.Sets)),
		index:       make(map[Label]int, len(spec.Sets)),
		defuzzifier: method,
	}

	for _, s := range spec.Sets {
		setName := name + "." + string(s.Label)
		if s.Label == "" {
			return nil, configErr("set", setName, nil, "label is required")
		}
		if _, dup := v.index[s.Label]; dup {
			return nil, configErr("set", setName, nil, "duplicate label")
		}
		if s.Function == nil {
			return nil, configErr("set", setName, nil, "membership function is required")
		}
		bp := s.Function.Breakpoints()
		for i := 1; i < len(bp); i++ {
			if bp[i] < bp[i-1] {
				return nil, configErr("set", setName, membership.ErrBreakpointOrder, "breakpoints %v", bp)
			}
		}
		lo, hi := s.Function.Support()
		if !v.universe.Contains(lo) || !v.universe.Contains(hi) {
			return nil, configErr("set", setName, nil, "breakpoints %v fall outside universe [%g, %g]",
				bp, v.universe.Min, v.universe.Max)
		}
		v.index[s.Label] = len(v.sets)
		v.sets = append(v.sets, FuzzySet{Label: s.Label, Function: s.Function})
	}

	if v.role == Consequent {
		v.samples = v.universe.Samples()
	}
	return v, nil
}

func (v *Variable) Name() VariableName { return v.name }

func (v *Variable) Role() Role { return v.role }

func (v *Variable) Universe() Universe { return v.universe }

func (v *Variable) Defuzzifier() DefuzzMethod { return v.defuzzifier }

// Sets returns the fuzzy sets in declaration order.
func (v *Variable) Sets() []FuzzySet {
	out := make([]FuzzySet, len(v.sets))
	copy(out, v.sets)
	return out
}

// Set looks up a fuzzy set by label.
func (v *Variable) Set(label Label) (FuzzySet, bool) {
	i, ok := v.index[label]
	if !ok {
		return FuzzySet{}, false
	}
	return v.sets[i], true
}

// Fuzzify evaluates every fuzzy set at x. Values outside the universe are
// evaluated as-is.
func (v *Variable) Fuzzify(x float64) map[Label]float64 {
	degrees := make([]float64, len(v.sets))
	v.fuzzifyInto(x, degrees)
	return v.labelled(degrees)
}

func (v *Variable) fuzzifyInto(x float64, dst []float64) {
	for i, s := range v.sets {
		dst[i] = s.Function.Degree(x)
	}
}

func (v *Variable) labelled(values []float64) map[Label]float64 {
	out := make(map[Label]float64, len(values))
	for i, s := range v.sets {
		out[s.Label] = values[i]
	}
	return out
}

// Curve is an aggregated output membership sampled over a universe.
type Curve struct {
	Points  []float64 `json:"points"`
	Degrees []float64 `json:"degrees"`
}

// ActivationCurve clips each activated set at its activation and takes the
// pointwise maximum over the universe samples. Unknown labels are ignored.
func (v *Variable) ActivationCurve(activated map[Label]float64) Curve {
	act := make([]float64, len(v.sets))
	for label, a := range activated {
		if i, ok := v.index[label]; ok {
			act[i] = a
		}
	}
	return v.activationCurve(act)
}

func (v *Variable) activationCurve(act []float64) Curve {
	points := v.samples
	if points == nil {
		points = v.universe.Samples()
	}
	degrees := make([]float64, len(points))
	for i, x := range points {
		var mu float64
		for j, s := range v.sets {
			if act[j] <= 0 {
				continue
			}
			mu = math.Max(mu, math.Min(act[j], s.Function.Degree(x)))
		}
		degrees[i] = mu
	}
	return Curve{Points: points, Degrees: degrees}
}

// Defuzzify reduces a curve to a crisp value with the variable's method.
// An all-zero curve, or one whose points and degrees differ in length,
// yields an *UndefinedOutputError.
func (v *Variable) Defuzzify(c Curve) (float64, error) {
	x, ok := v.defuzzifier.apply(c)
	if !ok {
		return 0, &UndefinedOutputError{Variable: v.name}
	}
	return x, nil
}
