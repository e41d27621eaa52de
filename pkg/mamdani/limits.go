package mamdani

// Limits bounds the size of a model accepted by Build. Inference cost is
// fixed by the model, so bounding it here bounds every Compute call.
type Limits struct {
	MaxVariables       int // Maximum number of linguistic variables
	MaxSetsPerVariable int // Maximum fuzzy sets per variable
	MaxRules           int // Maximum number of rules
	MaxRuleComplexity  int // Maximum expression nodes per rule antecedent
	MaxSamples         int // Maximum universe samples per variable
}

// DefaultLimits returns reasonable default limits
func DefaultLimits() Limits {
	return Limits{
		MaxVariables:       64,
		MaxSetsPerVariable: 32,
		MaxRules:           1000,
		MaxRuleComplexity:  256,
		MaxSamples:         100000,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxVariables <= 0 {
		l.MaxVariables = d.MaxVariables
	}
	if l.MaxSetsPerVariable <= 0 {
		l.MaxSetsPerVariable = d.MaxSetsPerVariable
	}
	if l.MaxRules <= 0 {
		l.MaxRules = d.MaxRules
	}
	if l.MaxRuleComplexity <= 0 {
		l.MaxRuleComplexity = d.MaxRuleComplexity
	}
	if l.MaxSamples <= 0 {
		l.MaxSamples = d.MaxSamples
	}
	return l
}
