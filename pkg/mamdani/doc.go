// Package mamdani is an embeddable Mamdani fuzzy inference engine.
//
// # Overview
//
// A model is a set of linguistic variables and rules. Antecedent variables
// fuzzify crisp inputs into degrees of membership in their fuzzy sets; rules
// combine those degrees with fuzzy AND (min), OR (max) and NOT (1-x); each
// consequent set is activated by the strongest rule targeting it; the
// activated sets are clipped, merged by max over the consequent's universe
// and defuzzified into a crisp output.
//
// # Quick Start
//
//	dry, _ := membership.NewTrapezoid(0, 0, 20, 25)
//	wet, _ := membership.NewTrapezoid(25, 30, 100, 100)
//	short, _ := membership.NewTriangle(0, 0, 6)
//	long, _ := membership.NewTriangle(6, 12, 12)
//
//	engine, err := mamdani.Build(
//		[]mamdani.VariableSpec{
//			{Name: "soil", Role: mamdani.Antecedent, Universe: mamdani.Universe{Min: 0, Max: 100, Step: 1},
//				Sets: []mamdani.SetSpec{{Label: "dry", Function: dry}, {Label: "wet", Function: wet}}},
//			{Name: "minutes", Role: mamdani.Consequent, Universe: mamdani.Universe{Min: 0, Max: 12, Step: 1},
//				Sets: []mamdani.SetSpec{{Label: "short", Function: short}, {Label: "long", Function: long}}},
//		},
//		[]mamdani.RuleSpec{
//			{Name: "dry", Antecedent: mamdani.Is("soil", "dry"), Consequent: mamdani.Is("minutes", "long")},
//			{Name: "wet", Antecedent: mamdani.Is("soil", "wet"), Consequent: mamdani.Is("minutes", "short")},
//		},
//	)
//	out, err := engine.Compute(mamdani.Values{"soil": 10})
//
// # Rule Language
//
// Rules can also be written as text and converted with ParseRule:
//
//	when soil_moisture.optimal && (air_temperature.hot || !solar_radiation.dark) { irrigation_duration.long }
//	if soil_moisture is wet then irrigation_duration is zero
//
// # Errors
//
// Build reports every structural problem as a *ConfigurationError matching
// ErrConfiguration. Compute fails with *MissingInputError when a referenced
// antecedent has no value (NaN counts as missing) and *UndefinedOutputError
// when no rule activates a consequent. A failed Compute returns no outputs.
//
// # Concurrency
//
// An Engine never changes after Build. Compute, Infer and ComputeBatch may
// run concurrently without locking.
package mamdani
