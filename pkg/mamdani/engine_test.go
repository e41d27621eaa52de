package mamdani_test

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
)

const tolerance = 1e-9

func reading(soil, temp, sun float64) mamdani.Values {
	return mamdani.Values{
		irrigation.SoilMoisture:   soil,
		irrigation.AirTemperature: temp,
		irrigation.SolarRadiation: sun,
	}
}

func newIrrigationEngine(t testing.TB) *mamdani.Engine {
	t.Helper()
	engine, err := irrigation.New()
	require.NoError(t, err)
	return engine
}

func TestIrrigationScenarios(t *testing.T) {
	t.Run("DrySoilColdAir", testScenarioDryCold)
	t.Run("WetSoilIgnoresOtherInputs", testScenarioWetSoil)
	t.Run("MultiRuleAggregation", testScenarioAggregation)
	t.Run("DrySoilColdAirBisector", testScenarioBisector)
}

func testScenarioDryCold(t *testing.T) {
	engine := newIrrigationEngine(t)

	ic, err := engine.Infer(reading(5, 15, 30))
	require.NoError(t, err)

	assert.Equal(t, 1.0, ic.Memberships[irrigation.SoilMoisture][irrigation.Dry])
	assert.Equal(t, 1.0, ic.Memberships[irrigation.AirTemperature][irrigation.Cold])
	assert.Equal(t, 1.0, ic.Memberships[irrigation.SolarRadiation][irrigation.Dark])

	for _, f := range ic.Firings {
		if f.Rule == "rule_dry_soil_1" {
			assert.Equal(t, 1.0, f.Strength)
			continue
		}
		assert.Zero(t, f.Strength, f.Rule)
	}

	// Sampled centroid of tri(9,12,12) on integer points: (10/3 + 22/3 + 12) / 2.
	assert.InDelta(t, 34.0/3.0, ic.Outputs[irrigation.Duration], tolerance)
	assert.NotEqual(t, 11.0, ic.Outputs[irrigation.Duration])
}

func testScenarioBisector(t *testing.T) {
	vars := irrigation.Variables()
	for i := range vars {
		if vars[i].Name == irrigation.Duration {
			vars[i].Defuzzifier = mamdani.Bisector
		}
	}
	engine, err := mamdani.Build(vars, irrigation.Rules())
	require.NoError(t, err)

	// Only very_long fires, so the curve is 0, 1/3, 2/3, 1 on 9..12 with area
	// 3/2. The left half gives (t-9)^2/6 = 3/4.
	out, err := engine.Compute(reading(5, 15, 30))
	require.NoError(t, err)
	assert.InDelta(t, 9+math.Sqrt(4.5), out[irrigation.Duration], tolerance)
}

func testScenarioWetSoil(t *testing.T) {
	engine := newIrrigationEngine(t)

	for _, temp := range []float64{0, 17.5, 20, 60, 100} {
		for _, sun := range []float64{0, 35, 65, 100} {
			out, err := engine.Compute(reading(90, temp, sun))
			require.NoError(t, err)
			assert.InDelta(t, 2.0/3.0, out[irrigation.Duration], tolerance, "temp=%v sun=%v", temp, sun)
		}
	}
}

func testScenarioAggregation(t *testing.T) {
	engine := newIrrigationEngine(t)

	ic, err := engine.Infer(reading(22.5, 20, 65))
	require.NoError(t, err)

	strengths := map[string]float64{}
	for _, f := range ic.Firings {
		strengths[f.Rule] = f.Strength
	}
	for _, name := range []string{"rule_optimal_soil_3", "rule_optimal_soil_4", "rule_dry_soil_3", "rule_dry_soil_4"} {
		assert.InDelta(t, 0.5, strengths[name], tolerance, name)
	}

	act := ic.Activations[irrigation.Duration]
	assert.InDelta(t, 0.5, act[irrigation.Short], tolerance)
	assert.InDelta(t, 0.5, act[irrigation.VeryShort], tolerance)
	assert.InDelta(t, 0.5, act[irrigation.Long], tolerance)
	assert.Zero(t, act[irrigation.Zero])
	assert.Zero(t, act[irrigation.VeryLong])

	curve := ic.Curves[irrigation.Duration]
	require.Len(t, curve.Points, 13)
	for i := range curve.Degrees {
		assert.InDelta(t, curve.Degrees[i], curve.Degrees[len(curve.Degrees)-1-i], tolerance)
	}
	assert.InDelta(t, 6.0, ic.Outputs[irrigation.Duration], tolerance)
}

func TestComputeIsIdempotent(t *testing.T) {
	engine := newIrrigationEngine(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		in := reading(rng.Float64()*100, rng.Float64()*100, rng.Float64()*100)
		first, err := engine.Compute(in)
		require.NoError(t, err)
		second, err := engine.Compute(in)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestOrderIndependence(t *testing.T) {
	reference := newIrrigationEngine(t)

	rng := rand.New(rand.NewSource(99))
	rules := irrigation.Rules()
	for i := range rules {
		if and, ok := rules[i].Antecedent.(mamdani.And); ok {
			children := append([]mamdani.Expr(nil), and.Children...)
			rng.Shuffle(len(children), func(a, b int) { children[a], children[b] = children[b], children[a] })
			rules[i].Antecedent = mamdani.AllOf(children...)
		}
	}
	rng.Shuffle(len(rules), func(a, b int) { rules[a], rules[b] = rules[b], rules[a] })

	vars := irrigation.Variables()
	vars[0], vars[2] = vars[2], vars[0]

	permuted, err := mamdani.Build(vars, rules)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		in := reading(rng.Float64()*100, rng.Float64()*100, rng.Float64()*100)
		want, err := reference.Compute(in)
		require.NoError(t, err)
		got, err := permuted.Compute(in)
		require.NoError(t, err)
		assert.InDelta(t, want[irrigation.Duration], got[irrigation.Duration], tolerance)
	}
}

func TestMoistureSanity(t *testing.T) {
	engine := newIrrigationEngine(t)

	for _, temp := range []float64{10, 17.5, 20, 22.5, 50} {
		for _, sun := range []float64{20, 35, 50, 65, 90} {
			wet, err := engine.Compute(reading(100, temp, sun))
			require.NoError(t, err)

			for m := 0.0; m <= 100; m++ {
				out, err := engine.Compute(reading(m, temp, sun))
				require.NoError(t, err, "moisture=%v", m)
				d := out[irrigation.Duration]
				assert.GreaterOrEqual(t, d+tolerance, wet[irrigation.Duration], "moisture=%v temp=%v sun=%v", m, temp, sun)
				if m >= 30 {
					assert.InDelta(t, wet[irrigation.Duration], d, tolerance)
				}
			}

			dry, err := engine.Compute(reading(0, temp, sun))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, dry[irrigation.Duration]+tolerance, wet[irrigation.Duration])
		}
	}
}

func TestComputeErrors(t *testing.T) {
	engine := newIrrigationEngine(t)

	t.Run("MissingInput", func(t *testing.T) {
		out, err := engine.Compute(mamdani.Values{
			irrigation.SoilMoisture:   10,
			irrigation.AirTemperature: 10,
		})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, mamdani.ErrMissingInput)

		var missing *mamdani.MissingInputError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, irrigation.SolarRadiation, missing.Variable)
	})

	t.Run("NaNCountsAsMissing", func(t *testing.T) {
		_, err := engine.Compute(reading(math.NaN(), 10, 10))
		assert.ErrorIs(t, err, mamdani.ErrMissingInput)
	})

	t.Run("UnknownInputsIgnored", func(t *testing.T) {
		in := reading(5, 15, 30)
		in["wind_speed"] = 40
		in[irrigation.Duration] = 99
		out, err := engine.Compute(in)
		require.NoError(t, err)
		assert.InDelta(t, 34.0/3.0, out[irrigation.Duration], tolerance)
	})

	t.Run("OutOfUniverseEvaluatedAsIs", func(t *testing.T) {
		// Shoulders stop at their first breakpoint, so no soil set covers -20.
		ic, err := engine.Infer(reading(-20, 15, 30))
		assert.ErrorIs(t, err, mamdani.ErrUndefinedOutput)
		assert.Zero(t, ic.Memberships[irrigation.SoilMoisture][irrigation.Dry])
		assert.Equal(t, -20.0, ic.Inputs[irrigation.SoilMoisture])

		out, err := engine.Compute(reading(150, 15, 30))
		require.Error(t, err)
		assert.Nil(t, out)
	})
}

func TestUndefinedOutput(t *testing.T) {
	vars := []mamdani.VariableSpec{
		{
			Name: "x", Role: mamdani.Antecedent, Universe: mamdani.Universe{Min: 0, Max: 10, Step: 1},
			Sets: []mamdani.SetSpec{{Label: "low", Function: tri(t, 0, 0, 5)}, {Label: "high", Function: tri(t, 5, 10, 10)}},
		},
		{
			Name: "y", Role: mamdani.Consequent, Universe: mamdani.Universe{Min: 0, Max: 10, Step: 1},
			Sets: []mamdani.SetSpec{{Label: "small", Function: tri(t, 0, 0, 10)}},
		},
	}
	rules := []mamdani.RuleSpec{{Name: "low", Antecedent: mamdani.Is("x", "low"), Consequent: mamdani.Is("y", "small")}}

	engine, err := mamdani.Build(vars, rules)
	require.NoError(t, err)

	out, err := engine.Compute(mamdani.Values{"x": 8})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, mamdani.ErrUndefinedOutput)

	var undefined *mamdani.UndefinedOutputError
	require.True(t, errors.As(err, &undefined))
	assert.Equal(t, mamdani.VariableName("y"), undefined.Variable)

	ic, err := engine.Infer(mamdani.Values{"x": 8})
	require.Error(t, err)
	require.NotNil(t, ic)
	assert.Empty(t, ic.Outputs)
	assert.Zero(t, ic.Firings[0].Strength)
}

func TestNegation(t *testing.T) {
	vars := []mamdani.VariableSpec{
		{
			Name: "x", Role: mamdani.Antecedent, Universe: mamdani.Universe{Min: 0, Max: 10, Step: 1},
			Sets: []mamdani.SetSpec{{Label: "low", Function: tri(t, 0, 0, 10)}},
		},
		{
			Name: "y", Role: mamdani.Consequent, Universe: mamdani.Universe{Min: 0, Max: 10, Step: 1},
			Sets: []mamdani.SetSpec{{Label: "a", Function: tri(t, 0, 0, 10)}, {Label: "b", Function: tri(t, 0, 10, 10)}},
		},
	}
	rules := []mamdani.RuleSpec{
		{Name: "low", Antecedent: mamdani.Is("x", "low"), Consequent: mamdani.Is("y", "a")},
		{Name: "not_low", Antecedent: mamdani.Negate(mamdani.Is("x", "low")), Consequent: mamdani.Is("y", "b")},
	}
	engine, err := mamdani.Build(vars, rules)
	require.NoError(t, err)

	ic, err := engine.Infer(mamdani.Values{"x": 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, ic.Firings[0].Strength, tolerance)
	assert.InDelta(t, 0.2, ic.Firings[1].Strength, tolerance)
}

func TestConcurrentCompute(t *testing.T) {
	engine := newIrrigationEngine(t)

	inputs := make([]mamdani.Values, 64)
	want := make([]float64, len(inputs))
	rng := rand.New(rand.NewSource(3))
	for i := range inputs {
		inputs[i] = reading(rng.Float64()*100, rng.Float64()*100, rng.Float64()*100)
		out, err := engine.Compute(inputs[i])
		require.NoError(t, err)
		want[i] = out[irrigation.Duration]
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 20; round++ {
				for i, in := range inputs {
					out, err := engine.Compute(in)
					if err != nil {
						errs <- err
						return
					}
					if out[irrigation.Duration] != want[i] {
						errs <- errors.New("concurrent result differs")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEngineAccessors(t *testing.T) {
	engine := newIrrigationEngine(t)

	assert.Len(t, engine.Variables(), 4)
	assert.Len(t, engine.Antecedents(), 3)
	assert.Len(t, engine.Consequents(), 1)
	assert.Len(t, engine.Rules(), 15)
	assert.ElementsMatch(t, []mamdani.VariableName{
		irrigation.SoilMoisture, irrigation.AirTemperature, irrigation.SolarRadiation,
	}, engine.RequiredInputs())

	v, ok := engine.Variable(irrigation.Duration)
	require.True(t, ok)
	assert.Equal(t, mamdani.Consequent, v.Role())
	assert.Equal(t, mamdani.Centroid, v.Defuzzifier())

	rules := engine.Rules()
	rules[0] = nil
	assert.NotNil(t, engine.Rules()[0])

	r, err := engine.CompileRule(mamdani.RuleSpec{
		Antecedent: mamdani.AnyOf(mamdani.Is(irrigation.SoilMoisture, irrigation.Wet), mamdani.Is(irrigation.SolarRadiation, irrigation.Dark)),
		Consequent: mamdani.Is(irrigation.Duration, irrigation.Zero),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Complexity())
	assert.Len(t, engine.Rules(), 15)
}
