// Package irrigation defines the reference garden irrigation model: three
// sensor readings on [0, 100] and a watering duration on [0, 12] minutes.
package irrigation

import (
	_ "embed"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/membership"
)

const (
	SoilMoisture   mamdani.VariableName = "soil_moisture"
	AirTemperature mamdani.VariableName = "air_temperature"
	SolarRadiation mamdani.VariableName = "solar_radiation"
	Duration       mamdani.VariableName = "irrigation_duration"
)

// Soil moisture labels.
const (
	Dry     mamdani.Label = "dry"
	Optimal mamdani.Label = "optimal"
	Wet     mamdani.Label = "wet"
)

// Air temperature labels. Medium is shared with solar radiation.
const (
	Cold   mamdani.Label = "cold"
	Medium mamdani.Label = "medium"
	Hot    mamdani.Label = "hot"
)

// Solar radiation labels.
const (
	Dark  mamdani.Label = "dark"
	Light mamdani.Label = "light"
)

// Duration labels.
const (
	Zero      mamdani.Label = "zero"
	VeryShort mamdani.Label = "very_short"
	Short     mamdani.Label = "short"
	Long      mamdani.Label = "long"
	VeryLong  mamdani.Label = "very_long"
)

// ModelTOML is the same model in model-file form.
//
//go:embed irrigation.toml
var ModelTOML []byte

var sensorUniverse = mamdani.Universe{Min: 0, Max: 100, Step: 1}

// Variables returns the reference variables in declaration order.
func Variables() []mamdani.VariableSpec {
	return []mamdani.VariableSpec{
		{
			Name: SoilMoisture, Role: mamdani.Antecedent, Universe: sensorUniverse,
			Sets: []mamdani.SetSpec{
				{Label: Dry, Function: trap(0, 0, 20, 25)},
				{Label: Optimal, Function: tri(20, 25, 30)},
				{Label: Wet, Function: trap(25, 30, 100, 100)},
			},
		},
		{
			Name: AirTemperature, Role: mamdani.Antecedent, Universe: sensorUniverse,
			Sets: []mamdani.SetSpec{
				{Label: Cold, Function: trap(0, 0, 15, 20)},
				{Label: Medium, Function: tri(15, 20, 25)},
				{Label: Hot, Function: trap(20, 25, 100, 100)},
			},
		},
		{
			Name: SolarRadiation, Role: mamdani.Antecedent, Universe: sensorUniverse,
			Sets: []mamdani.SetSpec{
				{Label: Dark, Function: trap(0, 0, 30, 40)},
				{Label: Medium, Function: trap(30, 40, 60, 70)},
				{Label: Light, Function: trap(60, 70, 100, 100)},
			},
		},
		{
			Name: Duration, Role: mamdani.Consequent,
			Universe:    mamdani.Universe{Min: 0, Max: 12, Step: 1},
			Defuzzifier: mamdani.Centroid,
			Sets: []mamdani.SetSpec{
				{Label: Zero, Function: tri(0, 0, 3)},
				{Label: VeryShort, Function: tri(0, 3, 6)},
				{Label: Short, Function: tri(3, 6, 9)},
				{Label: Long, Function: tri(6, 9, 12)},
				{Label: VeryLong, Function: tri(9, 12, 12)},
			},
		},
	}
}

// Rules returns the fifteen reference rules.
func Rules() []mamdani.RuleSpec {
	soil := func(l mamdani.Label) mamdani.Term { return mamdani.Is(SoilMoisture, l) }
	temp := func(l mamdani.Label) mamdani.Term { return mamdani.Is(AirTemperature, l) }
	sun := func(l mamdani.Label) mamdani.Term { return mamdani.Is(SolarRadiation, l) }
	out := func(l mamdani.Label) mamdani.Term { return mamdani.Is(Duration, l) }

	return []mamdani.RuleSpec{
		{Name: "rule_wet_soil", Antecedent: soil(Wet), Consequent: out(Zero)},

		{Name: "rule_optimal_soil_1", Antecedent: mamdani.AllOf(soil(Optimal), temp(Cold)), Consequent: out(Short)},
		{Name: "rule_optimal_soil_2", Antecedent: mamdani.AllOf(soil(Optimal), temp(Medium), sun(Dark)), Consequent: out(Short)},
		{Name: "rule_optimal_soil_3", Antecedent: mamdani.AllOf(soil(Optimal), temp(Medium), sun(Medium)), Consequent: out(Short)},
		{Name: "rule_optimal_soil_4", Antecedent: mamdani.AllOf(soil(Optimal), temp(Medium), sun(Light)), Consequent: out(VeryShort)},
		{Name: "rule_optimal_soil_5", Antecedent: mamdani.AllOf(soil(Optimal), temp(Hot), sun(Dark)), Consequent: out(Long)},
		{Name: "rule_optimal_soil_6", Antecedent: mamdani.AllOf(soil(Optimal), temp(Hot), sun(Medium)), Consequent: out(VeryShort)},
		{Name: "rule_optimal_soil_7", Antecedent: mamdani.AllOf(soil(Optimal), temp(Hot), sun(Light)), Consequent: out(Zero)},

		{Name: "rule_dry_soil_1", Antecedent: mamdani.AllOf(soil(Dry), temp(Cold)), Consequent: out(VeryLong)},
		{Name: "rule_dry_soil_2", Antecedent: mamdani.AllOf(soil(Dry), temp(Medium), sun(Dark)), Consequent: out(Long)},
		{Name: "rule_dry_soil_3", Antecedent: mamdani.AllOf(soil(Dry), temp(Medium), sun(Medium)), Consequent: out(Long)},
		{Name: "rule_dry_soil_4", Antecedent: mamdani.AllOf(soil(Dry), temp(Medium), sun(Light)), Consequent: out(Short)},
		{Name: "rule_dry_soil_5", Antecedent: mamdani.AllOf(soil(Dry), temp(Hot), sun(Dark)), Consequent: out(VeryLong)},
		{Name: "rule_dry_soil_6", Antecedent: mamdani.AllOf(soil(Dry), temp(Hot), sun(Medium)), Consequent: out(VeryShort)},
		{Name: "rule_dry_soil_7", Antecedent: mamdani.AllOf(soil(Dry), temp(Hot), sun(Light)), Consequent: out(Zero)},
	}
}

// New builds the reference engine.
func New(opts ...mamdani.Option) (*mamdani.Engine, error) {
	return mamdani.Build(Variables(), Rules(), opts...)
}

// Reading is one set of sensor values.
type Reading struct {
	SoilMoisture   float64 `json:"soil_moisture" toml:"soil_moisture" yaml:"soil_moisture"`
	AirTemperature float64 `json:"air_temperature" toml:"air_temperature" yaml:"air_temperature"`
	SolarRadiation float64 `json:"solar_radiation" toml:"solar_radiation" yaml:"solar_radiation"`
}

// Values converts the reading into engine inputs.
func (r Reading) Values() mamdani.Values {
	return mamdani.Values{
		SoilMoisture:   r.SoilMoisture,
		AirTemperature: r.AirTemperature,
		SolarRadiation: r.SolarRadiation,
	}
}

// Minutes runs the engine on a reading and returns the watering duration.
func Minutes(e *mamdani.Engine, r Reading) (float64, error) {
	out, err := e.Compute(r.Values())
	if err != nil {
		return 0, err
	}
	return out[Duration], nil
}

func tri(a, b, c float64) membership.Function {
	f, err := membership.NewTriangle(a, b, c)
	if err != nil {
		panic(err)
	}
	return f
}

func trap(a, b, c, d float64) membership.Function {
	f, err := membership.NewTrapezoid(a, b, c, d)
	if err != nil {
		panic(err)
	}
	return f
}
