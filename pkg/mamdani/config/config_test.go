package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
)

func TestDefaultModelMatchesIrrigationPackage(t *testing.T) {
	vars, rules, err := DefaultModel().Specs()
	require.NoError(t, err)

	assert.Equal(t, irrigation.Variables(), vars)
	assert.Equal(t, irrigation.Rules(), rules)
}

func TestLoadYAMLModel(t *testing.T) {
	m, err := LoadModel(filepath.Join("testdata", "greenhouse.yaml"))
	require.NoError(t, err)
	require.Len(t, m.Variables, 3)
	require.Len(t, m.Rules, 2)

	engine, err := m.Build()
	require.NoError(t, err)

	out, err := engine.Compute(mamdani.Values{"humidity": 20, "indoor_temperature": 0})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, out["vent_opening"], 12.5)

	out, err = engine.Compute(mamdani.Values{"humidity": 90, "indoor_temperature": 0})
	require.NoError(t, err)
	assert.Greater(t, out["vent_opening"], 50.0)
}

func TestModelRoundTripThroughEngine(t *testing.T) {
	engine, err := irrigation.New()
	require.NoError(t, err)

	for _, format := range []Format{TOML, YAML} {
		t.Run(string(format), func(t *testing.T) {
			raw, err := FromEngine(engine).Encode(format)
			require.NoError(t, err)

			m, err := ParseModel(raw, format)
			require.NoError(t, err)
			rebuilt, err := m.Build()
			require.NoError(t, err)

			for _, r := range []irrigation.Reading{
				{SoilMoisture: 5, AirTemperature: 15, SolarRadiation: 30},
				{SoilMoisture: 90, AirTemperature: 40, SolarRadiation: 80},
				{SoilMoisture: 22.5, AirTemperature: 20, SolarRadiation: 65},
				{SoilMoisture: 27, AirTemperature: 18, SolarRadiation: 45},
			} {
				want, err := irrigation.Minutes(engine, r)
				require.NoError(t, err)
				got, err := irrigation.Minutes(rebuilt, r)
				require.NoError(t, err)
				assert.InDelta(t, want, got, 1e-9)
			}
		})
	}
}

func TestParseModelRejects(t *testing.T) {
	base := string(irrigation.ModelTOML)

	testCases := []struct {
		name     string
		raw      string
		format   Format
		contains string
	}{
		{
			name:     "UnknownTOMLField",
			raw:      base + "\n[extra]\nkey = 1\n",
			format:   TOML,
			contains: "failed to decode model",
		},
		{
			name:     "UnknownYAMLField",
			raw:      "variables: []\nrules: []\ncolour: blue\n",
			format:   YAML,
			contains: "field colour not found",
		},
		{
			name:     "TriangleWithFourPoints",
			raw:      strings.Replace(base, "points = [20.0, 25.0, 30.0]", "points = [20.0, 25.0, 30.0, 35.0]", 1),
			format:   TOML,
			contains: "breakpoints",
		},
		{
			name:     "UnknownKind",
			raw:      strings.Replace(base, `kind = "triangular"`, `kind = "gaussian"`, 1),
			format:   TOML,
			contains: "oneof",
		},
		{
			name:     "MaxBelowMin",
			raw:      strings.Replace(base, "max = 12.0", "max = -1.0", 1),
			format:   TOML,
			contains: "gtfield",
		},
		{
			name:     "RuleWithoutThen",
			raw:      strings.Replace(base, `then = "irrigation_duration.zero"`, "", 1),
			format:   TOML,
			contains: "required_without",
		},
		{
			name:     "BadIdentifier",
			raw:      strings.Replace(base, `name = "soil_moisture"`, `name = "soil moisture"`, 1),
			format:   TOML,
			contains: "identifier",
		},
		{
			name:     "Empty",
			raw:      "",
			format:   YAML,
			contains: "EOF",
		},
		{
			name:     "UnknownFormat",
			raw:      base,
			format:   "json",
			contains: "unknown model file format",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseModel([]byte(tc.raw), tc.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestSpecsSurfaceRuleAndBuildErrors(t *testing.T) {
	m := DefaultModel()
	m.Rules[0].When = "soil_moisture."
	_, err := m.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "rule_wet_soil"`)

	m = DefaultModel()
	m.Rules[0].When = "soil_moisture.soggy"
	_, err = m.Build()
	assert.ErrorIs(t, err, mamdani.ErrConfiguration)

	m = DefaultModel()
	m.Variables[0].Sets[0].Points = []float64{0, 30, 20, 25}
	_, _, err = m.Specs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set soil_moisture.dry")
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("model.TOML")
	require.NoError(t, err)
	assert.Equal(t, TOML, f)

	f, err = FormatOf("dir/model.yml")
	require.NoError(t, err)
	assert.Equal(t, YAML, f)

	_, err = FormatOf("model.json")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestLoadModelFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadModel(filepath.Join(dir, "missing.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	big := filepath.Join(dir, "big.toml")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxFileSize+1), 0o600))
	_, err = LoadModel(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestLoadService(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadService("")
		require.NoError(t, err)
		assert.Equal(t, DefaultService(), cfg)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("FromFile", func(t *testing.T) {
		cfg, err := LoadService(filepath.Join("testdata", "service.toml"))
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:8088", cfg.ListenAddr)
		assert.Equal(t, 5.0, cfg.RateLimit)
		assert.Equal(t, 50, cfg.EventBuffer)
		assert.Equal(t, []string{"example.com"}, cfg.AllowedOrigins)
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "svc.toml")
		require.NoError(t, os.WriteFile(path, []byte(`max_clients = 7`), 0o600))
		cfg, err := LoadService(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.MaxClients)
		assert.Equal(t, DefaultService().ListenAddr, cfg.ListenAddr)
	})

	t.Run("UnknownField", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "svc.toml")
		require.NoError(t, os.WriteFile(path, []byte(`listen = ":80"`), 0o600))
		_, err := LoadService(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode service configuration")
	})

	t.Run("Invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "svc.toml")
		require.NoError(t, os.WriteFile(path, []byte("listen_address = \"nowhere\"\nevent_buffer = 0\n"), 0o600))
		_, err := LoadService(path)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Problems, 2)
	})
}

func TestIdentifierValidator(t *testing.T) {
	testCases := []struct {
		value string
		valid bool
	}{
		{"soil_moisture", true},
		{"_hidden", true},
		{"soil moisture", false},
		{"9lives", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { err = validate.Var(tc.value, "identifier") })
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
