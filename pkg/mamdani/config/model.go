// Package config loads fuzzy models and service settings from TOML or YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
	"github.com/chosenoffset/mamdani/pkg/mamdani/membership"
)

// MaxFileSize bounds model and service files read from disk.
const MaxFileSize = 1 << 20

// Format is a model file encoding.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// ErrUnknownFormat is returned for file extensions other than .toml, .yaml and .yml.
var ErrUnknownFormat = errors.New("unknown model file format")

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// SetFile is one fuzzy set in a model file.
type SetFile struct {
	Label  string    `toml:"label" yaml:"label" json:"label" validate:"identifier"`
	Kind   string    `toml:"kind" yaml:"kind" json:"kind" validate:"oneof=triangular trapezoidal"`
	Points []float64 `toml:"points" yaml:"points" json:"points" validate:"min=3,max=4"`
}

// VariableFile is one linguistic variable in a model file.
type VariableFile struct {
	Name        string    `toml:"name" yaml:"name" json:"name" validate:"identifier"`
	Role        string    `toml:"role" yaml:"role" json:"role" validate:"oneof=antecedent consequent input output"`
	Min         float64   `toml:"min" yaml:"min" json:"min"`
	Max         float64   `toml:"max" yaml:"max" json:"max" validate:"gtfield=Min"`
	Step        float64   `toml:"step" yaml:"step" json:"step" validate:"gt=0"`
	Defuzzifier string    `toml:"defuzzifier,omitempty" yaml:"defuzzifier,omitempty" json:"defuzzifier,omitempty" validate:"omitempty,oneof=centroid bisector mom som lom"`
	Sets        []SetFile `toml:"sets" yaml:"sets" json:"sets" validate:"required,min=1,dive"`
}

// RuleFile is one rule in a model file: either When and Then, or a full
// Source statement.
type RuleFile struct {
	Name   string `toml:"name" yaml:"name" json:"name" validate:"required"`
	When   string `toml:"when,omitempty" yaml:"when,omitempty" json:"when,omitempty" validate:"required_without=Source"`
	Then   string `toml:"then,omitempty" yaml:"then,omitempty" json:"then,omitempty" validate:"required_without=Source"`
	Source string `toml:"source,omitempty" yaml:"source,omitempty" json:"source,omitempty"`
}

// Statement returns the rule in the rule language.
func (r RuleFile) Statement() string {
	if r.Source != "" {
		return r.Source
	}
	return "when " + r.When + " { " + r.Then + " }"
}

// Model is the on-disk form of a fuzzy model.
type Model struct {
	Variables []VariableFile `toml:"variables" yaml:"variables" json:"variables" validate:"required,min=1,dive"`
	Rules     []RuleFile     `toml:"rules" yaml:"rules" json:"rules" validate:"required,min=1,dive"`
}

// LoadModel reads, decodes and validates a model file.
func LoadModel(path string) (*Model, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	raw, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseModel(raw, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes and validates a model. Unknown fields are rejected.
func ParseModel(raw []byte, format Format) (*Model, error) {
	var m Model
	switch format {
	case TOML:
		if err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode model: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode model: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := check(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DefaultModel returns the garden irrigation model.
func DefaultModel() *Model {
	m, err := ParseModel(irrigation.ModelTOML, TOML)
	if err != nil {
		panic(fmt.Sprintf("embedded irrigation model is invalid: %v", err))
	}
	return m
}

// Specs converts the model into engine declarations, parsing every rule.
func (m *Model) Specs() ([]mamdani.VariableSpec, []mamdani.RuleSpec, error) {
	vars := make([]mamdani.VariableSpec, 0, len(m.Variables))
	for _, vf := range m.Variables {
		role, err := mamdani.ParseRole(vf.Role)
		if err != nil {
			return nil, nil, fmt.Errorf("variable %q: %w", vf.Name, err)
		}
		spec := mamdani.VariableSpec{
			Name:     mamdani.VariableName(vf.Name),
			Role:     role,
			Universe: mamdani.Universe{Min: vf.Min, Max: vf.Max, Step: vf.Step},
		}
		if role == mamdani.Consequent {
			method, ok := mamdani.ParseDefuzzMethod(vf.Defuzzifier)
			if !ok {
				return nil, nil, fmt.Errorf("variable %q: unknown defuzzifier %q", vf.Name, vf.Defuzzifier)
			}
			spec.Defuzzifier = method
		}
		for _, sf := range vf.Sets {
			fn, err := membership.New(membership.Kind(sf.Kind), sf.Points)
			if err != nil {
				return nil, nil, fmt.Errorf("set %s.%s: %w", vf.Name, sf.Label, err)
			}
			spec.Sets = append(spec.Sets, mamdani.SetSpec{Label: mamdani.Label(sf.Label), Function: fn})
		}
		vars = append(vars, spec)
	}

	rules := make([]mamdani.RuleSpec, 0, len(m.Rules))
	for _, rf := range m.Rules {
		spec, err := mamdani.ParseRule(rf.Name, rf.Statement())
		if err != nil {
			return nil, nil, err
		}
		rules = append(rules, spec)
	}
	return vars, rules, nil
}

// Build converts the model and builds an engine from it.
func (m *Model) Build(opts ...mamdani.Option) (*mamdani.Engine, error) {
	vars, rules, err := m.Specs()
	if err != nil {
		return nil, err
	}
	return mamdani.Build(vars, rules, opts...)
}

// FromEngine describes a built engine in model-file form.
func FromEngine(e *mamdani.Engine) *Model {
	m := &Model{}
	for _, v := range e.Variables() {
		u := v.Universe()
		vf := VariableFile{
			Name: string(v.Name()),
			Role: v.Role().String(),
			Min:  u.Min,
			Max:  u.Max,
			Step: u.Step,
		}
		if v.Role() == mamdani.Consequent {
			vf.Defuzzifier = string(v.Defuzzifier())
		}
		for _, s := range v.Sets() {
			vf.Sets = append(vf.Sets, SetFile{
				Label:  string(s.Label),
				Kind:   string(s.Function.Kind()),
				Points: s.Function.Breakpoints(),
			})
		}
		m.Variables = append(m.Variables, vf)
	}
	for _, r := range e.Rules() {
		m.Rules = append(m.Rules, RuleFile{Name: r.Name(), Source: r.Spec().String()})
	}
	return m
}

// Encode writes the model in the given format.
func (m *Model) Encode(format Format) ([]byte, error) {
	switch format {
	case TOML:
		return toml.Marshal(m)
	case YAML:
		return yaml.Marshal(m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s: file too large (%d bytes, max %d bytes)", path, info.Size(), MaxFileSize)
	}
	return os.ReadFile(path)
}
