package models

import (
	"fmt"
	"os"

	"github.com/san-kum/aerotrim/internal/fdm"
	"gopkg.in/yaml.v3"
)

const DefaultDt = 1.0 / 120

// Product is a bilinear term gain*a*b.
type Product struct {
	A    string  `yaml:"a"`
	B    string  `yaml:"b"`
	Gain float64 `yaml:"gain"`
}

// Relation computes one property as
//
//	bias + sum(gain*term) + sum(gain*a*b) + sqrt(sum(norm^2))
type Relation struct {
	Name     string             `yaml:"name"`
	Bias     float64            `yaml:"bias,omitempty"`
	Terms    map[string]float64 `yaml:"terms,omitempty"`
	Products []Product          `yaml:"products,omitempty"`
	Norm     []string           `yaml:"norm,omitempty"`
	Triggers []string           `yaml:"triggers,omitempty"`
}

// StateSpec is an integrated property. IC names the property copied into the
// state on every settle.
type StateSpec struct {
	Name       string `yaml:"name"`
	Derivative string `yaml:"derivative"`
	IC         string `yaml:"ic,omitempty"`
}

// AffineSpec describes an [Affine] engine.
type AffineSpec struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Dt          float64 `yaml:"dt"`
	Integrator  string  `yaml:"integrator,omitempty"`
	Engines     int     `yaml:"engines,omitempty"`
	// Hold freezes every state while the named property is non-zero.
	Hold       string              `yaml:"hold,omitempty"`
	Properties *fdm.OperatingPoint `yaml:"properties"`
	Aliases    map[string]string   `yaml:"aliases,omitempty"`
	// Initial relations resolve dependent ic/* values during a settle.
	Initial []Relation  `yaml:"initial,omitempty"`
	States  []StateSpec `yaml:"states"`
	Outputs []Relation  `yaml:"outputs"`
}

func ParseAffine(data []byte) (AffineSpec, error) {
	var spec AffineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return AffineSpec{}, fmt.Errorf("parse model: %w", err)
	}
	if spec.Name == "" {
		return AffineSpec{}, fmt.Errorf("parse model: missing name")
	}
	return spec, nil
}

func ReadAffine(path string) (AffineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AffineSpec{}, err
	}
	spec, err := ParseAffine(data)
	if err != nil {
		return AffineSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// LoadAffine reads an AffineSpec from a YAML file and builds the engine.
func LoadAffine(path string) (*Affine, error) {
	spec, err := ReadAffine(path)
	if err != nil {
		return nil, err
	}
	return NewAffine(spec)
}
