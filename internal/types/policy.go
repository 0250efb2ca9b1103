package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MappingPolicy describes how pre-existing target records for one
// object are matched to source rows before any upload happens
type MappingPolicy struct {
	Object         string          `yaml:"object" json:"object"`
	KeyField       string          `yaml:"keyField,omitempty" json:"keyField,omitempty"`
	KeyFields      []string        `yaml:"keyFields,omitempty" json:"keyFields,omitempty"`
	DefaultMapping *DefaultMapping `yaml:"defaultMapping,omitempty" json:"defaultMapping,omitempty"`
}

// KeyColumns normalizes keyField/keyFields into a single list.
// {keyField: K} is shorthand for {keyFields: [K]}.
func (p *MappingPolicy) KeyColumns() []string {
	if len(p.KeyFields) > 0 {
		return p.KeyFields
	}
	if p.KeyField != "" {
		return []string{p.KeyField}
	}
	return nil
}

// Validate checks the policy names an object and has something to do
func (p *MappingPolicy) Validate() error {
	if p.Object == "" {
		return fmt.Errorf("mapping policy: object is required")
	}
	if len(p.KeyColumns()) == 0 && p.DefaultMapping == nil {
		return fmt.Errorf("mapping policy for %s: need keyField(s) or defaultMapping", p.Object)
	}
	return nil
}

// DefaultMapping picks the fallback target record for source rows the
// key fields did not match. Either a literal target id, or a query
// spec selecting a single existing record.
type DefaultMapping struct {
	ID        string `yaml:"id,omitempty" json:"id,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	OrderBy   string `yaml:"orderby,omitempty" json:"orderby,omitempty"`
	Offset    int    `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// UnmarshalYAML accepts either a bare scalar (the literal target id)
// or a mapping with condition/orderby/offset
func (d *DefaultMapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.ID = node.Value
		return nil
	}
	type plain DefaultMapping
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = DefaultMapping(p)
	return nil
}

// Literal reports whether the mapping is a literal target id
func (d *DefaultMapping) Literal() bool {
	return d != nil && d.ID != ""
}
