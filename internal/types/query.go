package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// QueryTarget distinguishes dump seed queries from related-object
// queries
type QueryTarget string

const (
	// TargetQuery marks a seed: fetched directly with its condition
	TargetQuery QueryTarget = "query"
	// TargetRelated marks an object pulled in during closure, either
	// because fetched records point to it or it points to them
	TargetRelated QueryTarget = "related"
)

// IsValid checks the target value
func (t QueryTarget) IsValid() bool {
	return t == TargetQuery || t == TargetRelated
}

// FieldList accepts a YAML sequence or a comma-separated scalar
type FieldList []string

// UnmarshalYAML decodes either form into a list of trimmed names
func (f *FieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = splitFieldList(node.Value)
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*f = list
	return nil
}

func splitFieldList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DumpQuery describes one object to dump and how to fetch it
type DumpQuery struct {
	Object       string      `yaml:"object" json:"object"`
	Target       QueryTarget `yaml:"target,omitempty" json:"target,omitempty"`
	Fields       FieldList   `yaml:"fields,omitempty" json:"fields,omitempty"`
	IgnoreFields FieldList   `yaml:"ignoreFields,omitempty" json:"ignoreFields,omitempty"`
	Condition    string      `yaml:"condition,omitempty" json:"condition,omitempty"`
	OrderBy      string      `yaml:"orderby,omitempty" json:"orderby,omitempty"`
	Limit        int         `yaml:"limit,omitempty" json:"limit,omitempty"`
	Offset       int         `yaml:"offset,omitempty" json:"offset,omitempty"`
	Scope        string      `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// Validate checks the query names an object and a known target
func (q *DumpQuery) Validate() error {
	if q.Object == "" {
		return fmt.Errorf("dump query: object is required")
	}
	if q.Target != "" && !q.Target.IsValid() {
		return fmt.Errorf("dump query for %s: invalid target %q", q.Object, q.Target)
	}
	return nil
}

// Seed reports whether this query is fetched directly in the seed
// phase. An unset target defaults to query.
func (q *DumpQuery) Seed() bool {
	return q.Target == "" || q.Target == TargetQuery
}
