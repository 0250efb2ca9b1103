// Package types defines the data model shared by the migration engine:
// object schemas, datasets, the ID-translation map, mapping policies,
// dump queries, and upload outcomes.
package types

import "fmt"

// FieldType categorizes a schema field
type FieldType string

const (
	FieldTypeID        FieldType = "id"
	FieldTypeReference FieldType = "reference"
	FieldTypeInt       FieldType = "int"
	FieldTypeDouble    FieldType = "double"
	FieldTypeCurrency  FieldType = "currency"
	FieldTypePercent   FieldType = "percent"
	FieldTypeDate      FieldType = "date"
	FieldTypeDatetime  FieldType = "datetime"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeString    FieldType = "string"
)

// Numeric reports whether values of this type parse as numbers
func (t FieldType) Numeric() bool {
	switch t {
	case FieldTypeInt, FieldTypeDouble, FieldTypeCurrency, FieldTypePercent:
		return true
	}
	return false
}

// FieldDescription describes a single field of an object schema
type FieldDescription struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Createable  bool      `json:"createable"`
	ReferenceTo []string  `json:"referenceTo,omitempty"`
}

// ObjectDescription describes an object schema as returned by the
// schema service
type ObjectDescription struct {
	Name   string             `json:"name"`
	Fields []FieldDescription `json:"fields"`
}

// IDField returns the field of type id, or nil if the schema has none
func (o *ObjectDescription) IDField() *FieldDescription {
	for i := range o.Fields {
		if o.Fields[i].Type == FieldTypeID {
			return &o.Fields[i]
		}
	}
	return nil
}

// FieldNames returns the field names in schema order
func (o *ObjectDescription) FieldNames() []string {
	names := make([]string, 0, len(o.Fields))
	for i := range o.Fields {
		names = append(names, o.Fields[i].Name)
	}
	return names
}

// LoadDataset is the parsed CSV input for one object: a header row and
// data rows, every row as wide as the header
type LoadDataset struct {
	Object  string
	Headers []string
	Rows    [][]string
}

// Validate checks the rectangular-rows invariant
func (d *LoadDataset) Validate() error {
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("dataset %s: row %d has %d cells, header has %d", d.Object, i+1, len(row), len(d.Headers))
		}
	}
	return nil
}

// Row is a single record as returned by a data query. Values arrive
// JSON-typed (string, float64, bool or nil).
type Row = map[string]any

// RecordIDPair couples an outgoing record with the source-instance id
// of the row it was converted from
type RecordIDPair struct {
	OrigID string
	Record Record
}

// UploadedRecord is one successfully created record
type UploadedRecord struct {
	Object string `json:"object"`
	OrigID string `json:"origId"`
	NewID  string `json:"newId"`
}

// FailedRecord is one record the target instance rejected
type FailedRecord struct {
	Object string   `json:"object"`
	OrigID string   `json:"origId"`
	Errors []string `json:"errors"`
}

// BlockedRecord is a row left unloaded at the fixpoint because one of
// its references never resolved
type BlockedRecord struct {
	Object        string `json:"object"`
	OrigID        string `json:"origId"`
	BlockingField string `json:"blockingField"`
	BlockingID    string `json:"blockingId"`
}

// UploadStatus is the union of outcomes over a load run. A row appears
// at most once across successes, failures and blocked.
type UploadStatus struct {
	TotalCount int              `json:"totalCount"`
	Successes  []UploadedRecord `json:"successes"`
	Failures   []FailedRecord   `json:"failures"`
	Blocked    []BlockedRecord  `json:"blocked"`
	IDMap      *IDMap           `json:"-"`
}

// LoadProgress is reported after each productive upload pass
type LoadProgress struct {
	RunID        string `json:"runId,omitempty"`
	TotalCount   int    `json:"totalCount"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
}

// DumpProgress is reported after each dump phase
type DumpProgress struct {
	RunID                 string         `json:"runId,omitempty"`
	FetchedCount          int            `json:"fetchedCount"`
	FetchedCountPerObject map[string]int `json:"fetchedCountPerObject"`
}

// TargetIDSet selects the source-instance ids in scope for an upload.
// An empty set means everything is in scope. The set is owned by the
// upload driver and grows as targeting propagates along reference
// edges.
type TargetIDSet struct {
	ids map[string]struct{}
}

// NewTargetIDSet builds a set from the given ids
func NewTargetIDSet(ids ...string) *TargetIDSet {
	s := &TargetIDSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts an id into the set
func (s *TargetIDSet) Add(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Contains reports membership
func (s *TargetIDSet) Contains(id string) bool {
	if s == nil || s.ids == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Empty reports whether no ids have been selected
func (s *TargetIDSet) Empty() bool {
	return s == nil || len(s.ids) == 0
}

// Len returns the number of selected ids
func (s *TargetIDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}
