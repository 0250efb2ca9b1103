package types

import "fmt"

// SchemaNotFoundError means the schema service does not know an object
// the run needs, even after namespace fallback
type SchemaNotFoundError struct {
	Object string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema not found for object %s", e.Object)
}

// MissingIDColumnError means a dataset has no header mapping to a
// field of type id, so rows cannot be tracked through the ID map
type MissingIDColumnError struct {
	Object string
}

func (e *MissingIDColumnError) Error() string {
	return fmt.Sprintf("dataset %s has no id column", e.Object)
}

// UnknownMappingObjectError means a mapping policy refers to an object
// with no input dataset
type UnknownMappingObjectError struct {
	Object string
}

func (e *UnknownMappingObjectError) Error() string {
	return fmt.Sprintf("mapping policy refers to unknown object %s", e.Object)
}

// CSVParseError wraps a parse failure with its source label
type CSVParseError struct {
	Source string
	Err    error
}

func (e *CSVParseError) Error() string {
	return fmt.Sprintf("parsing CSV %s: %v", e.Source, e.Err)
}

func (e *CSVParseError) Unwrap() error { return e.Err }

// TransportError wraps a remote-call failure. Any transport error is
// terminal for the whole run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
