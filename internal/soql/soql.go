// Package soql assembles SELECT statements for the record service's
// query language. Only the clauses the migration engine emits are
// supported.
package soql

import (
	"fmt"
	"strings"
)

// Query is one SELECT statement
type Query struct {
	Fields  []string
	Object  string
	Scope   string
	Where   string
	OrderBy string
	Limit   int
	Offset  int
}

// String renders the statement. Zero-valued clauses are omitted.
func (q Query) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Fields) == 0 {
		sb.WriteString("Id")
	} else {
		sb.WriteString(strings.Join(q.Fields, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(q.Object)
	if q.Scope != "" {
		sb.WriteString(" USING SCOPE ")
		sb.WriteString(q.Scope)
	}
	if q.Where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(q.Where)
	}
	if q.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.OrderBy)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}
	return sb.String()
}

// Quote renders a string literal, escaping embedded quotes and
// backslashes
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	return "'" + s + "'"
}

// In builds a "field IN (...)" predicate. Values are deduplicated;
// an empty value set yields an empty predicate, which callers must
// treat as "skip this query".
func In(field string, values []string) string {
	seen := make(map[string]struct{}, len(values))
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		quoted = append(quoted, Quote(v))
	}
	if len(quoted) == 0 {
		return ""
	}
	return field + " IN (" + strings.Join(quoted, ", ") + ")"
}

// And joins predicates conjunctively, dropping empty ones
func And(preds ...string) string {
	return join(preds, " AND ")
}

// Or joins predicates disjunctively, dropping empty ones
func Or(preds ...string) string {
	return join(preds, " OR ")
}

func join(preds []string, sep string) string {
	kept := make([]string, 0, len(preds))
	for _, p := range preds {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
