package loader

import (
	"strconv"
	"strings"

	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/types"
)

// convertRow coerces a row's string cells into a typed record,
// rewriting reference cells through the ID map. The id cell becomes
// the pair's OrigID and is never written to the outgoing record.
// Headers with no matching schema field are skipped.
func convertRow(ds *types.LoadDataset, desc *describe.Describer, row []string, idMap *types.IDMap) (*types.RecordIDPair, error) {
	record := make(types.Record)
	origID := ""
	sawID := false

	for i, header := range ds.Headers {
		fd := desc.Field(ds.Object, header)
		if fd == nil {
			continue
		}
		cell := row[i]

		switch fd.Type {
		case types.FieldTypeID:
			if !sawID {
				origID = cell
				sawID = true
			}
		case types.FieldTypeInt:
			if fd.Createable {
				if n, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64); err == nil {
					record[fd.Name] = types.Int(n)
				}
			}
		case types.FieldTypeDouble, types.FieldTypeCurrency, types.FieldTypePercent:
			if fd.Createable {
				if f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
					record[fd.Name] = types.Float(f)
				}
			}
		case types.FieldTypeDate, types.FieldTypeDatetime:
			if fd.Createable && cell != "" {
				record[fd.Name] = types.String(cell)
			}
		case types.FieldTypeBoolean:
			if fd.Createable {
				record[fd.Name] = types.Bool(!falsyCell(cell))
			}
		case types.FieldTypeReference:
			if fd.Createable {
				if target, ok := idMap.Get(cell); ok {
					record[fd.Name] = types.String(target)
				} else {
					record[fd.Name] = types.Null()
				}
			}
		default:
			if fd.Createable {
				record[fd.Name] = types.String(cell)
			}
		}
	}

	if !sawID {
		return nil, &types.MissingIDColumnError{Object: ds.Object}
	}
	return &types.RecordIDPair{OrigID: origID, Record: record}, nil
}

// falsyCell reports whether a boolean cell reads as false: empty, 0,
// n, f or false in any case
func falsyCell(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "0", "n", "f", "false":
		return true
	}
	return false
}
