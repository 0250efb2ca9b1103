// Package loader implements the dependency-aware upload engine: per
// pass it classifies rows, converts the uploadable ones to typed
// records, submits them in per-object batches, and folds the returned
// ids into the ID map until a pass produces nothing new.
package loader

import (
	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/types"
)

// waiting is a row held back because a reference has not resolved yet.
// Only the first unresolved reference is recorded; later ones surface
// on subsequent passes once the first is fixed.
type waiting struct {
	row           []string
	origID        string
	blockingField string
	blockingID    string
}

// classified is the per-pass partition of one dataset's rows
type classified struct {
	uploadables  [][]string
	waitings     []waiting
	notLoadables [][]string
}

// refColumn is a header position whose field references at least one
// described object
type refColumn struct {
	index int
	field string
}

// datasetColumns resolves the id column and the reference columns of a
// dataset against the schema
func datasetColumns(ds *types.LoadDataset, desc *describe.Describer) (idIdx int, refs []refColumn, err error) {
	idIdx = -1
	for i, h := range ds.Headers {
		fd := desc.Field(ds.Object, h)
		if fd == nil {
			continue
		}
		switch fd.Type {
		case types.FieldTypeID:
			if idIdx < 0 {
				idIdx = i
			}
		case types.FieldTypeReference:
			if desc.KnowsAny(fd.ReferenceTo) {
				refs = append(refs, refColumn{index: i, field: fd.Name})
			}
		}
	}
	if idIdx < 0 {
		return 0, nil, &types.MissingIDColumnError{Object: ds.Object}
	}
	return idIdx, refs, nil
}

// classifyDataset partitions the dataset's rows for one pass.
// Rows whose id is already mapped are not loadable and take no part in
// target propagation. Targeting propagates both ways along reference
// edges and mutates targets in place.
func classifyDataset(ds *types.LoadDataset, desc *describe.Describer, targets *types.TargetIDSet, idMap *types.IDMap) (*classified, error) {
	idIdx, refs, err := datasetColumns(ds, desc)
	if err != nil {
		return nil, err
	}

	c := &classified{}
	for _, row := range ds.Rows {
		id := row[idIdx]
		if idMap.Has(id) {
			c.notLoadables = append(c.notLoadables, row)
			continue
		}

		uploadable := targets.Empty() || targets.Contains(id)
		blockingField, blockingID := "", ""

		for _, rc := range refs {
			refID := row[rc.index]
			if refID == "" {
				continue
			}
			if targets.Contains(refID) {
				targets.Add(id)
			} else if targets.Contains(id) {
				targets.Add(refID)
			}
			if !idMap.Has(refID) {
				uploadable = false
				if blockingField == "" {
					blockingField = rc.field
					blockingID = refID
				}
			}
		}

		if uploadable {
			c.uploadables = append(c.uploadables, row)
		} else {
			c.waitings = append(c.waitings, waiting{
				row:           row,
				origID:        id,
				blockingField: blockingField,
				blockingID:    blockingID,
			})
		}
	}
	return c, nil
}
