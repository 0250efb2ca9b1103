// Package mapping seeds the ID-translation map before any upload.
// Mapping policies match source rows to records that already exist in
// the target instance, by business key or by a default mapping.
package mapping

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/names"
	"github.com/recmig/recmig/internal/soql"
	"github.com/recmig/recmig/internal/types"
)

const keySep = "\t"

// Resolver queries the target instance on behalf of mapping policies
type Resolver struct {
	desc     *describe.Describer
	data     client.DataClient
	maxFetch int
}

// NewResolver builds a resolver. maxFetch caps key-matching queries;
// zero means unbounded.
func NewResolver(desc *describe.Describer, data client.DataClient, maxFetch int) *Resolver {
	return &Resolver{desc: desc, data: data, maxFetch: maxFetch}
}

// Resolve applies every policy and merges the results into idMap.
// Policies run concurrently; they act on distinct objects, so their
// entries never conflict. Key matches within a policy take precedence
// over its default mapping.
func (r *Resolver) Resolve(ctx context.Context, policies []types.MappingPolicy, datasets []*types.LoadDataset, idMap *types.IDMap) error {
	byObject := make(map[string]*types.LoadDataset, len(datasets))
	for _, ds := range datasets {
		byObject[strings.ToLower(ds.Object)] = ds
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for i := range policies {
		policy := &policies[i]
		g.Go(func() error {
			ds, ok := names.Lookup(byObject, policy.Object, r.desc.Namespace())
			if !ok {
				return &types.UnknownMappingObjectError{Object: policy.Object}
			}
			keyed, fallback, err := r.resolvePolicy(ctx, policy, ds)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, src := range keyed.SourceIDs() {
				tgt, _ := keyed.Get(src)
				idMap.Set(src, tgt)
			}
			if fallback != "" {
				for _, src := range datasetSourceIDs(ds, r.desc) {
					if !idMap.Has(src) {
						idMap.Set(src, fallback)
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// resolvePolicy computes the key-matched entries and the fallback
// target id (empty when the policy has no default mapping)
func (r *Resolver) resolvePolicy(ctx context.Context, policy *types.MappingPolicy, ds *types.LoadDataset) (*types.IDMap, string, error) {
	keyed := types.NewIDMap()

	if cols := policy.KeyColumns(); len(cols) > 0 {
		if err := r.matchByKeys(ctx, policy, ds, cols, keyed); err != nil {
			return nil, "", err
		}
	}

	fallback := ""
	if dm := policy.DefaultMapping; dm != nil {
		id, err := r.defaultTargetID(ctx, policy.Object, dm)
		if err != nil {
			return nil, "", err
		}
		fallback = id
	}
	return keyed, fallback, nil
}

func (r *Resolver) matchByKeys(ctx context.Context, policy *types.MappingPolicy, ds *types.LoadDataset, cols []string, keyed *types.IDMap) error {
	idIdx := idColumnIndex(ds, r.desc)
	if idIdx < 0 {
		return nil
	}
	colIdx := make([]int, len(cols))
	for i, col := range cols {
		colIdx[i] = headerIndex(ds.Headers, col, r.desc.Namespace())
		if colIdx[i] < 0 {
			// Key column absent from the dataset: nothing to match on
			return nil
		}
	}

	localKeys := make(map[string]string) // keyTuple -> sourceId (first wins)
	distinct := make([][]string, len(cols))
	for _, row := range ds.Rows {
		srcID := row[idIdx]
		if srcID == "" {
			continue
		}
		cells := make([]string, len(cols))
		for i, idx := range colIdx {
			cells[i] = row[idx]
			distinct[i] = append(distinct[i], row[idx])
		}
		key := strings.TrimSpace(strings.Join(cells, keySep))
		if _, dup := localKeys[key]; !dup {
			localKeys[key] = srcID
		}
	}

	preds := make([]string, len(cols))
	for i, col := range cols {
		preds[i] = soql.In(col, distinct[i])
		if preds[i] == "" {
			return nil
		}
	}

	q := soql.Query{
		Fields: append([]string{"Id"}, cols...),
		Object: policy.Object,
		Where:  soql.And(preds...),
	}
	rows, err := r.data.Query(ctx, q.String(), r.maxFetch)
	if err != nil {
		return err
	}

	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = types.CellText(rowValue(row, col))
		}
		key := strings.TrimSpace(strings.Join(cells, keySep))
		srcID, ok := localKeys[key]
		if !ok {
			continue
		}
		keyed.Set(srcID, types.CellText(rowValue(row, "Id")))
	}
	return nil
}

func (r *Resolver) defaultTargetID(ctx context.Context, object string, dm *types.DefaultMapping) (string, error) {
	if dm.Literal() {
		return dm.ID, nil
	}
	q := soql.Query{
		Fields:  []string{"Id"},
		Object:  object,
		Where:   dm.Condition,
		OrderBy: dm.OrderBy,
		Limit:   1,
		Offset:  dm.Offset,
	}
	rows, err := r.data.Query(ctx, q.String(), 1)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return types.CellText(rowValue(rows[0], "Id")), nil
}

// rowValue fetches a column from a query row, tolerating case
// differences in the returned keys
func rowValue(row types.Row, col string) any {
	if v, ok := row[col]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, col) {
			return v
		}
	}
	return nil
}

// idColumnIndex finds the header mapping to the object's id field
func idColumnIndex(ds *types.LoadDataset, desc *describe.Describer) int {
	for i, h := range ds.Headers {
		if fd := desc.Field(ds.Object, h); fd != nil && fd.Type == types.FieldTypeID {
			return i
		}
	}
	return -1
}

func headerIndex(headers []string, col, ns string) int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(h)] = i
	}
	if i, ok := names.Lookup(idx, col, ns); ok {
		return i
	}
	return -1
}

func datasetSourceIDs(ds *types.LoadDataset, desc *describe.Describer) []string {
	idIdx := idColumnIndex(ds, desc)
	if idIdx < 0 {
		return nil
	}
	out := make([]string, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		if row[idIdx] != "" {
			out = append(out, row[idIdx])
		}
	}
	return out
}
