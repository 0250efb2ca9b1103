// Package dumper extracts a transitively-closed graph of records as
// CSV. Seed queries are fetched directly; related queries describe
// which neighboring objects the closure may pull in, following
// reference edges in both directions until nothing new arrives.
package dumper

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/csvio"
	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/names"
	"github.com/recmig/recmig/internal/soql"
	"github.com/recmig/recmig/internal/types"
)

// DefaultMaxFetchSize caps each query's buffered result set
const DefaultMaxFetchSize = 10000

// Options configures a dump run
type Options struct {
	// MaxFetchSize caps every query; zero means DefaultMaxFetchSize
	MaxFetchSize int
	// IDMap, when set, is reversed once and used to rewrite id and
	// reference cells back to source-instance ids
	IDMap *types.IDMap
	// RunID tags progress events
	RunID string
	// ReportProgress, when set, is invoked synchronously after each
	// phase
	ReportProgress func(types.DumpProgress)
}

// Dumper runs the closure over one set of queries
type Dumper struct {
	desc *describe.Describer
	data client.DataClient
	opts Options
}

// New builds a dumper
func New(desc *describe.Describer, data client.DataClient, opts Options) *Dumper {
	if opts.MaxFetchSize <= 0 {
		opts.MaxFetchSize = DefaultMaxFetchSize
	}
	return &Dumper{desc: desc, data: data, opts: opts}
}

// objectSet buffers the fetched records of one object, deduplicated by
// record id, preserving fetch order
type objectSet struct {
	records []types.Row
	ids     map[string]struct{}
}

func newObjectSet() *objectSet {
	return &objectSet{ids: make(map[string]struct{})}
}

// add inserts records not yet present and returns the ids it added
func (s *objectSet) add(idField string, rows []types.Row) []string {
	var added []string
	for _, row := range rows {
		id := types.CellText(rowValue(row, idField))
		if id == "" {
			continue
		}
		if _, dup := s.ids[id]; dup {
			continue
		}
		s.ids[id] = struct{}{}
		s.records = append(s.records, row)
		added = append(added, id)
	}
	return added
}

// Dump executes the seed queries, runs the closure loop, and renders
// one CSV per input query in input order
func (d *Dumper) Dump(ctx context.Context, queries []types.DumpQuery) ([]string, error) {
	for i := range queries {
		if err := queries[i].Validate(); err != nil {
			return nil, err
		}
		if d.desc.Object(queries[i].Object) == nil {
			return nil, &types.SchemaNotFoundError{Object: queries[i].Object}
		}
	}

	sets := make(map[string]*objectSet, len(queries))
	for i := range queries {
		sets[strings.ToLower(queries[i].Object)] = newObjectSet()
	}

	lastNew, err := d.fetchSeeds(ctx, queries, sets)
	if err != nil {
		return nil, err
	}
	d.reportProgress(sets)

	for len(lastNew) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		roundNew := make(map[string][]string)

		added, err := d.expandRelated(ctx, queries, sets, lastNew)
		if err != nil {
			return nil, err
		}
		mergeNew(roundNew, added)
		d.reportProgress(sets)

		added, err = d.expandDependent(ctx, queries, sets)
		if err != nil {
			return nil, err
		}
		mergeNew(roundNew, added)
		d.reportProgress(sets)

		lastNew = roundNew
	}

	return d.render(queries, sets)
}

// fetchSeeds runs every target=query entry concurrently and returns
// the ids fetched per object
func (d *Dumper) fetchSeeds(ctx context.Context, queries []types.DumpQuery, sets map[string]*objectSet) (map[string][]string, error) {
	seedNew := make(map[string][]string)
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for i := range queries {
		q := &queries[i]
		if !q.Seed() {
			continue
		}
		g.Go(func() error {
			stmt := soql.Query{
				Fields:  d.fetchFields(q),
				Object:  q.Object,
				Scope:   q.Scope,
				Where:   q.Condition,
				OrderBy: q.OrderBy,
				Limit:   q.Limit,
				Offset:  q.Offset,
			}
			rows, err := d.data.Query(ctx, stmt.String(), d.opts.MaxFetchSize)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			key := strings.ToLower(q.Object)
			added := sets[key].add(d.idFieldName(q.Object), rows)
			seedNew[key] = append(seedNew[key], added...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for key, ids := range seedNew {
		if len(ids) == 0 {
			delete(seedNew, key)
		}
	}
	return seedNew, nil
}

// expandRelated fetches records of related objects whose reference
// fields point at ids that arrived in the previous round
func (d *Dumper) expandRelated(ctx context.Context, queries []types.DumpQuery, sets map[string]*objectSet, lastNew map[string][]string) (map[string][]string, error) {
	added := make(map[string][]string)
	for i := range queries {
		q := &queries[i]
		if q.Seed() {
			continue
		}
		desc := d.desc.Object(q.Object)

		var preds []string
		for _, fd := range desc.Fields {
			if fd.Type != types.FieldTypeReference {
				continue
			}
			var ids []string
			for _, ref := range fd.ReferenceTo {
				if grown, ok := names.Lookup(lastNew, ref, d.desc.Namespace()); ok {
					ids = append(ids, grown...)
				}
			}
			if p := soql.In(fd.Name, ids); p != "" {
				preds = append(preds, p)
			}
		}
		if len(preds) == 0 {
			continue
		}

		stmt := soql.Query{
			Fields: d.fetchFields(q),
			Object: q.Object,
			Where:  soql.Or(preds...),
		}
		rows, err := d.data.Query(ctx, stmt.String(), d.opts.MaxFetchSize)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(q.Object)
		if ids := sets[key].add(d.idFieldName(q.Object), rows); len(ids) > 0 {
			added[key] = append(added[key], ids...)
		}
	}
	return added, nil
}

// expandDependent fetches records a fetched record points at: for each
// related query's object, collect referenced ids not yet fetched and
// pull them in by Id
func (d *Dumper) expandDependent(ctx context.Context, queries []types.DumpQuery, sets map[string]*objectSet) (map[string][]string, error) {
	added := make(map[string][]string)
	for i := range queries {
		q := &queries[i]
		if q.Seed() {
			continue
		}
		key := strings.ToLower(q.Object)

		missing := d.missingReferencedIDs(queries, sets, q.Object, sets[key])
		pred := soql.In(d.idFieldName(q.Object), missing)
		if pred == "" {
			continue
		}

		stmt := soql.Query{
			Fields: d.fetchFields(q),
			Object: q.Object,
			Where:  pred,
		}
		rows, err := d.data.Query(ctx, stmt.String(), d.opts.MaxFetchSize)
		if err != nil {
			return nil, err
		}
		if ids := sets[key].add(d.idFieldName(q.Object), rows); len(ids) > 0 {
			added[key] = append(added[key], ids...)
		}
	}
	return added, nil
}

// missingReferencedIDs scans every fetched record of every query and
// collects values of reference fields pointing at target that are not
// yet in targetSet
func (d *Dumper) missingReferencedIDs(queries []types.DumpQuery, sets map[string]*objectSet, target string, targetSet *objectSet) []string {
	var missing []string
	seen := make(map[string]struct{})
	for i := range queries {
		q := &queries[i]
		desc := d.desc.Object(q.Object)
		var refFields []string
		for _, fd := range desc.Fields {
			if fd.Type == types.FieldTypeReference && names.Includes(fd.ReferenceTo, target, d.desc.Namespace()) {
				refFields = append(refFields, fd.Name)
			}
		}
		if len(refFields) == 0 {
			continue
		}
		for _, row := range sets[strings.ToLower(q.Object)].records {
			for _, f := range refFields {
				id := types.CellText(rowValue(row, f))
				if id == "" {
					continue
				}
				if _, fetched := targetSet.ids[id]; fetched {
					continue
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				missing = append(missing, id)
			}
		}
	}
	return missing
}

// render serializes each query's fetched records as CSV in input order
func (d *Dumper) render(queries []types.DumpQuery, sets map[string]*objectSet) ([]string, error) {
	var reverse map[string]string
	if d.opts.IDMap != nil {
		reverse = d.opts.IDMap.Reverse()
	}

	out := make([]string, 0, len(queries))
	for i := range queries {
		q := &queries[i]
		fields := d.outputFields(q)
		set := sets[strings.ToLower(q.Object)]

		rows := make([][]string, 0, len(set.records))
		for _, rec := range set.records {
			cells := make([]string, len(fields))
			for j, f := range fields {
				cell := types.CellText(rowValue(rec, f))
				if reverse != nil && cell != "" {
					if fd := d.desc.Field(q.Object, f); fd != nil && (fd.Type == types.FieldTypeID || fd.Type == types.FieldTypeReference) {
						if src, ok := reverse[cell]; ok {
							cell = src
						}
					}
				}
				cells[j] = cell
			}
			rows = append(rows, cells)
		}

		csv, err := csvio.Render(fields, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, csv)
	}
	return out, nil
}

// outputFields resolves the column list: explicit fields win, then the
// schema minus ignoreFields, then the full schema
func (d *Dumper) outputFields(q *types.DumpQuery) []string {
	if len(q.Fields) > 0 {
		return q.Fields
	}
	all := d.desc.Object(q.Object).FieldNames()
	if len(q.IgnoreFields) == 0 {
		return all
	}
	kept := make([]string, 0, len(all))
	for _, f := range all {
		if !names.Includes(q.IgnoreFields, f, d.desc.Namespace()) {
			kept = append(kept, f)
		}
	}
	return kept
}

// fetchFields is the output field list with the id field guaranteed,
// since deduplication and dependent expansion key on it
func (d *Dumper) fetchFields(q *types.DumpQuery) []string {
	fields := d.outputFields(q)
	idField := d.idFieldName(q.Object)
	for _, f := range fields {
		if strings.EqualFold(f, idField) {
			return fields
		}
	}
	return append([]string{idField}, fields...)
}

// idFieldName returns the name of the object's id field
func (d *Dumper) idFieldName(object string) string {
	desc := d.desc.Object(object)
	if fd := desc.IDField(); fd != nil {
		return fd.Name
	}
	return "Id"
}

func (d *Dumper) reportProgress(sets map[string]*objectSet) {
	if d.opts.ReportProgress == nil {
		return
	}
	perObject := make(map[string]int, len(sets))
	total := 0
	for key, set := range sets {
		perObject[key] = len(set.records)
		total += len(set.records)
	}
	d.opts.ReportProgress(types.DumpProgress{
		RunID:                 d.opts.RunID,
		FetchedCount:          total,
		FetchedCountPerObject: perObject,
	})
}

func mergeNew(dst, src map[string][]string) {
	for k, ids := range src {
		if len(ids) > 0 {
			dst[k] = append(dst[k], ids...)
		}
	}
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
