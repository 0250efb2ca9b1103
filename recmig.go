// Package recmig migrates relational records between two instances of
// a record-management service. A load parses per-object CSV files,
// resolves pre-existing records into an ID-translation map, and
// uploads the rest in dependency order, rewriting reference columns
// through the map as it grows. A dump walks the reference graph from
// seed queries and renders the transitive closure back to CSV.
package recmig

import (
	"bytes"
	"context"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/csvio"
	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/dumper"
	"github.com/recmig/recmig/internal/loader"
	"github.com/recmig/recmig/internal/mapping"
	"github.com/recmig/recmig/internal/types"
)

// Core data-model types
type (
	FieldDescription  = types.FieldDescription
	ObjectDescription = types.ObjectDescription
	FieldType         = types.FieldType
	IDMap             = types.IDMap
	TargetIDSet       = types.TargetIDSet
	MappingPolicy     = types.MappingPolicy
	DefaultMapping    = types.DefaultMapping
	DumpQuery         = types.DumpQuery
	UploadStatus      = types.UploadStatus
	UploadedRecord    = types.UploadedRecord
	FailedRecord      = types.FailedRecord
	BlockedRecord     = types.BlockedRecord
	LoadProgress      = types.LoadProgress
	DumpProgress      = types.DumpProgress
)

// Transport interfaces and the REST implementation
type (
	SchemaClient = client.SchemaClient
	DataClient   = client.DataClient
	Client       = client.Client
	RESTClient   = client.RESTClient
	SaveResult   = client.SaveResult
)

// NewIDMap builds an empty ID-translation map
func NewIDMap() *IDMap { return types.NewIDMap() }

// NewTargetIDSet builds a target scope from source-instance ids
func NewTargetIDSet(ids ...string) *TargetIDSet { return types.NewTargetIDSet(ids...) }

// NewRESTClient connects to an instance's REST endpoint
func NewRESTClient(baseURL, token string) *RESTClient { return client.NewREST(baseURL, token) }

// LoadInput is one object's CSV content
type LoadInput struct {
	Object string
	CSV    []byte
}

// LoadOptions tune a load run. The zero value loads everything with no
// pre-mapping.
type LoadOptions struct {
	// MappingPolicies map rows onto records that already exist in the
	// target instance instead of creating duplicates
	MappingPolicies []MappingPolicy
	// DefaultNamespace is tried when object and field lookups miss
	DefaultNamespace string
	// CSVParseOptions configure the CSV reader
	CSVParseOptions csvio.ParseOptions
	// IDMap seeds the run with translations from earlier runs; it is
	// mutated in place
	IDMap *IDMap
	// TargetIDs restricts the upload to the listed source ids plus
	// whatever they transitively reference. Empty means everything.
	TargetIDs []string
	// MaxFetchSize caps mapping-resolution queries
	MaxFetchSize int
	// RunID tags progress events
	RunID string
	// ReportProgress, when set, is invoked after every upload pass
	ReportProgress func(LoadProgress)
}

// DumpOptions tune a dump run
type DumpOptions struct {
	// DefaultNamespace is tried when object and field lookups miss
	DefaultNamespace string
	// MaxFetchSize caps each query
	MaxFetchSize int
	// IDMap, when set, rewrites dumped ids back to source-instance ids
	IDMap *IDMap
	// RunID tags progress events
	RunID string
	// ReportProgress, when set, is invoked after each dump phase
	ReportProgress func(DumpProgress)
}

// LoadCSVData uploads the given CSV datasets to the target instance
// and returns the per-record outcome. Rows matched by a mapping policy
// are translated without being created; rows whose references never
// resolve are reported blocked.
func LoadCSVData(ctx context.Context, schema SchemaClient, data DataClient, inputs []LoadInput, opts *LoadOptions) (*UploadStatus, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}

	datasets := make([]*types.LoadDataset, 0, len(inputs))
	for _, in := range inputs {
		ds, err := csvio.ParseDataset(in.Object, bytes.NewReader(in.CSV), opts.CSVParseOptions)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}

	objects := make([]string, 0, len(datasets)+len(opts.MappingPolicies))
	for _, ds := range datasets {
		objects = append(objects, ds.Object)
	}
	for i := range opts.MappingPolicies {
		objects = append(objects, opts.MappingPolicies[i].Object)
	}

	desc, err := describe.Describe(ctx, schema, objects, opts.DefaultNamespace)
	if err != nil {
		return nil, err
	}

	idMap := opts.IDMap
	if idMap == nil {
		idMap = types.NewIDMap()
	}
	if len(opts.MappingPolicies) > 0 {
		r := mapping.NewResolver(desc, data, opts.MaxFetchSize)
		if err := r.Resolve(ctx, opts.MappingPolicies, datasets, idMap); err != nil {
			return nil, err
		}
	}

	l := loader.New(desc, data, loader.Options{
		RunID:          opts.RunID,
		ReportProgress: opts.ReportProgress,
	})
	return l.Load(ctx, datasets, idMap, types.NewTargetIDSet(opts.TargetIDs...))
}

// DumpAsCSV fetches the closure of the given queries and returns one
// CSV document per query, in input order.
func DumpAsCSV(ctx context.Context, schema SchemaClient, data DataClient, queries []DumpQuery, opts *DumpOptions) ([]string, error) {
	if opts == nil {
		opts = &DumpOptions{}
	}

	objects := make([]string, 0, len(queries))
	for i := range queries {
		objects = append(objects, queries[i].Object)
	}

	desc, err := describe.Describe(ctx, schema, objects, opts.DefaultNamespace)
	if err != nil {
		return nil, err
	}

	d := dumper.New(desc, data, dumper.Options{
		MaxFetchSize:   opts.MaxFetchSize,
		IDMap:          opts.IDMap,
		RunID:          opts.RunID,
		ReportProgress: opts.ReportProgress,
	})
	return d.Dump(ctx, queries)
}
