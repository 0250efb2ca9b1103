package loader

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/types"
)

// Options configures an upload run
type Options struct {
	// RunID tags progress events; the CLI sets a fresh uuid per run
	RunID string
	// ReportProgress, when set, is invoked synchronously after every
	// productive pass
	ReportProgress func(types.LoadProgress)
}

// Loader runs the upload fixpoint over a set of datasets
type Loader struct {
	desc *describe.Describer
	data client.DataClient
	opts Options
}

// New builds a loader
func New(desc *describe.Describer, data client.DataClient, opts Options) *Loader {
	return &Loader{desc: desc, data: data, opts: opts}
}

// upload is one object's batch for the current pass
type upload struct {
	object string
	pairs  []*types.RecordIDPair
}

// Load drives passes until a fixpoint: classify every dataset, convert
// and submit the uploadable rows, merge the returned ids, repeat. A
// pass that uploads nothing is the fixpoint and its waiting rows
// become the blocked set. Datasets are consumed destructively: rows
// not yet uploaded carry forward into the next pass.
//
// idMap and targets are owned by the run and mutated in place; the
// final idMap is also returned inside the status. A cancelled context
// returns the partial status together with the context error.
func (l *Loader) Load(ctx context.Context, datasets []*types.LoadDataset, idMap *types.IDMap, targets *types.TargetIDSet) (*types.UploadStatus, error) {
	if idMap == nil {
		idMap = types.NewIDMap()
	}
	if targets == nil {
		targets = types.NewTargetIDSet()
	}

	status := &types.UploadStatus{IDMap: idMap}
	for _, ds := range datasets {
		status.TotalCount += len(ds.Rows)
	}

	for {
		var uploadings []upload
		var blockedThisPass []types.BlockedRecord

		for _, ds := range datasets {
			c, err := classifyDataset(ds, l.desc, targets, idMap)
			if err != nil {
				return nil, err
			}

			pairs := make([]*types.RecordIDPair, 0, len(c.uploadables))
			for _, row := range c.uploadables {
				pair, err := convertRow(ds, l.desc, row, idMap)
				if err != nil {
					return nil, err
				}
				pairs = append(pairs, pair)
			}
			if len(pairs) > 0 {
				uploadings = append(uploadings, upload{object: ds.Object, pairs: pairs})
			}

			rows := make([][]string, 0, len(c.waitings))
			for _, w := range c.waitings {
				rows = append(rows, w.row)
				blockedThisPass = append(blockedThisPass, types.BlockedRecord{
					Object:        ds.Object,
					OrigID:        w.origID,
					BlockingField: w.blockingField,
					BlockingID:    w.blockingID,
				})
			}
			ds.Rows = rows
		}

		if len(uploadings) == 0 {
			// Fixpoint: the final pass defines the blocked set
			status.Blocked = blockedThisPass
			return status, nil
		}

		if err := ctx.Err(); err != nil {
			status.Blocked = blockedThisPass
			return status, err
		}

		if err := l.submit(ctx, uploadings, idMap, status); err != nil {
			return nil, err
		}

		if l.opts.ReportProgress != nil {
			l.opts.ReportProgress(types.LoadProgress{
				RunID:        l.opts.RunID,
				TotalCount:   status.TotalCount,
				SuccessCount: len(status.Successes),
				FailureCount: len(status.Failures),
			})
		}
	}
}

// submit fires one Create per object concurrently, then merges the
// results into the ID map serially once every call has returned. New
// ids become visible to the classifier only on the next pass.
func (l *Loader) submit(ctx context.Context, uploadings []upload, idMap *types.IDMap, status *types.UploadStatus) error {
	results := make([][]client.SaveResult, len(uploadings))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, up := range uploadings {
		g.Go(func() error {
			records := make([]types.Record, len(up.pairs))
			for j, p := range up.pairs {
				records[j] = p.Record
			}
			rets, err := l.data.Create(gctx, up.object, records)
			if err != nil {
				return err
			}
			if len(rets) != len(records) {
				return &types.TransportError{
					Op:  "create " + up.object,
					Err: fmt.Errorf("got %d results for %d records", len(rets), len(records)),
				}
			}
			mu.Lock()
			results[i] = rets
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, up := range uploadings {
		for j, pair := range up.pairs {
			ret := results[i][j]
			if ret.Success {
				idMap.Set(pair.OrigID, ret.ID)
				status.Successes = append(status.Successes, types.UploadedRecord{
					Object: up.object,
					OrigID: pair.OrigID,
					NewID:  ret.ID,
				})
			} else {
				status.Failures = append(status.Failures, types.FailedRecord{
					Object: up.object,
					OrigID: pair.OrigID,
					Errors: ret.Errors,
				})
			}
		}
	}
	return nil
}
