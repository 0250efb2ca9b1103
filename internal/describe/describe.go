// Package describe fetches and caches per-object schemas. A Describer
// is built once per run and is read-only afterwards, so it is safe for
// concurrent lookups.
package describe

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/names"
	"github.com/recmig/recmig/internal/types"
)

// Describer resolves object and field names, tolerating case and
// namespace differences
type Describer struct {
	ns      string
	objects map[string]*types.ObjectDescription
	fields  map[string]map[string]*types.FieldDescription
}

// Describe fetches the schema for every object name given, one fetch
// per object running concurrently. A miss is retried once with the
// namespace stripped; a second miss is a SchemaNotFoundError.
// Duplicate names (after lowercasing) are fetched once.
func Describe(ctx context.Context, sc client.SchemaClient, objects []string, ns string) (*Describer, error) {
	d := &Describer{
		ns:      ns,
		objects: make(map[string]*types.ObjectDescription),
		fields:  make(map[string]map[string]*types.FieldDescription),
	}

	seen := make(map[string]struct{})
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, object := range objects {
		lower := strings.ToLower(object)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}

		g.Go(func() error {
			desc, err := describeWithFallback(ctx, sc, object, ns)
			if err != nil {
				return err
			}
			mu.Lock()
			d.add(desc)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func describeWithFallback(ctx context.Context, sc client.SchemaClient, object, ns string) (*types.ObjectDescription, error) {
	desc, err := sc.Describe(ctx, object)
	if err == nil {
		return desc, nil
	}
	if !errors.Is(err, client.ErrNotFound) {
		return nil, err
	}
	if stripped := names.Strip(object, ns); stripped != object {
		desc, err = sc.Describe(ctx, stripped)
		if err == nil {
			return desc, nil
		}
		if !errors.Is(err, client.ErrNotFound) {
			return nil, err
		}
	}
	return nil, &types.SchemaNotFoundError{Object: object}
}

func (d *Describer) add(desc *types.ObjectDescription) {
	key := strings.ToLower(desc.Name)
	d.objects[key] = desc
	fm := make(map[string]*types.FieldDescription, len(desc.Fields))
	for i := range desc.Fields {
		fm[strings.ToLower(desc.Fields[i].Name)] = &desc.Fields[i]
	}
	d.fields[key] = fm
}

// Object resolves an object name, or nil when unknown
func (d *Describer) Object(name string) *types.ObjectDescription {
	desc, _ := names.Lookup(d.objects, name, d.ns)
	return desc
}

// Field resolves a field of an object, or nil when either is unknown
func (d *Describer) Field(object, field string) *types.FieldDescription {
	fm, ok := names.Lookup(d.fields, object, d.ns)
	if !ok {
		return nil
	}
	fd, _ := names.Lookup(fm, field, d.ns)
	return fd
}

// Knows reports whether any described object matches name
func (d *Describer) Knows(name string) bool {
	return d.Object(name) != nil
}

// KnowsAny reports whether at least one of the names is described.
// Used to decide whether a reference field counts for classification.
func (d *Describer) KnowsAny(objects []string) bool {
	for _, o := range objects {
		if d.Knows(o) {
			return true
		}
	}
	return false
}

// Namespace returns the configured default namespace
func (d *Describer) Namespace() string { return d.ns }
