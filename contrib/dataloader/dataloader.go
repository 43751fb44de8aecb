// Package dataloader batches entity lookups by key for DataLoader
// implementations such as github.com/graph-gophers/dataloader/v7 or
// github.com/vikstrous/dataloadgen.
//
// A Loader turns a batch of primary keys into one IN query and returns the
// hydrated entities in the order the keys were requested:
//
//	users := dataloader.NewLoader(env, "User", dataloader.WithGraph(query.Graph{query.G("profile")}))
//	loader := dataloadgen.NewLoader(users.Load)
//	u, err := loader.Load(ctx, "42")
//
// One-to-many lookups group the entities by a foreign key field:
//
//	posts := dataloader.NewLoader(env, "Post")
//	byAuthor := dataloadgen.NewLoader(posts.LoadBy("author_id"))
package dataloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/query"
)

// ErrNotFound is returned when a key has no entity in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc loads a batch of values by their keys. Both result slices have
// the length of keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// OrderByKeys reorders values to match the order of the requested keys.
// Keys without a value get a zero value and ErrNotFound.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// GroupByKey groups values by a key function.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys returns the group of every key, in key order. Keys
// without a group get a nil slice.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

type ctxKey struct{}

// WithLoaders attaches request-scoped loaders to the context.
func WithLoaders[T any](ctx context.Context, loaders T) context.Context {
	return context.WithValue(ctx, ctxKey{}, loaders)
}

// For extracts the loaders attached with WithLoaders.
//
//	loaders := dataloader.For[*Loaders](ctx)
func For[T any](ctx context.Context) T {
	v, _ := ctx.Value(ctxKey{}).(T)
	return v
}

// Loader loads entities of one type in batches.
type Loader struct {
	env   *query.Env
	typ   string
	graph query.Graph
	scope func(*query.Criteria)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithGraph binds g to every batch query, so the loaded entities carry
// their related entities.
func WithGraph(g query.Graph) LoaderOption {
	return func(l *Loader) {
		l.graph = g
	}
}

// WithScope applies fn to every batch query before it runs. Use it to add
// conditions such as soft-delete filters.
func WithScope(fn func(*query.Criteria)) LoaderOption {
	return func(l *Loader) {
		l.scope = fn
	}
}

// NewLoader returns a Loader for entities of typ.
func NewLoader(env *query.Env, typ string, opts ...LoaderOption) *Loader {
	l := &Loader{env: env, typ: typ}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// fetch runs one batch query. The key condition is ANDed with whatever
// the scope adds. A criteria that failed to build is reported as the batch
// error instead of running as an always-empty query.
func (l *Loader) fetch(ctx context.Context, field string, keys []string) ([]*query.Entity, error) {
	c := l.env.Query(l.typ).Restrict(query.Fields{{Key: field + ":IN", Value: keys}})
	if l.scope != nil {
		l.scope(c)
	}
	if len(l.graph) > 0 {
		c.BindGraph(l.graph)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return all.Entities(), nil
}

// Load returns the entities with the given primary keys. It is a
// BatchFunc and requires a single-column primary key.
func (l *Loader) Load(ctx context.Context, keys []string) ([]*query.Entity, []error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pk := l.env.Registry().PrimaryKey(l.typ)
	if len(pk) != 1 {
		return nil, fill(len(keys), quarry.NewCompileError(l.typ, "batch loading requires a single-column primary key"))
	}
	entities, err := l.fetch(ctx, pk[0], keys)
	if err != nil {
		return nil, fill(len(keys), err)
	}
	result, errs := OrderByKeys(keys, entities, (*query.Entity).ID)
	for i, err := range errs {
		if err != nil {
			errs[i] = quarry.NewNotFoundErrorWithID(l.typ, keys[i])
		}
	}
	return result, errs
}

// LoadBy returns a BatchFunc loading the entities whose field holds one of
// the keys, grouped by key. A key without entities gets an empty group and
// no error.
func (l *Loader) LoadBy(field string) BatchFunc[string, []*query.Entity] {
	return func(ctx context.Context, keys []string) ([][]*query.Entity, []error) {
		if len(keys) == 0 {
			return nil, nil
		}
		entities, err := l.fetch(ctx, field, keys)
		if err != nil {
			return nil, fill(len(keys), err)
		}
		groups := GroupByKey(entities, func(e *query.Entity) string {
			return fmt.Sprint(e.Get(field))
		})
		return OrderGroupsByKeys(keys, groups), make([]error, len(keys))
	}
}

func fill(n int, err error) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return errs
}
