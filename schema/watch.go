package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/quarry/schema/field"
)

// Watcher is a Registry backed by a catalog file that is reloaded whenever
// the file changes on disk. A reload that fails to parse keeps the previous
// catalog in place.
type Watcher struct {
	path     string
	current  atomic.Pointer[Catalog]
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	onReload func(*Catalog, error)
	done     chan struct{}
	stop     sync.Once
}

var _ Registry = (*Watcher)(nil)

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithWatchLogger sets the logger used to report reloads.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// OnReload registers a callback invoked after every reload attempt. On
// failure the callback receives the catalog still in use and the error.
func OnReload(fn func(*Catalog, error)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watch loads the catalog at path and keeps it up to date until ctx is done
// or Close is called.
func Watch(ctx context.Context, path string, opts ...WatchOption) (*Watcher, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schema: watch catalog: %w", err)
	}
	// Editors commonly replace files by renaming over them, which drops a
	// watch placed on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("schema: watch catalog: %w", err)
	}
	w := &Watcher{
		path:   filepath.Clean(path),
		fs:     fw,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(c)
	go w.run(ctx)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.fs.Close()
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watch failed", "path", w.path, "err", err)
		}
	}
}

func (w *Watcher) reload() {
	c, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("catalog reload failed, keeping previous catalog", "path", w.path, "err", err)
		if w.onReload != nil {
			w.onReload(w.current.Load(), err)
		}
		return
	}
	w.current.Store(c)
	w.logger.Info("catalog reloaded", "path", w.path, "entities", len(c.names))
	if w.onReload != nil {
		w.onReload(c, nil)
	}
}

// Catalog returns the catalog currently in use.
func (w *Watcher) Catalog() *Catalog {
	return w.current.Load()
}

// Close stops watching the file.
func (w *Watcher) Close() error {
	var err error
	w.stop.Do(func() {
		err = w.fs.Close()
		<-w.done
	})
	return err
}

// HasType implements Registry.
func (w *Watcher) HasType(typ string) bool { return w.Catalog().HasType(typ) }

// TableName implements Registry.
func (w *Watcher) TableName(typ string) (string, bool) { return w.Catalog().TableName(typ) }

// Fields implements Registry.
func (w *Watcher) Fields(typ string) []*Field { return w.Catalog().Fields(typ) }

// Field implements Registry.
func (w *Watcher) Field(typ, name string) (*Field, bool) { return w.Catalog().Field(typ, name) }

// FieldAlias implements Registry.
func (w *Watcher) FieldAlias(typ, alias string) (string, bool) {
	return w.Catalog().FieldAlias(typ, alias)
}

// PrimaryKey implements Registry.
func (w *Watcher) PrimaryKey(typ string) []string { return w.Catalog().PrimaryKey(typ) }

// PrimaryKeyType implements Registry.
func (w *Watcher) PrimaryKeyType(typ string) field.Type { return w.Catalog().PrimaryKeyType(typ) }

// Relation implements Registry.
func (w *Watcher) Relation(typ, alias string) (*Relation, bool) {
	return w.Catalog().Relation(typ, alias)
}
