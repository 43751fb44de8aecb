package schema

import (
	"fmt"
	"slices"
	"sync"
)

// Mixin is a reusable set of fields shared by several entities.
type Mixin interface {
	Fields() []*Field
}

var mixins = struct {
	sync.RWMutex
	byName map[string]Mixin
}{byName: make(map[string]Mixin)}

// RegisterMixin makes a mixin available to YAML catalogs under name. It
// panics if name is registered twice.
func RegisterMixin(name string, m Mixin) {
	mixins.Lock()
	defer mixins.Unlock()
	if _, dup := mixins.byName[name]; dup {
		panic("schema: RegisterMixin called twice for " + name)
	}
	mixins.byName[name] = m
}

// LookupMixin returns the mixin registered under name.
func LookupMixin(name string) (Mixin, bool) {
	mixins.RLock()
	defer mixins.RUnlock()
	m, ok := mixins.byName[name]
	return m, ok
}

// applyMixins prepends the mixin fields to e. A field the entity declares
// itself wins over a mixin field with the same name.
func applyMixins(e *Entity) error {
	var fields []*Field
	for _, m := range e.Mixins {
		if m == nil {
			return fmt.Errorf("schema: %s: nil mixin", e.Name)
		}
		for _, f := range m.Fields() {
			if _, own := e.Field(f.Name); own {
				continue
			}
			if slices.ContainsFunc(fields, func(g *Field) bool { return g.Name == f.Name }) {
				return fmt.Errorf("schema: %s: field %q declared by two mixins", e.Name, f.Name)
			}
			c := *f
			fields = append(fields, &c)
		}
	}
	e.Fields = append(fields, e.Fields...)
	e.Mixins = nil
	return nil
}
