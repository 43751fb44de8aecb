// Package schema holds the entity metadata consulted by the query compiler
// and the hydrator: tables, fields, primary keys, field aliases and the
// relations between entity types.
//
// Metadata is served through the Registry interface. A Catalog is built
// either in code with NewCatalog or from a YAML file with LoadFile, and
// Watch keeps a catalog file loaded and reloads it when it changes:
//
//	reg, err := schema.Watch(ctx, "catalog.yaml")
//	if err != nil {
//		return err
//	}
//	defer reg.Close()
//	env := query.NewEnv(reg, query.WithDialect(dialect.MySQL))
//
// Entities may share fields through mixins. YAML catalogs refer to mixins
// by the name they were registered under with RegisterMixin; the
// schema/mixin package registers the common ones.
package schema
