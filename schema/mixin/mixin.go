// Package mixin provides common field sets for catalog entities.
//
// Mixins are attached programmatically:
//
//	&schema.Entity{
//	    Name:   "Post",
//	    Mixins: []schema.Mixin{mixin.Time{}, mixin.SoftDelete{}},
//	    ...
//	}
//
// or by name in a YAML catalog once this package is imported:
//
//	import _ "github.com/syssam/quarry/schema/mixin"
//
//	entities:
//	  Post:
//	    mixins: [time, soft_delete]
package mixin

import (
	"time"

	"github.com/syssam/quarry/query"
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
)

func init() {
	schema.RegisterMixin("create_time", CreateTime{})
	schema.RegisterMixin("update_time", UpdateTime{})
	schema.RegisterMixin("time", Time{})
	schema.RegisterMixin("soft_delete", SoftDelete{})
	schema.RegisterMixin("tenant", TenantID{})
	schema.RegisterMixin("uuid", ID{})
}

// Fields is a mixin made of fixed fields.
type Fields []*schema.Field

// Fields returns f.
func (f Fields) Fields() []*schema.Field { return f }

// CreateTime adds the created_at column.
type CreateTime struct{}

// Fields of the create time mixin.
func (CreateTime) Fields() []*schema.Field {
	return []*schema.Field{{Name: "created_at", Type: field.TypeTime, Default: "CURRENT_TIMESTAMP"}}
}

// UpdateTime adds the updated_at column.
type UpdateTime struct{}

// Fields of the update time mixin.
func (UpdateTime) Fields() []*schema.Field {
	return []*schema.Field{{Name: "updated_at", Type: field.TypeTime, Default: "CURRENT_TIMESTAMP"}}
}

// Time combines CreateTime and UpdateTime.
type Time struct{}

// Fields of the time mixin.
func (Time) Fields() []*schema.Field {
	return append(CreateTime{}.Fields(), UpdateTime{}.Fields()...)
}

// SoftDelete adds a nullable deleted_at column. Rows with a deleted_at
// value are considered deleted.
type SoftDelete struct{}

// Fields of the soft delete mixin.
func (SoftDelete) Fields() []*schema.Field {
	return []*schema.Field{{Name: "deleted_at", Type: field.TypeTime, Nullable: true}}
}

// Scope restricts c to rows that are not soft deleted.
func (SoftDelete) Scope(c *query.Criteria) {
	c.Restrict(query.Fields{{Key: "deleted_at", Value: nil}})
}

// Trash turns c into an UPDATE marking the matched rows deleted at the
// given time. Set the command before adding conditions to c.
func (SoftDelete) Trash(c *query.Criteria, at time.Time) *query.Criteria {
	return c.Command(query.Update).Set(query.Fields{{Key: "deleted_at", Value: at.UTC()}})
}

// TenantID adds the tenant_id column used by privacy.TenantRule.
type TenantID struct{}

// Fields of the tenant mixin.
func (TenantID) Fields() []*schema.Field {
	return []*schema.Field{{Name: "tenant_id", Type: field.TypeString}}
}

// ID adds a UUID id column. The entity still declares it as its primary
// key.
type ID struct{}

// Fields of the UUID id mixin.
func (ID) Fields() []*schema.Field {
	return []*schema.Field{{Name: "id", Type: field.TypeUUID}}
}
