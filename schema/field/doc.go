// Package field describes the semantic types of entity fields.
//
// A field type decides how a value is bound into a statement (integer or
// string binding), whether it is quoted when inlined, and which Go type the
// hydrator converts a scanned column into:
//
//	field.ParseType("int64")            // TypeInt64
//	field.FromPhysical("VARCHAR(255)")  // TypeString
//	field.TypeFloat64.Quotable()        // true
package field
