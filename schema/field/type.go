package field

import (
	"regexp"
	"strings"
)

// A Type represents the semantic type of a field, independent of the
// physical column type the database reports for it.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeJSON
	TypeUUID
	TypeBytes
	TypeEnum
	TypeString
	TypeOther
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint
	TypeUint64
	TypeFloat32
	TypeFloat64
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeJSON:    "json.RawMessage",
	TypeUUID:    "[16]byte",
	TypeBytes:   "[]byte",
	TypeEnum:    "string",
	TypeString:  "string",
	TypeOther:   "other",
	TypeInt:     "int",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeUint:    "uint",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
}

var constNames = [...]string{
	TypeBool:    "TypeBool",
	TypeTime:    "TypeTime",
	TypeJSON:    "TypeJSON",
	TypeUUID:    "TypeUUID",
	TypeBytes:   "TypeBytes",
	TypeEnum:    "TypeEnum",
	TypeString:  "TypeString",
	TypeOther:   "TypeOther",
	TypeInt:     "TypeInt",
	TypeInt8:    "TypeInt8",
	TypeInt16:   "TypeInt16",
	TypeInt32:   "TypeInt32",
	TypeInt64:   "TypeInt64",
	TypeUint:    "TypeUint",
	TypeUint8:   "TypeUint8",
	TypeUint16:  "TypeUint16",
	TypeUint32:  "TypeUint32",
	TypeUint64:  "TypeUint64",
	TypeFloat32: "TypeFloat32",
	TypeFloat64: "TypeFloat64",
}

// String returns the Go type name of the field type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// ConstName returns the constant name of an info type.
func (t Type) ConstName() string {
	if t.Valid() {
		return constNames[t]
	}
	return "invalid"
}

// Valid reports if the given type if known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t >= TypeInt8 && t < endTypes
}

// Integer reports if the given type is an integer type.
func (t Type) Integer() bool {
	return t >= TypeInt8 && t <= TypeUint64
}

// Float reports if the given type is a floating point type.
func (t Type) Float() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// Quotable reports whether values of this type are sent to the database as
// strings. Floats are quotable so that decimal values keep their precision;
// booleans and integers are not.
func (t Type) Quotable() bool {
	switch {
	case t.Integer(), t == TypeBool:
		return false
	default:
		return t.Valid()
	}
}

// aliases maps the names accepted in schema files to field types.
var aliases = map[string]Type{
	"bool":      TypeBool,
	"boolean":   TypeBool,
	"time":      TypeTime,
	"timestamp": TypeTime,
	"datetime":  TypeTime,
	"date":      TypeTime,
	"json":      TypeJSON,
	"uuid":      TypeUUID,
	"bytes":     TypeBytes,
	"binary":    TypeBytes,
	"enum":      TypeEnum,
	"string":    TypeString,
	"text":      TypeString,
	"password":  TypeString,
	"other":     TypeOther,
	"int":       TypeInt,
	"integer":   TypeInt,
	"int8":      TypeInt8,
	"int16":     TypeInt16,
	"int32":     TypeInt32,
	"int64":     TypeInt64,
	"uint":      TypeUint,
	"uint8":     TypeUint8,
	"uint16":    TypeUint16,
	"uint32":    TypeUint32,
	"uint64":    TypeUint64,
	"float":     TypeFloat64,
	"float32":   TypeFloat32,
	"float64":   TypeFloat64,
}

// ParseType returns the field type for a schema-file name such as "int64",
// "string" or "datetime". It returns TypeInvalid for unknown names.
func ParseType(name string) Type {
	return aliases[strings.ToLower(strings.TrimSpace(name))]
}

// physical patterns are evaluated in order; the first match wins.
var physical = []struct {
	re  *regexp.Regexp
	typ Type
}{
	{regexp.MustCompile(`(?i)^BIGINT`), TypeInt64},
	{regexp.MustCompile(`(?i)INT`), TypeInt},
	{regexp.MustCompile(`(?i)^BOOL`), TypeBool},
	{regexp.MustCompile(`(?i)^(DEC|NUMERIC$|FLOAT$|DOUBLE|REAL)`), TypeFloat64},
	{regexp.MustCompile(`(?i)^UUID$`), TypeUUID},
	{regexp.MustCompile(`(?i)^JSON`), TypeJSON},
	{regexp.MustCompile(`(?i)(CHAR|TEXT|^ENUM$|^SET$|^TIME$|^YEAR$)`), TypeString},
	{regexp.MustCompile(`(?i)^(TIMESTAMP|DATETIME|DATE)$`), TypeTime},
	{regexp.MustCompile(`(?i)(BINARY|BLOB|BYTEA)`), TypeBytes},
	{regexp.MustCompile(`(?i)^BIT$`), TypeInt},
}

// FromPhysical infers the semantic type of a column from its database type
// (e.g. "INT(11) UNSIGNED", "VARCHAR(255)", "DATETIME"). Unrecognised types
// are treated as strings.
func FromPhysical(dbtype string) Type {
	dbtype = strings.TrimSpace(dbtype)
	if dbtype == "" {
		return TypeString
	}
	base := dbtype
	if i := strings.IndexAny(base, "( "); i > 0 {
		base = base[:i]
	}
	for _, p := range physical {
		if p.re.MatchString(base) {
			return p.typ
		}
	}
	return TypeString
}
