// Package sqlgraph classifies errors returned by the SQL drivers.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/syssam/quarry"
)

// Constraint is the kind of integrity constraint a statement violated.
type Constraint uint8

// Constraint kinds.
const (
	NoConstraint Constraint = iota
	Unique
	ForeignKey
	Check
	NotNull
)

var constraintNames = [...]string{
	NoConstraint: "none",
	Unique:       "unique",
	ForeignKey:   "foreign key",
	Check:        "check",
	NotNull:      "not null",
}

// String implements fmt.Stringer.
func (c Constraint) String() string {
	if int(c) < len(constraintNames) {
		return constraintNames[c]
	}
	return constraintNames[NoConstraint]
}

// PostgreSQL SQLSTATE codes of class 23 (integrity constraint violation).
var pgCodes = map[pq.ErrorCode]Constraint{
	"23505": Unique,
	"23503": ForeignKey,
	"23514": Check,
	"23502": NotNull,
}

// MySQL server error numbers.
var mysqlCodes = map[uint16]Constraint{
	1062: Unique,     // ER_DUP_ENTRY
	1451: ForeignKey, // ER_ROW_IS_REFERENCED_2
	1452: ForeignKey, // ER_NO_REFERENCED_ROW_2
	3819: Check,      // ER_CHECK_CONSTRAINT_VIOLATED
	1048: NotNull,    // ER_BAD_NULL_ERROR
}

// SQLite extended result codes.
var sqliteCodes = map[int]Constraint{
	2067: Unique, // SQLITE_CONSTRAINT_UNIQUE
	1555: Unique, // SQLITE_CONSTRAINT_PRIMARYKEY
	787:  ForeignKey,
	275:  Check,
	1299: NotNull,
}

// Classify reports which constraint, if any, err was caused by. Typed driver
// errors are inspected first; the message is matched for drivers and
// wrappers that lose the type.
func Classify(err error) Constraint {
	if err == nil {
		return NoConstraint
	}
	var (
		myErr *mysql.MySQLError
		pgErr *pq.Error
		ltErr *sqlite.Error
	)
	switch {
	case errors.As(err, &myErr):
		return mysqlCodes[myErr.Number]
	case errors.As(err, &pgErr):
		return pgCodes[pgErr.Code]
	case errors.As(err, &ltErr):
		return sqliteCodes[ltErr.Code()]
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return Unique
	case containsAny(msg, "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return ForeignKey
	case containsAny(msg, "Error 3819", "violates check constraint", "CHECK constraint failed"):
		return Check
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return NotNull
	}
	return NoConstraint
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return quarry.IsConstraintError(err) || Classify(err) != NoConstraint
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool { return Classify(err) == Unique }

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool { return Classify(err) == ForeignKey }

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool { return Classify(err) == Check }

// IsNotNullConstraintError reports if the error resulted from writing NULL into a NOT NULL column.
func IsNotNullConstraintError(err error) bool { return Classify(err) == NotNull }

// Wrap converts constraint violations into quarry.ConstraintError. Other
// errors are returned unchanged.
func Wrap(err error) error {
	if err == nil || quarry.IsConstraintError(err) {
		return err
	}
	if c := Classify(err); c != NoConstraint {
		return quarry.NewConstraintError(c.String()+": "+err.Error(), err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
