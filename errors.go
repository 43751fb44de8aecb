package quarry

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a query expecting a row returns none.
	ErrNotFound = errors.New("quarry: entity not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("quarry: entity not singular")

	// ErrQueryExpression is matched by every QueryExpressionError.
	ErrQueryExpression = errors.New("quarry: invalid query expression")

	// ErrInjection is matched by every InjectionError.
	ErrInjection = errors.New("quarry: sql injection rejected")

	// ErrCompile is matched by every CompileError.
	ErrCompile = errors.New("quarry: compile failed")

	// ErrExecution is matched by every ExecutionError.
	ErrExecution = errors.New("quarry: execution failed")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("quarry: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("quarry: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int // Number of results returned (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("quarry: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("quarry: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Count returns the number of results, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// QueryExpressionError reports a malformed filter expression, such as a key
// that names no field of the target type or an unsupported operator.
type QueryExpressionError struct {
	Expr   string // Offending key or expression, as written by the caller
	Reason string
}

// Error returns the error string.
func (e *QueryExpressionError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("quarry: invalid query expression: %s", e.Reason)
	}
	return fmt.Sprintf("quarry: invalid query expression %q: %s", e.Expr, e.Reason)
}

// Is reports whether the target error matches ErrQueryExpression.
func (e *QueryExpressionError) Is(err error) bool {
	return err == ErrQueryExpression
}

// NewQueryExpressionError returns a new QueryExpressionError.
func NewQueryExpressionError(expr, reason string) *QueryExpressionError {
	return &QueryExpressionError{Expr: expr, Reason: reason}
}

// IsQueryExpressionError returns true if the error is a QueryExpressionError.
func IsQueryExpressionError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryExpressionError
	return errors.As(err, &e)
}

// InjectionError reports a raw SQL fragment rejected by the injection guard.
type InjectionError struct {
	Clause string
}

// Error returns the error string.
func (e *InjectionError) Error() string {
	return fmt.Sprintf("quarry: sql injection attempt detected: %s", e.Clause)
}

// Is reports whether the target error matches ErrInjection.
func (e *InjectionError) Is(err error) bool {
	return err == ErrInjection
}

// NewInjectionError returns a new InjectionError for the rejected clause.
func NewInjectionError(clause string) *InjectionError {
	return &InjectionError{Clause: clause}
}

// IsInjectionError returns true if the error is an InjectionError.
func IsInjectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *InjectionError
	return errors.As(err, &e)
}

// CompileError reports that no statement could be assembled.
type CompileError struct {
	Entity string
	Reason string
}

// Error returns the error string.
func (e *CompileError) Error() string {
	return fmt.Sprintf("quarry: compiling %s: %s", e.Entity, e.Reason)
}

// Is reports whether the target error matches ErrCompile.
func (e *CompileError) Is(err error) bool {
	return err == ErrCompile
}

// NewCompileError returns a new CompileError.
func NewCompileError(entity, reason string) *CompileError {
	return &CompileError{Entity: entity, Reason: reason}
}

// IsCompileError returns true if the error is a CompileError.
func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompileError
	return errors.As(err, &e)
}

// ExecutionError wraps a failure reported by the execution layer. The driver
// message is forwarded as is.
type ExecutionError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "select", "count", "exec")
	Err    error  // Underlying driver error
}

// Error returns the error string.
func (e *ExecutionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("quarry: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("quarry: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrExecution.
func (e *ExecutionError) Is(err error) bool {
	return err == ErrExecution
}

// NewExecutionError returns a new ExecutionError.
func NewExecutionError(entity, op string, err error) *ExecutionError {
	return &ExecutionError{Entity: entity, Op: op, Err: err}
}

// IsExecutionError returns true if the error is an ExecutionError.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecutionError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("quarry: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "quarry: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("quarry: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors so errors.Is and errors.As see each one.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
