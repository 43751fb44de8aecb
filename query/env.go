package query

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/schema"
)

// Policy decides whether a query may run. It may also narrow the query,
// for example by adding conditions.
type Policy interface {
	EvalQuery(context.Context, *Criteria) error
}

// Env carries what every query needs: the metadata registry, the target
// dialect, and the optional driver, logger, cache and policy.
type Env struct {
	reg      schema.Registry
	dialect  string
	compiler Compiler
	cerr     error
	driver   dialect.Driver
	logger   *slog.Logger
	cache    quarry.Cache
	ttl      time.Duration
	policy   Policy
	flight   singleflight.Group
}

// Option configures an Env.
type Option func(*Env)

// WithDialect sets the SQL dialect statements are compiled for. It defaults
// to the driver's dialect, or MySQL when no driver is set.
func WithDialect(name string) Option {
	return func(e *Env) {
		e.dialect = name
	}
}

// WithDriver sets the driver used to run statements.
func WithDriver(drv dialect.Driver) Option {
	return func(e *Env) {
		e.driver = drv
	}
}

// WithLogger sets the logger receiving parse and compile diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Env) {
		e.logger = l
	}
}

// WithCache enables the result cache. A zero ttl keeps entries until they
// are deleted.
func WithCache(c quarry.Cache, ttl time.Duration) Option {
	return func(e *Env) {
		e.cache = c
		e.ttl = ttl
	}
}

// WithPolicy sets the policy evaluated before every statement runs.
func WithPolicy(p Policy) Option {
	return func(e *Env) {
		e.policy = p
	}
}

// NewEnv returns an Env reading entity metadata from reg.
func NewEnv(reg schema.Registry, opts ...Option) *Env {
	e := &Env{reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.dialect == "" {
		e.dialect = dialect.MySQL
		if e.driver != nil {
			e.dialect = e.driver.Dialect()
		}
	}
	e.compiler, e.cerr = NewCompiler(e.dialect)
	return e
}

// Registry returns the metadata registry.
func (e *Env) Registry() schema.Registry { return e.reg }

// Dialect returns the dialect name statements are compiled for.
func (e *Env) Dialect() string { return e.dialect }

// Logger returns the diagnostics logger.
func (e *Env) Logger() *slog.Logger { return e.logger }

// Query starts a SELECT over typ. The alias defaults to the type name.
func (e *Env) Query(typ string, alias ...string) *Criteria {
	return newCriteria(e, typ, alias...)
}

// Compile compiles c with the Env's dialect.
func (e *Env) Compile(c *Criteria) (*Statement, error) {
	if e.cerr != nil {
		return nil, e.cerr
	}
	return e.compiler.Compile(c)
}

func injection(clause string) error {
	return quarry.NewInjectionError(clause)
}
