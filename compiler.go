package fhirsql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pthm/fhirsql/internal/sqlgen"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/dialect/postgres"
	"github.com/pthm/fhirsql/pkg/dialect/sqlite"
	"github.com/pthm/fhirsql/pkg/parser"
	"github.com/pthm/fhirsql/pkg/schema"
)

// Plan is the full output of a compilation: the translated fragments, the
// blocks built from them and the assembled statement. Plans returned from a
// cache are shared and must be treated as read-only.
type Plan struct {
	Expression   string            `json:"expression"`
	ResourceType string            `json:"resource_type"`
	BaseTable    string            `json:"base_table"`
	Dialect      string            `json:"dialect"`
	Fragments    []sqlgen.Fragment `json:"fragments"`
	Blocks       []sqlgen.CTE      `json:"blocks"`
	SQL          string            `json:"sql"`
}

// Compiler compiles FHIRPath expressions for one SQL dialect.
//
// A Compiler is safe for concurrent use. Each compilation builds its own
// translator, so no state is shared between calls except the optional cache.
type Compiler struct {
	dialect      dialect.Dialect
	registry     schema.Registry
	resourceType string
	baseTable    string
	logger       *slog.Logger
	cache        Cache
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithResourceType fixes the resource type expressions are evaluated on.
// Without it the type is inferred from the leftmost identifier.
func WithResourceType(resourceType string) Option {
	return func(c *Compiler) {
		c.resourceType = resourceType
	}
}

// WithBaseTable overrides the table resources are read from. Defaults to
// the lower-cased resource type.
func WithBaseTable(table string) Option {
	return func(c *Compiler) {
		c.baseTable = table
	}
}

// WithRegistry sets the element registry used to resolve cardinality,
// types and choice elements. Defaults to the bundled R4 registry.
func WithRegistry(r schema.Registry) Option {
	return func(c *Compiler) {
		c.registry = r
	}
}

// WithLogger sets the logger for debug records. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithCache enables plan caching for the string entry points.
func WithCache(cache Cache) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

// New creates a compiler for d.
func New(d dialect.Dialect, opts ...Option) (*Compiler, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil dialect", ErrUnknownDialect)
	}
	c := &Compiler{dialect: d}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		reg, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default registry: %w", err)
		}
		c.registry = reg
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// Dialect returns the dialect the compiler emits.
func (c *Compiler) Dialect() dialect.Dialect { return c.dialect }

// Compile returns the SQL statement for root.
func (c *Compiler) Compile(root ast.Node) (string, error) {
	p, err := c.Plan(root)
	if err != nil {
		return "", err
	}
	return p.SQL, nil
}

// CompileString parses expr and returns its SQL statement.
func (c *Compiler) CompileString(expr string) (string, error) {
	p, err := c.PlanString(expr)
	if err != nil {
		return "", err
	}
	return p.SQL, nil
}

// PlanString parses expr and plans it, consulting the cache when one is
// configured. Failed compilations are cached too.
func (c *Compiler) PlanString(expr string) (*Plan, error) {
	key := CacheKey{
		Dialect:      c.dialect.Name(),
		ResourceType: c.resourceType,
		BaseTable:    c.baseTable,
		Expression:   expr,
	}
	if c.cache != nil {
		if p, err, ok := c.cache.Get(key); ok {
			c.logger.Debug("plan cache hit", "expression", expr)
			return p, err
		}
	}

	p, err := c.planString(expr)
	if c.cache != nil {
		c.cache.Set(key, p, err)
	}
	return p, err
}

func (c *Compiler) planString(expr string) (*Plan, error) {
	root, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	p, err := c.Plan(root)
	if err != nil {
		return nil, err
	}
	p.Expression = expr
	return p, nil
}

// Plan translates, builds and assembles root.
func (c *Compiler) Plan(root ast.Node) (*Plan, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil expression", ErrUnsupportedOperation)
	}
	resourceType := c.resourceType
	if resourceType == "" {
		resourceType = InferResourceType(root, c.registry)
		if resourceType == "" {
			return nil, fmt.Errorf("%w: cannot infer the resource type of %s", ErrResourceType, root)
		}
	} else if !c.registry.IsResource(resourceType) {
		return nil, fmt.Errorf("%w: %s is not a known resource", ErrResourceType, resourceType)
	}

	tr := sqlgen.NewTranslator(c.dialect, c.registry, sqlgen.TranslatorOptions{
		ResourceType: resourceType,
		BaseTable:    c.baseTable,
	})
	frags, err := tr.Translate(root)
	if err != nil {
		return nil, fmt.Errorf("translating %s: %w", root, err)
	}
	blocks, err := sqlgen.NewBuilder(c.dialect).Build(frags, tr.BaseTable())
	if err != nil {
		return nil, fmt.Errorf("building blocks: %w", err)
	}
	query, err := sqlgen.Assemble(blocks)
	if err != nil {
		return nil, fmt.Errorf("assembling statement: %w", err)
	}

	c.logger.Debug("compiled expression",
		"expression", root.String(),
		"dialect", c.dialect.Name(),
		"resource_type", resourceType,
		"fragments", len(frags),
		"blocks", len(blocks),
	)

	return &Plan{
		Expression:   root.String(),
		ResourceType: resourceType,
		BaseTable:    tr.BaseTable(),
		Dialect:      c.dialect.Name(),
		Fragments:    frags,
		Blocks:       blocks,
		SQL:          query,
	}, nil
}

// Evaluate compiles expr and runs it through q, returning one row per
// result. Rows come back in the order the engine produces them.
func (c *Compiler) Evaluate(ctx context.Context, q Querier, expr string) ([]Row, error) {
	p, err := c.PlanString(expr)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, p.SQL)
	if err != nil {
		return nil, mapError("evaluating "+expr, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var id, result sql.NullString
		if err := rows.Scan(&id, &result); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r := Row{ID: id.String}
		if result.Valid {
			r.Result = &result.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("evaluating "+expr, err)
	}
	return out, nil
}

// InferResourceType returns the resource type named by the leftmost
// identifier of root, or "" when it does not name a resource.
func InferResourceType(root ast.Node, reg schema.Registry) string {
	n := root
	for {
		switch v := n.(type) {
		case *ast.Identifier:
			if reg.IsResource(v.Name) {
				return v.Name
			}
			return ""
		case *ast.PathStep:
			n = v.Target
		case *ast.FunctionCall:
			n = v.Target
		case *ast.Aggregation:
			n = v.Target
		case *ast.TypeOperation:
			n = v.Operand
		case *ast.UnaryOp:
			n = v.Operand
		case *ast.BinaryOp:
			n = v.Left
		case *ast.Conditional:
			n = v.Condition
		default:
			return ""
		}
		if n == nil {
			return ""
		}
	}
}

// DialectByName returns the dialect adapter for name. Accepted names are
// postgres (postgresql, pg) and sqlite (sqlite3), in any case.
func DialectByName(name string) (dialect.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return postgres.New(), nil
	case "sqlite", "sqlite3":
		return sqlite.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}
