package sqlgen

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/schema"
)

// TranslatorOptions configures a Translator.
type TranslatorOptions struct {
	// ResourceType is the resource the expression is evaluated on.
	ResourceType string
	// BaseTable is the table holding ResourceType resources. Defaults to the
	// lower-cased resource type.
	BaseTable string
}

// Translator turns an AST into an ordered list of fragments.
//
// Array-valued path steps at the top level of the expression (the spine)
// become unnest fragments whose blocks later fan out to one row per
// element. Inside criteria (where, exists, all, aggregates evaluated per
// element) arrays stay inline as correlated subqueries, so no block is ever
// emitted from a nested scope.
//
// A Translator may be reused sequentially but not concurrently.
type Translator struct {
	dialect  dialect.Dialect
	registry schema.Registry
	resource string
	base     string

	ctx       Context
	fragments []Fragment
	aliasSeq  int
}

// NewTranslator returns a translator for one resource type.
func NewTranslator(d dialect.Dialect, reg schema.Registry, opts TranslatorOptions) *Translator {
	base := opts.BaseTable
	if base == "" {
		base = schema.TableName(opts.ResourceType)
	}
	return &Translator{
		dialect:  d,
		registry: reg,
		resource: opts.ResourceType,
		base:     base,
	}
}

// BaseTable returns the table the translation reads resources from.
func (t *Translator) BaseTable() string { return t.base }

// Translate produces the fragments for root. The last fragment is the
// result; fragment i becomes block BlockName(i).
func (t *Translator) Translate(root ast.Node) ([]Fragment, error) {
	t.reset()
	op, err := t.visit(root)
	if err != nil {
		return nil, err
	}
	t.finish(op, isAggregateRoot(root))
	return t.fragments, nil
}

func (t *Translator) reset() {
	t.ctx = Context{
		Source:       t.base,
		Focus:        t.base + ".resource",
		IDColumn:     t.base + "." + idColumnName,
		ResourceType: t.resource,
		FocusType:    t.resource,
		focusJSON:    true,
	}
	t.fragments = nil
	t.aliasSeq = 0
}

// finish appends the result fragment.
func (t *Translator) finish(root operand, aggregate bool) {
	root = t.singular(root)
	source, id := root.source, root.idColumn
	if source == "" {
		source, id = t.base, t.base+"."+idColumnName
	}
	t.fragments = append(t.fragments, Fragment{
		Expression:   t.output(root),
		Source:       source,
		IsAggregate:  aggregate,
		Dependencies: root.deps.with(t.blockDeps(source)...),
		Metadata: map[string]string{
			MetaResultAlias: defaultResultAlias,
			MetaIDColumn:    id,
		},
	})
}

// output renders primitive JSON values as text; complex values stay JSON.
func (t *Translator) output(o operand) string {
	if !o.json {
		return o.sql
	}
	switch o.category() {
	case schema.CategoryComplex, schema.CategoryUnknown:
		return o.sql
	}
	return t.dialect.JSONText(o.sql)
}

func isAggregateRoot(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Aggregation:
		return true
	case *ast.FunctionCall:
		fn, ok := LookupFunction(n.Name)
		return ok && fn.IsAggregate()
	}
	return false
}

func (t *Translator) visit(n ast.Node) (operand, error) {
	switch n := n.(type) {
	case *ast.Literal:
		return t.literal(n)
	case *ast.Identifier:
		return t.identifier(n)
	case *ast.PathStep:
		return t.pathStep(n)
	case *ast.FunctionCall:
		return t.functionCall(n)
	case *ast.UnaryOp:
		return t.unary(n)
	case *ast.BinaryOp:
		return t.binary(n)
	case *ast.Conditional:
		return t.conditional(n)
	case *ast.Aggregation:
		return t.aggregation(n)
	case *ast.TypeOperation:
		return t.typeOperation(n)
	case nil:
		return operand{}, &UnsupportedOperationError{Kind: "node", Token: "<nil>"}
	default:
		return operand{}, &UnsupportedOperationError{Kind: "node", Token: fmt.Sprintf("%T", n)}
	}
}

// sub translates n in its own scope.
func (t *Translator) sub(n ast.Node) (operand, error) {
	var out operand
	err := t.ctx.Scoped(func() error {
		var err error
		out, err = t.visit(n)
		return err
	})
	return out, err
}

// nested translates n one criteria level deeper, keeping arrays inline.
func (t *Translator) nested(n ast.Node) (operand, error) {
	var out operand
	err := t.ctx.Scoped(func() error {
		t.ctx.Depth++
		var err error
		out, err = t.visit(n)
		return err
	})
	return out, err
}

func (t *Translator) nextAlias() string {
	t.aliasSeq++
	return "c" + strconv.Itoa(t.aliasSeq)
}

// focus returns the current item as an operand.
func (t *Translator) focus() operand {
	return operand{
		sql:      t.ctx.Focus,
		source:   t.ctx.Source,
		idColumn: t.ctx.IDColumn,
		deps:     t.blockDeps(t.ctx.Source),
		json:     t.ctx.focusJSON,
		fhirType: t.ctx.FocusType,
	}
}

// resourceRoot returns the resource being evaluated. Outside the base
// table's scope the resource is fetched through the identity column.
func (t *Translator) resourceRoot() operand {
	root := operand{
		sql:      t.base + ".resource",
		source:   t.base,
		idColumn: t.base + "." + idColumnName,
		json:     true,
		fhirType: t.resource,
	}
	if t.ctx.Source == t.base {
		return root
	}
	return t.lift(root, operand{source: t.ctx.Source, idColumn: t.ctx.IDColumn})
}

var decimalLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func (t *Translator) literal(l *ast.Literal) (operand, error) {
	out := operand{literal: true}
	switch l.Kind {
	case ast.LiteralNull:
		out.sql = sqldsl.Null{}.SQL()
	case ast.LiteralBoolean:
		b, err := strconv.ParseBool(l.Value)
		if err != nil {
			return operand{}, &LiteralError{Literal: l.String(), Reason: "not a boolean", Err: err}
		}
		out.sql, out.fhirType = sqldsl.Bool(b).SQL(), "boolean"
	case ast.LiteralString:
		if strings.ContainsAny(l.Value, "\r\n") {
			return operand{}, &LiteralError{Literal: l.String(), Reason: "line breaks are not supported in string literals"}
		}
		out.sql, out.fhirType = sqldsl.Lit(l.Value).SQL(), "string"
	case ast.LiteralInteger:
		v, err := strconv.ParseInt(l.Value, 10, 64)
		if err != nil {
			return operand{}, &LiteralError{Literal: l.String(), Reason: "not a 64-bit integer", Err: err}
		}
		out.sql, out.fhirType = sqldsl.Int(v).SQL(), "integer"
	case ast.LiteralDecimal, ast.LiteralQuantity:
		if !decimalLiteral.MatchString(l.Value) {
			return operand{}, &LiteralError{Literal: l.String(), Reason: "not a decimal number"}
		}
		out.sql, out.fhirType = sqldsl.Num(l.Value).SQL(), "decimal"
		if l.Kind == ast.LiteralQuantity {
			out.fhirType = "Quantity"
		}
	case ast.LiteralDate, ast.LiteralDateTime, ast.LiteralTime:
		tm := l.Temporal
		if tm == nil {
			var err error
			if tm, err = ast.ParseTemporal(l.Kind, l.Value); err != nil {
				return operand{}, &LiteralError{Literal: l.String(), Reason: err.Error(), Err: err}
			}
		}
		out.sql = sqldsl.Lit(strings.TrimPrefix(l.Value, "T")).SQL()
		out.fhirType = l.Kind.String()
		out.temporal = tm
	default:
		return operand{}, &LiteralError{Literal: l.String(), Reason: "unknown literal kind " + l.Kind.String()}
	}
	return out, nil
}

func (t *Translator) identifier(n *ast.Identifier) (operand, error) {
	switch {
	case n.Name == "$this":
		return t.focus(), nil
	case n.Name == "%resource", n.Name == "%context", n.Name == "%rootResource":
		return t.resourceRoot(), nil
	case strings.HasPrefix(n.Name, "$"), strings.HasPrefix(n.Name, "%"):
		return operand{}, &UnsupportedOperationError{Kind: "variable", Token: n.Name}
	case t.registry.IsResource(n.Name):
		if n.Name != t.resource {
			return operand{}, &UnsupportedOperationError{
				Kind:  "resource type",
				Token: n.Name,
				Hint:  "expression is compiled against " + t.resource,
			}
		}
		if t.ctx.Source == t.base && t.ctx.FocusType == t.resource && t.ctx.Depth == 0 {
			return t.focus(), nil
		}
		return t.resourceRoot(), nil
	}
	return t.navigate(t.focus(), n.Name)
}

func (t *Translator) pathStep(n *ast.PathStep) (operand, error) {
	var target operand
	var err error
	if n.Target == nil {
		target = t.focus()
	} else if target, err = t.visit(n.Target); err != nil {
		return operand{}, err
	}
	return t.navigate(target, n.Name)
}

// element looks name up on typeName. Unknown types navigate leniently as
// single-valued elements of unknown type; unknown elements of a known
// resource are an error.
func (t *Translator) element(typeName, name string) (schema.Element, error) {
	if typeName == "" {
		return schema.Element{Name: name}, nil
	}
	if el, ok := t.registry.Element(typeName, name); ok {
		return el, nil
	}
	if t.registry.IsResource(typeName) {
		return schema.Element{}, &UnsupportedOperationError{Kind: "element", Token: typeName + "." + name}
	}
	return schema.Element{Name: name}, nil
}

func (t *Translator) navigate(target operand, name string) (operand, error) {
	if !target.json {
		return operand{}, &UnsupportedOperationError{
			Kind:  "path",
			Token: name,
			Hint:  "cannot navigate into a computed value",
		}
	}
	el, err := t.element(target.fhirType, name)
	if err != nil {
		return operand{}, err
	}

	if el.IsChoice() {
		fields := el.ChoiceFields()
		exprs := make([]sqldsl.Expr, len(fields))
		for i, f := range fields {
			exprs[i] = sqldsl.Raw(t.dialect.JSONField(target.sql, f))
		}
		out := target.derive(sqldsl.Coalesce(exprs...).SQL())
		out.fhirType = ""
		out.choice = &el
		out.choiceBase = target.sql
		return out, nil
	}

	field := t.dialect.JSONField(target.sql, name)
	if !el.Array {
		out := target.derive(field)
		out.fhirType = el.Type
		return out, nil
	}
	if t.ctx.Depth == 0 && !target.isCollection() && target.source != "" {
		return t.unnestBlock(target, field, el.Type), nil
	}
	return t.inlineUnnest(target, field, el.Type), nil
}

// unnestBlock emits a fragment that fans target's array out to one row
// per element and returns the element as read from the new block.
func (t *Translator) unnestBlock(target operand, arrayExpr, elemType string) operand {
	name := BlockName(len(t.fragments))
	deps := target.deps.with(t.blockDeps(target.source)...)
	t.fragments = append(t.fragments, Fragment{
		Expression:     arrayExpr,
		Source:         target.source,
		RequiresUnnest: true,
		Dependencies:   slices.Clone(deps),
		Metadata: map[string]string{
			MetaArrayColumn: arrayExpr,
			MetaResultAlias: defaultItemAlias,
			MetaIDColumn:    target.idColumn,
		},
	})
	return operand{
		sql:      name + "." + defaultItemAlias,
		source:   name,
		idColumn: name + "." + idColumnName,
		deps:     deps.with(name),
		json:     true,
		fhirType: elemType,
	}
}

// inlineUnnest extends target's inline collection with one more flattening
// step.
func (t *Translator) inlineUnnest(target operand, arrayExpr, elemType string) operand {
	alias := t.nextAlias()
	out := target.derive(t.dialect.UnnestRef(alias))
	out.from = append(out.from, t.dialect.Unnest("", arrayExpr, alias))
	out.json = true
	out.fhirType = elemType
	return out
}

// filterBlock emits a fragment keeping the rows of target that satisfy
// cond.
func (t *Translator) filterBlock(target, cond operand) operand {
	name := BlockName(len(t.fragments))
	deps := mergeDeps(target.deps.with(t.blockDeps(target.source)...), cond.deps)
	t.fragments = append(t.fragments, Fragment{
		Expression:   target.sql,
		Source:       target.source,
		Dependencies: slices.Clone(deps),
		Metadata: map[string]string{
			MetaFilter:      cond.sql,
			MetaResultAlias: defaultItemAlias,
			MetaIDColumn:    target.idColumn,
		},
	})
	return operand{
		sql:      name + "." + defaultItemAlias,
		source:   name,
		idColumn: name + "." + idColumnName,
		deps:     deps.with(name),
		json:     target.json,
		fhirType: target.fhirType,
	}
}

// criteria evaluates node once per item of focus and returns it as a
// predicate.
func (t *Translator) criteria(focus operand, node ast.Node) (operand, error) {
	var out operand
	err := t.ctx.Scoped(func() error {
		t.ctx.focusOn(focus)
		t.ctx.Depth++
		op, err := t.visit(node)
		if err != nil {
			return err
		}
		op = t.singular(op)
		if focus.source != "" && op.source != "" && op.source != focus.source {
			op = t.lift(op, focus)
		}
		out = op.derive(t.predicate(op))
		out.json = false
		out.fhirType = "boolean"
		return nil
	})
	return out, err
}
