package sqlgen

import (
	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/schema"
)

// typeOperation implements "is", "as" and ofType.
//
// Types are resolved statically from the element definitions. The only
// runtime test is for choice elements, where the JSON property that
// carries the value names its type.
func (t *Translator) typeOperation(n *ast.TypeOperation) (operand, error) {
	typeName := schema.NormalizeTypeName(n.TypeName)
	if !t.knownType(typeName) {
		return operand{}, &UnsupportedOperationError{Kind: "type", Token: n.TypeName}
	}

	op, err := t.sub(n.Operand)
	if err != nil {
		return operand{}, err
	}
	if n.Op != "ofType" {
		op = t.singular(op)
	}

	if op.choice != nil {
		return t.choiceType(n.Op, op, typeName), nil
	}
	if op.fhirType == "" {
		return operand{}, &UnsupportedOperationError{
			Kind:  "type",
			Token: n.TypeName,
			Hint:  "the type of " + n.Operand.String() + " is not known",
		}
	}

	match := typeMatches(op.fhirType, typeName)
	if n.Op == "is" {
		out := op.derive(sqldsl.CaseExpr{
			Whens: []sqldsl.CaseWhen{{Cond: sqldsl.IsNull{Expr: sqldsl.Raw(op.sql)}, Result: sqldsl.Null{}}},
			Else:  sqldsl.Bool(match),
		}.SQL())
		out.json, out.fhirType = false, "boolean"
		return out, nil
	}
	if match {
		return op, nil
	}
	out := op.derive(sqldsl.Null{}.SQL())
	out.json = false
	return out, nil
}

// choiceType resolves a type operation over a value[x] element by testing
// the property for the requested type.
func (t *Translator) choiceType(kind string, op operand, typeName string) operand {
	field, ok := op.choice.ChoiceField(typeName)
	var value sqldsl.Expr = sqldsl.Null{}
	if ok {
		value = sqldsl.Raw(t.dialect.JSONField(op.choiceBase, field))
	}

	if kind == "is" {
		out := op.derive(sqldsl.CaseExpr{
			Whens: []sqldsl.CaseWhen{{Cond: sqldsl.IsNull{Expr: sqldsl.Raw(op.sql)}, Result: sqldsl.Null{}}},
			Else:  sqldsl.IsNotNull{Expr: value},
		}.SQL())
		out.json, out.fhirType = false, "boolean"
		return out
	}

	out := op.derive(value.SQL())
	out.json = ok
	if ok {
		out.fhirType = declaredChoice(*op.choice, typeName)
	}
	return out
}

// declaredChoice returns the spelling the element definition uses for a
// choice type, e.g. "quantity" becomes "Quantity".
func declaredChoice(el schema.Element, typeName string) string {
	for _, c := range el.Choices {
		if schema.SameType(c, typeName) {
			return c
		}
	}
	return typeName
}

func (t *Translator) knownType(name string) bool {
	if c := schema.Classify(name); c != schema.CategoryComplex && c != schema.CategoryUnknown {
		return true
	}
	return t.registry.HasType(name)
}

// typeMatches reports whether a value declared as have satisfies a test
// for want. The quantity specializations also satisfy Quantity.
func typeMatches(have, want string) bool {
	if schema.SameType(have, want) {
		return true
	}
	return schema.SameType(want, "Quantity") && isQuantityType(have)
}
