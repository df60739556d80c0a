package sqldsl

import "testing"

func TestOperators_SQL(t *testing.T) {
	a, b := Raw("a"), Raw("b")
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"eq", Eq{Left: a, Right: b}, "a = b"},
		{"lte", Lte{Left: a, Right: b}, "a <= b"},
		{"nested arithmetic keeps grouping", Mul{Left: Add{Left: a, Right: b}, Right: Int(2)}, "((a + b) * 2)"},
		{"div", Div{Left: a, Right: NullIf(b, Int(0))}, "(a / NULLIF(b, 0))"},
		{"neg", Neg{Expr: a}, "(-a)"},
		{"and drops nils", And(a, nil, b), "(a AND b)"},
		{"and single", And(a), "a"},
		{"and empty", And(), "TRUE"},
		{"or empty", Or(), "FALSE"},
		{"not", Not(a), "NOT (a)"},
		{"is null", IsNull{Expr: a}, "a IS NULL"},
		{"in list", InList{Expr: a, Values: []Expr{Lit("x"), Lit("y")}}, "a IN ('x', 'y')"},
		{"empty in list", InList{Expr: a}, "FALSE"},
		{"concat", Concat{Parts: []Expr{a, Lit("-"), b}}, "(a || '-' || b)"},
		{"substr", Substr{Source: a, Start: Int(1), Length: Int(4)}, "SUBSTR(a, 1, 4)"},
		{"literal escaping", Lit("O'Brien"), "'O''Brien'"},
		{
			"case",
			CaseExpr{
				Whens: []CaseWhen{{Cond: IsNull{Expr: a}, Result: Null{}}, {Cond: Gt{Left: a, Right: Int(0)}, Result: Bool(true)}},
				Else:  Bool(false),
			},
			"CASE WHEN a IS NULL THEN NULL WHEN a > 0 THEN TRUE ELSE FALSE END",
		},
		{"case without whens", CaseExpr{Else: Int(1)}, "1"},
		{
			"exists",
			Exists{Query: SelectStmt{From: []TableExpr{RawTable("json_each(x) AS c1")}}},
			"EXISTS (SELECT 1 FROM json_each(x) AS c1)",
		},
		{
			"scalar subquery",
			Subquery{Stmt: SelectStmt{ColumnExprs: []Expr{Raw("c1.value")}, From: []TableExpr{RawTable("json_each(x) AS c1")}, Limit: 1}},
			"(SELECT c1.value FROM json_each(x) AS c1 LIMIT 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}
