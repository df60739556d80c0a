package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// fhirpathLexer tokenizes FHIRPath. Keywords (and, or, is, div, true, ...)
// lex as Ident and are matched by value in the grammar, so they stay usable
// as function names after a dot.
var fhirpathLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|/\*(?:[^*]|\*[^/])*\*/`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	// Temporal literals must come before Punct so that "@" never lexes alone.
	{Name: "Temporal", Pattern: `@(?:T\d{2}(?::\d{2}(?::\d{2}(?:\.\d+)?)?)?|\d{4}(?:-\d{2}(?:-\d{2})?)?(?:T(?:\d{2}(?::\d{2}(?::\d{2}(?:\.\d+)?)?)?(?:Z|[+-]\d{2}:\d{2})?)?)?)`},

	{Name: "String", Pattern: `'(?:\\.|[^'\\])*'`},
	{Name: "Delimited", Pattern: "`(?:\\\\.|[^`\\\\])*`"},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Variable", Pattern: `\$[A-Za-z]+`},
	{Name: "External", Pattern: `%[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},

	// Two-character operators first.
	{Name: "Punct", Pattern: `!=|!~|<=|>=|[-+*/&|=~<>(),.\[\]{}]`},
})

// The grammar has one struct per precedence level, loosest first. Each
// level holds its first operand and a tail of (operator, operand) pairs
// that fold to the left.

type expression struct {
	Left *orExpr        `@@`
	Tail []*impliesTail `@@*`
}

type impliesTail struct {
	Op    string  `@"implies"`
	Right *orExpr `@@`
}

type orExpr struct {
	Left *andExpr  `@@`
	Tail []*orTail `@@*`
}

type orTail struct {
	Op    string   `@("or" | "xor")`
	Right *andExpr `@@`
}

type andExpr struct {
	Left *membershipExpr `@@`
	Tail []*andTail      `@@*`
}

type andTail struct {
	Op    string          `@"and"`
	Right *membershipExpr `@@`
}

type membershipExpr struct {
	Left *equalityExpr     `@@`
	Tail []*membershipTail `@@*`
}

type membershipTail struct {
	Op    string        `@("in" | "contains")`
	Right *equalityExpr `@@`
}

type equalityExpr struct {
	Left *inequalityExpr `@@`
	Tail []*equalityTail `@@*`
}

type equalityTail struct {
	Op    string          `@("=" | "~" | "!=" | "!~")`
	Right *inequalityExpr `@@`
}

type inequalityExpr struct {
	Left *unionExpr        `@@`
	Tail []*inequalityTail `@@*`
}

type inequalityTail struct {
	Op    string     `@("<=" | "<" | ">=" | ">")`
	Right *unionExpr `@@`
}

type unionExpr struct {
	Left *typeExpr    `@@`
	Tail []*unionTail `@@*`
}

type unionTail struct {
	Op    string    `@"|"`
	Right *typeExpr `@@`
}

// typeExpr is the is/as level. Its right-hand side is a type specifier,
// not an expression.
type typeExpr struct {
	Left *additiveExpr `@@`
	Tail []*typeTail   `@@*`
}

type typeTail struct {
	Pos  lexer.Position
	Op   string   `@("is" | "as")`
	Type []string `@(Ident | Delimited) ( "." @(Ident | Delimited) )*`
}

type additiveExpr struct {
	Left *multiplicativeExpr `@@`
	Tail []*additiveTail     `@@*`
}

type additiveTail struct {
	Op    string              `@("+" | "-" | "&")`
	Right *multiplicativeExpr `@@`
}

type multiplicativeExpr struct {
	Left *unaryExpr            `@@`
	Tail []*multiplicativeTail `@@*`
}

type multiplicativeTail struct {
	Op    string     `@("*" | "/" | "div" | "mod")`
	Right *unaryExpr `@@`
}

type unaryExpr struct {
	Signs   []string     `@("+" | "-")*`
	Operand *postfixExpr `@@`
}

type postfixExpr struct {
	Term *term      `@@`
	Ops  []*postfix `@@*`
}

type postfix struct {
	Pos    lexer.Position
	Member *invocation `  "." @@`
	Index  *expression `| "[" @@ "]"`
}

type term struct {
	Pos      lexer.Position
	Group    *expression `  "(" @@ ")"`
	Null     bool        `| @( "{" "}" )`
	Boolean  *string     `| @( "true" | "false" )`
	String   *string     `| @String`
	Temporal *string     `| @Temporal`
	Quantity *quantity   `| @@`
	External *string     `| @External`
	Call     *invocation `| @@`
}

// quantity is a number with an optional UCUM unit string or calendar
// duration keyword. Without a unit it is a plain integer or decimal.
type quantity struct {
	Number string  `@Number`
	Unit   *string `( @String | @( "years" | "year" | "months" | "month" | "weeks" | "week" | "days" | "day" | "hours" | "hour" | "minutes" | "minute" | "seconds" | "second" | "milliseconds" | "millisecond" ) )?`
}

// invocation is a member name, optionally called with arguments.
type invocation struct {
	Pos  lexer.Position
	Name string   `@(Ident | Delimited | Variable)`
	Call *argList `@@?`
}

type argList struct {
	Args []*expression `"(" ( @@ ( "," @@ )* )? ")"`
}

var grammar = participle.MustBuild[expression](
	participle.Lexer(fhirpathLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String", "Delimited"),
	participle.UseLookahead(4),
)
