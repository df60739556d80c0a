// Package compiler exposes the stages of the FHIRPath-to-SQL pipeline.
//
// This is a thin wrapper around internal/sqlgen for callers that want to
// inspect or drive the stages themselves. Most code should use the root
// fhirsql package, which runs all three stages and caches the result.
//
//	reg, err := schema.Default()
//	t := compiler.NewTranslator(d, reg, compiler.TranslatorOptions{ResourceType: "Patient"})
//	frags, err := t.Translate(root)
//	blocks, err := compiler.NewBuilder(d).Build(frags, t.BaseTable())
//	sql, err := compiler.Assemble(blocks)
package compiler

import (
	"github.com/pthm/fhirsql/internal/sqlgen"
)

// Fragment is a partial SQL expression produced by translation.
type Fragment = sqlgen.Fragment

// CTE is a named block of the final WITH statement.
type CTE = sqlgen.CTE

// Translator converts an expression tree into fragments.
type Translator = sqlgen.Translator

// TranslatorOptions configures a Translator.
type TranslatorOptions = sqlgen.TranslatorOptions

// Builder wraps fragments into blocks.
type Builder = sqlgen.Builder

// NewTranslator creates a Translator for one dialect and registry.
var NewTranslator = sqlgen.NewTranslator

// NewBuilder creates a Builder for one dialect.
var NewBuilder = sqlgen.NewBuilder

// Assemble orders blocks by dependency and renders the WITH statement.
var Assemble = sqlgen.Assemble

// BlockName returns the block name for the fragment at a 0-based index.
var BlockName = sqlgen.BlockName
