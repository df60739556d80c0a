package sqlgen

// Context is the mutable state of one translation pass. A Translator owns
// exactly one Context; it is never shared between calls.
type Context struct {
	// Source is the table or block the current focus reads from.
	Source string
	// Focus is the SQL expression of the current item ($this).
	Focus string
	// IDColumn is the identity column of Source, qualified.
	IDColumn string
	// ResourceType is the FHIR resource type the expression is evaluated on.
	ResourceType string
	// Depth counts enclosing criteria scopes. At depth 0 array steps emit
	// unnest blocks; deeper they stay inline.
	Depth int
	// FocusType is the FHIR type name of Focus, empty when unknown.
	FocusType string

	focusJSON bool
}

// ContextState is a saved copy of a Context.
type ContextState struct {
	ctx Context
}

// Snapshot captures the current state.
func (c *Context) Snapshot() ContextState {
	return ContextState{ctx: *c}
}

// Restore resets the context to a previously captured state.
func (c *Context) Restore(s ContextState) {
	*c = s.ctx
}

// Scoped runs fn and restores the context afterwards, whether fn returns
// normally, fails or panics. Changes fn makes to the context never leak to
// sibling translations.
func (c *Context) Scoped(fn func() error) error {
	saved := c.Snapshot()
	defer c.Restore(saved)
	return fn()
}

// focusOn moves the focus to op for the duration of a scope.
func (c *Context) focusOn(op operand) {
	if op.source != "" {
		c.Source = op.source
		c.IDColumn = op.idColumn
	}
	c.Focus = op.sql
	c.FocusType = op.fhirType
	c.focusJSON = op.json
}
