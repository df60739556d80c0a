package ast

// Children returns the direct child nodes of n in evaluation order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *Literal, *Identifier:
	case *PathStep:
		add(n.Target)
	case *FunctionCall:
		add(n.Target)
		for _, a := range n.Args {
			add(a)
		}
	case *UnaryOp:
		add(n.Operand)
	case *BinaryOp:
		add(n.Left)
		add(n.Right)
	case *Conditional:
		add(n.Condition)
		add(n.Then)
		add(n.Else)
	case *Aggregation:
		add(n.Target)
		add(n.Criteria)
	case *TypeOperation:
		add(n.Operand)
	}
	return out
}

// Walk calls fn for n and every descendant in depth-first pre-order.
// Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}
