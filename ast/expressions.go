package ast

import (
	"strings"

	"github.com/sofialang/sofia/token"
)

// ThisExpression represents the "this" keyword, resolved at runtime to the
// current call frame's receiver.
type ThisExpression struct {
	Token token.Token
}

func (te *ThisExpression) expressionNode() {}

// TokenLiteral returns the literal value of the 'this' token.
func (te *ThisExpression) TokenLiteral() string { return te.Token.Literal }

// String returns the literal "this".
func (te *ThisExpression) String() string { return "this" }

// SuperExpression represents the "super" keyword. It is never evaluated on
// its own; it only appears as the receiver of a property access or call,
// which the compiler recognizes and lowers to a parent-class method lookup.
type SuperExpression struct {
	Token token.Token
}

func (se *SuperExpression) expressionNode() {}

// TokenLiteral returns the literal value of the 'super' token.
func (se *SuperExpression) TokenLiteral() string { return se.Token.Literal }

// String returns the literal "super".
func (se *SuperExpression) String() string { return "super" }

// NewExpression represents object construction, e.g. "new Point(1, 2)".
type NewExpression struct {
	// The 'new' token.
	Token token.Token

	Class *Identifier

	Arguments []Expression
}

func (ne *NewExpression) expressionNode() {}

// TokenLiteral returns the literal value of the 'new' token.
func (ne *NewExpression) TokenLiteral() string { return ne.Token.Literal }

// String returns a string representation of the construction expression.
func (ne *NewExpression) String() string {
	var out strings.Builder

	args := make([]string, 0, len(ne.Arguments))
	for _, a := range ne.Arguments {
		args = append(args, a.String())
	}

	out.WriteString("new ")
	out.WriteString(ne.Class.String())
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")

	return out.String()
}

// PropertyExpression represents field/method access, e.g. "point.x" or
// "super.describe".
type PropertyExpression struct {
	// The '.' token.
	Token token.Token

	Object Expression

	Name *Identifier
}

func (pe *PropertyExpression) expressionNode() {}

// TokenLiteral returns the literal value of the '.' token.
func (pe *PropertyExpression) TokenLiteral() string { return pe.Token.Literal }

// String returns a string representation of the property access.
// Format: "(<object>.<name>)"
func (pe *PropertyExpression) String() string {
	var out strings.Builder

	out.WriteString("(")
	out.WriteString(pe.Object.String())
	out.WriteString(".")
	out.WriteString(pe.Name.String())
	out.WriteString(")")

	return out.String()
}

// AssignmentExpression represents assignment to an already-bound name, a
// property, or an index: "x = e", "o.p = e", "a[i] = e".
type AssignmentExpression struct {
	// The '=' token.
	Token token.Token

	// Target is the assignment's left-hand side: an *Identifier,
	// *PropertyExpression, or *IndexExpression.
	Target Expression

	Value Expression
}

func (ae *AssignmentExpression) expressionNode() {}

// TokenLiteral returns the literal value of the '=' token.
func (ae *AssignmentExpression) TokenLiteral() string { return ae.Token.Literal }

// String returns a string representation of the assignment.
// Format: "(<target> = <value>)"
func (ae *AssignmentExpression) String() string {
	var out strings.Builder

	out.WriteString("(")
	out.WriteString(ae.Target.String())
	out.WriteString(" = ")
	out.WriteString(ae.Value.String())
	out.WriteString(")")

	return out.String()
}
