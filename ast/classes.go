package ast

import (
	"strings"

	"github.com/sofialang/sofia/token"
)

// PropertyDecl represents a single declared property of a class or struct,
// e.g. "public x = 10;" inside a class body.
type PropertyDecl struct {
	// The 'public' token (or the property name token if no modifier is present).
	Token token.Token

	Name *Identifier

	// Static marks a property that belongs to the class itself rather than instances.
	Static bool

	// Default is the initializer expression, evaluated at `new` time in
	// declaration order. May be nil (defaults to Null).
	Default Expression
}

func (pd *PropertyDecl) String() string {
	var out strings.Builder
	if pd.Static {
		out.WriteString("static ")
	}
	out.WriteString("public ")
	out.WriteString(pd.Name.String())
	if pd.Default != nil {
		out.WriteString(" = ")
		out.WriteString(pd.Default.String())
	}
	out.WriteString(";")
	return out.String()
}

// MethodDecl represents a method defined inside a class body, e.g.
// "public getX() { return this.x; }".
type MethodDecl struct {
	Token token.Token

	Name *Identifier

	Parameters []*Identifier

	Body *BlockStatement
}

func (md *MethodDecl) String() string {
	var out strings.Builder

	params := make([]string, 0, len(md.Parameters))
	for _, p := range md.Parameters {
		params = append(params, p.String())
	}

	out.WriteString(md.Name.String())
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") ")
	out.WriteString(md.Body.String())

	return out.String()
}

// ClassStatement represents a class declaration, e.g.
// "class Point extends Shape { public x = 10; public getX() { return this.x; } }".
type ClassStatement struct {
	// The 'class' token.
	Token token.Token

	Name *Identifier

	// Parent is the optional superclass named by "extends", nil when absent.
	Parent *Identifier

	Properties []*PropertyDecl

	Methods []*MethodDecl
}

func (cs *ClassStatement) statementNode() {}

// TokenLiteral returns the literal value of the 'class' token.
func (cs *ClassStatement) TokenLiteral() string { return cs.Token.Literal }

// String returns a string representation of the class declaration.
func (cs *ClassStatement) String() string {
	var out strings.Builder

	out.WriteString("class ")
	out.WriteString(cs.Name.String())
	if cs.Parent != nil {
		out.WriteString(" extends ")
		out.WriteString(cs.Parent.String())
	}
	out.WriteString(" {")
	for _, p := range cs.Properties {
		out.WriteString(p.String())
	}
	for _, m := range cs.Methods {
		out.WriteString(m.String())
	}
	out.WriteString("}")

	return out.String()
}

// StructStatement represents a struct declaration. Structs share the Class
// property shape but carry no methods and no inheritance.
type StructStatement struct {
	// The 'struct' token.
	Token token.Token

	Name *Identifier

	Properties []*PropertyDecl
}

func (ss *StructStatement) statementNode() {}

// TokenLiteral returns the literal value of the 'struct' token.
func (ss *StructStatement) TokenLiteral() string { return ss.Token.Literal }

// String returns a string representation of the struct declaration.
func (ss *StructStatement) String() string {
	var out strings.Builder

	out.WriteString("struct ")
	out.WriteString(ss.Name.String())
	out.WriteString(" {")
	for _, p := range ss.Properties {
		out.WriteString(p.String())
	}
	out.WriteString("}")

	return out.String()
}

// InterfaceStatement represents an interface declaration: a named set of
// method signatures with no bodies and no runtime dispatch in the MVP.
type InterfaceStatement struct {
	// The 'interface' token.
	Token token.Token

	Name *Identifier

	// MethodNames lists the signatures declared by the interface, by name only
	// (arity/types are not checked in the MVP).
	MethodNames []*Identifier
}

func (is *InterfaceStatement) statementNode() {}

// TokenLiteral returns the literal value of the 'interface' token.
func (is *InterfaceStatement) TokenLiteral() string { return is.Token.Literal }

// String returns a string representation of the interface declaration.
func (is *InterfaceStatement) String() string {
	var out strings.Builder

	out.WriteString("interface ")
	out.WriteString(is.Name.String())
	out.WriteString(" {")
	for _, m := range is.MethodNames {
		out.WriteString(m.String())
		out.WriteString("();")
	}
	out.WriteString("}")

	return out.String()
}
