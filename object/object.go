// Package object defines the runtime object system for the Sofia programming language.
//
// This package implements the runtime object system that represents values
// during the execution of a Sofia program.
// It defines various types of objects such as integers, booleans, strings,
// arrays, hashes, compiled functions, closures, and the class/struct/interface
// record types used by the object model.
//
// Key components:
//   - [Object] interface: The base interface for all runtime values
//   - Various object types ([Integer], [Boolean], [String], [Array], [Hash], [CompiledFunction], etc.)
//   - [Class], [ClassInstance], [Struct], [StructInstance], [Interface], [BoundMethod]: the class/struct object model
//   - [Hashable] interface: For objects that can be used as hash keys
//   - Optimized hash table implementation with key caching for better performance
//
// The compiler and virtual machine use the object system to represent and manipulate values
// during program execution.
package object

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/sofialang/sofia/code"
)

//nolint:revive
const (
	INTEGER_OBJ           = "INTEGER"
	BOOLEAN_OBJ           = "BOOLEAN"
	STRING_OBJ            = "STRING"
	NULL_OBJ              = "NULL"
	RETURN_VALUE_OBJ      = "RETURN_VALUE"
	ERROR_OBJ             = "ERROR"
	BUILTIN_OBJ           = "BUILTIN"
	ARRAY_OBJ             = "ARRAY"
	HASH_OBJ              = "HASH"
	COMPILED_FUNCTION_OBJ = "COMPILED_FUNCTION_OBJ"
	CLOSURE_OBJ           = "CLOSURE"
	CLASS_OBJ             = "CLASS"
	CLASS_INSTANCE_OBJ    = "CLASS_INSTANCE"
	STRUCT_OBJ            = "STRUCT"
	STRUCT_INSTANCE_OBJ   = "STRUCT_INSTANCE"
	INTERFACE_OBJ         = "INTERFACE"
	BOUND_METHOD_OBJ      = "BOUND_METHOD"
	CLASS_BLUEPRINT_OBJ   = "CLASS_BLUEPRINT"
	STRUCT_BLUEPRINT_OBJ  = "STRUCT_BLUEPRINT"
	INTERFACE_BLUEPRINT_OBJ = "INTERFACE_BLUEPRINT"
)

// Type represents the type of object.
type Type string

// Object is the interface that wraps the basic operations of all Sofia objects.
// All Sofia objects implement this interface.
type Object interface {
	// Type returns the type of the object as a value of Type.
	Type() Type

	// Inspect returns a string representation of the object.
	Inspect() string
}

// Integer represents a Sofia integer value.
type Integer struct {
	Value int64
}

// Type returns the type of the object.
func (i *Integer) Type() Type { return INTEGER_OBJ }

// Inspect returns a string representation of the object.
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// Boolean represents a Sofia boolean value.
type Boolean struct {
	Value bool
}

// Type returns the type of the object.
func (b *Boolean) Type() Type { return BOOLEAN_OBJ }

// Inspect returns a string representation of the object.
func (b *Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

// String represents a Sofia string value.
type String struct {
	Value string
	// Cache for the hash key to avoid recalculating it
	hashKey *HashKey
}

// Type returns the type of the object.
func (s *String) Type() Type { return STRING_OBJ }

// Inspect returns a string representation of the object.
func (s *String) Inspect() string { return s.Value }

// Null represents a Sofia null value.
type Null struct{}

// Type returns the type of the object.
func (n *Null) Type() Type { return NULL_OBJ }

// Inspect returns a string representation of the object.
func (n *Null) Inspect() string { return "null" }

// ReturnValue represents a Sofia return value.
type ReturnValue struct {
	Value Object
}

// Type returns the type of the object.
func (rv *ReturnValue) Type() Type { return RETURN_VALUE_OBJ }

// Inspect returns a string representation of the object.
func (rv *ReturnValue) Inspect() string { return rv.Value.Inspect() }

// Error represents a Sofia runtime or compile-time error.
//
// Kind is a short machine-checkable tag (e.g. "DivisionByZero", "UnknownProperty",
// "ArityMismatch") identifying the class of failure; Message carries the human-readable detail.
type Error struct {
	Kind    string
	Message string
}

// Type returns the type of the object.
func (e *Error) Type() Type { return ERROR_OBJ }

// Inspect returns a string representation of the object.
func (e *Error) Inspect() string {
	if e.Kind == "" {
		return "ERROR: " + e.Message
	}
	return fmt.Sprintf("ERROR[%s]: %s", e.Kind, e.Message)
}

// BuiltinFunction represents a Sofia builtin function.
type BuiltinFunction func(args ...Object) Object

// Builtin represents a Sofia builtin.
type Builtin struct {
	Fn BuiltinFunction
}

// Type returns the type of the object.
func (b *Builtin) Type() Type { return BUILTIN_OBJ }

// Inspect returns a string representation of the object.
func (b *Builtin) Inspect() string { return "builtin function" }

// Array represents a Sofia array.
type Array struct {
	Elements []Object
}

// Type returns the type of the object.
func (a *Array) Type() Type { return ARRAY_OBJ }

// Inspect returns a string representation of the object.
func (a *Array) Inspect() string {
	var out strings.Builder

	elements := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		elements[i] = e.Inspect()
	}

	out.WriteString("[")
	out.WriteString(strings.Join(elements, ", "))
	out.WriteString("]")

	return out.String()
}

// HashKey represents a hash key.
type HashKey struct {
	Type  Type
	Value uint64
}

// HashKey returns the hash key for the object.
func (b *Boolean) HashKey() HashKey {
	var value uint64

	if b.Value {
		value = 1
	} else {
		value = 0
	}
	return HashKey{Type: b.Type(), Value: value}
}

// HashKey returns the hash key for the object.
func (i *Integer) HashKey() HashKey {
	//nolint:gosec
	return HashKey{Type: i.Type(), Value: uint64(i.Value)}
}

// HashKey returns the hash key for the object.
func (s *String) HashKey() HashKey {
	// Return the cached hash key if available
	if s.hashKey != nil {
		return *s.hashKey
	}

	// Calculate the hash key
	h := fnv.New64a()
	_, err := h.Write([]byte(s.Value))
	if err != nil {
		return HashKey{Type: ERROR_OBJ, Value: 0}
	}

	// Create and cache the hash key
	hashKey := HashKey{Type: s.Type(), Value: h.Sum64()}
	s.hashKey = &hashKey
	return hashKey
}

// HashPair represents a hash pair.
type HashPair struct {
	Key   Object
	Value Object
}

// Hash represents a Sofia hash.
//
// Order records the insertion order of keys so that Inspect and iteration builtins
// present entries deterministically; VM mutation (OpSetIndex/OpHash) keeps it in sync
// with Pairs.
type Hash struct {
	Pairs map[HashKey]HashPair
	Order []HashKey
}

// Type returns the type of the object.
func (h *Hash) Type() Type { return HASH_OBJ }

// Set stores a key-value pair, appending the key to Order only the first time it's seen.
func (h *Hash) Set(key HashKey, pair HashPair) {
	if _, exists := h.Pairs[key]; !exists {
		h.Order = append(h.Order, key)
	}
	if h.Pairs == nil {
		h.Pairs = make(map[HashKey]HashPair)
	}
	h.Pairs[key] = pair
}

// Inspect returns a string representation of the object.
func (h *Hash) Inspect() string {
	var out strings.Builder

	keys := h.Order
	if len(keys) != len(h.Pairs) {
		keys = keys[:0]
		for k := range h.Pairs {
			keys = append(keys, k)
		}
	}

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pair := h.Pairs[k]
		pairs = append(pairs, fmt.Sprintf("%s: %s", pair.Key.Inspect(), pair.Value.Inspect()))
	}

	out.WriteString("{")
	out.WriteString(strings.Join(pairs, ", "))
	out.WriteString("}")

	return out.String()
}

// Hashable represents an object that can be used as a hash key.
type Hashable interface {
	HashKey() HashKey
}

// CompiledFunction represents a compiled piece of bytecode with its instructions, local variables, and parameters.
type CompiledFunction struct {
	// Represents the bytecode sequence of a compiled function.
	Instructions code.Instructions

	// NumLocals indicates the number of local variables used within the compiled function.
	NumLocals int

	// NumParameters specifies the number of parameters accepted by the compiled function.
	NumParameters int
}

// Type returns the object type of the compiled function, which is [COMPILED_FUNCTION_OBJ].
func (c *CompiledFunction) Type() Type { return COMPILED_FUNCTION_OBJ }

// Inspect returns a formatted string representation of the CompiledFunction instance, including its memory address.
func (c *CompiledFunction) Inspect() string { return fmt.Sprintf("CompiledFunction[%p]", c) }

// Closure represents a function and its free variables in a virtual machine's execution context.
type Closure struct {
	// Fn is a reference to the compiled function containing the bytecode and metadata for closure execution.
	Fn *CompiledFunction

	// Free holds the objects representing free variables captured by the closure for use during its execution.
	Free []Object
}

// Type returns the type of the object, specifically [CLOSURE_OBJ] for instances of Closure.
func (c *Closure) Type() Type { return CLOSURE_OBJ }

// Inspect returns a string representation of the Closure instance, including its memory address.
func (c *Closure) Inspect() string { return fmt.Sprintf("Closure[%p]", c) }

// ClassProperty is one declared instance or static property of a Class, in declaration order.
type ClassProperty struct {
	Name string

	Static bool

	// Default is a zero-argument, zero-local compiled thunk evaluated at `new` time (or once, for
	// static properties, when the class is defined); nil means the property defaults to Null.
	Default *CompiledFunction
}

// Class is the runtime record for a class declaration: its name, optional parent for `super`/method
// inheritance lookup, declared properties in order, and compiled methods by name.
type Class struct {
	Name string

	// Parent is the superclass named by "extends", nil when the class has none.
	Parent *Class

	Properties []ClassProperty

	Methods map[string]*CompiledFunction

	// StaticFields holds the values of Static properties. They are read and written through the class
	// value itself; property lookup on an instance does not consult them.
	StaticFields map[string]Object
}

// Type returns the type of the object.
func (c *Class) Type() Type { return CLASS_OBJ }

// Inspect returns a string representation of the object.
func (c *Class) Inspect() string { return "class " + c.Name }

// Method looks up a method by name, walking the parent chain.
func (c *Class) Method(name string) (*CompiledFunction, bool) {
	for class := c; class != nil; class = class.Parent {
		if m, ok := class.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// AllProperties returns the declared properties of c in definition order, walking from the root
// ancestor down so that a subclass's own property of the same name overrides its parent's.
func (c *Class) AllProperties() []ClassProperty {
	var chain []*Class
	for class := c; class != nil; class = class.Parent {
		chain = append(chain, class)
	}

	var result []ClassProperty
	index := make(map[string]int)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, p := range chain[i].Properties {
			if idx, ok := index[p.Name]; ok {
				result[idx] = p
				continue
			}
			index[p.Name] = len(result)
			result = append(result, p)
		}
	}
	return result
}

// ClassInstance is a runtime instance of a Class, carrying its own field values.
type ClassInstance struct {
	Class *Class

	Fields map[string]Object

	// FieldOrder preserves declaration order for Inspect.
	FieldOrder []string
}

// Type returns the type of the object.
func (ci *ClassInstance) Type() Type { return CLASS_INSTANCE_OBJ }

// Inspect returns a string representation of the object.
func (ci *ClassInstance) Inspect() string {
	var out strings.Builder

	out.WriteString(ci.Class.Name)
	out.WriteString(" { ")
	fields := make([]string, 0, len(ci.FieldOrder))
	for _, name := range ci.FieldOrder {
		fields = append(fields, fmt.Sprintf("%s: %s", name, ci.Fields[name].Inspect()))
	}
	out.WriteString(strings.Join(fields, ", "))
	out.WriteString(" }")

	return out.String()
}

// StructProperty is one declared property of a Struct, in declaration order.
type StructProperty struct {
	Name string

	// Default is a zero-argument, zero-local compiled thunk evaluated for any trailing property not
	// supplied positionally at `new` time; nil means the property defaults to Null.
	Default *CompiledFunction
}

// Struct is the runtime record for a struct declaration: its name and declared properties in order.
// Structs carry no methods and no inheritance.
type Struct struct {
	Name string

	Properties []StructProperty
}

// Type returns the type of the object.
func (s *Struct) Type() Type { return STRUCT_OBJ }

// Inspect returns a string representation of the object.
func (s *Struct) Inspect() string { return "struct " + s.Name }

// StructInstance is a runtime instance of a Struct.
type StructInstance struct {
	Struct *Struct

	Fields map[string]Object

	// FieldOrder preserves declaration (or insertion, for fields assigned after construction) order.
	FieldOrder []string
}

// Type returns the type of the object.
func (si *StructInstance) Type() Type { return STRUCT_INSTANCE_OBJ }

// Inspect returns a string representation of the object.
func (si *StructInstance) Inspect() string {
	var out strings.Builder

	out.WriteString(si.Struct.Name)
	out.WriteString(" { ")
	fields := make([]string, 0, len(si.FieldOrder))
	for _, name := range si.FieldOrder {
		fields = append(fields, fmt.Sprintf("%s: %s", name, si.Fields[name].Inspect()))
	}
	out.WriteString(strings.Join(fields, ", "))
	out.WriteString(" }")

	return out.String()
}

// Set assigns a field, appending to FieldOrder the first time the field is seen. Struct fields (unlike
// ClassInstance fields) may be created by assignment after construction.
func (si *StructInstance) Set(name string, value Object) {
	if si.Fields == nil {
		si.Fields = make(map[string]Object)
	}
	if _, exists := si.Fields[name]; !exists {
		si.FieldOrder = append(si.FieldOrder, name)
	}
	si.Fields[name] = value
}

// Interface is the runtime record for an interface declaration: a named set of method signatures.
// The MVP does not check conformance or dispatch through interfaces at runtime; it exists as a
// first-class declared value.
type Interface struct {
	Name string

	Methods []string
}

// Type returns the type of the object.
func (in *Interface) Type() Type { return INTERFACE_OBJ }

// Inspect returns a string representation of the object.
func (in *Interface) Inspect() string { return "interface " + in.Name }

// BoundMethod couples a compiled method with the receiver it was looked up on, produced by
// OpGetProperty when the property names a method rather than a field.
type BoundMethod struct {
	Method   *CompiledFunction
	Receiver *ClassInstance
}

// Type returns the type of the object.
func (bm *BoundMethod) Type() Type { return BOUND_METHOD_OBJ }

// Inspect returns a string representation of the object.
func (bm *BoundMethod) Inspect() string { return fmt.Sprintf("BoundMethod[%p]", bm) }

// ClassBlueprint is the constant-pool payload produced for a class declaration. The VM materializes
// it into a runtime [Class] when it executes the corresponding OpClass instruction, resolving Parent
// (if any) from the already-compiled global slot recorded here.
type ClassBlueprint struct {
	Name string

	HasParent bool

	// ParentGlobalIndex is the global-variable slot holding the already-defined parent *Class.
	// Only meaningful when HasParent is true; classes may only extend globally-defined classes.
	ParentGlobalIndex int

	Properties []ClassProperty

	Methods map[string]*CompiledFunction
}

// Type returns the type of the object.
func (cb *ClassBlueprint) Type() Type { return CLASS_BLUEPRINT_OBJ }

// Inspect returns a string representation of the object.
func (cb *ClassBlueprint) Inspect() string { return "ClassBlueprint(" + cb.Name + ")" }

// StructBlueprint is the constant-pool payload produced for a struct declaration, materialized into
// a runtime [Struct] by the VM's OpStruct handler.
type StructBlueprint struct {
	Name string

	Properties []StructProperty
}

// Type returns the type of the object.
func (sb *StructBlueprint) Type() Type { return STRUCT_BLUEPRINT_OBJ }

// Inspect returns a string representation of the object.
func (sb *StructBlueprint) Inspect() string { return "StructBlueprint(" + sb.Name + ")" }

// InterfaceBlueprint is the constant-pool payload produced for an interface declaration, materialized
// into a runtime [Interface] by the VM's OpInterface handler.
type InterfaceBlueprint struct {
	Name string

	Methods []string
}

// Type returns the type of the object.
func (ib *InterfaceBlueprint) Type() Type { return INTERFACE_BLUEPRINT_OBJ }

// Inspect returns a string representation of the object.
func (ib *InterfaceBlueprint) Inspect() string { return "InterfaceBlueprint(" + ib.Name + ")" }
