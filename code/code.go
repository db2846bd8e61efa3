// Package code provides bytecode instruction definitions and utilities for the compiler and virtual machine.
//
// This package defines the bytecode instruction set used by the compiler to generate executable code
// and by the virtual machine to execute programs.
//
// It includes opcode definitions, instruction encoding
// and decoding functions, and utilities for working with bytecode instructions.
package code

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instructions is a slice of bytes representing a sequence of instructions.
type Instructions []byte

// Opcode represents a single bytecode instruction used by the compiler and virtual machine.
type Opcode byte

// Bytecode instruction opcodes.
//
// Each opcode represents a specific operation that the virtual machine can execute.
// Instructions may have zero or more operands encoded after the opcode byte.
//
// Multi-byte operands are encoded little-endian.
const (
	// OpConstant pushes a constant from the constant pool onto the stack.
	//
	// Operands: [constant_index:2] - 2-byte index into the constant pool.
	OpConstant Opcode = iota

	// OpAdd pops two values from the stack, adds them, and pushes the result.
	//
	// Stack: [a, b] -> [a + b]
	OpAdd

	// OpPop removes the top value from the stack and discards it.
	//
	// Stack: [value] -> []
	OpPop

	// OpSub pops two values from the stack, subtracts the second from the first, and pushes the result.
	//
	// Stack: [a, b] -> [a - b]
	OpSub

	// OpMul pops two values from the stack, multiplies them, and pushes the result.
	//
	// Stack: [a, b] -> [a * b]
	OpMul

	// OpDiv pops two values from the stack, divides the first by the second, and pushes the result.
	//
	// Stack: [a, b] -> [a / b]
	OpDiv

	// OpMod pops two values from the stack, computes the remainder of the first divided by the second, and
	// pushes the result.
	//
	// Stack: [a, b] -> [a % b]
	OpMod

	// OpPow pops two values from the stack, raises the first to the power of the second, and pushes the result.
	//
	// Stack: [a, b] -> [a ** b]
	OpPow

	// OpTrue pushes the boolean value true onto the stack.
	//
	// Stack: [] -> [true]
	OpTrue

	// OpFalse pushes the boolean value false onto the stack.
	//
	// Stack: [] -> [false]
	OpFalse

	// OpEqual pops two values from the stack, compares them for equality, and pushes the boolean result.
	//
	// Stack: [a, b] -> [a == b]
	OpEqual

	// OpNotEqual pops two values from the stack, compares them for inequality, and pushes the boolean result.
	//
	// Stack: [a, b] -> [a != b]
	OpNotEqual

	// OpGreaterThan pops two values from the stack, compares them, and pushes true if the first is greater.
	//
	// Stack: [a, b] -> [a > b]
	OpGreaterThan

	// OpLessThan pops two values from the stack, compares them, and pushes true if the first is less.
	//
	// Stack: [a, b] -> [a < b]
	OpLessThan

	// OpMinus pops a value from the stack, negates it, and pushes the result.
	//
	// Stack: [value] -> [-value]
	OpMinus

	// OpBang pops a value from the stack, applies logical NOT, and pushes the boolean result.
	//
	// Stack: [value] -> [!value]
	OpBang

	// OpJumpNotTruthy pops a value from the stack and jumps to the specified position if the value is not truthy.
	//
	// Operands: [jump_position:2] - 2-byte absolute instruction position to jump to.
	OpJumpNotTruthy

	// OpJumpIfTrue pops a value from the stack and jumps to the specified position if the value is truthy. Used
	// to lower short-circuit "||".
	//
	// Operands: [jump_position:2] - 2-byte absolute instruction position to jump to.
	OpJumpIfTrue

	// OpJump unconditionally jumps to the specified instruction position.
	//
	// Operands: [jump_position:2] - 2-byte absolute instruction position to jump to.
	OpJump

	// OpNull pushes the null value onto the stack.
	//
	// Stack: [] -> [null]
	OpNull

	// OpGetGlobal retrieves a global variable by index and pushes its value onto the stack.
	//
	// Operands: [global_index:2] - 2-byte index into the global variables store.
	OpGetGlobal

	// OpSetGlobal stores the top-of-stack value in the global variable at the specified index without
	// popping it; callers emit an explicit OpPop when the result is unused.
	//
	// Operands: [global_index:2] - 2-byte index into the global variables store.
	//
	// Stack: [value] -> [value]
	OpSetGlobal

	// OpArray pops the specified number of elements from the stack and creates an array from them.
	//
	// Operands: [element_count:2] - 2-byte count of elements to pop.
	//
	// Stack: [elem1, elem2, ..., elemN] -> [array]
	OpArray

	// OpHash pops the specified number of stack items, taken as alternating keys and values, and creates a
	// hash map from them.
	//
	// Operands: [element_count:2] - 2-byte count of stack items to pop, which is twice the number of
	// key-value pairs.
	//
	// Stack: [key1, value1, key2, value2, ..., keyN, valueN] -> [hash]
	OpHash

	// OpIndex pops an index and a collection from the stack, retrieves the element at that index, and pushes it.
	//
	// Stack: [collection, index] -> [collection[index]]
	OpIndex

	// OpSetIndex pops a value, an index, and a collection from the stack, stores the value at that index
	// (arrays and hashes only; struct/class field writes go through OpSetProperty), and pushes the value
	// back so assignment can be used as an expression.
	//
	// Stack: [collection, index, value] -> [value]
	OpSetIndex

	// OpCall calls a function with the specified number of arguments.
	//
	// Operands: [num_args:1] - 1-byte count of arguments on the stack.
	//
	// Stack: [func, arg1, arg2, ..., argN] -> [return_value]
	OpCall

	// OpReturnValue pops a value from the stack and returns it from the current function.
	//
	// Stack: [return_value] -> []
	OpReturnValue

	// OpReturn returns from the current function without a return value (implicit null).
	//
	// Stack: [] -> []
	OpReturn

	// OpGetLocal retrieves a local variable by index and pushes its value onto the stack.
	//
	// Operands: [local_index:1] - 1-byte index into the current frame's local variables.
	OpGetLocal

	// OpSetLocal stores the top-of-stack value in the local variable at the specified index without popping
	// it; callers emit an explicit OpPop when the result is unused.
	//
	// Operands: [local_index:1] - 1-byte index into the current frame's local variables.
	//
	// Stack: [value] -> [value]
	OpSetLocal

	// OpGetBuiltin retrieves a builtin function by index and pushes it onto the stack.
	//
	// Operands: [builtin_index:1] - 1-byte index into the builtin functions table.
	OpGetBuiltin

	// OpClosure creates a closure from a compiled function and captures the specified number of free variables.
	//
	// Operands: [constant_index:2, num_free:1] - 2-byte index to the compiled function in the constant pool,
	// and 1-byte count of free variables to capture from the stack.
	//
	// Stack: [free1, free2, ..., freeN] -> [closure]
	OpClosure

	// OpGetFree retrieves a free variable (captured by a closure) by index and pushes its value onto the stack.
	//
	// Operands: [free_index:1] - 1-byte index into the current closure's free variables.
	OpGetFree

	// OpCurrentClosure pushes the currently executing closure onto the stack (used for recursion).
	//
	// Stack: [] -> [current_closure]
	OpCurrentClosure

	// OpClass builds a class record from a constant-pool blueprint (name, parent slot, property defaults,
	// compiled methods) and pushes it; the compiler follows it with the store that binds the class name.
	//
	// Operands: [constant_index:2] - 2-byte index into the constant pool for the class blueprint.
	OpClass

	// OpStruct builds a struct record from a constant-pool blueprint (name, declared properties) and
	// pushes it; the compiler follows it with the store that binds the struct name.
	//
	// Operands: [constant_index:2] - 2-byte index into the constant pool for the struct blueprint.
	OpStruct

	// OpInterface builds an interface record from a constant-pool blueprint (name, method signatures).
	//
	// Operands: [constant_index:2] - 2-byte index into the constant pool for the interface blueprint.
	OpInterface

	// OpNew pops the specified number of constructor arguments, instantiates the class referenced by the
	// preceding OpGetGlobal/OpGetLocal push, runs field initializers, and pushes the new instance.
	// The arguments fill the non-static properties positionally, in declaration order; properties past
	// the last argument take their defaults. No `init` method is invoked.
	//
	// Operands: [num_args:1] - 1-byte count of constructor arguments on the stack.
	//
	// Stack: [class, arg1, ..., argN] -> [instance]
	OpNew

	// OpNewStruct pops the specified number of field values (in declaration order) and builds a struct
	// instance from the struct referenced by the preceding OpGetGlobal/OpGetLocal push.
	//
	// Operands: [num_args:1] - 1-byte count of field values on the stack.
	//
	// Stack: [struct, val1, ..., valN] -> [instance]
	OpNewStruct

	// OpGetProperty pops a receiver from the stack, looks up the named field or bound method, and pushes it.
	//
	// Operands: [constant_index:2] - 2-byte index into the constant pool for the property name string.
	//
	// Stack: [receiver] -> [value]
	OpGetProperty

	// OpSetProperty pops a value and a receiver from the stack, stores the value in the named field
	// (creating the field if the receiver is a struct instance, and raising UnknownProperty if the
	// receiver is a class instance without that field already declared), and pushes the value back so
	// assignment can be used as an expression.
	//
	// Operands: [constant_index:2] - 2-byte index into the constant pool for the property name string.
	//
	// Stack: [receiver, value] -> [value]
	OpSetProperty

	// OpThis pushes the current frame's receiver onto the stack.
	//
	// Stack: [] -> [this]
	OpThis

	// OpSuper pops the number of call arguments, resolves the named method on the current receiver's
	// parent class, and invokes it bound to the current receiver.
	//
	// Operands: [constant_index:2, num_args:1] - method name in the constant pool, argument count.
	OpSuper

	// OpNoOp performs no operation. The compiler does not emit it; the VM steps over it.
	OpNoOp

	// OpMapToAst carries an AST node id as debug metadata; it has no effect on the operand stack. The
	// compiler does not emit it, and the VM steps over its operand without recording the id in the
	// debug_trace output.
	//
	// Operands: [node_id:2] - 2-byte AST node id.
	OpMapToAst
)

// Definition represents an instruction definition with its name and operand widths.
type Definition struct {
	// The name of the instruction.
	Name string

	// OperandWidths specifies the number of bytes each operand of an instruction occupies.
	OperandWidths []int
}

// definitions is a map of opcodes to their definitions.
var definitions = map[Opcode]*Definition{
	OpConstant:       {"OpConstant", []int{2}},
	OpAdd:            {"OpAdd", []int{}},
	OpPop:            {"OpPop", []int{}},
	OpSub:            {"OpSub", []int{}},
	OpMul:            {"OpMul", []int{}},
	OpDiv:            {"OpDiv", []int{}},
	OpMod:            {"OpMod", []int{}},
	OpPow:            {"OpPow", []int{}},
	OpTrue:           {"OpTrue", []int{}},
	OpFalse:          {"OpFalse", []int{}},
	OpEqual:          {"OpEqual", []int{}},
	OpNotEqual:       {"OpNotEqual", []int{}},
	OpGreaterThan:    {"OpGreaterThan", []int{}},
	OpLessThan:       {"OpLessThan", []int{}},
	OpMinus:          {"OpMinus", []int{}},
	OpBang:           {"OpBang", []int{}},
	OpJumpNotTruthy:  {"OpJumpNotTruthy", []int{2}},
	OpJumpIfTrue:     {"OpJumpIfTrue", []int{2}},
	OpJump:           {"OpJump", []int{2}},
	OpNull:           {"OpNull", []int{}},
	OpGetGlobal:      {"OpGetGlobal", []int{2}},
	OpSetGlobal:      {"OpSetGlobal", []int{2}},
	OpArray:          {"OpArray", []int{2}},
	OpHash:           {"OpHash", []int{2}},
	OpIndex:          {"OpIndex", []int{}},
	OpSetIndex:       {"OpSetIndex", []int{}},
	OpCall:           {"OpCall", []int{1}},
	OpReturnValue:    {"OpReturnValue", []int{}},
	OpReturn:         {"OpReturn", []int{}},
	OpGetLocal:       {"OpGetLocal", []int{1}},
	OpSetLocal:       {"OpSetLocal", []int{1}},
	OpGetBuiltin:     {"OpGetBuiltin", []int{1}},
	OpClosure:        {"OpClosure", []int{2, 1}},
	OpGetFree:        {"OpGetFree", []int{1}},
	OpCurrentClosure: {"OpCurrentClosure", []int{}},
	OpClass:          {"OpClass", []int{2}},
	OpStruct:         {"OpStruct", []int{2}},
	OpInterface:      {"OpInterface", []int{2}},
	OpNew:            {"OpNew", []int{1}},
	OpNewStruct:      {"OpNewStruct", []int{1}},
	OpGetProperty:    {"OpGetProperty", []int{2}},
	OpSetProperty:    {"OpSetProperty", []int{2}},
	OpThis:           {"OpThis", []int{}},
	OpSuper:          {"OpSuper", []int{2, 1}},
	OpNoOp:           {"OpNoOp", []int{}},
	OpMapToAst:       {"OpMapToAst", []int{2}},
}

// Lookup returns the [Definition] for the given [Opcode].
func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make creates a byte slice representing an instruction using the provided opcode and operands.
func Make(op Opcode, operands ...int) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}
	instructionLen := 1
	for _, w := range def.OperandWidths {
		instructionLen += w
	}
	instruction := make([]byte, instructionLen)
	instruction[0] = byte(op)
	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			instruction[offset] = byte(operand)
		case 2:
			binary.LittleEndian.PutUint16(instruction[offset:], uint16(operand))
		}
		offset += width
	}
	return instruction
}

// String provides a human-readable string representation of the [Instructions], formatted with opcodes and operands.
func (ins Instructions) String() string {
	var out strings.Builder

	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			_, _ = fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		_, _ = fmt.Fprintf(&out, "%04d %s\n", i, ins.fmtInstruction(def, operands))
		i += read + 1
	}

	return out.String()
}

// fmtInstruction formats an instruction with its operands into a human-readable string representation.
func (ins Instructions) fmtInstruction(def *Definition, operands []int) string {
	operandCount := len(def.OperandWidths)

	if len(operands) != operandCount {
		return fmt.Sprintf("ERROR: operand len %d does not match defined %d\n", len(operands), operandCount)
	}

	switch operandCount {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	}
	return fmt.Sprintf("ERROR: unhandled operandCount for %s\n", def.Name)
}

// ReadOperands decodes operands from the specified instructions based
// on the definition and returns them with the total bytes read.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			operands[i] = int(ReadUint8(ins[offset:]))
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// ReadUint16 decodes the first two bytes of the provided [Instructions] as uint16 in little-endian format.
func ReadUint16(ins Instructions) uint16 {
	return binary.LittleEndian.Uint16(ins)
}

// ReadUint8 extracts the first byte from the provided [Instructions] slice and returns it as uint8.
func ReadUint8(ins Instructions) uint8 { return ins[0] }
