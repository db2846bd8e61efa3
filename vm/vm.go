// Package vm implements the stack-based virtual machine that executes Sofia bytecode.
//
// The VM fetches, decodes, and executes the instructions produced by the compiler package, using an
// operand stack and a stack of call frames for function/method activation. Closures, classes,
// structs, and pattern matching all compile down to the opcodes handled here; the VM itself carries no
// knowledge of the AST.
package vm

import (
	"fmt"
	"strings"

	"github.com/sofialang/sofia/code"
	"github.com/sofialang/sofia/compiler"
	"github.com/sofialang/sofia/object"
)

const (
	// StackSize is the maximum number of values the operand stack may hold at once.
	StackSize = 2048

	// GlobalsSize is the maximum number of global bindings a program may define.
	GlobalsSize = 65536

	// MaxFrames bounds the call-frame stack; exceeding it raises a StackOverflow error instead of
	// growing the Go stack without limit.
	MaxFrames = 1024
)

// True, False, and Null are the VM's singleton instances of their respective types, so that identity
// comparison and truthiness checks never need to allocate.
var (
	True  = &object.Boolean{Value: true}
	False = &object.Boolean{Value: false}
	Null  = &object.Null{}
)

// VM is the virtual machine that executes compiled Sofia bytecode.
type VM struct {
	constants []object.Object

	stack []object.Object
	// sp always points to the next free slot; the top of stack is stack[sp-1].
	sp int

	globals []object.Object

	frames      []*Frame
	framesIndex int

	// Trace enables debug_trace: when set, every executed instruction is appended to TraceLog as a
	// formatted line including the instruction pointer, mnemonic, operands, and a stack snapshot.
	Trace    bool
	TraceLog []string
}

// New creates a VM ready to execute bytecode, with a fresh, empty globals store.
func New(bytecode *compiler.Bytecode) *VM {
	mainFn := &object.CompiledFunction{Instructions: bytecode.Instructions}
	mainClosure := &object.Closure{Fn: mainFn}
	mainFrame := NewFrame(mainClosure, 0)

	frames := make([]*Frame, MaxFrames)
	frames[0] = mainFrame

	return &VM{
		constants:   bytecode.Constants,
		stack:       make([]object.Object, StackSize),
		sp:          0,
		globals:     make([]object.Object, GlobalsSize),
		frames:      frames,
		framesIndex: 1,
	}
}

// NewWithGlobalsStore creates a VM that shares the given globals store with a previous run, so that a
// REPL can carry bindings forward across successive lines.
func NewWithGlobalsStore(bytecode *compiler.Bytecode, s []object.Object) *VM {
	vm := New(bytecode)
	vm.globals = s
	return vm
}

// LastPoppedStackItem returns the value most recently popped off the stack - conventionally the
// result of the last top-level expression statement, useful for a REPL or `eval` result.
func (vm *VM) LastPoppedStackItem() object.Object {
	return vm.stack[vm.sp]
}

func (vm *VM) currentFrame() *Frame {
	return vm.frames[vm.framesIndex-1]
}

func (vm *VM) pushFrame(f *Frame) error {
	if vm.framesIndex >= MaxFrames {
		return newError("StackOverflow", "call stack exceeded %d frames", MaxFrames)
	}
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
	return nil
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

func (vm *VM) push(obj object.Object) error {
	if vm.sp >= StackSize {
		return newError("StackOverflow", "operand stack exceeded %d slots", StackSize)
	}
	vm.stack[vm.sp] = obj
	vm.sp++
	return nil
}

func (vm *VM) pop() object.Object {
	obj := vm.stack[vm.sp-1]
	vm.sp--
	return obj
}

// Run executes the whole program loaded into the VM.
func (vm *VM) Run() error {
	return vm.runFrames(0)
}

// runFrames executes instructions until the frame stack depth drops back to minFrames (used to run a
// nested call - a class/struct property default - to completion without
// unwinding the VM's Go call stack) or, for the top-level program (minFrames == 0), until the
// outermost frame's instructions are exhausted.
func (vm *VM) runFrames(minFrames int) error {
	for len(vm.frames[:vm.framesIndex]) > minFrames {
		frame := vm.currentFrame()

		if frame.ip >= len(frame.Instructions())-1 {
			// The outermost frame has no trailing OpReturn; its instructions simply run out.
			return nil
		}

		frame.ip++
		ip := frame.ip
		ins := frame.Instructions()
		op := code.Opcode(ins[ip])

		if vm.Trace {
			vm.recordTrace(frame, ip, op)
		}

		switch op {
		case code.OpConstant:
			constIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			if err := vm.push(vm.constants[constIndex]); err != nil {
				return err
			}

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod, code.OpPow:
			if err := vm.executeBinaryOperation(op); err != nil {
				return err
			}

		case code.OpPop:
			vm.pop()

		case code.OpTrue:
			if err := vm.push(True); err != nil {
				return err
			}

		case code.OpFalse:
			if err := vm.push(False); err != nil {
				return err
			}

		case code.OpEqual, code.OpNotEqual, code.OpGreaterThan, code.OpLessThan:
			if err := vm.executeComparison(op); err != nil {
				return err
			}

		case code.OpBang:
			if err := vm.executeBangOperator(); err != nil {
				return err
			}

		case code.OpMinus:
			if err := vm.executeMinusOperator(); err != nil {
				return err
			}

		case code.OpJump:
			pos := int(code.ReadUint16(ins[ip+1:]))
			frame.ip = pos - 1

		case code.OpJumpNotTruthy:
			pos := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			condition := vm.pop()
			if !isTruthy(condition) {
				frame.ip = pos - 1
			}

		case code.OpJumpIfTrue:
			pos := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			condition := vm.pop()
			if isTruthy(condition) {
				frame.ip = pos - 1
			}

		case code.OpNull:
			if err := vm.push(Null); err != nil {
				return err
			}

		case code.OpSetGlobal:
			globalIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			vm.globals[globalIndex] = vm.stack[vm.sp-1]

		case code.OpGetGlobal:
			globalIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			if err := vm.push(vm.globals[globalIndex]); err != nil {
				return err
			}

		case code.OpSetLocal:
			localIndex := code.ReadUint8(ins[ip+1:])
			frame.ip++
			vm.stack[frame.basePointer+int(localIndex)] = vm.stack[vm.sp-1]

		case code.OpGetLocal:
			localIndex := code.ReadUint8(ins[ip+1:])
			frame.ip++
			if err := vm.push(vm.stack[frame.basePointer+int(localIndex)]); err != nil {
				return err
			}

		case code.OpGetBuiltin:
			builtinIndex := code.ReadUint8(ins[ip+1:])
			frame.ip++
			def := object.Builtins[builtinIndex]
			if err := vm.push(def.Builtin); err != nil {
				return err
			}


		case code.OpArray:
			numElements := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			array := vm.buildArray(vm.sp-numElements, vm.sp)
			vm.sp -= numElements
			if err := vm.push(array); err != nil {
				return err
			}

		case code.OpHash:
			numElements := int(code.ReadUint16(ins[ip+1:]))
			frame.ip += 2
			hash, err := vm.buildHash(vm.sp-numElements, vm.sp)
			if err != nil {
				return err
			}
			vm.sp -= numElements
			if err := vm.push(hash); err != nil {
				return err
			}

		case code.OpIndex:
			index := vm.pop()
			left := vm.pop()
			if err := vm.executeIndexExpression(left, index); err != nil {
				return err
			}

		case code.OpSetIndex:
			value := vm.pop()
			index := vm.pop()
			collection := vm.pop()
			if err := vm.executeSetIndex(collection, index, value); err != nil {
				return err
			}
			if err := vm.push(value); err != nil {
				return err
			}

		case code.OpCall:
			numArgs := int(code.ReadUint8(ins[ip+1:]))
			frame.ip++
			if err := vm.executeCall(numArgs); err != nil {
				return err
			}

		case code.OpReturnValue:
			returnValue := vm.pop()
			f := vm.popFrame()
			vm.sp = f.basePointer - 1
			if err := vm.push(returnValue); err != nil {
				return err
			}

		case code.OpReturn:
			f := vm.popFrame()
			vm.sp = f.basePointer - 1
			if err := vm.push(Null); err != nil {
				return err
			}

		case code.OpClosure:
			constIndex := code.ReadUint16(ins[ip+1:])
			numFree := code.ReadUint8(ins[ip+3:])
			frame.ip += 3
			if err := vm.pushClosure(int(constIndex), int(numFree)); err != nil {
				return err
			}

		case code.OpGetFree:
			freeIndex := code.ReadUint8(ins[ip+1:])
			frame.ip++
			currentClosure := frame.cl
			if err := vm.push(currentClosure.Free[freeIndex]); err != nil {
				return err
			}

		case code.OpCurrentClosure:
			if err := vm.push(frame.cl); err != nil {
				return err
			}

		case code.OpClass:
			constIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			if err := vm.executeOpClass(constIndex); err != nil {
				return err
			}

		case code.OpStruct:
			constIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			bp, ok := vm.constants[constIndex].(*object.StructBlueprint)
			if !ok {
				return newError("InvalidBlueprint", "constant %d is not a struct blueprint", constIndex)
			}
			if err := vm.push(&object.Struct{Name: bp.Name, Properties: bp.Properties}); err != nil {
				return err
			}

		case code.OpInterface:
			constIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			bp, ok := vm.constants[constIndex].(*object.InterfaceBlueprint)
			if !ok {
				return newError("InvalidBlueprint", "constant %d is not an interface blueprint", constIndex)
			}
			if err := vm.push(&object.Interface{Name: bp.Name, Methods: bp.Methods}); err != nil {
				return err
			}

		case code.OpNew:
			numArgs := int(code.ReadUint8(ins[ip+1:]))
			frame.ip++
			if err := vm.executeNew(numArgs); err != nil {
				return err
			}

		case code.OpNewStruct:
			numArgs := int(code.ReadUint8(ins[ip+1:]))
			frame.ip++
			if err := vm.executeNewStruct(numArgs); err != nil {
				return err
			}

		case code.OpGetProperty:
			constIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			name, ok := vm.constants[constIndex].(*object.String)
			if !ok {
				return newError("InvalidProperty", "constant %d is not a property name", constIndex)
			}
			receiver := vm.pop()
			value, err := vm.getProperty(receiver, name.Value)
			if err != nil {
				return err
			}
			if err := vm.push(value); err != nil {
				return err
			}

		case code.OpSetProperty:
			constIndex := code.ReadUint16(ins[ip+1:])
			frame.ip += 2
			name, ok := vm.constants[constIndex].(*object.String)
			if !ok {
				return newError("InvalidProperty", "constant %d is not a property name", constIndex)
			}
			value := vm.pop()
			receiver := vm.pop()
			if err := vm.setProperty(receiver, name.Value, value); err != nil {
				return err
			}
			if err := vm.push(value); err != nil {
				return err
			}

		case code.OpThis:
			if frame.receiver == nil {
				return newError("InvalidThisUsage", "'this' used outside of a method body")
			}
			if err := vm.push(frame.receiver); err != nil {
				return err
			}

		case code.OpSuper:
			nameIndex := code.ReadUint16(ins[ip+1:])
			numArgs := int(code.ReadUint8(ins[ip+3:]))
			frame.ip += 3
			name, ok := vm.constants[nameIndex].(*object.String)
			if !ok {
				return newError("InvalidProperty", "constant %d is not a method name", nameIndex)
			}
			if err := vm.executeSuperCall(name.Value, numArgs); err != nil {
				return err
			}

		case code.OpNoOp:
			// no operation

		case code.OpMapToAst:
			frame.ip += 2

		default:
			return newError("UnknownOpcode", "unhandled opcode %d", op)
		}
	}

	return nil
}

func (vm *VM) buildArray(startIndex, endIndex int) object.Object {
	elements := make([]object.Object, endIndex-startIndex)
	copy(elements, vm.stack[startIndex:endIndex])
	return &object.Array{Elements: elements}
}

func (vm *VM) buildHash(startIndex, endIndex int) (object.Object, error) {
	hash := &object.Hash{Pairs: make(map[object.HashKey]object.HashPair)}

	for i := startIndex; i < endIndex; i += 2 {
		key := vm.stack[i]
		value := vm.stack[i+1]

		hashKey, ok := key.(object.Hashable)
		if !ok {
			return nil, newError("NotHashable", "unusable as hash key: %s", key.Type())
		}
		hash.Set(hashKey.HashKey(), object.HashPair{Key: key, Value: value})
	}

	return hash, nil
}

func (vm *VM) executeIndexExpression(left, index object.Object) error {
	switch {
	case left.Type() == object.ARRAY_OBJ && index.Type() == object.INTEGER_OBJ:
		return vm.executeArrayIndex(left, index)
	case left.Type() == object.HASH_OBJ:
		return vm.executeHashIndex(left, index)
	default:
		return newError("NotIndexable", "index operator not supported: %s", left.Type())
	}
}

func (vm *VM) executeArrayIndex(array, index object.Object) error {
	arrayObject := array.(*object.Array)
	i := index.(*object.Integer).Value
	max := int64(len(arrayObject.Elements) - 1)

	if i < 0 || i > max {
		return vm.push(Null)
	}

	return vm.push(arrayObject.Elements[i])
}

func (vm *VM) executeHashIndex(hash, index object.Object) error {
	hashObject := hash.(*object.Hash)

	key, ok := index.(object.Hashable)
	if !ok {
		return newError("NotHashable", "unusable as hash key: %s", index.Type())
	}

	pair, ok := hashObject.Pairs[key.HashKey()]
	if !ok {
		return vm.push(Null)
	}

	return vm.push(pair.Value)
}

func (vm *VM) executeSetIndex(collection, index, value object.Object) error {
	switch coll := collection.(type) {
	case *object.Array:
		i, ok := index.(*object.Integer)
		if !ok {
			return newError("InvalidIndex", "array index must be an integer, got %s", index.Type())
		}
		if i.Value < 0 || i.Value > int64(len(coll.Elements)-1) {
			return newError("IndexOutOfBounds", "index %d out of bounds for array of length %d", i.Value, len(coll.Elements))
		}
		coll.Elements[i.Value] = value

	case *object.Hash:
		key, ok := index.(object.Hashable)
		if !ok {
			return newError("NotHashable", "unusable as hash key: %s", index.Type())
		}
		coll.Set(key.HashKey(), object.HashPair{Key: index, Value: value})

	default:
		return newError("NotIndexable", "index assignment not supported: %s", collection.Type())
	}

	return nil
}

func (vm *VM) executeBinaryOperation(op code.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	leftType := left.Type()
	rightType := right.Type()

	switch {
	case leftType == object.INTEGER_OBJ && rightType == object.INTEGER_OBJ:
		return vm.executeBinaryIntegerOperation(op, left, right)
	case leftType == object.STRING_OBJ && rightType == object.STRING_OBJ && op == code.OpAdd:
		return vm.push(&object.String{Value: left.(*object.String).Value + right.(*object.String).Value})
	case leftType == object.STRING_OBJ && rightType == object.INTEGER_OBJ && op == code.OpMul:
		return vm.push(&object.String{Value: strings.Repeat(left.(*object.String).Value, int(right.(*object.Integer).Value))})
	default:
		return newError("TypeMismatch", "unsupported types for binary operation: %s %s", leftType, rightType)
	}
}

func (vm *VM) executeBinaryIntegerOperation(op code.Opcode, left, right object.Object) error {
	leftValue := left.(*object.Integer).Value
	rightValue := right.(*object.Integer).Value

	var result int64

	switch op {
	case code.OpAdd:
		result = leftValue + rightValue
	case code.OpSub:
		result = leftValue - rightValue
	case code.OpMul:
		result = leftValue * rightValue
	case code.OpDiv:
		if rightValue == 0 {
			return newError("DivisionByZero", "division by zero")
		}
		result = leftValue / rightValue
	case code.OpMod:
		if rightValue == 0 {
			return newError("DivisionByZero", "modulo by zero")
		}
		result = leftValue % rightValue
	case code.OpPow:
		if rightValue < 0 {
			return newError("NegativeExponent", "cannot raise integer to a negative exponent %d", rightValue)
		}
		result = 1
		for range rightValue {
			result *= leftValue
		}
	default:
		return newError("UnknownOperator", "unknown integer operator: %d", op)
	}

	return vm.push(&object.Integer{Value: result})
}

func (vm *VM) executeComparison(op code.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	if left.Type() == object.INTEGER_OBJ && right.Type() == object.INTEGER_OBJ {
		return vm.executeIntegerComparison(op, left, right)
	}

	switch op {
	case code.OpEqual:
		return vm.push(nativeBoolToBooleanObject(left == right || sameValue(left, right)))
	case code.OpNotEqual:
		return vm.push(nativeBoolToBooleanObject(!(left == right || sameValue(left, right))))
	default:
		return newError("UnknownOperator", "unknown operator: %d (%s %s)", op, left.Type(), right.Type())
	}
}

// sameValue compares values that are equal by content rather than identity (e.g. strings), since
// string objects may be distinct Go values with the same contents.
func sameValue(left, right object.Object) bool {
	if left.Type() != right.Type() {
		return false
	}
	if ls, ok := left.(*object.String); ok {
		return ls.Value == right.(*object.String).Value
	}
	if lb, ok := left.(*object.Boolean); ok {
		return lb.Value == right.(*object.Boolean).Value
	}
	_, lNull := left.(*object.Null)
	_, rNull := right.(*object.Null)
	return lNull && rNull
}

func (vm *VM) executeIntegerComparison(op code.Opcode, left, right object.Object) error {
	leftValue := left.(*object.Integer).Value
	rightValue := right.(*object.Integer).Value

	switch op {
	case code.OpEqual:
		return vm.push(nativeBoolToBooleanObject(leftValue == rightValue))
	case code.OpNotEqual:
		return vm.push(nativeBoolToBooleanObject(leftValue != rightValue))
	case code.OpGreaterThan:
		return vm.push(nativeBoolToBooleanObject(leftValue > rightValue))
	case code.OpLessThan:
		return vm.push(nativeBoolToBooleanObject(leftValue < rightValue))
	default:
		return newError("UnknownOperator", "unknown operator: %d", op)
	}
}

func nativeBoolToBooleanObject(input bool) *object.Boolean {
	if input {
		return True
	}
	return False
}

func (vm *VM) executeBangOperator() error {
	operand := vm.pop()

	switch operand {
	case True:
		return vm.push(False)
	case False:
		return vm.push(True)
	case Null:
		return vm.push(True)
	default:
		return vm.push(False)
	}
}

func (vm *VM) executeMinusOperator() error {
	operand := vm.pop()

	integer, ok := operand.(*object.Integer)
	if !ok {
		return newError("TypeMismatch", "unsupported type for negation: %s", operand.Type())
	}

	return vm.push(&object.Integer{Value: -integer.Value})
}

func isTruthy(obj object.Object) bool {
	switch obj := obj.(type) {
	case *object.Boolean:
		return obj.Value
	case *object.Null:
		return false
	default:
		return true
	}
}

func (vm *VM) pushClosure(constIndex, numFree int) error {
	constant := vm.constants[constIndex]
	function, ok := constant.(*object.CompiledFunction)
	if !ok {
		return newError("InvalidClosure", "not a function: %+v", constant)
	}

	free := make([]object.Object, numFree)
	for i := range numFree {
		free[i] = vm.stack[vm.sp-numFree+i]
	}
	vm.sp -= numFree

	return vm.push(&object.Closure{Fn: function, Free: free})
}

func (vm *VM) executeCall(numArgs int) error {
	callee := vm.stack[vm.sp-1-numArgs]

	switch callee := callee.(type) {
	case *object.Closure:
		return vm.callClosure(callee, numArgs, nil)
	case *object.Builtin:
		return vm.callBuiltin(callee, numArgs)
	case *object.BoundMethod:
		return vm.callBoundMethod(callee, numArgs)
	default:
		return newError("NotCallable", "calling non-function and non-built-in: %s", callee.Type())
	}
}

func (vm *VM) callClosure(cl *object.Closure, numArgs int, receiver *object.ClassInstance) error {
	if numArgs != cl.Fn.NumParameters {
		return newError("ArityMismatch", "wrong number of arguments: want=%d, got=%d", cl.Fn.NumParameters, numArgs)
	}

	basePointer := vm.sp - numArgs
	var frame *Frame
	if receiver != nil {
		frame = NewMethodFrame(cl, basePointer, receiver)
	} else {
		frame = NewFrame(cl, basePointer)
	}
	if err := vm.pushFrame(frame); err != nil {
		return err
	}
	vm.sp = frame.basePointer + cl.Fn.NumLocals

	return nil
}

func (vm *VM) callBuiltin(builtin *object.Builtin, numArgs int) error {
	args := vm.stack[vm.sp-numArgs : vm.sp]

	result := builtin.Fn(args...)
	vm.sp = vm.sp - numArgs - 1

	if result != nil {
		return vm.push(result)
	}
	return vm.push(Null)
}

func (vm *VM) callBoundMethod(bm *object.BoundMethod, numArgs int) error {
	closure := &object.Closure{Fn: bm.Method}
	return vm.callClosure(closure, numArgs, bm.Receiver)
}

// runThunk synchronously evaluates a zero-argument compiled thunk (a property default) to completion,
// by pushing its frame and re-entering the fetch-decode-execute loop until that frame returns.
func (vm *VM) runThunk(fn *object.CompiledFunction) (object.Object, error) {
	closure := &object.Closure{Fn: fn}
	depth := vm.framesIndex
	// The closure takes the callee slot beneath the frame, as with OpCall, so that the thunk's
	// return leaves the stack below it untouched.
	if err := vm.push(closure); err != nil {
		return nil, err
	}
	basePointer := vm.sp
	if err := vm.pushFrame(NewFrame(closure, basePointer)); err != nil {
		return nil, err
	}
	vm.sp = basePointer + fn.NumLocals

	if err := vm.runFrames(depth); err != nil {
		return nil, err
	}

	return vm.pop(), nil
}

func (vm *VM) executeOpClass(constIndex uint16) error {
	bp, ok := vm.constants[constIndex].(*object.ClassBlueprint)
	if !ok {
		return newError("InvalidBlueprint", "constant %d is not a class blueprint", constIndex)
	}

	class := &object.Class{
		Name:       bp.Name,
		Properties: bp.Properties,
		Methods:    bp.Methods,
	}

	if bp.HasParent {
		parent, ok := vm.globals[bp.ParentGlobalIndex].(*object.Class)
		if !ok {
			return newError("InvalidParent", "parent of class %s is not a class", bp.Name)
		}
		class.Parent = parent
	}

	staticFields := make(map[string]object.Object)
	for _, prop := range class.AllProperties() {
		if !prop.Static {
			continue
		}
		value, err := vm.evaluateDefault(prop.Default)
		if err != nil {
			return err
		}
		staticFields[prop.Name] = value
	}
	class.StaticFields = staticFields

	return vm.push(class)
}

func (vm *VM) evaluateDefault(thunk *object.CompiledFunction) (object.Object, error) {
	if thunk == nil {
		return Null, nil
	}
	return vm.runThunk(thunk)
}

func (vm *VM) executeNew(numArgs int) error {
	args := make([]object.Object, numArgs)
	copy(args, vm.stack[vm.sp-numArgs:vm.sp])
	callee := vm.stack[vm.sp-numArgs-1]
	vm.sp = vm.sp - numArgs - 1

	class, ok := callee.(*object.Class)
	if !ok {
		return newError("InvalidConstruction", "cannot instantiate non-class value: %s", callee.Type())
	}

	props := class.AllProperties()

	fields := make(map[string]object.Object)
	order := make([]string, 0, len(props))

	argIndex := 0
	for _, prop := range props {
		if prop.Static {
			continue
		}
		order = append(order, prop.Name)
		if argIndex < len(args) {
			fields[prop.Name] = args[argIndex]
			argIndex++
			continue
		}
		value, err := vm.evaluateDefault(prop.Default)
		if err != nil {
			return err
		}
		fields[prop.Name] = value
	}

	return vm.push(&object.ClassInstance{Class: class, Fields: fields, FieldOrder: order})
}

func (vm *VM) executeNewStruct(numArgs int) error {
	args := make([]object.Object, numArgs)
	copy(args, vm.stack[vm.sp-numArgs:vm.sp])
	callee := vm.stack[vm.sp-numArgs-1]
	vm.sp = vm.sp - numArgs - 1

	st, ok := callee.(*object.Struct)
	if !ok {
		return newError("InvalidConstruction", "cannot instantiate non-struct value: %s", callee.Type())
	}

	fields := make(map[string]object.Object)
	order := make([]string, 0, len(st.Properties))

	for i, prop := range st.Properties {
		order = append(order, prop.Name)
		if i < len(args) {
			fields[prop.Name] = args[i]
			continue
		}
		value, err := vm.evaluateDefault(prop.Default)
		if err != nil {
			return err
		}
		fields[prop.Name] = value
	}

	return vm.push(&object.StructInstance{Struct: st, Fields: fields, FieldOrder: order})
}

// getProperty reads a property or method off a class instance, struct instance, hash, or class value.
// The name "__kind__" is reserved: it returns the instance's class or struct name, used by compiled
// struct-pattern matching to test a scrutinee's runtime type before destructuring its fields.
func (vm *VM) getProperty(receiver object.Object, name string) (object.Object, error) {
	switch r := receiver.(type) {
	case *object.ClassInstance:
		if name == "__kind__" {
			return &object.String{Value: r.Class.Name}, nil
		}
		if value, ok := r.Fields[name]; ok {
			return value, nil
		}
		if method, ok := r.Class.Method(name); ok {
			return &object.BoundMethod{Method: method, Receiver: r}, nil
		}
		return nil, newError("UnknownProperty", "%s has no property or method %q", r.Class.Name, name)

	case *object.StructInstance:
		if name == "__kind__" {
			return &object.String{Value: r.Struct.Name}, nil
		}
		if value, ok := r.Fields[name]; ok {
			return value, nil
		}
		return nil, newError("UnknownProperty", "%s has no field %q", r.Struct.Name, name)

	case *object.Class:
		if value, ok := r.StaticFields[name]; ok {
			return value, nil
		}
		return nil, newError("UnknownProperty", "class %s has no static property %q", r.Name, name)

	case *object.Hash:
		key := &object.String{Value: name}
		pair, ok := r.Pairs[key.HashKey()]
		if !ok {
			return Null, nil
		}
		return pair.Value, nil

	default:
		return nil, newError("UnknownProperty", "cannot access property %q on %s", name, receiver.Type())
	}
}

func (vm *VM) setProperty(receiver object.Object, name string, value object.Object) error {
	switch r := receiver.(type) {
	case *object.ClassInstance:
		if _, ok := r.Fields[name]; !ok {
			return newError("UnknownProperty", "%s has no property %q", r.Class.Name, name)
		}
		r.Fields[name] = value
		return nil

	case *object.StructInstance:
		r.Set(name, value)
		return nil

	case *object.Class:
		if _, ok := r.StaticFields[name]; !ok {
			return newError("UnknownProperty", "class %s has no static property %q", r.Name, name)
		}
		r.StaticFields[name] = value
		return nil

	case *object.Hash:
		key := &object.String{Value: name}
		r.Set(key.HashKey(), object.HashPair{Key: key, Value: value})
		return nil

	default:
		return newError("UnknownProperty", "cannot assign property %q on %s", name, receiver.Type())
	}
}

func (vm *VM) executeSuperCall(name string, numArgs int) error {
	frame := vm.currentFrame()
	if frame.receiver == nil {
		return newError("InvalidSuperUsage", "'super' used outside of a method body")
	}
	if frame.receiver.Class.Parent == nil {
		return newError("InvalidSuperUsage", "class %s has no parent", frame.receiver.Class.Name)
	}

	method, ok := frame.receiver.Class.Parent.Method(name)
	if !ok {
		return newError("UnknownProperty", "%s has no method %q", frame.receiver.Class.Parent.Name, name)
	}

	closure := &object.Closure{Fn: method}
	// Open a callee slot beneath the arguments, as OpCall has, so that returning from the method
	// removes exactly the arguments and leaves the result in their place.
	if err := vm.push(closure); err != nil {
		return err
	}
	copy(vm.stack[vm.sp-numArgs:vm.sp], vm.stack[vm.sp-numArgs-1:vm.sp-1])
	vm.stack[vm.sp-numArgs-1] = closure
	return vm.callClosure(closure, numArgs, frame.receiver)
}

func (vm *VM) recordTrace(frame *Frame, ip int, op code.Opcode) {
	def, err := code.Lookup(byte(op))
	mnemonic := "?"
	var operands []int
	if err == nil {
		mnemonic = def.Name
		operands, _ = code.ReadOperands(def, frame.Instructions()[ip+1:])
	}
	stackTop := make([]string, 0, 3)
	for i := max(0, vm.sp-3); i < vm.sp; i++ {
		if vm.stack[i] == nil {
			stackTop = append(stackTop, "<nil>")
			continue
		}
		stackTop = append(stackTop, vm.stack[i].Inspect())
	}
	vm.TraceLog = append(vm.TraceLog, fmt.Sprintf("ip=%04d %-16s %v sp=%d stack=[%s] frames=%d",
		ip, mnemonic, operands, vm.sp, strings.Join(stackTop, ", "), vm.framesIndex))
}
