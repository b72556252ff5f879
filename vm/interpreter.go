package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxCallDepth bounds nested invocations before a RuntimeError is raised.
const MaxCallDepth = 1024

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// RuntimeError is a fault raised by the interpreter itself (as opposed to an
// error returned by a native method).
type RuntimeError struct {
	Method  string // qualified method name, empty outside a frame
	Offset  int    // bytecode offset of the faulting instruction
	Message string
}

func (e *RuntimeError) Error() string {
	if e.Method == "" {
		return e.Message
	}
	return fmt.Sprintf("%s@%04d: %s", e.Method, e.Offset, e.Message)
}

// nativeFailure carries an error returned by a native method through the
// interpreter's panic-based unwinding.
type nativeFailure struct {
	err error
}

// ---------------------------------------------------------------------------
// CallFrame: Execution state for a method invocation
// ---------------------------------------------------------------------------

// CallFrame represents the execution state of a single method invocation.
type CallFrame struct {
	Method   *CompiledMethod
	Receiver Value
	IP       int // offset of the next instruction
	Temps    []Value

	stack []Value
	start int // offset of the instruction being executed
}

func (f *CallFrame) push(v Value) {
	f.stack = append(f.stack, v)
}

// ---------------------------------------------------------------------------
// Interpreter: Bytecode execution engine
// ---------------------------------------------------------------------------

// Interpreter executes bytecode against a class table. An Interpreter is not
// safe for concurrent use; run one per goroutine. Classes, methods and
// handles may be shared between interpreters.
type Interpreter struct {
	Classes *ClassTable

	frames []*CallFrame
}

// NewInterpreter creates an interpreter over the given class table.
func NewInterpreter(classes *ClassTable) *Interpreter {
	return &Interpreter{Classes: classes}
}

// Invoke runs m with the given receiver (nil for static methods) and
// arguments. Errors returned by native methods propagate unchanged; faults
// raised by the interpreter are *RuntimeError values.
func (i *Interpreter) Invoke(m *CompiledMethod, receiver Value, args ...Value) (result Value, err error) {
	defer i.recoverInto(&err)
	return i.call(m, receiver, args), nil
}

// Send dispatches selector on the receiver's class and runs the method found.
func (i *Interpreter) Send(receiver Value, selector string, args ...Value) (result Value, err error) {
	defer i.recoverInto(&err)
	m := i.classOf(receiver).LookupMethod(selector)
	if m == nil {
		i.fault("%s does not understand %s", FormatValue(receiver), selector)
	}
	return i.call(m, receiver, args), nil
}

// recoverInto converts an unwinding fault into an error. Frames pop
// themselves on the way out, so the interpreter stays usable.
func (i *Interpreter) recoverInto(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch x := r.(type) {
	case nativeFailure:
		*err = x.err
	case *RuntimeError:
		*err = x
	default:
		panic(r)
	}
}

// fault aborts execution with a RuntimeError attributed to the current frame.
func (i *Interpreter) fault(format string, args ...any) {
	e := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	if n := len(i.frames); n > 0 {
		f := i.frames[n-1]
		e.Method = f.Method.String()
		e.Offset = f.start
	}
	panic(e)
}

// call runs m and returns its result. Faults unwind via panic.
func (i *Interpreter) call(m *CompiledMethod, receiver Value, args []Value) Value {
	if len(args) != len(m.Params) {
		i.fault("%s expects %d arguments, got %d", m, len(m.Params), len(args))
	}
	if len(i.frames) >= MaxCallDepth {
		i.fault("call depth exceeded invoking %s", m)
	}
	if m.IsNative() {
		return i.callNative(m, receiver, args)
	}

	temps := make([]Value, max(m.NumTemps, len(args)))
	copy(temps, args)
	frame := &CallFrame{Method: m, Receiver: receiver, Temps: temps}
	i.frames = append(i.frames, frame)
	defer func() {
		i.frames = i.frames[:len(i.frames)-1]
	}()
	return i.runFrame(frame)
}

func (i *Interpreter) callNative(m *CompiledMethod, receiver Value, args []Value) Value {
	result, err := m.Native(i, receiver, args)
	if err != nil {
		var rt *RuntimeError
		if errors.As(err, &rt) {
			panic(rt)
		}
		panic(nativeFailure{err: err})
	}
	return result
}

// classOf returns the class whose methods a value responds to.
func (i *Interpreter) classOf(v Value) *Class {
	switch x := v.(type) {
	case *Object:
		return x.class
	case string:
		return i.Classes.Lookup(string(TypeString))
	case *Handle:
		return i.Classes.Lookup(string(TypeHandle))
	case nil:
		i.fault("nil receiver")
	}
	return i.Classes.Lookup(string(TypeObject))
}

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

func (i *Interpreter) pop(f *CallFrame) Value {
	n := len(f.stack)
	if n == 0 {
		i.fault("stack underflow")
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v
}

func (i *Interpreter) popN(f *CallFrame, n int) []Value {
	if len(f.stack) < n {
		i.fault("stack underflow")
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (i *Interpreter) literal(f *CallFrame, idx int) Literal {
	if idx >= len(f.Method.Literals) {
		i.fault("missing literal %d", idx)
	}
	return f.Method.Literals[idx]
}

func (i *Interpreter) field(f *CallFrame, idx int) *Field {
	fld, err := i.Classes.ResolveField(i.literal(f, idx))
	if err != nil {
		i.fault("%v", err)
	}
	return fld
}

func (i *Interpreter) method(f *CallFrame, idx int) *CompiledMethod {
	m, err := i.Classes.ResolveMethod(i.literal(f, idx))
	if err != nil {
		i.fault("%v", err)
	}
	return m
}

func (i *Interpreter) object(v Value, f *Field) *Object {
	obj, ok := v.(*Object)
	if !ok {
		i.fault("field %s accessed on %s", f, FormatValue(v))
	}
	if !obj.class.IsSubclassOf(f.class) {
		i.fault("field %s accessed on a %s", f, obj.class.Name)
	}
	return obj
}

// invoke pops arguments (and receiver, for instance methods) and runs the
// method chosen by dispatch, pushing its result unless it returns void.
func (i *Interpreter) invoke(f *CallFrame, dispatch func(receiver Value) *CompiledMethod, static bool, argc int) {
	args := i.popN(f, argc)
	var receiver Value
	if !static {
		receiver = i.pop(f)
	}
	m := dispatch(receiver)
	result := i.call(m, receiver, args)
	if !m.Returns.IsVoid() {
		f.push(result)
	}
}

func (i *Interpreter) runFrame(f *CallFrame) Value {
	bc := f.Method.Bytecode
	for {
		if f.IP >= len(bc) {
			// Implicit return at end of method
			return nil
		}
		f.start = f.IP
		op := Opcode(bc[f.IP])
		n := op.Info().OperandBytes
		if !op.Valid() || f.IP+1+n > len(bc) {
			i.fault("bad instruction 0x%02X", byte(op))
		}
		operands := bc[f.IP+1 : f.IP+1+n]
		f.IP += 1 + n

		var a, b int
		switch n {
		case 1:
			a = int(operands[0])
		case 2:
			a = int(binary.LittleEndian.Uint16(operands))
		case 3:
			a = int(binary.LittleEndian.Uint16(operands))
			b = int(operands[2])
		}

		switch op {
		// --- Stack operations ---
		case OpNOP:
		case OpPOP:
			i.pop(f)
		case OpDUP:
			v := i.pop(f)
			f.push(v)
			f.push(v)

		// --- Constants ---
		case OpPushNil:
			f.push(nil)
		case OpPushTrue:
			f.push(true)
		case OpPushFalse:
			f.push(false)
		case OpPushSelf:
			f.push(f.Receiver)
		case OpPushInt8:
			f.push(int64(int8(operands[0])))
		case OpPushLiteral:
			lit := i.literal(f, a)
			switch lit.Kind {
			case LitInt:
				f.push(lit.Int)
			case LitString:
				f.push(lit.Str)
			default:
				i.fault("cannot push %s literal", lit.Kind)
			}

		// --- Variables and fields ---
		case OpPushTemp:
			f.push(f.Temps[a])
		case OpStoreTemp:
			f.Temps[a] = i.pop(f)
		case OpPushField:
			fld := i.field(f, a)
			f.push(i.object(i.pop(f), fld).slots[fld.Slot])
		case OpStoreField:
			fld := i.field(f, a)
			v := i.pop(f)
			i.object(i.pop(f), fld).slots[fld.Slot] = v
		case OpPushStatic:
			fld := i.field(f, a)
			f.push(fld.class.GetStatic(fld.Name))
		case OpStoreStatic:
			fld := i.field(f, a)
			fld.class.SetStatic(fld.Name, i.pop(f))

		// --- Invocations ---
		case OpSend:
			target := i.method(f, a)
			i.invoke(f, func(receiver Value) *CompiledMethod {
				m := i.classOf(receiver).LookupMethod(target.selector)
				if m == nil {
					i.fault("%s does not understand %s", FormatValue(receiver), target.selector)
				}
				return m
			}, false, b)
		case OpSendSuper:
			target := i.method(f, a)
			super := f.Method.class.Superclass
			if super == nil {
				i.fault("%s has no superclass", f.Method.class.Name)
			}
			m := super.LookupMethod(target.selector)
			if m == nil {
				i.fault("super does not understand %s", target.selector)
			}
			i.invoke(f, func(Value) *CompiledMethod { return m }, false, b)
		case OpInvokeStatic, OpInvokeDelegate:
			m := i.method(f, a)
			if op == OpInvokeStatic && !m.IsStatic {
				i.fault("%s is not static", m)
			}
			i.invoke(f, func(Value) *CompiledMethod { return m }, m.IsStatic, b)

		// --- Control flow ---
		case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
			target := f.IP + int(int16(uint16(a)))
			taken := true
			switch op {
			case OpJumpTrue:
				taken = i.pop(f) == true
			case OpJumpFalse:
				taken = i.pop(f) == false
			case OpJumpNil:
				taken = i.pop(f) == nil
			}
			if taken {
				f.IP = target
			}

		// --- Returns ---
		case OpReturnTop:
			return i.pop(f)
		case OpReturnSelf:
			return f.Receiver
		case OpReturnNil:
			return nil

		// --- Objects and handles ---
		case OpCreateArray:
			lit := i.literal(f, a)
			f.push(NewArray(Type(lit.Str), i.popN(f, b)))
		case OpNew:
			c, err := i.Classes.ResolveClass(i.literal(f, a))
			if err != nil {
				i.fault("%v", err)
			}
			f.push(c.NewInstance())
		case OpMakeHandle:
			f.push(i.makeHandle(f, i.literal(f, a)))
		}
	}
}

func (i *Interpreter) makeHandle(f *CallFrame, lit Literal) *Handle {
	c, err := i.Classes.ResolveClass(lit)
	if err != nil {
		i.fault("%v", err)
	}
	var receiver Value
	if lit.Bound {
		receiver = i.pop(f)
	}
	switch lit.Handle {
	case HandleGetter, HandleSetter:
		fld := c.LookupField(lit.Member)
		if fld == nil {
			i.fault("unknown field %s.%s", lit.Class, lit.Member)
		}
		if !fld.Static {
			i.object(receiver, fld)
		}
		if lit.Handle == HandleGetter {
			return NewFieldGetter(fld, receiver)
		}
		return NewFieldSetter(fld, receiver)
	default:
		if c.Method(lit.Member) == nil {
			i.fault("unknown method %s.%s", lit.Class, lit.Member)
		}
		return NewSelfCallHandle(c, lit.Member, receiver, lit.Bound)
	}
}
