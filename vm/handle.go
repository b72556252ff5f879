package vm

import "fmt"

// ---------------------------------------------------------------------------
// Handle: invokable references to methods and fields
// ---------------------------------------------------------------------------

// Handle is an invokable reference captured once and invoked any number of
// times. A handle holds no mutable state of its own, so it may be shared and
// invoked from any goroutine (each with its own Interpreter).
type Handle struct {
	kind     HandleKind
	class    *Class // declaring class of the method or field
	selector string
	field    *Field
	receiver Value
	bound    bool
}

// NewSelfCallHandle returns a handle on the original body of the method
// class>>selector. A bound handle carries its receiver; an unbound handle of
// an instance method takes the receiver as its first argument.
//
// Invoking the handle never dispatches to a redefined body: it runs the
// nearest recorded original between the receiver's class and class, so a
// substitution that created the handle is not re-entered.
func NewSelfCallHandle(class *Class, selector string, receiver Value, bound bool) *Handle {
	return &Handle{kind: HandleSelfCall, class: class, selector: selector, receiver: receiver, bound: bound}
}

// NewFieldGetter returns a zero-argument handle that reads f when invoked.
// receiver is ignored for static fields.
func NewFieldGetter(f *Field, receiver Value) *Handle {
	return &Handle{kind: HandleGetter, class: f.class, field: f, receiver: receiver, bound: !f.Static}
}

// NewFieldSetter returns a one-argument handle that writes f when invoked.
// receiver is ignored for static fields.
func NewFieldSetter(f *Field, receiver Value) *Handle {
	return &Handle{kind: HandleSetter, class: f.class, field: f, receiver: receiver, bound: !f.Static}
}

// Kind returns the handle kind.
func (h *Handle) Kind() HandleKind {
	return h.kind
}

// Bound reports whether the handle carries its receiver.
func (h *Handle) Bound() bool {
	return h.bound
}

// String renders the handle for diagnostics.
func (h *Handle) String() string {
	member := h.selector
	if h.field != nil {
		member = h.field.Name
	}
	s := fmt.Sprintf("<%s %s.%s", h.kind, h.class.Name, member)
	if h.bound {
		s += " bound"
	}
	return s + ">"
}

// Invoke calls the handle. Errors raised while running the target propagate
// unchanged.
func (h *Handle) Invoke(it *Interpreter, args ...Value) (result Value, err error) {
	defer it.recoverInto(&err)
	return h.invoke(it, args), nil
}

func (h *Handle) invoke(it *Interpreter, args []Value) Value {
	switch h.kind {
	case HandleGetter:
		if len(args) != 0 {
			it.fault("getter handle %s takes no arguments, got %d", h, len(args))
		}
		return h.get()
	case HandleSetter:
		if len(args) != 1 {
			it.fault("setter handle %s takes one argument, got %d", h, len(args))
		}
		h.set(args[0])
		return nil
	default:
		return h.selfCall(it, args)
	}
}

func (h *Handle) get() Value {
	if h.field.Static {
		return h.class.GetStatic(h.field.Name)
	}
	return h.receiver.(*Object).slots[h.field.Slot]
}

func (h *Handle) set(v Value) {
	if h.field.Static {
		h.class.SetStatic(h.field.Name, v)
		return
	}
	h.receiver.(*Object).slots[h.field.Slot] = v
}

func (h *Handle) selfCall(it *Interpreter, args []Value) Value {
	declared := h.class.Method(h.selector)
	if declared == nil {
		it.fault("self-call handle: %s.%s no longer exists", h.class.Name, h.selector)
	}
	receiver := h.receiver
	if !declared.IsStatic && !h.bound {
		if len(args) == 0 {
			it.fault("unbound handle %s needs a receiver argument", h)
		}
		receiver, args = args[0], args[1:]
	}
	m := h.resolveOriginal(it, receiver, declared)
	return it.call(m, receiver, args)
}

// resolveOriginal walks from the receiver's run-time class up to the
// declaring class and returns the first original body found. A class
// whose method was never redefined contributes nothing, so the walk ends at
// the declaring class's own original (or its declared body).
func (h *Handle) resolveOriginal(it *Interpreter, receiver Value, declared *CompiledMethod) *CompiledMethod {
	if declared.IsStatic {
		if m := h.class.Original(h.selector); m != nil {
			return m
		}
		return declared
	}
	obj, ok := receiver.(*Object)
	if !ok {
		it.fault("self-call handle %s: receiver %s is not an object", h, FormatValue(receiver))
	}
	if !obj.class.IsSubclassOf(h.class) {
		it.fault("self-call handle %s: receiver is a %s", h, obj.class.Name)
	}
	for c := obj.class; c != nil; c = c.Superclass {
		if m := c.Original(h.selector); m != nil {
			return m
		}
		if c == h.class {
			break
		}
	}
	return declared
}
