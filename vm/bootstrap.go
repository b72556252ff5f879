package vm

import "fmt"

// ---------------------------------------------------------------------------
// Bootstrap classes
// ---------------------------------------------------------------------------

// bootstrap installs Object, String and Handle into a fresh class table.
func bootstrap(ct *ClassTable) {
	object := ct.MustDefine(string(TypeObject), "")
	object.AddMethod(NewNativeMethod("equals:", false, params(TypeObject), TypeBool, objectEquals))
	object.AddMethod(NewNativeMethod("printString", false, nil, TypeString, objectPrintString))

	str := ct.MustDefine(string(TypeString), string(TypeObject))
	str.AddMethod(NewNativeMethod("concat:", false, params(TypeObject), TypeString, stringConcat))
	str.AddMethod(NewNativeMethod("size", false, nil, TypeInt, stringSize))
	str.AddMethod(NewNativeMethod("equals:", false, params(TypeObject), TypeBool, objectEquals))

	handle := ct.MustDefine(string(TypeHandle), string(TypeObject))
	handle.AddMethod(NewNativeMethod("invoke", false, nil, TypeObject, handleInvoke))
	handle.AddMethod(NewNativeMethod("invoke:", false, params(TypeObject), TypeObject, handleInvoke))
	handle.AddMethod(NewNativeMethod("invoke:with:", false, params(TypeObject, TypeObject), TypeObject, handleInvoke))
	handle.AddMethod(NewNativeMethod("invokeWithArguments:", false, params(ArrayOf(TypeObject)), TypeObject, handleInvokeWithArguments))
}

func params(types ...Type) []Param {
	out := make([]Param, len(types))
	for i, t := range types {
		out[i] = Param{Name: fmt.Sprintf("arg%d", i), Type: t}
	}
	return out
}

// ---------------------------------------------------------------------------
// Object primitives
// ---------------------------------------------------------------------------

func objectEquals(_ *Interpreter, receiver Value, args []Value) (Value, error) {
	return receiver == args[0], nil
}

func objectPrintString(_ *Interpreter, receiver Value, _ []Value) (Value, error) {
	return FormatValue(receiver), nil
}

// ---------------------------------------------------------------------------
// String primitives
// ---------------------------------------------------------------------------

func stringConcat(_ *Interpreter, receiver Value, args []Value) (Value, error) {
	s := receiver.(string)
	switch x := args[0].(type) {
	case string:
		return s + x, nil
	case nil:
		return s + "nil", nil
	default:
		return s + FormatValue(x), nil
	}
}

func stringSize(_ *Interpreter, receiver Value, _ []Value) (Value, error) {
	return int64(len(receiver.(string))), nil
}

// ---------------------------------------------------------------------------
// Handle primitives
// ---------------------------------------------------------------------------

func handleInvoke(it *Interpreter, receiver Value, args []Value) (Value, error) {
	return receiver.(*Handle).Invoke(it, args...)
}

func handleInvokeWithArguments(it *Interpreter, receiver Value, args []Value) (Value, error) {
	arr, ok := args[0].(*Array)
	if !ok {
		if args[0] == nil {
			return receiver.(*Handle).Invoke(it)
		}
		return nil, &RuntimeError{Message: fmt.Sprintf("invokeWithArguments: expects an array, got %s", FormatValue(args[0]))}
	}
	return receiver.(*Handle).Invoke(it, arr.Elems...)
}
