package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Field handles
// ---------------------------------------------------------------------------

func TestFieldHandles(t *testing.T) {
	ct, c, foo := sampleClass(t)
	obj := c.NewInstance()
	it := NewInterpreter(ct)

	get := NewFieldGetter(foo, obj)
	set := NewFieldSetter(foo, obj)
	if !get.Bound() || get.Kind() != HandleGetter {
		t.Errorf("getter = %s, want bound getter", get)
	}

	if _, err := set.Invoke(it, "bar"); err != nil {
		t.Fatal(err)
	}
	got, err := get.Invoke(it)
	if err != nil || got != "bar" {
		t.Errorf("getter = %v, %v; want bar", got, err)
	}

	if _, err := get.Invoke(it, "extra"); err == nil {
		t.Error("getter with an argument should fail")
	}
	if _, err := set.Invoke(it); err == nil {
		t.Error("setter without an argument should fail")
	}
}

func TestStaticFieldHandles(t *testing.T) {
	ct := NewClassTable()
	c := ct.MustDefine("Config", "")
	name, _ := c.AddField(&Field{Name: "name", Type: TypeString, Static: true, Init: "a"})
	it := NewInterpreter(ct)

	set := NewFieldSetter(name, nil)
	if set.Bound() {
		t.Error("static setter should be unbound")
	}
	if _, err := set.Invoke(it, "b"); err != nil {
		t.Fatal(err)
	}
	got, _ := NewFieldGetter(name, nil).Invoke(it)
	if got != "b" {
		t.Errorf("name = %v, want b", got)
	}
}

// ---------------------------------------------------------------------------
// Self-call handles
// ---------------------------------------------------------------------------

// greeter returns a class whose greet method answers s.
func greeter(t *testing.T, ct *ClassTable, name, super, s string) *Class {
	t.Helper()
	c := ct.MustDefine(name, super)
	method(t, c, "greet", false, nil, TypeString, 0, []Literal{StringLiteral(s)},
		Ins(OpPushLiteral, 0), Ins(OpReturnTop))
	return c
}

func TestSelfCallHandleRunsOriginal(t *testing.T) {
	ct := NewClassTable()
	c := greeter(t, ct, "Greeter", "", "hello")
	original := c.Method("greet")
	c.SetOriginal(original)
	// Redefine greet; the handle must still reach the original body.
	method(t, c, "greet", false, nil, TypeString, 0, []Literal{StringLiteral("redefined")},
		Ins(OpPushLiteral, 0), Ins(OpReturnTop))

	it := NewInterpreter(ct)
	obj := c.NewInstance()

	got, err := it.Send(obj, "greet")
	if err != nil || got != "redefined" {
		t.Fatalf("greet = %v, %v; want redefined", got, err)
	}

	bound := NewSelfCallHandle(c, "greet", obj, true)
	got, err = bound.Invoke(it)
	if err != nil || got != "hello" {
		t.Errorf("bound handle = %v, %v; want hello", got, err)
	}

	unbound := NewSelfCallHandle(c, "greet", nil, false)
	got, err = unbound.Invoke(it, obj)
	if err != nil || got != "hello" {
		t.Errorf("unbound handle = %v, %v; want hello", got, err)
	}
	if _, err := unbound.Invoke(it); err == nil || !strings.Contains(err.Error(), "needs a receiver") {
		t.Errorf("unbound handle without receiver: err = %v", err)
	}
}

func TestSelfCallHandleHonoursOverrides(t *testing.T) {
	ct := NewClassTable()
	base := greeter(t, ct, "Base", "", "base")
	sub := greeter(t, ct, "Sub", "Base", "sub")
	base.SetOriginal(base.Method("greet"))

	it := NewInterpreter(ct)
	h := NewSelfCallHandle(base, "greet", nil, false)

	// Sub never recorded an original, so its own body wins.
	got, err := h.Invoke(it, sub.NewInstance())
	if err != nil || got != "sub" {
		t.Errorf("handle on Sub = %v, %v; want sub", got, err)
	}

	sub.SetOriginal(sub.Method("greet"))
	method(t, sub, "greet", false, nil, TypeString, 0, []Literal{StringLiteral("rewritten")},
		Ins(OpPushLiteral, 0), Ins(OpReturnTop))
	got, err = h.Invoke(it, sub.NewInstance())
	if err != nil || got != "sub" {
		t.Errorf("handle on rewritten Sub = %v, %v; want sub", got, err)
	}

	got, err = h.Invoke(it, base.NewInstance())
	if err != nil || got != "base" {
		t.Errorf("handle on Base = %v, %v; want base", got, err)
	}
}

func TestSelfCallHandleRejectsForeignReceiver(t *testing.T) {
	ct := NewClassTable()
	c := greeter(t, ct, "Greeter", "", "hello")
	other := ct.MustDefine("Other", "")

	_, err := NewSelfCallHandle(c, "greet", other.NewInstance(), true).Invoke(NewInterpreter(ct))
	if err == nil {
		t.Error("handle invoked on an unrelated class should fail")
	}
}

func TestMakeHandleInstruction(t *testing.T) {
	ct, c, foo := sampleClass(t)
	lits := []Literal{HandleLiteral(HandleGetter, c, foo.Name, true)}
	m := method(t, c, "fooGetter", false, nil, TypeHandle, 0, lits,
		Ins(OpPushSelf), Ins(OpMakeHandle, 0), Ins(OpReturnTop))

	it := NewInterpreter(ct)
	obj := c.NewInstance()
	got, err := it.Invoke(m, obj)
	if err != nil {
		t.Fatal(err)
	}
	h, ok := got.(*Handle)
	if !ok {
		t.Fatalf("result = %v, want handle", FormatValue(got))
	}
	v, err := it.Send(h, "invoke")
	if err != nil || v != "foo" {
		t.Errorf("invoke = %v, %v; want foo", v, err)
	}
}
