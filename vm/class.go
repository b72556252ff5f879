package vm

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Class: user class representation
// ---------------------------------------------------------------------------

// Class describes a user class: its fields, its methods and its place in
// the hierarchy.
type Class struct {
	Name       string
	Superclass *Class
	Fields     []*Field // declared fields, in declaration order
	NumSlots   int      // instance slots including inherited ones
	VTable     *VTable

	methods []*CompiledMethod // declared methods, in declaration order

	// originals holds unmodified bodies of methods that were redefined by a
	// substitution, keyed by selector.
	originals map[string]*CompiledMethod

	mu      sync.RWMutex
	statics map[string]Value
}

// Field describes a declared field.
type Field struct {
	Name   string
	Type   Type
	Static bool
	Final  bool
	Init   Value

	class *Class
	Slot  int // instance slot; -1 for static fields
}

// Class returns the class declaring the field.
func (f *Field) Class() *Class {
	return f.class
}

// String returns the qualified field name.
func (f *Field) String() string {
	if f.class == nil {
		return f.Name
	}
	return f.class.Name + "." + f.Name
}

func (f *Field) initial() Value {
	if f.Init != nil {
		return f.Init
	}
	return f.Type.Zero()
}

// NewClass creates a class with the given superclass (nil for a root class).
func NewClass(name string, superclass *Class) *Class {
	c := &Class{
		Name:       name,
		Superclass: superclass,
		statics:    make(map[string]Value),
		originals:  make(map[string]*CompiledMethod),
	}
	var parent *VTable
	if superclass != nil {
		parent = superclass.VTable
		c.NumSlots = superclass.NumSlots
	}
	c.VTable = NewVTable(c, parent)
	return c
}

// AddField declares a field on the class and returns it. Instance fields are
// assigned the next free slot; static fields are initialised immediately.
func (c *Class) AddField(f *Field) (*Field, error) {
	if c.DeclaredField(f.Name) != nil {
		return nil, fmt.Errorf("%s: duplicate field %s", c.Name, f.Name)
	}
	if f.Type.IsVoid() {
		return nil, fmt.Errorf("%s: field %s cannot be void", c.Name, f.Name)
	}
	f.class = c
	if f.Static {
		f.Slot = -1
		c.mu.Lock()
		c.statics[f.Name] = f.initial()
		c.mu.Unlock()
	} else {
		f.Slot = c.NumSlots
		c.NumSlots++
	}
	c.Fields = append(c.Fields, f)
	return f, nil
}

// DeclaredField returns the field declared by this class, or nil.
func (c *Class) DeclaredField(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// LookupField finds a field by name, walking up the superclass chain.
func (c *Class) LookupField(name string) *Field {
	for current := c; current != nil; current = current.Superclass {
		if f := current.DeclaredField(name); f != nil {
			return f
		}
	}
	return nil
}

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Type returns the static type naming this class.
func (c *Class) Type() Type {
	return Type(c.Name)
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// AddMethod declares a method on the class, replacing any method with the
// same selector.
func (c *Class) AddMethod(m *CompiledMethod) {
	m.class = c
	for i, existing := range c.methods {
		if existing.selector == m.selector {
			c.methods[i] = m
			c.VTable.AddMethod(m.selector, m)
			return
		}
	}
	c.methods = append(c.methods, m)
	c.VTable.AddMethod(m.selector, m)
}

// Methods returns the declared methods in declaration order.
func (c *Class) Methods() []*CompiledMethod {
	out := make([]*CompiledMethod, len(c.methods))
	copy(out, c.methods)
	return out
}

// Method returns the method declared by this class for selector, or nil.
func (c *Class) Method(selector string) *CompiledMethod {
	for _, m := range c.methods {
		if m.selector == selector {
			return m
		}
	}
	return nil
}

// LookupMethod finds a method by selector, walking up the superclass chain.
func (c *Class) LookupMethod(selector string) *CompiledMethod {
	return c.VTable.Lookup(selector)
}

// SetOriginal records the unmodified body of a redefined method. A body
// that belongs to no class yet is adopted by c.
func (c *Class) SetOriginal(m *CompiledMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.class == nil {
		m.class = c
	}
	c.originals[m.selector] = m
}

// Original returns the unmodified body recorded for selector, or nil if the
// method was never redefined.
func (c *Class) Original(selector string) *CompiledMethod {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.originals[selector]
}

// Originals returns every recorded original body.
func (c *Class) Originals() []*CompiledMethod {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*CompiledMethod, 0, len(c.originals))
	for _, m := range c.originals {
		out = append(out, m)
	}
	return out
}

// ---------------------------------------------------------------------------
// Static fields
// ---------------------------------------------------------------------------

// GetStatic returns the value of a static field declared by this class or
// one of its superclasses.
func (c *Class) GetStatic(name string) Value {
	f := c.LookupField(name)
	if f == nil || !f.Static {
		return nil
	}
	owner := f.class
	owner.mu.RLock()
	defer owner.mu.RUnlock()
	return owner.statics[name]
}

// SetStatic assigns a static field declared by this class or one of its
// superclasses. It reports false if there is no such static field.
func (c *Class) SetStatic(name string, value Value) bool {
	f := c.LookupField(name)
	if f == nil || !f.Static {
		return false
	}
	owner := f.class
	owner.mu.Lock()
	defer owner.mu.Unlock()
	owner.statics[name] = value
	return true
}

// ---------------------------------------------------------------------------
// ClassTable
// ---------------------------------------------------------------------------

// ClassTable is the registry of classes known to a program.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
	order   []string
}

// NewClassTable creates a class table holding the bootstrap classes
// (Object, String and Handle).
func NewClassTable() *ClassTable {
	ct := &ClassTable{classes: make(map[string]*Class)}
	bootstrap(ct)
	return ct
}

// Define creates and registers a class. The superclass defaults to Object.
func (ct *ClassTable) Define(name, superclass string) (*Class, error) {
	if superclass == "" && name != string(TypeObject) {
		superclass = string(TypeObject)
	}
	var super *Class
	if superclass != "" {
		super = ct.Lookup(superclass)
		if super == nil {
			return nil, fmt.Errorf("class %s: unknown superclass %s", name, superclass)
		}
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if _, exists := ct.classes[name]; exists {
		return nil, fmt.Errorf("class %s already defined", name)
	}
	c := NewClass(name, super)
	ct.classes[name] = c
	ct.order = append(ct.order, name)
	return c, nil
}

// MustDefine is like Define but panics on error. Intended for setup code.
func (ct *ClassTable) MustDefine(name, superclass string) *Class {
	c, err := ct.Define(name, superclass)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the class with the given name, or nil.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// All returns every class in definition order.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make([]*Class, 0, len(ct.order))
	for _, name := range ct.order {
		out = append(out, ct.classes[name])
	}
	return out
}
