package vm

// Object is a heap-allocated instance of a user class.
//
// Instance fields live in slots. A subclass's slots follow its superclass's
// slots, so a field's slot index is stable across the hierarchy.
type Object struct {
	class *Class
	slots []Value
}

// NewInstance creates an instance of c with every instance field set to its
// declared initial value.
func (c *Class) NewInstance() *Object {
	obj := &Object{class: c, slots: make([]Value, c.NumSlots)}
	for cls := c; cls != nil; cls = cls.Superclass {
		for _, f := range cls.Fields {
			if !f.Static {
				obj.slots[f.Slot] = f.initial()
			}
		}
	}
	return obj
}

// Class returns the object's class.
func (obj *Object) Class() *Class {
	return obj.class
}

// GetSlot returns the value at the given slot index.
// Panics if index is out of range.
func (obj *Object) GetSlot(index int) Value {
	if index < 0 || index >= len(obj.slots) {
		panic("Object.GetSlot: index out of range")
	}
	return obj.slots[index]
}

// SetSlot sets the value at the given slot index.
// Panics if index is out of range.
func (obj *Object) SetSlot(index int, value Value) {
	if index < 0 || index >= len(obj.slots) {
		panic("Object.SetSlot: index out of range")
	}
	obj.slots[index] = value
}

// Get returns the value of the named instance field, or nil if the class
// has no such field.
func (obj *Object) Get(name string) Value {
	f := obj.class.LookupField(name)
	if f == nil || f.Static {
		return nil
	}
	return obj.slots[f.Slot]
}

// Set assigns the named instance field. It reports false if the class has
// no such instance field.
func (obj *Object) Set(name string, value Value) bool {
	f := obj.class.LookupField(name)
	if f == nil || f.Static {
		return false
	}
	obj.slots[f.Slot] = value
	return true
}
