package vm

import "sync"

// VTable holds the method dispatch table for a class.
//
// Methods are keyed by selector. Inheritance is handled by walking the
// parent chain when a method is not found locally.
type VTable struct {
	class  *Class
	parent *VTable

	mu      sync.RWMutex
	methods map[string]*CompiledMethod
}

// NewVTable creates an empty vtable for class c.
func NewVTable(c *Class, parent *VTable) *VTable {
	return &VTable{class: c, parent: parent, methods: make(map[string]*CompiledMethod)}
}

// Lookup finds a method by selector, walking the inheritance chain.
// Returns nil if no method is found.
func (vt *VTable) Lookup(selector string) *CompiledMethod {
	for v := vt; v != nil; v = v.parent {
		if m := v.LookupLocal(selector); m != nil {
			return m
		}
	}
	return nil
}

// LookupLocal finds a method by selector in this vtable only.
func (vt *VTable) LookupLocal(selector string) *CompiledMethod {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return vt.methods[selector]
}

// AddMethod adds or replaces a method.
func (vt *VTable) AddMethod(selector string, m *CompiledMethod) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.methods[selector] = m
}

// Parent returns the parent vtable (for inheritance).
func (vt *VTable) Parent() *VTable {
	return vt.parent
}

// Class returns the class this vtable belongs to.
func (vt *VTable) Class() *Class {
	return vt.class
}
