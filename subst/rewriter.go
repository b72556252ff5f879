package subst

import (
	"fmt"

	"github.com/chazu/substitute/vm"
)

// MaxTemps is the number of temporaries an instruction can address.
const MaxTemps = 256

// Rewriter splices chains into method bodies.
type Rewriter struct{}

// layout assigns slots to the symbolic temporaries of one site. Sites
// share the region above the method's own temporaries.
type layout struct {
	base     int
	receiver bool
	operands int
}

func newLayout(base int, site *AccessSite) layout {
	return layout{base: base, receiver: site.HasReceiver(), operands: len(site.ArgumentTypes())}
}

func (l layout) slot(t Temp) int {
	recv := 0
	if l.receiver {
		recv = 1
	}
	switch t.Kind {
	case TempParam:
		return t.Index
	case TempReceiver:
		return l.base
	case TempOperand:
		return l.base + recv + t.Index
	default:
		return l.base + recv + l.operands
	}
}

func (l layout) size() int {
	return l.slot(Temp{Kind: TempCurrent}) + 1
}

// Rewrite returns a copy of m with every chain spliced in place of its
// site. Chains must have been built from sites of m; m is not modified.
//
// At each site the access's receiver and operands are spilled into
// temporaries, the current temporary is set to the neutral default of the
// site's result type, each step runs in order and stores a non-void result
// into the current temporary, and finally the current value is pushed if
// the site produces one.
func (Rewriter) Rewrite(m *vm.CompiledMethod, chains []*Chain) (*vm.CompiledMethod, error) {
	instrs, err := vm.Decode(m.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	out := m.Clone()

	bySite := make(map[int]*Chain, len(chains))
	for _, c := range chains {
		if c.Site.Enclosing != m {
			return nil, fmt.Errorf("%s: chain for %s belongs to another method", m, c.Site)
		}
		if _, dup := bySite[c.Site.Index]; dup {
			return nil, fmt.Errorf("%s: two chains for instruction %d", m, c.Site.Index)
		}
		bySite[c.Site.Index] = c
	}

	var (
		code     []vm.Instruction
		newIndex = make([]int, len(instrs)+1)
		dropPop  = make(map[int]bool)
		numTemps = m.NumTemps
	)
	for i, in := range instrs {
		newIndex[i] = len(code)
		if dropPop[i] {
			continue
		}
		c, ok := bySite[i]
		if !ok {
			code = append(code, in)
			continue
		}
		lay := newLayout(m.NumTemps, c.Site)
		numTemps = max(numTemps, lay.size())
		code = append(code, expand(out, c, lay)...)
		if c.Discards {
			dropPop[i+1] = true
		}
	}
	newIndex[len(instrs)] = len(code)

	if numTemps > MaxTemps {
		return nil, fmt.Errorf("%s: rewrite needs %d temporaries, limit is %d", m, numTemps, MaxTemps)
	}
	// Chain code contains no jumps, so every jump is a copied one whose
	// target still indexes the decoded body.
	for k := range code {
		if code[k].Op.IsJump() {
			code[k].A = newIndex[code[k].A]
		}
	}

	bc, err := vm.Encode(code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	out.Bytecode = bc
	out.NumTemps = numTemps
	return out, nil
}

// expand produces the replacement code for one site, interning literals
// into m.
func expand(m *vm.CompiledMethod, c *Chain, lay layout) []vm.Instruction {
	site := c.Site
	lower := func(in Instr) vm.Instruction {
		out := vm.Instruction{Op: in.Op, A: in.A, B: in.B}
		if in.Lit != nil {
			out.A = m.AddLiteral(*in.Lit)
		}
		if in.Temp != nil {
			out.A = lay.slot(*in.Temp)
		}
		return out
	}
	store := func(t Temp) vm.Instruction {
		return vm.Instruction{Op: vm.OpStoreTemp, A: lay.slot(t)}
	}
	push := func(t Temp) vm.Instruction {
		return vm.Instruction{Op: vm.OpPushTemp, A: lay.slot(t)}
	}
	current := Temp{Kind: TempCurrent}

	var code []vm.Instruction
	for k := lay.operands - 1; k >= 0; k-- {
		code = append(code, store(Temp{Kind: TempOperand, Index: k}))
	}
	if lay.receiver {
		code = append(code, store(Temp{Kind: TempReceiver}))
	}
	code = append(code, lower(pushZero(site.ResultType())), store(current))

	for _, s := range c.Steps {
		if s.IsOriginal() {
			if lay.receiver {
				code = append(code, push(Temp{Kind: TempReceiver}))
			}
			for k := 0; k < lay.operands; k++ {
				code = append(code, push(Temp{Kind: TempOperand, Index: k}))
			}
			code = append(code, site.instr)
		} else {
			for _, in := range s.Receiver {
				code = append(code, lower(in))
			}
			for _, b := range s.Bindings {
				for _, in := range b.Emit {
					code = append(code, lower(in))
				}
			}
			lit := vm.MethodLiteral(s.Delegate.Method)
			code = append(code, lower(withLit(vm.OpInvokeDelegate, lit, len(s.Bindings))))
		}
		if !s.Returns.IsVoid() {
			code = append(code, store(current))
		}
	}

	if !site.ResultType().IsVoid() && !c.Discards {
		code = append(code, push(current))
	}
	return code
}
