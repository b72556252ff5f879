package plan

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/substitute/vm"
)

var log = commonlog.GetLogger("subst.plan")

// Builtins are the natives every plan may name.
var Builtins = Natives{
	// trace logs its arguments and answers the first one.
	"trace": func(_ *vm.Interpreter, receiver vm.Value, args []vm.Value) (vm.Value, error) {
		log.Infof("trace %s", formatAll(receiver, args))
		if len(args) == 0 {
			return nil, nil
		}
		return args[0], nil
	},
	// identity answers its first argument, or the receiver when it takes none.
	"identity": func(_ *vm.Interpreter, receiver vm.Value, args []vm.Value) (vm.Value, error) {
		if len(args) == 0 {
			return receiver, nil
		}
		return args[0], nil
	},
	// concat joins its arguments; strings are taken verbatim and nil is
	// skipped.
	"concat": func(_ *vm.Interpreter, _ vm.Value, args []vm.Value) (vm.Value, error) {
		var b strings.Builder
		for _, a := range args {
			switch x := a.(type) {
			case nil:
			case string:
				b.WriteString(x)
			default:
				b.WriteString(vm.FormatValue(x))
			}
		}
		return b.String(), nil
	},
	// invoke calls a handle argument with the remaining arguments.
	"invoke": func(it *vm.Interpreter, _ vm.Value, args []vm.Value) (vm.Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("invoke: no handle")
		}
		h, ok := args[0].(*vm.Handle)
		if !ok {
			return nil, fmt.Errorf("invoke: %s is not a handle", vm.FormatValue(args[0]))
		}
		return h.Invoke(it, args[1:]...)
	},
}

func formatAll(receiver vm.Value, args []vm.Value) string {
	parts := make([]string, 0, len(args)+1)
	if receiver != nil {
		parts = append(parts, vm.FormatValue(receiver))
	}
	for _, a := range args {
		parts = append(parts, vm.FormatValue(a))
	}
	return strings.Join(parts, " ")
}
