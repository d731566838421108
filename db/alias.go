package db

import (
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/nickyhof/EmbedDB/core"
)

// ExternalFunction is a statically typed callable that CREATE ALIAS can
// bind a SQL name to. Arguments arrive converted to Params and the result
// is converted to Returns.
type ExternalFunction struct {
	Target     string
	Params     []core.ColumnType
	ParamNames []string
	Returns    core.ColumnType
	Call       func(args []core.Value) (core.Value, error)
}

// FunctionRegistry maps alias targets to their implementations. Targets
// must be registered before an alias naming them is first called.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]ExternalFunction
}

// NewFunctionRegistry returns a registry holding the standard targets.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{functions: make(map[string]ExternalFunction)}
	for _, fn := range standardFunctions() {
		r.functions[fn.Target] = fn
	}
	return r
}

func (r *FunctionRegistry) Register(fn ExternalFunction) error {
	if fn.Target == "" || fn.Call == nil {
		return core.NewFunctionError(core.CodeTargetNotFound, "function target needs a name and an implementation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[fn.Target] = fn
	return nil
}

func (r *FunctionRegistry) Lookup(target string) (ExternalFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[target]
	return fn, ok
}

// Targets lists the registered target names in order.
func (r *FunctionRegistry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]string, 0, len(r.functions))
	for target := range r.functions {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	return targets
}

// AliasBinding is a CREATE ALIAS definition together with its target,
// resolved on first use.
type AliasBinding struct {
	core.Alias
	fn       *ExternalFunction
	resolved bool
}

func (b *AliasBinding) resolve(registry *FunctionRegistry) (*ExternalFunction, error) {
	if b.resolved {
		return b.fn, nil
	}
	fn, ok := registry.Lookup(b.Target)
	if !ok {
		return nil, core.NewFunctionError(core.CodeTargetNotFound, "alias %s: target %q is not registered", b.Name, b.Target)
	}
	b.fn = &fn
	b.resolved = true
	return b.fn, nil
}

// invoke converts args, calls the target and converts its result.
func (b *AliasBinding) invoke(fn *ExternalFunction, args []core.Value) (core.Value, error) {
	if len(args) != len(fn.Params) {
		return core.Value{}, core.NewFunctionError(core.CodeWrongArity, "alias %s expects %d arguments, got %d", b.Name, len(fn.Params), len(args))
	}
	converted := make([]core.Value, len(args))
	for i, arg := range args {
		v, err := core.Convert(arg, fn.Params[i])
		if err != nil {
			return core.Value{}, core.NewFunctionError(core.CodeWrongArity, "alias %s: argument %d: %v", b.Name, i+1, err)
		}
		converted[i] = v
	}
	result, err := fn.Call(converted)
	if err != nil {
		e := core.NewFunctionError(core.CodeFunctionFailed, "alias %s failed", b.Name)
		e.Err = err
		return core.Value{}, e
	}
	return core.Convert(result, fn.Returns)
}

func mathFunc(target string, f func(float64) float64) ExternalFunction {
	return ExternalFunction{
		Target:  target,
		Params:  []core.ColumnType{core.DoubleType},
		Returns: core.DoubleType,
		Call: func(args []core.Value) (core.Value, error) {
			if args[0].IsNull() {
				return core.Null(core.DoubleType), nil
			}
			return core.NewDouble(f(args[0].Float64())), nil
		},
	}
}

func math2Func(target string, f func(float64, float64) float64) ExternalFunction {
	return ExternalFunction{
		Target:  target,
		Params:  []core.ColumnType{core.DoubleType, core.DoubleType},
		Returns: core.DoubleType,
		Call: func(args []core.Value) (core.Value, error) {
			if args[0].IsNull() || args[1].IsNull() {
				return core.Null(core.DoubleType), nil
			}
			return core.NewDouble(f(args[0].Float64(), args[1].Float64())), nil
		},
	}
}

func stringFunc(target string, f func(string) string) ExternalFunction {
	return ExternalFunction{
		Target:  target,
		Params:  []core.ColumnType{core.VarCharType},
		Returns: core.VarCharType,
		Call: func(args []core.Value) (core.Value, error) {
			if args[0].IsNull() {
				return core.Null(core.VarCharType), nil
			}
			return core.NewVarChar(f(args[0].Str())), nil
		},
	}
}

func standardFunctions() []ExternalFunction {
	return []ExternalFunction{
		mathFunc("math.Abs", math.Abs),
		mathFunc("math.Sqrt", math.Sqrt),
		mathFunc("math.Floor", math.Floor),
		mathFunc("math.Ceil", math.Ceil),
		mathFunc("math.Log", math.Log),
		mathFunc("math.Exp", math.Exp),
		math2Func("math.Pow", math.Pow),
		math2Func("math.Max", math.Max),
		math2Func("math.Min", math.Min),
		stringFunc("strings.ToUpper", strings.ToUpper),
		stringFunc("strings.ToLower", strings.ToLower),
		stringFunc("strings.TrimSpace", strings.TrimSpace),
		{
			Target:     "strings.Repeat",
			Params:     []core.ColumnType{core.VarCharType, core.IntegerType},
			ParamNames: []string{"S", "COUNT"},
			Returns:    core.VarCharType,
			Call: func(args []core.Value) (core.Value, error) {
				if args[0].IsNull() || args[1].IsNull() {
					return core.Null(core.VarCharType), nil
				}
				count := args[1].Int64()
				if count < 0 {
					return core.Value{}, core.NewConstraintError(core.CodeInvalidArgument, "negative repeat count %d", count)
				}
				return core.NewVarChar(strings.Repeat(args[0].Str(), int(count))), nil
			},
		},
		{
			Target:     "strings.Contains",
			Params:     []core.ColumnType{core.VarCharType, core.VarCharType},
			ParamNames: []string{"S", "SUBSTR"},
			Returns:    core.BooleanType,
			Call: func(args []core.Value) (core.Value, error) {
				if args[0].IsNull() || args[1].IsNull() {
					return core.Null(core.BooleanType), nil
				}
				return core.NewBoolean(strings.Contains(args[0].Str(), args[1].Str())), nil
			},
		},
	}
}
