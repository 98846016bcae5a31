// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/confighub/remotefunc/function/api"
)

// Arguments are the decoded keyword arguments of a call.
type Arguments map[string]any

// Implementation is the callable behind a registered function. Returning an
// error, or panicking, produces a callee exception. Implementations that block
// should honor ctx, which is canceled when the call times out.
type Implementation func(ctx context.Context, args Arguments) (any, error)

// Function describes a callable: its names, its parameters in declared order,
// and the implementation. Go cannot recover parameter names at run time, so
// they are part of the descriptor.
type Function struct {
	OwnerName      string
	FunctionName   string
	Description    string
	Parameters     []api.FunctionParameter
	Implementation Implementation
}

// ParameterNamer supplies parameter names for the methods bound by
// BindMethods, keyed by Go method name. Methods not listed get arg0, arg1, ...
type ParameterNamer interface {
	RemoteParameters() map[string][]string
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()

	closurePart  = regexp.MustCompile(`^(func)?\d+$`)
	typeArgsExpr = regexp.MustCompile(`\[.*\]`)
)

// Bind builds a Function from an ordinary Go func. The func may take a leading
// context.Context, and may return nothing, a value, an error, or a value and an
// error. paramNames name the remaining parameters in order.
//
// Names are derived from the func: a package-level func add becomes main/add
// and a method value c.Increase on a *Counter becomes counter/increase.
// Closures get an empty name and need WithName at registration.
func Bind(fn any, paramNames ...string) (Function, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return Function{}, errors.Wrapf(ErrInvalidFunction, "%T is not a func", fn)
	}
	owner, name := funcNames(fv)
	return bindValue(fv, owner, name, paramNames)
}

// BindMethods binds every exported method of instance. The owner is the
// instance's type name; function names are the method names. Methods that
// cannot be bound, such as ones with unsupported results, are left out and
// reported in skipped.
func BindMethods(instance any) (bound []Function, skipped []error, err error) {
	iv := reflect.ValueOf(instance)
	if !iv.IsValid() || (iv.Kind() == reflect.Pointer && iv.IsNil()) {
		return nil, nil, errors.Wrap(ErrInvalidFunction, "cannot bind methods of nil")
	}
	it := iv.Type()
	owner := it.Name()
	if it.Kind() == reflect.Pointer {
		owner = it.Elem().Name()
	}
	if owner == "" {
		return nil, nil, errors.Wrapf(ErrInvalidFunction, "%s has no type name", it)
	}

	var names map[string][]string
	if namer, ok := instance.(ParameterNamer); ok {
		names = namer.RemoteParameters()
	}

	bound = make([]Function, 0, it.NumMethod())
	for i := 0; i < it.NumMethod(); i++ {
		m := it.Method(i)
		if m.Name == "RemoteParameters" {
			continue
		}
		mv := iv.Method(i)
		paramNames, ok := names[m.Name]
		if !ok {
			paramNames = positionalNames(mv.Type())
		}
		f, err := bindValue(mv, owner, m.Name, paramNames)
		if err != nil {
			skipped = append(skipped, errors.Wrapf(err, "method %s.%s", owner, m.Name))
			continue
		}
		bound = append(bound, f)
	}
	return bound, skipped, nil
}

func positionalNames(ft reflect.Type) []string {
	var names []string
	for i := 0; i < ft.NumIn(); i++ {
		if i == 0 && ft.In(0) == contextType {
			continue
		}
		names = append(names, fmt.Sprintf("arg%d", len(names)))
	}
	return names
}

func bindValue(fv reflect.Value, owner, name string, paramNames []string) (Function, error) {
	ft := fv.Type()
	if ft.IsVariadic() {
		return Function{}, errors.Wrapf(ErrInvalidFunction, "%s: variadic funcs are not supported", name)
	}
	takesContext := ft.NumIn() > 0 && ft.In(0) == contextType
	first := 0
	if takesContext {
		first = 1
	}
	if n := ft.NumIn() - first; n != len(paramNames) {
		return Function{}, errors.Wrapf(ErrInvalidFunction, "%s takes %d parameters but %d names were given", name, n, len(paramNames))
	}
	if err := checkResults(ft); err != nil {
		return Function{}, errors.Wrapf(err, "%s", name)
	}

	params := make([]api.FunctionParameter, len(paramNames))
	types := make([]reflect.Type, len(paramNames))
	for i, p := range paramNames {
		t := ft.In(first + i)
		types[i] = t
		params[i] = api.FunctionParameter{ParameterName: p, DataType: dataTypeOf(t)}
	}

	label := api.Lower(name)
	declared := make(map[string]struct{}, len(paramNames))
	for _, p := range paramNames {
		declared[p] = struct{}{}
	}
	impl := func(ctx context.Context, args Arguments) (any, error) {
		if err := checkUndeclared(label, declared, args); err != nil {
			return nil, err
		}
		in := make([]reflect.Value, 0, ft.NumIn())
		if takesContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, p := range paramNames {
			v, err := bindArgument(args[p], types[i])
			if err != nil {
				return nil, errors.Wrapf(err, "%s() argument '%s'", label, p)
			}
			in = append(in, v)
		}
		return splitResults(fv.Call(in))
	}

	return Function{
		OwnerName:      owner,
		FunctionName:   name,
		Parameters:     params,
		Implementation: impl,
	}, nil
}

// checkUndeclared rejects supplied arguments the func has no parameter for.
func checkUndeclared(label string, declared map[string]struct{}, args Arguments) error {
	var extra []string
	for k := range args {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	slices.Sort(extra)
	return errors.Newf("%s() got unexpected keyword argument(s): '%s'", label, strings.Join(extra, "', '"))
}

func checkResults(ft reflect.Type) error {
	switch ft.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if ft.Out(1) == errorType {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidFunction, "unsupported results %s; want (), (T), (error) or (T, error)", ft)
}

func splitResults(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	}
	return out[0].Interface(), asError(out[1])
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// funcNames derives owner and function names from the runtime symbol name.
// Free functions belong to main; method values belong to their receiver type.
func funcNames(fv reflect.Value) (owner, name string) {
	rf := runtime.FuncForPC(fv.Pointer())
	if rf == nil {
		return "", ""
	}
	full := typeArgsExpr.ReplaceAllString(rf.Name(), "")
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	methodValue := strings.HasSuffix(full, "-fm")
	full = strings.TrimSuffix(full, "-fm")

	parts := strings.Split(full, ".")
	if len(parts) < 2 {
		return "", ""
	}
	for _, p := range parts[1:] {
		if closurePart.MatchString(p) {
			return "", ""
		}
	}
	last := parts[len(parts)-1]
	if methodValue && len(parts) >= 3 {
		return strings.Trim(parts[len(parts)-2], "(*)"), last
	}
	return api.MainOwner, last
}

func dataTypeOf(t reflect.Type) api.DataType {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return api.DataTypeInt
	case reflect.Float32, reflect.Float64:
		return api.DataTypeFloat
	case reflect.String:
		return api.DataTypeString
	case reflect.Bool:
		return api.DataTypeBool
	case reflect.Map, reflect.Struct:
		return api.DataTypeDict
	case reflect.Slice, reflect.Array:
		return api.DataTypeList
	case reflect.Pointer:
		return dataTypeOf(t.Elem())
	}
	return api.DataTypeAny
}

// bindArgument converts a decoded JSON value to the Go parameter type. No
// coercion between strings, numbers, and bools happens; integers widen to
// floats as they would in any arithmetic.
func bindArgument(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.Newf("cannot use null as %s", t)
	}
	switch t.Kind() {
	case reflect.Interface:
		rv := reflect.ValueOf(v)
		if !rv.Type().Implements(t) {
			return reflect.Value{}, errors.Newf("cannot use %T as %s", v, t)
		}
		return rv.Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := v.(*big.Int); ok {
			return reflect.Value{}, errors.Newf("%s overflows %s", n, t)
		}
		i, ok := v.(int64)
		if !ok {
			return reflect.Value{}, errors.Newf("cannot use %T as %s", v, t)
		}
		rv := reflect.New(t).Elem()
		if rv.OverflowInt(i) {
			return reflect.Value{}, errors.Newf("%d overflows %s", i, t)
		}
		rv.SetInt(i)
		return rv, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var u uint64
		switch n := v.(type) {
		case int64:
			if n < 0 {
				return reflect.Value{}, errors.Newf("cannot use %v (%T) as %s", v, v, t)
			}
			u = uint64(n)
		case *big.Int:
			if !n.IsUint64() {
				return reflect.Value{}, errors.Newf("%s overflows %s", n, t)
			}
			u = n.Uint64()
		default:
			return reflect.Value{}, errors.Newf("cannot use %v (%T) as %s", v, v, t)
		}
		rv := reflect.New(t).Elem()
		if rv.OverflowUint(u) {
			return reflect.Value{}, errors.Newf("%d overflows %s", u, t)
		}
		rv.SetUint(u)
		return rv, nil
	case reflect.Float32, reflect.Float64:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int64:
			f = float64(n)
		case *big.Int:
			f, _ = new(big.Float).SetInt(n).Float64()
		default:
			return reflect.Value{}, errors.Newf("cannot use %T as %s", v, t)
		}
		rv := reflect.New(t).Elem()
		if t.Kind() == reflect.Float32 && math.Abs(f) > math.MaxFloat32 {
			return reflect.Value{}, errors.Newf("%g overflows %s", f, t)
		}
		rv.SetFloat(f)
		return rv, nil
	case reflect.String, reflect.Bool:
		rv := reflect.ValueOf(v)
		if rv.Kind() != t.Kind() {
			return reflect.Value{}, errors.Newf("cannot use %T as %s", v, t)
		}
		return rv.Convert(t), nil
	}
	// Composite types go through JSON so that maps, slices and structs of any
	// element type can be bound.
	data, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, errors.WithStack(err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, errors.Wrapf(err, "cannot use %T as %s", v, t)
	}
	return ptr.Elem(), nil
}
