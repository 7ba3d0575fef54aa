package transform

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"projection-generator/utils"
)

var (
	ErrNotAFunction    = errors.New("provided transform is not a function")
	ErrIsNotATransform = errors.New("provided function is not a recognizable transform")
	ErrDoublePointer   = errors.New("transform function does not support double pointers")
)

// Transform describes a registered forward projection function of the
// form func(Src) Dst.
type Transform struct {
	Src, Dst     reflect.Type
	PackageAlias string
	Name         string

	fn reflect.Value
}

// Call applies the transform to a value of the source type.
func (t Transform) Call(in any) any {
	out := t.fn.Call([]reflect.Value{reflect.ValueOf(in)})

	return out[0].Interface()
}

// Parse inspects the provided function and returns a Transform if it is
// a valid single-input single-output projection function.
func Parse(fn any) (Transform, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return Transform{}, ErrNotAFunction
	}

	fnType := fnVal.Type()
	if fnType.NumIn() != 1 || fnType.NumOut() != 1 {
		return Transform{}, ErrIsNotATransform
	}

	src := fnType.In(0)
	if src.Kind() == reflect.Ptr && src.Elem().Kind() == reflect.Ptr {
		return Transform{}, ErrDoublePointer
	}

	dst := fnType.Out(0)
	if dst.Kind() == reflect.Ptr && dst.Elem().Kind() == reflect.Ptr {
		return Transform{}, ErrDoublePointer
	}

	fnPC := runtime.FuncForPC(fnVal.Pointer())
	alias, name := utils.Unpack2(strings.SplitN(fnPC.Name(), ".", 2))

	return Transform{
		Src:          src,
		Dst:          dst,
		Name:         name,
		PackageAlias: utils.Second(path.Split(alias)),
		fn:           fnVal,
	}, nil
}

// TypePair keys the registry: one transform per (source, target) pair.
type TypePair struct{ Src, Dst reflect.Type }

// Registry holds prebuilt transforms keyed by type pair. Safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byPair map[TypePair]Transform
}

// Register parses fn and stores it. Registering a second transform for
// the same type pair replaces the first.
func (r *Registry) Register(fn any) error {
	t, err := Parse(fn)
	if err != nil {
		return fmt.Errorf("registering transform: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byPair == nil {
		r.byPair = make(map[TypePair]Transform)
	}

	r.byPair[TypePair{Src: t.Src, Dst: t.Dst}] = t

	return nil
}

// Lookup returns the transform registered for the given type pair.
func (r *Registry) Lookup(src, dst reflect.Type) (Transform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byPair[TypePair{Src: src, Dst: dst}]

	return t, ok
}

// Len returns the count of registered transforms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byPair)
}

// Default is the registry generated code registers into at package init.
var Default = &Registry{}

// MustRegister registers fn into the default registry and panics on a
// malformed function. Intended for generated code, where the shape of fn
// is known correct.
func MustRegister(fn any) {
	if err := Default.Register(fn); err != nil {
		panic(err)
	}
}

// Lookup queries the default registry.
func Lookup(src, dst reflect.Type) (Transform, bool) {
	return Default.Lookup(src, dst)
}
