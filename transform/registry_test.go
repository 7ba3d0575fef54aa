package transform

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderRow struct {
	Id int64
}

type orderView struct {
	Id string
}

func buildOrderView(in orderRow) orderView {
	return orderView{Id: strconv.FormatInt(in.Id, 10)}
}

func TestParse_ValidTransform(t *testing.T) {
	tr, err := Parse(buildOrderView)
	require.NoError(t, err)

	assert.Equal(t, reflect.TypeOf(orderRow{}), tr.Src)
	assert.Equal(t, reflect.TypeOf(orderView{}), tr.Dst)
	assert.Equal(t, "transform", tr.PackageAlias)
	assert.Contains(t, tr.Name, "buildOrderView")
}

func TestParse_RejectsNonFunctions(t *testing.T) {
	_, err := Parse(42)
	assert.ErrorIs(t, err, ErrNotAFunction)

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrNotAFunction)
}

func TestParse_RejectsWrongArity(t *testing.T) {
	_, err := Parse(func(a, b orderRow) orderView { return orderView{} })
	assert.ErrorIs(t, err, ErrIsNotATransform)

	_, err = Parse(func(a orderRow) (orderView, error) { return orderView{}, nil })
	assert.ErrorIs(t, err, ErrIsNotATransform)
}

func TestParse_RejectsDoublePointers(t *testing.T) {
	_, err := Parse(func(a **orderRow) orderView { return orderView{} })
	assert.ErrorIs(t, err, ErrDoublePointer)

	_, err = Parse(func(a orderRow) **orderView { return nil })
	assert.ErrorIs(t, err, ErrDoublePointer)
}

func TestTransform_Call(t *testing.T) {
	tr, err := Parse(buildOrderView)
	require.NoError(t, err)

	out := tr.Call(orderRow{Id: 42})

	view, ok := out.(orderView)
	require.True(t, ok)
	assert.Equal(t, "42", view.Id)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	var r Registry

	require.NoError(t, r.Register(buildOrderView))
	assert.Equal(t, 1, r.Len())

	tr, ok := r.Lookup(reflect.TypeOf(orderRow{}), reflect.TypeOf(orderView{}))
	require.True(t, ok)

	view := tr.Call(orderRow{Id: 7}).(orderView)
	assert.Equal(t, "7", view.Id)

	_, ok = r.Lookup(reflect.TypeOf(orderView{}), reflect.TypeOf(orderRow{}))
	assert.False(t, ok, "pairs are directional")
}

func TestRegistry_ReplacesOnSamePair(t *testing.T) {
	var r Registry

	require.NoError(t, r.Register(buildOrderView))
	require.NoError(t, r.Register(func(in orderRow) orderView { return orderView{Id: "fixed"} }))
	assert.Equal(t, 1, r.Len())

	tr, ok := r.Lookup(reflect.TypeOf(orderRow{}), reflect.TypeOf(orderView{}))
	require.True(t, ok)
	assert.Equal(t, "fixed", tr.Call(orderRow{Id: 1}).(orderView).Id)
}

func TestRegistry_RegisterError(t *testing.T) {
	var r Registry

	err := r.Register("not a function")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAFunction)
}

func TestMustRegister_PanicsOnMalformed(t *testing.T) {
	assert.Panics(t, func() { MustRegister(42) })
}
