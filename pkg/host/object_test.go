package host_test

import (
	"reflect"
	"testing"

	"github.com/aretw0/stagehand/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Y float64
}

func TestObject_Components(t *testing.T) {
	obj := host.NewObject("player")
	assert.Equal(t, "player", obj.Name())

	_, ok := host.Get[body](obj)
	assert.False(t, ok)

	b := host.Add[body](obj)
	b.Y = 3

	got, ok := host.Get[body](obj)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, obj.Len())

	obj.Put(&body{Y: 9})
	got, _ = host.Get[body](obj)
	assert.Equal(t, 9.0, got.Y)

	c, ok := obj.Component(reflect.TypeFor[*body]())
	require.True(t, ok)
	assert.Same(t, got, c)

	obj.Remove(reflect.TypeFor[*body]())
	assert.Equal(t, 0, obj.Len())

	obj.Put(nil)
	assert.Equal(t, 0, obj.Len())
}

func TestObject_Destroy(t *testing.T) {
	obj := host.NewObject("crate")
	calls := 0
	obj.OnDestroy(func(o *host.Object) {
		assert.Same(t, obj, o)
		calls++
	})

	obj.Destroy()
	obj.Destroy()

	assert.True(t, obj.Destroyed())
	assert.Equal(t, 1, calls)
}

func TestEnsure(t *testing.T) {
	obj := host.NewObject("player")

	first := host.Ensure[body](obj)
	first.Y = 3

	again := host.Ensure[body](obj)
	assert.Same(t, first, again)
	assert.Equal(t, 1, obj.Len())

	replaced := host.Add[body](obj)
	assert.NotSame(t, first, replaced)
	assert.Zero(t, replaced.Y)
}
