// Package host models the object a state machine is attached to.
//
// An Object is a named bag of components keyed by their Go type. States reach
// it through their machine and query it for the capabilities they drive
// (bodies, inputs, renderers). The object is not safe for concurrent use; it
// lives on the same goroutine as the machine that owns it.
package host

import (
	"reflect"
)

// Object is the hosted entity a machine drives.
type Object struct {
	name       string
	components map[reflect.Type]any
	destroyed  bool
	onDestroy  []func(*Object)
}

// NewObject creates an empty object.
func NewObject(name string) *Object {
	return &Object{
		name:       name,
		components: make(map[reflect.Type]any),
	}
}

// Name returns the object name.
func (o *Object) Name() string {
	return o.name
}

// Component returns the component stored under t.
func (o *Object) Component(t reflect.Type) (any, bool) {
	c, ok := o.components[t]
	return c, ok
}

// Put stores c keyed by its dynamic type, replacing any previous component
// of that type.
func (o *Object) Put(c any) {
	if c == nil {
		return
	}
	o.components[reflect.TypeOf(c)] = c
}

// Remove deletes the component stored under t.
func (o *Object) Remove(t reflect.Type) {
	delete(o.components, t)
}

// Len returns the number of components.
func (o *Object) Len() int {
	return len(o.components)
}

// OnDestroy registers fn to run once when the object is destroyed.
func (o *Object) OnDestroy(fn func(*Object)) {
	o.onDestroy = append(o.onDestroy, fn)
}

// Destroy marks the object as destroyed and runs the destroy callbacks.
// Destroying twice is a no-op.
func (o *Object) Destroy() {
	if o.destroyed {
		return
	}
	o.destroyed = true
	for _, fn := range o.onDestroy {
		fn(o)
	}
}

// Destroyed reports whether Destroy was called.
func (o *Object) Destroyed() bool {
	return o.destroyed
}

// Get returns the *T component of o.
func Get[T any](o *Object) (*T, bool) {
	c, ok := o.components[reflect.TypeFor[*T]()]
	if !ok {
		return nil, false
	}
	return c.(*T), true
}

// Add creates a zero *T component, stores it on o and returns it.
// An existing *T component is replaced.
func Add[T any](o *Object) *T {
	c := new(T)
	o.Put(c)
	return c
}

// Ensure returns the *T component of o, adding a zero one if missing.
func Ensure[T any](o *Object) *T {
	if c, ok := Get[T](o); ok {
		return c
	}
	return Add[T](o)
}
