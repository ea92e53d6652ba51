// Package typeref provides a durable, serializable handle to a type's identity.
//
// Generic encoders persist a field using its declared type, so the dynamic
// type behind an interface value is lost across a save/load cycle. A TypeRef
// carries that identity out-of-band as a self-describing string and resolves
// it back to a reflect.Type through a registry at load time.
package typeref

import (
	"reflect"

	"github.com/aretw0/stagehand/pkg/registry"
)

// TypeRef is a string-encoded reference to a type.
// The zero value references no type.
type TypeRef struct {
	identity string
}

// Of captures the identity of t. A nil type yields the zero TypeRef.
func Of(t reflect.Type) TypeRef {
	return TypeRef{identity: registry.Identity(t)}
}

// For captures the identity of T.
func For[T any]() TypeRef {
	return Of(reflect.TypeFor[T]())
}

// Parse wraps a raw identity encoding, as read from storage, verbatim.
func Parse(identity string) TypeRef {
	return TypeRef{identity: identity}
}

// Set replaces the referenced type. Setting nil clears the reference.
func (r *TypeRef) Set(t reflect.Type) {
	r.identity = registry.Identity(t)
}

// Get resolves the reference against the default registry.
// It returns nil when the reference is empty or its identity is not
// registered in this process.
func (r TypeRef) Get() reflect.Type {
	return r.Resolve(registry.Default())
}

// Resolve resolves the reference against reg.
func (r TypeRef) Resolve(reg *registry.Registry) reflect.Type {
	if r.identity == "" || reg == nil {
		return nil
	}
	e, ok := reg.Lookup(r.identity)
	if !ok {
		return nil
	}
	return e.Type
}

// Identity returns the stored encoding.
func (r TypeRef) Identity() string {
	return r.identity
}

// IsZero reports whether the reference is unset.
func (r TypeRef) IsZero() bool {
	return r.identity == ""
}

func (r TypeRef) String() string {
	return r.identity
}

// MarshalText implements encoding.TextMarshaler.
func (r TypeRef) MarshalText() ([]byte, error) {
	return []byte(r.identity), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// The encoding is restored verbatim; resolution happens lazily in Get.
func (r *TypeRef) UnmarshalText(text []byte) error {
	r.identity = string(text)
	return nil
}
