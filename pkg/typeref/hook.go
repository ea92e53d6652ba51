package typeref

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// DecodeHook converts strings into TypeRef values for mapstructure decoding.
// A nil source decodes into the zero TypeRef.
func DecodeHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeFor[TypeRef]()
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case nil:
			return TypeRef{}, nil
		case string:
			return Parse(v), nil
		case TypeRef:
			return v, nil
		}
		return data, nil
	}
}
