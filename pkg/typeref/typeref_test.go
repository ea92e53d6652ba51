package typeref_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/aretw0/stagehand/pkg/typeref"
	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type walking struct{}

type holder struct {
	Initial typeref.TypeRef `json:"initial" yaml:"initial,omitempty" mapstructure:"initial"`
}

func TestTypeRef_RoundTrip(t *testing.T) {
	reg := registry.NewRegistry()
	typ := reflect.TypeFor[*walking]()
	reg.Register(typ, nil)

	ref := typeref.Of(typ)
	assert.Equal(t, typ, ref.Resolve(reg))

	var set typeref.TypeRef
	set.Set(typ)
	assert.Equal(t, ref, set)
	assert.Equal(t, ref, typeref.For[*walking]())
}

func TestTypeRef_DefaultRegistry(t *testing.T) {
	typ := reflect.TypeFor[*walking]()
	id := registry.Default().Register(typ, nil)
	t.Cleanup(func() { registry.Default().Unregister(id) })

	assert.Equal(t, typ, typeref.Of(typ).Get())
}

func TestTypeRef_Absence(t *testing.T) {
	var ref typeref.TypeRef
	for i := 0; i < 3; i++ {
		assert.Nil(t, ref.Get())
	}
	assert.True(t, ref.IsZero())

	ref = typeref.Of(reflect.TypeFor[*walking]())
	ref.Set(nil)
	assert.True(t, ref.IsZero())
	assert.Nil(t, ref.Get())

	assert.Equal(t, typeref.TypeRef{}, typeref.Of(nil))
}

func TestTypeRef_Unresolvable(t *testing.T) {
	ref := typeref.Parse("*example.com/gone.Removed")
	assert.NotPanics(t, func() {
		assert.Nil(t, ref.Get())
		assert.Nil(t, ref.Resolve(nil))
	})
	assert.Equal(t, "*example.com/gone.Removed", ref.Identity())
}

func TestTypeRef_JSON(t *testing.T) {
	in := holder{Initial: typeref.Parse("*example.com/game.Walking")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"initial":"*example.com/game.Walking"}`, string(data))

	var out holder
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	var empty holder
	require.NoError(t, json.Unmarshal([]byte(`{"initial":""}`), &empty))
	assert.True(t, empty.Initial.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`{"initial":null}`), &empty))
	assert.True(t, empty.Initial.IsZero())
}

func TestTypeRef_YAML(t *testing.T) {
	in := holder{Initial: typeref.Parse("*example.com/game.Walking")}
	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "*example.com/game.Walking")

	var out holder
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	data, err = yaml.Marshal(holder{})
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestDecodeHook(t *testing.T) {
	var out holder
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: typeref.DecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{"initial": "*example.com/game.Jumping"}))
	assert.Equal(t, "*example.com/game.Jumping", out.Initial.Identity())
}
