package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstructors(t *testing.T) {
	t.Run("Int", func(t *testing.T) {
		v := Int(42)
		assert.Equal(t, KindInt, v.Kind)

		i, ok := v.AsInt64()
		assert.True(t, ok)
		assert.Equal(t, int64(42), i)
	})

	t.Run("Float", func(t *testing.T) {
		v := Float(3.14)
		assert.Equal(t, KindFloat, v.Kind)

		f, ok := v.AsFloat64()
		assert.True(t, ok)
		assert.Equal(t, 3.14, f)
	})

	t.Run("String", func(t *testing.T) {
		v := String("hello")
		assert.Equal(t, KindString, v.Kind)

		s, ok := v.AsString()
		assert.True(t, ok)
		assert.Equal(t, "hello", s)
	})

	t.Run("Bool", func(t *testing.T) {
		v := Bool(true)
		assert.Equal(t, KindBool, v.Kind)

		b, ok := v.AsBool()
		assert.True(t, ok)
		assert.True(t, b)
	})

	t.Run("Array", func(t *testing.T) {
		v := Array(Int(1), String("two"))
		assert.Equal(t, KindArray, v.Kind)

		arr, ok := v.AsArray()
		assert.True(t, ok)
		assert.Len(t, arr, 2)
	})

	t.Run("Strings", func(t *testing.T) {
		v := Strings("a", "b")
		arr, ok := v.AsArray()
		assert.True(t, ok)
		require.Len(t, arr, 2)

		s, _ := arr[1].AsString()
		assert.Equal(t, "b", s)
	})

	t.Run("MismatchedAccessor", func(t *testing.T) {
		v := Int(1)

		_, ok := v.AsString()
		assert.False(t, ok)
	})
}

func TestValueKey(t *testing.T) {
	t.Run("Stable", func(t *testing.T) {
		assert.Equal(t, Int(7).Key(), Int(7).Key())
		assert.Equal(t, String("x").Key(), String("x").Key())
	})

	t.Run("DistinctAcrossKinds", func(t *testing.T) {
		assert.NotEqual(t, Int(1).Key(), Float(1).Key())
		assert.NotEqual(t, String("1").Key(), Int(1).Key())
	})

	t.Run("DistinctWithinKind", func(t *testing.T) {
		assert.NotEqual(t, String("a").Key(), String("b").Key())
		assert.NotEqual(t, Float(1.0).Key(), Float(1.5).Key())
	})

	t.Run("Array", func(t *testing.T) {
		assert.Equal(t, Strings("a", "b").Key(), Strings("a", "b").Key())
		assert.NotEqual(t, Strings("a", "b").Key(), Strings("b", "a").Key())
	})
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{name: "null", value: Null()},
		{name: "int", value: Int(-12)},
		{name: "float", value: Float(2.5)},
		{name: "string", value: String("unit")},
		{name: "bool", value: Bool(false)},
		{name: "array", value: Array(Int(1), String("two"), Bool(true))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)

			var got Value
			require.NoError(t, json.Unmarshal(data, &got))

			assert.Equal(t, tt.value.Key(), got.Key())
		})
	}
}

func TestDocumentClone(t *testing.T) {
	doc := Document{
		"category": String("news"),
		"year":     Int(2024),
	}

	clone := doc.Clone()
	clone["year"] = Int(2025)

	y, _ := doc["year"].AsInt64()
	assert.Equal(t, int64(2024), y)
}
