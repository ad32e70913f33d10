package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsObjectKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(data))
}

func TestMarshal_NestedDeterminism(t *testing.T) {
	v := map[string]any{
		"outer": map[string]any{"z": true, "a": []any{1, "two", nil}},
	}

	first, err := Marshal(v)
	require.NoError(t, err)
	second, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, `{"outer":{"a":[1,"two",null],"z":true}}`, string(first))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	data, err := Marshal(map[string]any{"html": "<a>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<a>&</a>"}`, string(data))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	// U+0065 U+0301 (e + combining acute) normalizes to U+00E9.
	decomposed, err := Marshal("é")
	require.NoError(t, err)
	composed, err := Marshal("é")
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshal_Floats(t *testing.T) {
	data, err := Marshal(map[string]any{"pi": 3.25, "n": -0.5})
	require.NoError(t, err)
	assert.Equal(t, `{"n":-0.5,"pi":3.25}`, string(data))
}

func TestMarshal_LargeIntegersSurviveLowering(t *testing.T) {
	type wrapper struct {
		N int64 `json:"n"`
	}

	data, err := Marshal(wrapper{N: 9007199254740993}) // 2^53 + 1
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(data))
}

func TestMarshal_StructLowering(t *testing.T) {
	type todo struct {
		Title string `json:"title"`
		Done  bool   `json:"done"`
	}

	data, err := Marshal(todo{Title: "ship", Done: true})
	require.NoError(t, err)
	assert.Equal(t, `{"done":true,"title":"ship"}`, string(data))
}

func TestHash_StableAcrossKeyOrder(t *testing.T) {
	h1, err := Hash(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHash_DiffersOnContent(t *testing.T) {
	h1, err := Hash(map[string]any{"a": 1})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	original := map[string]any{
		"name":  "snapshot",
		"count": json.Number("42"),
		"tags":  []any{"x", "y"},
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := Unmarshal([]byte("{not json"))
	require.Error(t, err)
}

func TestMarshal_UnsupportedType(t *testing.T) {
	_, err := Marshal(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}
