package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceString(t *testing.T) {
	assert.Equal(t, "abc", CoerceString(" abc "))
	assert.Equal(t, "12345", CoerceString(float64(12345)))
	assert.Equal(t, "12.5", CoerceString(12.5))
	assert.Equal(t, "true", CoerceString(true))
	assert.Equal(t, "", CoerceString(nil))
	assert.Equal(t, "", CoerceString(map[string]interface{}{}))
}

func TestCoerceInt64(t *testing.T) {
	n, ok := CoerceInt64(float64(990))
	assert.True(t, ok)
	assert.Equal(t, int64(990), n)

	n, ok = CoerceInt64(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = CoerceInt64(12.5)
	assert.False(t, ok)

	_, ok = CoerceInt64(nil)
	assert.False(t, ok)
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("tx-1", `{"status":"paid"}`)
	b := ContentHash("tx-1", `{"status":"paid"}`)
	c := ContentHash("tx-1", `{"status":"pending"}`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestContentHashSeparatorMatters(t *testing.T) {
	// Concatenation ambiguity must not collide.
	assert.NotEqual(t, ContentHash("ab", "c"), ContentHash("a", "bc"))
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a := map[string]interface{}{"b": 1.0, "a": "x"}
	b := map[string]interface{}{"a": "x", "b": 1.0}

	assert.Equal(t, CanonicalJSON(a), CanonicalJSON(b))
	assert.Equal(t, `{"a":"x","b":1}`, CanonicalJSON(a))
}

func TestCanonicalJSONNested(t *testing.T) {
	v := map[string]interface{}{
		"z": []interface{}{map[string]interface{}{"k2": true, "k1": nil}},
	}
	assert.Equal(t, `{"z":[{"k1":null,"k2":true}]}`, CanonicalJSON(v))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****3456", MaskSecret("123456"))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "", MaskSecret(""))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*********78", MaskPhone("(11) 99999-5678"))
	assert.Equal(t, "**", MaskPhone("1"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
