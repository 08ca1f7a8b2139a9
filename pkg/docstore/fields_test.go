package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimeSortsLexically(t *testing.T) {
	early := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	late := early.Add(1500 * time.Millisecond)

	a, b := FormatTime(early), FormatTime(late)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := ParseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(late))
}

func TestParseTimeAcceptsRFC3339(t *testing.T) {
	got, err := ParseTime("2024-03-10T12:00:00-06:00")
	require.NoError(t, err)
	assert.Equal(t, 18, got.UTC().Hour())
}

func TestNormalize(t *testing.T) {
	out, err := Normalize(map[string]any{"n": 3, "nested": map[string]string{"a": "b"}})
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["n"])
	assert.Equal(t, map[string]any{"a": "b"}, out["nested"])

	_, err = Normalize(map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMergeDoesNotAlias(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": "1"}}
	out := Merge(base, map[string]any{"a": map[string]any{"y": "2"}, "b": "3"})

	assert.Equal(t, map[string]any{"x": "1"}, base["a"])
	assert.Equal(t, map[string]any{"x": "1", "y": "2"}, out["a"])
	assert.Equal(t, "3", out["b"])
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "7", Text(float64(7)))
	assert.Equal(t, "1.75", Text(1.75))
	assert.Equal(t, "true", Text(true))
	assert.Equal(t, "abc", Text("abc"))
}
