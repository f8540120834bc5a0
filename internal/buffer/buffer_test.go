package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewSub(t *testing.T) {
	v := View("hello world")
	assert.Equal(t, "hello", v.Sub(0, 5).String())
	assert.Equal(t, "world", v.Sub(6, 100).String())
	assert.Equal(t, "", v.Sub(20, 25).String())
}

func TestViewEqual(t *testing.T) {
	assert.True(t, View("abc").Equal(View("abc")))
	assert.False(t, View("abc").Equal(View("abd")))
}

func TestViewRemovePrefix(t *testing.T) {
	v := View("services/com.example.App")
	ok := v.RemovePrefix(View("services/"))
	assert.True(t, ok)
	assert.Equal(t, "com.example.App", v.String())

	ok = v.RemovePrefix(View("nope"))
	assert.False(t, ok)
}
