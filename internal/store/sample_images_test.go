package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushSampleImage(t *testing.T) {
	t.Run("first image starts the list", func(t *testing.T) {
		images, changed := PushSampleImage(nil, "a.png")
		assert.True(t, changed)
		assert.Equal(t, []string{"a.png"}, images)
	})

	t.Run("new image goes to the front", func(t *testing.T) {
		images, changed := PushSampleImage([]string{"a.png", "b.png"}, "c.png")
		assert.True(t, changed)
		assert.Equal(t, []string{"c.png", "a.png", "b.png"}, images)
	})

	t.Run("current head is left alone", func(t *testing.T) {
		images, changed := PushSampleImage([]string{"a.png", "b.png"}, "a.png")
		assert.False(t, changed)
		assert.Equal(t, []string{"a.png", "b.png"}, images)
	})

	t.Run("duplicate anywhere leaves the list unchanged", func(t *testing.T) {
		images, changed := PushSampleImage([]string{"a.png", "b.png", "c.png"}, "b.png")
		assert.False(t, changed)
		assert.Equal(t, []string{"a.png", "b.png", "c.png"}, images)
	})

	t.Run("duplicate in the last slot leaves a full list unchanged", func(t *testing.T) {
		full := []string{"d.png", "c.png", "b.png", "a.png"}
		images, changed := PushSampleImage(full, "a.png")
		assert.False(t, changed)
		assert.Equal(t, full, images)
	})

	t.Run("list is capped at four entries", func(t *testing.T) {
		images, changed := PushSampleImage([]string{"a.png", "b.png", "c.png", "d.png"}, "e.png")
		assert.True(t, changed)
		assert.Equal(t, []string{"e.png", "a.png", "b.png", "c.png"}, images)
	})

	t.Run("empty url is ignored", func(t *testing.T) {
		images, changed := PushSampleImage([]string{"a.png"}, "")
		assert.False(t, changed)
		assert.Equal(t, []string{"a.png"}, images)
	})
}
