package incident

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(n int) *Item {
	return &Item{
		ID:        fmt.Sprintf("item-%02d", n),
		Filename:  fmt.Sprintf("clip-%02d.webm", n),
		SizeBytes: 3,
		CreatedAt: time.Unix(int64(n), 0),
		Artifact:  []byte{byte(n), byte(n), byte(n)},
	}
}

func TestGallery_EvictsOldestAndReleasesIt(t *testing.T) {
	var released []string
	g := NewGallery(10, func(it Item) {
		released = append(released, it.ID)
		assert.Nil(t, it.Artifact)
	})

	items := make([]*Item, 0, 11)
	for i := 1; i <= 11; i++ {
		it := newItem(i)
		items = append(items, it)
		g.Add(it)
	}

	assert.Equal(t, 10, g.Len())
	assert.Equal(t, []string{"item-01"}, released)
	assert.Nil(t, items[0].Artifact, "evicted artifact must be released")

	list := g.List()
	require.Len(t, list, 10)
	assert.Equal(t, "item-11", list[0].ID)
	assert.Equal(t, "item-02", list[9].ID)
	for _, it := range list {
		assert.Nil(t, it.Artifact, "List must not carry artifacts")
	}
}

func TestGallery_GetReturnsArtifact(t *testing.T) {
	g := NewGallery(2, nil)
	g.Add(newItem(7))

	it, err := g.Get("item-07")
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 7, 7}, it.Artifact)

	_, err = g.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGallery_DeleteReleases(t *testing.T) {
	var released []string
	g := NewGallery(3, func(it Item) { released = append(released, it.ID) })
	a, b := newItem(1), newItem(2)
	g.Add(a)
	g.Add(b)

	require.NoError(t, g.Delete("item-01"))
	assert.Nil(t, a.Artifact)
	assert.Equal(t, []string{"item-01"}, released)
	assert.Equal(t, 1, g.Len())

	assert.ErrorIs(t, g.Delete("item-01"), ErrNotFound)
}
