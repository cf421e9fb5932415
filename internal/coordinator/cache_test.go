package coordinator

import (
	"testing"

	"echelon/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCacheReplace(t *testing.T) {
	c := NewCache()
	assert.Nil(t, c.Load())

	forest := []domain.BulletPoint{{ID: 1, TeamID: 1}}
	teams := []domain.Team{domain.NewTeam(1, "Battalion", "Battalion", 0)}

	snap, ok := c.Replace(c.Generation(), forest, teams)
	assert.True(t, ok)
	assert.Same(t, snap, c.Load())
	assert.Equal(t, 1, snap.Index.Len())
}

func TestCacheDiscardRejectsOlderFetch(t *testing.T) {
	c := NewCache()

	gen := c.Generation()
	newer := c.Discard()
	assert.Equal(t, gen+1, newer)

	_, ok := c.Replace(gen, nil, nil)
	assert.False(t, ok, "a fetch started before the discard must not install")
	assert.Nil(t, c.Load())

	snap, ok := c.Replace(newer, nil, nil)
	assert.True(t, ok)
	assert.Equal(t, newer, snap.Generation)

	c.Discard()
	assert.Nil(t, c.Load())
}
