package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	for level := 1; level <= NumLevels; level++ {
		for _, seed := range []uint32{0, 1, 42, 0xffffffff, 1234567} {
			a, err := Generate(seed, level)
			assert.NoError(t, err)
			b, err := Generate(seed, level)
			assert.NoError(t, err)
			assert.Equal(t, a, b, "seed=%d level=%d", seed, level)
		}
	}
}

func TestGenerateDifferentSeedsDiffer(t *testing.T) {
	a, err := Generate(42, 1)
	assert.NoError(t, err)
	b, err := Generate(43, 1)
	assert.NoError(t, err)
	assert.NotEqual(t, a.Obstacles, b.Obstacles)
}

func TestGenerateSameSeedDifferentLevels(t *testing.T) {
	a, err := Generate(42, 1)
	assert.NoError(t, err)
	b, err := Generate(42, 2)
	assert.NoError(t, err)
	assert.NotEqual(t, a.Obstacles[0], b.Obstacles[0])
}

func TestGenerateCorridorWithinBounds(t *testing.T) {
	for level := 1; level <= NumLevels; level++ {
		p, err := LevelParams(level)
		assert.NoError(t, err)
		for _, seed := range []uint32{0, 42, 99999, 0xdeadbeef, 0xffffffff} {
			l, err := Generate(seed, level)
			assert.NoError(t, err)
			for i, o := range l.Obstacles {
				assert.GreaterOrEqual(t, o.GapWidth, p.CorridorWidth, "level=%d seed=%d obstacle=%d", level, seed, i)
				assert.LessOrEqual(t, o.GapStart+o.GapWidth, p.TrackWidth, "level=%d seed=%d obstacle=%d", level, seed, i)
			}
		}
	}
}

func TestGenerateSeed42Level1Scenario(t *testing.T) {
	p, err := LevelParams(1)
	assert.NoError(t, err)

	l, err := Generate(42, 1)
	assert.NoError(t, err)
	assert.Len(t, l.Obstacles, p.Obstacles)

	// Strictly increasing distances, no two walls overlapping along the track.
	for i := 1; i < len(l.Obstacles); i++ {
		prev, cur := l.Obstacles[i-1], l.Obstacles[i]
		assert.Greater(t, cur.Distance, prev.Distance)
		assert.GreaterOrEqual(t, cur.Distance, prev.Distance+p.Depth)
	}
}

func TestGenerateInvalidLevel(t *testing.T) {
	for _, level := range []int{0, -1, NumLevels + 1, 100} {
		_, err := Generate(42, level)
		assert.ErrorIs(t, err, ErrInvalidLevel)
	}
}

func TestCommitmentBindsGeometry(t *testing.T) {
	a, err := Generate(42, 1)
	assert.NoError(t, err)
	b, err := Generate(42, 1)
	assert.NoError(t, err)
	assert.Equal(t, a.Commitment(), b.Commitment())

	// Any geometry change must change the commitment.
	b.Obstacles[3].GapStart++
	assert.NotEqual(t, a.Commitment(), b.Commitment())

	c, err := Generate(42, 2)
	assert.NoError(t, err)
	assert.NotEqual(t, a.Commitment(), c.Commitment())
}
