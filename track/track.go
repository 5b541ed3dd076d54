package track

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/crypto/blake256"
)

// The generator is a wire-format-like contract: any conforming implementation,
// in any language, must reproduce the identical obstacle sequence for the same
// (seed, level) pair, because survival proofs are verified against a course the
// verifier regenerates independently. Do not change these constants or the
// draw order without versioning the commitment.
const (
	lcgA = 1664525
	lcgC = 1013904223

	// seedMixK folds the level into the initial state so the same seed yields
	// unrelated courses per level. Must stay odd.
	seedMixK = 0x9E3779B1
)

var ErrInvalidLevel = fmt.Errorf("track: invalid level")

// Params are the fixed, configuration-visible knobs for one level. They are a
// lookup table indexed by level, never derived from the seed.
type Params struct {
	Obstacles     int    // number of walls
	StartOffset   uint32 // distance from start to the first wall
	Spacing       uint32 // distance between consecutive walls
	Depth         uint32 // wall thickness along the track
	TrackWidth    uint32 // lateral extent of the course
	CorridorWidth uint32 // minimum guaranteed safe-passage width
	GapSlack      uint32 // max extra width added to a gap beyond CorridorWidth
}

// levels holds the per-level tables for levels 1..3. Every entry must satisfy
// CorridorWidth+GapSlack <= TrackWidth and Spacing > Depth, so the corridor
// always fits and walls never overlap.
var levels = []Params{
	{Obstacles: 8, StartOffset: 600, Spacing: 420, Depth: 40, TrackWidth: 900, CorridorWidth: 260, GapSlack: 120},
	{Obstacles: 12, StartOffset: 600, Spacing: 360, Depth: 40, TrackWidth: 900, CorridorWidth: 200, GapSlack: 100},
	{Obstacles: 16, StartOffset: 600, Spacing: 300, Depth: 40, TrackWidth: 900, CorridorWidth: 150, GapSlack: 80},
}

// NumLevels is the number of configured levels.
const NumLevels = 3

// LevelParams returns the fixed parameters for level (1-based).
func LevelParams(level int) (Params, error) {
	if level < 1 || level > len(levels) {
		return Params{}, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return levels[level-1], nil
}

// Obstacle is one wall with a safe-passage gap. All geometry is integral so
// layouts are bit-identical across platforms.
type Obstacle struct {
	Distance uint32 // world position of the wall's leading edge
	GapStart uint32 // lateral offset where the gap begins
	GapWidth uint32 // width of the gap; always >= the level's CorridorWidth
}

// Layout is the full deterministic course for one (seed, level) pair.
type Layout struct {
	Seed      uint32
	Level     int
	Track     Params
	Obstacles []Obstacle
}

// Generate produces the obstacle layout for (seed, level). It is pure and
// referentially transparent: two independent invocations with the same inputs
// return identical layouts. Level indices outside 1..NumLevels are a caller
// contract violation and return ErrInvalidLevel.
func Generate(seed uint32, level int) (*Layout, error) {
	p, err := LevelParams(level)
	if err != nil {
		return nil, err
	}

	state := seed ^ (uint32(level) * seedMixK)
	draw := func() uint32 {
		state = state*lcgA + lcgC
		return state
	}

	obs := make([]Obstacle, p.Obstacles)
	for i := range obs {
		// One draw for the gap offset, one for the extra width. Clamp via
		// modulo so the corridor always lies inside the track; never panic on
		// boundary arithmetic.
		width := p.CorridorWidth
		if p.GapSlack > 0 {
			width += draw() % (p.GapSlack + 1)
		}
		if width > p.TrackWidth {
			width = p.TrackWidth
		}
		start := draw() % (p.TrackWidth - width + 1)

		obs[i] = Obstacle{
			Distance: p.StartOffset + uint32(i)*p.Spacing,
			GapStart: start,
			GapWidth: width,
		}
	}

	return &Layout{Seed: seed, Level: level, Track: p, Obstacles: obs}, nil
}

// Commitment returns a 32-byte digest binding the exact course geometry. A
// survival proof commits to this value so the verifier can check the claimed
// run against the same course both players generated.
func (l *Layout) Commitment() [32]byte {
	h := blake256.New()
	h.Write([]byte("Cubeathon/Track/v1"))
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], l.Seed)
	h.Write(b[:])
	binary.BigEndian.PutUint32(b[:], uint32(l.Level))
	h.Write(b[:])
	binary.BigEndian.PutUint32(b[:], l.Track.TrackWidth)
	h.Write(b[:])
	for _, o := range l.Obstacles {
		binary.BigEndian.PutUint32(b[:], o.Distance)
		h.Write(b[:])
		binary.BigEndian.PutUint32(b[:], o.GapStart)
		h.Write(b[:])
		binary.BigEndian.PutUint32(b[:], o.GapWidth)
		h.Write(b[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
