// Package cubeathon holds the commitment helpers both players and any
// verifier share: the journal hash a level submission commits to, and the
// course commitment binding a submission to the exact generated track.
package cubeathon

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
	"github.com/NikhilRaikwar/Cubeathon/track"
)

// JournalHash computes the commitment a level submission carries:
// SHA-256(session_id ‖ player ‖ level ‖ time_ms), with fixed big-endian
// widths. The contract checks this structure even in dev mode, and a real
// verifier binds the proof to it, so both sides must compute it identically.
func JournalHash(sessionID uint32, player ledger.AccountID, level uint32, timeMS uint64) ([32]byte, error) {
	raw, err := hex.DecodeString(string(player))
	if err != nil {
		return [32]byte{}, fmt.Errorf("journal hash: bad player id: %w", err)
	}
	if len(raw) != 33 {
		return [32]byte{}, fmt.Errorf("journal hash: player id must be 33 bytes, got %d", len(raw))
	}
	h := sha256.New()
	var b [8]byte
	binary.BigEndian.PutUint32(b[:4], sessionID)
	h.Write(b[:4])
	h.Write(raw)
	binary.BigEndian.PutUint32(b[:4], level)
	h.Write(b[:4])
	binary.BigEndian.PutUint64(b[:], timeMS)
	h.Write(b[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// CourseCommitment regenerates the layout for (seed, level) and returns its
// commitment. Any party can recompute this from public inputs; a submission
// carrying a different commitment was played on a different course.
func CourseCommitment(seed uint32, level int) ([32]byte, error) {
	layout, err := track.Generate(seed, level)
	if err != nil {
		return [32]byte{}, err
	}
	return layout.Commitment(), nil
}
