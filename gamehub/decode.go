package gamehub

import (
	"fmt"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

// Record layouts mirror the contract's struct encoding: a vec of fields in
// declaration order. Optional values are a vec of zero or one elements.
//
// Session: [player1, player2, stake1, stake2, progress1, progress2, winner,
// started_at]. PlayerProgress: [levels_cleared, best_time_ms, level_times].
// LeaderboardEntry: [player, time_ms, session_id, timestamp].

// DecodeSession decodes a get_game result. A nil or empty result means the
// session does not exist, reported as ErrGameNotFound.
func DecodeSession(sessionID uint32, v *ledger.Val) (*Session, error) {
	if v == nil {
		return nil, ErrGameNotFound
	}
	opt, err := v.AsVec()
	if err != nil {
		return nil, fmt.Errorf("decode session %d: %w", sessionID, err)
	}
	if len(opt) == 0 {
		return nil, ErrGameNotFound
	}
	fields, err := opt[0].AsVec()
	if err != nil {
		return nil, fmt.Errorf("decode session %d: %w", sessionID, err)
	}
	if len(fields) != 8 {
		return nil, fmt.Errorf("decode session %d: want 8 fields, got %d", sessionID, len(fields))
	}

	s := &Session{ID: sessionID}
	if s.Player1, err = fields[0].AsAddress(); err != nil {
		return nil, fmt.Errorf("decode session %d player1: %w", sessionID, err)
	}
	if s.Player2, err = fields[1].AsAddress(); err != nil {
		return nil, fmt.Errorf("decode session %d player2: %w", sessionID, err)
	}
	if s.Stake1, err = fields[2].AsI128(); err != nil {
		return nil, fmt.Errorf("decode session %d stake1: %w", sessionID, err)
	}
	if s.Stake2, err = fields[3].AsI128(); err != nil {
		return nil, fmt.Errorf("decode session %d stake2: %w", sessionID, err)
	}
	if s.Progress1, err = decodeProgress(fields[4]); err != nil {
		return nil, fmt.Errorf("decode session %d progress1: %w", sessionID, err)
	}
	if s.Progress2, err = decodeProgress(fields[5]); err != nil {
		return nil, fmt.Errorf("decode session %d progress2: %w", sessionID, err)
	}
	winner, err := fields[6].AsVec()
	if err != nil {
		return nil, fmt.Errorf("decode session %d winner: %w", sessionID, err)
	}
	if len(winner) > 0 {
		acct, err := winner[0].AsAddress()
		if err != nil {
			return nil, fmt.Errorf("decode session %d winner: %w", sessionID, err)
		}
		s.Winner = &acct
	}
	if s.StartedAt, err = fields[7].AsU64(); err != nil {
		return nil, fmt.Errorf("decode session %d started_at: %w", sessionID, err)
	}
	return s, nil
}

func decodeProgress(v ledger.Val) (PlayerProgress, error) {
	fields, err := v.AsVec()
	if err != nil {
		return PlayerProgress{}, err
	}
	if len(fields) != 3 {
		return PlayerProgress{}, fmt.Errorf("want 3 progress fields, got %d", len(fields))
	}
	var p PlayerProgress
	if p.LevelsCleared, err = fields[0].AsU32(); err != nil {
		return PlayerProgress{}, err
	}
	if p.BestTimeMS, err = fields[1].AsU64(); err != nil {
		return PlayerProgress{}, err
	}
	times, err := fields[2].AsVec()
	if err != nil {
		return PlayerProgress{}, err
	}
	p.LevelTimes = make([]uint64, len(times))
	for i, t := range times {
		if p.LevelTimes[i], err = t.AsU64(); err != nil {
			return PlayerProgress{}, err
		}
	}
	return p, nil
}

// DecodeLeaderboard decodes a get_leaderboard result, preserving the
// contract's fastest-first ordering.
func DecodeLeaderboard(v *ledger.Val) ([]LeaderboardEntry, error) {
	if v == nil {
		return nil, nil
	}
	rows, err := v.AsVec()
	if err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		fields, err := row.AsVec()
		if err != nil {
			return nil, fmt.Errorf("decode leaderboard entry %d: %w", i, err)
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("decode leaderboard entry %d: want 4 fields, got %d", i, len(fields))
		}
		var e LeaderboardEntry
		if e.Player, err = fields[0].AsAddress(); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry %d player: %w", i, err)
		}
		if e.TimeMS, err = fields[1].AsU64(); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry %d time: %w", i, err)
		}
		if e.SessionID, err = fields[2].AsU32(); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry %d session: %w", i, err)
		}
		if e.Timestamp, err = fields[3].AsU64(); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry %d timestamp: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// EncodeSession builds the vec-of-fields form of a session record. Query
// servers and tests use it to produce the same shape the contract returns.
func EncodeSession(s *Session) ledger.Val {
	winner := ledger.VecVal()
	if s.Winner != nil {
		winner = ledger.VecVal(ledger.AddressVal(*s.Winner))
	}
	return ledger.VecVal(ledger.VecVal(
		ledger.AddressVal(s.Player1),
		ledger.AddressVal(s.Player2),
		ledger.I128Val(s.Stake1),
		ledger.I128Val(s.Stake2),
		encodeProgress(s.Progress1),
		encodeProgress(s.Progress2),
		winner,
		ledger.U64Val(s.StartedAt),
	))
}

func encodeProgress(p PlayerProgress) ledger.Val {
	times := make([]ledger.Val, len(p.LevelTimes))
	for i, t := range p.LevelTimes {
		times[i] = ledger.U64Val(t)
	}
	return ledger.VecVal(
		ledger.U32Val(p.LevelsCleared),
		ledger.U64Val(p.BestTimeMS),
		ledger.VecVal(times...),
	)
}
