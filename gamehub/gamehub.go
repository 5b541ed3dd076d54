// Package gamehub builds the contract invocations for a two-player speed-run
// session and decodes the contract's records back into Go types. It knows the
// call shapes and record layouts; moving them on and off the ledger is the
// ledger package's job.
package gamehub

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

// NumLevels is the number of levels a player must clear to finish a session.
const NumLevels = 3

// UnfinishedTime marks a player who has not yet cleared all levels.
const UnfinishedTime = ^uint64(0)

// Validation errors, rejected locally before anything is submitted.
var (
	ErrSamePlayer = errors.New("gamehub: players must be different accounts")
	ErrZeroStake  = errors.New("gamehub: stakes must be positive")
	ErrBadLevel   = errors.New("gamehub: level out of range")
)

// Contract-level rejections, recovered from dry-run and execution diagnostics.
var (
	ErrGameNotFound     = errors.New("gamehub: session not found")
	ErrNotPlayer        = errors.New("gamehub: account is not a session player")
	ErrGameAlreadyEnded = errors.New("gamehub: session already has a winner")
	ErrInvalidProof     = errors.New("gamehub: proof rejected by verifier")
	ErrNotInitialized   = errors.New("gamehub: contract not initialized")
	ErrInvalidLevel     = errors.New("gamehub: invalid level")
	ErrLevelNotUnlocked = errors.New("gamehub: level not yet unlocked")
)

var contractErrors = map[string]error{
	"Error(1)": ErrGameNotFound,
	"Error(2)": ErrNotPlayer,
	"Error(3)": ErrGameAlreadyEnded,
	"Error(4)": ErrInvalidProof,
	"Error(5)": ErrNotInitialized,
	"Error(6)": ErrInvalidLevel,
	"Error(7)": ErrLevelNotUnlocked,
}

// MapDiag translates a contract diagnostic string into one of the sentinel
// errors above when it names a known error code. Unknown diagnostics come
// back verbatim; they are still terminal, just not classifiable.
func MapDiag(diag string) error {
	for code, err := range contractErrors {
		if strings.Contains(diag, code) {
			return err
		}
	}
	return fmt.Errorf("gamehub: contract rejected call: %s", diag)
}

// State is a party's local view of where a session is in its life.
type State int

const (
	StateUnstarted State = iota
	// StateAwaitingCounterparty means this party exported a signed fragment
	// and the counterpart has not finalized yet.
	StateAwaitingCounterparty
	StateActive
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateAwaitingCounterparty:
		return "awaiting counterparty signature"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PlayerProgress tracks one player's run through the levels.
type PlayerProgress struct {
	LevelsCleared uint32
	// BestTimeMS is the summed time across all levels once the player
	// finishes, UnfinishedTime before that.
	BestTimeMS uint64
	LevelTimes []uint64
}

// Finished reports whether the player has cleared every level.
func (p *PlayerProgress) Finished() bool {
	return p.LevelsCleared >= NumLevels
}

// NextLevel returns the only level this player may submit next. Levels unlock
// sequentially; the contract rejects anything else.
func (p *PlayerProgress) NextLevel() uint32 {
	return p.LevelsCleared + 1
}

// Session is the on-ledger record of a two-player session.
type Session struct {
	ID        uint32
	Player1   ledger.AccountID
	Player2   ledger.AccountID
	Stake1    ledger.I128
	Stake2    ledger.I128
	Progress1 PlayerProgress
	Progress2 PlayerProgress
	Winner    *ledger.AccountID
	StartedAt uint64
}

// State reports the lifecycle state a decoded on-ledger session is in. The
// pre-ledger states (unstarted, awaiting counterparty) exist only locally;
// a record that made it on-chain is at least active.
func (s *Session) State() State {
	if s.Winner != nil {
		return StateCompleted
	}
	return StateActive
}

// ProgressOf returns the progress record for the given player, or an error if
// the account is not one of the session's players.
func (s *Session) ProgressOf(player ledger.AccountID) (*PlayerProgress, error) {
	switch player {
	case s.Player1:
		return &s.Progress1, nil
	case s.Player2:
		return &s.Progress2, nil
	}
	return nil, ErrNotPlayer
}

// LeaderboardEntry is one row of the global leaderboard, fastest first.
type LeaderboardEntry struct {
	Player    ledger.AccountID
	TimeMS    uint64
	SessionID uint32
	Timestamp uint64
}

// Contract binds the invocation builders to one deployed contract instance.
type Contract struct {
	id string
}

// NewContract validates the hex contract id and returns a binding for it.
func NewContract(idHex string) (*Contract, error) {
	raw, err := hex.DecodeString(idHex)
	if err != nil {
		return nil, fmt.Errorf("bad contract id hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("contract id must be 32 bytes, got %d", len(raw))
	}
	return &Contract{id: strings.ToLower(idHex)}, nil
}

// ID returns the hex contract id.
func (c *Contract) ID() string { return c.id }

// StartGame builds the session-opening invocation. Both named players must
// authorize it, which is what the handoff protocol exists to collect.
func (c *Contract) StartGame(sessionID uint32, player1, player2 ledger.AccountID, stake1, stake2 ledger.I128) (*ledger.Invocation, error) {
	if player1 == player2 {
		return nil, ErrSamePlayer
	}
	if !stake1.IsPositive() || !stake2.IsPositive() {
		return nil, ErrZeroStake
	}
	if _, err := player1.PubKey(); err != nil {
		return nil, err
	}
	if _, err := player2.PubKey(); err != nil {
		return nil, err
	}
	return &ledger.Invocation{
		Contract: c.id,
		Function: "start_game",
		Args: []ledger.Val{
			ledger.U32Val(sessionID),
			ledger.AddressVal(player1),
			ledger.AddressVal(player2),
			ledger.I128Val(stake1),
			ledger.I128Val(stake2),
		},
	}, nil
}

// SubmitLevel builds the level-result invocation. Empty proof bytes are the
// dev-mode escape hatch: the contract then checks only the journal hash
// structure instead of invoking the verifier.
func (c *Contract) SubmitLevel(sessionID uint32, player ledger.AccountID, level uint32, timeMS uint64, proof []byte, journalHash [32]byte) (*ledger.Invocation, error) {
	if level < 1 || level > NumLevels {
		return nil, fmt.Errorf("%w: %d", ErrBadLevel, level)
	}
	if _, err := player.PubKey(); err != nil {
		return nil, err
	}
	return &ledger.Invocation{
		Contract: c.id,
		Function: "submit_level",
		Args: []ledger.Val{
			ledger.U32Val(sessionID),
			ledger.AddressVal(player),
			ledger.U32Val(level),
			ledger.U64Val(timeMS),
			ledger.BytesVal(proof),
			ledger.BytesVal(journalHash[:]),
		},
	}, nil
}

// GetGame builds the read-only session query.
func (c *Contract) GetGame(sessionID uint32) *ledger.Invocation {
	return &ledger.Invocation{
		Contract: c.id,
		Function: "get_game",
		Args:     []ledger.Val{ledger.U32Val(sessionID)},
	}
}

// GetLeaderboard builds the read-only leaderboard query.
func (c *Contract) GetLeaderboard() *ledger.Invocation {
	return &ledger.Invocation{
		Contract: c.id,
		Function: "get_leaderboard",
		Args:     nil,
	}
}
