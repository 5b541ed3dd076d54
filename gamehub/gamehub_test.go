package gamehub

import (
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

const testContractID = "00000000000000000000000000000000000000000000000000000000000000aa"

func newTestAccount(t *testing.T) ledger.AccountID {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	assert.NoError(t, err)
	return ledger.AccountIDFromPubKey(priv.PubKey())
}

func TestNewContractValidatesID(t *testing.T) {
	_, err := NewContract(testContractID)
	assert.NoError(t, err)

	_, err = NewContract("abcd")
	assert.Error(t, err)

	_, err = NewContract("zz")
	assert.Error(t, err)
}

func TestStartGameValidation(t *testing.T) {
	c, err := NewContract(testContractID)
	assert.NoError(t, err)
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	stake := ledger.I128FromInt64(100)

	inv, err := c.StartGame(7, alice, bob, stake, stake)
	assert.NoError(t, err)
	assert.Equal(t, "start_game", inv.Function)
	assert.Len(t, inv.Args, 5)

	_, err = c.StartGame(7, alice, alice, stake, stake)
	assert.ErrorIs(t, err, ErrSamePlayer)

	_, err = c.StartGame(7, alice, bob, ledger.I128FromInt64(0), stake)
	assert.ErrorIs(t, err, ErrZeroStake)

	_, err = c.StartGame(7, alice, bob, stake, ledger.I128FromInt64(-5))
	assert.ErrorIs(t, err, ErrZeroStake)

	_, err = c.StartGame(7, ledger.AccountID("nothex"), bob, stake, stake)
	assert.Error(t, err)
}

func TestStartGameMaxStake(t *testing.T) {
	c, err := NewContract(testContractID)
	assert.NoError(t, err)
	inv, err := c.StartGame(7, newTestAccount(t), newTestAccount(t), ledger.MaxI128, ledger.I128FromInt64(1))
	assert.NoError(t, err)
	got, err := inv.Args[3].AsI128()
	assert.NoError(t, err)
	assert.Equal(t, ledger.MaxI128, got)
}

func TestSubmitLevelValidation(t *testing.T) {
	c, err := NewContract(testContractID)
	assert.NoError(t, err)
	alice := newTestAccount(t)
	var jh [32]byte

	inv, err := c.SubmitLevel(7, alice, 1, 12345, nil, jh)
	assert.NoError(t, err)
	assert.Equal(t, "submit_level", inv.Function)
	assert.Len(t, inv.Args, 6)

	_, err = c.SubmitLevel(7, alice, 0, 12345, nil, jh)
	assert.ErrorIs(t, err, ErrBadLevel)
	_, err = c.SubmitLevel(7, alice, NumLevels+1, 12345, nil, jh)
	assert.ErrorIs(t, err, ErrBadLevel)
}

func TestSessionDecodeRoundTrip(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	in := &Session{
		ID:      7,
		Player1: alice,
		Player2: bob,
		Stake1:  ledger.I128FromInt64(100),
		Stake2:  ledger.I128FromInt64(100),
		Progress1: PlayerProgress{
			LevelsCleared: 2,
			BestTimeMS:    UnfinishedTime,
			LevelTimes:    []uint64{31000, 42500},
		},
		Progress2: PlayerProgress{
			LevelsCleared: 0,
			BestTimeMS:    UnfinishedTime,
		},
		StartedAt: 1700000000,
	}

	enc := EncodeSession(in)
	out, err := DecodeSession(7, &enc)
	assert.NoError(t, err)
	assert.Equal(t, alice, out.Player1)
	assert.Equal(t, bob, out.Player2)
	assert.Equal(t, in.Stake1, out.Stake1)
	assert.Equal(t, in.Progress1.LevelTimes, out.Progress1.LevelTimes)
	assert.Nil(t, out.Winner)
	assert.Equal(t, StateActive, out.State())
	assert.Equal(t, uint32(3), out.Progress1.NextLevel())
	assert.False(t, out.Progress1.Finished())
}

func TestSessionDecodeWinner(t *testing.T) {
	alice := newTestAccount(t)
	in := &Session{
		ID:      7,
		Player1: alice,
		Player2: newTestAccount(t),
		Stake1:  ledger.I128FromInt64(1),
		Stake2:  ledger.I128FromInt64(1),
		Progress1: PlayerProgress{
			LevelsCleared: NumLevels,
			BestTimeMS:    99000,
			LevelTimes:    []uint64{30000, 33000, 36000},
		},
		Winner: &alice,
	}
	enc := EncodeSession(in)
	out, err := DecodeSession(7, &enc)
	assert.NoError(t, err)
	assert.NotNil(t, out.Winner)
	assert.Equal(t, alice, *out.Winner)
	assert.Equal(t, StateCompleted, out.State())
	assert.True(t, out.Progress1.Finished())
}

func TestSessionDecodeMissing(t *testing.T) {
	empty := ledger.VecVal()
	_, err := DecodeSession(7, &empty)
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = DecodeSession(7, nil)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestSessionDecodeWrongShape(t *testing.T) {
	bad := ledger.VecVal(ledger.VecVal(ledger.U32Val(1)))
	_, err := DecodeSession(7, &bad)
	assert.Error(t, err)

	notVec := ledger.U32Val(1)
	_, err = DecodeSession(7, &notVec)
	var typeErr *ledger.ValTypeError
	assert.True(t, errors.As(err, &typeErr))
}

func TestProgressOf(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	s := &Session{Player1: alice, Player2: bob}
	s.Progress1.LevelsCleared = 1

	p, err := s.ProgressOf(alice)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), p.LevelsCleared)

	_, err = s.ProgressOf(newTestAccount(t))
	assert.ErrorIs(t, err, ErrNotPlayer)
}

func TestDecodeLeaderboard(t *testing.T) {
	alice := newTestAccount(t)
	board := ledger.VecVal(
		ledger.VecVal(
			ledger.AddressVal(alice),
			ledger.U64Val(95000),
			ledger.U32Val(7),
			ledger.U64Val(1700000000),
		),
	)
	entries, err := DecodeLeaderboard(&board)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, alice, entries[0].Player)
	assert.Equal(t, uint64(95000), entries[0].TimeMS)
	assert.Equal(t, uint32(7), entries[0].SessionID)

	entries, err = DecodeLeaderboard(nil)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMapDiag(t *testing.T) {
	assert.ErrorIs(t, MapDiag("HostError: Error(7) at submit_level"), ErrLevelNotUnlocked)
	assert.ErrorIs(t, MapDiag("Error(1)"), ErrGameNotFound)
	assert.ErrorIs(t, MapDiag("Error(3)"), ErrGameAlreadyEnded)

	err := MapDiag("something unclassified")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "something unclassified")
}
