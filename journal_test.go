package cubeathon

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

func testAccount(t *testing.T) ledger.AccountID {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return ledger.AccountIDFromPubKey(priv.PubKey())
}

func TestJournalHashDeterministic(t *testing.T) {
	player := testAccount(t)
	h1, err := JournalHash(7, player, 1, 31000)
	if err != nil {
		t.Fatalf("journal hash: %v", err)
	}
	h2, err := JournalHash(7, player, 1, 31000)
	if err != nil {
		t.Fatalf("journal hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("journal hash not deterministic")
	}
}

func TestJournalHashBindsEveryField(t *testing.T) {
	player := testAccount(t)
	base, err := JournalHash(7, player, 1, 31000)
	if err != nil {
		t.Fatalf("journal hash: %v", err)
	}
	variants := []struct {
		name    string
		session uint32
		acct    ledger.AccountID
		level   uint32
		timeMS  uint64
	}{
		{"session", 8, player, 1, 31000},
		{"player", 7, testAccount(t), 1, 31000},
		{"level", 7, player, 2, 31000},
		{"time", 7, player, 1, 31001},
	}
	for _, v := range variants {
		h, err := JournalHash(v.session, v.acct, v.level, v.timeMS)
		if err != nil {
			t.Fatalf("%s: %v", v.name, err)
		}
		if h == base {
			t.Fatalf("changing %s did not change the journal hash", v.name)
		}
	}
}

func TestJournalHashRejectsBadPlayer(t *testing.T) {
	if _, err := JournalHash(7, ledger.AccountID("nothex"), 1, 1); err == nil {
		t.Fatalf("expected error for malformed player id")
	}
	if _, err := JournalHash(7, ledger.AccountID("aabb"), 1, 1); err == nil {
		t.Fatalf("expected error for short player id")
	}
}

func TestCourseCommitmentMatchesLayout(t *testing.T) {
	c1, err := CourseCommitment(42, 1)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	c2, err := CourseCommitment(42, 1)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("commitment not deterministic")
	}
	c3, err := CourseCommitment(43, 1)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if c1 == c3 {
		t.Fatalf("different seeds produced the same commitment")
	}
	if _, err := CourseCommitment(42, 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
