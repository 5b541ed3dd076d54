package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Footprint is the ledger state a transaction reads and writes, reported by a
// dry-run. The submitted envelope must carry the footprint of the LAST dry-run
// performed on it: footprints can change once auth entries are attached, and a
// stale footprint fails on execution, not at submission.
type Footprint struct {
	ReadOnly  []string `json:"read_only"`
	ReadWrite []string `json:"read_write"`
}

// Envelope is one candidate or fully signed transaction.
type Envelope struct {
	Source    AccountID        `json:"source"`
	Sequence  uint64           `json:"sequence"`
	Op        Invocation       `json:"op"`
	Auth      []SignedFragment `json:"auth"`
	Footprint Footprint        `json:"footprint"`
	Fee       uint64           `json:"fee"`
}

// Hash returns the envelope's transaction hash: BLAKE-256 over the canonical
// encoding, domain separated by the network passphrase.
func (e *Envelope) Hash(networkPassphrase string) (chainhash.Hash, error) {
	var buf bytes.Buffer
	buf.WriteString("Cubeathon/Tx/v1")
	buf.WriteString(networkPassphrase)
	buf.WriteByte('|')
	src, err := hex.DecodeString(string(e.Source))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("hash source: %w", err)
	}
	buf.Write(src)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], e.Sequence)
	buf.Write(b[:])
	op, err := e.Op.Encode()
	if err != nil {
		return chainhash.Hash{}, err
	}
	buf.Write(op)
	for _, f := range e.Auth {
		d, err := f.Obligation.Digest(networkPassphrase)
		if err != nil {
			return chainhash.Hash{}, err
		}
		buf.Write(d[:])
	}
	for _, k := range e.Footprint.ReadOnly {
		buf.WriteString(k)
		buf.WriteByte(0)
	}
	for _, k := range e.Footprint.ReadWrite {
		buf.WriteString(k)
		buf.WriteByte(0)
	}
	binary.BigEndian.PutUint64(b[:], e.Fee)
	buf.Write(b[:])
	return chainhash.Hash(blake256.Sum256(buf.Bytes())), nil
}

// Signer produces signed fragments for obligations naming its account.
type Signer interface {
	Account() AccountID
	SignObligation(o AuthObligation) (*SignedFragment, error)
}

// KeySigner signs obligations with an in-memory secp256k1 private key.
type KeySigner struct {
	priv       *secp256k1.PrivateKey
	passphrase string
}

func NewKeySigner(priv *secp256k1.PrivateKey, networkPassphrase string) *KeySigner {
	return &KeySigner{priv: priv, passphrase: networkPassphrase}
}

func (s *KeySigner) Account() AccountID {
	return AccountIDFromPubKey(s.priv.PubKey())
}

func (s *KeySigner) SignObligation(o AuthObligation) (*SignedFragment, error) {
	return SignObligation(s.priv, o, s.passphrase)
}

// AttachAuth merges a dry-run's obligation list with zero or more pre-signed
// fragments and local signers, producing the envelope's auth list.
//
// Matching is always by account identity, never by position: obligation order
// is encoding-defined and not a stable key. A pre-signed fragment is
// substituted verbatim, but only after its recorded invocation is checked
// byte-for-byte against the obligation produced by this dry-run; any drift
// means the signature covers a different call and the merge aborts with
// ErrObligationMismatch rather than submitting something the network will
// reject (or worse, something the signer never approved).
func AttachAuth(obligations []AuthObligation, presigned []*SignedFragment, signers []Signer) ([]SignedFragment, error) {
	preByAccount := make(map[AccountID]*SignedFragment, len(presigned))
	for _, f := range presigned {
		if _, dup := preByAccount[f.Obligation.Account]; dup {
			return nil, fmt.Errorf("duplicate pre-signed fragment for account %s", f.Obligation.Account)
		}
		preByAccount[f.Obligation.Account] = f
	}
	signerByAccount := make(map[AccountID]Signer, len(signers))
	for _, s := range signers {
		signerByAccount[s.Account()] = s
	}

	out := make([]SignedFragment, 0, len(obligations))
	matched := make(map[AccountID]bool, len(presigned))
	for _, o := range obligations {
		if f := preByAccount[o.Account]; f != nil {
			same, err := f.Obligation.Invocation.EqualEncoding(&o.Invocation)
			if err != nil {
				return nil, err
			}
			if !same {
				return nil, fmt.Errorf("%w: account %s", ErrObligationMismatch, o.Account)
			}
			out = append(out, *f)
			matched[o.Account] = true
			continue
		}
		s := signerByAccount[o.Account]
		if s == nil {
			return nil, fmt.Errorf("no signer or fragment for obligation account %s", o.Account)
		}
		f, err := s.SignObligation(o)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	for acct := range preByAccount {
		if !matched[acct] {
			return nil, fmt.Errorf("pre-signed fragment for %s matches no obligation", acct)
		}
	}
	return out, nil
}

// VerifyAuth checks, immediately before submission, that every attached
// fragment verifies and that its recorded invocation byte-matches the
// envelope's actual operation. This is the security-critical last gate: a
// transaction whose signed obligations do not match its body must never leave
// the process.
func (e *Envelope) VerifyAuth(networkPassphrase string) error {
	for i := range e.Auth {
		f := &e.Auth[i]
		same, err := f.Obligation.Invocation.EqualEncoding(&e.Op)
		if err != nil {
			return err
		}
		if !same {
			return fmt.Errorf("%w: auth entry for %s", ErrObligationMismatch, f.Obligation.Account)
		}
		if err := f.Verify(networkPassphrase); err != nil {
			return fmt.Errorf("auth entry for %s: %w", f.Obligation.Account, err)
		}
	}
	return nil
}
