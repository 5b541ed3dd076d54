package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

var (
	// ErrObligationMismatch means a signed obligation's recorded invocation is
	// not byte-identical to the operation about to be submitted. Submitting
	// anyway would waste the fee on a guaranteed auth failure, or worse;
	// assembly aborts instead.
	ErrObligationMismatch = errors.New("ledger: signed obligation does not match operation")

	// ErrBadSignature means a fragment's signature does not verify against its
	// obligation digest and account key.
	ErrBadSignature = errors.New("ledger: fragment signature invalid")
)

// Invocation is one contract call: target contract, function, typed arguments.
type Invocation struct {
	Contract string `json:"contract"` // hex of the 32-byte contract id
	Function string `json:"function"`
	Args     []Val  `json:"args"`
}

// Encode returns the canonical binary form of the invocation. Obligation
// signatures commit to these exact bytes, so the same logical call must encode
// identically in both handoff phases (same field order, same numeric widths).
func (inv *Invocation) Encode() ([]byte, error) {
	var buf bytes.Buffer
	raw, err := hex.DecodeString(inv.Contract)
	if err != nil {
		return nil, fmt.Errorf("encode contract id: %w", err)
	}
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(raw)))
	buf.Write(n[:])
	buf.Write(raw)
	binary.BigEndian.PutUint32(n[:], uint32(len(inv.Function)))
	buf.Write(n[:])
	buf.WriteString(inv.Function)
	binary.BigEndian.PutUint32(n[:], uint32(len(inv.Args)))
	buf.Write(n[:])
	for _, a := range inv.Args {
		if err := a.encodeTo(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EqualEncoding reports whether two invocations encode byte-identically.
func (inv *Invocation) EqualEncoding(other *Invocation) (bool, error) {
	a, err := inv.Encode()
	if err != nil {
		return false, err
	}
	b, err := other.Encode()
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// AuthObligation binds an account to the exact invocation it must approve,
// discovered by dry-running a candidate transaction. Nonce makes each
// authorization single-use; ExpirationLedger bounds its life in ledger
// sequence units (ledger close time is the network's only agreed clock).
type AuthObligation struct {
	Account          AccountID  `json:"account"`
	Invocation       Invocation `json:"invocation"`
	Nonce            uint64     `json:"nonce"`
	ExpirationLedger uint32     `json:"expiration_ledger"`
}

// Digest returns the 32-byte signing digest for the obligation, domain
// separated by the network passphrase so signatures cannot be replayed across
// networks.
func (o *AuthObligation) Digest(networkPassphrase string) ([32]byte, error) {
	enc, err := o.Invocation.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	h := blake256.New()
	h.Write([]byte("Cubeathon/Auth/v1"))
	h.Write([]byte(networkPassphrase))
	h.Write([]byte{'|'})
	acct, err := hex.DecodeString(string(o.Account))
	if err != nil {
		return [32]byte{}, fmt.Errorf("digest account: %w", err)
	}
	h.Write(acct)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], o.Nonce)
	h.Write(b[:])
	binary.BigEndian.PutUint32(b[:4], o.ExpirationLedger)
	h.Write(b[:4])
	h.Write(enc)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// SignedFragment is one obligation plus its EC-Schnorr-DCRv0 signature,
// serialized for out-of-band transport between the parties.
type SignedFragment struct {
	Obligation AuthObligation `json:"obligation"`
	SigHex     string         `json:"sig"` // 64-byte schnorr signature, hex
}

// SignObligation signs o with priv. The private key must control the account
// the obligation names; signing for a different account would produce a
// fragment the network rejects, so it is refused here.
func SignObligation(priv *secp256k1.PrivateKey, o AuthObligation, networkPassphrase string) (*SignedFragment, error) {
	want := AccountIDFromPubKey(priv.PubKey())
	if want != o.Account {
		return nil, fmt.Errorf("obligation names account %s, key controls %s", o.Account, want)
	}
	digest, err := o.Digest(networkPassphrase)
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign obligation: %w", err)
	}
	return &SignedFragment{
		Obligation: o,
		SigHex:     hex.EncodeToString(sig.Serialize()),
	}, nil
}

// Verify checks the fragment's signature against its obligation digest and the
// account's public key.
func (f *SignedFragment) Verify(networkPassphrase string) error {
	pub, err := f.Obligation.Account.PubKey()
	if err != nil {
		return err
	}
	sb, err := hex.DecodeString(f.SigHex)
	if err != nil {
		return fmt.Errorf("bad signature hex: %w", err)
	}
	sig, err := schnorr.ParseSignature(sb)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	digest, err := f.Obligation.Digest(networkPassphrase)
	if err != nil {
		return err
	}
	if !sig.Verify(digest[:], pub) {
		return ErrBadSignature
	}
	return nil
}
