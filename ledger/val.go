package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ValKind tags the closed set of ledger value variants this client understands.
// Anything else coming back from the network is a decode error, never a
// best-effort guess.
type ValKind uint8

const (
	KindBool ValKind = iota + 1
	KindU32
	KindU64
	KindI128
	KindBytes
	KindAddress
	KindVec
)

func (k ValKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindI128:
		return "i128"
	case KindBytes:
		return "bytes"
	case KindAddress:
		return "address"
	case KindVec:
		return "vec"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// I128 is a 128-bit signed integer, the ledger's native token amount type.
type I128 struct {
	Hi int64  `json:"hi"`
	Lo uint64 `json:"lo"`
}

func I128FromInt64(v int64) I128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return I128{Hi: hi, Lo: uint64(v)}
}

// MaxI128 is the largest representable 128-bit signed value.
var MaxI128 = I128{Hi: 0x7fffffffffffffff, Lo: 0xffffffffffffffff}

// IsPositive reports whether the value is strictly greater than zero.
func (v I128) IsPositive() bool {
	return v.Hi > 0 || (v.Hi == 0 && v.Lo > 0)
}

func (v I128) BigInt() *big.Int {
	n := new(big.Int).SetInt64(v.Hi)
	n.Lsh(n, 64)
	return n.Add(n, new(big.Int).SetUint64(v.Lo))
}

func (v I128) String() string { return v.BigInt().String() }

// AccountID identifies a party on the ledger: the lowercase hex encoding of a
// 33-byte compressed secp256k1 public key.
type AccountID string

// PubKey decodes and validates the account's public key.
func (a AccountID) PubKey() (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(string(a))
	if err != nil {
		return nil, fmt.Errorf("bad account id hex: %w", err)
	}
	if len(b) != 33 {
		return nil, fmt.Errorf("account id must be 33 bytes, got %d", len(b))
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("bad account pubkey: %w", err)
	}
	return pub, nil
}

// AccountIDFromPubKey returns the canonical AccountID for pub.
func AccountIDFromPubKey(pub *secp256k1.PublicKey) AccountID {
	return AccountID(hex.EncodeToString(pub.SerializeCompressed()))
}

// Val is one tagged ledger value. Exactly the fields for its Kind are set.
type Val struct {
	Kind    ValKind
	Bool    bool
	U32     uint32
	U64     uint64
	I128    I128
	Bytes   []byte
	Address AccountID
	Vec     []Val
}

func BoolVal(v bool) Val         { return Val{Kind: KindBool, Bool: v} }
func U32Val(v uint32) Val        { return Val{Kind: KindU32, U32: v} }
func U64Val(v uint64) Val        { return Val{Kind: KindU64, U64: v} }
func I128Val(v I128) Val         { return Val{Kind: KindI128, I128: v} }
func BytesVal(b []byte) Val      { return Val{Kind: KindBytes, Bytes: b} }
func AddressVal(a AccountID) Val { return Val{Kind: KindAddress, Address: a} }
func VecVal(vs ...Val) Val       { return Val{Kind: KindVec, Vec: vs} }

// ValTypeError reports a decode against the wrong variant.
type ValTypeError struct {
	Want ValKind
	Got  ValKind
}

func (e *ValTypeError) Error() string {
	return fmt.Sprintf("ledger: value is %s, want %s", e.Got, e.Want)
}

func (v Val) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, &ValTypeError{Want: KindBool, Got: v.Kind}
	}
	return v.Bool, nil
}

func (v Val) AsU32() (uint32, error) {
	if v.Kind != KindU32 {
		return 0, &ValTypeError{Want: KindU32, Got: v.Kind}
	}
	return v.U32, nil
}

func (v Val) AsU64() (uint64, error) {
	if v.Kind != KindU64 {
		return 0, &ValTypeError{Want: KindU64, Got: v.Kind}
	}
	return v.U64, nil
}

func (v Val) AsI128() (I128, error) {
	if v.Kind != KindI128 {
		return I128{}, &ValTypeError{Want: KindI128, Got: v.Kind}
	}
	return v.I128, nil
}

func (v Val) AsBytes() ([]byte, error) {
	if v.Kind != KindBytes {
		return nil, &ValTypeError{Want: KindBytes, Got: v.Kind}
	}
	return v.Bytes, nil
}

func (v Val) AsAddress() (AccountID, error) {
	if v.Kind != KindAddress {
		return "", &ValTypeError{Want: KindAddress, Got: v.Kind}
	}
	return v.Address, nil
}

func (v Val) AsVec() ([]Val, error) {
	if v.Kind != KindVec {
		return nil, &ValTypeError{Want: KindVec, Got: v.Kind}
	}
	return v.Vec, nil
}

// encodeTo writes the canonical binary form: a tag byte followed by fixed-width
// big-endian payloads. This encoding is what obligation signatures commit to,
// so the same logical value must always encode byte-identically.
func (v Val) encodeTo(buf *bytes.Buffer) error {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case KindBool:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindU32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v.U32)
		buf.Write(b[:])
	case KindU64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.U64)
		buf.Write(b[:])
	case KindI128:
		var b [16]byte
		binary.BigEndian.PutUint64(b[:8], uint64(v.I128.Hi))
		binary.BigEndian.PutUint64(b[8:], v.I128.Lo)
		buf.Write(b[:])
	case KindBytes:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(v.Bytes)))
		buf.Write(b[:])
		buf.Write(v.Bytes)
	case KindAddress:
		raw, err := hex.DecodeString(string(v.Address))
		if err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(raw)))
		buf.Write(b[:])
		buf.Write(raw)
	case KindVec:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(v.Vec)))
		buf.Write(b[:])
		for _, e := range v.Vec {
			if err := e.encodeTo(buf); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("encode: unknown value kind %d", v.Kind)
	}
	return nil
}

// jsonVal is the wire shape used over JSON-RPC.
type jsonVal struct {
	Type    string            `json:"type"`
	Bool    *bool             `json:"bool,omitempty"`
	U32     *uint32           `json:"u32,omitempty"`
	U64     *uint64           `json:"u64,omitempty"`
	I128Hi  *int64            `json:"i128_hi,omitempty"`
	I128Lo  *uint64           `json:"i128_lo,omitempty"`
	Bytes   string            `json:"bytes,omitempty"`
	Address string            `json:"address,omitempty"`
	Vec     []json.RawMessage `json:"vec,omitempty"`
}

func (v Val) MarshalJSON() ([]byte, error) {
	jv := jsonVal{Type: v.Kind.String()}
	switch v.Kind {
	case KindBool:
		jv.Bool = &v.Bool
	case KindU32:
		jv.U32 = &v.U32
	case KindU64:
		jv.U64 = &v.U64
	case KindI128:
		hi, lo := v.I128.Hi, v.I128.Lo
		jv.I128Hi, jv.I128Lo = &hi, &lo
	case KindBytes:
		jv.Bytes = hex.EncodeToString(v.Bytes)
	case KindAddress:
		jv.Address = string(v.Address)
	case KindVec:
		jv.Vec = make([]json.RawMessage, 0, len(v.Vec))
		for _, e := range v.Vec {
			raw, err := json.Marshal(e)
			if err != nil {
				return nil, err
			}
			jv.Vec = append(jv.Vec, raw)
		}
	default:
		return nil, fmt.Errorf("marshal: unknown value kind %d", v.Kind)
	}
	return json.Marshal(jv)
}

func (v *Val) UnmarshalJSON(data []byte) error {
	var jv jsonVal
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch jv.Type {
	case "bool":
		if jv.Bool == nil {
			return fmt.Errorf("decode bool value: missing field")
		}
		*v = BoolVal(*jv.Bool)
	case "u32":
		if jv.U32 == nil {
			return fmt.Errorf("decode u32 value: missing field")
		}
		*v = U32Val(*jv.U32)
	case "u64":
		if jv.U64 == nil {
			return fmt.Errorf("decode u64 value: missing field")
		}
		*v = U64Val(*jv.U64)
	case "i128":
		if jv.I128Hi == nil || jv.I128Lo == nil {
			return fmt.Errorf("decode i128 value: missing fields")
		}
		*v = I128Val(I128{Hi: *jv.I128Hi, Lo: *jv.I128Lo})
	case "bytes":
		b, err := hex.DecodeString(jv.Bytes)
		if err != nil {
			return fmt.Errorf("decode bytes value: %w", err)
		}
		*v = BytesVal(b)
	case "address":
		if jv.Address == "" {
			return fmt.Errorf("decode address value: missing field")
		}
		*v = AddressVal(AccountID(jv.Address))
	case "vec":
		vec := make([]Val, len(jv.Vec))
		for i, raw := range jv.Vec {
			if err := json.Unmarshal(raw, &vec[i]); err != nil {
				return err
			}
		}
		*v = Val{Kind: KindVec, Vec: vec}
	default:
		return fmt.Errorf("decode: unknown value type %q", jv.Type)
	}
	return nil
}
