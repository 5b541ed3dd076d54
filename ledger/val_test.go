package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestValJSONRoundTrip(t *testing.T) {
	vals := []Val{
		BoolVal(true),
		BoolVal(false),
		U32Val(0),
		U32Val(4294967295),
		U64Val(18446744073709551615),
		I128Val(I128FromInt64(-1)),
		I128Val(MaxI128),
		BytesVal([]byte{0xde, 0xad, 0xbe, 0xef}),
		AddressVal("02aa00000000000000000000000000000000000000000000000000000000000000"),
		VecVal(U32Val(7), BoolVal(true), VecVal(U64Val(12))),
	}
	for _, want := range vals {
		raw, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %s: %v", want.Kind, err)
		}
		var got Val
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", want.Kind, err)
		}
		var we, ge bytes.Buffer
		if err := want.encodeTo(&we); err != nil {
			t.Fatalf("encode want %s: %v", want.Kind, err)
		}
		if err := got.encodeTo(&ge); err != nil {
			t.Fatalf("encode got %s: %v", want.Kind, err)
		}
		if !bytes.Equal(we.Bytes(), ge.Bytes()) {
			t.Fatalf("%s changed across JSON round trip", want.Kind)
		}
	}
}

func TestValDecodeUnknownType(t *testing.T) {
	var v Val
	err := json.Unmarshal([]byte(`{"type":"symbol","bytes":"00"}`), &v)
	if err == nil {
		t.Fatal("decoded a value type this client does not understand")
	}
}

func TestValDecodeMissingPayload(t *testing.T) {
	for _, raw := range []string{
		`{"type":"bool"}`,
		`{"type":"u32"}`,
		`{"type":"u64"}`,
		`{"type":"i128","i128_hi":1}`,
		`{"type":"address"}`,
	} {
		var v Val
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			t.Fatalf("decoded %s without its payload", raw)
		}
	}
}

func TestValTypedDecodeMismatch(t *testing.T) {
	v := U32Val(7)
	if _, err := v.AsU64(); err == nil {
		t.Fatal("u32 decoded as u64")
	}
	var terr *ValTypeError
	_, err := v.AsAddress()
	if !errors.As(err, &terr) {
		t.Fatalf("want ValTypeError, got %v", err)
	}
	if terr.Want != KindAddress || terr.Got != KindU32 {
		t.Fatalf("wrong error detail: %v", terr)
	}
}

func TestI128Helpers(t *testing.T) {
	if !I128FromInt64(1).IsPositive() {
		t.Fatal("1 not positive")
	}
	if I128FromInt64(0).IsPositive() {
		t.Fatal("0 positive")
	}
	if I128FromInt64(-5).IsPositive() {
		t.Fatal("-5 positive")
	}
	if got := I128FromInt64(-5).String(); got != "-5" {
		t.Fatalf("String(-5) = %s", got)
	}
	if got := MaxI128.String(); got != "170141183460469231731687303715884105727" {
		t.Fatalf("String(max) = %s", got)
	}
}
