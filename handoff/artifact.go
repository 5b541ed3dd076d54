package handoff

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

// ErrMalformedFragment means a transport artifact could not be decoded back
// into a usable fragment: truncated text, wrong operation kind, or a
// credential whose account cannot be recovered.
var ErrMalformedFragment = errors.New("handoff: malformed transport artifact")

const artifactVersion = 1

// Artifact is the serialized form the initiator hands to the counterpart:
// the signed fragment plus the minimal tuple needed to rebuild the opening
// call. It travels as base64 text, so it survives manual copy/paste through
// chat clients and terminals.
type Artifact struct {
	Version        int                   `json:"v"`
	SessionID      uint32                `json:"session_id"`
	Initiator      ledger.AccountID      `json:"initiator"`
	InitiatorStake ledger.I128           `json:"initiator_stake"`
	Fragment       ledger.SignedFragment `json:"fragment"`
}

// Encode serializes the artifact to copy/paste-safe text.
func (a *Artifact) Encode() (string, error) {
	a.Version = artifactVersion
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("handoff: encode artifact: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeArtifact recovers an artifact from its text form and validates it
// structurally. Recovery must be exact: anything short of a well-formed
// start_game fragment signed by the embedded initiator is ErrMalformedFragment.
func DecodeArtifact(s string) (*Artifact, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedFragment, a.Version)
	}
	if a.Fragment.Obligation.Invocation.Function != "start_game" {
		return nil, fmt.Errorf("%w: unexpected operation %q",
			ErrMalformedFragment, a.Fragment.Obligation.Invocation.Function)
	}
	if a.Initiator != a.Fragment.Obligation.Account {
		return nil, fmt.Errorf("%w: embedded initiator does not match signed obligation",
			ErrMalformedFragment)
	}
	if _, err := a.Initiator.PubKey(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}
	return &a, nil
}
