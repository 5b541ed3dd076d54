// Package handoff drives the two-phase authorization flow: the initiator
// signs its obligation out-of-band (Prepare), hands the fragment to the
// counterpart as a text artifact, and the counterpart merges it with its own
// signature, reconciles against a fresh dry-run, and submits (Finalize).
// Neither party ever holds the other's key and the two are never required to
// be online at the same time.
package handoff

import (
	"context"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"

	"github.com/NikhilRaikwar/Cubeathon/gamehub"
	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

var (
	// ErrNoObligationFound means the initiator's dry-run produced no
	// obligation naming the initiator's account. Wrong contract address or
	// an unreachable hub, not a transient condition.
	ErrNoObligationFound = errors.New("handoff: dry-run produced no obligation for initiator")

	// ErrExpired means the network's ledger sequence has passed the
	// fragment's expiration horizon. The counterpart must ask the initiator
	// to restart Phase A; retrying Phase B cannot succeed.
	ErrExpired = errors.New("handoff: signed fragment expired")

	// ErrSingleSignerDisabled is returned by Start when the coordinator was
	// not explicitly configured to let one keyring sign for both players.
	ErrSingleSignerDisabled = errors.New("handoff: single-signer mode not enabled")
)

// DefaultFragmentTTL is the default expiration horizon in ledger-sequence
// units. Ledgers close every few seconds, so this is tens of minutes: enough
// to survive a manual copy/paste handoff between the parties.
const DefaultFragmentTTL = 360

// Config configures a Coordinator.
type Config struct {
	Ledger            *ledger.Client
	Contract          *gamehub.Contract
	NetworkPassphrase string

	// FragmentTTL is the expiration horizon in ledgers; 0 means
	// DefaultFragmentTTL.
	FragmentTTL uint32

	// SingleSigner permits Start: one keyring holding both players' keys
	// signs both obligations and submits in a single step, with no genuine
	// dual authorization. Off by default.
	SingleSigner bool

	Log slog.Logger
}

// Coordinator runs both phases of the handoff against one contract instance.
type Coordinator struct {
	ldg        *ledger.Client
	contract   *gamehub.Contract
	passphrase string
	ttl        uint32
	single     bool
	log        slog.Logger
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("handoff: ledger client is required")
	}
	if cfg.Contract == nil {
		return nil, fmt.Errorf("handoff: contract binding is required")
	}
	if cfg.NetworkPassphrase == "" {
		return nil, fmt.Errorf("handoff: network passphrase is required")
	}
	ttl := cfg.FragmentTTL
	if ttl == 0 {
		ttl = DefaultFragmentTTL
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Coordinator{
		ldg:        cfg.Ledger,
		contract:   cfg.Contract,
		passphrase: cfg.NetworkPassphrase,
		ttl:        ttl,
		single:     cfg.SingleSigner,
		log:        log,
	}, nil
}

// Prepare is Phase A. The initiator proposes a session, dry-runs the opening
// call with the counterpart as the stand-in execution source (the initiator
// is not the final submitter), signs the obligation naming its own account,
// and returns the transport artifact to hand to the counterpart.
func (c *Coordinator) Prepare(ctx context.Context, priv *secp256k1.PrivateKey, sessionID uint32, counterpart ledger.AccountID, stake, counterStake ledger.I128) (string, error) {
	initiator := ledger.AccountIDFromPubKey(priv.PubKey())
	inv, err := c.contract.StartGame(sessionID, initiator, counterpart, stake, counterStake)
	if err != nil {
		return "", err
	}

	latest, err := c.ldg.GetLatestLedger(ctx)
	if err != nil {
		return "", fmt.Errorf("handoff: read latest ledger: %w", err)
	}

	candidate := &ledger.Envelope{Source: counterpart, Op: *inv}
	sim, err := c.ldg.Simulate(ctx, candidate)
	if err != nil {
		return "", c.mapSimError(err)
	}

	obl, ok := findObligation(sim.Obligations, initiator)
	if !ok {
		return "", ErrNoObligationFound
	}
	obl.ExpirationLedger = latest + c.ttl

	frag, err := ledger.SignObligation(priv, obl, c.passphrase)
	if err != nil {
		return "", fmt.Errorf("handoff: sign initiator obligation: %w", err)
	}

	c.log.Infof("handoff: prepared session %d, fragment expires at ledger %d",
		sessionID, obl.ExpirationLedger)
	art := &Artifact{
		SessionID:      sessionID,
		Initiator:      initiator,
		InitiatorStake: stake,
		Fragment:       *frag,
	}
	return art.Encode()
}

// Result is the outcome of a successful submission step. The caller hands
// Submit.Hash to the finality poller; nothing here is final yet.
type Result struct {
	SessionID uint32
	Envelope  *ledger.Envelope
	Submit    *ledger.SubmitResult
}

// Finalize is Phase B. The counterpart decodes the artifact, rebuilds the
// same opening call with its own stake, verifies the imported fragment still
// matches it byte-for-byte, collects its own signature, reconciles against a
// fresh dry-run, and submits.
func (c *Coordinator) Finalize(ctx context.Context, priv *secp256k1.PrivateKey, artifact string, counterStake ledger.I128) (*Result, error) {
	art, err := DecodeArtifact(artifact)
	if err != nil {
		return nil, err
	}

	latest, err := c.ldg.GetLatestLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff: read latest ledger: %w", err)
	}
	if latest >= art.Fragment.Obligation.ExpirationLedger {
		return nil, fmt.Errorf("%w: horizon %d, network at %d",
			ErrExpired, art.Fragment.Obligation.ExpirationLedger, latest)
	}

	counterpart := ledger.AccountIDFromPubKey(priv.PubKey())
	inv, err := c.contract.StartGame(art.SessionID, art.Initiator, counterpart, art.InitiatorStake, counterStake)
	if err != nil {
		return nil, err
	}
	// The imported signature covers the call the initiator saw. If the call
	// rebuilt here differs in any field (wrong stake, wrong contract), abort
	// now rather than burning a dry-run on it.
	same, err := art.Fragment.Obligation.Invocation.EqualEncoding(inv)
	if err != nil {
		return nil, err
	}
	if !same {
		return nil, fmt.Errorf("%w: imported fragment covers a different opening call",
			ledger.ErrObligationMismatch)
	}

	res, err := c.assembleAndSubmit(ctx, inv, counterpart,
		[]*ledger.SignedFragment{&art.Fragment},
		[]ledger.Signer{ledger.NewKeySigner(priv, c.passphrase)})
	if err != nil {
		return nil, err
	}
	res.SessionID = art.SessionID
	c.log.Infof("handoff: finalized session %d, tx %s status %s",
		art.SessionID, res.Submit.Hash, res.Submit.Status)
	return res, nil
}

// Start opens a session with a single keyring signing for both players. Only
// available when the coordinator was configured with SingleSigner; the
// default mode insists on a genuine two-party handoff.
func (c *Coordinator) Start(ctx context.Context, priv1, priv2 *secp256k1.PrivateKey, sessionID uint32, stake1, stake2 ledger.I128) (*Result, error) {
	if !c.single {
		return nil, ErrSingleSignerDisabled
	}
	player1 := ledger.AccountIDFromPubKey(priv1.PubKey())
	player2 := ledger.AccountIDFromPubKey(priv2.PubKey())
	inv, err := c.contract.StartGame(sessionID, player1, player2, stake1, stake2)
	if err != nil {
		return nil, err
	}
	res, err := c.assembleAndSubmit(ctx, inv, player2, nil, []ledger.Signer{
		ledger.NewKeySigner(priv1, c.passphrase),
		ledger.NewKeySigner(priv2, c.passphrase),
	})
	if err != nil {
		return nil, err
	}
	res.SessionID = sessionID
	return res, nil
}

// SubmitLevel builds, signs, and submits one level result for the local
// player. Level results need only the submitting player's authorization, so
// there is no handoff: one dry-run, one signature, submit.
func (c *Coordinator) SubmitLevel(ctx context.Context, priv *secp256k1.PrivateKey, sessionID uint32, level uint32, timeMS uint64, proof []byte, journalHash [32]byte) (*Result, error) {
	player := ledger.AccountIDFromPubKey(priv.PubKey())
	inv, err := c.contract.SubmitLevel(sessionID, player, level, timeMS, proof, journalHash)
	if err != nil {
		return nil, err
	}
	res, err := c.assembleAndSubmit(ctx, inv, player, nil,
		[]ledger.Signer{ledger.NewKeySigner(priv, c.passphrase)})
	if err != nil {
		return nil, err
	}
	res.SessionID = sessionID
	return res, nil
}

// assembleAndSubmit is the shared lower half of every submission path:
// fresh sequence read, dry-run, obligation merge, a second dry-run for the
// final footprint, the pre-submit auth check, then submission.
func (c *Coordinator) assembleAndSubmit(ctx context.Context, inv *ledger.Invocation, submitter ledger.AccountID, presigned []*ledger.SignedFragment, signers []ledger.Signer) (*Result, error) {
	acct, err := c.ldg.GetAccount(ctx, submitter)
	if err != nil {
		return nil, fmt.Errorf("handoff: read submitter account: %w", err)
	}
	env := &ledger.Envelope{
		Source:   submitter,
		Sequence: acct.Sequence + 1,
		Op:       *inv,
	}
	sim, err := c.ldg.Simulate(ctx, env)
	if err != nil {
		return nil, c.mapSimError(err)
	}

	// Freshly signed obligations get a local expiration horizon; obligations
	// satisfied by an imported fragment keep the horizon the initiator chose.
	obligations := make([]ledger.AuthObligation, len(sim.Obligations))
	copy(obligations, sim.Obligations)
	for i := range obligations {
		if obligations[i].ExpirationLedger == 0 {
			obligations[i].ExpirationLedger = sim.LatestLedger + c.ttl
		}
	}
	auth, err := ledger.AttachAuth(obligations, presigned, signers)
	if err != nil {
		return nil, err
	}
	env.Auth = auth

	// Sequence numbers are single-use; re-read immediately before the final
	// build. The submitted footprint must be the LAST dry-run's: attaching
	// auth entries can change what state the transaction touches.
	acct, err = c.ldg.GetAccount(ctx, submitter)
	if err != nil {
		return nil, fmt.Errorf("handoff: re-read submitter account: %w", err)
	}
	env.Sequence = acct.Sequence + 1
	final, err := c.ldg.Simulate(ctx, env)
	if err != nil {
		return nil, c.mapSimError(err)
	}
	env.Footprint = final.Footprint
	env.Fee = final.MinFee

	for _, f := range presigned {
		if final.LatestLedger >= f.Obligation.ExpirationLedger {
			return nil, fmt.Errorf("%w: horizon %d, network at %d",
				ErrExpired, f.Obligation.ExpirationLedger, final.LatestLedger)
		}
	}
	if err := env.VerifyAuth(c.passphrase); err != nil {
		return nil, err
	}

	sub, err := c.ldg.Submit(ctx, env, c.passphrase)
	if err != nil {
		return nil, fmt.Errorf("handoff: submit: %w", err)
	}
	return &Result{Envelope: env, Submit: sub}, nil
}

// mapSimError classifies a dry-run failure: contract-level rejections become
// the gamehub sentinel errors, everything else passes through for the caller
// to retry.
func (c *Coordinator) mapSimError(err error) error {
	var se *ledger.SimError
	if errors.As(err, &se) {
		return gamehub.MapDiag(se.Diag)
	}
	return err
}

// findObligation searches by bound account identity. Obligation order is
// encoding-defined and never a stable key.
func findObligation(obls []ledger.AuthObligation, acct ledger.AccountID) (ledger.AuthObligation, bool) {
	for _, o := range obls {
		if o.Account == acct {
			return o, true
		}
	}
	return ledger.AuthObligation{}, false
}
