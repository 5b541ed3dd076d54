// Package client is the party-facing coordinator the UI layer consumes. It
// wires the ledger client, the handoff coordinator, the finality poller, and
// the local record store behind one API: prepare and finalize sessions,
// submit level results, query sessions and the leaderboard, regenerate
// tracks.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/slog"

	cubeathon "github.com/NikhilRaikwar/Cubeathon"
	"github.com/NikhilRaikwar/Cubeathon/clientdb"
	"github.com/NikhilRaikwar/Cubeathon/finality"
	"github.com/NikhilRaikwar/Cubeathon/gamehub"
	"github.com/NikhilRaikwar/Cubeathon/handoff"
	"github.com/NikhilRaikwar/Cubeathon/ledger"
	"github.com/NikhilRaikwar/Cubeathon/track"
)

// ErrCommitmentMismatch means the caller's course commitment does not match
// the track regenerated from the session seed: the result was played on a
// different course and must not be submitted.
var ErrCommitmentMismatch = errors.New("client: course commitment does not match generated track")

// Client coordinates one party's side of the protocol.
type Client struct {
	cfg      *Config
	ldg      *ledger.Client
	contract *gamehub.Contract
	coord    *handoff.Coordinator
	poller   *finality.Poller
	db       clientdb.ClientDB
	log      slog.Logger
}

// New builds a Client from cfg. The caller owns the logger; pass nil to
// disable logging.
func New(cfg *Config, log slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Disabled
	}
	ldg, err := ledger.NewClient(ledger.ClientConfig{
		URL:            cfg.RPCURL,
		RequestsPerSec: cfg.RPCRequestsPerSec,
		Log:            log,
	})
	if err != nil {
		return nil, err
	}
	contract, err := gamehub.NewContract(cfg.ContractID)
	if err != nil {
		return nil, err
	}
	coord, err := handoff.New(handoff.Config{
		Ledger:            ldg,
		Contract:          contract,
		NetworkPassphrase: cfg.NetworkPassphrase,
		FragmentTTL:       cfg.FragmentTTL,
		SingleSigner:      cfg.SingleSigner,
		Log:               log,
	})
	if err != nil {
		return nil, err
	}
	poller, err := finality.New(finality.Config{
		Ledger:      ldg,
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollAttempts,
		Log:         log,
	})
	if err != nil {
		return nil, err
	}
	db, err := clientdb.NewBoltDB(filepath.Join(cfg.DataDir, "cubeathon.db"))
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:      cfg,
		ldg:      ldg,
		contract: contract,
		coord:    coord,
		poller:   poller,
		db:       db,
		log:      log,
	}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Prepare runs Phase A and records the exported fragment locally so the
// party can see what it is still waiting on.
func (c *Client) Prepare(ctx context.Context, priv *secp256k1.PrivateKey, sessionID uint32, counterpart ledger.AccountID, stake, counterStake ledger.I128) (string, error) {
	artifact, err := c.coord.Prepare(ctx, priv, sessionID, counterpart, stake, counterStake)
	if err != nil {
		return "", err
	}
	art, err := handoff.DecodeArtifact(artifact)
	if err != nil {
		return "", err
	}
	err = c.db.SaveFragment(ctx, &clientdb.FragmentRecord{
		SessionID:        sessionID,
		Role:             clientdb.RoleInitiator,
		Counterpart:      counterpart,
		Artifact:         artifact,
		ExpirationLedger: art.Fragment.Obligation.ExpirationLedger,
	})
	if err != nil {
		return "", fmt.Errorf("client: record fragment: %w", err)
	}
	return artifact, nil
}

// Finalize runs Phase B, waits for finality, and returns the session id with
// the observed outcome. The submission is recorded before polling so a
// timed-out observation can be resumed with Resume.
func (c *Client) Finalize(ctx context.Context, priv *secp256k1.PrivateKey, artifact string, stake ledger.I128) (uint32, *finality.Outcome, error) {
	res, err := c.coord.Finalize(ctx, priv, artifact, stake)
	if err != nil {
		return 0, nil, err
	}
	out, err := c.waitRecorded(ctx, res, "start_game")
	if err != nil {
		return res.SessionID, nil, err
	}
	if out.Status == finality.StatusSuccess {
		if err := c.db.DeleteFragment(ctx, res.SessionID); err != nil &&
			!errors.Is(err, clientdb.ErrFragmentNotFound) {
			c.log.Warnf("client: drop fragment for session %d: %v", res.SessionID, err)
		}
	}
	return res.SessionID, out, nil
}

// Start opens a session in single-signer mode, when configured.
func (c *Client) Start(ctx context.Context, priv1, priv2 *secp256k1.PrivateKey, sessionID uint32, stake1, stake2 ledger.I128) (*finality.Outcome, error) {
	res, err := c.coord.Start(ctx, priv1, priv2, sessionID, stake1, stake2)
	if err != nil {
		return nil, err
	}
	return c.waitRecorded(ctx, res, "start_game")
}

// SubmitResult submits one cleared level. The course commitment must match
// the track regenerated locally from the session seed, and the level must be
// the next sequential unlock for the player; both are checked before
// anything reaches the network. Returns true when the submission ended the
// session.
func (c *Client) SubmitResult(ctx context.Context, priv *secp256k1.PrivateKey, sessionID uint32, level uint32, timeMS uint64, proof []byte, courseCommitment [32]byte) (bool, *finality.Outcome, error) {
	player := ledger.AccountIDFromPubKey(priv.PubKey())

	want, err := cubeathon.CourseCommitment(sessionID, int(level))
	if err != nil {
		return false, nil, err
	}
	if !bytes.Equal(want[:], courseCommitment[:]) {
		return false, nil, ErrCommitmentMismatch
	}

	session, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return false, nil, err
	}
	if session.Winner != nil {
		return false, nil, gamehub.ErrGameAlreadyEnded
	}
	progress, err := session.ProgressOf(player)
	if err != nil {
		return false, nil, err
	}
	if level != progress.NextLevel() {
		return false, nil, fmt.Errorf("%w: next is %d", gamehub.ErrLevelNotUnlocked, progress.NextLevel())
	}

	journal, err := cubeathon.JournalHash(sessionID, player, level, timeMS)
	if err != nil {
		return false, nil, err
	}
	res, err := c.coord.SubmitLevel(ctx, priv, sessionID, level, timeMS, proof, journal)
	if err != nil {
		return false, nil, err
	}
	out, err := c.waitRecorded(ctx, res, "submit_level")
	if err != nil {
		return false, nil, err
	}
	gameOver := false
	if out.Status == finality.StatusSuccess && out.Result != nil {
		if b, err := out.Result.AsBool(); err == nil {
			gameOver = b
		}
	}
	return gameOver, out, nil
}

// GetSession reads the session record through a read-only dry-run.
func (c *Client) GetSession(ctx context.Context, sessionID uint32) (*gamehub.Session, error) {
	sim, err := c.query(ctx, c.contract.GetGame(sessionID))
	if err != nil {
		return nil, err
	}
	return gamehub.DecodeSession(sessionID, sim.Result)
}

// GetLeaderboard reads the global leaderboard, fastest first.
func (c *Client) GetLeaderboard(ctx context.Context) ([]gamehub.LeaderboardEntry, error) {
	sim, err := c.query(ctx, c.contract.GetLeaderboard())
	if err != nil {
		return nil, err
	}
	return gamehub.DecodeLeaderboard(sim.Result)
}

// GenerateTrack regenerates the deterministic layout for (seed, level).
func (c *Client) GenerateTrack(seed uint32, level int) (*track.Layout, error) {
	return track.Generate(seed, level)
}

// SessionState reports where a session is in its life from this party's
// point of view: on-ledger state when the session exists, otherwise the
// local fragment bookkeeping decides between awaiting, aborted, and
// unstarted.
func (c *Client) SessionState(ctx context.Context, sessionID uint32) (gamehub.State, *gamehub.Session, error) {
	session, err := c.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		return session.State(), session, nil
	case !errors.Is(err, gamehub.ErrGameNotFound):
		return gamehub.StateUnstarted, nil, err
	}

	frag, err := c.db.FetchFragment(ctx, sessionID)
	if errors.Is(err, clientdb.ErrFragmentNotFound) {
		return gamehub.StateUnstarted, nil, nil
	}
	if err != nil {
		return gamehub.StateUnstarted, nil, err
	}
	latest, err := c.ldg.GetLatestLedger(ctx)
	if err != nil {
		return gamehub.StateUnstarted, nil, err
	}
	if latest >= frag.ExpirationLedger {
		return gamehub.StateAborted, nil, nil
	}
	return gamehub.StateAwaitingCounterparty, nil, nil
}

// Resume re-polls a previously recorded submission whose observation timed
// out. The transaction's fate may have settled while nobody was looking.
func (c *Client) Resume(ctx context.Context, hashStr string) (*finality.Outcome, error) {
	rec, err := c.db.FetchSubmission(ctx, hashStr)
	if err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(rec.Hash)
	if err != nil {
		return nil, fmt.Errorf("client: bad recorded hash: %w", err)
	}
	out, err := c.poller.Poll(ctx, *hash)
	if err != nil {
		return nil, err
	}
	c.recordOutcome(ctx, rec.Hash, out)
	return out, nil
}

// Submissions lists the locally recorded submissions for a session.
func (c *Client) Submissions(ctx context.Context, sessionID uint32) ([]*clientdb.SubmissionRecord, error) {
	return c.db.FetchSubmissionsBySession(ctx, sessionID)
}

// query runs a read-only invocation through the dry-run endpoint. Read-only
// calls commit nothing and demand no authorization, so the envelope carries
// no source account.
func (c *Client) query(ctx context.Context, inv *ledger.Invocation) (*ledger.SimResult, error) {
	sim, err := c.ldg.Simulate(ctx, &ledger.Envelope{Op: *inv})
	if err != nil {
		var se *ledger.SimError
		if errors.As(err, &se) {
			return nil, gamehub.MapDiag(se.Diag)
		}
		return nil, err
	}
	return sim, nil
}

func (c *Client) waitRecorded(ctx context.Context, res *handoff.Result, op string) (*finality.Outcome, error) {
	hashStr := res.Submit.Hash.String()
	err := c.db.SaveSubmission(ctx, &clientdb.SubmissionRecord{
		Hash:        hashStr,
		SessionID:   res.SessionID,
		Op:          op,
		Status:      string(res.Submit.Status),
		Diag:        res.Submit.Diag,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		c.log.Warnf("client: record submission %s: %v", hashStr, err)
	}
	out, err := c.poller.Wait(ctx, res.Submit)
	if err != nil {
		return nil, err
	}
	c.recordOutcome(ctx, hashStr, out)
	return out, nil
}

func (c *Client) recordOutcome(ctx context.Context, hashStr string, out *finality.Outcome) {
	if err := c.db.UpdateSubmissionStatus(ctx, hashStr, string(out.Status), out.Diag); err != nil {
		c.log.Warnf("client: update submission %s: %v", hashStr, err)
	}
}
