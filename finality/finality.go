// Package finality watches a submitted transaction until its fate is known.
// A submission is not an outcome: the network may still be propagating it,
// may apply it, reject it, or never see it. The poller turns that into one
// of three terminal answers, and is careful to keep "it failed" apart from
// "we stopped looking".
package finality

import (
	"context"
	"fmt"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/slog"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

// Status is the poller's terminal verdict.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	// StatusTimedOut means the attempt budget ran out with the transaction's
	// fate unknown. Unlike StatusFailed nothing negative was observed; the
	// transaction may still apply, and the caller can poll again later.
	StatusTimedOut Status = "timed out"
)

const (
	defaultInterval = 2 * time.Second
	defaultAttempts = 90
)

// Config configures a Poller.
type Config struct {
	Ledger *ledger.Client
	// Interval between status polls; 0 means 2s.
	Interval time.Duration
	// MaxAttempts bounds the number of polls before giving up; 0 means 90.
	MaxAttempts int
	Log         slog.Logger
}

// Poller polls submitted transactions to a terminal state.
type Poller struct {
	ldg      *ledger.Client
	interval time.Duration
	attempts int
	log      slog.Logger
}

func New(cfg Config) (*Poller, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("finality: ledger client is required")
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Poller{ldg: cfg.Ledger, interval: interval, attempts: attempts, log: log}, nil
}

// Outcome is the poller's report on one transaction.
type Outcome struct {
	Hash     chainhash.Hash
	Status   Status
	Result   *ledger.Val
	Diag     string
	Attempts int
}

// Wait observes sub until a terminal state. If the submission itself already
// reported a terminal rejection, that is surfaced immediately without a
// single poll. Cancelling ctx stops observation only; the transaction stays
// submitted either way.
func (p *Poller) Wait(ctx context.Context, sub *ledger.SubmitResult) (*Outcome, error) {
	switch sub.Status {
	case ledger.StatusError, ledger.StatusFailed:
		p.log.Debugf("finality: %s rejected at submission: %s", sub.Hash, sub.Diag)
		return &Outcome{Hash: sub.Hash, Status: StatusFailed, Diag: sub.Diag}, nil
	case ledger.StatusSuccess:
		return &Outcome{Hash: sub.Hash, Status: StatusSuccess}, nil
	}
	return p.Poll(ctx, sub.Hash)
}

// Poll watches an already submitted transaction by hash. Usable directly to
// resume observation of a submission that previously timed out.
func (p *Poller) Poll(ctx context.Context, hash chainhash.Hash) (*Outcome, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	notFound := 0
	for attempt := 1; attempt <= p.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		res, err := p.ldg.GetTransaction(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient RPC trouble burns an attempt but is not a verdict.
			p.log.Warnf("finality: poll %d for %s: %v", attempt, hash, err)
			continue
		}
		switch res.Status {
		case ledger.StatusSuccess:
			p.log.Infof("finality: %s succeeded after %d polls", hash, attempt)
			return &Outcome{Hash: hash, Status: StatusSuccess, Result: res.Result, Attempts: attempt}, nil
		case ledger.StatusFailed, ledger.StatusError:
			p.log.Infof("finality: %s failed after %d polls: %s", hash, attempt, res.Diag)
			return &Outcome{Hash: hash, Status: StatusFailed, Result: res.Result, Diag: res.Diag, Attempts: attempt}, nil
		case ledger.StatusNotFound:
			// Normal shortly after submission; the transaction has not
			// propagated to the node yet.
			notFound++
			p.log.Tracef("finality: %s not found (%d)", hash, notFound)
		default:
			p.log.Tracef("finality: %s pending (poll %d)", hash, attempt)
		}
	}
	p.log.Warnf("finality: gave up on %s after %d polls", hash, p.attempts)
	return &Outcome{Hash: hash, Status: StatusTimedOut, Attempts: p.attempts}, nil
}
