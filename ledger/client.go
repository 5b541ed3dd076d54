package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/slog"
	"golang.org/x/time/rate"
)

// TxStatus is the network-reported state of a submitted transaction.
type TxStatus string

const (
	StatusPending  TxStatus = "PENDING"
	StatusNotFound TxStatus = "NOT_FOUND"
	StatusSuccess  TxStatus = "SUCCESS"
	StatusFailed   TxStatus = "FAILED"
	// StatusError is an immediate rejection at submission (malformed, bad
	// sequence number). Nothing reached the ledger.
	StatusError TxStatus = "ERROR"
)

// Account is the subset of on-ledger account state the client needs. Sequence
// numbers are single-use; always re-read immediately before a final build.
type Account struct {
	ID       AccountID `json:"id"`
	Sequence uint64    `json:"sequence"`
}

// SimResult is a dry-run's output: the obligations the transaction demands,
// the state footprint it will touch, and the would-be return value.
type SimResult struct {
	Obligations  []AuthObligation `json:"obligations"`
	Footprint    Footprint        `json:"footprint"`
	MinFee       uint64           `json:"min_fee"`
	Result       *Val             `json:"result,omitempty"`
	LatestLedger uint32           `json:"latest_ledger"`
	Error        string           `json:"error,omitempty"`
}

// SubmitResult is the immediate response to sendTransaction.
type SubmitResult struct {
	Hash   chainhash.Hash
	Status TxStatus
	Diag   string
}

// TxResult is one getTransaction poll observation.
type TxResult struct {
	Status TxStatus `json:"status"`
	Result *Val     `json:"result,omitempty"`
	Diag   string   `json:"diag,omitempty"`
}

// RPCError is an error object returned by the ledger RPC endpoint itself.
// These are retryable by the caller when transient (timeouts, overloaded
// node); the client never retries silently.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
}

// SimError is a contract-level dry-run rejection, surfaced verbatim with the
// network's diagnostic payload. Resubmitting the same call will fail the same
// way; this is not a transient condition.
type SimError struct {
	Diag string
}

func (e *SimError) Error() string {
	return fmt.Sprintf("ledger simulation failed: %s", e.Diag)
}

// ClientConfig configures a ledger RPC client.
type ClientConfig struct {
	// URL of the JSON-RPC endpoint, e.g. https://rpc.testnet.example:443.
	URL string
	// RequestsPerSec bounds outbound request rate; 0 means a default of 10.
	RequestsPerSec float64
	// Timeout per HTTP request; 0 means 30s.
	Timeout time.Duration
	Log     slog.Logger
}

// Client talks JSON-RPC 2.0 to a ledger node. All methods respect ctx and
// go through a shared rate limiter so polling loops cannot hammer the node.
type Client struct {
	url     string
	hc      *http.Client
	limiter *rate.Limiter
	log     slog.Logger
	reqID   atomic.Uint64
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ledger client requires an RPC URL")
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Client{
		url:     cfg.URL,
		hc:      &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log,
	}, nil
}

type rpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Tracef("rpc: -> %s", method)
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, string(b))
	}
	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetAccount fetches the current account record, including the sequence number
// required to build a transaction from it.
func (c *Client) GetAccount(ctx context.Context, id AccountID) (*Account, error) {
	var acct Account
	err := c.call(ctx, "getAccount", map[string]string{"account": string(id)}, &acct)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetLatestLedger returns the network's current ledger sequence.
func (c *Client) GetLatestLedger(ctx context.Context) (uint32, error) {
	var res struct {
		Sequence uint32 `json:"sequence"`
	}
	if err := c.call(ctx, "getLatestLedger", nil, &res); err != nil {
		return 0, err
	}
	return res.Sequence, nil
}

// Simulate dry-runs the envelope against current ledger state without
// committing anything, returning the obligation set and footprint. A
// contract-level rejection comes back as *SimError.
func (c *Client) Simulate(ctx context.Context, env *Envelope) (*SimResult, error) {
	var res SimResult
	if err := c.call(ctx, "simulateTransaction", map[string]interface{}{"transaction": env}, &res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, &SimError{Diag: res.Error}
	}
	c.log.Debugf("rpc: simulate ok; obligations=%d fee=%d ledger=%d",
		len(res.Obligations), res.MinFee, res.LatestLedger)
	return &res, nil
}

// Submit sends a fully signed envelope. An immediately known-terminal error is
// reported via Status/Diag without any polling; StatusPending means the
// transaction was accepted into the network's queue.
func (c *Client) Submit(ctx context.Context, env *Envelope, networkPassphrase string) (*SubmitResult, error) {
	hash, err := env.Hash(networkPassphrase)
	if err != nil {
		return nil, err
	}
	var res struct {
		Status TxStatus `json:"status"`
		Diag   string   `json:"diag,omitempty"`
	}
	if err := c.call(ctx, "sendTransaction", map[string]interface{}{"transaction": env}, &res); err != nil {
		return nil, err
	}
	c.log.Debugf("rpc: submitted %s status=%s", hash, res.Status)
	return &SubmitResult{Hash: hash, Status: res.Status, Diag: res.Diag}, nil
}

// GetTransaction polls the status of a previously submitted transaction.
// StatusNotFound is normal shortly after submission (propagation delay) and
// must not be treated as failure.
func (c *Client) GetTransaction(ctx context.Context, hash chainhash.Hash) (*TxResult, error) {
	var res TxResult
	err := c.call(ctx, "getTransaction", map[string]string{"hash": hash.String()}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
