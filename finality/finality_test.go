package finality

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

// statusServer answers getTransaction with a scripted sequence of statuses,
// repeating the last one once the script runs out.
type statusServer struct {
	mu     sync.Mutex
	script []ledger.TxStatus
	calls  int
}

func (s *statusServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		idx := s.calls
		if idx >= len(s.script) {
			idx = len(s.script) - 1
		}
		status := s.script[idx]
		s.calls++
		s.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID,
			"result": map[string]interface{}{"status": status},
		})
	}
}

func (s *statusServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPoller(t *testing.T, srv *statusServer, attempts int) *Poller {
	t.Helper()
	hs := httptest.NewServer(srv.handler())
	t.Cleanup(hs.Close)
	ldg, err := ledger.NewClient(ledger.ClientConfig{URL: hs.URL, RequestsPerSec: 10000})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	p, err := New(Config{Ledger: ldg, Interval: time.Millisecond, MaxAttempts: attempts})
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	return p
}

func TestNotFoundThenSuccess(t *testing.T) {
	srv := &statusServer{script: []ledger.TxStatus{
		ledger.StatusNotFound, ledger.StatusNotFound, ledger.StatusNotFound,
		ledger.StatusSuccess,
	}}
	p := newTestPoller(t, srv, 10)

	out, err := p.Poll(context.Background(), chainhash.Hash{1})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if out.Status != StatusSuccess {
		t.Fatalf("want success after propagation delay, got %s", out.Status)
	}
	if out.Attempts != 4 {
		t.Fatalf("want 4 attempts, got %d", out.Attempts)
	}
}

func TestExhaustedBudgetIsTimedOutNotFailed(t *testing.T) {
	srv := &statusServer{script: []ledger.TxStatus{ledger.StatusNotFound}}
	p := newTestPoller(t, srv, 5)

	out, err := p.Poll(context.Background(), chainhash.Hash{1})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if out.Status != StatusTimedOut {
		t.Fatalf("want timed out, got %s", out.Status)
	}
	if out.Attempts != 5 {
		t.Fatalf("want full budget spent, got %d", out.Attempts)
	}
}

func TestFailedDuringPolling(t *testing.T) {
	srv := &statusServer{script: []ledger.TxStatus{
		ledger.StatusPending, ledger.StatusFailed,
	}}
	p := newTestPoller(t, srv, 10)

	out, err := p.Poll(context.Background(), chainhash.Hash{1})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if out.Status != StatusFailed {
		t.Fatalf("want failed, got %s", out.Status)
	}
}

func TestImmediateTerminalSkipsPolling(t *testing.T) {
	srv := &statusServer{script: []ledger.TxStatus{ledger.StatusSuccess}}
	p := newTestPoller(t, srv, 10)

	out, err := p.Wait(context.Background(), &ledger.SubmitResult{
		Hash:   chainhash.Hash{1},
		Status: ledger.StatusError,
		Diag:   "bad sequence",
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if out.Status != StatusFailed {
		t.Fatalf("want failed, got %s", out.Status)
	}
	if out.Diag != "bad sequence" {
		t.Fatalf("diagnostic dropped: %q", out.Diag)
	}
	if srv.callCount() != 0 {
		t.Fatalf("immediate terminal must not poll, saw %d calls", srv.callCount())
	}
}

func TestPendingSubmissionPolls(t *testing.T) {
	srv := &statusServer{script: []ledger.TxStatus{ledger.StatusSuccess}}
	p := newTestPoller(t, srv, 10)

	out, err := p.Wait(context.Background(), &ledger.SubmitResult{
		Hash:   chainhash.Hash{1},
		Status: ledger.StatusPending,
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if out.Status != StatusSuccess {
		t.Fatalf("want success, got %s", out.Status)
	}
	if srv.callCount() == 0 {
		t.Fatalf("pending submission should have polled")
	}
}

func TestPollCancellable(t *testing.T) {
	srv := &statusServer{script: []ledger.TxStatus{ledger.StatusPending}}
	p := newTestPoller(t, srv, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(ctx, chainhash.Hash{1})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("poll did not stop on cancellation")
	}
}
