package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/infra/esplora"
	"github.com/vietddude/bridgewatch/internal/infra/rpc"
)

// fakeOperator is a scriptable operator JSON-RPC endpoint.
type fakeOperator struct {
	mu          sync.Mutex
	down        bool
	deposits    map[string]depositInfoResponse
	withdrawals map[string]withdrawalInfoResponse
	claims      map[string]claimInfoResponse
	srv         *httptest.Server
}

func newFakeOperator() *fakeOperator {
	f := &fakeOperator{
		deposits:    map[string]depositInfoResponse{},
		withdrawals: map[string]withdrawalInfoResponse{},
		claims:      map[string]claimInfoResponse{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeOperator) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeOperator) setDeposit(txid string, resp depositInfoResponse) {
	f.mu.Lock()
	f.deposits[txid] = resp
	f.mu.Unlock()
}

func (f *fakeOperator) setClaim(txid string, resp claimInfoResponse) {
	f.mu.Lock()
	f.claims[txid] = resp
	f.mu.Unlock()
}

func (f *fakeOperator) setWithdrawal(txid string, resp withdrawalInfoResponse) {
	f.mu.Lock()
	f.withdrawals[txid] = resp
	f.mu.Unlock()
}

func (f *fakeOperator) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}

	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	param := func() string {
		var s string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &s)
		}
		return s
	}

	var result any
	switch req.Method {
	case methodUptime:
		result = uptimeResponse{Online: true}
	case methodDepositRequests:
		result = mapKeys(f.deposits)
	case methodDepositInfo:
		result = f.deposits[param()]
	case methodWithdrawals:
		result = mapKeys(f.withdrawals)
	case methodWithdrawalInfo:
		result = f.withdrawals[param()]
	case methodClaims:
		result = mapKeys(f.claims)
	case methodClaimInfo:
		result = f.claims[param()]
	default:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
		return
	}

	payload, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, payload)
}

func mapKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// fakeEsplora serves chain tip and per-tx status.
type fakeEsplora struct {
	mu      sync.Mutex
	down    bool
	tip     uint64
	heights map[string]uint64
	srv     *httptest.Server
}

func newFakeEsplora(tip uint64) *fakeEsplora {
	f := &fakeEsplora{tip: tip, heights: map[string]uint64{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeEsplora) setTip(tip uint64) {
	f.mu.Lock()
	f.tip = tip
	f.mu.Unlock()
}

func (f *fakeEsplora) confirm(txid string, height uint64) {
	f.mu.Lock()
	f.heights[txid] = height
	f.mu.Unlock()
}

func (f *fakeEsplora) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}

	if r.URL.Path == "/blocks/tip/height" {
		fmt.Fprintf(w, "%d", f.tip)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/tx/") && strings.HasSuffix(r.URL.Path, "/status") {
		txid := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tx/"), "/status")
		if height, ok := f.heights[txid]; ok {
			fmt.Fprintf(w, `{"confirmed":true,"block_height":%d}`, height)
		} else {
			fmt.Fprint(w, `{"confirmed":false,"block_height":null}`)
		}
		return
	}
	http.NotFound(w, r)
}

func newTestMonitor(oracle *fakeEsplora, operators ...*fakeOperator) *Monitor {
	endpoints := make([]rpc.Endpoint, 0, len(operators))
	for i, op := range operators {
		endpoints = append(endpoints, rpc.Endpoint{
			Key: fmt.Sprintf("op%d", i),
			URL: op.srv.URL,
		})
	}
	manager := rpc.NewManager(endpoints, time.Second, rpc.RetryConfig{
		MaxRetries:      1,
		InitialDelay:    time.Millisecond,
		BackoffMultiple: 1.5,
		MaxElapsed:      time.Second,
	})
	return New(
		Config{MaxTxConfirmations: 6, RefetchInterval: time.Hour},
		manager,
		esplora.NewClient(oracle.srv.URL, time.Second),
	)
}

func TestMonitor_DepositLifecycle(t *testing.T) {
	op := newFakeOperator()
	defer op.srv.Close()
	oracle := newFakeEsplora(100)
	defer oracle.srv.Close()

	op.setDeposit("d1", depositInfoResponse{Status: string(domain.DepositInProgress)})

	m := newTestMonitor(oracle, op)
	ctx := context.Background()

	if m.Ready() {
		t.Fatal("monitor ready before any cycle")
	}

	m.runCycle(ctx)

	if !m.Ready() {
		t.Fatal("monitor not ready after first cycle")
	}
	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Deposits) != 1 || snap.Deposits[0].Status != domain.DepositInProgress {
		t.Fatalf("unexpected deposits after first cycle: %+v", snap.Deposits)
	}

	// Deposit completes; its settlement tx is 2 blocks deep, under the
	// confirmation threshold, so it stays visible.
	op.setDeposit("d1", depositInfoResponse{
		Status:      string(domain.DepositComplete),
		DepositTxid: "settle1",
	})
	oracle.confirm("settle1", 99)
	m.runCycle(ctx)

	snap, _ = m.Snapshot(ctx)
	if len(snap.Deposits) != 1 {
		t.Fatalf("completed deposit under threshold was dropped: %+v", snap.Deposits)
	}
	if snap.Deposits[0].Status != domain.DepositComplete || snap.Deposits[0].DepositTxid != "settle1" {
		t.Errorf("unexpected deposit: %+v", snap.Deposits[0])
	}

	// Chain advances past the threshold: 105 - 99 + 1 = 7 >= 6. The entry
	// is purged and the fresh listing re-admission is declined too.
	oracle.setTip(105)
	m.runCycle(ctx)

	snap, _ = m.Snapshot(ctx)
	if len(snap.Deposits) != 0 {
		t.Fatalf("finalized deposit not purged: %+v", snap.Deposits)
	}
}

func TestMonitor_NotStartedClaimNeverCached(t *testing.T) {
	op := newFakeOperator()
	defer op.srv.Close()
	oracle := newFakeEsplora(100)
	defer oracle.srv.Close()

	op.setClaim("c1", claimInfoResponse{Status: string(domain.ReimbursementNotStarted)})
	op.setClaim("c2", claimInfoResponse{Status: string(domain.ReimbursementInProgress)})

	m := newTestMonitor(oracle, op)
	m.runCycle(context.Background())

	snap, _ := m.Snapshot(context.Background())
	if len(snap.Reimbursements) != 1 {
		t.Fatalf("got %d reimbursements, want 1: %+v", len(snap.Reimbursements), snap.Reimbursements)
	}
	if snap.Reimbursements[0].ClaimTxid != "c2" {
		t.Errorf("wrong claim cached: %+v", snap.Reimbursements[0])
	}
	if snap.Reimbursements[0].ChallengeStep != "N/A" {
		t.Errorf("ChallengeStep = %q, want N/A", snap.Reimbursements[0].ChallengeStep)
	}
}

func TestMonitor_FailoverServesFromSecondOperator(t *testing.T) {
	primary := newFakeOperator()
	defer primary.srv.Close()
	secondary := newFakeOperator()
	defer secondary.srv.Close()
	oracle := newFakeEsplora(100)
	defer oracle.srv.Close()

	primary.setDown(true)
	secondary.setWithdrawal("w1", withdrawalInfoResponse{Status: string(domain.WithdrawalInProgress)})

	m := newTestMonitor(oracle, primary, secondary)
	m.runCycle(context.Background())

	snap, _ := m.Snapshot(context.Background())
	if len(snap.Withdrawals) != 1 || snap.Withdrawals[0].WithdrawalRequestTxid != "w1" {
		t.Fatalf("failover did not reconcile withdrawals: %+v", snap.Withdrawals)
	}

	// Liveness is probed per operator, without failover.
	if len(snap.Operators) != 2 {
		t.Fatalf("got %d operators, want 2", len(snap.Operators))
	}
	if snap.Operators[0].Status != domain.OperatorOffline {
		t.Errorf("downed operator reported %q", snap.Operators[0].Status)
	}
	if snap.Operators[1].Status != domain.OperatorOnline {
		t.Errorf("healthy operator reported %q", snap.Operators[1].Status)
	}
	if snap.Operators[0].OperatorID != "Alpen Labs #0" {
		t.Errorf("OperatorID = %q", snap.Operators[0].OperatorID)
	}
}

func TestMonitor_KeepsStaleEntryWhenDetailUnavailable(t *testing.T) {
	op := newFakeOperator()
	defer op.srv.Close()
	oracle := newFakeEsplora(100)
	defer oracle.srv.Close()

	op.setDeposit("d1", depositInfoResponse{Status: string(domain.DepositInProgress)})

	m := newTestMonitor(oracle, op)
	ctx := context.Background()
	m.runCycle(ctx)

	// Every operator goes dark but the explorer stays up. The cycle still
	// completes and the active entry survives with its last known state.
	op.setDown(true)
	m.runCycle(ctx)

	snap, _ := m.Snapshot(ctx)
	if len(snap.Deposits) != 1 || snap.Deposits[0].Status != domain.DepositInProgress {
		t.Fatalf("stale entry lost during outage: %+v", snap.Deposits)
	}
}

func TestMonitor_SkipsCycleWhenTipUnavailable(t *testing.T) {
	op := newFakeOperator()
	defer op.srv.Close()
	oracle := newFakeEsplora(100)
	op.setDeposit("d1", depositInfoResponse{Status: string(domain.DepositInProgress)})
	oracle.srv.Close()

	m := newTestMonitor(oracle, op)
	m.runCycle(context.Background())

	if m.Ready() {
		t.Fatal("monitor became ready on a skipped cycle")
	}
	deposits, withdrawals, reimbursements := m.cache.Counts()
	if deposits != 0 || withdrawals != 0 || reimbursements != 0 {
		t.Fatal("skipped cycle mutated the cache")
	}
}

func TestMonitor_MalformedStatusSkipped(t *testing.T) {
	op := newFakeOperator()
	defer op.srv.Close()
	oracle := newFakeEsplora(100)
	defer oracle.srv.Close()

	op.setDeposit("bad", depositInfoResponse{Status: "Exploded"})
	op.setDeposit("good", depositInfoResponse{Status: string(domain.DepositInProgress)})

	m := newTestMonitor(oracle, op)
	m.runCycle(context.Background())

	snap, _ := m.Snapshot(context.Background())
	if len(snap.Deposits) != 1 || snap.Deposits[0].DepositRequestTxid != "good" {
		t.Fatalf("malformed deposit handling wrong: %+v", snap.Deposits)
	}
}

func TestMonitor_SnapshotBlocksUntilFirstCycle(t *testing.T) {
	op := newFakeOperator()
	defer op.srv.Close()
	oracle := newFakeEsplora(100)
	defer oracle.srv.Close()

	m := newTestMonitor(oracle, op)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := m.Snapshot(ctx); err == nil {
		t.Fatal("Snapshot returned before first cycle completed")
	}

	m.runCycle(context.Background())
	if _, err := m.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot failed after first cycle: %v", err)
	}
}
