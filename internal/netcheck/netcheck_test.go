package netcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

func syncServer(tipHeight string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"tip_height":%s}}`, tipHeight)
	}))
}

func bundlerServer(body string, code int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		fmt.Fprint(w, body)
	}))
}

func testConfig(seq, rpcURL, bundler string) Config {
	return Config{
		SequencerURL:    seq,
		RPCURL:          rpcURL,
		BundlerURL:      bundler,
		RefetchInterval: time.Hour,
		MaxRetries:      1,
		TotalRetryTime:  100 * time.Millisecond,
	}
}

func TestChecker_AllOnline(t *testing.T) {
	seq := syncServer("42")
	defer seq.Close()
	node := syncServer("42")
	defer node.Close()
	bundler := bundlerServer("ok", http.StatusOK)
	defer bundler.Close()

	c := New(testConfig(seq.URL, node.URL, bundler.URL))
	c.probeAll(context.Background())

	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	want := domain.NetworkStatus{
		Sequencer:       domain.ServiceOnline,
		RPCEndpoint:     domain.ServiceOnline,
		BundlerEndpoint: domain.ServiceOnline,
	}
	if status != want {
		t.Errorf("status = %+v, want %+v", status, want)
	}
}

func TestChecker_MissingTipHeightIsOffline(t *testing.T) {
	seq := syncServer("null")
	defer seq.Close()
	node := syncServer("42")
	defer node.Close()
	bundler := bundlerServer("ok", http.StatusOK)
	defer bundler.Close()

	c := New(testConfig(seq.URL, node.URL, bundler.URL))
	c.probeAll(context.Background())

	status, _ := c.Status(context.Background())
	if status.Sequencer != domain.ServiceOffline {
		t.Errorf("sequencer without tip_height reported %q", status.Sequencer)
	}
	if status.RPCEndpoint != domain.ServiceOnline {
		t.Errorf("healthy rpc endpoint reported %q", status.RPCEndpoint)
	}
}

func TestChecker_BundlerBadBodyIsOffline(t *testing.T) {
	seq := syncServer("42")
	defer seq.Close()
	bundler := bundlerServer("degraded", http.StatusOK)
	defer bundler.Close()

	c := New(testConfig(seq.URL, seq.URL, bundler.URL))
	c.probeAll(context.Background())

	status, _ := c.Status(context.Background())
	if status.BundlerEndpoint != domain.ServiceOffline {
		t.Errorf("bundler with bad body reported %q", status.BundlerEndpoint)
	}
}

func TestChecker_StatusBlocksUntilFirstRound(t *testing.T) {
	seq := syncServer("42")
	defer seq.Close()
	bundler := bundlerServer("ok", http.StatusOK)
	defer bundler.Close()

	c := New(testConfig(seq.URL, seq.URL, bundler.URL))
	if c.Ready() {
		t.Fatal("checker ready before any probe round")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Status(ctx); err == nil {
		t.Fatal("Status returned before first probe round")
	}

	c.probeAll(context.Background())
	if !c.Ready() {
		t.Fatal("checker not ready after probe round")
	}
}
