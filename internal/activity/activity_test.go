package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

func ts(t time.Time) *time.Time { return &t }

// pagedServer serves items in pages of the requested limit.
func pagedServer(t *testing.T, items []any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if page < 1 || limit < 1 {
			t.Errorf("bad paging params: page=%d limit=%d", page, limit)
		}

		start := (page - 1) * limit
		end := start + limit
		if start > len(items) {
			start = len(items)
		}
		if end > len(items) {
			end = len(items)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items[start:end])
	}))
}

func TestAggregate_Windows(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	ops := []domain.UserOp{
		{Sender: "0xa", GasUsed: 100, Timestamp: now.Add(-1 * time.Hour)},    // all windows
		{Sender: "0xa", GasUsed: 200, Timestamp: now.AddDate(0, 0, -3)},      // 7d and up
		{Sender: "0xb", GasUsed: 300, Timestamp: now.AddDate(0, 0, -20)},     // 30d and ytd
		{Sender: "0xc", GasUsed: 400, Timestamp: now.AddDate(0, -4, 0)},      // ytd only
		{Sender: "0xd", GasUsed: 500, Timestamp: now.AddDate(-1, 0, 0)},      // outside every window
	}

	stats := aggregate(ops, nil, now)

	wantOps := map[domain.TimeWindow]uint64{
		domain.WindowDay: 1, domain.WindowWeek: 2, domain.WindowMonth: 3, domain.WindowYTD: 4,
	}
	for w, want := range wantOps {
		if got := stats.Stats[domain.StatUserOps][w]; got != want {
			t.Errorf("user_ops[%s] = %d, want %d", w, got, want)
		}
	}
	if got := stats.Stats[domain.StatGasUsed][domain.WindowYTD]; got != 1000 {
		t.Errorf("gas_used[ytd] = %d, want 1000", got)
	}
	wantUnique := map[domain.TimeWindow]uint64{
		domain.WindowDay: 1, domain.WindowWeek: 1, domain.WindowMonth: 2, domain.WindowYTD: 3,
	}
	for w, want := range wantUnique {
		if got := stats.Stats[domain.StatUniqueAccounts][w]; got != want {
			t.Errorf("unique_active_accounts[%s] = %d, want %d", w, got, want)
		}
	}
}

func TestAggregate_RecentAccounts(t *testing.T) {
	now := time.Now().UTC()
	accounts := []domain.Account{
		{Address: "0x1", CreatedAt: ts(now.Add(-6 * time.Hour))},
		{Address: "0x2", CreatedAt: ts(now.Add(-1 * time.Hour))},
		{Address: "0x3", CreatedAt: nil},
		{Address: "0x4", CreatedAt: ts(now.Add(-2 * time.Hour))},
		{Address: "0x5", CreatedAt: ts(now.Add(-3 * time.Hour))},
		{Address: "0x6", CreatedAt: ts(now.Add(-4 * time.Hour))},
		{Address: "0x7", CreatedAt: ts(now.Add(-5 * time.Hour))},
	}

	stats := aggregate(nil, accounts, now)
	if len(stats.RecentAccounts) != recentAccountCount {
		t.Fatalf("got %d recent accounts, want %d", len(stats.RecentAccounts), recentAccountCount)
	}
	if stats.RecentAccounts[0].Address != "0x2" {
		t.Errorf("newest account = %q, want 0x2", stats.RecentAccounts[0].Address)
	}
	for _, acct := range stats.RecentAccounts {
		if acct.Address == "0x3" {
			t.Error("account without creation time made the recent list")
		}
	}
}

func TestAggregator_RefreshPagination(t *testing.T) {
	now := time.Now().UTC()
	var opItems []any
	for i := 0; i < 5; i++ {
		opItems = append(opItems, domain.UserOp{
			Sender:    "0xa",
			GasUsed:   10,
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	opsSrv := pagedServer(t, opItems)
	defer opsSrv.Close()
	acctSrv := pagedServer(t, []any{
		domain.Account{Address: "0x1", CreatedAt: ts(now)},
	})
	defer acctSrv.Close()

	a := New(Config{
		UserOpsURL:      opsSrv.URL,
		AccountsURL:     acctSrv.URL,
		PageSize:        2,
		RefetchInterval: time.Hour,
		CacheTTL:        time.Minute,
	}, nil)
	a.refresh(context.Background())

	stats, err := a.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if got := stats.Stats[domain.StatUserOps][domain.WindowDay]; got != 5 {
		t.Errorf("user_ops[24h] = %d, want 5 across pages", got)
	}
	if len(stats.RecentAccounts) != 1 {
		t.Errorf("recent accounts = %d, want 1", len(stats.RecentAccounts))
	}
}

func TestAggregator_KeepsStatsOnFetchFailure(t *testing.T) {
	now := time.Now().UTC()
	opsSrv := pagedServer(t, []any{
		domain.UserOp{Sender: "0xa", GasUsed: 10, Timestamp: now},
	})
	acctSrv := pagedServer(t, nil)
	defer acctSrv.Close()

	a := New(Config{
		UserOpsURL:      opsSrv.URL,
		AccountsURL:     acctSrv.URL,
		PageSize:        10,
		RefetchInterval: time.Hour,
		CacheTTL:        time.Minute,
	}, nil)
	a.refresh(context.Background())

	opsSrv.Close()
	a.refresh(context.Background())

	stats, _ := a.Stats(context.Background())
	if got := stats.Stats[domain.StatUserOps][domain.WindowDay]; got != 1 {
		t.Errorf("stats lost after failed refresh: user_ops[24h] = %d", got)
	}
}
