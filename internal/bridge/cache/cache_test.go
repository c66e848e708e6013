package cache

import (
	"testing"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

func inProgressDeposit(txid string) domain.Deposit {
	return domain.Deposit{
		DepositRequestTxid: txid,
		Status:             domain.DepositInProgress,
	}
}

func TestUpsert_Idempotence(t *testing.T) {
	c := New()
	dep := inProgressDeposit("d1")

	c.UpsertDeposit("d1", dep, 0)
	first, ok := c.DepositEntry("d1")
	if !ok {
		t.Fatal("missing entry after upsert")
	}

	time.Sleep(5 * time.Millisecond)
	c.UpsertDeposit("d1", dep, 0)
	second, ok := c.DepositEntry("d1")
	if !ok {
		t.Fatal("missing entry after second upsert")
	}

	if second.Data != first.Data || second.Confirmations != first.Confirmations {
		t.Errorf("identical upsert changed data: %+v vs %+v", first, second)
	}
	if !second.LastUpdated.After(first.LastUpdated) {
		t.Error("identical upsert should advance LastUpdated")
	}
}

func TestUpsert_OverwritesStatus(t *testing.T) {
	c := New()
	c.UpsertDeposit("d1", inProgressDeposit("d1"), 0)
	complete := domain.Deposit{
		DepositRequestTxid: "d1",
		DepositTxid:        "t1",
		Status:             domain.DepositComplete,
	}
	c.UpsertDeposit("d1", complete, 2)

	entry, _ := c.DepositEntry("d1")
	if entry.Data.Status != domain.DepositComplete || entry.Confirmations != 2 {
		t.Errorf("unexpected entry after overwrite: %+v", entry)
	}

	deposits, _, _ := c.Counts()
	if deposits != 1 {
		t.Errorf("key uniqueness violated: %d entries for one key", deposits)
	}
}

func TestApplyBatch_FilterAndOrder(t *testing.T) {
	c := New()
	c.ApplyDeposits([]Update[domain.Deposit]{
		{Key: "d3", Data: inProgressDeposit("d3")},
		{Key: "d1", Data: domain.Deposit{DepositRequestTxid: "d1", DepositTxid: "t1", Status: domain.DepositComplete}, Confirmations: 3},
		{Key: "d2", Data: inProgressDeposit("d2")},
	})

	active := c.FilterDeposits(func(d domain.Deposit) bool {
		return d.Status == domain.DepositInProgress
	})
	if len(active) != 2 {
		t.Fatalf("expected 2 in-progress deposits, got %d", len(active))
	}
	if active[0].Key != "d2" || active[1].Key != "d3" {
		t.Errorf("filter result not sorted by key: %+v", active)
	}

	all := c.FilterDeposits(func(domain.Deposit) bool { return true })
	if len(all) != 3 {
		t.Errorf("expected 3 deposits total, got %d", len(all))
	}
}

func TestPurge_RemovesOnlyGivenKeys(t *testing.T) {
	c := New()
	c.UpsertDeposit("d1", inProgressDeposit("d1"), 0)
	c.UpsertDeposit("d2", inProgressDeposit("d2"), 0)

	c.PurgeDeposits([]string{"d1", "missing"})

	if _, ok := c.DepositEntry("d1"); ok {
		t.Error("d1 should be purged")
	}
	if _, ok := c.DepositEntry("d2"); !ok {
		t.Error("d2 should survive")
	}
}

func TestOperators_WholeTableReplace(t *testing.T) {
	c := New()
	c.UpdateOperators([]domain.Operator{
		{OperatorID: "Alpen Labs #0", OperatorAddress: "pk0", Status: domain.OperatorOnline},
	})
	c.UpdateOperators([]domain.Operator{
		{OperatorID: "Alpen Labs #0", OperatorAddress: "pk0", Status: domain.OperatorOffline},
		{OperatorID: "Alpen Labs #1", OperatorAddress: "pk1", Status: domain.OperatorOnline},
	})

	ops := c.GetOperators()
	if len(ops) != 2 {
		t.Fatalf("expected 2 operators, got %d", len(ops))
	}
	if ops[0].Status != domain.OperatorOffline {
		t.Errorf("replace did not take: %+v", ops[0])
	}
}

func TestSnapshot_CopiesAllTables(t *testing.T) {
	c := New()
	c.UpsertDeposit("d1", inProgressDeposit("d1"), 0)
	c.UpsertWithdrawal("w1", domain.Withdrawal{
		WithdrawalRequestTxid: "w1",
		Status:                domain.WithdrawalInProgress,
	}, 0)
	c.UpsertReimbursement("c1", domain.Reimbursement{
		ClaimTxid:     "c1",
		ChallengeStep: "Claim",
		Status:        domain.ReimbursementInProgress,
	}, 0)
	c.UpdateOperators([]domain.Operator{
		{OperatorID: "Alpen Labs #0", OperatorAddress: "pk0", Status: domain.OperatorOnline},
	})

	snap := c.Snapshot()
	if len(snap.Operators) != 1 || len(snap.Deposits) != 1 ||
		len(snap.Withdrawals) != 1 || len(snap.Reimbursements) != 1 {
		t.Errorf("snapshot incomplete: %+v", snap)
	}

	// Mutating the snapshot must not reach the cache.
	snap.Deposits[0].Status = domain.DepositFailed
	entry, _ := c.DepositEntry("d1")
	if entry.Data.Status != domain.DepositInProgress {
		t.Error("snapshot aliases cache storage")
	}
}
