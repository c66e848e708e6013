package monitor

import (
	"fmt"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

// Wire shapes for the operator RPC surface. Operators are trusted for data
// content; only availability is handled with failover, so decoding maps
// straight into domain types and rejects unknown status tags as malformed.

type uptimeResponse struct {
	Online bool `json:"online"`
}

type depositInfoResponse struct {
	Status             string `json:"status"`
	DepositRequestTxid string `json:"deposit_request_txid"`
	DepositTxid        string `json:"deposit_txid"`
}

func (r depositInfoResponse) toDomain(requestTxid string) (domain.Deposit, error) {
	status := domain.DepositStatus(r.Status)
	switch status {
	case domain.DepositInProgress, domain.DepositFailed, domain.DepositComplete:
	default:
		return domain.Deposit{}, fmt.Errorf("unknown deposit status %q", r.Status)
	}

	dep := domain.Deposit{
		DepositRequestTxid: requestTxid,
		Status:             status,
	}
	if r.DepositRequestTxid != "" {
		dep.DepositRequestTxid = r.DepositRequestTxid
	}
	if status == domain.DepositComplete {
		dep.DepositTxid = r.DepositTxid
	}
	return dep, nil
}

type withdrawalInfoResponse struct {
	Status          string `json:"status"`
	FulfillmentTxid string `json:"fulfillment_txid"`
}

func (r withdrawalInfoResponse) toDomain(requestTxid string) (domain.Withdrawal, error) {
	status := domain.WithdrawalStatus(r.Status)
	switch status {
	case domain.WithdrawalInProgress, domain.WithdrawalComplete:
	default:
		return domain.Withdrawal{}, fmt.Errorf("unknown withdrawal status %q", r.Status)
	}

	wd := domain.Withdrawal{
		WithdrawalRequestTxid: requestTxid,
		Status:                status,
	}
	if status == domain.WithdrawalComplete {
		wd.FulfillmentTxid = r.FulfillmentTxid
	}
	return wd, nil
}

type claimInfoResponse struct {
	Status        string `json:"status"`
	ChallengeStep string `json:"challenge_step"`
	PayoutTxid    string `json:"payout_txid"`
}

func (r claimInfoResponse) toDomain(claimTxid string) (domain.Reimbursement, error) {
	status := domain.ReimbursementStatus(r.Status)
	switch status {
	case domain.ReimbursementNotStarted, domain.ReimbursementInProgress,
		domain.ReimbursementChallenged, domain.ReimbursementCancelled,
		domain.ReimbursementComplete:
	default:
		return domain.Reimbursement{}, fmt.Errorf("unknown claim status %q", r.Status)
	}

	reimb := domain.Reimbursement{
		ClaimTxid:     claimTxid,
		ChallengeStep: r.ChallengeStep,
		Status:        status,
	}
	if reimb.ChallengeStep == "" {
		reimb.ChallengeStep = "N/A"
	}
	if status == domain.ReimbursementComplete {
		reimb.PayoutTxid = r.PayoutTxid
	}
	return reimb, nil
}
