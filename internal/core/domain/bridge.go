package domain

// OperatorLiveness is the reachability of a single bridge operator.
type OperatorLiveness string

const (
	OperatorOnline  OperatorLiveness = "Online"
	OperatorOffline OperatorLiveness = "Offline"
)

// Operator describes one bridge operator as probed this cycle.
type Operator struct {
	OperatorID      string           `json:"operator_id"`
	OperatorAddress string           `json:"operator_address"`
	Status          OperatorLiveness `json:"status"`
}

// DepositStatus is the lifecycle state of a bridge deposit.
type DepositStatus string

const (
	DepositInProgress DepositStatus = "In progress"
	DepositFailed     DepositStatus = "Failed"
	DepositComplete   DepositStatus = "Complete"
)

// Terminal reports whether no further transition is expected.
func (s DepositStatus) Terminal() bool {
	return s == DepositFailed || s == DepositComplete
}

// Deposit is the deposit view served to the dashboard.
// DepositTxid is set only for Complete deposits.
type Deposit struct {
	DepositRequestTxid string        `json:"deposit_request_txid"`
	DepositTxid        string        `json:"deposit_txid,omitempty"`
	Status             DepositStatus `json:"status"`
}

// SettlementTxid returns the transaction whose confirmation depth decides
// when a terminal deposit can be dropped. Failed deposits never make it
// on-chain past the request, so the request txid is used for them.
func (d Deposit) SettlementTxid() string {
	if d.Status == DepositComplete && d.DepositTxid != "" {
		return d.DepositTxid
	}
	return d.DepositRequestTxid
}

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalInProgress WithdrawalStatus = "In progress"
	WithdrawalComplete   WithdrawalStatus = "Complete"
)

// Terminal reports whether no further transition is expected.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalComplete
}

// Withdrawal is the withdrawal view served to the dashboard.
// FulfillmentTxid is set only for Complete withdrawals.
type Withdrawal struct {
	WithdrawalRequestTxid string           `json:"withdrawal_request_txid"`
	FulfillmentTxid       string           `json:"fulfillment_txid,omitempty"`
	Status                WithdrawalStatus `json:"status"`
}

// SettlementTxid returns the transaction that settles this withdrawal.
func (w Withdrawal) SettlementTxid() string {
	if w.FulfillmentTxid != "" {
		return w.FulfillmentTxid
	}
	return w.WithdrawalRequestTxid
}

// ReimbursementStatus is the lifecycle state of an operator claim.
type ReimbursementStatus string

const (
	ReimbursementNotStarted ReimbursementStatus = "Not started"
	ReimbursementInProgress ReimbursementStatus = "In progress"
	ReimbursementChallenged ReimbursementStatus = "Challenged"
	ReimbursementCancelled  ReimbursementStatus = "Cancelled"
	ReimbursementComplete   ReimbursementStatus = "Complete"
)

// Terminal reports whether no further transition is expected.
func (s ReimbursementStatus) Terminal() bool {
	return s == ReimbursementCancelled || s == ReimbursementComplete
}

// Reimbursement is the claim/reimbursement view served to the dashboard.
// PayoutTxid is set only for Complete claims. ChallengeStep is "N/A" outside
// the challenge protocol.
type Reimbursement struct {
	ClaimTxid     string              `json:"claim_txid"`
	ChallengeStep string              `json:"challenge_step"`
	PayoutTxid    string              `json:"payout_txid,omitempty"`
	Status        ReimbursementStatus `json:"status"`
}

// SettlementTxid returns the transaction that closes out this claim.
// Cancelled claims have no payout, so the claim txid stands in.
func (r Reimbursement) SettlementTxid() string {
	if r.PayoutTxid != "" {
		return r.PayoutTxid
	}
	return r.ClaimTxid
}

// BridgeStatus is the point-in-time snapshot served over the read API.
type BridgeStatus struct {
	Operators      []Operator      `json:"operators"`
	Deposits       []Deposit       `json:"deposits"`
	Withdrawals    []Withdrawal    `json:"withdrawals"`
	Reimbursements []Reimbursement `json:"reimbursements"`
}
