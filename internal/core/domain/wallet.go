package domain

// Wallet is a monitored wallet with its last fetched balance in wei,
// kept as a decimal string to avoid precision loss in JSON.
type Wallet struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// PaymasterWallets groups the wallets funding bridge operations.
type PaymasterWallets struct {
	Deposit    Wallet `json:"deposit"`
	Validating Wallet `json:"validating"`
}
