package types

import "math/big"

// Account captures the hub-side balances tracked for a protocol participant.
// Amounts are denominated in wei and expressed as big integers to match
// on-chain precision.
type Account struct {
	Nonce uint64 `json:"nonce"`
	// Balance is the spendable native-currency balance on the hub.
	Balance *big.Int `json:"balance"`
	// FeeBalance accumulates native currency reserved for paying outbound
	// cross-chain delivery fees. It is credited by inbound value transfers
	// and explicit top-ups, and debited when a message is sent.
	FeeBalance *big.Int `json:"feeBalance"`
}
