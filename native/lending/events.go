package lending

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"townsq/core/types"
)

const (
	EventTypeDeposit     = "lending.deposit"
	EventTypeWithdraw    = "lending.withdraw"
	EventTypeBorrow      = "lending.borrow"
	EventTypeRepay       = "lending.repay"
	EventTypeLiquidation = "lending.liquidation"
)

// NewDepositEvent returns the canonical event payload for a deposit.
func NewDepositEvent(account AccountID, asset string, amount *big.Int) *types.Event {
	return newPositionEvent(EventTypeDeposit, account, asset, amount)
}

// NewWithdrawEvent returns the canonical event payload for a withdrawal.
func NewWithdrawEvent(account AccountID, asset string, amount *big.Int) *types.Event {
	return newPositionEvent(EventTypeWithdraw, account, asset, amount)
}

// NewBorrowEvent returns the canonical event payload for a borrow.
func NewBorrowEvent(account AccountID, asset string, amount *big.Int) *types.Event {
	return newPositionEvent(EventTypeBorrow, account, asset, amount)
}

// NewRepayEvent returns the canonical event payload emitted when debt is
// repaid, carrying the actual clamped repayment.
func NewRepayEvent(account AccountID, asset string, amount *big.Int) *types.Event {
	return newPositionEvent(EventTypeRepay, account, asset, amount)
}

// NewLiquidationEvent returns the canonical event payload for a completed
// liquidation, one repaid/received attribute pair per asset leg.
func NewLiquidationEvent(liquidator AccountID, input LiquidationInput) *types.Event {
	attrs := map[string]string{
		"liquidator": hex.EncodeToString(liquidator[:]),
		"account":    hex.EncodeToString(input.Account[:]),
		"assets":     strconv.Itoa(len(input.Assets)),
	}
	for i, leg := range input.Assets {
		prefix := "asset" + strconv.Itoa(i)
		attrs[prefix] = leg.Asset
		attrs[prefix+".repaid"] = formatAmount(leg.Repaid)
		attrs[prefix+".received"] = formatAmount(leg.Received)
	}
	return &types.Event{Type: EventTypeLiquidation, Attributes: attrs}
}

func newPositionEvent(eventType string, account AccountID, asset string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"account": hex.EncodeToString(account[:]),
			"asset":   asset,
			"amount":  formatAmount(amount),
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
