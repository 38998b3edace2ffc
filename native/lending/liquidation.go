package lending

import (
	"errors"
	"math/big"
)

var (
	errVaultNotUnderwater      = errors.New("lending liquidation: vault not underwater")
	errOnlyMaxLiquidationBonus = errors.New("lending liquidation: received exceeds max bonus for asset")
	errLiquidationLimitUsed    = errors.New("lending liquidation: combined bonus limits exceed one")
	errOverLiquidation         = errors.New("lending liquidation: repayment exceeds amount needed to restore health")
	errUnknownAsset            = errors.New("lending liquidation: asset not registered")
	errEmptyLiquidation        = errors.New("lending liquidation: no assets supplied")
)

// liquidationPlan carries the state staged while validating a liquidation
// input: the notional sums and the accrued markets and borrower vaults with
// every leg already applied. The engine persists the staged state as-is, so
// no balance moves before the whole input has validated.
type liquidationPlan struct {
	repaidAdjusted   *big.Int
	receivedAdjusted *big.Int
	markets          map[string]*AssetMarket
	vaults           map[string]*VaultPosition
}

// checkAllowedToLiquidate validates a liquidation input against the target
// vault's risk state. The vault must be strictly undercollateralized before
// the liquidation. Each received asset is bounded by that asset's max
// liquidation bonus applied to the aggregate repaid notional, the normalised
// bonus-limit fractions summed across assets must not exceed one, and the
// post-liquidation health factor must stay at or below the configured ceiling
// so a liquidator cannot seize more collateral than needed to restore
// solvency.
func (e *Engine) checkAllowedToLiquidate(input LiquidationInput, now uint64) (*liquidationPlan, error) {
	if len(input.Assets) == 0 {
		return nil, errEmptyLiquidation
	}

	risk, err := e.accountRisk(input.Account, now)
	if err != nil {
		return nil, err
	}
	if risk.trueDeposits.Cmp(risk.trueBorrows) >= 0 {
		return nil, errVaultNotUnderwater
	}

	plan := &liquidationPlan{
		repaidAdjusted:   big.NewInt(0),
		receivedAdjusted: big.NewInt(0),
	}
	totalRepaid := big.NewInt(0)

	// First pass: aggregate the repaid notionals. The bonus cap on each
	// received asset is a multiple of the total repaid value, not of a
	// per-leg pairing.
	for _, leg := range input.Assets {
		params, ok := e.assets[leg.Asset]
		if !ok {
			return nil, errUnknownAsset
		}
		if leg.Repaid == nil || leg.Repaid.Sign() < 0 || leg.Received == nil || leg.Received.Sign() < 0 {
			return nil, errInvalidAmount
		}
		if leg.Repaid.Sign() == 0 {
			continue
		}
		bounds, err := e.bounds(leg.Asset)
		if err != nil {
			return nil, err
		}
		notional := Notional(leg.Repaid, bounds.Debt, params.Decimals, bounds.Decimals)
		totalRepaid.Add(totalRepaid, notional)
		plan.repaidAdjusted.Add(plan.repaidAdjusted, rayMul(notional, params.BorrowCollateralRatio))
	}

	// Bonus-limit fractions accumulate at ray precision and are compared
	// against one ray only after the final sum, so per-asset integer
	// division cannot shave the aggregate cap.
	limitUsed := big.NewInt(0)

	for _, leg := range input.Assets {
		if leg.Received.Sign() == 0 {
			continue
		}
		params := e.assets[leg.Asset]
		bounds, err := e.bounds(leg.Asset)
		if err != nil {
			return nil, err
		}
		notional := Notional(leg.Received, bounds.Collateral, params.Decimals, bounds.Decimals)
		maxReceived := rayMul(totalRepaid, params.MaxLiquidationBonus)
		if notional.Cmp(maxReceived) > 0 {
			return nil, errOnlyMaxLiquidationBonus
		}
		limitUsed.Add(limitUsed, rayDiv(notional, maxReceived))
		plan.receivedAdjusted.Add(plan.receivedAdjusted, rayDiv(notional, params.DepositCollateralRatio))
	}

	if limitUsed.Cmp(ray) > 0 {
		return nil, errLiquidationLimitUsed
	}

	// Third pass: stage every leg against the borrower's accrued balances.
	// Sufficiency is checked here, before anything persists, so a later
	// leg's failure cannot leave an earlier leg committed.
	plan.markets = make(map[string]*AssetMarket, len(input.Assets))
	plan.vaults = make(map[string]*VaultPosition, len(input.Assets))
	for _, leg := range input.Assets {
		market, ok := plan.markets[leg.Asset]
		if !ok {
			loaded, err := e.ensureMarket(leg.Asset)
			if err != nil {
				return nil, err
			}
			market = cloneMarket(loaded)
			AccrueIndices(market, e.interestModel, e.feeShareBps(), now)
			vault, err := e.ensureVault(input.Account, leg.Asset, market)
			if err != nil {
				return nil, err
			}
			vault = cloneVault(vault)
			ApplyInterest(vault, market)
			plan.markets[leg.Asset] = market
			plan.vaults[leg.Asset] = vault
		}
		vault := plan.vaults[leg.Asset]
		if leg.Repaid.Sign() > 0 && leg.Repaid.Cmp(vault.Borrowed) > 0 {
			return nil, errRepayExceedsDebt
		}
		if leg.Received.Sign() > 0 && leg.Received.Cmp(vault.Deposited) > 0 {
			return nil, errSeizeExceedsVault
		}
		vault.Borrowed = new(big.Int).Sub(vault.Borrowed, leg.Repaid)
		vault.Deposited = new(big.Int).Sub(vault.Deposited, leg.Received)
		market.TotalBorrowed = new(big.Int).Sub(market.TotalBorrowed, leg.Repaid)
	}

	remainingDeposits := new(big.Int).Sub(risk.effDeposits, plan.receivedAdjusted)
	remainingBorrows := new(big.Int).Sub(risk.effBorrows, plan.repaidAdjusted)
	if remainingBorrows.Sign() <= 0 {
		// Repaying the entire debt leaves the health ratio unbounded,
		// which the ceiling below necessarily rejects unless no
		// collateral remains either.
		if remainingDeposits.Sign() > 0 {
			return nil, errOverLiquidation
		}
		return plan, nil
	}
	ceiling := rayMul(e.params.MaxHealthFactor, remainingBorrows)
	if remainingDeposits.Cmp(ceiling) > 0 {
		return nil, errOverLiquidation
	}
	return plan, nil
}
