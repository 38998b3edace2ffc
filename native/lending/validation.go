package lending

import (
	"errors"
	"math/big"
	"sort"
)

var (
	errInsufficientReserves = errors.New("lending validation: protocol reserves cannot cover request")
	errBorrowCapExceeded    = errors.New("lending validation: asset borrow cap exceeded")
	errUndercollateralized  = errors.New("lending validation: position would become undercollateralized")
	errInsufficientDeposit  = errors.New("lending validation: vault deposit below requested amount")
)

// accountRisk aggregates an account's position notionals across every
// registered asset, valued at the conservative price bounds. True sums carry
// the unadjusted notionals; effective sums apply the per-asset collateral
// ratios (deposits discounted, borrows inflated).
type accountRisk struct {
	trueDeposits *big.Int
	trueBorrows  *big.Int
	effDeposits  *big.Int
	effBorrows   *big.Int
}

// checkReserves enforces the global reserve invariant for an asset: current
// deposits must cover current borrows plus the requested outflow, and the
// borrow cap (when enabled) must not be breached by new borrows.
func checkReserves(market *AssetMarket, params AssetParams, requested *big.Int, isBorrow bool) error {
	required := new(big.Int).Set(market.TotalBorrowed)
	if requested != nil {
		required.Add(required, requested)
	}
	if market.TotalDeposited.Cmp(required) < 0 {
		return errInsufficientReserves
	}
	if isBorrow && params.BorrowCap != nil && params.BorrowCap.Sign() > 0 {
		projected := new(big.Int).Add(market.TotalBorrowed, requested)
		if projected.Cmp(params.BorrowCap) > 0 {
			return errBorrowCapExceeded
		}
	}
	return nil
}

// accountRisk walks every registered asset and sums the account's deposit and
// borrow notionals at the current accrual indices and price bounds. Markets
// are projected forward to now on copies so the read does not mutate state.
func (e *Engine) accountRisk(account AccountID, now uint64) (*accountRisk, error) {
	risk := &accountRisk{
		trueDeposits: big.NewInt(0),
		trueBorrows:  big.NewInt(0),
		effDeposits:  big.NewInt(0),
		effBorrows:   big.NewInt(0),
	}

	assets := make([]string, 0, len(e.assets))
	for asset := range e.assets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		params := e.assets[asset]
		vault, err := e.state.GetVault(account, asset)
		if err != nil {
			return nil, err
		}
		if vault == nil {
			continue
		}
		market, err := e.state.GetAssetMarket(asset)
		if err != nil {
			return nil, err
		}
		if market == nil {
			continue
		}
		projection := cloneMarket(market)
		AccrueIndices(projection, e.interestModel, e.feeShareBps(), now)
		ApplyInterest(vault, projection)

		if vault.Deposited.Sign() == 0 && vault.Borrowed.Sign() == 0 {
			continue
		}
		bounds, err := e.bounds(asset)
		if err != nil {
			return nil, err
		}
		if vault.Deposited.Sign() > 0 {
			notional := Notional(vault.Deposited, bounds.Collateral, params.Decimals, bounds.Decimals)
			risk.trueDeposits.Add(risk.trueDeposits, notional)
			risk.effDeposits.Add(risk.effDeposits, rayDiv(notional, params.DepositCollateralRatio))
		}
		if vault.Borrowed.Sign() > 0 {
			notional := Notional(vault.Borrowed, bounds.Debt, params.Decimals, bounds.Decimals)
			risk.trueBorrows.Add(risk.trueBorrows, notional)
			risk.effBorrows.Add(risk.effBorrows, rayMul(notional, params.BorrowCollateralRatio))
		}
	}
	return risk, nil
}

// checkAllowedToWithdraw validates a hypothetical withdrawal: the vault must
// hold the amount, the global reserve must stay intact, and the account must
// remain collateralized once the withdrawn value stops counting as collateral.
// Exact equality of effective deposits and borrows is allowed.
func (e *Engine) checkAllowedToWithdraw(vault *VaultPosition, market *AssetMarket, amount *big.Int, now uint64) error {
	if vault.Deposited.Cmp(amount) < 0 {
		return errInsufficientDeposit
	}
	params := e.assets[vault.Asset]
	if err := checkReserves(market, params, amount, false); err != nil {
		return err
	}

	risk, err := e.accountRisk(vault.Account, now)
	if err != nil {
		return err
	}
	if risk.effBorrows.Sign() == 0 {
		return nil
	}
	bounds, err := e.bounds(vault.Asset)
	if err != nil {
		return err
	}
	withdrawnEff := rayDiv(Notional(amount, bounds.Collateral, params.Decimals, bounds.Decimals), params.DepositCollateralRatio)
	remaining := new(big.Int).Sub(risk.effDeposits, withdrawnEff)
	if remaining.Cmp(risk.effBorrows) < 0 {
		return errUndercollateralized
	}
	return nil
}

// checkAllowedToBorrow validates a hypothetical borrow: global reserves must
// cover the outflow, the borrow cap must hold, and the account's effective
// deposits must cover effective borrows inclusive of the new debt.
func (e *Engine) checkAllowedToBorrow(account AccountID, market *AssetMarket, asset string, amount *big.Int, now uint64) error {
	params := e.assets[asset]
	if err := checkReserves(market, params, amount, true); err != nil {
		return err
	}

	risk, err := e.accountRisk(account, now)
	if err != nil {
		return err
	}
	bounds, err := e.bounds(asset)
	if err != nil {
		return err
	}
	borrowedEff := rayMul(Notional(amount, bounds.Debt, params.Decimals, bounds.Decimals), params.BorrowCollateralRatio)
	projected := new(big.Int).Add(risk.effBorrows, borrowedEff)
	if risk.effDeposits.Cmp(projected) < 0 {
		return errUndercollateralized
	}
	return nil
}

func (e *Engine) bounds(asset string) (PriceBounds, error) {
	if e.oracle == nil {
		return PriceBounds{}, errNilOracle
	}
	quote, err := e.oracle.Quote(asset)
	if err != nil {
		return PriceBounds{}, err
	}
	return Bounds(quote, e.params.PriceStdDevs)
}

func cloneMarket(m *AssetMarket) *AssetMarket {
	if m == nil {
		return nil
	}
	clone := &AssetMarket{Asset: m.Asset, LastUpdateTime: m.LastUpdateTime}
	if m.TotalDeposited != nil {
		clone.TotalDeposited = new(big.Int).Set(m.TotalDeposited)
	}
	if m.TotalBorrowed != nil {
		clone.TotalBorrowed = new(big.Int).Set(m.TotalBorrowed)
	}
	if m.DepositIndex != nil {
		clone.DepositIndex = new(big.Int).Set(m.DepositIndex)
	}
	if m.BorrowIndex != nil {
		clone.BorrowIndex = new(big.Int).Set(m.BorrowIndex)
	}
	return clone
}

func cloneVault(v *VaultPosition) *VaultPosition {
	if v == nil {
		return nil
	}
	clone := &VaultPosition{Account: v.Account, Asset: v.Asset}
	if v.Deposited != nil {
		clone.Deposited = new(big.Int).Set(v.Deposited)
	}
	if v.Borrowed != nil {
		clone.Borrowed = new(big.Int).Set(v.Borrowed)
	}
	if v.DepositIndexSnapshot != nil {
		clone.DepositIndexSnapshot = new(big.Int).Set(v.DepositIndexSnapshot)
	}
	if v.BorrowIndexSnapshot != nil {
		clone.BorrowIndexSnapshot = new(big.Int).Set(v.BorrowIndexSnapshot)
	}
	return clone
}
