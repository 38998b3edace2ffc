package lending

import (
	"math/big"
	"testing"
)

// setUpUnderwaterVault builds a borrower holding asset A collateral against an
// asset B borrow and then moves the price of B so the vault sinks underwater.
func setUpUnderwaterVault(t *testing.T) (*Engine, *mockEngineState, *mockOracle, AccountID) {
	t.Helper()
	engine, state, oracle := newTestEngine(t)
	if err := engine.RegisterAsset(AssetParams{
		Asset:               assetA,
		Decimals:            6,
		MaxLiquidationBonus: bonusRay(110), // 1.10x
	}); err != nil {
		t.Fatalf("register asset A: %v", err)
	}

	borrower := accountID(1)
	supplier := accountID(2)
	if err := engine.Deposit(borrower, assetA, amount(1_000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if err := engine.Deposit(supplier, assetB, amount(10_000)); err != nil {
		t.Fatalf("deposit liquidity: %v", err)
	}
	if err := engine.Borrow(borrower, assetB, amount(800)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Debt asset appreciates 50%: 1000 collateral vs 1200 debt notional.
	oracle.setPrice(assetB, 150_000_000)
	return engine, state, oracle, borrower
}

// bonusRay converts a percentage into a ray multiplier, e.g. 110 -> 1.1 ray.
func bonusRay(percent int64) *big.Int {
	bonus := new(big.Int).Mul(ray, big.NewInt(percent))
	return bonus.Quo(bonus, big.NewInt(100))
}

func TestLiquidateHealthyVaultRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	borrower := accountID(1)
	supplier := accountID(2)
	if err := engine.Deposit(borrower, assetA, amount(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Deposit(supplier, assetB, amount(10_000)); err != nil {
		t.Fatalf("deposit liquidity: %v", err)
	}
	if err := engine.Borrow(borrower, assetB, amount(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets: []LiquidationAsset{
			{Asset: assetB, Repaid: amount(100), Received: big.NewInt(0)},
			{Asset: assetA, Repaid: big.NewInt(0), Received: amount(100)},
		},
	})
	if err != errVaultNotUnderwater {
		t.Fatalf("expected errVaultNotUnderwater, got %v", err)
	}
}

func TestLiquidateBonusCapEnforced(t *testing.T) {
	engine, _, _, borrower := setUpUnderwaterVault(t)

	// Repaying 400 B at price 1.5 is a 600 notional; the 1.1x bonus allows
	// at most 660 notional of asset A (price 1.0).
	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets: []LiquidationAsset{
			{Asset: assetB, Repaid: amount(400), Received: big.NewInt(0)},
			{Asset: assetA, Repaid: big.NewInt(0), Received: amount(661)},
		},
	})
	if err != errOnlyMaxLiquidationBonus {
		t.Fatalf("expected errOnlyMaxLiquidationBonus, got %v", err)
	}
}

func TestLiquidateWithinBonusSucceeds(t *testing.T) {
	engine, state, _, borrower := setUpUnderwaterVault(t)
	liquidator := accountID(9)

	err := engine.Liquidate(liquidator, LiquidationInput{
		Account: borrower,
		Assets: []LiquidationAsset{
			{Asset: assetB, Repaid: amount(400), Received: big.NewInt(0)},
			{Asset: assetA, Repaid: big.NewInt(0), Received: amount(650)},
		},
	})
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	borrowerB, _ := state.GetVault(borrower, assetB)
	if borrowerB.Borrowed.Cmp(amount(400)) != 0 {
		t.Fatalf("borrower debt after liquidation: %s", borrowerB.Borrowed)
	}
	borrowerA, _ := state.GetVault(borrower, assetA)
	if borrowerA.Deposited.Cmp(amount(350)) != 0 {
		t.Fatalf("borrower collateral after liquidation: %s", borrowerA.Deposited)
	}
	liquidatorA, _ := state.GetVault(liquidator, assetA)
	if liquidatorA.Deposited.Cmp(amount(650)) != 0 {
		t.Fatalf("liquidator collateral: %s", liquidatorA.Deposited)
	}
}

func TestLiquidateOverLiquidationRejected(t *testing.T) {
	engine, _, _, borrower := setUpUnderwaterVault(t)

	// Clearing the entire debt while leaving collateral behind would push
	// the post-liquidation health factor past the ceiling.
	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets: []LiquidationAsset{
			{Asset: assetB, Repaid: amount(800), Received: big.NewInt(0)},
			{Asset: assetA, Repaid: big.NewInt(0), Received: amount(100)},
		},
	})
	if err != errOverLiquidation {
		t.Fatalf("expected errOverLiquidation, got %v", err)
	}
}

func TestLiquidateFailedLegLeavesStateUntouched(t *testing.T) {
	engine, state, oracle := newTestEngine(t)
	if err := engine.RegisterAsset(AssetParams{
		Asset:               assetA,
		Decimals:            6,
		MaxLiquidationBonus: bonusRay(110),
	}); err != nil {
		t.Fatalf("register asset A: %v", err)
	}

	borrower := accountID(1)
	supplier := accountID(2)
	if err := engine.Deposit(borrower, assetA, amount(500)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if err := engine.Deposit(supplier, assetB, amount(10_000)); err != nil {
		t.Fatalf("deposit liquidity: %v", err)
	}
	if err := engine.Borrow(borrower, assetB, amount(400)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Debt asset triples: 500 collateral vs 1200 debt notional.
	oracle.setPrice(assetB, 300_000_000)

	// The B leg is valid on its own; the A leg asks for more collateral
	// than the vault holds, so the whole call must reject with the earlier
	// leg uncommitted.
	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets: []LiquidationAsset{
			{Asset: assetB, Repaid: amount(200), Received: big.NewInt(0)},
			{Asset: assetA, Repaid: big.NewInt(0), Received: amount(650)},
		},
	})
	if err != errSeizeExceedsVault {
		t.Fatalf("expected errSeizeExceedsVault, got %v", err)
	}

	borrowerB, _ := state.GetVault(borrower, assetB)
	if borrowerB.Borrowed.Cmp(amount(400)) != 0 {
		t.Fatalf("rejected liquidation must not reduce debt, got %s", borrowerB.Borrowed)
	}
	borrowerA, _ := state.GetVault(borrower, assetA)
	if borrowerA.Deposited.Cmp(amount(500)) != 0 {
		t.Fatalf("rejected liquidation must not move collateral, got %s", borrowerA.Deposited)
	}
	marketB, _ := state.GetAssetMarket(assetB)
	if marketB.TotalBorrowed.Cmp(amount(400)) != 0 {
		t.Fatalf("rejected liquidation must not shrink the market, got %s", marketB.TotalBorrowed)
	}
	if liquidatorA, _ := state.GetVault(accountID(9), assetA); liquidatorA != nil {
		t.Fatalf("rejected liquidation must not credit the liquidator")
	}
}

func TestLiquidateRepayBeyondVaultDebtRejected(t *testing.T) {
	engine, state, _, borrower := setUpUnderwaterVault(t)

	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets: []LiquidationAsset{
			{Asset: assetB, Repaid: amount(900), Received: big.NewInt(0)},
			{Asset: assetA, Repaid: big.NewInt(0), Received: amount(100)},
		},
	})
	if err != errRepayExceedsDebt {
		t.Fatalf("expected errRepayExceedsDebt, got %v", err)
	}
	borrowerB, _ := state.GetVault(borrower, assetB)
	if borrowerB.Borrowed.Cmp(amount(800)) != 0 {
		t.Fatalf("rejected liquidation must not reduce debt, got %s", borrowerB.Borrowed)
	}
}

func TestLiquidateUnknownAssetRejected(t *testing.T) {
	engine, _, _, borrower := setUpUnderwaterVault(t)

	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets:  []LiquidationAsset{{Asset: "UNKNOWN", Repaid: amount(1), Received: big.NewInt(0)}},
	})
	if err != errUnknownAsset {
		t.Fatalf("expected errUnknownAsset, got %v", err)
	}
}

func TestLiquidateReceivedWithoutRepayRejected(t *testing.T) {
	engine, _, _, borrower := setUpUnderwaterVault(t)

	// With nothing repaid the bonus cap collapses to zero, so any received
	// collateral exceeds it.
	err := engine.Liquidate(accountID(9), LiquidationInput{
		Account: borrower,
		Assets:  []LiquidationAsset{{Asset: assetA, Repaid: big.NewInt(0), Received: amount(10)}},
	})
	if err != errOnlyMaxLiquidationBonus {
		t.Fatalf("expected errOnlyMaxLiquidationBonus, got %v", err)
	}
}
