package lending

import (
	"math/big"
	"testing"
)

// annualRay converts a percentage into a ray annual rate, e.g. 5 -> 0.05 ray.
func annualRay(percent int64) *big.Int {
	rate := new(big.Int).Mul(ray, big.NewInt(percent))
	return rate.Quo(rate, big.NewInt(100))
}

func TestCompoundFactorIdentity(t *testing.T) {
	if got := CompoundFactor(nil, 3600); got.Cmp(ray) != 0 {
		t.Fatalf("nil rate should compound to one ray, got %s", got)
	}
	if got := CompoundFactor(annualRay(5), 0); got.Cmp(ray) != 0 {
		t.Fatalf("zero elapsed should compound to one ray, got %s", got)
	}
}

func TestCompoundFactorGrowsWithTime(t *testing.T) {
	rate := annualRay(5)
	prev := new(big.Int).Set(ray)
	for _, elapsed := range []uint64{1, 60, 3600, 86_400, secondsPerYear, 3 * secondsPerYear} {
		factor := CompoundFactor(rate, elapsed)
		if factor.Cmp(prev) < 0 {
			t.Fatalf("factor decreased at elapsed=%d: %s < %s", elapsed, factor, prev)
		}
		prev = factor
	}
	// One year of 5% per-second compounding lands slightly above the
	// linear 1.05 because of compounding.
	linear := new(big.Int).Add(ray, annualRay(5))
	year := CompoundFactor(rate, secondsPerYear)
	if year.Cmp(linear) < 0 {
		t.Fatalf("yearly factor %s below linear rate %s", year, linear)
	}
}

func TestCompoundFactorComposability(t *testing.T) {
	rate := annualRay(12)
	for _, split := range [][2]uint64{
		{1, 1},
		{3600, 7200},
		{86_400, 950_400},
		{secondsPerYear / 2, secondsPerYear / 2},
	} {
		s1, s2 := split[0], split[1]
		whole := CompoundFactor(rate, s1+s2)
		parts := rayMul(CompoundFactor(rate, s1), CompoundFactor(rate, s2))

		diff := new(big.Int).Sub(whole, parts)
		diff.Abs(diff)
		// Rounding tolerance: one part in 1e12 of ray precision.
		tolerance := new(big.Int).Quo(whole, big.NewInt(1_000_000_000_000))
		if tolerance.Sign() == 0 {
			tolerance = big.NewInt(1)
		}
		if diff.Cmp(tolerance) > 0 {
			t.Fatalf("split %d+%d drifted: whole=%s parts=%s diff=%s", s1, s2, whole, parts, diff)
		}
	}
}

func TestAccrueIndicesMonotonic(t *testing.T) {
	market := &AssetMarket{
		Asset:          assetA,
		TotalDeposited: amount(10_000),
		TotalBorrowed:  amount(6_000),
		LastUpdateTime: 1_700_000_000,
	}
	seedIndices(market)

	now := market.LastUpdateTime
	prevDeposit := new(big.Int).Set(market.DepositIndex)
	prevBorrow := new(big.Int).Set(market.BorrowIndex)
	for _, elapsed := range []uint64{0, 1, 13, 3600, 86_400, 86_400 * 30} {
		now += elapsed
		AccrueIndices(market, DefaultInterestModel, 1_000, now)
		if market.DepositIndex.Cmp(prevDeposit) < 0 {
			t.Fatalf("deposit index decreased after %d seconds", elapsed)
		}
		if market.BorrowIndex.Cmp(prevBorrow) < 0 {
			t.Fatalf("borrow index decreased after %d seconds", elapsed)
		}
		prevDeposit = new(big.Int).Set(market.DepositIndex)
		prevBorrow = new(big.Int).Set(market.BorrowIndex)
	}
}

func TestAccrueIndicesSkipsEmptyMarket(t *testing.T) {
	market := &AssetMarket{Asset: assetA, LastUpdateTime: 1_700_000_000}
	AccrueIndices(market, DefaultInterestModel, 0, market.LastUpdateTime+86_400)

	if market.DepositIndex.Cmp(ray) != 0 || market.BorrowIndex.Cmp(ray) != 0 {
		t.Fatalf("empty market indices moved: deposit=%s borrow=%s", market.DepositIndex, market.BorrowIndex)
	}
	if market.LastUpdateTime != 1_700_000_000+86_400 {
		t.Fatalf("timestamp not advanced: %d", market.LastUpdateTime)
	}
}

func TestApplyInterestSkipsWhenBorrowIndexUnchanged(t *testing.T) {
	market := &AssetMarket{Asset: assetA}
	seedIndices(market)
	vault := &VaultPosition{Account: accountID(1), Asset: assetA, Deposited: amount(100)}
	seedVault(vault, market)

	before := new(big.Int).Set(vault.Deposited)
	ApplyInterest(vault, market)
	if vault.Deposited.Cmp(before) != 0 {
		t.Fatalf("deposit rescaled without index movement: %s", vault.Deposited)
	}
}

func TestApplyInterestRescalesDebt(t *testing.T) {
	market := &AssetMarket{
		Asset:          assetA,
		TotalDeposited: amount(10_000),
		TotalBorrowed:  amount(6_000),
		LastUpdateTime: 1_700_000_000,
	}
	seedIndices(market)
	vault := &VaultPosition{Account: accountID(1), Asset: assetA, Borrowed: amount(1_000)}
	seedVault(vault, market)

	AccrueIndices(market, DefaultInterestModel, 1_000, market.LastUpdateTime+secondsPerYear)
	ApplyInterest(vault, market)

	if vault.Borrowed.Cmp(amount(1_000)) <= 0 {
		t.Fatalf("debt did not grow after a year: %s", vault.Borrowed)
	}
	if vault.BorrowIndexSnapshot.Cmp(market.BorrowIndex) != 0 {
		t.Fatalf("snapshot not advanced to market index")
	}
}

func TestRayPow(t *testing.T) {
	two := new(big.Int).Mul(ray, big.NewInt(2))
	if got := rayPow(two, 10); got.Cmp(new(big.Int).Mul(ray, big.NewInt(1024))) != 0 {
		t.Fatalf("2^10 = %s", got)
	}
	if got := rayPow(two, 0); got.Cmp(ray) != 0 {
		t.Fatalf("x^0 = %s", got)
	}
	if got := rayPow(ray, 1_000_000); got.Cmp(ray) != 0 {
		t.Fatalf("1^n = %s", got)
	}
}
