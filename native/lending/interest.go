package lending

import "math/big"

const secondsPerYear = 31_536_000

// InterestModel encapsulates the parameters that shape how borrow rates react
// to market utilisation.
type InterestModel struct {
	// BaseRate is the minimum borrow APR applied when utilisation is zero.
	BaseRate *big.Rat
	// Slope1 is the borrow APR increase per unit of utilisation up to the
	// kink point.
	Slope1 *big.Rat
	// Slope2 governs the additional APR increase applied when utilisation
	// exceeds the kink point.
	Slope2 *big.Rat
	// Kink represents the utilisation ratio where the borrow rate slope
	// changes to encourage liquidity.
	Kink *big.Rat
}

// Clone returns a deep copy of the interest model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	clone := &InterestModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	if m.BaseRate != nil {
		clone.BaseRate.Set(m.BaseRate)
	}
	if m.Slope1 != nil {
		clone.Slope1.Set(m.Slope1)
	}
	if m.Slope2 != nil {
		clone.Slope2.Set(m.Slope2)
	}
	if m.Kink != nil {
		clone.Kink.Set(m.Kink)
	}
	return clone
}

// NewInterestModel constructs an interest model from floating point inputs.
//
// The parameters should be provided as decimals, e.g. a 2% base rate is
// expressed as 0.02 and an 80% kink utilisation is 0.8.
func NewInterestModel(baseRate, slope1, slope2, kink float64) *InterestModel {
	model := &InterestModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

// Utilisation computes the market utilisation ratio U = totalBorrowed /
// totalDeposited. When no liquidity exists the utilisation is defined as zero.
func (m *InterestModel) Utilisation(totalBorrowed, totalDeposited *big.Int) *big.Rat {
	if totalBorrowed == nil || totalBorrowed.Sign() == 0 {
		return new(big.Rat)
	}
	if totalDeposited == nil || totalDeposited.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(totalBorrowed, totalDeposited)
}

// BorrowAPR derives the dynamic borrow APR based on the current utilisation.
func (m *InterestModel) BorrowAPR(totalBorrowed, totalDeposited *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	base := cloneRat(m.BaseRate)
	utilisation := m.Utilisation(totalBorrowed, totalDeposited)
	if utilisation.Sign() == 0 {
		return base
	}

	rate := base
	kink := cloneRat(m.Kink)
	slope1 := cloneRat(m.Slope1)
	slope2 := cloneRat(m.Slope2)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		// Linear region before the kink.
		return rate.Add(rate, new(big.Rat).Mul(slope1, utilisation))
	}

	// Rate at the kink using slope1.
	rate.Add(rate, new(big.Rat).Mul(slope1, kink))

	// Additional rate beyond the kink using slope2.
	excess := new(big.Rat).Sub(utilisation, kink)
	if excess.Sign() < 0 {
		excess.SetInt64(0)
	}
	return rate.Add(rate, new(big.Rat).Mul(slope2, excess))
}

// DepositAPR derives the deposit-side APR from the borrow APR, utilisation and
// the combined reserve and protocol fee share. Deposit interest is funded
// entirely by borrow interest, so the deposit index can only move when the
// borrow index does. The fee share is expected in basis points.
func (m *InterestModel) DepositAPR(totalBorrowed, totalDeposited *big.Int, feeShareBps uint64) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}

	borrowAPR := m.BorrowAPR(totalBorrowed, totalDeposited)
	if borrowAPR.Sign() == 0 {
		return new(big.Rat)
	}

	utilisation := m.Utilisation(totalBorrowed, totalDeposited)
	if utilisation.Sign() == 0 {
		return new(big.Rat)
	}

	if feeShareBps > 10_000 {
		feeShareBps = 10_000
	}
	feeShare := new(big.Rat).SetFrac(big.NewInt(int64(feeShareBps)), big.NewInt(10_000))
	oneMinusFee := new(big.Rat).Sub(big.NewRat(1, 1), feeShare)
	if oneMinusFee.Sign() < 0 {
		oneMinusFee.SetInt64(0)
	}

	depositAPR := new(big.Rat).Mul(borrowAPR, utilisation)
	depositAPR.Mul(depositAPR, oneMinusFee)
	return depositAPR
}

// CompoundFactor converts an annualised ray rate into the cumulative ray
// growth factor over the elapsed seconds. The annual linear rate is folded
// into a per-second compounding base and raised to the elapsed second count,
// approximating continuous compounding with integer-only arithmetic.
func CompoundFactor(annualRateRay *big.Int, elapsed uint64) *big.Int {
	if annualRateRay == nil || annualRateRay.Sign() == 0 || elapsed == 0 {
		return new(big.Int).Set(ray)
	}
	// base = (secondsPerYear*ray + rate) / secondsPerYear
	base := new(big.Int).Mul(ray, big.NewInt(secondsPerYear))
	base.Add(base, annualRateRay)
	base.Quo(base, big.NewInt(secondsPerYear))
	return rayPow(base, elapsed)
}

// AccrueIndices advances a market's deposit and borrow indices to now using
// the supplied model. The pull is lazy: when no time has elapsed the stored
// indices are returned untouched, and when either total is zero only the
// timestamp moves (there is nothing to compound and the rate model would
// divide by zero).
func AccrueIndices(market *AssetMarket, model *InterestModel, feeShareBps uint64, now uint64) {
	if market == nil {
		return
	}
	seedIndices(market)
	if now <= market.LastUpdateTime {
		return
	}
	elapsed := now - market.LastUpdateTime
	if model == nil ||
		market.TotalBorrowed == nil || market.TotalBorrowed.Sign() == 0 ||
		market.TotalDeposited == nil || market.TotalDeposited.Sign() == 0 {
		market.LastUpdateTime = now
		return
	}

	borrowRate := ratToRay(model.BorrowAPR(market.TotalBorrowed, market.TotalDeposited))
	depositRate := ratToRay(model.DepositAPR(market.TotalBorrowed, market.TotalDeposited, feeShareBps))

	borrowFactor := CompoundFactor(borrowRate, elapsed)
	depositFactor := CompoundFactor(depositRate, elapsed)

	market.BorrowIndex = rayMul(market.BorrowIndex, borrowFactor)
	market.DepositIndex = rayMul(market.DepositIndex, depositFactor)
	market.TotalBorrowed = rayMul(market.TotalBorrowed, borrowFactor)
	market.TotalDeposited = rayMul(market.TotalDeposited, depositFactor)
	market.LastUpdateTime = now
}

// ApplyInterest rescales a vault's raw amounts to the market's current
// indices. The deposit side is skipped when the borrow index has not moved:
// deposit interest derives from borrow interest, so the deposit index cannot
// change alone.
func ApplyInterest(vault *VaultPosition, market *AssetMarket) {
	if vault == nil || market == nil {
		return
	}
	seedVault(vault, market)
	if vault.BorrowIndexSnapshot.Cmp(market.BorrowIndex) == 0 {
		return
	}
	vault.Borrowed = rescaleByIndex(vault.Borrowed, vault.BorrowIndexSnapshot, market.BorrowIndex)
	vault.BorrowIndexSnapshot = new(big.Int).Set(market.BorrowIndex)
	if vault.DepositIndexSnapshot.Cmp(market.DepositIndex) != 0 {
		vault.Deposited = rescaleByIndex(vault.Deposited, vault.DepositIndexSnapshot, market.DepositIndex)
		vault.DepositIndexSnapshot = new(big.Int).Set(market.DepositIndex)
	}
}

func seedIndices(market *AssetMarket) {
	if market.TotalDeposited == nil {
		market.TotalDeposited = big.NewInt(0)
	}
	if market.TotalBorrowed == nil {
		market.TotalBorrowed = big.NewInt(0)
	}
	if market.DepositIndex == nil || market.DepositIndex.Sign() == 0 {
		market.DepositIndex = new(big.Int).Set(ray)
	}
	if market.BorrowIndex == nil || market.BorrowIndex.Sign() == 0 {
		market.BorrowIndex = new(big.Int).Set(ray)
	}
}

func seedVault(vault *VaultPosition, market *AssetMarket) {
	if vault.Deposited == nil {
		vault.Deposited = big.NewInt(0)
	}
	if vault.Borrowed == nil {
		vault.Borrowed = big.NewInt(0)
	}
	if vault.DepositIndexSnapshot == nil || vault.DepositIndexSnapshot.Sign() == 0 {
		vault.DepositIndexSnapshot = new(big.Int).Set(market.DepositIndex)
	}
	if vault.BorrowIndexSnapshot == nil || vault.BorrowIndexSnapshot.Sign() == 0 {
		vault.BorrowIndexSnapshot = new(big.Int).Set(market.BorrowIndex)
	}
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

// DefaultInterestModel provides a reasonable starting configuration featuring a
// kinked interest rate curve with a modest base rate.
var DefaultInterestModel = NewInterestModel(0.02, 0.15, 0.6, 0.8)
