package lending

import "math/big"

// AccountID identifies a protocol participant across chains. Spoke-side users
// are mapped into this 32-byte space by the bridge before any hub accounting
// runs.
type AccountID [32]byte

// AssetMarket captures the global accounting state for a single asset on the
// hub. Amount values are denominated in the asset's smallest unit and
// expressed as big integers to match on-chain precision.
type AssetMarket struct {
	// Asset is the registered asset identifier.
	Asset string
	// TotalDeposited is the aggregate liquidity currently deposited by all
	// accounts, inclusive of accrued deposit interest.
	TotalDeposited *big.Int
	// TotalBorrowed tracks the outstanding borrows across all accounts,
	// inclusive of accrued borrow interest.
	TotalBorrowed *big.Int
	// DepositIndex is the cumulative interest index applied to deposits,
	// in ray precision. Monotonically non-decreasing, seeded to one ray.
	DepositIndex *big.Int
	// BorrowIndex is the cumulative interest index applied to borrows, in
	// ray precision. Monotonically non-decreasing, seeded to one ray.
	BorrowIndex *big.Int
	// LastUpdateTime records the unix timestamp when the indices were last
	// refreshed.
	LastUpdateTime uint64
}

// VaultPosition maintains the lending position of one account in one asset.
// Raw amounts are stored together with the index values observed at the last
// touch so interest can be applied lazily by rescaling.
type VaultPosition struct {
	Account AccountID
	Asset   string
	// Deposited is the deposit principal as of the snapshot indices.
	Deposited *big.Int
	// Borrowed is the borrow principal as of the snapshot indices.
	Borrowed *big.Int
	// DepositIndexSnapshot is the deposit index at the last position update.
	DepositIndexSnapshot *big.Int
	// BorrowIndexSnapshot is the borrow index at the last position update.
	BorrowIndexSnapshot *big.Int
}

// AssetParams groups the governance controlled settings for one asset.
type AssetParams struct {
	// Asset is the registered asset identifier.
	Asset string
	// Decimals is the asset's native decimal precision.
	Decimals uint8
	// DepositCollateralRatio discounts deposit notionals when counting
	// collateral, in ray precision (>= one ray).
	DepositCollateralRatio *big.Int
	// BorrowCollateralRatio inflates borrow notionals when counting debt,
	// in ray precision (>= one ray).
	BorrowCollateralRatio *big.Int
	// MaxLiquidationBonus caps the received-to-repaid notional multiple a
	// liquidator may take for this asset, in ray precision (>= one ray).
	MaxLiquidationBonus *big.Int
	// BorrowCap bounds the aggregate borrow exposure. Zero disables the cap.
	BorrowCap *big.Int
}

// Clone returns a deep copy of the asset parameters.
func (p AssetParams) Clone() AssetParams {
	clone := AssetParams{Asset: p.Asset, Decimals: p.Decimals}
	if p.DepositCollateralRatio != nil {
		clone.DepositCollateralRatio = new(big.Int).Set(p.DepositCollateralRatio)
	}
	if p.BorrowCollateralRatio != nil {
		clone.BorrowCollateralRatio = new(big.Int).Set(p.BorrowCollateralRatio)
	}
	if p.MaxLiquidationBonus != nil {
		clone.MaxLiquidationBonus = new(big.Int).Set(p.MaxLiquidationBonus)
	}
	if p.BorrowCap != nil {
		clone.BorrowCap = new(big.Int).Set(p.BorrowCap)
	}
	return clone
}

// RiskParameters groups the protocol-wide safety limits governing lending
// activity.
type RiskParameters struct {
	// PriceStdDevs is the confidence-interval multiplier applied when
	// deriving conservative price bounds from oracle quotes.
	PriceStdDevs uint64
	// MaxHealthFactor bounds the post-liquidation ratio of effective
	// deposits to effective borrows, in ray precision. Liquidations that
	// would push health above it are rejected as over-liquidation.
	MaxHealthFactor *big.Int
	// ReserveFactorBps is the share of borrow interest withheld from
	// depositors and routed to protocol reserves, in basis points.
	ReserveFactorBps uint64
	// ProtocolFeeBps is the additional protocol fee on borrow interest, in
	// basis points.
	ProtocolFeeBps uint64
}

// LiquidationAsset describes a single asset leg of a liquidation: the debt
// repaid by the liquidator and the collateral received in exchange.
type LiquidationAsset struct {
	Asset    string
	Repaid   *big.Int
	Received *big.Int
}

// LiquidationInput is the ephemeral, caller-supplied description of a
// liquidation. It is validated against the registry and vault state before any
// balance moves.
type LiquidationInput struct {
	Account AccountID
	Assets  []LiquidationAsset
}
