package config

// Risk captures the global risk knobs applied across every asset market.
type Risk struct {
	// PriceStdDevs widens oracle quotes by this many confidence intervals
	// when valuing positions.
	PriceStdDevs uint64
	// MaxHealthFactorBps caps the post-liquidation health of a position in
	// basis points of its remaining debt.
	MaxHealthFactorBps uint64
	// ReserveFactorBps is the share of borrow interest kept as reserves.
	ReserveFactorBps uint64
	// ProtocolFeeBps is the share of borrow interest taken as protocol fee.
	ProtocolFeeBps uint64
}

// Interest configures the kinked rate model shared by all markets.
type Interest struct {
	BaseRate float64
	Slope1   float64
	Slope2   float64
	Kink     float64
}

// Asset lists one market with its collateral parameters. Ratios are in basis
// points so operators tune them without ray arithmetic.
type Asset struct {
	Symbol                    string
	Decimals                  uint8
	DepositCollateralRatioBps uint64
	BorrowCollateralRatioBps  uint64
	MaxLiquidationBonusBps    uint64
	BorrowCap                 string
}

// Chain lists one remote chain the bridge talks to.
type Chain struct {
	ChainID       uint16
	TransportID   uint16
	DomainID      uint32
	RemoteAdapter string
	Available     bool
}

// Oracle configures the price source consulted for collateral valuation.
// Static mode serves fixed quotes, intended for local networks and tests.
type Oracle struct {
	Mode   string
	Prices []OraclePrice
}

// OraclePrice is one static quote: integer price and confidence at the given
// decimal scale.
type OraclePrice struct {
	Asset      string
	Price      string
	Confidence string
	Decimals   uint8
}

// Pauses gates modules without restarting the node.
type Pauses struct {
	Lending bool
	Bridge  bool
}

// DefaultRisk returns the risk knobs used when no configuration exists.
func DefaultRisk() Risk {
	return Risk{
		PriceStdDevs:       2,
		MaxHealthFactorBps: 10_500,
		ReserveFactorBps:   1_000,
		ProtocolFeeBps:     500,
	}
}

// DefaultInterest returns the rate model used when no configuration exists.
func DefaultInterest() Interest {
	return Interest{BaseRate: 0.02, Slope1: 0.15, Slope2: 0.6, Kink: 0.8}
}
