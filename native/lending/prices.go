package lending

import (
	"errors"
	"math/big"
)

var (
	errNilOracle          = errors.New("lending prices: oracle not configured")
	errConfidenceTooWide  = errors.New("lending prices: confidence interval swallows price")
	errNonPositivePrice   = errors.New("lending prices: oracle price not positive")
	errUnknownOracleAsset = errors.New("lending prices: asset not served by oracle")
)

// notionalDecimals is the common decimal scale every notional value is
// normalised to before limits are compared across assets.
const notionalDecimals = 18

// OracleQuote is the raw observation returned by a price oracle: a point price
// with an attached confidence interval, both expressed at Decimals precision.
type OracleQuote struct {
	Price      *big.Int
	Confidence *big.Int
	Decimals   uint8
}

// PriceOracle resolves the current price observation for a registered asset.
// Implementations are treated as trusted external collaborators.
type PriceOracle interface {
	Quote(asset string) (OracleQuote, error)
}

// PriceBounds carries the conservative protocol-favourable prices derived from
// an oracle quote: collateral is valued below the point price and debt above
// it, each by the configured number of confidence standard deviations.
type PriceBounds struct {
	Collateral *big.Int
	Debt       *big.Int
	Decimals   uint8
}

// Bounds derives protocol-favourable price bounds from a raw quote. The call
// fails when the confidence interval is wide enough to drive the collateral
// bound to zero or below, since such a price cannot safely value collateral.
func Bounds(quote OracleQuote, stdDevs uint64) (PriceBounds, error) {
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return PriceBounds{}, errNonPositivePrice
	}
	spread := big.NewInt(0)
	if quote.Confidence != nil && quote.Confidence.Sign() > 0 && stdDevs > 0 {
		spread = new(big.Int).Mul(quote.Confidence, new(big.Int).SetUint64(stdDevs))
	}
	collateral := new(big.Int).Sub(quote.Price, spread)
	if collateral.Sign() <= 0 {
		return PriceBounds{}, errConfidenceTooWide
	}
	debt := new(big.Int).Add(quote.Price, spread)
	return PriceBounds{Collateral: collateral, Debt: debt, Decimals: quote.Decimals}, nil
}

// StaticOracle serves fixed quotes from an in-memory table. It backs local
// networks and tests, not production price feeds.
type StaticOracle map[string]OracleQuote

func (o StaticOracle) Quote(asset string) (OracleQuote, error) {
	quote, ok := o[asset]
	if !ok {
		return OracleQuote{}, errUnknownOracleAsset
	}
	return quote, nil
}

// Notional values an asset amount at the given price, normalised to the common
// notional decimal scale. The product is computed before any rescaling
// division so no precision is lost mid-calculation.
func Notional(amount, price *big.Int, assetDecimals, priceDecimals uint8) *big.Int {
	if amount == nil || amount.Sign() == 0 || price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	have := int(assetDecimals) + int(priceDecimals)
	switch {
	case have < notionalDecimals:
		value.Mul(value, pow10(notionalDecimals-have))
	case have > notionalDecimals:
		value.Quo(value, pow10(have-notionalDecimals))
	}
	return value
}
