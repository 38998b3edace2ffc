package lending

import (
	"errors"
	"math/big"
	"strings"

	"townsq/core/events"
	"townsq/core/types"
	nativecommon "townsq/native/common"
	"townsq/observability/metrics"
)

var (
	errNilState           = errors.New("lending engine: state not configured")
	errInvalidAmount      = errors.New("lending engine: amount must be positive")
	errAssetNotRegistered = errors.New("lending engine: asset not registered")
	errNoDebtToRepay      = errors.New("lending engine: no outstanding debt to repay")
	errRepayExceedsDebt   = errors.New("lending engine: repaid amount exceeds vault debt")
	errSeizeExceedsVault  = errors.New("lending engine: received amount exceeds vault collateral")
)

const moduleName = "lending"

type engineState interface {
	GetAssetMarket(asset string) (*AssetMarket, error)
	PutAssetMarket(asset string, market *AssetMarket) error
	GetVault(account AccountID, asset string) (*VaultPosition, error)
	PutVault(vault *VaultPosition) error
}

type lendingEvent struct {
	evt *types.Event
}

func (e lendingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lendingEvent) Event() *types.Event { return e.evt }

// Engine orchestrates the hub-side state transitions for the lending module.
// It accrues interest lazily on every asset-touching operation and enforces
// the collateralization and liquidation invariants before moving balances.
type Engine struct {
	state         engineState
	params        RiskParameters
	interestModel *InterestModel
	oracle        PriceOracle
	assets        map[string]AssetParams
	timestamp     uint64
	emitter       events.Emitter
	pauses        nativecommon.PauseView
}

// NewEngine constructs a lending engine configured with the supplied risk
// parameters. Callers wire state, oracle, model and assets before use.
func NewEngine(params RiskParameters) *Engine {
	if params.MaxHealthFactor == nil || params.MaxHealthFactor.Sign() == 0 {
		params.MaxHealthFactor = new(big.Int).Set(ray)
	}
	return &Engine{
		params:  params,
		assets:  make(map[string]AssetParams),
		emitter: events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetInterestModel configures the interest rate model used by the engine.
func (e *Engine) SetInterestModel(model *InterestModel) {
	if e == nil {
		return
	}
	if model != nil {
		e.interestModel = model.Clone()
	} else {
		e.interestModel = nil
	}
}

// SetOracle wires the price oracle consulted for collateral valuation.
func (e *Engine) SetOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetTimestamp records the unix timestamp used when computing accrual deltas.
func (e *Engine) SetTimestamp(ts uint64) {
	if e == nil {
		return
	}
	e.timestamp = ts
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// RegisterAsset adds or replaces the governance parameters for an asset.
func (e *Engine) RegisterAsset(params AssetParams) error {
	if e == nil {
		return errNilState
	}
	asset := strings.TrimSpace(params.Asset)
	if asset == "" {
		return errAssetNotRegistered
	}
	params.Asset = asset
	if params.DepositCollateralRatio == nil || params.DepositCollateralRatio.Sign() == 0 {
		params.DepositCollateralRatio = new(big.Int).Set(ray)
	}
	if params.BorrowCollateralRatio == nil || params.BorrowCollateralRatio.Sign() == 0 {
		params.BorrowCollateralRatio = new(big.Int).Set(ray)
	}
	if params.MaxLiquidationBonus == nil || params.MaxLiquidationBonus.Sign() == 0 {
		params.MaxLiquidationBonus = new(big.Int).Set(ray)
	}
	e.assets[asset] = params.Clone()
	return nil
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lendingEvent{evt: event})
}

func (e *Engine) feeShareBps() uint64 {
	combined := e.params.ReserveFactorBps + e.params.ProtocolFeeBps
	if combined > 10_000 {
		combined = 10_000
	}
	return combined
}

// Deposit credits the account's vault with the supplied amount and grows the
// asset's deposit total. Interest is accrued before the position changes.
func (e *Engine) Deposit(account AccountID, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	market, vault, err := e.touch(account, asset)
	if err != nil {
		return err
	}

	vault.Deposited = new(big.Int).Add(vault.Deposited, amount)
	market.TotalDeposited = new(big.Int).Add(market.TotalDeposited, amount)

	if err := e.persist(market, vault); err != nil {
		return err
	}
	metrics.Lending().ObserveOperation("deposit")
	e.emit(NewDepositEvent(account, asset, amount))
	return nil
}

// Withdraw releases deposited funds back to the account, provided the vault
// holds them, global reserves stay intact and the position stays
// collateralized.
func (e *Engine) Withdraw(account AccountID, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	market, vault, err := e.touch(account, asset)
	if err != nil {
		return err
	}
	if err := e.checkAllowedToWithdraw(vault, market, amount, e.timestamp); err != nil {
		metrics.Lending().ObserveRejection("withdraw")
		return err
	}

	vault.Deposited = new(big.Int).Sub(vault.Deposited, amount)
	market.TotalDeposited = new(big.Int).Sub(market.TotalDeposited, amount)

	if err := e.persist(market, vault); err != nil {
		return err
	}
	metrics.Lending().ObserveOperation("withdraw")
	e.emit(NewWithdrawEvent(account, asset, amount))
	return nil
}

// Borrow draws liquidity from the asset market against the account's
// collateral across all assets.
func (e *Engine) Borrow(account AccountID, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	market, vault, err := e.touch(account, asset)
	if err != nil {
		return err
	}
	if err := e.checkAllowedToBorrow(account, market, asset, amount, e.timestamp); err != nil {
		metrics.Lending().ObserveRejection("borrow")
		return err
	}

	vault.Borrowed = new(big.Int).Add(vault.Borrowed, amount)
	market.TotalBorrowed = new(big.Int).Add(market.TotalBorrowed, amount)

	if err := e.persist(market, vault); err != nil {
		return err
	}
	metrics.Lending().ObserveOperation("borrow")
	e.emit(NewBorrowEvent(account, asset, amount))
	return nil
}

// Repay reduces the account's outstanding debt. Overpayment is clamped to the
// debt; the actual amount repaid is returned.
func (e *Engine) Repay(account AccountID, asset string, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	market, vault, err := e.touch(account, asset)
	if err != nil {
		return nil, err
	}
	if vault.Borrowed.Sign() == 0 {
		return nil, errNoDebtToRepay
	}

	repaid := new(big.Int).Set(amount)
	if repaid.Cmp(vault.Borrowed) > 0 {
		repaid = new(big.Int).Set(vault.Borrowed)
	}

	vault.Borrowed = new(big.Int).Sub(vault.Borrowed, repaid)
	market.TotalBorrowed = new(big.Int).Sub(market.TotalBorrowed, repaid)

	if err := e.persist(market, vault); err != nil {
		return nil, err
	}
	metrics.Lending().ObserveOperation("repay")
	e.emit(NewRepayEvent(account, asset, repaid))
	return repaid, nil
}

// Liquidate lets a third party repay an underwater account's debt in exchange
// for a bonus-bounded share of its collateral. Every leg of the input is
// validated before any balance moves.
func (e *Engine) Liquidate(liquidator AccountID, input LiquidationInput) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	plan, err := e.checkAllowedToLiquidate(input, e.timestamp)
	if err != nil {
		metrics.Lending().ObserveRejection("liquidate")
		return err
	}

	// The plan holds the accrued markets and the borrower vaults with every
	// leg already applied. Credit the liquidator, then persist the staged
	// state in one pass.
	liqVaults := make(map[string]*VaultPosition, len(input.Assets))
	for _, leg := range input.Assets {
		if leg.Received.Sign() == 0 {
			continue
		}
		liqVault, ok := liqVaults[leg.Asset]
		if !ok {
			liqVault, err = e.ensureVault(liquidator, leg.Asset, plan.markets[leg.Asset])
			if err != nil {
				return err
			}
			ApplyInterest(liqVault, plan.markets[leg.Asset])
			liqVaults[leg.Asset] = liqVault
		}
		liqVault.Deposited = new(big.Int).Add(liqVault.Deposited, leg.Received)
	}

	for asset, market := range plan.markets {
		e.observeMarket(market)
		if err := e.persist(market, plan.vaults[asset]); err != nil {
			return err
		}
	}
	for _, liqVault := range liqVaults {
		if err := e.state.PutVault(liqVault); err != nil {
			return err
		}
	}
	metrics.Lending().ObserveLiquidation()
	e.emit(NewLiquidationEvent(liquidator, input))
	return nil
}

// touch loads the market and vault for an operation, accrues interest to the
// engine's current timestamp and applies it to the vault.
func (e *Engine) touch(account AccountID, asset string) (*AssetMarket, *VaultPosition, error) {
	market, err := e.ensureMarket(asset)
	if err != nil {
		return nil, nil, err
	}
	AccrueIndices(market, e.interestModel, e.feeShareBps(), e.timestamp)
	e.observeMarket(market)
	vault, err := e.ensureVault(account, asset, market)
	if err != nil {
		return nil, nil, err
	}
	ApplyInterest(vault, market)
	return market, vault, nil
}

func (e *Engine) observeMarket(market *AssetMarket) {
	index, _ := new(big.Float).Quo(new(big.Float).SetInt(market.BorrowIndex), new(big.Float).SetInt(ray)).Float64()
	metrics.Lending().SetBorrowIndex(market.Asset, index)
	if e.interestModel != nil {
		util, _ := e.interestModel.Utilisation(market.TotalBorrowed, market.TotalDeposited).Float64()
		metrics.Lending().SetUtilisation(market.Asset, util)
	}
}

func (e *Engine) ensureMarket(asset string) (*AssetMarket, error) {
	asset = strings.TrimSpace(asset)
	if _, ok := e.assets[asset]; !ok {
		return nil, errAssetNotRegistered
	}
	market, err := e.state.GetAssetMarket(asset)
	if err != nil {
		return nil, err
	}
	if market == nil {
		market = &AssetMarket{Asset: asset, LastUpdateTime: e.timestamp}
	}
	seedIndices(market)
	return market, nil
}

func (e *Engine) ensureVault(account AccountID, asset string, market *AssetMarket) (*VaultPosition, error) {
	vault, err := e.state.GetVault(account, asset)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		vault = &VaultPosition{Account: account, Asset: asset}
	}
	seedVault(vault, market)
	return vault, nil
}

func (e *Engine) persist(market *AssetMarket, vault *VaultPosition) error {
	if err := e.state.PutVault(vault); err != nil {
		return err
	}
	return e.state.PutAssetMarket(market.Asset, market)
}
