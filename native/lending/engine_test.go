package lending

import (
	"encoding/hex"
	"math/big"
	"testing"
)

type mockEngineState struct {
	markets map[string]*AssetMarket
	vaults  map[string]*VaultPosition
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		markets: make(map[string]*AssetMarket),
		vaults:  make(map[string]*VaultPosition),
	}
}

func (m *mockEngineState) vaultKey(account AccountID, asset string) string {
	return hex.EncodeToString(account[:]) + "/" + asset
}

func (m *mockEngineState) GetAssetMarket(asset string) (*AssetMarket, error) {
	return m.markets[asset], nil
}

func (m *mockEngineState) PutAssetMarket(asset string, market *AssetMarket) error {
	m.markets[asset] = market
	return nil
}

func (m *mockEngineState) GetVault(account AccountID, asset string) (*VaultPosition, error) {
	return m.vaults[m.vaultKey(account, asset)], nil
}

func (m *mockEngineState) PutVault(vault *VaultPosition) error {
	if vault == nil {
		return nil
	}
	m.vaults[m.vaultKey(vault.Account, vault.Asset)] = vault
	return nil
}

type mockOracle struct {
	quotes map[string]OracleQuote
}

func (o *mockOracle) Quote(asset string) (OracleQuote, error) {
	quote, ok := o.quotes[asset]
	if !ok {
		return OracleQuote{}, errUnknownOracleAsset
	}
	return quote, nil
}

func (o *mockOracle) setPrice(asset string, price int64) {
	o.quotes[asset] = OracleQuote{
		Price:      big.NewInt(price),
		Confidence: big.NewInt(0),
		Decimals:   8,
	}
}

func accountID(b byte) AccountID {
	var id AccountID
	id[31] = b
	return id
}

const (
	assetA = "TSQA"
	assetB = "TSQB"
)

func newTestEngine(t *testing.T) (*Engine, *mockEngineState, *mockOracle) {
	t.Helper()
	engine := NewEngine(RiskParameters{
		PriceStdDevs:    2,
		MaxHealthFactor: new(big.Int).Set(ray),
	})
	state := newMockEngineState()
	engine.SetState(state)
	engine.SetInterestModel(DefaultInterestModel)
	oracle := &mockOracle{quotes: make(map[string]OracleQuote)}
	oracle.setPrice(assetA, 100_000_000)
	oracle.setPrice(assetB, 100_000_000)
	engine.SetOracle(oracle)
	for _, asset := range []string{assetA, assetB} {
		if err := engine.RegisterAsset(AssetParams{Asset: asset, Decimals: 6}); err != nil {
			t.Fatalf("register asset %s: %v", asset, err)
		}
	}
	engine.SetTimestamp(1_700_000_000)
	return engine, state, oracle
}

func amount(units int64) *big.Int {
	value := big.NewInt(units)
	return value.Mul(value, big.NewInt(1_000_000))
}

func TestDepositAndWithdrawRoundTrip(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	user := accountID(1)

	if err := engine.Deposit(user, assetA, amount(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	vault, err := state.GetVault(user, assetA)
	if err != nil || vault == nil {
		t.Fatalf("vault missing after deposit: %v", err)
	}
	if vault.Deposited.Cmp(amount(1_000)) != 0 {
		t.Fatalf("unexpected deposit balance: %s", vault.Deposited)
	}

	if err := engine.Withdraw(user, assetA, amount(1_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	vault, _ = state.GetVault(user, assetA)
	if vault.Deposited.Sign() != 0 {
		t.Fatalf("expected empty vault, got %s", vault.Deposited)
	}
}

func TestWithdrawBeyondDepositRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	user := accountID(1)

	if err := engine.Deposit(user, assetA, amount(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Withdraw(user, assetA, amount(101)); err != errInsufficientDeposit {
		t.Fatalf("expected errInsufficientDeposit, got %v", err)
	}
}

func TestBorrowCollateralizationBoundary(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	borrower := accountID(1)
	supplier := accountID(2)

	if err := engine.Deposit(borrower, assetA, amount(1_000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if err := engine.Deposit(supplier, assetB, amount(10_000)); err != nil {
		t.Fatalf("deposit liquidity: %v", err)
	}

	// Exact equality of effective deposits and borrows is allowed.
	if err := engine.Borrow(borrower, assetB, amount(1_000)); err != nil {
		t.Fatalf("borrow at boundary: %v", err)
	}
	// One unit beyond the boundary is rejected.
	if err := engine.Borrow(borrower, assetB, big.NewInt(1)); err != errUndercollateralized {
		t.Fatalf("expected errUndercollateralized, got %v", err)
	}
}

func TestBorrowRespectsGlobalReserves(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	borrower := accountID(1)

	if err := engine.Deposit(borrower, assetA, amount(10_000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	// No liquidity was ever deposited in asset B.
	if err := engine.Borrow(borrower, assetB, amount(1)); err != errInsufficientReserves {
		t.Fatalf("expected errInsufficientReserves, got %v", err)
	}
}

func TestBorrowCapEnforced(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	borrower := accountID(1)
	supplier := accountID(2)

	if err := engine.RegisterAsset(AssetParams{
		Asset:     assetB,
		Decimals:  6,
		BorrowCap: amount(500),
	}); err != nil {
		t.Fatalf("register capped asset: %v", err)
	}
	if err := engine.Deposit(borrower, assetA, amount(10_000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if err := engine.Deposit(supplier, assetB, amount(10_000)); err != nil {
		t.Fatalf("deposit liquidity: %v", err)
	}
	if err := engine.Borrow(borrower, assetB, amount(501)); err != errBorrowCapExceeded {
		t.Fatalf("expected errBorrowCapExceeded, got %v", err)
	}
	if err := engine.Borrow(borrower, assetB, amount(500)); err != nil {
		t.Fatalf("borrow within cap: %v", err)
	}
}

func TestRepayClampsToOutstandingDebt(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	borrower := accountID(1)
	supplier := accountID(2)

	if err := engine.Deposit(borrower, assetA, amount(1_000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if err := engine.Deposit(supplier, assetB, amount(10_000)); err != nil {
		t.Fatalf("deposit liquidity: %v", err)
	}
	if err := engine.Borrow(borrower, assetB, amount(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	repaid, err := engine.Repay(borrower, assetB, amount(800))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.Cmp(amount(500)) != 0 {
		t.Fatalf("expected clamped repay of 500 units, got %s", repaid)
	}
	vault, _ := state.GetVault(borrower, assetB)
	if vault.Borrowed.Sign() != 0 {
		t.Fatalf("expected zero debt, got %s", vault.Borrowed)
	}
	if _, err := engine.Repay(borrower, assetB, amount(1)); err != errNoDebtToRepay {
		t.Fatalf("expected errNoDebtToRepay, got %v", err)
	}
}

type pausedView struct{}

func (pausedView) IsPaused(module string) bool { return module == moduleName }

func TestPausedModuleRejectsOperations(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.SetPauses(pausedView{})
	if err := engine.Deposit(accountID(1), assetA, amount(1)); err == nil {
		t.Fatal("expected pause guard error")
	}
}
