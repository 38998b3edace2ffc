package hub

import (
	"errors"
	"math/big"
	"testing"

	"townsq/native/bridge"
	"townsq/native/lending"
	"townsq/storage"
)

const testAsset = "TSQA"

type staticOracle struct{}

func (staticOracle) Quote(asset string) (lending.OracleQuote, error) {
	return lending.OracleQuote{
		Price:      big.NewInt(100_000_000),
		Confidence: big.NewInt(1_000_000),
		Decimals:   8,
	}, nil
}

func newTestEngine(t *testing.T) *lending.Engine {
	t.Helper()
	engine := lending.NewEngine(lending.RiskParameters{PriceStdDevs: 2})
	engine.SetState(lending.NewState(storage.NewMemDB()))
	engine.SetInterestModel(lending.DefaultInterestModel)
	engine.SetOracle(staticOracle{})
	engine.SetTimestamp(1_700_000_000)
	if err := engine.RegisterAsset(lending.AssetParams{Asset: testAsset, Decimals: 6}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	return engine
}

func instructionMessage(t *testing.T, action uint16, amount int64) *bridge.MessageReceived {
	t.Helper()
	data, err := EncodeInstruction(Instruction{Asset: testAsset, Amount: big.NewInt(amount)})
	if err != nil {
		t.Fatalf("encode instruction: %v", err)
	}
	msg := &bridge.MessageReceived{
		MessageID:     [32]byte{1},
		SourceChainID: 2,
	}
	msg.Payload.Action = action
	msg.Payload.Account = [32]byte{0xaa}
	msg.Payload.Data = data
	return msg
}

func TestInstructionRoundTrip(t *testing.T) {
	data, err := EncodeInstruction(Instruction{Asset: testAsset, Amount: big.NewInt(42)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	inst, err := DecodeInstruction(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inst.Asset != testAsset || inst.Amount.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("instruction did not survive: %+v", inst)
	}

	if _, err := DecodeInstruction(data[:len(data)-1]); !errors.Is(err, errBadInstruction) {
		t.Fatalf("expected truncation rejection, got %v", err)
	}
	if _, err := DecodeInstruction(append(data, 0)); !errors.Is(err, errBadInstruction) {
		t.Fatalf("expected extension rejection, got %v", err)
	}
}

func TestHandlerDepositAndWithdraw(t *testing.T) {
	engine := newTestEngine(t)
	handler := NewHandler(engine)

	if err := handler.HandleMessage(instructionMessage(t, ActionDeposit, 1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := handler.HandleMessage(instructionMessage(t, ActionWithdraw, 400_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Withdrawing more than remains must surface the engine's rejection so
	// the router records it as a failed message.
	if err := handler.HandleMessage(instructionMessage(t, ActionWithdraw, 700_000)); err == nil {
		t.Fatalf("over-withdraw must fail")
	}
}

func TestHandlerRejectsUnknownAction(t *testing.T) {
	handler := NewHandler(newTestEngine(t))
	if err := handler.HandleMessage(instructionMessage(t, 99, 1)); !errors.Is(err, errUnknownAction) {
		t.Fatalf("expected unknown action, got %v", err)
	}
}

func TestHandlerRetryReexecutes(t *testing.T) {
	engine := newTestEngine(t)
	handler := NewHandler(engine)

	msg := instructionMessage(t, ActionWithdraw, 500_000)
	if err := handler.HandleMessage(msg); err == nil {
		t.Fatalf("withdraw without deposit must fail")
	}
	if err := handler.HandleMessage(instructionMessage(t, ActionDeposit, 1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := handler.RetryMessage(msg, bridge.GenericAddress{}, nil); err != nil {
		t.Fatalf("retry after funding should succeed: %v", err)
	}
}

func TestHandlerReverseOnlyFundingActions(t *testing.T) {
	handler := NewHandler(newTestEngine(t))
	if err := handler.ReverseMessage(instructionMessage(t, ActionDeposit, 1), bridge.GenericAddress{}, nil); err != nil {
		t.Fatalf("deposit reverse: %v", err)
	}
	if err := handler.ReverseMessage(instructionMessage(t, ActionBorrow, 1), bridge.GenericAddress{}, nil); !errors.Is(err, errNotReversible) {
		t.Fatalf("expected irreversible action, got %v", err)
	}
}
