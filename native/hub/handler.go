package hub

import (
	"encoding/binary"
	"errors"
	"math/big"

	"townsq/native/bridge"
	"townsq/native/lending"
)

// Action codes carried in cross-chain payloads.
const (
	ActionDeposit uint16 = iota + 1
	ActionRepay
	ActionWithdraw
	ActionBorrow
)

var (
	errNilEngine      = errors.New("hub handler: lending engine not configured")
	errUnknownAction  = errors.New("hub handler: unknown action")
	errBadInstruction = errors.New("hub handler: malformed instruction data")
	errNotReversible  = errors.New("hub handler: action cannot be reversed")
)

// Instruction is the decoded body of a lending payload: which asset to act
// on and how much.
type Instruction struct {
	Asset  string
	Amount *big.Int
}

// EncodeInstruction packs an instruction into payload data: a u16
// length-prefixed asset symbol followed by a 32-byte big-endian amount.
func EncodeInstruction(inst Instruction) ([]byte, error) {
	if inst.Amount == nil || inst.Amount.Sign() < 0 || inst.Amount.BitLen() > 256 {
		return nil, errBadInstruction
	}
	asset := []byte(inst.Asset)
	out := make([]byte, 0, 2+len(asset)+32)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(asset)))
	out = append(out, length[:]...)
	out = append(out, asset...)
	var amount [32]byte
	inst.Amount.FillBytes(amount[:])
	return append(out, amount[:]...), nil
}

// DecodeInstruction is the inverse of EncodeInstruction. Inputs that are not
// exactly one instruction long are rejected.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) < 2 {
		return Instruction{}, errBadInstruction
	}
	assetLen := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) != 2+assetLen+32 {
		return Instruction{}, errBadInstruction
	}
	asset := string(data[2 : 2+assetLen])
	amount := new(big.Int).SetBytes(data[2+assetLen:])
	return Instruction{Asset: asset, Amount: amount}, nil
}

// Handler translates delivered bridge payloads into lending engine
// operations. Each message acts for the vault account named in the payload;
// the engine enforces every risk check, so a rejected operation surfaces as a
// captured bridge failure eligible for retry or reverse.
type Handler struct {
	engine *lending.Engine
}

func NewHandler(engine *lending.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) HandleMessage(msg *bridge.MessageReceived) error {
	if h == nil || h.engine == nil {
		return errNilEngine
	}
	inst, err := DecodeInstruction(msg.Payload.Data)
	if err != nil {
		return err
	}
	account := lending.AccountID(msg.Payload.Account)
	switch msg.Payload.Action {
	case ActionDeposit:
		return h.engine.Deposit(account, inst.Asset, inst.Amount)
	case ActionRepay:
		_, err := h.engine.Repay(account, inst.Asset, inst.Amount)
		return err
	case ActionWithdraw:
		return h.engine.Withdraw(account, inst.Asset, inst.Amount)
	case ActionBorrow:
		return h.engine.Borrow(account, inst.Asset, inst.Amount)
	default:
		return errUnknownAction
	}
}

// RetryMessage re-executes the original instruction. The caller and extra
// args are unused: the instruction is fully bound by the failed message and
// the router has already authorized the recovery.
func (h *Handler) RetryMessage(msg *bridge.MessageReceived, caller bridge.GenericAddress, extraArgs []byte) error {
	return h.HandleMessage(msg)
}

// ReverseMessage acknowledges the unwind of an inbound funding action. The
// escrowed tokens travel back on the transport leg; the hub only needs to
// confirm that nothing was credited, which holds for any failed deposit or
// repay. Position-changing actions cannot be unwound this way.
func (h *Handler) ReverseMessage(msg *bridge.MessageReceived, caller bridge.GenericAddress, extraArgs []byte) error {
	if h == nil || h.engine == nil {
		return errNilEngine
	}
	switch msg.Payload.Action {
	case ActionDeposit, ActionRepay:
		return nil
	default:
		return errNotReversible
	}
}
