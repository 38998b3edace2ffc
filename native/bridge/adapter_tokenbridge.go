package bridge

import (
	"errors"
	"math/big"
)

var (
	// ErrDustLoss is returned when normalizing an amount to the bridge's
	// 8-decimal wire precision would silently truncate value.
	ErrDustLoss = errors.New("bridge tokenbridge: amount loses precision at bridge decimals")

	errRedeemFailed = errors.New("bridge tokenbridge: transfer receipt not redeemable")
)

// maxBridgeDecimals is the wire precision of the wrapped-asset bridge. Tokens
// with more local decimals are truncated to this scale before transfer.
const maxBridgeDecimals = 8

// TokenBridgeClient is the external lock/wrap token bridge. Transfer escrows
// tokens toward the destination and returns the transfer sequence; Redeem
// completes an attested inbound transfer locally.
type TokenBridgeClient interface {
	Transfer(token GenericAddress, amount *big.Int, destinationTransport uint16, recipient GenericAddress) (uint64, error)
	Redeem(message []byte, attestation []byte) error
}

// TokenBridgeAdapter moves a wrapped token alongside application messages.
// Amounts cross the wire normalized to maxBridgeDecimals, so sends carrying
// sub-precision dust are rejected rather than rounded.
type TokenBridgeAdapter struct {
	id       uint16
	registry *ChainRegistry
	client   RelayerClient
	bridge   TokenBridgeClient
	ledger   TokenLedger
	token    GenericAddress
	decimals uint8
	state    deliveryState
	router   *Router
}

func NewTokenBridgeAdapter(id uint16, registry *ChainRegistry, client RelayerClient, tokenBridge TokenBridgeClient, ledger TokenLedger, token GenericAddress, decimals uint8, state deliveryState) *TokenBridgeAdapter {
	return &TokenBridgeAdapter{
		id:       id,
		registry: registry,
		client:   client,
		bridge:   tokenBridge,
		ledger:   ledger,
		token:    token,
		decimals: decimals,
		state:    state,
	}
}

// Bind attaches the router the adapter delivers into.
func (a *TokenBridgeAdapter) Bind(router *Router) { a.router = router }

func (a *TokenBridgeAdapter) ID() uint16 { return a.id }

func (a *TokenBridgeAdapter) Quote(msg *MessageToSend) (*big.Int, error) {
	if a.client == nil {
		return nil, errAdapterNilClient
	}
	entry, err := a.registry.Entry(msg.DestinationChainID)
	if err != nil {
		return nil, err
	}
	return a.client.Quote(entry.TransportID, msg.Params.ReceiverValue, msg.Params.GasLimit)
}

// Send escrows the transfer amount through the token bridge and dispatches
// the envelope with the transfer binding embedded. The embedded amount is the
// normalized wire amount, which the receiving side widens back.
func (a *TokenBridgeAdapter) Send(msg *MessageToSend, fee *big.Int) (uint64, error) {
	if a.client == nil {
		return 0, errAdapterNilClient
	}
	if msg.Finality != FinalityFinalized {
		return 0, ErrUnsupportedFinality
	}
	if len(msg.ExtraArgs) == 0 {
		return 0, errMissingExtraArgs
	}
	args, err := DecodeTransferArgs(msg.ExtraArgs)
	if err != nil {
		return 0, err
	}
	if args.Token != a.token {
		return 0, ErrTokenMismatch
	}
	normalized, err := normalizeAmount(args.Amount, a.decimals)
	if err != nil {
		return 0, err
	}
	entry, err := a.registry.Entry(msg.DestinationChainID)
	if err != nil {
		return 0, err
	}

	sequence, err := a.bridge.Transfer(args.Token, normalized, entry.TransportID, args.Recipient)
	if err != nil {
		return 0, err
	}
	wire, err := encodeEnvelope(envelope{
		Sender:          msg.Sender,
		Handler:         msg.Handler,
		ReturnAdapterID: msg.Params.ReturnAdapterID,
		ReturnGasLimit:  msg.Params.ReturnGasLimit,
		Payload:         msg.Payload,
		Metadata: &MessageMetadata{
			SourceDomain: uint32(entry.TransportID),
			Amount:       normalized,
			Nonce:        sequence,
			Recipient:    args.Recipient,
		},
	})
	if err != nil {
		return 0, err
	}
	keys := []MessageKey{{Domain: uint32(entry.TransportID), Nonce: sequence}}
	return a.client.Send(entry.TransportID, entry.RemoteAdapter, wire, msg.Params.ReceiverValue, msg.Params.GasLimit, keys, msg.Finality)
}

// Deliver verifies the attached transfer receipt against the envelope
// metadata, redeems the transfer and forwards the message to the router.
func (a *TokenBridgeAdapter) Deliver(d Delivery, value *big.Int) error {
	if a.router == nil {
		return errAdapterNotBound
	}
	entry, err := a.registry.EntryByTransport(d.SourceTransport)
	if err != nil {
		return err
	}
	if entry.RemoteAdapter != d.SourceAddress {
		return ErrUnknownEmitter
	}
	if err := consumeDelivery(a.state, a.id, d.Hash); err != nil {
		return err
	}
	env, err := decodeEnvelope(d.Payload)
	if err != nil {
		return err
	}
	if env.Metadata == nil {
		return errMissingMetadata
	}
	if len(d.Attachments) != 1 {
		return errAttachmentCount
	}
	receipt, err := DecodeTransferReceipt(d.Attachments[0])
	if err != nil {
		return err
	}
	if receipt.SourceDomain != env.Metadata.SourceDomain {
		return ErrInvalidDomain
	}
	if receipt.Nonce != env.Metadata.Nonce {
		return ErrInvalidNonce
	}
	before, err := a.ledger.BalanceOf(env.Metadata.Recipient)
	if err != nil {
		return err
	}
	if err := a.bridge.Redeem(receipt.Message, receipt.Attestation); err != nil {
		return errRedeemFailed
	}
	after, err := a.ledger.BalanceOf(env.Metadata.Recipient)
	if err != nil {
		return err
	}
	// The wire amount is normalized; the local credit must be the widened
	// form.
	if new(big.Int).Sub(after, before).Cmp(denormalizeAmount(env.Metadata.Amount, a.decimals)) != 0 {
		return ErrMintMismatch
	}
	return a.router.Receive(a, receivedFromEnvelope(d.Hash, entry.ChainID, env), value)
}

// normalizeAmount shrinks a local-precision amount to the bridge's wire
// precision. Remainders are rejected so value never silently disappears.
func normalizeAmount(amount *big.Int, decimals uint8) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, errCodecNilAmount
	}
	if decimals <= maxBridgeDecimals {
		return new(big.Int).Set(amount), nil
	}
	scale := pow10(int(decimals) - maxBridgeDecimals)
	quo, rem := new(big.Int).QuoRem(amount, scale, new(big.Int))
	if rem.Sign() != 0 {
		return nil, ErrDustLoss
	}
	return quo, nil
}

// denormalizeAmount widens a wire-precision amount back to local precision.
func denormalizeAmount(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	if decimals <= maxBridgeDecimals {
		return new(big.Int).Set(amount)
	}
	scale := pow10(int(decimals) - maxBridgeDecimals)
	return new(big.Int).Mul(amount, scale)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
