package bridge

import (
	"errors"
	"math/big"
)

var (
	// ErrUnsupportedFinality is returned when a token transfer requests a
	// finality level below finalized. Burn/mint settlement needs source
	// finality before the mint side may act.
	ErrUnsupportedFinality = errors.New("bridge cctp: token transfers require finalized messages")
	// ErrTokenMismatch is returned when the extra-args token is not the
	// token this adapter moves.
	ErrTokenMismatch = errors.New("bridge cctp: token not supported by adapter")
	// ErrInvalidDomain is returned when an attached burn receipt names a
	// different source domain than the message metadata.
	ErrInvalidDomain = errors.New("bridge cctp: receipt domain does not match metadata")
	// ErrInvalidNonce is returned when an attached burn receipt carries a
	// different nonce than the message metadata.
	ErrInvalidNonce = errors.New("bridge cctp: receipt nonce does not match metadata")
	// ErrMintMismatch is returned when the minted balance delta differs
	// from the amount recorded at burn time.
	ErrMintMismatch = errors.New("bridge cctp: minted amount does not match metadata")

	errMissingExtraArgs  = errors.New("bridge cctp: transfer extra args required")
	errMissingMetadata   = errors.New("bridge cctp: delivery carries no transfer metadata")
	errAttachmentCount   = errors.New("bridge cctp: expected exactly one burn receipt")
)

// TokenMessenger is the external burn/mint endpoint. Burn destroys tokens on
// the local domain and returns the transfer nonce; Mint redeems an attested
// burn message on the local domain.
type TokenMessenger interface {
	Burn(amount *big.Int, destinationDomain uint32, recipient GenericAddress, token GenericAddress, destinationCaller GenericAddress) (uint64, error)
	Mint(message []byte, attestation []byte) error
}

// TokenLedger reads token balances, used to verify that a mint credited the
// expected amount.
type TokenLedger interface {
	BalanceOf(account GenericAddress) (*big.Int, error)
}

// CCTPAdapter moves a single native-burn token alongside application
// messages. Outbound it burns and embeds the (domain, nonce, amount) binding
// in the envelope; inbound it verifies the attached burn receipt against that
// binding before minting.
type CCTPAdapter struct {
	id          uint16
	registry    *ChainRegistry
	client      RelayerClient
	messenger   TokenMessenger
	ledger      TokenLedger
	token       GenericAddress
	localDomain uint32
	state       deliveryState
	router      *Router
}

func NewCCTPAdapter(id uint16, registry *ChainRegistry, client RelayerClient, messenger TokenMessenger, ledger TokenLedger, token GenericAddress, localDomain uint32, state deliveryState) *CCTPAdapter {
	return &CCTPAdapter{
		id:          id,
		registry:    registry,
		client:      client,
		messenger:   messenger,
		ledger:      ledger,
		token:       token,
		localDomain: localDomain,
		state:       state,
	}
}

// Bind attaches the router the adapter delivers into.
func (a *CCTPAdapter) Bind(router *Router) { a.router = router }

func (a *CCTPAdapter) ID() uint16 { return a.id }

func (a *CCTPAdapter) Quote(msg *MessageToSend) (*big.Int, error) {
	if a.client == nil {
		return nil, errAdapterNilClient
	}
	entry, err := a.registry.Entry(msg.DestinationChainID)
	if err != nil {
		return nil, err
	}
	return a.client.Quote(entry.TransportID, msg.Params.ReceiverValue, msg.Params.GasLimit)
}

// Send burns the transfer amount and dispatches the envelope with the burn
// binding embedded. The destination caller is pinned to the remote adapter so
// nobody else can trigger the mint.
func (a *CCTPAdapter) Send(msg *MessageToSend, fee *big.Int) (uint64, error) {
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
	entry, err := a.registry.Entry(msg.DestinationChainID)
	if err != nil {
		return 0, err
	}

	nonce, err := a.messenger.Burn(args.Amount, entry.DomainID, args.Recipient, args.Token, entry.RemoteAdapter)
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
			SourceDomain: a.localDomain,
			Amount:       args.Amount,
			Nonce:        nonce,
			Recipient:    args.Recipient,
		},
	})
	if err != nil {
		return 0, err
	}
	keys := []MessageKey{{Domain: a.localDomain, Nonce: nonce}}
	return a.client.Send(entry.TransportID, entry.RemoteAdapter, wire, msg.Params.ReceiverValue, msg.Params.GasLimit, keys, msg.Finality)
}

// Deliver verifies the attached burn receipt against the envelope metadata,
// mints, confirms the credited amount and forwards the message to the router.
func (a *CCTPAdapter) Deliver(d Delivery, value *big.Int) error {
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
	if err := a.messenger.Mint(receipt.Message, receipt.Attestation); err != nil {
		return err
	}
	after, err := a.ledger.BalanceOf(env.Metadata.Recipient)
	if err != nil {
		return err
	}
	if new(big.Int).Sub(after, before).Cmp(env.Metadata.Amount) != 0 {
		return ErrMintMismatch
	}
	return a.router.Receive(a, receivedFromEnvelope(d.Hash, entry.ChainID, env), value)
}
