package bridge

import (
	"errors"
	"math/big"

	"lukechampine.com/blake3"
)

var (
	// ErrUnknownEmitter is returned when a delivery claims to originate from
	// an address other than the chain's registered remote adapter.
	ErrUnknownEmitter = errors.New("bridge adapter: delivery from unknown emitter")
	// ErrDeliveryReplayed is returned when a transport delivery hash was
	// already consumed by the adapter.
	ErrDeliveryReplayed = errors.New("bridge adapter: delivery already consumed")

	errAdapterNilClient = errors.New("bridge adapter: relayer client not configured")
	errAdapterNotBound  = errors.New("bridge adapter: router not bound")
)

// deliveryState is the replay bookkeeping adapters keep independently of the
// router's per-message markers. It is keyed by transport delivery hash, so a
// relayer re-submitting the same delivery is stopped before decoding.
type deliveryState interface {
	DeliveryConsumed(adapterID uint16, key [32]byte) (bool, error)
	MarkDeliveryConsumed(adapterID uint16, key [32]byte) error
}

// RelayerClient is the external generic-message relayer the adapter sends
// through. Implementations wrap the transport's on-chain endpoint.
type RelayerClient interface {
	// Quote prices a delivery to the transport chain.
	Quote(transportID uint16, receiverValue *big.Int, gasLimit uint64) (*big.Int, error)
	// Send dispatches an opaque payload to the remote adapter, requesting
	// the given transfers to be attached, and returns the transport
	// sequence.
	Send(transportID uint16, target GenericAddress, payload []byte, receiverValue *big.Int, gasLimit uint64, keys []MessageKey, finality FinalityLevel) (uint64, error)
}

// Delivery is an inbound transport delivery handed to an adapter by the node
// runtime after transport-level verification.
type Delivery struct {
	// Payload is the opaque envelope produced by the remote adapter.
	Payload []byte
	// Attachments carry encoded transfer receipts paired with the payload.
	Attachments [][]byte
	// SourceAddress is the transport-reported emitter of the payload.
	SourceAddress GenericAddress
	// SourceTransport is the transport chain id the delivery came from.
	SourceTransport uint16
	// Hash uniquely identifies this delivery at the transport layer.
	Hash [32]byte
}

// RelayerAdapter is the plain message leg: no token movement, envelopes
// relayed verbatim through a generic relayer.
type RelayerAdapter struct {
	id       uint16
	registry *ChainRegistry
	client   RelayerClient
	state    deliveryState
	router   *Router
}

// NewRelayerAdapter constructs the adapter. Bind attaches the router after
// the router has registered the adapter.
func NewRelayerAdapter(id uint16, registry *ChainRegistry, client RelayerClient, state deliveryState) *RelayerAdapter {
	return &RelayerAdapter{id: id, registry: registry, client: client, state: state}
}

// Bind attaches the router the adapter delivers into.
func (a *RelayerAdapter) Bind(router *Router) { a.router = router }

func (a *RelayerAdapter) ID() uint16 { return a.id }

func (a *RelayerAdapter) Quote(msg *MessageToSend) (*big.Int, error) {
	if a.client == nil {
		return nil, errAdapterNilClient
	}
	entry, err := a.registry.Entry(msg.DestinationChainID)
	if err != nil {
		return nil, err
	}
	return a.client.Quote(entry.TransportID, msg.Params.ReceiverValue, msg.Params.GasLimit)
}

func (a *RelayerAdapter) Send(msg *MessageToSend, fee *big.Int) (uint64, error) {
	if a.client == nil {
		return 0, errAdapterNilClient
	}
	entry, err := a.registry.Entry(msg.DestinationChainID)
	if err != nil {
		return 0, err
	}
	wire, err := encodeEnvelope(envelope{
		Sender:          msg.Sender,
		Handler:         msg.Handler,
		ReturnAdapterID: msg.Params.ReturnAdapterID,
		ReturnGasLimit:  msg.Params.ReturnGasLimit,
		Payload:         msg.Payload,
	})
	if err != nil {
		return 0, err
	}
	return a.client.Send(entry.TransportID, entry.RemoteAdapter, wire, msg.Params.ReceiverValue, msg.Params.GasLimit, nil, msg.Finality)
}

// Deliver verifies a transport delivery and forwards the reconstructed
// message to the router. The delivery hash is consumed before the router
// dispatch so a replayed delivery is rejected even if dispatch failed.
func (a *RelayerAdapter) Deliver(d Delivery, value *big.Int) error {
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
	return a.router.Receive(a, receivedFromEnvelope(d.Hash, entry.ChainID, env), value)
}

// consumeDelivery burns a transport delivery hash exactly once per adapter.
func consumeDelivery(state deliveryState, adapterID uint16, hash [32]byte) error {
	key := blake3.Sum256(hash[:])
	consumed, err := state.DeliveryConsumed(adapterID, key)
	if err != nil {
		return err
	}
	if consumed {
		return ErrDeliveryReplayed
	}
	return state.MarkDeliveryConsumed(adapterID, key)
}

func receivedFromEnvelope(deliveryHash [32]byte, sourceChainID uint16, env envelope) *MessageReceived {
	return &MessageReceived{
		MessageID:       deliveryHash,
		SourceChainID:   sourceChainID,
		SourceAddress:   env.Sender,
		Handler:         env.Handler,
		Payload:         env.Payload,
		ReturnAdapterID: env.ReturnAdapterID,
		ReturnGasLimit:  env.ReturnGasLimit,
	}
}
