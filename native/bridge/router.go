package bridge

import (
	"bytes"
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"townsq/core/events"
	"townsq/core/types"
	nativecommon "townsq/native/common"
	"townsq/observability/metrics"
)

var (
	// ErrAdapterNotFound is returned when a message names an adapter id the
	// router does not know.
	ErrAdapterNotFound = errors.New("bridge router: adapter not found")
	// ErrSenderMismatch is returned when the caller differs from the sender
	// recorded in the message.
	ErrSenderMismatch = errors.New("bridge router: caller is not the message sender")
	// ErrInsufficientFunds is returned when the attached value plus the
	// caller's fee balance cannot cover the quoted transport fee.
	ErrInsufficientFunds = errors.New("bridge router: insufficient funds for transport fee")
	// ErrDuplicateMessage is returned when an inbound message id was already
	// processed for the delivering adapter.
	ErrDuplicateMessage = errors.New("bridge router: message already processed")
	// ErrFailedMessageUnknown is returned when retry or reverse targets a
	// message with no recorded failure.
	ErrFailedMessageUnknown = errors.New("bridge router: no failed message recorded")
	// ErrFailedMessageMismatch is returned when the resubmitted message does
	// not hash to the recorded failure.
	ErrFailedMessageMismatch = errors.New("bridge router: message does not match recorded failure")

	errNotAuthority         = errors.New("bridge router: caller is not the router authority")
	errAdapterExists        = errors.New("bridge router: adapter id already registered")
	errAdapterBound         = errors.New("bridge router: adapter instance already registered")
	errUnknownAdapterCall   = errors.New("bridge router: receive from unregistered adapter")
	errRouterNilState       = errors.New("bridge router: state not configured")
	errNilMessage           = errors.New("bridge router: nil message")
	errInvalidValue         = errors.New("bridge router: value must be positive")
	errHandlerNotRegistered = errors.New("bridge router: handler not registered")
)

const routerModuleName = "bridge"

// routerState is the persistence surface the router requires: per-adapter
// replay markers, per-adapter failure records and fee balances.
type routerState interface {
	Seen(adapterID uint16, messageID [32]byte) (bool, error)
	MarkSeen(adapterID uint16, messageID [32]byte) error
	FailedHash(adapterID uint16, messageID [32]byte) ([32]byte, bool, error)
	PutFailedHash(adapterID uint16, messageID [32]byte, hash [32]byte) error
	ClearFailedHash(adapterID uint16, messageID [32]byte) error
	FeeBalance(account GenericAddress) (*big.Int, error)
	PutFeeBalance(account GenericAddress, balance *big.Int) error
}

type bridgeEvent struct {
	evt *types.Event
}

func (e bridgeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bridgeEvent) Event() *types.Event { return e.evt }

// Router is the single ingress and egress point for cross-chain messages. It
// owns fee collection, at-most-once delivery per adapter, and the failure
// records that make retry and reverse safe.
type Router struct {
	state     routerState
	registry  *ChainRegistry
	adapters  map[uint16]Adapter
	handlers  map[GenericAddress]Handler
	authority GenericAddress
	emitter   events.Emitter
	pauses    nativecommon.PauseView
}

// NewRouter constructs a router over the supplied state and chain registry.
func NewRouter(state routerState, registry *ChainRegistry) *Router {
	return &Router{
		state:    state,
		registry: registry,
		adapters: make(map[uint16]Adapter),
		handlers: make(map[GenericAddress]Handler),
		emitter:  events.NoopEmitter{},
	}
}

// SetAuthority records the address allowed to perform admin operations and
// the recovery entrypoints.
func (r *Router) SetAuthority(addr GenericAddress) {
	if r == nil {
		return
	}
	r.authority = addr
}

func (r *Router) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if r == nil {
		return
	}
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Registry exposes the chain registry for adapter construction.
func (r *Router) Registry() *ChainRegistry { return r.registry }

func (r *Router) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(bridgeEvent{evt: event})
}

func (r *Router) requireAuthority(caller GenericAddress) error {
	if r.authority.IsZero() || !bytes.Equal(caller[:], r.authority[:]) {
		return errNotAuthority
	}
	return nil
}

// AddAdapter registers a transport adapter under its id. Authority only.
func (r *Router) AddAdapter(caller GenericAddress, adapter Adapter) error {
	if r == nil || adapter == nil {
		return ErrAdapterNotFound
	}
	if err := r.requireAuthority(caller); err != nil {
		return err
	}
	if _, ok := r.adapters[adapter.ID()]; ok {
		return errAdapterExists
	}
	for _, existing := range r.adapters {
		if existing == adapter {
			return errAdapterBound
		}
	}
	r.adapters[adapter.ID()] = adapter
	r.emit(NewAdapterAddedEvent(adapter.ID()))
	return nil
}

// RemoveAdapter drops a transport adapter. Authority only.
func (r *Router) RemoveAdapter(caller GenericAddress, id uint16) error {
	if r == nil {
		return ErrAdapterNotFound
	}
	if err := r.requireAuthority(caller); err != nil {
		return err
	}
	if _, ok := r.adapters[id]; !ok {
		return ErrAdapterNotFound
	}
	delete(r.adapters, id)
	r.emit(NewAdapterRemovedEvent(id))
	return nil
}

// RegisterHandler binds an application handler to its generic address.
func (r *Router) RegisterHandler(addr GenericAddress, handler Handler) {
	if r == nil || handler == nil {
		return
	}
	r.handlers[addr] = handler
}

// Send quotes the transport fee, settles it from the attached value plus the
// caller's fee balance and dispatches the message through the selected
// adapter. The transport sequence number is returned.
func (r *Router) Send(caller GenericAddress, value *big.Int, msg *MessageToSend) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errRouterNilState
	}
	if err := nativecommon.Guard(r.pauses, routerModuleName); err != nil {
		return 0, err
	}
	if msg == nil {
		return 0, errNilMessage
	}
	if msg.Sender != caller {
		return 0, ErrSenderMismatch
	}
	adapter, ok := r.adapters[msg.Params.AdapterID]
	if !ok {
		return 0, ErrAdapterNotFound
	}

	fee, err := adapter.Quote(msg)
	if err != nil {
		return 0, err
	}
	balance, err := r.state.FeeBalance(caller)
	if err != nil {
		return 0, err
	}
	available := new(big.Int).Set(balance)
	if value != nil {
		available.Add(available, value)
	}
	if available.Cmp(fee) < 0 {
		return 0, ErrInsufficientFunds
	}

	// Dispatch before settling: a transport rejection must leave the caller's
	// fee balance untouched.
	sequence, err := adapter.Send(msg, fee)
	if err != nil {
		return 0, err
	}
	if err := r.state.PutFeeBalance(caller, new(big.Int).Sub(available, fee)); err != nil {
		return 0, err
	}
	metrics.Bridge().MessageSent(adapter.ID())
	r.emit(NewMessageSentEvent(adapter.ID(), msg.DestinationChainID, sequence))
	return sequence, nil
}

// Receive accepts a reconstructed inbound message from a registered adapter.
// The message is marked seen before the handler runs, so a re-entrant
// delivery of the same id is rejected even mid-dispatch. Handler failures are
// captured as a failure record and never propagated to the transport.
func (r *Router) Receive(from Adapter, msg *MessageReceived, value *big.Int) error {
	if r == nil || r.state == nil {
		return errRouterNilState
	}
	if err := nativecommon.Guard(r.pauses, routerModuleName); err != nil {
		return err
	}
	if msg == nil {
		return errNilMessage
	}
	if from == nil {
		return errUnknownAdapterCall
	}
	registered, ok := r.adapters[from.ID()]
	if !ok || registered != from {
		return errUnknownAdapterCall
	}
	adapterID := from.ID()

	seen, err := r.state.Seen(adapterID, msg.MessageID)
	if err != nil {
		return err
	}
	if seen {
		return ErrDuplicateMessage
	}
	if err := r.state.MarkSeen(adapterID, msg.MessageID); err != nil {
		return err
	}

	if value != nil && value.Sign() > 0 {
		balance, err := r.state.FeeBalance(msg.Payload.UserAddress)
		if err != nil {
			return err
		}
		if err := r.state.PutFeeBalance(msg.Payload.UserAddress, new(big.Int).Add(balance, value)); err != nil {
			return err
		}
	}
	metrics.Bridge().MessageReceived(adapterID)

	handler, ok := r.handlers[msg.Handler]
	if !ok {
		return r.recordFailure(adapterID, msg, errHandlerNotRegistered)
	}
	if err := handler.HandleMessage(msg); err != nil {
		return r.recordFailure(adapterID, msg, err)
	}
	r.emit(NewMessageDeliveredEvent(adapterID, msg.MessageID))
	return nil
}

// recordFailure stores the hash of the exact failed message so only a
// byte-identical resubmission can be retried or reversed later.
func (r *Router) recordFailure(adapterID uint16, msg *MessageReceived, cause error) error {
	hash, err := messageHash(msg)
	if err != nil {
		return err
	}
	if err := r.state.PutFailedHash(adapterID, msg.MessageID, hash); err != nil {
		return err
	}
	metrics.Bridge().MessageFailed(adapterID)
	r.emit(NewMessageFailedEvent(adapterID, msg.MessageID, cause))
	return nil
}

// checkFailedBinding validates that the resubmitted message is the one whose
// failure was recorded: a record must exist for (adapter, id), the id must
// have been seen, and the message must hash to the recorded value.
func (r *Router) checkFailedBinding(adapterID uint16, messageID [32]byte, msg *MessageReceived) error {
	stored, ok, err := r.state.FailedHash(adapterID, messageID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFailedMessageUnknown
	}
	seen, err := r.state.Seen(adapterID, messageID)
	if err != nil {
		return err
	}
	if !seen {
		return ErrFailedMessageUnknown
	}
	if msg.MessageID != messageID {
		return ErrFailedMessageMismatch
	}
	hash, err := messageHash(msg)
	if err != nil {
		return err
	}
	if hash != stored {
		return ErrFailedMessageMismatch
	}
	return nil
}

// Retry re-executes a recorded failed message through the handler's retry
// entrypoint. Success clears the failure record; another failure keeps it, so
// the message stays eligible for further recovery attempts.
func (r *Router) Retry(caller GenericAddress, adapterID uint16, messageID [32]byte, msg *MessageReceived, extraArgs []byte) error {
	if r == nil || r.state == nil {
		return errRouterNilState
	}
	if err := nativecommon.Guard(r.pauses, routerModuleName); err != nil {
		return err
	}
	if err := r.requireAuthority(caller); err != nil {
		return err
	}
	if msg == nil {
		return errNilMessage
	}
	if err := r.checkFailedBinding(adapterID, messageID, msg); err != nil {
		return err
	}

	handler, ok := r.handlers[msg.Handler]
	if !ok {
		return errHandlerNotRegistered
	}
	if err := handler.RetryMessage(msg, caller, extraArgs); err != nil {
		metrics.Bridge().MessageRetried(adapterID, false)
		r.emit(NewMessageRetryEvent(adapterID, messageID, false))
		return nil
	}
	if err := r.state.ClearFailedHash(adapterID, messageID); err != nil {
		return err
	}
	metrics.Bridge().MessageRetried(adapterID, true)
	r.emit(NewMessageRetryEvent(adapterID, messageID, true))
	return nil
}

// Reverse unwinds a recorded failed message through the handler's reverse
// entrypoint, typically refunding escrowed value toward the source chain.
func (r *Router) Reverse(caller GenericAddress, adapterID uint16, messageID [32]byte, msg *MessageReceived, extraArgs []byte) error {
	if r == nil || r.state == nil {
		return errRouterNilState
	}
	if err := nativecommon.Guard(r.pauses, routerModuleName); err != nil {
		return err
	}
	if err := r.requireAuthority(caller); err != nil {
		return err
	}
	if msg == nil {
		return errNilMessage
	}
	if err := r.checkFailedBinding(adapterID, messageID, msg); err != nil {
		return err
	}

	handler, ok := r.handlers[msg.Handler]
	if !ok {
		return errHandlerNotRegistered
	}
	if err := handler.ReverseMessage(msg, caller, extraArgs); err != nil {
		metrics.Bridge().MessageReversed(adapterID, false)
		r.emit(NewMessageReverseEvent(adapterID, messageID, false))
		return nil
	}
	if err := r.state.ClearFailedHash(adapterID, messageID); err != nil {
		return err
	}
	metrics.Bridge().MessageReversed(adapterID, true)
	r.emit(NewMessageReverseEvent(adapterID, messageID, true))
	return nil
}

// FailedMessage reports whether a failure record exists for the pair and, if
// so, the recorded hash.
func (r *Router) FailedMessage(adapterID uint16, messageID [32]byte) ([32]byte, bool, error) {
	if r == nil || r.state == nil {
		return [32]byte{}, false, errRouterNilState
	}
	return r.state.FailedHash(adapterID, messageID)
}

// TopUpFees credits the account's fee balance with the attached value.
func (r *Router) TopUpFees(account GenericAddress, value *big.Int) error {
	if r == nil || r.state == nil {
		return errRouterNilState
	}
	if value == nil || value.Sign() <= 0 {
		return errInvalidValue
	}
	balance, err := r.state.FeeBalance(account)
	if err != nil {
		return err
	}
	if err := r.state.PutFeeBalance(account, new(big.Int).Add(balance, value)); err != nil {
		return err
	}
	r.emit(NewFeesToppedUpEvent(account, value))
	return nil
}

// messageHash is the canonical hash binding recovery calls to the exact bytes
// of the failed message.
func messageHash(msg *MessageReceived) ([32]byte, error) {
	var hash [32]byte
	encoded, err := encodeReceived(msg)
	if err != nil {
		return hash, err
	}
	copy(hash[:], ethcrypto.Keccak256(encoded))
	return hash, nil
}
