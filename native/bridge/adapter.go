package bridge

import "math/big"

// Adapter is one transport leg known to the router. Implementations own the
// transport-specific wire format and any token escrow the leg requires; the
// router only sees quoted fees and reconstructed inbound messages.
type Adapter interface {
	// ID is the stable identifier callers select the adapter by.
	ID() uint16
	// Quote returns the transport fee for delivering the message.
	Quote(msg *MessageToSend) (*big.Int, error)
	// Send dispatches the message with the fee already collected by the
	// router. It returns the transport-level sequence number.
	Send(msg *MessageToSend, fee *big.Int) (uint64, error)
}

// Handler receives successfully delivered payloads and the recovery
// entrypoints for payloads whose first delivery failed.
type Handler interface {
	HandleMessage(msg *MessageReceived) error
	// RetryMessage re-executes a failed message, optionally with fresh
	// extra arguments. The caller is the address that invoked the recovery,
	// so handlers can attribute or further authorize the attempt.
	RetryMessage(msg *MessageReceived, caller GenericAddress, extraArgs []byte) error
	// ReverseMessage unwinds a failed message back toward its source, for
	// example by refunding escrowed tokens.
	ReverseMessage(msg *MessageReceived, caller GenericAddress, extraArgs []byte) error
}
