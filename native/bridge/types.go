package bridge

import (
	"errors"
	"math/big"
)

var errAddressPadding = errors.New("bridge: generic address has non-zero padding")

// GenericAddress is the chain-agnostic 32-byte address form carried inside
// cross-chain envelopes. Native 20-byte addresses are left-padded with zeroes;
// converting back fails when the padding bits are non-zero.
type GenericAddress [32]byte

// GenericFromNative widens a native 20-byte address into the generic form.
func GenericFromNative(addr [20]byte) GenericAddress {
	var generic GenericAddress
	copy(generic[12:], addr[:])
	return generic
}

// Native narrows the generic address back to 20 bytes. The conversion fails
// when any of the high padding bytes is set, which would indicate the address
// belongs to a wider address space.
func (a GenericAddress) Native() ([20]byte, error) {
	var native [20]byte
	for _, b := range a[:12] {
		if b != 0 {
			return native, errAddressPadding
		}
	}
	copy(native[:], a[12:])
	return native, nil
}

// IsZero reports whether every byte of the address is zero.
func (a GenericAddress) IsZero() bool {
	return a == GenericAddress{}
}

// FinalityLevel is the settlement guarantee required before a cross-chain
// message may be acted upon.
type FinalityLevel uint8

const (
	// FinalityImmediate delivers as soon as the source chain observes the
	// message.
	FinalityImmediate FinalityLevel = iota
	// FinalityFinalized waits for source-chain finality. Token transports
	// require it, since burn/mint needs settlement.
	FinalityFinalized
)

// Payload is the application-level action carried by an envelope. The action
// code and account routing fields are fixed-width; Data is opaque to the
// bridge.
type Payload struct {
	Action      uint16
	Account     [32]byte
	UserAddress GenericAddress
	Data        []byte
}

// MessageParams selects the transport legs and gas budget for a message.
type MessageParams struct {
	AdapterID       uint16
	ReturnAdapterID uint16
	ReceiverValue   *big.Int
	GasLimit        uint64
	ReturnGasLimit  uint64
}

// MessageToSend is the outbound envelope handed to an adapter. It is
// constructed fresh per call and never mutated after hand-off.
type MessageToSend struct {
	Params             MessageParams
	Sender             GenericAddress
	DestinationChainID uint16
	Handler            GenericAddress
	Payload            Payload
	Finality           FinalityLevel
	ExtraArgs          []byte
}

// MessageMetadata pairs a token movement with its application message. Token
// transports embed it in the wire envelope so the receiving side can verify
// that the attached attestation belongs to this exact message.
type MessageMetadata struct {
	SourceDomain uint32
	Amount       *big.Int
	Nonce        uint64
	Recipient    GenericAddress
}

// MessageReceived is the reconstructed inbound envelope handed to the router
// after an adapter validated and decoded a delivery.
type MessageReceived struct {
	MessageID       [32]byte
	SourceChainID   uint16
	SourceAddress   GenericAddress
	Handler         GenericAddress
	Payload         Payload
	ReturnAdapterID uint16
	ReturnGasLimit  uint64
}

// TransferArgs is the decoded form of the extra-args blob required by token
// transports: which token to move, how much, and who receives it.
type TransferArgs struct {
	Token     GenericAddress
	Amount    *big.Int
	Recipient GenericAddress
}

// TransferReceipt is an attached transport message proving a token movement:
// the raw transport message plus the attestation over it, keyed by the source
// domain and nonce it settles.
type TransferReceipt struct {
	SourceDomain uint32
	Nonce        uint64
	Message      []byte
	Attestation  []byte
}

// MessageKey correlates a relayed application message with an in-flight token
// transfer so the relayer can pair the attestation with the delivery.
type MessageKey struct {
	Domain uint32
	Nonce  uint64
}

// ChainEntry is one row of the chain registry: the mapping between the
// protocol's internal chain id and the transport-level identifiers, plus the
// trusted remote adapter deployed on that chain.
type ChainEntry struct {
	// ChainID is the protocol-internal chain identifier.
	ChainID uint16
	// TransportID is the chain identifier used by the relayer transport.
	TransportID uint16
	// DomainID is the burn/mint transport domain for this chain.
	DomainID uint32
	// RemoteAdapter is the adapter contract trusted on the remote chain.
	RemoteAdapter GenericAddress
	// Available gates the entry without removing it.
	Available bool
}

// Clone returns a copy of the entry.
func (e *ChainEntry) Clone() *ChainEntry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}
