package bridge

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"townsq/core/types"
)

const (
	EventTypeMessageSent      = "bridge.message.sent"
	EventTypeMessageDelivered = "bridge.message.delivered"
	EventTypeMessageFailed    = "bridge.message.failed"
	EventTypeMessageRetry     = "bridge.message.retry"
	EventTypeMessageReverse   = "bridge.message.reverse"
	EventTypeAdapterAdded     = "bridge.adapter.added"
	EventTypeAdapterRemoved   = "bridge.adapter.removed"
	EventTypeFeesToppedUp     = "bridge.fees.topup"
)

// NewMessageSentEvent records an outbound dispatch with the transport
// sequence assigned by the adapter.
func NewMessageSentEvent(adapterID, destChainID uint16, sequence uint64) *types.Event {
	return &types.Event{
		Type: EventTypeMessageSent,
		Attributes: map[string]string{
			"adapter":  formatAdapter(adapterID),
			"chain":    strconv.FormatUint(uint64(destChainID), 10),
			"sequence": strconv.FormatUint(sequence, 10),
		},
	}
}

// NewMessageDeliveredEvent records a successful handler dispatch.
func NewMessageDeliveredEvent(adapterID uint16, messageID [32]byte) *types.Event {
	return newMessageEvent(EventTypeMessageDelivered, adapterID, messageID, nil)
}

// NewMessageFailedEvent records a captured handler failure together with its
// cause. The message stays recoverable via retry or reverse.
func NewMessageFailedEvent(adapterID uint16, messageID [32]byte, cause error) *types.Event {
	evt := newMessageEvent(EventTypeMessageFailed, adapterID, messageID, nil)
	if cause != nil {
		evt.Attributes["reason"] = cause.Error()
	}
	return evt
}

// NewMessageRetryEvent records the outcome of a retry attempt.
func NewMessageRetryEvent(adapterID uint16, messageID [32]byte, success bool) *types.Event {
	return newMessageEvent(EventTypeMessageRetry, adapterID, messageID, &success)
}

// NewMessageReverseEvent records the outcome of a reverse attempt.
func NewMessageReverseEvent(adapterID uint16, messageID [32]byte, success bool) *types.Event {
	return newMessageEvent(EventTypeMessageReverse, adapterID, messageID, &success)
}

func NewAdapterAddedEvent(adapterID uint16) *types.Event {
	return &types.Event{
		Type:       EventTypeAdapterAdded,
		Attributes: map[string]string{"adapter": formatAdapter(adapterID)},
	}
}

func NewAdapterRemovedEvent(adapterID uint16) *types.Event {
	return &types.Event{
		Type:       EventTypeAdapterRemoved,
		Attributes: map[string]string{"adapter": formatAdapter(adapterID)},
	}
}

func NewFeesToppedUpEvent(account GenericAddress, value *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFeesToppedUp,
		Attributes: map[string]string{
			"account": hex.EncodeToString(account[:]),
			"value":   value.String(),
		},
	}
}

func newMessageEvent(eventType string, adapterID uint16, messageID [32]byte, success *bool) *types.Event {
	attrs := map[string]string{
		"adapter": formatAdapter(adapterID),
		"message": hex.EncodeToString(messageID[:]),
	}
	if success != nil {
		attrs["success"] = strconv.FormatBool(*success)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAdapter(id uint16) string {
	return strconv.FormatUint(uint64(id), 10)
}
