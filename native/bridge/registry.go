package bridge

import (
	"errors"
	"sync"
)

var (
	// ErrChainUnavailable is returned when a chain is unknown or disabled.
	ErrChainUnavailable = errors.New("bridge: chain unavailable")

	errChainExists     = errors.New("bridge: chain already registered")
	errTransportInUse  = errors.New("bridge: transport id already registered")
	errChainUnknown    = errors.New("bridge: chain not registered")
	errZeroRemote      = errors.New("bridge: remote adapter address is zero")
)

// ChainRegistry maintains the bidirectional mapping between protocol chain
// ids and transport identifiers, together with the trusted remote adapter per
// chain. Adapters consult it on both the send and the deliver path.
type ChainRegistry struct {
	mu          sync.RWMutex
	entries     map[uint16]*ChainEntry
	byTransport map[uint16]uint16
}

func NewChainRegistry() *ChainRegistry {
	return &ChainRegistry{
		entries:     make(map[uint16]*ChainEntry),
		byTransport: make(map[uint16]uint16),
	}
}

// AddChain registers a chain entry. Both the chain id and the transport id
// must be unused; a zero remote adapter is rejected since deliveries from it
// could never be authenticated.
func (r *ChainRegistry) AddChain(entry ChainEntry) error {
	if entry.RemoteAdapter.IsZero() {
		return errZeroRemote
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ChainID]; ok {
		return errChainExists
	}
	if _, ok := r.byTransport[entry.TransportID]; ok {
		return errTransportInUse
	}
	clone := entry
	r.entries[entry.ChainID] = &clone
	r.byTransport[entry.TransportID] = entry.ChainID
	return nil
}

// RemoveChain drops a chain and its transport mapping.
func (r *ChainRegistry) RemoveChain(chainID uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[chainID]
	if !ok {
		return errChainUnknown
	}
	delete(r.byTransport, entry.TransportID)
	delete(r.entries, chainID)
	return nil
}

// SetAvailable toggles a chain without removing its configuration.
func (r *ChainRegistry) SetAvailable(chainID uint16, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[chainID]
	if !ok {
		return errChainUnknown
	}
	entry.Available = available
	return nil
}

// Entry resolves an available chain by protocol id.
func (r *ChainRegistry) Entry(chainID uint16) (*ChainEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[chainID]
	if !ok || !entry.Available {
		return nil, ErrChainUnavailable
	}
	return entry.Clone(), nil
}

// EntryByTransport resolves an available chain by transport id. Adapters use
// it on the deliver path, where only the transport identifier is known.
func (r *ChainRegistry) EntryByTransport(transportID uint16) (*ChainEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chainID, ok := r.byTransport[transportID]
	if !ok {
		return nil, ErrChainUnavailable
	}
	entry, ok := r.entries[chainID]
	if !ok || !entry.Available {
		return nil, ErrChainUnavailable
	}
	return entry.Clone(), nil
}
