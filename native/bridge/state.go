package bridge

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"townsq/core/types"
)

// Storage abstracts the subset of the node's key-value functionality the
// router and adapters persist through.
type Storage interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Has(key []byte) (bool, error)
	Delete(key []byte) error
}

var (
	seenKeyPrefix     = []byte("bridge/seen/")
	failedKeyPrefix   = []byte("bridge/failed/")
	accountKeyPrefix  = []byte("bridge/account/")
	deliveryKeyPrefix = []byte("bridge/delivery/")
)

// State persists router and adapter bookkeeping through a key-value store.
// Replay markers and failure records are keyed per adapter so two transports
// delivering the same message id never interfere.
type State struct {
	db Storage
}

// NewState wraps the supplied key-value store.
func NewState(db Storage) *State {
	return &State{db: db}
}

func adapterScopedKey(prefix []byte, adapterID uint16, id [32]byte) []byte {
	key := append([]byte(nil), prefix...)
	var adapter [2]byte
	binary.BigEndian.PutUint16(adapter[:], adapterID)
	key = append(key, hex.EncodeToString(adapter[:])...)
	key = append(key, '/')
	return append(key, hex.EncodeToString(id[:])...)
}

func accountKey(account GenericAddress) []byte {
	return append(append([]byte(nil), accountKeyPrefix...), hex.EncodeToString(account[:])...)
}

func (s *State) Seen(adapterID uint16, messageID [32]byte) (bool, error) {
	return s.db.Has(adapterScopedKey(seenKeyPrefix, adapterID, messageID))
}

func (s *State) MarkSeen(adapterID uint16, messageID [32]byte) error {
	return s.db.Put(adapterScopedKey(seenKeyPrefix, adapterID, messageID), []byte{1})
}

func (s *State) FailedHash(adapterID uint16, messageID [32]byte) ([32]byte, bool, error) {
	var hash [32]byte
	key := adapterScopedKey(failedKeyPrefix, adapterID, messageID)
	ok, err := s.db.Has(key)
	if err != nil || !ok {
		return hash, false, err
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return hash, false, err
	}
	copy(hash[:], raw)
	return hash, true, nil
}

func (s *State) PutFailedHash(adapterID uint16, messageID [32]byte, hash [32]byte) error {
	return s.db.Put(adapterScopedKey(failedKeyPrefix, adapterID, messageID), hash[:])
}

func (s *State) ClearFailedHash(adapterID uint16, messageID [32]byte) error {
	return s.db.Delete(adapterScopedKey(failedKeyPrefix, adapterID, messageID))
}

// Account returns the persisted hub account record, zero-valued when the
// address was never touched.
func (s *State) Account(addr GenericAddress) (*types.Account, error) {
	key := accountKey(addr)
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: new(big.Int), FeeBalance: new(big.Int)}
	if !ok {
		return account, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(raw, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *State) PutAccount(addr GenericAddress, account *types.Account) error {
	raw, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return s.db.Put(accountKey(addr), raw)
}

func (s *State) FeeBalance(addr GenericAddress) (*big.Int, error) {
	account, err := s.Account(addr)
	if err != nil {
		return nil, err
	}
	return account.FeeBalance, nil
}

func (s *State) PutFeeBalance(addr GenericAddress, balance *big.Int) error {
	account, err := s.Account(addr)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = new(big.Int)
	}
	account.FeeBalance = balance
	return s.PutAccount(addr, account)
}

// DeliveryConsumed reports whether an adapter already consumed the transport
// delivery identified by key.
func (s *State) DeliveryConsumed(adapterID uint16, key [32]byte) (bool, error) {
	return s.db.Has(adapterScopedKey(deliveryKeyPrefix, adapterID, key))
}

// MarkDeliveryConsumed flags a transport delivery as consumed.
func (s *State) MarkDeliveryConsumed(adapterID uint16, key [32]byte) error {
	return s.db.Put(adapterScopedKey(deliveryKeyPrefix, adapterID, key), []byte{1})
}
