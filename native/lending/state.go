package lending

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/rlp"
)

// Storage abstracts the subset of the node's key-value functionality required
// to persist lending state.
type Storage interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Has(key []byte) (bool, error)
}

var (
	marketKeyPrefix = []byte("lending/market/")
	vaultKeyPrefix  = []byte("lending/vault/")
)

// State persists lending markets and vault positions through a key-value
// store using RLP encoding. It implements the engine's state interface.
type State struct {
	db Storage
}

// NewState wraps the supplied key-value store.
func NewState(db Storage) *State {
	return &State{db: db}
}

func marketKey(asset string) []byte {
	return append(append([]byte(nil), marketKeyPrefix...), asset...)
}

func vaultKey(account AccountID, asset string) []byte {
	key := append(append([]byte(nil), vaultKeyPrefix...), hex.EncodeToString(account[:])...)
	key = append(key, '/')
	return append(key, asset...)
}

func (s *State) GetAssetMarket(asset string) (*AssetMarket, error) {
	key := marketKey(asset)
	ok, err := s.db.Has(key)
	if err != nil || !ok {
		return nil, err
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	market := new(AssetMarket)
	if err := rlp.DecodeBytes(raw, market); err != nil {
		return nil, err
	}
	return market, nil
}

func (s *State) PutAssetMarket(asset string, market *AssetMarket) error {
	raw, err := rlp.EncodeToBytes(market)
	if err != nil {
		return err
	}
	return s.db.Put(marketKey(asset), raw)
}

func (s *State) GetVault(account AccountID, asset string) (*VaultPosition, error) {
	key := vaultKey(account, asset)
	ok, err := s.db.Has(key)
	if err != nil || !ok {
		return nil, err
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	vault := new(VaultPosition)
	if err := rlp.DecodeBytes(raw, vault); err != nil {
		return nil, err
	}
	return vault, nil
}

func (s *State) PutVault(vault *VaultPosition) error {
	raw, err := rlp.EncodeToBytes(vault)
	if err != nil {
		return err
	}
	return s.db.Put(vaultKey(vault.Account, vault.Asset), raw)
}
