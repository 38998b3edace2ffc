package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if cfg.Risk.MaxHealthFactorBps < 10_000 {
		return fmt.Errorf("risk: MaxHealthFactorBps below 10000 forbids full recovery")
	}
	if cfg.Risk.ReserveFactorBps+cfg.Risk.ProtocolFeeBps > 10_000 {
		return fmt.Errorf("risk: reserve plus protocol share exceeds 10000 bps")
	}
	if cfg.Interest.Kink <= 0 || cfg.Interest.Kink >= 1 {
		return fmt.Errorf("interest: kink must lie strictly between 0 and 1")
	}
	if cfg.Interest.BaseRate < 0 || cfg.Interest.Slope1 < 0 || cfg.Interest.Slope2 < 0 {
		return fmt.Errorf("interest: negative rate parameter")
	}

	seenAssets := make(map[string]struct{}, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		symbol := strings.TrimSpace(asset.Symbol)
		if symbol == "" {
			return fmt.Errorf("assets: empty symbol")
		}
		if _, ok := seenAssets[symbol]; ok {
			return fmt.Errorf("assets: duplicate symbol %s", symbol)
		}
		seenAssets[symbol] = struct{}{}
		if asset.DepositCollateralRatioBps < 10_000 || asset.BorrowCollateralRatioBps < 10_000 {
			return fmt.Errorf("assets: %s collateral ratios must be at least 10000 bps", symbol)
		}
		if asset.MaxLiquidationBonusBps < 10_000 {
			return fmt.Errorf("assets: %s liquidation bonus below par", symbol)
		}
	}

	seenChains := make(map[uint16]struct{}, len(cfg.Chains))
	seenTransports := make(map[uint16]struct{}, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		if _, ok := seenChains[chain.ChainID]; ok {
			return fmt.Errorf("chains: duplicate chain id %d", chain.ChainID)
		}
		seenChains[chain.ChainID] = struct{}{}
		if _, ok := seenTransports[chain.TransportID]; ok {
			return fmt.Errorf("chains: duplicate transport id %d", chain.TransportID)
		}
		seenTransports[chain.TransportID] = struct{}{}
		if _, err := DecodeRemoteAdapter(chain.RemoteAdapter); err != nil {
			return fmt.Errorf("chains: chain %d: %w", chain.ChainID, err)
		}
	}
	return nil
}

// DecodeRemoteAdapter parses the hex form of a 32-byte remote adapter
// address.
func DecodeRemoteAdapter(s string) ([32]byte, error) {
	var addr [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid remote adapter hex: %w", err)
	}
	if len(raw) != 32 {
		return addr, fmt.Errorf("remote adapter must be 32 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	if addr == ([32]byte{}) {
		return addr, fmt.Errorf("remote adapter must not be zero")
	}
	return addr, nil
}
