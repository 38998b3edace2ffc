package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"townsq/config"
	"townsq/crypto"
	"townsq/native/bridge"
	"townsq/native/hub"
	"townsq/native/lending"
	"townsq/observability/logging"
	"townsq/storage"
)

const authorityPassEnv = "TOWNSQ_AUTHORITY_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	handlerAddr := flag.String("handler", "", "Hex generic address the lending handler is registered under")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TOWNSQ_ENV"))
	logger := logging.Setup("townsqd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	authorityKey, err := crypto.LoadFromKeystore(cfg.AuthorityKeystorePath, os.Getenv(authorityPassEnv))
	if err != nil {
		logger.Error("Failed to load authority keystore",
			logging.MaskField("path", cfg.AuthorityKeystorePath), slog.Any("error", err))
		os.Exit(1)
	}
	var authorityNative [20]byte
	copy(authorityNative[:], authorityKey.PubKey().Address().Bytes())
	authority := bridge.GenericFromNative(authorityNative)

	engine, err := buildLendingEngine(cfg, db)
	if err != nil {
		logger.Error("Failed to build lending engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetPauses(pauseView(cfg.Pauses))
	engine.SetTimestamp(uint64(time.Now().Unix()))

	router, err := buildRouter(cfg, db, authority)
	if err != nil {
		logger.Error("Failed to build bridge router", slog.Any("error", err))
		os.Exit(1)
	}
	router.SetPauses(pauseView(cfg.Pauses))

	handlerAddress, err := resolveHandlerAddress(*handlerAddr, authority)
	if err != nil {
		logger.Error("Invalid handler address", slog.Any("error", err))
		os.Exit(1)
	}
	router.RegisterHandler(handlerAddress, hub.NewHandler(engine))

	logger.Info("townsqd started",
		slog.String("network", cfg.NetworkName),
		slog.String("listen", cfg.ListenAddress),
		slog.Int("chains", len(cfg.Chains)),
		slog.Int("assets", len(cfg.Assets)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.Any("error", err))
	}
}

// pauseView adapts configuration pause flags to the module guard interface.
type pauseView config.Pauses

func (p pauseView) IsPaused(module string) bool {
	switch module {
	case "lending":
		return p.Lending
	case "bridge":
		return p.Bridge
	}
	return false
}

func buildLendingEngine(cfg *config.Config, db storage.Database) (*lending.Engine, error) {
	engine := lending.NewEngine(lending.RiskParameters{
		PriceStdDevs:     cfg.Risk.PriceStdDevs,
		MaxHealthFactor:  rayFromBps(cfg.Risk.MaxHealthFactorBps),
		ReserveFactorBps: cfg.Risk.ReserveFactorBps,
		ProtocolFeeBps:   cfg.Risk.ProtocolFeeBps,
	})
	engine.SetState(lending.NewState(db))
	engine.SetInterestModel(lending.NewInterestModel(
		cfg.Interest.BaseRate, cfg.Interest.Slope1, cfg.Interest.Slope2, cfg.Interest.Kink))

	oracle, err := buildOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}
	engine.SetOracle(oracle)

	for _, asset := range cfg.Assets {
		params := lending.AssetParams{
			Asset:                  asset.Symbol,
			Decimals:               asset.Decimals,
			DepositCollateralRatio: rayFromBps(asset.DepositCollateralRatioBps),
			BorrowCollateralRatio:  rayFromBps(asset.BorrowCollateralRatioBps),
			MaxLiquidationBonus:    rayFromBps(asset.MaxLiquidationBonusBps),
		}
		if strings.TrimSpace(asset.BorrowCap) != "" {
			borrowCap, ok := new(big.Int).SetString(strings.TrimSpace(asset.BorrowCap), 10)
			if !ok {
				return nil, fmt.Errorf("asset %s: invalid borrow cap %q", asset.Symbol, asset.BorrowCap)
			}
			params.BorrowCap = borrowCap
		}
		if err := engine.RegisterAsset(params); err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.Symbol, err)
		}
	}
	return engine, nil
}

func buildOracle(cfg config.Oracle) (lending.PriceOracle, error) {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode != "" && mode != "static" {
		return nil, fmt.Errorf("oracle: unsupported mode %q", cfg.Mode)
	}
	oracle := make(lending.StaticOracle, len(cfg.Prices))
	for _, entry := range cfg.Prices {
		price, ok := new(big.Int).SetString(strings.TrimSpace(entry.Price), 10)
		if !ok {
			return nil, fmt.Errorf("oracle: invalid price for %s", entry.Asset)
		}
		confidence := big.NewInt(0)
		if trimmed := strings.TrimSpace(entry.Confidence); trimmed != "" {
			if confidence, ok = new(big.Int).SetString(trimmed, 10); !ok {
				return nil, fmt.Errorf("oracle: invalid confidence for %s", entry.Asset)
			}
		}
		oracle[entry.Asset] = lending.OracleQuote{
			Price:      price,
			Confidence: confidence,
			Decimals:   entry.Decimals,
		}
	}
	return oracle, nil
}

func buildRouter(cfg *config.Config, db storage.Database, authority bridge.GenericAddress) (*bridge.Router, error) {
	registry := bridge.NewChainRegistry()
	for _, chain := range cfg.Chains {
		remote, err := config.DecodeRemoteAdapter(chain.RemoteAdapter)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", chain.ChainID, err)
		}
		entry := bridge.ChainEntry{
			ChainID:       chain.ChainID,
			TransportID:   chain.TransportID,
			DomainID:      chain.DomainID,
			RemoteAdapter: bridge.GenericAddress(remote),
			Available:     chain.Available,
		}
		if err := registry.AddChain(entry); err != nil {
			return nil, fmt.Errorf("chain %d: %w", chain.ChainID, err)
		}
	}

	router := bridge.NewRouter(bridge.NewState(db), registry)
	router.SetAuthority(authority)
	// Transport adapters need live relayer and messenger clients, which this
	// process does not host. The embedding transport layer constructs them
	// against router.Registry() and registers them through AddAdapter under
	// the authority key loaded above.
	return router, nil
}

// rayFromBps widens a basis-point ratio to ray (1e27) precision.
func rayFromBps(bps uint64) *big.Int {
	ray := new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
	value := new(big.Int).Mul(ray, new(big.Int).SetUint64(bps))
	return value.Div(value, big.NewInt(10_000))
}

func resolveHandlerAddress(flagValue string, fallback bridge.GenericAddress) (bridge.GenericAddress, error) {
	if strings.TrimSpace(flagValue) == "" {
		return fallback, nil
	}
	raw, err := config.DecodeRemoteAdapter(flagValue)
	if err != nil {
		return bridge.GenericAddress{}, err
	}
	return bridge.GenericAddress(raw), nil
}
