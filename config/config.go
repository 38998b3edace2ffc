package config

import (
	"os"
	"path/filepath"
	"strings"

	"townsq/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress         string `toml:"ListenAddress"`
	MetricsAddress        string `toml:"MetricsAddress"`
	DataDir               string `toml:"DataDir"`
	NetworkName           string `toml:"NetworkName"`
	AuthorityKeystorePath string `toml:"AuthorityKeystorePath"`

	Risk     Risk     `toml:"Risk"`
	Interest Interest `toml:"Interest"`
	Oracle   Oracle   `toml:"Oracle"`
	Assets   []Asset  `toml:"Assets"`
	Chains   []Chain  `toml:"Chains"`
	Pauses   Pauses   `toml:"Pauses"`
}

// Load loads the configuration from the given path, creating a default file
// and authority keystore on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "townsq-local"
	}
	if cfg.Assets == nil {
		cfg.Assets = []Asset{}
	}
	if cfg.Chains == nil {
		cfg.Chains = []Chain{}
	}

	return cfg, nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AuthorityKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AuthorityKeystorePath != keystorePath {
		cfg.AuthorityKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:  ":6001",
		MetricsAddress: ":9090",
		DataDir:        "./townsq-data",
		NetworkName:    "townsq-local",
		Risk:           DefaultRisk(),
		Interest:       DefaultInterest(),
		Assets:         []Asset{},
		Chains:         []Chain{},
	}
	cfg.AuthorityKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "authority.keystore")
}
