package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/constants"
	"github.com/sqmu-io/sqmu-dapp/internal/helpers"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	LocalOnly       bool          `mapstructure:"localOnly"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type WalletSettings struct {
	KeyFile             string `mapstructure:"keyFile"`
	AutoApprove         bool   `mapstructure:"autoApprove"`
	ConfirmTransactions bool   `mapstructure:"confirmTransactions"`
}

type WidgetSettings struct {
	HostPage       string `mapstructure:"hostPage"`
	InjectedConfig string `mapstructure:"injectedConfig"`
}

type ReceiptSettings struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Server    ServerSettings  `mapstructure:"server"`
	Wallet    WalletSettings  `mapstructure:"wallet"`
	Widgets   WidgetSettings  `mapstructure:"widgets"`
	Receipts  ReceiptSettings `mapstructure:"receipts"`
	InfuraKey string          `mapstructure:"infuraKey"`
	Chains    chains.Config   `mapstructure:"chains"`
}

func searchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".config", constants.AppName),
		".",
	}
}

// Load reads the embedded defaults, merges the first config.yaml found on the
// search path, then applies SQMU_* environment overrides.
func Load() (*Config, error) {
	return load(searchPaths())
}

func load(paths []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(EmbeddedConfigYAML)); err != nil {
		return nil, fmt.Errorf("config: embedded defaults: %w", err)
	}

	v.SetConfigName(constants.ConfigFileName)
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("infuraKey", constants.EnvPrefix+"_INFURA_KEY", "INFURA_API_KEY"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Chains.Normalize()
	if err := cfg.applyInfuraKey(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyInfuraKey() error {
	key := strings.TrimSpace(c.InfuraKey)
	if key == "" {
		return nil
	}
	if !helpers.ValidInfuraKey(key) {
		return fmt.Errorf("config: infura key is not a 32 character hex string")
	}
	return c.Chains.InjectInfuraKey(key)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("config: server.port is empty")
	}
	c.Chains.DefaultNetwork = strings.ToLower(strings.TrimSpace(c.Chains.DefaultNetwork))
	if len(c.Chains.Networks) == 0 {
		return fmt.Errorf("config: no chains configured")
	}
	if _, ok := c.Chains.Networks[c.Chains.DefaultNetwork]; !ok {
		return fmt.Errorf("config: default network %q is not configured", c.Chains.DefaultNetwork)
	}
	for name, n := range c.Chains.Networks {
		if err := n.Params().Validate(); err != nil {
			return fmt.Errorf("config: chain %s: %w", name, err)
		}
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	return nil
}
