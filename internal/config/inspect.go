package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	Endpoints  []string
	Chain      string
	Tables     string
	TxHashes   []string
	Out        string
	RPCTimeout time.Duration
	LogLevel   string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v := viper.New()
	v.SetDefault("chain", "bsc")
	v.SetDefault("rpc-timeout", 10*time.Second)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return InspectConfig{}, err
	}

	cfg := InspectConfig{
		Endpoints:  getStringSlice(v, "rpc"),
		Chain:      strings.ToLower(v.GetString("chain")),
		Tables:     v.GetString("tables"),
		TxHashes:   getStringSlice(v, "tx"),
		Out:        v.GetString("out"),
		RPCTimeout: v.GetDuration("rpc-timeout"),
		LogLevel:   v.GetString("log-level"),
	}
	if len(cfg.Endpoints) == 0 {
		return InspectConfig{}, errors.New("at least one rpc endpoint is required")
	}
	if len(cfg.TxHashes) == 0 {
		return InspectConfig{}, errors.New("at least one transaction hash is required")
	}
	return cfg, nil
}

// CalldataConfig holds configuration for the offline calldata command.
type CalldataConfig struct {
	Chain    string
	Tables   string
	To       string
	Data     string
	LogLevel string
}

// LoadCalldata merges config file, environment variables, and flags into CalldataConfig.
func LoadCalldata(cfgFile string, flags *pflag.FlagSet) (CalldataConfig, error) {
	v := viper.New()
	v.SetDefault("chain", "bsc")
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return CalldataConfig{}, err
	}

	cfg := CalldataConfig{
		Chain:    strings.ToLower(v.GetString("chain")),
		Tables:   v.GetString("tables"),
		To:       strings.TrimSpace(v.GetString("to")),
		Data:     strings.TrimSpace(v.GetString("data")),
		LogLevel: v.GetString("log-level"),
	}
	if cfg.To == "" {
		return CalldataConfig{}, errors.New("router address is required")
	}
	if cfg.Data == "" {
		return CalldataConfig{}, errors.New("call data is required")
	}
	return cfg, nil
}
