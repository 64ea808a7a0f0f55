package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SWAPSCOPE"

// Config holds the watch command configuration loaded from flags, env, or config file.
type Config struct {
	Mode                 string
	Endpoints            []string
	Chain                string
	Tables               string
	Watch                []string
	WatchNames           map[string]string
	WatchMode            string
	Topics               []string
	StartBlock           uint64
	PollInterval         time.Duration
	MaxBlocksPerTick     uint64
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	RateLimitCooldown    time.Duration
	HeartbeatInterval    time.Duration
	IdleTimeout          time.Duration
	StatusInterval       time.Duration
	RPCTimeout           time.Duration
	LookupTimeout        time.Duration
	RPCRPS               float64
	Workers              int
	DedupeSize           int
	FetchRetries         int
	TopPairs             int
	QueueSize            int
	TelegramToken        string
	TelegramChatID       string
	JSONLOut             string
	PGDSN                string
	RedisURL             string
	RedisStream          string
	RedisMaxLen          int64
	KafkaBrokers         []string
	KafkaTopic           string
	MetricsAddr          string
	OTLPEndpoint         string
	LogLevel             string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetDefault("mode", "poll")
	v.SetDefault("chain", "bsc")
	v.SetDefault("watch-mode", "watched")
	v.SetDefault("poll-interval", 3*time.Second)
	v.SetDefault("max-blocks-per-tick", uint64(5))
	v.SetDefault("max-reconnect-attempts", 5)
	v.SetDefault("reconnect-delay", time.Second)
	v.SetDefault("max-reconnect-delay", 30*time.Second)
	v.SetDefault("rate-limit-cooldown", time.Second)
	v.SetDefault("heartbeat-interval", 10*time.Second)
	v.SetDefault("idle-timeout", 30*time.Second)
	v.SetDefault("status-interval", time.Minute)
	v.SetDefault("rpc-timeout", 10*time.Second)
	v.SetDefault("lookup-timeout", 5*time.Second)
	v.SetDefault("workers", 4)
	v.SetDefault("dedupe-size", 4096)
	v.SetDefault("fetch-retries", 2)
	v.SetDefault("top-pairs", 3)
	v.SetDefault("queue-size", 256)
	v.SetDefault("redis-max-len", int64(100000))
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Mode:                 strings.ToLower(v.GetString("mode")),
		Endpoints:            getStringSlice(v, "rpc"),
		Chain:                strings.ToLower(v.GetString("chain")),
		Tables:               v.GetString("tables"),
		Watch:                getStringSlice(v, "watch"),
		WatchNames:           getStringMap(v, "watch-names"),
		WatchMode:            strings.ToLower(v.GetString("watch-mode")),
		Topics:               getStringSlice(v, "topics"),
		StartBlock:           v.GetUint64("start-block"),
		PollInterval:         v.GetDuration("poll-interval"),
		MaxBlocksPerTick:     v.GetUint64("max-blocks-per-tick"),
		MaxReconnectAttempts: v.GetInt("max-reconnect-attempts"),
		ReconnectDelay:       v.GetDuration("reconnect-delay"),
		MaxReconnectDelay:    v.GetDuration("max-reconnect-delay"),
		RateLimitCooldown:    v.GetDuration("rate-limit-cooldown"),
		HeartbeatInterval:    v.GetDuration("heartbeat-interval"),
		IdleTimeout:          v.GetDuration("idle-timeout"),
		StatusInterval:       v.GetDuration("status-interval"),
		RPCTimeout:           v.GetDuration("rpc-timeout"),
		LookupTimeout:        v.GetDuration("lookup-timeout"),
		RPCRPS:               v.GetFloat64("rpc-rps"),
		Workers:              v.GetInt("workers"),
		DedupeSize:           v.GetInt("dedupe-size"),
		FetchRetries:         v.GetInt("fetch-retries"),
		TopPairs:             v.GetInt("top-pairs"),
		QueueSize:            v.GetInt("queue-size"),
		TelegramToken:        v.GetString("telegram-token"),
		TelegramChatID:       v.GetString("telegram-chat-id"),
		JSONLOut:             v.GetString("jsonl-out"),
		PGDSN:                v.GetString("pg-dsn"),
		RedisURL:             v.GetString("redis-url"),
		RedisStream:          v.GetString("redis-stream"),
		RedisMaxLen:          v.GetInt64("redis-max-len"),
		KafkaBrokers:         getStringSlice(v, "kafka-brokers"),
		KafkaTopic:           v.GetString("kafka-topic"),
		MetricsAddr:          v.GetString("metrics-addr"),
		OTLPEndpoint:         v.GetString("otlp-endpoint"),
		LogLevel:             v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings that do not depend on the chain tables.
func (c Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("at least one rpc endpoint is required")
	}
	switch c.Mode {
	case "poll":
	case "push":
		for _, endpoint := range c.Endpoints {
			if !isWebSocket(endpoint) {
				return fmt.Errorf("push mode requires ws:// or wss:// endpoints, got %s", endpoint)
			}
		}
	default:
		return fmt.Errorf("mode must be poll or push, got %q", c.Mode)
	}
	if c.WatchMode != "watched" && c.WatchMode != "all" {
		return fmt.Errorf("watch mode must be watched or all, got %q", c.WatchMode)
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return errors.New("telegram token and chat id must be set together")
	}
	return nil
}

func isWebSocket(endpoint string) bool {
	endpoint = strings.ToLower(endpoint)
	return strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://")
}

func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("swapscope")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return splitAndClean(strings.Join(typed, ","))
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
