package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ActivationConfig drives the registry activation poller. It lives in
// activation.yml so operators can rotate credentials or change the product
// set without a restart.
type ActivationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	APIKey       string        `mapstructure:"apiKey"`
	ProductIDs   []int64       `mapstructure:"productIds"`
	Interval     time.Duration `mapstructure:"interval"`
	RequestDelay time.Duration `mapstructure:"requestDelay"`
	Timeout      time.Duration `mapstructure:"timeout"`
	BatchSize    int           `mapstructure:"batchSize"`
	LockTTL      time.Duration `mapstructure:"lockTTL"`
}

func DefaultActivationConfig() ActivationConfig {
	return ActivationConfig{
		Enabled:      false,
		Interval:     time.Hour,
		RequestDelay: time.Second,
		Timeout:      10 * time.Second,
		BatchSize:    100,
		LockTTL:      30 * time.Minute,
	}
}

type ActivationConfigHolder struct {
	current atomic.Value // holds ActivationConfig
}

func NewActivationConfigHolder() (*ActivationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("activation")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/bsma/config") // Volume-mounted config
	v.AddConfigPath("/etc/bsma")            // System config
	v.AddConfigPath("./config")
	v.AddConfigPath(".") // Current directory (dev mode)

	return newActivationConfigHolder(v, true)
}

func newActivationConfigHolder(v *viper.Viper, watch bool) (*ActivationConfigHolder, error) {
	// secrets are usually injected as BSMA_ACTIVATION_PASSWORD etc.
	v.SetEnvPrefix("BSMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setActivationDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// if config file not found, defaults and env apply
		watch = false
	}

	cfg, err := decodeActivationConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &ActivationConfigHolder{}
	holder.current.Store(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeActivationConfig(v)
			if err != nil {
				log.Printf("[activation-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[activation-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticActivationConfigHolder wraps a fixed config, e.g. for tests.
func NewStaticActivationConfigHolder(cfg ActivationConfig) *ActivationConfigHolder {
	holder := &ActivationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ActivationConfigHolder) Get() ActivationConfig {
	return h.current.Load().(ActivationConfig)
}

func setActivationDefaults(v *viper.Viper) {
	defaults := DefaultActivationConfig()
	v.SetDefault("activation.enabled", defaults.Enabled)
	v.SetDefault("activation.url", "")
	v.SetDefault("activation.username", "")
	v.SetDefault("activation.password", "")
	v.SetDefault("activation.apiKey", "")
	v.SetDefault("activation.productIds", []int64{})
	v.SetDefault("activation.interval", defaults.Interval)
	v.SetDefault("activation.requestDelay", defaults.RequestDelay)
	v.SetDefault("activation.timeout", defaults.Timeout)
	v.SetDefault("activation.batchSize", defaults.BatchSize)
	v.SetDefault("activation.lockTTL", defaults.LockTTL)
}

func decodeActivationConfig(v *viper.Viper) (ActivationConfig, error) {
	// Unmarshal walks every leaf key, so env overrides and per-key defaults
	// apply even when the file only sets part of the section.
	var file struct {
		Activation ActivationConfig `mapstructure:"activation"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return ActivationConfig{}, err
	}
	cfg := file.Activation
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if err := validateActivationConfig(cfg); err != nil {
		return ActivationConfig{}, err
	}
	return cfg, nil
}

func validateActivationConfig(cfg ActivationConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.URL == "" {
		return errors.New("activation.url cannot be empty")
	}
	if len(cfg.ProductIDs) == 0 {
		return errors.New("activation.productIds cannot be empty")
	}
	if cfg.Interval <= 0 {
		return errors.New("activation.interval must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("activation.batchSize must be positive")
	}
	return nil
}
