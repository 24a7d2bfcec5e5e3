package scheduler

import (
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config controls scheduler poll intervals and job selection.
type Config struct {
	ClosureInterval time.Duration `mapstructure:"closureInterval"`
	SweepInterval   time.Duration `mapstructure:"sweepInterval"`
	BillingInterval time.Duration `mapstructure:"billingInterval"`
	JobTimeout      time.Duration `mapstructure:"jobTimeout"`
	EnabledJobs     []string      `mapstructure:"enabledJobs"`
}

func DefaultConfig() Config {
	return Config{
		ClosureInterval: 5 * time.Minute,
		SweepInterval:   time.Minute,
		BillingInterval: time.Hour,
		JobTimeout:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.ClosureInterval <= 0 {
		c.ClosureInterval = defaults.ClosureInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.BillingInterval <= 0 {
		c.BillingInterval = defaults.BillingInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

// ConfigHolder serves the current scheduler config and hot-reloads it when
// the mounted file changes. Poll intervals are read once when the loops
// start; the job timeout and the enabled-job list are read through Get on
// every iteration, so a reload takes effect without a restart.
type ConfigHolder struct {
	current atomic.Value // holds Config
}

// NewStaticHolder wraps a fixed config, for tests and embedders that manage
// reloads themselves.
func NewStaticHolder(cfg Config) *ConfigHolder {
	h := &ConfigHolder{}
	h.set(cfg)
	return h
}

func (h *ConfigHolder) set(cfg Config) {
	h.current.Store(cfg.withDefaults())
}

func NewConfigHolder() (*ConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("scheduler")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/cantine")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CANTINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &ConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.set(DefaultConfig())
		return holder, nil
	}

	var cfg Config
	if err := v.UnmarshalKey("scheduler", &cfg); err != nil {
		return nil, err
	}
	holder.set(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Config
		if err := v.UnmarshalKey("scheduler", &updated); err != nil {
			log.Printf("[scheduler-config] reload failed: %v", err)
			return
		}
		holder.set(updated)
		log.Printf("[scheduler-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ConfigHolder) Get() Config {
	return h.current.Load().(Config)
}
