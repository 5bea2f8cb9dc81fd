package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
	} `yaml:"server"`
	Venue struct {
		Addr                     string  `yaml:"addr"`
		User                     string  `yaml:"-"`
		Password                 string  `yaml:"-"`
		Currencies               int     `yaml:"currencies"`
		DialTimeoutSeconds       int     `yaml:"dial_timeout_seconds"`
		RequestTimeoutSeconds    int     `yaml:"request_timeout_seconds"`
		ReconnectIntervalSeconds float64 `yaml:"reconnect_interval_seconds"`
	} `yaml:"venue"`
	Trading Trading `yaml:"trading"`

	// fileErr records why the FXARB_CONFIG file could not be applied
	fileErr error
}

// Trading holds the strategy constants. Defaults are the empirically tuned values.
type Trading struct {
	GuardBand           float64 `yaml:"guard_band"`
	MinCycleMultiplier  float64 `yaml:"min_cycle_multiplier"`
	Notional            float64 `yaml:"notional"`
	MaxRequestAmount    float64 `yaml:"max_request_amount"`
	BaseReserve         float64 `yaml:"base_reserve"`
	LoopDeadlineSeconds float64 `yaml:"loop_deadline_seconds"`
	CapitalFloor        float64 `yaml:"capital_floor"`
	CooldownSeconds     float64 `yaml:"cooldown_seconds"`
	DustThreshold       float64 `yaml:"dust_threshold"`
	FallbackRateMin     float64 `yaml:"fallback_rate_min"`
	FallbackRateMax     float64 `yaml:"fallback_rate_max"`
	FallbackParityLimit float64 `yaml:"fallback_parity_limit"`
	FallbackEnabled     bool    `yaml:"fallback_enabled"`
}

func (t Trading) LoopDeadline() time.Duration {
	return time.Duration(t.LoopDeadlineSeconds * float64(time.Second))
}

func (t Trading) Cooldown() time.Duration {
	return time.Duration(t.CooldownSeconds * float64(time.Second))
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Venue.Addr = "localhost:8001"
	c.Venue.Currencies = 100
	c.Venue.DialTimeoutSeconds = 5
	c.Venue.RequestTimeoutSeconds = 5
	c.Venue.ReconnectIntervalSeconds = 20
	c.Trading.GuardBand = 1.5
	c.Trading.MinCycleMultiplier = 1.01
	c.Trading.Notional = 4000
	c.Trading.MaxRequestAmount = 1000
	c.Trading.BaseReserve = 5
	c.Trading.LoopDeadlineSeconds = 12
	c.Trading.CapitalFloor = 12650
	c.Trading.CooldownSeconds = 20 // venue only accepts a reconnect every 20s
	c.Trading.DustThreshold = 0.01
	c.Trading.FallbackRateMin = 0.1
	c.Trading.FallbackRateMax = 10
	c.Trading.FallbackParityLimit = 1.0001
	c.Trading.FallbackEnabled = true
	return c
}

// Default returns the built-in configuration without consulting the environment.
func Default() Config { return defaultConfig() }

func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("FXARB_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			next := c
			if err = yaml.Unmarshal(b, &next); err == nil {
				c = next
			}
		}
		if err != nil {
			c.fileErr = fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if v := os.Getenv("FXARB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FXARB_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("FXARB_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FXARB_PPROF"); v == "1" || v == "true" {
		c.Server.Pprof = true
	}
	if v := os.Getenv("FXARB_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("FXARB_VENUE_ADDR"); v != "" {
		c.Venue.Addr = v
	}
	// credentials only from env
	if v := os.Getenv("FXARB_VENUE_USER"); v != "" {
		c.Venue.User = v
	}
	if v := os.Getenv("FXARB_VENUE_PASSWORD"); v != "" {
		c.Venue.Password = v
	}
	envFloat("FXARB_NOTIONAL", &c.Trading.Notional)
	envFloat("FXARB_CAPITAL_FLOOR", &c.Trading.CapitalFloor)
	envFloat("FXARB_LOOP_DEADLINE_SECONDS", &c.Trading.LoopDeadlineSeconds)
	envFloat("FXARB_COOLDOWN_SECONDS", &c.Trading.CooldownSeconds)
	envFloat("FXARB_GUARD_BAND", &c.Trading.GuardBand)
	envFloat("FXARB_MIN_CYCLE_MULTIPLIER", &c.Trading.MinCycleMultiplier)
	if v := os.Getenv("FXARB_FALLBACK_ENABLED"); v == "0" || v == "false" {
		c.Trading.FallbackEnabled = false
	}
	return c
}

// Validate reports the first setting that would make the trader misbehave, including a
// config file that could not be read or parsed.
func (c Config) Validate() error {
	if c.fileErr != nil {
		return c.fileErr
	}
	t := c.Trading
	for name, v := range map[string]float64{
		"guard_band":            t.GuardBand,
		"min_cycle_multiplier":  t.MinCycleMultiplier,
		"notional":              t.Notional,
		"max_request_amount":    t.MaxRequestAmount,
		"base_reserve":          t.BaseReserve,
		"loop_deadline_seconds": t.LoopDeadlineSeconds,
		"capital_floor":         t.CapitalFloor,
		"cooldown_seconds":      t.CooldownSeconds,
		"dust_threshold":        t.DustThreshold,
		"fallback_rate_min":     t.FallbackRateMin,
		"fallback_rate_max":     t.FallbackRateMax,
		"fallback_parity_limit": t.FallbackParityLimit,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("trading.%s must be finite, got %v", name, v)
		}
	}
	switch {
	case c.Venue.Currencies < 2:
		return fmt.Errorf("venue.currencies must be at least 2, got %d", c.Venue.Currencies)
	case t.GuardBand <= 0:
		return fmt.Errorf("trading.guard_band must be positive, got %v", t.GuardBand)
	case t.MinCycleMultiplier <= 1:
		return fmt.Errorf("trading.min_cycle_multiplier must exceed 1, got %v", t.MinCycleMultiplier)
	case t.Notional <= 0:
		return fmt.Errorf("trading.notional must be positive, got %v", t.Notional)
	case t.MaxRequestAmount <= 0:
		return fmt.Errorf("trading.max_request_amount must be positive, got %v", t.MaxRequestAmount)
	case t.BaseReserve < 0:
		return fmt.Errorf("trading.base_reserve must not be negative, got %v", t.BaseReserve)
	case t.LoopDeadlineSeconds <= 0:
		return fmt.Errorf("trading.loop_deadline_seconds must be positive, got %v", t.LoopDeadlineSeconds)
	case t.CooldownSeconds < 0:
		return fmt.Errorf("trading.cooldown_seconds must not be negative, got %v", t.CooldownSeconds)
	case t.CooldownSeconds < c.Venue.ReconnectIntervalSeconds:
		// a shorter cooldown only moves the wait into Open, inside the loop deadline
		return fmt.Errorf("trading.cooldown_seconds %v is shorter than venue.reconnect_interval_seconds %v", t.CooldownSeconds, c.Venue.ReconnectIntervalSeconds)
	case t.DustThreshold < 0:
		return fmt.Errorf("trading.dust_threshold must not be negative, got %v", t.DustThreshold)
	case t.FallbackParityLimit <= 0:
		return fmt.Errorf("trading.fallback_parity_limit must be positive, got %v", t.FallbackParityLimit)
	case t.FallbackRateMin <= 0 || t.FallbackRateMax <= t.FallbackRateMin:
		return fmt.Errorf("trading fallback rate band (%v, %v) is empty", t.FallbackRateMin, t.FallbackRateMax)
	}
	return nil
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	// out-of-range values are kept so Validate can name them
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
