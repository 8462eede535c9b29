// Package config loads duetlc settings from defaults, an optional config
// file and DUETLC_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/snpike/duet-astro/internal/auth"
	"github.com/snpike/duet-astro/internal/flux"
	"github.com/snpike/duet-astro/internal/orbit"
	"github.com/snpike/duet-astro/internal/synth"
	"github.com/snpike/duet-astro/internal/visibility"
)

// EnvPrefix is prepended to every key to form its environment variable:
// synth.workers is read from DUETLC_SYNTH_WORKERS.
const EnvPrefix = "DUETLC"

// Keys.
const (
	KeyHTTPAddr           = "http_addr"
	KeyLogLevel           = "log_level"
	KeyTrustProxy         = "trust_proxy"
	KeyMaxBodyBytes       = "max_body_bytes"
	KeyAuthEnabled        = "auth.enabled"
	KeyAuthToken          = "auth.token"
	KeySynthWorkers       = "synth.workers"
	KeyExposureLength     = "synth.exposure_length"
	KeySamplesPerExposure = "synth.samples_per_exposure"
	KeyRule               = "synth.rule"
	KeyMaxExposures       = "synth.max_exposures"
	KeyMaxWindows         = "orbit.max_windows"
	KeyOrbitPeriod        = "orbit.period"
	KeyOrbitExposure      = "orbit.exposure_per_orbit"
	KeyOrbitPhase         = "orbit.phase_start"
	KeyTLESourceURL       = "tle.source_url"
	KeyLimbMargin         = "tle.limb_margin_km"
	KeyScanStep           = "tle.scan_step"
	KeyTLECacheDir        = "tle.cache_dir"
	KeyTLECacheMaxFiles   = "tle.cache_max_files"
)

// Config is the resolved configuration.
type Config struct {
	HTTPAddr       string
	LogLevel       slog.Level
	TrustProxy     bool
	MaxBodyBytes   int64
	Auth           auth.Config
	Synth          synth.Config
	ExposureLength float64 // seconds
	Orbit          visibility.Orbit
	TLESourceURL   string
	// TLECacheDir keeps recent downloads from TLESourceURL; empty disables
	// the cache.
	TLECacheDir      string
	TLECacheMaxFiles int
	Scan             orbit.ScanConfig
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		LogLevel:         slog.LevelInfo,
		MaxBodyBytes:     8 << 20,
		Synth:            defaultSynth(),
		ExposureLength:   300,
		Orbit:            visibility.DefaultOrbit(),
		TLECacheMaxFiles: 5,
		Scan:             orbit.DefaultScanConfig(),
	}
}

func defaultSynth() synth.Config {
	c := synth.DefaultConfig()
	c.MaxExposures = 1_000_000
	c.MaxWindows = visibility.DefaultMaxWindows
	return c
}

// New returns a viper instance with defaults registered and environment
// binding enabled. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault(KeyHTTPAddr, d.HTTPAddr)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTrustProxy, false)
	v.SetDefault(KeyMaxBodyBytes, d.MaxBodyBytes)
	v.SetDefault(KeyAuthEnabled, false)
	v.SetDefault(KeyAuthToken, "")
	v.SetDefault(KeySynthWorkers, d.Synth.Workers)
	v.SetDefault(KeyExposureLength, d.ExposureLength)
	v.SetDefault(KeySamplesPerExposure, d.Synth.SamplesPerExposure)
	v.SetDefault(KeyRule, d.Synth.Rule.String())
	v.SetDefault(KeyMaxExposures, d.Synth.MaxExposures)
	v.SetDefault(KeyMaxWindows, d.Synth.MaxWindows)
	v.SetDefault(KeyOrbitPeriod, d.Orbit.Period)
	v.SetDefault(KeyOrbitExposure, d.Orbit.ExposurePerOrbit)
	v.SetDefault(KeyOrbitPhase, d.Orbit.PhaseStart)
	v.SetDefault(KeyTLESourceURL, "")
	v.SetDefault(KeyLimbMargin, d.Scan.LimbMarginKm)
	v.SetDefault(KeyScanStep, d.Scan.CoarseStep.String())
	v.SetDefault(KeyTLECacheDir, "")
	v.SetDefault(KeyTLECacheMaxFiles, d.TLECacheMaxFiles)
	return v
}

// Load reads configFile (if not empty) into v and resolves every key.
// Malformed numeric or duration values are logged and replaced by their
// defaults. A malformed boolean, an unknown rule or a missing auth token is
// an error.
func Load(v *viper.Viper, configFile string, logger *slog.Logger) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		logger.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	cfg := Default()
	l := loader{v: v, logger: logger}

	cfg.HTTPAddr = v.GetString(KeyHTTPAddr)
	cfg.TLESourceURL = v.GetString(KeyTLESourceURL)
	cfg.TLECacheDir = v.GetString(KeyTLECacheDir)

	var err error
	if cfg.LogLevel, err = parseLevel(v.GetString(KeyLogLevel)); err != nil {
		logger.Warn("invalid log_level value, using default", "value", v.GetString(KeyLogLevel), "default", "info")
		cfg.LogLevel = slog.LevelInfo
	}

	if cfg.TrustProxy, err = l.boolean(KeyTrustProxy); err != nil {
		return Config{}, err
	}
	if cfg.Auth.Enabled, err = l.boolean(KeyAuthEnabled); err != nil {
		return Config{}, err
	}
	if cfg.Auth.Enabled {
		cfg.Auth.Token = v.GetString(KeyAuthToken)
		if cfg.Auth.Token == "" {
			return Config{}, errors.New(envName(KeyAuthToken) + " is required when auth is enabled")
		}
	}

	cfg.MaxBodyBytes = int64(l.positiveInt(KeyMaxBodyBytes, int(cfg.MaxBodyBytes)))
	cfg.Synth.Workers = l.positiveInt(KeySynthWorkers, runtime.NumCPU())
	cfg.Synth.SamplesPerExposure = l.atLeastInt(KeySamplesPerExposure, 2, cfg.Synth.SamplesPerExposure)
	cfg.Synth.MaxExposures = l.atLeastInt(KeyMaxExposures, 0, cfg.Synth.MaxExposures)
	cfg.Synth.MaxWindows = l.positiveInt(KeyMaxWindows, cfg.Synth.MaxWindows)
	if cfg.Synth.Rule, err = flux.ParseRule(v.GetString(KeyRule)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyRule, err)
	}

	cfg.ExposureLength = l.positiveFloat(KeyExposureLength, cfg.ExposureLength)
	cfg.Orbit.Period = l.positiveFloat(KeyOrbitPeriod, cfg.Orbit.Period)
	cfg.Orbit.ExposurePerOrbit = l.positiveFloat(KeyOrbitExposure, cfg.Orbit.ExposurePerOrbit)
	cfg.Orbit.PhaseStart = l.float(KeyOrbitPhase, cfg.Orbit.PhaseStart)

	cfg.Scan.LimbMarginKm = l.float(KeyLimbMargin, cfg.Scan.LimbMarginKm)
	cfg.Scan.CoarseStep = l.duration(KeyScanStep, cfg.Scan.CoarseStep)
	cfg.TLECacheMaxFiles = l.positiveInt(KeyTLECacheMaxFiles, cfg.TLECacheMaxFiles)

	logger.Debug("config",
		"http_addr", cfg.HTTPAddr,
		"auth_enabled", cfg.Auth.Enabled,
		"trust_proxy", cfg.TrustProxy,
		"workers", cfg.Synth.Workers,
		"samples_per_exposure", cfg.Synth.SamplesPerExposure,
		"rule", cfg.Synth.Rule.String(),
		"exposure_length", cfg.ExposureLength,
		"orbit_period", cfg.Orbit.Period,
		"orbit_exposure", cfg.Orbit.ExposurePerOrbit,
	)
	return cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(strings.TrimSpace(s)))
	return lvl, err
}

// loader reads values through their string form so malformed input can be
// detected instead of silently coerced to zero.
type loader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func (l loader) raw(key string) string {
	return strings.TrimSpace(l.v.GetString(key))
}

func (l loader) boolean(key string) (bool, error) {
	s := l.raw(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean value (true/false/1/0), got %q", envName(key), s)
	}
	return b, nil
}

func (l loader) positiveInt(key string, def int) int {
	return l.atLeastInt(key, 1, def)
}

func (l loader) atLeastInt(key string, lo, def int) int {
	s := l.raw(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < lo {
		l.logger.Warn("invalid "+envName(key)+" value, using default", "value", s, "default", def)
		return def
	}
	return n
}

func (l loader) float(key string, def float64) float64 {
	s := l.raw(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		l.logger.Warn("invalid "+envName(key)+" value, using default", "value", s, "default", def)
		return def
	}
	return f
}

func (l loader) positiveFloat(key string, def float64) float64 {
	f := l.float(key, def)
	if !(f > 0) {
		l.logger.Warn("invalid "+envName(key)+" value, using default", "value", f, "default", def)
		return def
	}
	return f
}

// duration accepts a Go duration ("30s") or a bare number of seconds.
func (l loader) duration(key string, def time.Duration) time.Duration {
	s := l.raw(key)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		return time.Duration(n * float64(time.Second))
	}
	l.logger.Warn("invalid "+envName(key)+" value, using default", "value", s, "default", def.String())
	return def
}
