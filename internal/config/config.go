package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full runtime configuration for the validation engine.
// Everything is loaded from the environment once at startup; invalid values
// are rejected here, never during request handling.
type Config struct {
	// Engine
	Enabled           bool          // master switch; false bypasses all detection
	ParallelDetection bool          // run detectors on a worker pool instead of sequentially
	MaxValidationTime time.Duration // per-request wall-clock budget for detector fan-out
	WorkerPoolSize    int           // bounded pool size for parallel detection

	// Decision thresholds
	BlockThreshold               float64 // max confidence >= this can escalate to BLOCK
	FlagThreshold                float64 // max confidence >= this escalates to FLAG
	DetectionConfidenceThreshold float64 // server default per-detector threshold

	// Per-detector enabled flags (by detector name). Missing = enabled.
	DetectorEnabled map[string]bool

	// Event logging
	LogAllDetections     bool // persist PASS outcomes too
	AlertOnAttacks       bool
	ProvideUserGuidance  bool
	RecentAlertsSize     int
	MetricsRetentionDays int
	SnapshotInterval     time.Duration

	// Detector result cache
	CacheSize int
	CacheTTL  time.Duration

	// Progressive response
	CleanupInterval time.Duration

	// Sanitization / link heuristics (illustrative defaults; overridable data,
	// not hard-coded logic)
	SanitizePhrases        []string // extra regexes stripped from FLAG-level input
	SuspiciousLinkKeywords []string // nil = package defaults

	// Serving & backends
	HTTPPort      string
	LogLevel      string
	ClickHouseDSN string
	PostgresDSN   string
	AuthCacheTTL  time.Duration
}

// FromEnv builds a Config from RAMPART_* environment variables and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Enabled:           envOrDefaultBool("RAMPART_ENABLED", true),
		ParallelDetection: envOrDefaultBool("RAMPART_PARALLEL_DETECTION", true),
		MaxValidationTime: time.Duration(envOrDefaultInt("RAMPART_MAX_VALIDATION_TIME_MS", 100)) * time.Millisecond,
		WorkerPoolSize:    envOrDefaultInt("RAMPART_WORKER_POOL_SIZE", 8),

		BlockThreshold:               envOrDefaultFloat("RAMPART_BLOCK_THRESHOLD", 0.8),
		FlagThreshold:                envOrDefaultFloat("RAMPART_FLAG_THRESHOLD", 0.5),
		DetectionConfidenceThreshold: envOrDefaultFloat("RAMPART_DETECTION_CONFIDENCE_THRESHOLD", 0.5),

		DetectorEnabled: parseDisabledDetectors(os.Getenv("RAMPART_DISABLED_DETECTORS")),

		LogAllDetections:     envOrDefaultBool("RAMPART_LOG_ALL_DETECTIONS", false),
		AlertOnAttacks:       envOrDefaultBool("RAMPART_ALERT_ON_ATTACKS", true),
		ProvideUserGuidance:  envOrDefaultBool("RAMPART_PROVIDE_USER_GUIDANCE", true),
		RecentAlertsSize:     envOrDefaultInt("RAMPART_RECENT_ALERTS_SIZE", 100),
		MetricsRetentionDays: envOrDefaultInt("RAMPART_METRICS_RETENTION_DAYS", 90),
		SnapshotInterval:     time.Duration(envOrDefaultInt("RAMPART_SNAPSHOT_INTERVAL_S", 300)) * time.Second,

		CacheSize: envOrDefaultInt("RAMPART_CACHE_SIZE", 1000),
		CacheTTL:  time.Duration(envOrDefaultInt("RAMPART_CACHE_TTL_S", 300)) * time.Second,

		CleanupInterval: time.Duration(envOrDefaultInt("RAMPART_CLEANUP_INTERVAL_S", 3600)) * time.Second,

		SanitizePhrases:        parseList(os.Getenv("RAMPART_SANITIZE_PHRASES")),
		SuspiciousLinkKeywords: parseList(os.Getenv("RAMPART_SUSPICIOUS_LINK_KEYWORDS")),

		HTTPPort:      envOrDefault("RAMPART_HTTP_PORT", "8080"),
		LogLevel:      envOrDefault("RAMPART_LOG_LEVEL", "info"),
		ClickHouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		AuthCacheTTL:  time.Duration(envOrDefaultInt("RAMPART_AUTH_CACHE_TTL_S", 30)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every tunable for a sane range. Called at load time so that
// request handling never sees an invalid configuration.
func (c *Config) Validate() error {
	if c.BlockThreshold < 0 || c.BlockThreshold > 1 {
		return fmt.Errorf("config: block threshold %.2f outside [0,1]", c.BlockThreshold)
	}
	if c.FlagThreshold < 0 || c.FlagThreshold > 1 {
		return fmt.Errorf("config: flag threshold %.2f outside [0,1]", c.FlagThreshold)
	}
	if c.FlagThreshold > c.BlockThreshold {
		return fmt.Errorf("config: flag threshold %.2f exceeds block threshold %.2f", c.FlagThreshold, c.BlockThreshold)
	}
	if c.DetectionConfidenceThreshold < 0 || c.DetectionConfidenceThreshold > 1 {
		return fmt.Errorf("config: detection confidence threshold %.2f outside [0,1]", c.DetectionConfidenceThreshold)
	}
	if c.MaxValidationTime <= 0 {
		return fmt.Errorf("config: max validation time must be positive, got %s", c.MaxValidationTime)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("config: worker pool size must be >= 1, got %d", c.WorkerPoolSize)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("config: cache size must be >= 0, got %d", c.CacheSize)
	}
	if c.MetricsRetentionDays < 1 {
		return fmt.Errorf("config: metrics retention must be >= 1 day, got %d", c.MetricsRetentionDays)
	}
	if c.RecentAlertsSize < 1 {
		return fmt.Errorf("config: recent alerts size must be >= 1, got %d", c.RecentAlertsSize)
	}
	return nil
}

// parseList splits a comma-separated env value, dropping empty entries.
func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDisabledDetectors turns "scope,multilingual" into {scope: false, ...}.
func parseDisabledDetectors(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out[name] = false
		}
	}
	return out
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
