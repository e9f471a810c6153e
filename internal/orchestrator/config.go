package orchestrator

import (
	"fmt"
	"time"

	"github.com/roach88/scriptdelta/internal/diffreport"
	"github.com/roach88/scriptdelta/internal/ir"
)

// Mode selects how eagerly the orchestrator analyzes incrementally.
type Mode string

const (
	ModeAggressive   Mode = "aggressive"
	ModeBalanced     Mode = "balanced"
	ModeConservative Mode = "conservative"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAggressive, ModeBalanced, ModeConservative:
		return m, nil
	}
	return "", fmt.Errorf("unknown performance mode %q", s)
}

// Strategy is the path a call took.
type Strategy string

const (
	StrategyFull        Strategy = "full"
	StrategyIncremental Strategy = "incremental"
	StrategyCached      Strategy = "cached"
)

// Defaults for orchestrator parameters.
const (
	DefaultCacheTTL      = 30 * time.Minute
	DefaultCacheCapacity = 100
	DefaultMaxConcurrent = 3
	DefaultMaxPreload    = 3
	DefaultPreloadDelay  = time.Second
	ChangeHistoryLimit   = 50
)

// Config is the orchestrator's configuration surface. The analyzer itself is
// injected through New.
type Config struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	MaxConcurrent int
	SmartBatching bool
	Mode          Mode
	MaxPreload    int
	PreloadDelay  time.Duration
}

// DefaultConfig returns caching and smart batching enabled, balanced mode.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:  true,
		CacheTTL:      DefaultCacheTTL,
		MaxConcurrent: DefaultMaxConcurrent,
		SmartBatching: true,
		Mode:          ModeBalanced,
		MaxPreload:    DefaultMaxPreload,
		PreloadDelay:  DefaultPreloadDelay,
	}
}

// withDefaults fills zero values. PreloadDelay keeps an explicit zero.
func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Mode == "" {
		c.Mode = ModeBalanced
	}
	if c.MaxPreload <= 0 {
		c.MaxPreload = DefaultMaxPreload
	}
	if c.PreloadDelay < 0 {
		c.PreloadDelay = 0
	}
	return c
}

// AnalyzeOptions tune a single AnalyzeChanges call.
type AnalyzeOptions struct {
	ActorID           string
	CheckKinds        []ir.FindingKind
	SeverityThreshold ir.Severity
	MaxFindings       int

	// GenerateDiff requests an enhanced diff report. It needs an old script.
	GenerateDiff bool
	DiffFormat   diffreport.Format
}

// Performance is a snapshot of the orchestrator's counters.
type Performance struct {
	TotalAnalyses  int           `json:"total_analyses"`
	CacheHits      int           `json:"cache_hits"`
	AverageLatency time.Duration `json:"average_latency"`
	LastLatency    time.Duration `json:"last_latency"`
}
