// Package config holds the bench command's settings: cobra flags, an
// optional YAML profile underneath them, and the mapping to intern.Options.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/internslice/intern"
	"github.com/IvanBrykalov/internslice/internal/util"
)

// Hash names accepted by --hash.
const (
	HashMurmur3 = "murmur3"
	HashXXHash  = "xxhash"
)

// Logger backends accepted by --logger.
const (
	LoggerZap    = "zap"
	LoggerLogrus = "logrus"
)

// Config captures the table settings and the synthetic workload.
type Config struct {
	ConfigPath string

	// Table
	Shards          int
	InitialCapacity int
	Seed            int64 // < 0 => time-derived
	Hash            string
	AbortOnLeaks    bool
	Static          []string

	// Workload
	Workers    int
	Duration   time.Duration
	Keys       int
	ZipfS      float64
	ReleasePct int
	Hold       int
	RandSeed   int64

	// Observability
	Logger      string
	LogLevel    string
	MetricsAddr string
	PprofAddr   string
}

// BindFlags registers the command-line flags and returns a Config whose
// fields are populated when cobra parses them.
func BindFlags(cmd *cobra.Command) *Config {
	cfg := &Config{}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.ConfigPath, "config", "c", "", "YAML file with settings (flags take precedence)")

	flags.IntVar(&cfg.Shards, "shards", 0, "number of shards, rounded up to a power of two (0 = 2*GOMAXPROCS)")
	flags.IntVar(&cfg.InitialCapacity, "initial-capacity", intern.DefaultInitialCapacity, "initial buckets per shard")
	flags.Int64Var(&cfg.Seed, "seed", -1, "hash seed (negative = derive from the clock)")
	flags.StringVar(&cfg.Hash, "hash", HashMurmur3, "content hash: murmur3 | xxhash")
	flags.BoolVar(&cfg.AbortOnLeaks, "abort-on-leaks", false, "panic at shutdown if entries leaked")
	flags.StringSliceVar(&cfg.Static, "static", nil, "contents resolved to static slices")

	flags.IntVar(&cfg.Workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	flags.DurationVar(&cfg.Duration, "duration", 5*time.Second, "workload duration")
	flags.IntVar(&cfg.Keys, "keys", 100_000, "keyspace size")
	flags.Float64Var(&cfg.ZipfS, "zipf-s", 1.1, "Zipf s > 1 (skew)")
	flags.IntVar(&cfg.ReleasePct, "release-pct", 50, "share of operations that release a held handle [0..100]")
	flags.IntVar(&cfg.Hold, "hold", 256, "max handles held per worker")
	flags.Int64Var(&cfg.RandSeed, "rand-seed", time.Now().UnixNano(), "workload random seed")

	flags.StringVar(&cfg.Logger, "logger", LoggerZap, "log backend: zap | logrus")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug | info | warn | error")
	flags.StringVar(&cfg.MetricsAddr, "http", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
	flags.StringVar(&cfg.PprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")

	return cfg
}

// Validate checks ranges and normalises string settings.
func (c *Config) Validate() error {
	c.Hash = strings.ToLower(strings.TrimSpace(c.Hash))
	switch c.Hash {
	case HashMurmur3, HashXXHash:
	default:
		return fmt.Errorf("unknown hash %q (use %s or %s)", c.Hash, HashMurmur3, HashXXHash)
	}
	c.Logger = strings.ToLower(strings.TrimSpace(c.Logger))
	switch c.Logger {
	case LoggerZap, LoggerLogrus:
	default:
		return fmt.Errorf("unknown logger %q (use %s or %s)", c.Logger, LoggerZap, LoggerLogrus)
	}
	if c.Shards < 0 {
		return fmt.Errorf("shards must be >= 0, got %d", c.Shards)
	}
	if c.Seed > int64(^uint32(0)) {
		return fmt.Errorf("seed %d does not fit in 32 bits", c.Seed)
	}
	if c.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if c.Keys <= 0 {
		return errors.New("keys must be > 0")
	}
	if c.ZipfS <= 1 {
		return fmt.Errorf("zipf-s must be > 1, got %v", c.ZipfS)
	}
	if c.ReleasePct < 0 || c.ReleasePct > 100 {
		return fmt.Errorf("release-pct must be in [0,100], got %d", c.ReleasePct)
	}
	if c.Hold <= 0 {
		return errors.New("hold must be > 0")
	}
	return nil
}

// Options maps the table settings onto intern.Options. Metrics and Logger
// are left for the caller.
func (c *Config) Options() intern.Options {
	shards := c.Shards
	if shards <= 0 {
		shards = util.ReasonableShardCount()
	}
	opt := intern.Options{
		Shards:          shards,
		InitialCapacity: c.InitialCapacity,
		AbortOnLeaks:    c.AbortOnLeaks,
	}
	if c.Seed >= 0 {
		opt.Seed = intern.Seed(uint32(c.Seed))
	}
	if c.Hash == HashXXHash {
		opt.Hash = intern.XXHash
	}
	for _, s := range c.Static {
		opt.Static = append(opt.Static, []byte(s))
	}
	return opt
}

type fileConfig struct {
	Shards          *int           `yaml:"shards"`
	InitialCapacity *int           `yaml:"initial_capacity"`
	Seed            *int64         `yaml:"seed"`
	Hash            *string        `yaml:"hash"`
	AbortOnLeaks    *bool          `yaml:"abort_on_leaks"`
	Static          []string       `yaml:"static"`
	Workers         *int           `yaml:"workers"`
	Duration        *time.Duration `yaml:"duration"`
	Keys            *int           `yaml:"keys"`
	ZipfS           *float64       `yaml:"zipf_s"`
	ReleasePct      *int           `yaml:"release_pct"`
	Hold            *int           `yaml:"hold"`
	Logger          *string        `yaml:"logger"`
	LogLevel        *string        `yaml:"log_level"`
	MetricsAddr     *string        `yaml:"http"`
	PprofAddr       *string        `yaml:"pprof"`
}

// ApplyFile loads cfg.ConfigPath (if set) and applies its values to every
// setting whose flag was not given explicitly.
func ApplyFile(cfg *Config, cmd *cobra.Command) error {
	path := strings.TrimSpace(cfg.ConfigPath)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyFileSettings(cfg, &fc, cmd.Flags())
	return nil
}

func applyFileSettings(cfg *Config, fc *fileConfig, flags *pflag.FlagSet) {
	if fc.Shards != nil && !flagChanged(flags, "shards") {
		cfg.Shards = *fc.Shards
	}
	if fc.InitialCapacity != nil && !flagChanged(flags, "initial-capacity") {
		cfg.InitialCapacity = *fc.InitialCapacity
	}
	if fc.Seed != nil && !flagChanged(flags, "seed") {
		cfg.Seed = *fc.Seed
	}
	if fc.Hash != nil && !flagChanged(flags, "hash") {
		cfg.Hash = strings.TrimSpace(*fc.Hash)
	}
	if fc.AbortOnLeaks != nil && !flagChanged(flags, "abort-on-leaks") {
		cfg.AbortOnLeaks = *fc.AbortOnLeaks
	}
	if fc.Static != nil && !flagChanged(flags, "static") {
		cfg.Static = append([]string(nil), fc.Static...)
	}
	if fc.Workers != nil && !flagChanged(flags, "workers") {
		cfg.Workers = *fc.Workers
	}
	if fc.Duration != nil && !flagChanged(flags, "duration") {
		cfg.Duration = *fc.Duration
	}
	if fc.Keys != nil && !flagChanged(flags, "keys") {
		cfg.Keys = *fc.Keys
	}
	if fc.ZipfS != nil && !flagChanged(flags, "zipf-s") {
		cfg.ZipfS = *fc.ZipfS
	}
	if fc.ReleasePct != nil && !flagChanged(flags, "release-pct") {
		cfg.ReleasePct = *fc.ReleasePct
	}
	if fc.Hold != nil && !flagChanged(flags, "hold") {
		cfg.Hold = *fc.Hold
	}
	if fc.Logger != nil && !flagChanged(flags, "logger") {
		cfg.Logger = strings.TrimSpace(*fc.Logger)
	}
	if fc.LogLevel != nil && !flagChanged(flags, "log-level") {
		cfg.LogLevel = strings.TrimSpace(*fc.LogLevel)
	}
	if fc.MetricsAddr != nil && !flagChanged(flags, "http") {
		cfg.MetricsAddr = strings.TrimSpace(*fc.MetricsAddr)
	}
	if fc.PprofAddr != nil && !flagChanged(flags, "pprof") {
		cfg.PprofAddr = strings.TrimSpace(*fc.PprofAddr)
	}
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}
