// Package config holds the recognized configuration options (§6) and
// supports hot-reloading them from a YAML file.
package config

import (
	"os"
	"sync"

	"github.com/ragcore/ragcore/internal/obslog"
	"github.com/ragcore/ragcore/pkg/index"
	"gopkg.in/yaml.v3"
)

// Config holds every recognized option, all optional (§6).
type Config struct {
	EmbeddingProvider EmbeddingProviderConfig `yaml:"embedding_provider"`
	CORSOrigins       []string                `yaml:"cors_origins"`
	LogLevel          string                  `yaml:"log_level"`
	LogFormat         string                  `yaml:"log_format"`
	Index             IndexConfig             `yaml:"index"`
}

// EmbeddingProviderConfig carries the embedding collaborator's
// credential.
type EmbeddingProviderConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// IndexConfig carries the default index parameters used when a library is
// created without explicit overrides (§4.2).
type IndexConfig struct {
	DefaultType       index.Type `yaml:"default_type"`
	LSHNumTables      int        `yaml:"lsh_num_tables"`
	LSHNumHyperplanes int        `yaml:"lsh_num_hyperplanes"`
	LSHProbes         int        `yaml:"lsh_probes"`
	VPTreeLeafSize    int        `yaml:"vptree_leaf_size"`
	Seed              int64      `yaml:"seed"`
}

// Default returns the documented defaults (§6, §4.2).
func Default() Config {
	return Config{
		CORSOrigins: nil, // nil means "all", per §6
		LogLevel:    "INFO",
		LogFormat:   "console",
		Index: IndexConfig{
			DefaultType:       index.Naive,
			LSHNumTables:      8,
			LSHNumHyperplanes: 8,
			VPTreeLeafSize:    16,
		},
	}
}

// Params converts the configured index defaults into an index.Params.
func (c Config) Params() index.Params {
	return index.Params{
		NumTables:      c.Index.LSHNumTables,
		NumHyperplanes: c.Index.LSHNumHyperplanes,
		Probes:         c.Index.LSHProbes,
		LeafSize:       c.Index.VPTreeLeafSize,
		Seed:           c.Index.Seed,
	}
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Store holds the live configuration. Set replaces it; readers see the new
// value on their next Get. It does not notify anyone of a change.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore creates a Store seeded with the given config.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set atomically replaces the current configuration.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// LogLevel returns the configured log level parsed to obslog.Level.
func (s *Store) LogLevel() obslog.Level {
	return obslog.ParseLevel(s.Get().LogLevel)
}

// LogFormat returns the configured log format parsed to obslog.Format.
func (s *Store) LogFormat() obslog.Format {
	return obslog.ParseFormat(s.Get().LogFormat)
}
