package resourcez

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Store kinds accepted in SessionConfig.Store.
const (
	StoreCookie = "cookie"
	StoreMemory = "memory"
	StoreNoop   = "noop"
)

// Generators accepted in SessionConfig.Generator.
const (
	GeneratorRandom = "random"
	GeneratorUUID   = "uuid"
	GeneratorLegacy = "legacy"
	GeneratorPool   = "pool"
)

const defaultPoolSize = 16

// Configuration errors.
var (
	ErrUnknownFormat    = errors.New("unknown config format")
	ErrInvalidSession   = errors.New("invalid session config")
	ErrCookieJarMissing = errors.New("cookie store configured without a cookie jar")
)

// Config describes the static resource and the session channels of a process.
type Config struct {
	Resource map[string]any  `toml:"resource" yaml:"resource"`
	Sessions []SessionConfig `toml:"sessions" yaml:"sessions"`
}

// SessionConfig describes one session channel.
type SessionConfig struct {
	Name        string        `toml:"name" yaml:"name"`
	Store       string        `toml:"store" yaml:"store"`
	Generator   string        `toml:"generator" yaml:"generator"`
	MaxAge      time.Duration `toml:"max_age" yaml:"max_age"`
	RenewEvery  time.Duration `toml:"renew_every" yaml:"renew_every"`
	DeleteOnEnd bool          `toml:"delete_on_end" yaml:"delete_on_end"`
}

// LoadConfig reads a TOML or YAML config file, chosen by extension.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes data as format ("toml", "yaml" or "yml"), applies
// defaults and validates the result.
func ParseConfig(data []byte, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, err
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if s.Name == "" {
			s.Name = DefaultSessionName
		}
		if s.Store == "" {
			s.Store = StoreCookie
		}
		if s.Generator == "" {
			s.Generator = GeneratorRandom
		}
	}
}

// Validate checks session names, store kinds, generators and durations.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Sessions))
	for _, s := range c.Sessions {
		if !validSessionName(s.Name) {
			return fmt.Errorf("%w: malformed name %q", ErrInvalidSession, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidSession, s.Name)
		}
		seen[s.Name] = true

		switch s.Store {
		case StoreCookie, StoreMemory, StoreNoop:
		default:
			return fmt.Errorf("%w: %s: unknown store %q", ErrInvalidSession, s.Name, s.Store)
		}
		switch s.Generator {
		case GeneratorRandom, GeneratorUUID, GeneratorLegacy, GeneratorPool:
		default:
			return fmt.Errorf("%w: %s: unknown generator %q", ErrInvalidSession, s.Name, s.Generator)
		}
		if s.MaxAge < 0 || s.RenewEvery < 0 {
			return fmt.Errorf("%w: %s: negative duration", ErrInvalidSession, s.Name)
		}
	}
	return nil
}

// validSessionName accepts names that are safe inside a cookie name.
func validSessionName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// Runtime is the wiring produced by Config.Build.
type Runtime struct {
	Provider *Provider
	Registry *Registry
	Renewers []*Renewer
	pools    []*IDPool
}

// Start begins every configured renewal.
func (rt *Runtime) Start() {
	for _, r := range rt.Renewers {
		r.Start()
	}
}

// Close stops renewals and id pools.
func (rt *Runtime) Close() {
	for _, r := range rt.Renewers {
		r.Stop()
	}
	for _, p := range rt.pools {
		p.Close()
	}
}

// Build creates a provider seeded with the configured resource, a registry
// with one manager per session, and a renewer for each session with a renew
// interval. jar is required only by cookie-backed sessions.
func (c Config) Build(jar CookieJar, logger zerolog.Logger) (*Runtime, error) {
	c.Sessions = slices.Clone(c.Sessions)
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	provider := NewProvider(NewResource(c.Resource))
	rt := &Runtime{
		Provider: provider,
		Registry: NewRegistry(provider),
	}

	for _, sc := range c.Sessions {
		store, err := sc.newStore(jar)
		if err != nil {
			rt.Close()
			return nil, err
		}

		opts := []Option{WithLogger(logger.With().Str("store", sc.Store).Logger())}
		gen, pool := sc.newGenerator()
		if pool != nil {
			rt.pools = append(rt.pools, pool)
		}
		opts = append(opts, WithGenerator(gen))
		if sc.DeleteOnEnd {
			opts = append(opts, WithDeleteOnEnd())
		}

		m, err := rt.Registry.Register(sc.Name, store, opts...)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("register session %s: %w", sc.Name, err)
		}
		if sc.RenewEvery > 0 {
			rt.Renewers = append(rt.Renewers, NewRenewer(m, sc.RenewEvery))
		}
	}
	return rt, nil
}

func (sc SessionConfig) newStore(jar CookieJar) (Store, error) {
	switch sc.Store {
	case StoreCookie:
		if jar == nil {
			return nil, fmt.Errorf("%w: %s", ErrCookieJarMissing, sc.Name)
		}
		return NewCookieStore(jar).WithMaxAge(sc.MaxAge), nil
	case StoreMemory:
		return NewMemoryStore(sc.MaxAge), nil
	default:
		return NoopStore{}, nil
	}
}

func (sc SessionConfig) newGenerator() (IDGenerator, *IDPool) {
	switch sc.Generator {
	case GeneratorUUID:
		return UUIDGenerator, nil
	case GeneratorLegacy:
		return LegacyID, nil
	case GeneratorPool:
		pool := NewIDPool(defaultPoolSize, RandomID)
		return pool.Next, pool
	default:
		return RandomID, nil
	}
}
