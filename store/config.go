package store

import "github.com/pkg/errors"

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Config is the config for the record store.
type Config struct {
	// Backend is "memory" or "bolt".
	Backend string `yaml:"backend"`
	// Path is the bolt file path.
	Path string `yaml:"path"`
	// NumRetries is the number of retries for bolt write transactions.
	NumRetries uint8 `yaml:"numRetries"`
}

// DefaultConfig returns the default config
var DefaultConfig = Config{
	Backend:    BackendMemory,
	Path:       "govledger.db",
	NumRetries: 3,
}

// Open opens the backend selected by cfg.
func Open(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendBolt:
		if cfg.Path == "" {
			return nil, errors.New("bolt backend requires a path")
		}
		return OpenBolt(cfg.Path, cfg.NumRetries)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}
