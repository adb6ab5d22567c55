// Package config loads the daemon configuration from YAML files layered
// over built-in defaults.
package config

import (
	"os"

	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/ledger"
	"github.com/blockberries/govledger/log"
	"github.com/blockberries/govledger/store"
)

// ErrInvalidCfg indicates an invalid config value.
var ErrInvalidCfg = errors.New("invalid config value")

var (
	// Default is the default config
	Default = Config{
		Program: ledger.DefaultProgramID.String(),
		Store:   store.DefaultConfig,
		GRPC: GRPC{
			Address: "127.0.0.1:26658",
		},
		Metrics: Metrics{
			Address: "127.0.0.1:9464",
		},
	}

	// Validates is the collection of config validation functions
	Validates = []Validate{
		ValidateProgram,
		ValidateStore,
		ValidateGRPC,
	}
)

type (
	// GRPC is the config of the ledger service listener.
	GRPC struct {
		Address string `yaml:"address"`
	}

	// Metrics is the config of the prometheus endpoint. An empty address
	// disables it.
	Metrics struct {
		Address string `yaml:"address"`
	}

	// Config is the root config struct.
	Config struct {
		// Program is the base58 program id addresses are derived under.
		Program string           `yaml:"program"`
		Store   store.Config     `yaml:"store"`
		GRPC    GRPC             `yaml:"grpc"`
		Metrics Metrics          `yaml:"metrics"`
		Log     log.GlobalConfig `yaml:"log"`
	}

	// Validate is the interface of validating the config
	Validate func(Config) error
)

// New creates a config from the defaults overlaid with the given files,
// in order. ${VAR} references are expanded from the environment. With
// no validates given, all of Validates are applied.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}

	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// ProgramID returns the configured program id.
func (cfg Config) ProgramID() (address.Address, error) {
	return address.FromBase58(cfg.Program)
}

// ValidateProgram validates the program id.
func ValidateProgram(cfg Config) error {
	if _, err := cfg.ProgramID(); err != nil {
		return errors.Wrapf(ErrInvalidCfg, "program id %q: %v", cfg.Program, err)
	}
	return nil
}

// ValidateStore validates the store backend.
func ValidateStore(cfg Config) error {
	switch cfg.Store.Backend {
	case store.BackendMemory:
		return nil
	case store.BackendBolt:
		if cfg.Store.Path == "" {
			return errors.Wrap(ErrInvalidCfg, "bolt store needs a path")
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown store backend %q", cfg.Store.Backend)
	}
}

// ValidateGRPC validates the service listener.
func ValidateGRPC(cfg Config) error {
	if cfg.GRPC.Address == "" {
		return errors.Wrap(ErrInvalidCfg, "grpc address is empty")
	}
	return nil
}

// DoNotValidate validates the given config
func DoNotValidate(cfg Config) error { return nil }
