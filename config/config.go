// Package config loads the project's phink.toml configuration via viper,
// with environment-variable overrides, and handles the re-entrant
// PHINK_START_FUZZING_WITH_CONFIG transport used when a coverage-guided
// driver re-executes the binary as a child process.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package's schema.
const Version = "v0.1.0"

// EnvConfigVar is the environment variable a re-entrant child process reads
// its fuzzing configuration from, set once by the parent orchestrator.
const EnvConfigVar = "PHINK_START_FUZZING_WITH_CONFIG"

// Contract holds the per-contract runtime knobs the chain package's Genesis
// and Call consult. Genesis uses the paths and the constructor payload;
// GasLimit, ProofSizeLimitBytes and StorageDepositLimit are carried and
// defaulted but not enforced on any call.
type Contract struct {
	// WASMPath is the compiled contract blob to upload.
	WASMPath string `mapstructure:"wasm_path" json:"wasm_path"`
	// MetadataPath is the contract's JSON metadata file.
	MetadataPath string `mapstructure:"metadata_path" json:"metadata_path"`
	// ConstructorPayload is a hex-encoded constructor payload; when empty the
	// crafter's default (metadata.Reader.GetConstructorPayload) is used.
	ConstructorPayload string `mapstructure:"constructor_payload" json:"constructor_payload"`
	// GasLimit is a single call's gas limit, in gas units. Defaults to
	// 100 G-units when zero. Not enforced by chain.Call.
	GasLimit uint64 `mapstructure:"gas_limit" json:"gas_limit"`
	// ProofSizeLimitBytes is the call's proof size limit. Defaults to 3 MiB
	// when zero. Not enforced by chain.Call.
	ProofSizeLimitBytes uint64 `mapstructure:"proof_size_limit_bytes" json:"proof_size_limit_bytes"`
	// StorageDepositLimit is the call's storage deposit limit, as a decimal
	// string (empty means unbounded). Not enforced by chain.Call.
	StorageDepositLimit string `mapstructure:"storage_deposit_limit" json:"storage_deposit_limit"`
}

const (
	defaultGasLimit            = 100_000_000_000
	defaultProofSizeLimitBytes = 3 * 1024 * 1024
)

// WithDefaults returns a copy of c with zero-valued limits replaced by the
// package defaults.
func (c Contract) WithDefaults() Contract {
	if c.GasLimit == 0 {
		c.GasLimit = defaultGasLimit
	}
	if c.ProofSizeLimitBytes == 0 {
		c.ProofSizeLimitBytes = defaultProofSizeLimitBytes
	}
	return c
}

// FuzzConfig is the project-wide configuration loaded from phink.toml.
type FuzzConfig struct {
	Contract Contract `mapstructure:"contract" json:"contract"`

	Fuzz struct {
		// CorpusDir is where corpus seed files are written.
		CorpusDir string `mapstructure:"corpus_dir" json:"corpus_dir"`
		// DictionaryPath is where the selector dictionary is written.
		DictionaryPath string `mapstructure:"dictionary_path" json:"dictionary_path"`
		// CoverageDBPath is the bbolt-backed coverage store.
		CoverageDBPath string `mapstructure:"coverage_db_path" json:"coverage_db_path"`
	} `mapstructure:"fuzz" json:"fuzz"`

	Instrumentation struct {
		// SourceDir is the contract source tree the instrumenter forks.
		SourceDir string `mapstructure:"source_dir" json:"source_dir"`
		// TempRootPrefix names the distinguishable prefix under the system
		// temp root that instrumented forks and the clean collaborator use.
		TempRootPrefix string `mapstructure:"temp_root_prefix" json:"temp_root_prefix"`
	} `mapstructure:"instrumentation" json:"instrumentation"`
}

// Defaults returns the baseline configuration applied before a phink.toml is
// merged in.
func Defaults() FuzzConfig {
	var c FuzzConfig
	c.Fuzz.CorpusDir = "./output/phink/corpus"
	c.Fuzz.DictionaryPath = "./output/phink/selectors.dict"
	c.Fuzz.CoverageDBPath = "./output/phink/coverage.db"
	c.Instrumentation.TempRootPrefix = "contractfuzz_instrumented_"
	return c
}

// Load reads phink.toml from dir (or the current directory if dir is empty),
// merges PHINK_-prefixed environment overrides, and returns the resulting
// configuration. A missing config file is not an error: the project runs on
// Defaults() alone.
func Load(dir string) (FuzzConfig, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("phink")
	v.SetConfigType("toml")
	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PHINK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, errors.Wrap(err, "unable to read phink.toml")
		}
	} else if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "unable to parse phink.toml")
	}

	cfg.Contract = cfg.Contract.WithDefaults()
	return cfg, nil
}

// FuzzRunConfig is the payload re-entrant child processes read from
// EnvConfigVar. TOML round-trips awkwardly through a single environment
// variable, so this one transport detail is JSON; the on-disk project file
// remains TOML.
type FuzzRunConfig struct {
	Config       FuzzConfig `json:"config"`
	ContractPath string     `json:"contract_path"`
}

// Encode serializes r for placement into EnvConfigVar.
func (r FuzzRunConfig) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode fuzz run config")
	}
	return string(data), nil
}

// DecodeFuzzRunConfig parses the EnvConfigVar payload written by Encode.
func DecodeFuzzRunConfig(raw string) (FuzzRunConfig, error) {
	var r FuzzRunConfig
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, errors.Wrapf(err, "unable to decode %s", EnvConfigVar)
	}
	return r, nil
}

// String implements fmt.Stringer for diagnostic logging.
func (r FuzzRunConfig) String() string {
	return fmt.Sprintf("FuzzRunConfig{contract=%s, wasm=%s}", r.ContractPath, r.Config.Contract.WASMPath)
}
