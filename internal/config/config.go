// Package config loads and validates qcfang runtime configuration.
package config

import "errors"

// Config is the top-level configuration struct for qcfang.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Title      string          `mapstructure:"title"`
	OutputDir  string          `mapstructure:"output_dir"`
	Modules    []string        `mapstructure:"modules"`
	DataFormat string          `mapstructure:"data_format"`
	ReadCount  ReadCountConfig `mapstructure:"read_count"`
	Samples    SamplesConfig   `mapstructure:"samples"`
	Discovery  DiscoveryConfig `mapstructure:"discovery"`
}

// ReadCountConfig holds the shared display scaling for read counts. Every
// module's unit conversion uses the same multiplier so columns stay
// comparable across report sections.
type ReadCountConfig struct {
	Multiplier float64 `mapstructure:"multiplier"`
	Prefix     string  `mapstructure:"prefix"`
	Desc       string  `mapstructure:"desc"`
}

// SamplesConfig holds sample-name handling policy.
type SamplesConfig struct {
	CleanExts []string `mapstructure:"clean_exts"`
	Ignore    []string `mapstructure:"ignore"`
}

// DiscoveryConfig holds file discovery knobs.
type DiscoveryConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// Data file formats.
const (
	DataFormatYAML = "yaml"
	DataFormatJSON = "json"
)

// Defaults applied when no config file overrides them.
const (
	DefaultTitle               = "QC Report"
	DefaultOutputDir           = "."
	DefaultDataFormat          = DataFormatYAML
	DefaultReadCountMultiplier = 0.000001
	DefaultReadCountPrefix     = "M"
	DefaultReadCountDesc       = "millions"
	DefaultMaxFileSize         = int64(16 << 20)
)

// DefaultCleanExts are the filename suffixes stripped from sample names.
func DefaultCleanExts() []string {
	return []string{".gz", ".fastq", ".fq", ".bam", ".sam", "_val_1", "_val_2", "_trimmed"}
}

// Default returns a configuration with every default applied, matching what
// Load produces when no config file is found.
func Default() *Config {
	return &Config{
		Title:      DefaultTitle,
		OutputDir:  DefaultOutputDir,
		DataFormat: DefaultDataFormat,
		ReadCount: ReadCountConfig{
			Multiplier: DefaultReadCountMultiplier,
			Prefix:     DefaultReadCountPrefix,
			Desc:       DefaultReadCountDesc,
		},
		Samples: SamplesConfig{
			CleanExts: DefaultCleanExts(),
		},
		Discovery: DiscoveryConfig{
			MaxFileSize: DefaultMaxFileSize,
		},
	}
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidReadCountMultiplier indicates a non-positive multiplier.
	ErrInvalidReadCountMultiplier = errors.New("read_count.multiplier must be positive")
	// ErrInvalidDataFormat indicates an unsupported data file format.
	ErrInvalidDataFormat = errors.New("data_format must be yaml or json")
	// ErrInvalidMaxFileSize indicates a non-positive discovery size limit.
	ErrInvalidMaxFileSize = errors.New("discovery.max_file_size must be positive")
)

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.ReadCount.Multiplier <= 0 {
		return ErrInvalidReadCountMultiplier
	}

	if c.DataFormat != DataFormatYAML && c.DataFormat != DataFormatJSON {
		return ErrInvalidDataFormat
	}

	if c.Discovery.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}

	return nil
}
