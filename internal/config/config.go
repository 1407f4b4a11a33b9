// Package config provides configuration management for mediatool using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/pkg/bytesize"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "MEDIATOOL"

// Default configuration values.
const (
	defaultInput             = "assets/sample_video2.mp4"
	defaultTrimOutput        = "assets/outputs/trim_video.mp4"
	defaultCopyOutput        = "assets/outputs/copied_video.mp4"
	defaultTrimStart         = "0"
	defaultTrimDuration      = "10s"
	defaultProbePackets      = 512
	defaultMetadataProbeSize = "4MB"
	defaultProbeTimeout      = 30 * time.Second
)

// Codec policies.
const (
	CodecPolicyCopy  = "copy"
	CodecPolicyFixed = "fixed"
)

// Unset PTS policies.
const (
	UnsetPTSZero        = "zero"
	UnsetPTSPassthrough = "passthrough"
	UnsetPTSDrop        = "drop"
)

// Config holds all configuration for the application.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Run     RunConfig     `mapstructure:"run"`
	Remux   RemuxConfig   `mapstructure:"remux"`
	Trim    TrimConfig    `mapstructure:"trim"`
	MPEGTS  MPEGTSConfig  `mapstructure:"mpegts"`
	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg"`
	Output  OutputConfig  `mapstructure:"output"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// RunConfig holds the paths and window used by the run command.
type RunConfig struct {
	Input        string   `mapstructure:"input"`
	TrimOutput   string   `mapstructure:"trim_output"`
	CopyOutput   string   `mapstructure:"copy_output"`
	TrimStart    Timecode `mapstructure:"trim_start"`
	TrimDuration Timecode `mapstructure:"trim_duration"`
}

// RemuxConfig controls how output streams are created.
type RemuxConfig struct {
	// CodecPolicy is "copy" to keep each input codec or "fixed" to create
	// every output stream with TargetCodec.
	CodecPolicy string `mapstructure:"codec_policy"`
	TargetCodec string `mapstructure:"target_codec"`
	// SkipUnsupported drops input streams the output cannot carry instead of
	// failing the run.
	SkipUnsupported bool `mapstructure:"skip_unsupported"`
}

// TrimConfig controls the trim window filter.
type TrimConfig struct {
	UnsetPTS string `mapstructure:"unset_pts"` // zero, passthrough, drop
}

// MPEGTSConfig controls the MPEG-TS demuxer.
type MPEGTSConfig struct {
	ProbePackets      int           `mapstructure:"probe_packets"`
	ScanDuration      bool          `mapstructure:"scan_duration"`
	ReadMetadata      bool          `mapstructure:"read_metadata"`
	MetadataProbeSize bytesize.Size `mapstructure:"metadata_probe_size"`
}

// FFmpegConfig holds ffprobe settings.
type FFmpegConfig struct {
	ProbePath    string        `mapstructure:"probe_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// OutputConfig controls output file creation.
type OutputConfig struct {
	// MinFreeSpace is the free space required on the output filesystem
	// before writing starts. Zero disables the check.
	MinFreeSpace bytesize.Size `mapstructure:"min_free_space"`
	CreateDirs   bool          `mapstructure:"create_dirs"`
}

// Load loads configuration from file, environment variables, and defaults.
// If configPath is empty, it searches for .mediatool.yaml in standard
// locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	return LoadWithViper(v, configPath)
}

// LoadWithViper is Load using a caller supplied viper instance, so command
// line flags bound to it take precedence over every other source.
func LoadWithViper(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".mediatool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/mediatool")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// SetDefaults sets default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("run.input", defaultInput)
	v.SetDefault("run.trim_output", defaultTrimOutput)
	v.SetDefault("run.copy_output", defaultCopyOutput)
	v.SetDefault("run.trim_start", defaultTrimStart)
	v.SetDefault("run.trim_duration", defaultTrimDuration)

	v.SetDefault("remux.codec_policy", CodecPolicyCopy)
	v.SetDefault("remux.target_codec", "h264")
	v.SetDefault("remux.skip_unsupported", false)

	v.SetDefault("trim.unset_pts", UnsetPTSZero)

	v.SetDefault("mpegts.probe_packets", defaultProbePackets)
	v.SetDefault("mpegts.scan_duration", true)
	v.SetDefault("mpegts.read_metadata", true)
	v.SetDefault("mpegts.metadata_probe_size", defaultMetadataProbeSize)

	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	v.SetDefault("output.min_free_space", "0")
	v.SetDefault("output.create_dirs", true)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Run.TrimStart < 0 || c.Run.TrimDuration < 0 {
		return fmt.Errorf("run.trim_start and run.trim_duration must not be negative")
	}

	switch c.Remux.CodecPolicy {
	case CodecPolicyCopy:
	case CodecPolicyFixed:
		if _, _, ok := codec.Parse(c.Remux.TargetCodec); !ok {
			return fmt.Errorf("remux.target_codec %q is not a known codec", c.Remux.TargetCodec)
		}
	default:
		return fmt.Errorf("remux.codec_policy must be one of: copy, fixed")
	}

	validUnsetPTS := map[string]bool{UnsetPTSZero: true, UnsetPTSPassthrough: true, UnsetPTSDrop: true}
	if !validUnsetPTS[c.Trim.UnsetPTS] {
		return fmt.Errorf("trim.unset_pts must be one of: zero, passthrough, drop")
	}

	if c.MPEGTS.ProbePackets < 1 {
		return fmt.Errorf("mpegts.probe_packets must be at least 1")
	}
	if c.MPEGTS.MetadataProbeSize < 0 {
		return fmt.Errorf("mpegts.metadata_probe_size must not be negative")
	}

	if c.FFmpeg.ProbeTimeout <= 0 {
		return fmt.Errorf("ffmpeg.probe_timeout must be positive")
	}

	if c.Output.MinFreeSpace < 0 {
		return fmt.Errorf("output.min_free_space must not be negative")
	}

	return nil
}
