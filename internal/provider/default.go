package provider

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/mediatool/internal/config"
	"github.com/jmylchreest/mediatool/internal/ffmpeg"
	"github.com/jmylchreest/mediatool/internal/mp4"
	"github.com/jmylchreest/mediatool/internal/mpegts"
)

// Options configures the providers registered by Init.
type Options struct {
	MPEGTS       mpegts.Config
	ProbePath    string
	ProbeTimeout time.Duration
	// DisableProbe skips registering the ffprobe inspector.
	DisableProbe bool
}

// OptionsFromConfig derives provider options from application configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MPEGTS: mpegts.Config{
			ProbePackets:      cfg.MPEGTS.ProbePackets,
			ScanDuration:      cfg.MPEGTS.ScanDuration,
			ReadMetadata:      cfg.MPEGTS.ReadMetadata,
			MetadataProbeSize: cfg.MPEGTS.MetadataProbeSize,
		},
		ProbePath:    cfg.FFmpeg.ProbePath,
		ProbeTimeout: cfg.FFmpeg.ProbeTimeout,
	}
}

// New builds a registry with the MPEG-TS and MP4 providers and, unless
// disabled, the ffprobe inspector.
func New(opts Options, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(mpegts.NewProvider(opts.MPEGTS, logger))
	r.Register(mp4.NewProvider(logger))
	if !opts.DisableProbe {
		prober := ffmpeg.NewProber(ffmpeg.NewBinaryDetector(opts.ProbePath), logger).WithTimeout(opts.ProbeTimeout)
		r.SetInspector(prober)
	}
	return r
}

var (
	initOnce sync.Once
	global   *Registry
)

// Init builds the process-wide registry. Only the first call has any effect;
// later calls return the registry built by the first.
func Init(opts Options, logger *slog.Logger) *Registry {
	initOnce.Do(func() {
		global = New(opts, logger)
	})
	return global
}

// Default returns the process-wide registry, initialising it with default
// options if Init has not been called.
func Default() *Registry {
	return Init(Options{MPEGTS: mpegts.DefaultConfig()}, nil)
}
