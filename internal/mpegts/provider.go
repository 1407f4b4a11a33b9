// Package mpegts implements the MPEG transport stream media provider on top
// of the mediacommon reader and writer.
package mpegts

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/observability"
	"github.com/jmylchreest/mediatool/pkg/bytesize"
)

// FormatName is the provider and container name.
const FormatName = "mpegts"

// Config controls how inputs are opened.
type Config struct {
	// ProbePackets bounds how many packets are read ahead while looking for
	// video parameter sets.
	ProbePackets int
	// ScanDuration reads the whole input once at open time to compute frame
	// counts, start times and durations.
	ScanDuration bool
	// ReadMetadata scans the service description and program map tables for
	// service names and languages.
	ReadMetadata      bool
	MetadataProbeSize bytesize.Size
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		ProbePackets:      512,
		ScanDuration:      true,
		ReadMetadata:      true,
		MetadataProbeSize: 4 * bytesize.MB,
	}
}

// Provider opens and creates MPEG-TS files.
type Provider struct {
	cfg    Config
	logger *slog.Logger
}

var _ media.Provider = (*Provider)(nil)

// NewProvider creates an MPEG-TS provider.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if cfg.ProbePackets <= 0 {
		cfg.ProbePackets = DefaultConfig().ProbePackets
	}
	if cfg.MetadataProbeSize <= 0 {
		cfg.MetadataProbeSize = DefaultConfig().MetadataProbeSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:    cfg,
		logger: observability.WithComponent(logger, "mpegts"),
	}
}

func (p *Provider) Name() string { return FormatName }

func (p *Provider) Extensions() []string {
	return []string{".ts", ".m2ts", ".mts", ".m2t"}
}

func (p *Provider) OpenInput(ctx context.Context, path string) (media.Demuxer, error) {
	return openDemuxer(ctx, path, p.cfg, p.loggerFor(ctx))
}

func (p *Provider) CreateOutput(ctx context.Context, path string) (media.Muxer, error) {
	return createMuxer(path, p.loggerFor(ctx))
}

// loggerFor tags the provider logger with the run's correlation id, if any.
func (p *Provider) loggerFor(ctx context.Context) *slog.Logger {
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		return observability.WithCorrelationID(p.logger, id)
	}
	return p.logger
}

// FindEncoder returns the codec the muxer uses for id. No transcoding takes
// place; the codec names the bitstream format written to the track.
func (p *Provider) FindEncoder(id media.CodecID) (media.Codec, error) {
	if !slices.Contains(writableCodecs, id) {
		return media.Codec{}, fmt.Errorf("%w: %s has no MPEG-TS muxer support", media.ErrUnsupportedCodec, id)
	}
	info, ok := codec.Lookup(id)
	if !ok {
		return media.Codec{}, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, id)
	}
	return info.Codec(), nil
}
