// Package mp4 implements the progressive MP4 media provider on top of the
// mediacommon presentation reader and writer.
package mp4

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/observability"
)

// FormatName is the provider and container name.
const FormatName = "mp4"

// writableCodecs are the codecs the muxer can describe in a sample entry.
var writableCodecs = []media.CodecID{
	media.CodecH264,
	media.CodecH265,
	media.CodecAAC,
	media.CodecAC3,
	media.CodecEAC3,
	media.CodecMP3,
	media.CodecOpus,
}

// Provider opens and creates MP4 files. Inputs are read through their
// sample tables; outputs are assembled at WriteTrailer from samples spooled
// to a temporary file next to the output.
type Provider struct {
	logger *slog.Logger
}

var _ media.Provider = (*Provider)(nil)

func NewProvider(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: observability.WithComponent(logger, "mp4")}
}

func (p *Provider) Name() string { return FormatName }

func (p *Provider) Extensions() []string {
	return []string{".mp4", ".m4v"}
}

func (p *Provider) OpenInput(ctx context.Context, path string) (media.Demuxer, error) {
	return openDemuxer(ctx, path, p.loggerFor(ctx))
}

func (p *Provider) CreateOutput(ctx context.Context, path string) (media.Muxer, error) {
	return createMuxer(path, p.loggerFor(ctx))
}

func (p *Provider) loggerFor(ctx context.Context) *slog.Logger {
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		return observability.WithCorrelationID(p.logger, id)
	}
	return p.logger
}

// FindEncoder returns the codec the muxer uses for id. Samples are copied
// unchanged apart from the NAL unit framing of video.
func (p *Provider) FindEncoder(id media.CodecID) (media.Codec, error) {
	if !slices.Contains(writableCodecs, id) {
		return media.Codec{}, fmt.Errorf("%w: %s has no MP4 muxer support", media.ErrUnsupportedCodec, id)
	}
	info, ok := codec.Lookup(id)
	if !ok {
		return media.Codec{}, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, id)
	}
	return info.Codec(), nil
}
