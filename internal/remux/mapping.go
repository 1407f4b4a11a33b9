package remux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// CodecPolicy selects the codec of each output stream.
type CodecPolicy struct {
	// Target, when set, is used for every output stream. Otherwise each
	// output stream keeps its input stream's codec.
	Target media.CodecID
}

// CopyCodecs keeps every input stream's codec.
func CopyCodecs() CodecPolicy { return CodecPolicy{} }

// FixedCodec creates every output stream with target, whatever the input
// codec. Muxers reject streams whose kind does not match the target.
func FixedCodec(target media.CodecID) CodecPolicy { return CodecPolicy{Target: target} }

// ParseCodecPolicy builds a policy from its configuration name ("copy" or
// "fixed") and, for "fixed", the target codec name.
func ParseCodecPolicy(name, target string) (CodecPolicy, error) {
	switch name {
	case "", "copy":
		return CopyCodecs(), nil
	case "fixed":
		id, _, ok := codec.Parse(target)
		if !ok {
			return CodecPolicy{}, fmt.Errorf("unknown target codec %q", target)
		}
		return FixedCodec(id), nil
	default:
		return CodecPolicy{}, fmt.Errorf("unknown codec policy %q", name)
	}
}

func (p CodecPolicy) codecFor(s *media.Stream) media.CodecID {
	if p.Target != media.CodecUnknown {
		return p.Target
	}
	return s.Params.CodecID
}

func (p CodecPolicy) String() string {
	if p.Target != media.CodecUnknown {
		return "fixed:" + string(p.Target)
	}
	return "copy"
}

// EncoderFinder locates the codec an output stream is created with.
type EncoderFinder interface {
	FindEncoder(id media.CodecID) (media.Codec, error)
}

// MapOptions controls BuildOutput.
type MapOptions struct {
	Codecs CodecPolicy
	// SkipUnsupported leaves input streams without an output stream when no
	// encoder exists or the muxer rejects them. Their packets are dropped.
	SkipUnsupported bool
	Logger          *slog.Logger
}

// StreamMapping maps input stream indexes to output stream indexes. It is
// built once, before any packet is read, and is read-only afterwards.
type StreamMapping struct {
	out     map[int]int
	skipped map[int]struct{}
}

// Lookup returns the output stream index for an input stream index.
func (m *StreamMapping) Lookup(in int) (int, bool) {
	out, ok := m.out[in]
	return out, ok
}

// Skipped reports whether an input stream was deliberately left unmapped.
func (m *StreamMapping) Skipped(in int) bool {
	_, ok := m.skipped[in]
	return ok
}

// Len returns the number of mapped input streams.
func (m *StreamMapping) Len() int { return len(m.out) }

// Inputs returns the mapped input indexes in ascending order.
func (m *StreamMapping) Inputs() []int {
	ins := make([]int, 0, len(m.out))
	for in := range m.out {
		ins = append(ins, in)
	}
	slices.Sort(ins)
	return ins
}

// Outputs returns the set of output indexes in ascending order.
func (m *StreamMapping) Outputs() []int {
	outs := make([]int, 0, len(m.out))
	for _, out := range m.out {
		outs = append(outs, out)
	}
	slices.Sort(outs)
	return outs
}

// BuildOutput creates one output stream per input stream, in input order,
// copying the input codec parameters, and returns the resulting mapping.
// A missing encoder wraps media.ErrUnsupportedCodec; a rejected stream wraps
// media.ErrStreamCreationFailed. A container with no streams yields an empty
// mapping.
func BuildOutput(ctx context.Context, in media.Container, out media.Muxer, finder EncoderFinder, opts MapOptions) (*StreamMapping, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &StreamMapping{
		out:     make(map[int]int, len(in.Streams())),
		skipped: make(map[int]struct{}),
	}

	for _, s := range in.Streams() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := opts.Codecs.codecFor(s)
		enc, err := finder.FindEncoder(id)
		if err == nil {
			var created *media.Stream
			created, err = out.AddStream(enc, s.Params)
			if err == nil {
				m.out[s.Index] = created.Index
				logger.DebugContext(ctx, "mapped stream",
					slog.Int("input", s.Index),
					slog.Int("output", created.Index),
					slog.String("kind", s.Kind().String()),
					slog.String("codec", string(enc.ID)),
				)
				continue
			}
			if !errors.Is(err, media.ErrStreamCreationFailed) {
				err = fmt.Errorf("%w: %w", media.ErrStreamCreationFailed, err)
			}
		} else if !errors.Is(err, media.ErrUnsupportedCodec) {
			err = fmt.Errorf("%w: %w", media.ErrUnsupportedCodec, err)
		}

		if !opts.SkipUnsupported {
			return nil, fmt.Errorf("input stream %d (%s %s): %w", s.Index, s.Kind(), id, err)
		}
		m.skipped[s.Index] = struct{}{}
		logger.WarnContext(ctx, "skipping input stream",
			slog.Int("input", s.Index),
			slog.String("kind", s.Kind().String()),
			slog.String("codec", string(id)),
			slog.String("error", err.Error()),
		)
	}

	return m, nil
}
