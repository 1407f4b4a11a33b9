// Package remux copies and trims media containers packet by packet without
// decoding.
package remux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmylchreest/mediatool/internal/config"
	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/observability"
	"github.com/jmylchreest/mediatool/pkg/bytesize"
)

// State is a step of the pipeline lifecycle. States only move forward.
type State int

const (
	StateInit State = iota
	StateInputOpened
	StateOutputCreated
	StateStreamsMapped
	StateHeaderWritten
	StateTrailerWritten
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateInputOpened:
		return "input_opened"
	case StateOutputCreated:
		return "output_created"
	case StateStreamsMapped:
		return "streams_mapped"
	case StateHeaderWritten:
		return "header_written"
	case StateTrailerWritten:
		return "trailer_written"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StepError is returned when a pipeline step fails. State is the last state
// the pipeline reached before the failure.
type StepError struct {
	Op    string
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed after %s: %v", e.Op, e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Provider is the media I/O the pipeline needs.
type Provider interface {
	OpenInput(ctx context.Context, path string) (media.Demuxer, error)
	CreateOutput(ctx context.Context, path string) (media.Muxer, error)
	EncoderFinder
}

// Options controls a Pipeline.
type Options struct {
	Codecs          CodecPolicy
	SkipUnsupported bool
	UnsetPTS        UnsetPTSPolicy
	// MinFreeSpace is checked on the output directory before the output is
	// created. Zero disables the check.
	MinFreeSpace bytesize.Size
	// CreateDirs creates the output directory when it does not exist.
	CreateDirs bool
}

// OptionsFromConfig derives pipeline options from application configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	codecs, err := ParseCodecPolicy(cfg.Remux.CodecPolicy, cfg.Remux.TargetCodec)
	if err != nil {
		return Options{}, err
	}
	unset, err := ParseUnsetPTSPolicy(cfg.Trim.UnsetPTS)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Codecs:          codecs,
		SkipUnsupported: cfg.Remux.SkipUnsupported,
		UnsetPTS:        unset,
		MinFreeSpace:    cfg.Output.MinFreeSpace,
		CreateDirs:      cfg.Output.CreateDirs,
	}, nil
}

// StreamStats counts packets for one input stream.
type StreamStats struct {
	InputIndex int `json:"input_index"`
	// OutputIndex is -1 for skipped streams.
	OutputIndex int   `json:"output_index"`
	Skipped     bool  `json:"skipped,omitempty"`
	Read        int64 `json:"read"`
	Written     int64 `json:"written"`
	Dropped     int64 `json:"dropped"`
}

// Result summarises a pipeline run. It is returned alongside any error and
// reflects progress up to the failure.
type Result struct {
	RunID          string         `json:"run_id"`
	Operation      string         `json:"operation"`
	Input          string         `json:"input"`
	Output         string         `json:"output"`
	State          State          `json:"state"`
	PacketsRead    int64          `json:"packets_read"`
	PacketsWritten int64          `json:"packets_written"`
	PacketsDropped int64          `json:"packets_dropped"`
	StoppedEarly   bool           `json:"stopped_early"`
	Streams        []*StreamStats `json:"streams,omitempty"`

	byInput map[int]*StreamStats
}

func (r *Result) advance(ctx context.Context, logger *slog.Logger, s State) {
	r.State = s
	logger.DebugContext(ctx, "pipeline state", slog.String("state", s.String()))
}

func (r *Result) stream(in int) *StreamStats {
	if st, ok := r.byInput[in]; ok {
		return st
	}
	st := &StreamStats{InputIndex: in, OutputIndex: -1}
	r.byInput[in] = st
	r.Streams = append(r.Streams, st)
	return st
}

type filterFunc func(*media.Packet, media.Rational) Decision

// Pipeline runs remux and trim operations against a provider.
type Pipeline struct {
	provider Provider
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(provider Provider, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		opts:     opts,
		logger:   observability.WithComponent(logger, "remux"),
	}
}

// Remux copies every packet of every stream from in to out.
func (p *Pipeline) Remux(ctx context.Context, in, out string) (*Result, error) {
	return p.run(ctx, "remux", in, out, nil)
}

// Trim copies the packets presented within w from in to out. The first
// packet presented after the window ends the copy for all streams; the output
// is still finalised.
func (p *Pipeline) Trim(ctx context.Context, in, out string, w Window) (*Result, error) {
	return p.run(ctx, "trim", in, out, w.Filter(p.opts.UnsetPTS))
}

func (p *Pipeline) run(ctx context.Context, op, in, out string, filter filterFunc) (res *Result, err error) {
	res = &Result{
		RunID:     observability.NewCorrelationID(),
		Operation: op,
		Input:     in,
		Output:    out,
		byInput:   make(map[int]*StreamStats),
	}
	logger := observability.WithCorrelationID(observability.WithOperation(p.logger, op), res.RunID)
	ctx = observability.ContextWithCorrelationID(ctx, res.RunID)
	ctx = observability.ContextWithLogger(ctx, logger)

	done := observability.TimedOperationWithError(ctx, logger, op, &err)
	defer done()

	fail := func(e error) error {
		return &StepError{Op: op, State: res.State, Err: e}
	}

	logger.InfoContext(ctx, "starting",
		slog.String("input", in),
		slog.String("output", out),
		slog.String("codecs", p.opts.Codecs.String()),
	)

	demux, openErr := p.provider.OpenInput(ctx, in)
	if openErr != nil {
		return res, fail(wrapSentinel(openErr, media.ErrIOOpenFailed))
	}
	defer closeLogged(ctx, logger, demux, "input")
	res.advance(ctx, logger, StateInputOpened)

	if preErr := p.preflight(ctx, out); preErr != nil {
		return res, fail(preErr)
	}
	mux, createErr := p.provider.CreateOutput(ctx, out)
	if createErr != nil {
		return res, fail(wrapSentinel(createErr, media.ErrIOCreateFailed))
	}
	defer closeLogged(ctx, logger, mux, "output")
	res.advance(ctx, logger, StateOutputCreated)

	mapping, mapErr := BuildOutput(ctx, demux, mux, p.provider, MapOptions{
		Codecs:          p.opts.Codecs,
		SkipUnsupported: p.opts.SkipUnsupported,
		Logger:          logger,
	})
	if mapErr != nil {
		return res, fail(mapErr)
	}
	for _, s := range demux.Streams() {
		st := res.stream(s.Index)
		if outIdx, ok := mapping.Lookup(s.Index); ok {
			st.OutputIndex = outIdx
		}
		st.Skipped = mapping.Skipped(s.Index)
	}
	res.advance(ctx, logger, StateStreamsMapped)

	if hdrErr := mux.WriteHeader(ctx); hdrErr != nil {
		return res, fail(wrapSentinel(hdrErr, media.ErrHeaderWriteFailed))
	}
	res.advance(ctx, logger, StateHeaderWritten)

	loopErr := p.copyPackets(ctx, logger, demux, mux, mapping, filter, res)
	if loopErr != nil {
		logger.WarnContext(ctx, "packet loop failed, finalising partial output",
			slog.String("output", out),
			slog.String("error", loopErr.Error()),
		)
	}

	// The trailer is written once on every path that got past the header.
	trailerErr := mux.WriteTrailer(ctx)
	if trailerErr != nil {
		trailerErr = wrapSentinel(trailerErr, media.ErrTrailerWriteFailed)
	} else {
		res.advance(ctx, logger, StateTrailerWritten)
	}

	if loopErr != nil || trailerErr != nil {
		return res, fail(errors.Join(loopErr, trailerErr))
	}

	logger.InfoContext(ctx, "finished",
		slog.Int64("packets_read", res.PacketsRead),
		slog.Int64("packets_written", res.PacketsWritten),
		slog.Int64("packets_dropped", res.PacketsDropped),
		slog.Bool("stopped_early", res.StoppedEarly),
	)
	return res, nil
}

func (p *Pipeline) copyPackets(
	ctx context.Context,
	logger *slog.Logger,
	demux media.Demuxer,
	mux media.Muxer,
	mapping *StreamMapping,
	filter filterFunc,
	res *Result,
) error {
	inputs := make(map[int]*media.Stream, len(demux.Streams()))
	for _, s := range demux.Streams() {
		inputs[s.Index] = s
	}
	trace := logger.Enabled(ctx, observability.LevelTrace)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := demux.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading packet %d: %w", res.PacketsRead, err)
		}
		res.PacketsRead++

		in, ok := inputs[pkt.StreamIndex]
		if !ok {
			return fmt.Errorf("%w: packet references unknown input stream %d", media.ErrStreamLookupFailed, pkt.StreamIndex)
		}
		st := res.stream(in.Index)
		st.Read++

		if filter != nil {
			switch filter(pkt, in.TimeBase) {
			case Stop:
				res.StoppedEarly = true
				logger.DebugContext(ctx, "window end reached",
					slog.Int("stream", in.Index),
					slog.Float64("pts_seconds", PacketSeconds(pkt, in.TimeBase)),
				)
				return nil
			case Drop:
				st.Dropped++
				res.PacketsDropped++
				continue
			}
		}

		if mapping.Skipped(in.Index) {
			st.Dropped++
			res.PacketsDropped++
			continue
		}
		outIdx, ok := mapping.Lookup(in.Index)
		if !ok {
			return fmt.Errorf("%w: input stream %d", media.ErrStreamLookupFailed, in.Index)
		}
		outStream, ok := mux.Stream(outIdx)
		if !ok {
			return fmt.Errorf("%w: output stream %d for input stream %d", media.ErrStreamLookupFailed, outIdx, in.Index)
		}

		pkt.RescaleTS(in.TimeBase, outStream.TimeBase)
		pkt.StreamIndex = outIdx

		if trace {
			logger.Log(ctx, observability.LevelTrace, "writing packet",
				slog.Int("input", in.Index),
				slog.Int("output", outIdx),
				slog.Int64("pts", pkt.PTS),
				slog.Int64("dts", pkt.DTS),
				slog.Int("size", len(pkt.Data)),
			)
		}

		if err := mux.WritePacket(ctx, pkt); err != nil {
			return wrapSentinel(err, media.ErrPacketWriteFailed)
		}
		st.Written++
		res.PacketsWritten++
	}
}

func wrapSentinel(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func closeLogged(ctx context.Context, logger *slog.Logger, c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logger.WarnContext(ctx, "close failed",
			slog.String("handle", what),
			slog.String("error", err.Error()),
		)
	}
}
