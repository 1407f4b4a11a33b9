// Package mediatest provides an in-memory media.Provider for tests.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/jmylchreest/mediatool/internal/media"
)

// Input is a scripted input container.
type Input struct {
	Streams  []*media.Stream
	Packets  []*media.Packet
	Metadata map[string]string
	// Duration is in media.TimeBase units.
	Duration int64
	// ReadErr, when set, is returned after ReadErrAfter packets.
	ReadErr      error
	ReadErrAfter int
}

// Output records everything written to an output container.
type Output struct {
	Path    string
	Streams []*media.Stream
	Packets []*media.Packet
	// Events is the ordered list of lifecycle calls: "add_stream", "header",
	// "packet", "trailer" and "close".
	Events []string

	// FailPacketAt makes the Nth (1-based) WritePacket call fail.
	FailPacketAt int
	// FailHeader and FailTrailer make the respective calls fail.
	FailHeader  bool
	FailTrailer bool
	// RejectKinds makes AddStream fail when the codec kind does not match the
	// parameters' kind, mirroring a strict muxer.
	RejectKinds bool
	// TimeBase is the time base assigned to new output streams.
	TimeBase media.Rational
}

// Count returns how many times an event was recorded.
func (o *Output) Count(event string) int {
	n := 0
	for _, e := range o.Events {
		if e == event {
			n++
		}
	}
	return n
}

// Provider is an in-memory media.Provider keyed by path.
type Provider struct {
	mu       sync.Mutex
	inputs   map[string]*Input
	outputs  map[string]*Output
	encoders map[media.CodecID]media.Codec

	// OutputTemplate is copied into every created output.
	OutputTemplate Output
	// OpenErr and CreateErr force OpenInput and CreateOutput to fail.
	OpenErr   error
	CreateErr error

	// OpenedInputs and ClosedInputs count demuxer lifecycle calls.
	OpenedInputs int
	ClosedInputs int
}

var _ media.Provider = (*Provider)(nil)

// NewProvider returns a provider with an H.264 and AAC encoder registered.
func NewProvider() *Provider {
	p := &Provider{
		inputs:  make(map[string]*Input),
		outputs: make(map[string]*Output),
		encoders: map[media.CodecID]media.Codec{
			media.CodecH264: {ID: media.CodecH264, Kind: media.KindVideo, LongName: "H.264 / AVC"},
			media.CodecAAC:  {ID: media.CodecAAC, Kind: media.KindAudio, LongName: "AAC (Advanced Audio Coding)"},
		},
		OutputTemplate: Output{TimeBase: media.MPEGTSTimeBase},
	}
	return p
}

// AddInput registers an input container under path.
func (p *Provider) AddInput(path string, in *Input) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs[path] = in
}

// AddEncoder registers an additional encoder.
func (p *Provider) AddEncoder(c media.Codec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.encoders[c.ID] = c
}

// Output returns the output created at path.
func (p *Provider) Output(path string) (*Output, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.outputs[path]
	return o, ok
}

func (p *Provider) Name() string         { return "memory" }
func (p *Provider) Extensions() []string { return []string{".mem"} }

func (p *Provider) OpenInput(_ context.Context, path string) (media.Demuxer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OpenErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOOpenFailed, path, p.OpenErr)
	}
	in, ok := p.inputs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no such input", media.ErrIOOpenFailed, path)
	}
	p.OpenedInputs++
	return &demuxer{provider: p, in: in}, nil
}

func (p *Provider) CreateOutput(_ context.Context, path string) (media.Muxer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOCreateFailed, path, p.CreateErr)
	}
	out := p.OutputTemplate
	out.Path = path
	out.Streams = nil
	out.Packets = nil
	out.Events = nil
	p.outputs[path] = &out
	return &muxer{out: &out}, nil
}

func (p *Provider) FindEncoder(id media.CodecID) (media.Codec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.encoders[id]
	if !ok {
		return media.Codec{}, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, id)
	}
	return c, nil
}

type demuxer struct {
	provider *Provider
	in       *Input
	next     int
	closed   bool
}

func (d *demuxer) Streams() []*media.Stream { return d.in.Streams }

func (d *demuxer) Metadata() map[string]string { return maps.Clone(d.in.Metadata) }

func (d *demuxer) Duration() int64 { return d.in.Duration }

func (d *demuxer) BestStream(kind media.MediaKind) (*media.Stream, bool) {
	return media.BestStream(d.in.Streams, kind)
}

func (d *demuxer) FormatName() string { return "memory" }

func (d *demuxer) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.closed {
		return nil, errors.New("demuxer closed")
	}
	if d.in.ReadErr != nil && d.next == d.in.ReadErrAfter {
		return nil, d.in.ReadErr
	}
	if d.next >= len(d.in.Packets) {
		return nil, io.EOF
	}
	src := d.in.Packets[d.next]
	d.next++
	pkt := *src
	return &pkt, nil
}

func (d *demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.provider.mu.Lock()
	d.provider.ClosedInputs++
	d.provider.mu.Unlock()
	return nil
}

type muxer struct {
	out     *Output
	header  bool
	trailer bool
	closed  bool
	writes  int
}

func (m *muxer) AddStream(codec media.Codec, params media.CodecParameters) (*media.Stream, error) {
	if m.header {
		return nil, fmt.Errorf("%w: header already written", media.ErrStreamCreationFailed)
	}
	if m.out.RejectKinds && codec.Kind != params.Kind {
		return nil, fmt.Errorf("%w: %s codec cannot carry a %s stream",
			media.ErrStreamCreationFailed, codec.ID, params.Kind)
	}
	params.CodecID = codec.ID
	s := &media.Stream{
		Index:     len(m.out.Streams),
		TimeBase:  m.out.TimeBase,
		StartTime: media.NoPTS,
		Params:    params,
	}
	m.out.Streams = append(m.out.Streams, s)
	m.out.Events = append(m.out.Events, "add_stream")
	return s, nil
}

func (m *muxer) Stream(index int) (*media.Stream, bool) {
	if index < 0 || index >= len(m.out.Streams) {
		return nil, false
	}
	return m.out.Streams[index], true
}

func (m *muxer) WriteHeader(context.Context) error {
	m.out.Events = append(m.out.Events, "header")
	if m.out.FailHeader {
		return fmt.Errorf("%w: scripted failure", media.ErrHeaderWriteFailed)
	}
	m.header = true
	return nil
}

func (m *muxer) WritePacket(_ context.Context, pkt *media.Packet) error {
	if !m.header || m.trailer {
		return fmt.Errorf("%w: muxer not writable", media.ErrPacketWriteFailed)
	}
	if _, ok := m.Stream(pkt.StreamIndex); !ok {
		return fmt.Errorf("%w: unknown output stream %d", media.ErrPacketWriteFailed, pkt.StreamIndex)
	}
	m.writes++
	m.out.Events = append(m.out.Events, "packet")
	if m.out.FailPacketAt > 0 && m.writes == m.out.FailPacketAt {
		return fmt.Errorf("%w: scripted failure", media.ErrPacketWriteFailed)
	}
	cp := *pkt
	m.out.Packets = append(m.out.Packets, &cp)
	return nil
}

func (m *muxer) WriteTrailer(context.Context) error {
	if !m.header || m.trailer {
		return fmt.Errorf("%w: muxer not in header state", media.ErrTrailerWriteFailed)
	}
	m.out.Events = append(m.out.Events, "trailer")
	if m.out.FailTrailer {
		return fmt.Errorf("%w: scripted failure", media.ErrTrailerWriteFailed)
	}
	m.trailer = true
	return nil
}

func (m *muxer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.out.Events = append(m.out.Events, "close")
	return nil
}

// Container is a static media.InputContainer backed by an Input's streams,
// metadata and duration. Packets are ignored.
type Container struct {
	Input
	Format string
	Closed bool
}

var _ media.InputContainer = (*Container)(nil)

func (c *Container) Streams() []*media.Stream    { return c.Input.Streams }
func (c *Container) Metadata() map[string]string { return maps.Clone(c.Input.Metadata) }
func (c *Container) Duration() int64             { return c.Input.Duration }
func (c *Container) FormatName() string          { return c.Format }

func (c *Container) BestStream(kind media.MediaKind) (*media.Stream, bool) {
	return media.BestStream(c.Input.Streams, kind)
}

func (c *Container) Close() error {
	c.Closed = true
	return nil
}
