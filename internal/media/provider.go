package media

import (
	"context"
	"io"
)

// Container is a read-only view of an opened media container.
type Container interface {
	Streams() []*Stream
	// Metadata returns container level key/value tags.
	Metadata() map[string]string
	// Duration returns the container duration in TimeBase units, or 0 if unknown.
	Duration() int64
	// BestStream returns the provider's preferred stream of the given kind.
	BestStream(kind MediaKind) (*Stream, bool)
	FormatName() string
}

// InputContainer is an opened container that owns resources.
type InputContainer interface {
	Container
	io.Closer
}

// Demuxer reads packets from an input container in file order. ReadPacket
// returns io.EOF once every packet has been delivered.
type Demuxer interface {
	InputContainer
	ReadPacket(ctx context.Context) (*Packet, error)
}

// Muxer writes an output container. Streams must be added before WriteHeader,
// packets may only be written between WriteHeader and WriteTrailer, and
// WriteTrailer succeeds at most once.
type Muxer interface {
	AddStream(codec Codec, params CodecParameters) (*Stream, error)
	Stream(index int) (*Stream, bool)
	WriteHeader(ctx context.Context) error
	// WritePacket writes a packet whose StreamIndex and timestamps refer to
	// the output stream.
	WritePacket(ctx context.Context, pkt *Packet) error
	WriteTrailer(ctx context.Context) error
	Close() error
}

// Provider opens and creates containers of one family of formats.
type Provider interface {
	Name() string
	Extensions() []string
	OpenInput(ctx context.Context, path string) (Demuxer, error)
	CreateOutput(ctx context.Context, path string) (Muxer, error)
	// FindEncoder returns the codec the provider's muxer uses for id, or an
	// error wrapping ErrUnsupportedCodec.
	FindEncoder(id CodecID) (Codec, error)
}

// Inspector opens containers for metadata inspection only.
type Inspector interface {
	Inspect(ctx context.Context, path string) (InputContainer, error)
}
