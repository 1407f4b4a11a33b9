package mpegts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/mediatool/internal/media"
)

type muxState int

const (
	muxCreated muxState = iota
	muxHeaderWritten
	muxTrailerWritten
)

// Muxer writes an MPEG-TS file. Packets are written in the order they are
// received, which keeps the interleaving of the input.
type Muxer struct {
	path   string
	file   *os.File
	bw     *bufio.Writer
	writer *mcmpegts.Writer
	logger *slog.Logger

	streams []*media.Stream
	tracks  []*mcmpegts.Track
	state   muxState
	closed  bool
}

var _ media.Muxer = (*Muxer)(nil)

func createMuxer(path string, logger *slog.Logger) (*Muxer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOCreateFailed, path, err)
	}
	return &Muxer{
		path:   path,
		file:   f,
		bw:     bufio.NewWriterSize(f, 188*512),
		logger: logger,
	}, nil
}

// AddStream adds an elementary stream. The codec must be one the muxer can
// carry and must match the kind of the parameters.
func (m *Muxer) AddStream(c media.Codec, params media.CodecParameters) (*media.Stream, error) {
	if m.state != muxCreated {
		return nil, fmt.Errorf("%w: header already written", media.ErrStreamCreationFailed)
	}
	if c.Kind != params.Kind {
		return nil, fmt.Errorf("%w: %s codec cannot carry a %s stream",
			media.ErrStreamCreationFailed, c.ID, params.Kind)
	}
	tc, err := trackCodec(c.ID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrStreamCreationFailed, err)
	}

	track := &mcmpegts.Track{
		PID:   firstPID + uint16(len(m.tracks)),
		Codec: tc,
	}
	params.CodecID = c.ID
	s := &media.Stream{
		Index:     len(m.streams),
		ID:        int(track.PID),
		TimeBase:  media.MPEGTSTimeBase,
		StartTime: media.NoPTS,
		Params:    params,
		Metadata:  map[string]string{},
	}
	m.tracks = append(m.tracks, track)
	m.streams = append(m.streams, s)

	m.logger.Debug("added MPEG-TS stream",
		slog.Int("stream", s.Index),
		slog.Uint64("pid", uint64(track.PID)),
		slog.String("codec", string(c.ID)))
	return s, nil
}

func (m *Muxer) Stream(index int) (*media.Stream, bool) {
	if index < 0 || index >= len(m.streams) {
		return nil, false
	}
	return m.streams[index], true
}

// WriteHeader writes the PAT and PMT.
func (m *Muxer) WriteHeader(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", media.ErrHeaderWriteFailed, err)
	}
	if m.state != muxCreated {
		return fmt.Errorf("%w: header already written", media.ErrHeaderWriteFailed)
	}
	if len(m.tracks) == 0 {
		return fmt.Errorf("%w: no streams", media.ErrHeaderWriteFailed)
	}

	m.writer = &mcmpegts.Writer{
		W:      m.bw,
		Tracks: m.tracks,
	}
	if err := m.writer.Initialize(); err != nil {
		return fmt.Errorf("%w: initializing mpegts writer: %w", media.ErrHeaderWriteFailed, err)
	}
	m.state = muxHeaderWritten
	return nil
}

// WritePacket writes one packet. Video packets must hold an Annex-B access
// unit; audio packets hold a single frame.
func (m *Muxer) WritePacket(_ context.Context, pkt *media.Packet) error {
	if m.state != muxHeaderWritten {
		return fmt.Errorf("%w: muxer is not between header and trailer", media.ErrPacketWriteFailed)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(m.tracks) {
		return fmt.Errorf("%w: unknown output stream %d", media.ErrPacketWriteFailed, pkt.StreamIndex)
	}
	track := m.tracks[pkt.StreamIndex]

	pts, dts := pkt.PTS, pkt.DTS
	switch {
	case pts == media.NoPTS && dts == media.NoPTS:
		return fmt.Errorf("%w: stream %d: packet has no timestamp", media.ErrPacketWriteFailed, pkt.StreamIndex)
	case pts == media.NoPTS:
		pts = dts
	case dts == media.NoPTS:
		dts = pts
	}

	if err := m.write(track, pts, dts, pkt.Data); err != nil {
		return fmt.Errorf("%w: stream %d: %w", media.ErrPacketWriteFailed, pkt.StreamIndex, err)
	}
	return nil
}

func (m *Muxer) write(track *mcmpegts.Track, pts, dts int64, data []byte) error {
	switch track.Codec.(type) {
	case *mcmpegts.CodecH264:
		return m.writer.WriteH264(track, pts, dts, accessUnit(data))
	case *mcmpegts.CodecH265:
		return m.writer.WriteH265(track, pts, dts, accessUnit(data))
	case *mcmpegts.CodecMPEG4Audio:
		return m.writer.WriteMPEG4Audio(track, pts, [][]byte{data})
	case *mcmpegts.CodecAC3:
		return m.writer.WriteAC3(track, pts, data)
	case *mcmpegts.CodecEAC3:
		return m.writer.WriteEAC3(track, pts, data)
	case *mcmpegts.CodecMPEG1Audio:
		return m.writer.WriteMPEG1Audio(track, pts, [][]byte{data})
	case *mcmpegts.CodecOpus:
		return m.writer.WriteOpus(track, pts, [][]byte{data})
	default:
		return fmt.Errorf("no writer for %T", track.Codec)
	}
}

// accessUnit splits Annex-B data into NAL units. Data without start codes is
// treated as a single NAL unit.
func accessUnit(data []byte) [][]byte {
	var au h264.AnnexB
	if err := au.Unmarshal(data); err != nil || len(au) == 0 {
		return [][]byte{data}
	}
	return au
}

// WriteTrailer flushes buffered output and syncs the file to disk.
func (m *Muxer) WriteTrailer(_ context.Context) error {
	if m.state != muxHeaderWritten {
		return fmt.Errorf("%w: muxer is not between header and trailer", media.ErrTrailerWriteFailed)
	}
	if err := m.bw.Flush(); err != nil {
		return fmt.Errorf("%w: flushing %s: %w", media.ErrTrailerWriteFailed, m.path, err)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", media.ErrTrailerWriteFailed, m.path, err)
	}
	m.state = muxTrailerWritten
	return nil
}

// Close closes the output file. Data not covered by a successful
// WriteTrailer may be lost.
func (m *Muxer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.state == muxTrailerWritten {
		return m.file.Close()
	}
	return errors.Join(m.bw.Flush(), m.file.Close())
}
