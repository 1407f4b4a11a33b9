package mpegts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

const readBufferSize = 188 * 1024

// Demuxer reads an MPEG-TS file. Packets are delivered in file order; video
// packets carry an Annex-B access unit and audio packets a single frame.
type Demuxer struct {
	path   string
	file   *os.File
	reader *mcmpegts.Reader
	clock  *timeline
	logger *slog.Logger

	streams  []*media.Stream
	metadata map[string]string
	duration int64

	// paramSets tracks streams still waiting for in-band parameter sets.
	paramSets map[int]*codec.ParamSets

	queue  []*media.Packet
	eof    bool
	closed bool
}

var _ media.Demuxer = (*Demuxer)(nil)

func openDemuxer(ctx context.Context, path string, cfg Config, logger *slog.Logger) (*Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOOpenFailed, path, err)
	}

	d := &Demuxer{
		path:      path,
		file:      f,
		clock:     newTimeline(),
		logger:    logger,
		metadata:  make(map[string]string),
		paramSets: make(map[int]*codec.ParamSets),
	}

	if err := d.open(ctx, cfg); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOOpenFailed, path, err)
	}
	return d, nil
}

func (d *Demuxer) open(ctx context.Context, cfg Config) error {
	var langs map[uint16]string
	if cfg.ReadMetadata {
		meta, l, err := readServiceInfo(ctx, io.LimitReader(d.file, cfg.MetadataProbeSize.Bytes()))
		if err != nil {
			d.logger.Debug("service information scan incomplete",
				slog.String("path", d.path),
				slog.String("error", err.Error()))
		}
		maps.Copy(d.metadata, meta)
		langs = l
		if _, err := d.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	d.reader = &mcmpegts.Reader{R: bufio.NewReaderSize(d.file, readBufferSize)}
	if err := d.reader.Initialize(); err != nil {
		return fmt.Errorf("initializing mpegts reader: %w", err)
	}

	d.reader.OnDecodeError(func(err error) {
		d.logger.Debug("MPEG-TS decode error",
			slog.String("path", d.path),
			slog.String("error", err.Error()))
	})

	for i, track := range d.reader.Tracks() {
		s := &media.Stream{
			Index:     i,
			ID:        int(track.PID),
			TimeBase:  media.MPEGTSTimeBase,
			StartTime: media.NoPTS,
			Params:    paramsFromTrack(track),
			Metadata:  map[string]string{},
		}
		if lang, ok := langs[track.PID]; ok {
			s.Metadata["language"] = lang
		}
		d.streams = append(d.streams, s)
		d.setupTrackCallback(s, track)
	}

	if err := d.probe(ctx, cfg.ProbePackets); err != nil {
		return err
	}

	if cfg.ScanDuration {
		stats, err := scanStreamStats(ctx, d.path, len(d.streams))
		if err != nil {
			return fmt.Errorf("scanning stream durations: %w", err)
		}
		d.applyStats(stats)
	}
	return nil
}

// setupTrackCallback registers the data callback for a track. Tracks with
// codecs the reader cannot split into frames get no callback and deliver
// no packets.
func (d *Demuxer) setupTrackCallback(s *media.Stream, track *mcmpegts.Track) {
	switch c := track.Codec.(type) {
	case *mcmpegts.CodecH264:
		d.paramSets[s.Index] = codec.NewParamSets(media.CodecH264)
		d.reader.OnDataH264(track, func(pts, dts int64, au [][]byte) error {
			au = stripH264AUD(au)
			return d.handleAccessUnit(s, d.clock.unwrap(pts), d.clock.unwrap(dts), au, h264.IsRandomAccess(au))
		})

	case *mcmpegts.CodecH265:
		d.paramSets[s.Index] = codec.NewParamSets(media.CodecH265)
		d.reader.OnDataH265(track, func(pts, dts int64, au [][]byte) error {
			au = stripH265AUD(au)
			return d.handleAccessUnit(s, d.clock.unwrap(pts), d.clock.unwrap(dts), au, h265.IsRandomAccess(au))
		})

	case *mcmpegts.CodecMPEG4Audio:
		frameDur := codec.FrameDuration(media.CodecAAC, c.Config.SampleRate, s.TimeBase)
		d.reader.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
			d.queueFrames(s, d.clock.unwrap(pts), frameDur, aus)
			return nil
		})

	case *mcmpegts.CodecAC3:
		frameDur := codec.FrameDuration(media.CodecAC3, c.SampleRate, s.TimeBase)
		d.reader.OnDataAC3(track, func(pts int64, frame []byte) error {
			d.queueFrames(s, d.clock.unwrap(pts), frameDur, [][]byte{frame})
			return nil
		})

	case *mcmpegts.CodecEAC3:
		frameDur := codec.FrameDuration(media.CodecEAC3, c.SampleRate, s.TimeBase)
		d.reader.OnDataEAC3(track, func(pts int64, frame []byte) error {
			d.queueFrames(s, d.clock.unwrap(pts), frameDur, [][]byte{frame})
			return nil
		})

	case *mcmpegts.CodecMPEG1Audio:
		d.reader.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
			d.queueFrames(s, d.clock.unwrap(pts), 0, frames)
			return nil
		})

	case *mcmpegts.CodecOpus:
		frameDur := codec.FrameDuration(media.CodecOpus, 48000, s.TimeBase)
		d.reader.OnDataOpus(track, func(pts int64, packets [][]byte) error {
			d.queueFrames(s, d.clock.unwrap(pts), frameDur, packets)
			return nil
		})

	default:
		d.logger.Debug("MPEG-TS track has no packet support",
			slog.Int("stream", s.Index),
			slog.Uint64("pid", uint64(track.PID)),
			slog.String("type", fmt.Sprintf("%T", track.Codec)))
	}
}

func (d *Demuxer) handleAccessUnit(s *media.Stream, pts, dts int64, au [][]byte, key bool) error {
	if len(au) == 0 {
		return nil
	}
	if ps, ok := d.paramSets[s.Index]; ok {
		ps.Collect(au)
	}
	data, err := h264.AnnexB(au).Marshal()
	if err != nil {
		return fmt.Errorf("marshaling access unit: %w", err)
	}
	d.queue = append(d.queue, &media.Packet{
		StreamIndex: s.Index,
		PTS:         pts,
		DTS:         dts,
		KeyFrame:    key,
		Data:        data,
	})
	return nil
}

// Access unit delimiters are dropped on read; the writer inserts its own.
func stripH264AUD(au [][]byte) [][]byte {
	return slices.DeleteFunc(au, func(nalu []byte) bool {
		return len(nalu) == 0 || h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeAccessUnitDelimiter
	})
}

func stripH265AUD(au [][]byte) [][]byte {
	return slices.DeleteFunc(au, func(nalu []byte) bool {
		return len(nalu) == 0 || h265.NALUType((nalu[0]>>1)&0x3F) == h265.NALUType_AUD_NUT
	})
}

// queueFrames splits a PES payload into one packet per audio frame, spacing
// timestamps by the frame duration when it is known.
func (d *Demuxer) queueFrames(s *media.Stream, pts, frameDur int64, frames [][]byte) {
	for _, frame := range frames {
		if len(frame) == 0 {
			continue
		}
		d.queue = append(d.queue, &media.Packet{
			StreamIndex: s.Index,
			PTS:         pts,
			DTS:         pts,
			Duration:    frameDur,
			KeyFrame:    true,
			Data:        frame,
		})
		pts += frameDur
	}
}

// probe reads ahead until every video stream has its parameter sets, the
// packet budget is spent, or the input ends. Packets read here stay queued.
func (d *Demuxer) probe(ctx context.Context, budget int) error {
	for len(d.queue) < budget && !d.eof && d.waitingForParams() {
		if err := d.readMore(ctx); err != nil {
			return err
		}
	}

	for idx, ps := range d.paramSets {
		s := d.streams[idx]
		s.Params.ExtraData = ps.ExtraData()
		if len(s.Params.ExtraData) == 0 {
			d.logger.Debug("no parameter sets found while probing",
				slog.String("path", d.path),
				slog.Int("stream", idx))
			continue
		}
		details, err := codec.DecodeParameters(s.Params)
		if err != nil {
			d.logger.Debug("probed parameter sets did not decode",
				slog.Int("stream", idx),
				slog.String("error", err.Error()))
			continue
		}
		if v, ok := details.(*media.VideoDetails); ok {
			s.Params.Width, s.Params.Height = v.Width, v.Height
			s.FrameRate = v.FrameRate
		}
	}
	d.paramSets = nil

	for _, pkt := range d.queue {
		s := d.streams[pkt.StreamIndex]
		if s.StartTime == media.NoPTS && pkt.PTS != media.NoPTS {
			s.StartTime = pkt.PTS
		}
	}
	return nil
}

func (d *Demuxer) waitingForParams() bool {
	for _, ps := range d.paramSets {
		if !ps.Complete() {
			return true
		}
	}
	return false
}

func (d *Demuxer) readMore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.reader.Read(); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.eof = true
			return nil
		}
		return fmt.Errorf("reading mpegts: %w", err)
	}
	return nil
}

func (d *Demuxer) applyStats(stats []streamStats) {
	var first, last int64 = media.NoPTS, media.NoPTS
	for i, st := range stats {
		if st.frames == 0 {
			continue
		}
		s := d.streams[i]
		s.Frames = st.frames
		s.StartTime = st.minPTS
		s.Duration = st.end() - st.minPTS
		if first == media.NoPTS || st.minPTS < first {
			first = st.minPTS
		}
		if last == media.NoPTS || st.end() > last {
			last = st.end()
		}
	}
	if first != media.NoPTS {
		d.duration = media.Rescale(last-first, media.MPEGTSTimeBase, media.MicrosecondTimeBase)
	}
}

// ReadPacket returns the next packet, or io.EOF after the last one.
func (d *Demuxer) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if d.closed {
		return nil, errors.New("demuxer closed")
	}
	for len(d.queue) == 0 {
		if d.eof {
			return nil, io.EOF
		}
		if err := d.readMore(ctx); err != nil {
			return nil, err
		}
	}
	pkt := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return pkt, nil
}

func (d *Demuxer) Streams() []*media.Stream { return d.streams }

func (d *Demuxer) Metadata() map[string]string { return maps.Clone(d.metadata) }

func (d *Demuxer) Duration() int64 { return d.duration }

func (d *Demuxer) BestStream(kind media.MediaKind) (*media.Stream, bool) {
	return media.BestStream(d.streams, kind)
}

func (d *Demuxer) FormatName() string { return FormatName }

// Close releases the input file. It is safe to call more than once.
func (d *Demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.queue = nil
	return d.file.Close()
}
