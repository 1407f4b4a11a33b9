package mp4

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/pmp4"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// Demuxer reads an MP4 file. Packets of all tracks are delivered in decode
// time order. Video packets carry an Annex-B access unit, with the track's
// parameter sets prepended to key frames that lack them.
type Demuxer struct {
	path   string
	file   *os.File
	logger *slog.Logger

	streams  []*media.Stream
	cursors  []*cursor
	metadata map[string]string
	duration int64
	closed   bool
}

var _ media.Demuxer = (*Demuxer)(nil)

// cursor walks the samples of one track.
type cursor struct {
	stream *media.Stream
	track  *pmp4.Track
	next   int
	dts    int64
	// prefix holds the parameter sets for key frames of video tracks.
	prefix [][]byte
}

func (c *cursor) done() bool { return c.next >= len(c.track.Samples) }

func openDemuxer(ctx context.Context, path string, logger *slog.Logger) (*Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOOpenFailed, path, err)
	}

	d := &Demuxer{
		path:     path,
		file:     f,
		logger:   logger,
		metadata: make(map[string]string),
	}
	if err := d.open(ctx); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOOpenFailed, path, err)
	}
	return d, nil
}

func (d *Demuxer) open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pres pmp4.Presentation
	if err := pres.Unmarshal(d.file); err != nil {
		return fmt.Errorf("reading mp4 presentation: %w", err)
	}

	header, err := readHeaderInfo(d.file)
	if err != nil {
		d.logger.Debug("mp4 header scan incomplete",
			slog.String("path", d.path),
			slog.String("error", err.Error()))
	}
	maps.Copy(d.metadata, header.metadata)

	var first, last int64 = media.NoPTS, media.NoPTS
	for i, track := range pres.Tracks {
		if track.Codec == nil {
			d.logger.Debug("mp4 track has no supported sample entry",
				slog.String("path", d.path),
				slog.Int("track", track.ID))
		}
		s := &media.Stream{
			Index:     i,
			ID:        track.ID,
			TimeBase:  media.Rational{Num: 1, Den: int(track.TimeScale)},
			StartTime: media.NoPTS,
			Params:    paramsFromCodec(track.Codec),
			Metadata:  map[string]string{},
		}
		if lang, ok := header.languages[track.ID]; ok {
			s.Metadata["language"] = lang
		}
		applySampleStats(s, track)
		d.fillVideoDetails(s)

		c := &cursor{stream: s, track: track, dts: int64(track.TimeOffset)}
		if s.Params.CodecID == media.CodecH264 || s.Params.CodecID == media.CodecH265 {
			c.prefix = s.Params.ExtraData
		}
		d.streams = append(d.streams, s)
		d.cursors = append(d.cursors, c)

		if s.StartTime == media.NoPTS {
			continue
		}
		start := media.Rescale(s.StartTime, s.TimeBase, media.MicrosecondTimeBase)
		end := media.Rescale(s.StartTime+s.Duration, s.TimeBase, media.MicrosecondTimeBase)
		if first == media.NoPTS || start < first {
			first = start
		}
		if last == media.NoPTS || end > last {
			last = end
		}
	}
	if first != media.NoPTS {
		d.duration = last - first
	}
	return nil
}

// applySampleStats sets the frame count, start time and duration of a stream
// from its sample table.
func applySampleStats(s *media.Stream, track *pmp4.Track) {
	s.Frames = int64(len(track.Samples))
	dts := int64(track.TimeOffset)
	for _, sample := range track.Samples {
		pts := dts + int64(sample.PTSOffset)
		if s.StartTime == media.NoPTS || pts < s.StartTime {
			s.StartTime = pts
		}
		dts += int64(sample.Duration)
		s.Duration += int64(sample.Duration)
	}
}

// fillVideoDetails fills the video fields the sample entry leaves out.
func (d *Demuxer) fillVideoDetails(s *media.Stream) {
	if s.Kind() != media.KindVideo || len(s.Params.ExtraData) == 0 {
		return
	}
	details, err := codec.DecodeParameters(s.Params)
	if err != nil {
		d.logger.Debug("sample entry parameters did not decode",
			slog.Int("stream", s.Index),
			slog.String("error", err.Error()))
		return
	}
	if v, ok := details.(*media.VideoDetails); ok {
		s.Params.Width, s.Params.Height = v.Width, v.Height
		s.FrameRate = v.FrameRate
	}
}

// ReadPacket returns the sample with the earliest decode time across all
// tracks, or io.EOF after the last one.
func (d *Demuxer) ReadPacket(ctx context.Context) (*media.Packet, error) {
	if d.closed {
		return nil, errors.New("demuxer closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := d.nextCursor()
	if c == nil {
		return nil, io.EOF
	}
	sample := c.track.Samples[c.next]
	if sample.GetPayload == nil {
		return nil, fmt.Errorf("track %d sample %d has no data location", c.track.ID, c.next)
	}
	payload, err := sample.GetPayload()
	if err != nil {
		return nil, fmt.Errorf("reading track %d sample %d: %w", c.track.ID, c.next, err)
	}

	pkt := &media.Packet{
		StreamIndex: c.stream.Index,
		PTS:         c.dts + int64(sample.PTSOffset),
		DTS:         c.dts,
		Duration:    int64(sample.Duration),
		KeyFrame:    !sample.IsNonSyncSample,
		Data:        payload,
	}
	c.dts += int64(sample.Duration)
	c.next++

	if c.prefix != nil {
		data, err := annexB(c.stream.Params.CodecID, payload, pkt.KeyFrame, c.prefix)
		if err != nil {
			return nil, fmt.Errorf("track %d sample %d: %w", c.track.ID, c.next-1, err)
		}
		pkt.Data = data
	}
	return pkt, nil
}

// nextCursor returns the unfinished track with the earliest decode time.
// Ties go to the lower stream index.
func (d *Demuxer) nextCursor() *cursor {
	var best *cursor
	var bestUS int64
	for _, c := range d.cursors {
		if c.done() {
			continue
		}
		us := media.Rescale(c.dts, c.stream.TimeBase, media.MicrosecondTimeBase)
		if best == nil || us < bestUS {
			best, bestUS = c, us
		}
	}
	return best
}

// annexB converts a length-prefixed sample to Annex-B.
func annexB(id media.CodecID, sample []byte, key bool, prefix [][]byte) ([]byte, error) {
	var au h264.AVCC
	if err := au.Unmarshal(sample); err != nil {
		return nil, fmt.Errorf("unpacking length-prefixed NAL units: %w", err)
	}
	nalus := [][]byte(au)
	if key && !codec.HasParamSet(id, nalus) {
		nalus = append(append([][]byte(nil), prefix...), nalus...)
	}
	return h264.AnnexB(nalus).Marshal()
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
	d.cursors = nil
	return d.file.Close()
}
