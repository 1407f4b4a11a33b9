package mp4

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/pmp4"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// maxMdatSize is the largest sample payload a 32-bit mdat can hold.
const maxMdatSize = math.MaxUint32 - 8

type muxState int

const (
	muxCreated muxState = iota
	muxHeaderWritten
	muxTrailerWritten
)

// outTrack accumulates the sample table of one output stream.
type outTrack struct {
	stream    *media.Stream
	codec     media.CodecID
	params    media.CodecParameters
	timeScale uint32
	samples   []*pmp4.Sample

	// paramSets holds the video parameter sets seen in extradata or in-band.
	paramSets *codec.ParamSets
	// firstFrame is the first audio frame, read for sample entry fields.
	firstFrame []byte

	firstDTS int64
	lastDTS  int64
	lastDur  int64
}

// Muxer writes a progressive MP4 file. The moov box precedes mdat and can
// only be built once every sample is known, so payloads are spooled to a
// temporary file until WriteTrailer assembles the output.
type Muxer struct {
	path   string
	file   *os.File
	spool  *os.File
	bw     *bufio.Writer
	logger *slog.Logger

	streams   []*media.Stream
	tracks    []*outTrack
	spoolSize int64
	state     muxState
	closed    bool
}

var _ media.Muxer = (*Muxer)(nil)

func createMuxer(path string, logger *slog.Logger) (*Muxer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", media.ErrIOCreateFailed, path, err)
	}
	spool, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".mdat-*")
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: sample spool: %w", media.ErrIOCreateFailed, path, err)
	}
	return &Muxer{
		path:   path,
		file:   f,
		spool:  spool,
		bw:     bufio.NewWriterSize(spool, 1<<20),
		logger: logger,
	}, nil
}

// AddStream adds a track. The codec must be one a sample entry can describe
// and must match the kind of the parameters.
func (m *Muxer) AddStream(c media.Codec, params media.CodecParameters) (*media.Stream, error) {
	if m.state != muxCreated {
		return nil, fmt.Errorf("%w: header already written", media.ErrStreamCreationFailed)
	}
	if c.Kind != params.Kind {
		return nil, fmt.Errorf("%w: %s codec cannot carry a %s stream",
			media.ErrStreamCreationFailed, c.ID, params.Kind)
	}
	if !slices.Contains(writableCodecs, c.ID) {
		return nil, fmt.Errorf("%w: %w: %s cannot be carried in MP4",
			media.ErrStreamCreationFailed, media.ErrUnsupportedCodec, c.ID)
	}

	params.CodecID = c.ID
	t := &outTrack{
		codec:     c.ID,
		params:    params,
		timeScale: timeScale(params),
		firstDTS:  media.NoPTS,
		lastDTS:   media.NoPTS,
	}
	if c.ID == media.CodecH264 || c.ID == media.CodecH265 {
		t.paramSets = codec.NewParamSets(c.ID)
		t.paramSets.Collect(params.ExtraData)
	}
	s := &media.Stream{
		Index:     len(m.streams),
		ID:        len(m.streams) + 1,
		TimeBase:  media.Rational{Num: 1, Den: int(t.timeScale)},
		StartTime: media.NoPTS,
		Params:    params,
		Metadata:  map[string]string{},
	}
	t.stream = s
	m.tracks = append(m.tracks, t)
	m.streams = append(m.streams, s)

	m.logger.Debug("added MP4 track",
		slog.Int("stream", s.Index),
		slog.Int("track_id", s.ID),
		slog.String("codec", string(c.ID)),
		slog.Int("timescale", int(t.timeScale)))
	return s, nil
}

func (m *Muxer) Stream(index int) (*media.Stream, bool) {
	if index < 0 || index >= len(m.streams) {
		return nil, false
	}
	return m.streams[index], true
}

// WriteHeader fixes the track list. Nothing reaches the output file until
// WriteTrailer.
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
	m.state = muxHeaderWritten
	return nil
}

// WritePacket appends one sample. Video packets must hold an Annex-B access
// unit; they are stored length-prefixed. Decode timestamps must not go
// backwards within a stream.
func (m *Muxer) WritePacket(_ context.Context, pkt *media.Packet) error {
	if m.state != muxHeaderWritten {
		return fmt.Errorf("%w: muxer is not between header and trailer", media.ErrPacketWriteFailed)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(m.tracks) {
		return fmt.Errorf("%w: unknown output stream %d", media.ErrPacketWriteFailed, pkt.StreamIndex)
	}
	if err := m.write(m.tracks[pkt.StreamIndex], pkt); err != nil {
		return fmt.Errorf("%w: stream %d: %w", media.ErrPacketWriteFailed, pkt.StreamIndex, err)
	}
	return nil
}

func (m *Muxer) write(t *outTrack, pkt *media.Packet) error {
	pts, dts := pkt.PTS, pkt.DTS
	switch {
	case pts == media.NoPTS && dts == media.NoPTS:
		return errors.New("packet has no timestamp")
	case pts == media.NoPTS:
		pts = dts
	case dts == media.NoPTS:
		dts = pts
	}
	if t.lastDTS != media.NoPTS && dts < t.lastDTS {
		return fmt.Errorf("non monotonic dts %d after %d", dts, t.lastDTS)
	}
	if pts-dts < math.MinInt32 || pts-dts > math.MaxInt32 {
		return fmt.Errorf("composition offset %d out of range", pts-dts)
	}

	payload := pkt.Data
	if t.paramSets != nil {
		nalus := accessUnit(payload)
		t.paramSets.Collect(nalus)
		var err error
		if payload, err = h264.AVCC(nalus).Marshal(); err != nil {
			return fmt.Errorf("packing NAL units: %w", err)
		}
	} else if t.firstFrame == nil {
		t.firstFrame = slices.Clone(payload)
	}

	if m.spoolSize+int64(len(payload)) > maxMdatSize {
		return fmt.Errorf("sample data exceeds the %d byte limit of a 32-bit mdat", int64(maxMdatSize))
	}
	if _, err := m.bw.Write(payload); err != nil {
		return fmt.Errorf("spooling sample: %w", err)
	}

	if n := len(t.samples); n > 0 {
		t.lastDur = dts - t.lastDTS
		t.samples[n-1].Duration = uint32(t.lastDur)
	} else {
		t.firstDTS = dts
	}
	t.samples = append(t.samples, &pmp4.Sample{
		Duration:        uint32(max(pkt.Duration, 0)),
		PTSOffset:       int32(pts - dts),
		IsNonSyncSample: t.paramSets != nil && !pkt.KeyFrame,
		PayloadSize:     uint32(len(payload)),
		GetPayload:      m.spoolReader(m.spoolSize, len(payload)),
	})
	t.lastDTS = dts
	m.spoolSize += int64(len(payload))

	if t.stream.StartTime == media.NoPTS || pts < t.stream.StartTime {
		t.stream.StartTime = pts
	}
	t.stream.Frames++
	return nil
}

func (m *Muxer) spoolReader(off int64, size int) func() ([]byte, error) {
	return func() ([]byte, error) {
		buf := make([]byte, size)
		if _, err := io.ReadFull(io.NewSectionReader(m.spool, off, int64(size)), buf); err != nil {
			return nil, fmt.Errorf("reading spooled sample at %d: %w", off, err)
		}
		return buf, nil
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

// WriteTrailer writes ftyp, moov and mdat, then syncs the file to disk.
func (m *Muxer) WriteTrailer(ctx context.Context) error {
	if m.state != muxHeaderWritten {
		return fmt.Errorf("%w: muxer is not between header and trailer", media.ErrTrailerWriteFailed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", media.ErrTrailerWriteFailed, err)
	}
	if err := m.bw.Flush(); err != nil {
		return fmt.Errorf("%w: flushing sample spool: %w", media.ErrTrailerWriteFailed, err)
	}

	pres, err := m.presentation()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", media.ErrTrailerWriteFailed, m.path, err)
	}

	out := bufio.NewWriterSize(m.file, 1<<20)
	if err := pres.Marshal(out); err != nil {
		return fmt.Errorf("%w: writing %s: %w", media.ErrTrailerWriteFailed, m.path, err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("%w: flushing %s: %w", media.ErrTrailerWriteFailed, m.path, err)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", media.ErrTrailerWriteFailed, m.path, err)
	}
	m.state = muxTrailerWritten
	return nil
}

// presentation builds the track list. A track starts at its first decode
// time through the edit list; when that does not fit the 32-bit offset all
// tracks are shifted so the earliest one starts at zero.
func (m *Muxer) presentation() (*pmp4.Presentation, error) {
	var tracks []*outTrack
	for _, t := range m.tracks {
		if len(t.samples) == 0 {
			m.logger.Warn("dropping MP4 track without samples",
				slog.Int("stream", t.stream.Index),
				slog.String("codec", string(t.codec)))
			continue
		}
		last := t.samples[len(t.samples)-1]
		if last.Duration == 0 && t.lastDur > 0 {
			last.Duration = uint32(t.lastDur)
		}
		tracks = append(tracks, t)
	}
	if len(tracks) == 0 {
		return nil, errors.New("no samples written")
	}

	shift := media.NoPTS
	for _, t := range tracks {
		if t.firstDTS < math.MinInt32 || t.firstDTS > math.MaxInt32 {
			shift = earliestStart(tracks)
			break
		}
	}

	pres := &pmp4.Presentation{}
	for _, t := range tracks {
		c, err := sampleEntryCodec(t)
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", t.stream.Index, err)
		}
		offset := t.firstDTS
		if shift != media.NoPTS {
			offset -= media.Rescale(shift, media.MicrosecondTimeBase, t.stream.TimeBase)
		}
		if offset < math.MinInt32 || offset > math.MaxInt32 {
			return nil, fmt.Errorf("stream %d: start offset %d out of range", t.stream.Index, offset)
		}
		pres.Tracks = append(pres.Tracks, &pmp4.Track{
			ID:         t.stream.ID,
			TimeScale:  t.timeScale,
			TimeOffset: int32(offset),
			Codec:      c,
			Samples:    t.samples,
		})
	}
	if shift != media.NoPTS {
		m.logger.Debug("rebased MP4 tracks to the earliest start",
			slog.Int64("shift_us", shift))
	}
	return pres, nil
}

// earliestStart returns the smallest first decode time, in microseconds.
func earliestStart(tracks []*outTrack) int64 {
	earliest := media.NoPTS
	for _, t := range tracks {
		us := media.Rescale(t.firstDTS, t.stream.TimeBase, media.MicrosecondTimeBase)
		if earliest == media.NoPTS || us < earliest {
			earliest = us
		}
	}
	return earliest
}

// Close closes the output and removes the sample spool. Data not covered by
// a successful WriteTrailer is lost.
func (m *Muxer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	spoolName := m.spool.Name()
	return errors.Join(
		m.spool.Close(),
		os.Remove(spoolName),
		m.file.Close(),
	)
}
