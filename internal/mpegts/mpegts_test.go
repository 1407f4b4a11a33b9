package mpegts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediatool/internal/media"
)

// 352x288 High profile SPS and matching PPS.
var (
	testSPS = []byte{
		0x67, 0x64, 0x00, 0x0c, 0xac, 0x3b, 0x50, 0xb0,
		0x4b, 0x42, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00,
		0x00, 0x03, 0x00, 0x3d, 0x08,
	}
	testPPS      = []byte{0x68, 0xee, 0x3c, 0x80}
	testIDR      = []byte{0x65, 0x88, 0x84, 0x00, 0x33, 0xff}
	testNonIDR   = []byte{0x41, 0x9a, 0x21, 0x6c, 0x42}
	testAACFrame = []byte{0x21, 0x10, 0x04, 0x60, 0x8c, 0x1c}
)

const frameTicks = 3600 // 25fps at 90kHz

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func videoAU(t *testing.T, i int) []byte {
	t.Helper()
	au := [][]byte{testNonIDR}
	if i%10 == 0 {
		au = [][]byte{testSPS, testPPS, testIDR}
	}
	data, err := h264.AnnexB(au).Marshal()
	require.NoError(t, err)
	return data
}

// writeTestFile muxes n video frames and n audio frames starting at one second.
func writeTestFile(t *testing.T, path string, n int) {
	t.Helper()
	writeTestFileAt(t, path, n, 90000)
}

func writeTestFileAt(t *testing.T, path string, n int, start int64) {
	t.Helper()
	ctx := context.Background()
	p := NewProvider(DefaultConfig(), testLogger())

	mux, err := p.CreateOutput(ctx, path)
	require.NoError(t, err)
	defer mux.Close()

	h264Codec, err := p.FindEncoder(media.CodecH264)
	require.NoError(t, err)
	aacCodec, err := p.FindEncoder(media.CodecAAC)
	require.NoError(t, err)

	vs, err := mux.AddStream(h264Codec, media.CodecParameters{Kind: media.KindVideo, CodecID: media.CodecH264})
	require.NoError(t, err)
	as, err := mux.AddStream(aacCodec, media.CodecParameters{
		Kind: media.KindAudio, CodecID: media.CodecAAC, SampleRate: 48000, Channels: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, media.MPEGTSTimeBase, vs.TimeBase)

	require.NoError(t, mux.WriteHeader(ctx))
	for i := range n {
		pts := start + int64(i*frameTicks)
		require.NoError(t, mux.WritePacket(ctx, &media.Packet{StreamIndex: vs.Index, PTS: pts, DTS: pts, Data: videoAU(t, i)}))
		require.NoError(t, mux.WritePacket(ctx, &media.Packet{StreamIndex: as.Index, PTS: pts, DTS: media.NoPTS, Data: testAACFrame}))
	}
	require.NoError(t, mux.WriteTrailer(ctx))
}

func readAll(t *testing.T, d media.Demuxer) []*media.Packet {
	t.Helper()
	var pkts []*media.Packet
	for {
		pkt, err := d.ReadPacket(context.Background())
		if errors.Is(err, io.EOF) {
			return pkts
		}
		require.NoError(t, err)
		pkts = append(pkts, pkt)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.ts")
	const n = 25
	writeTestFile(t, path, n)

	p := NewProvider(DefaultConfig(), testLogger())
	d, err := p.OpenInput(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, FormatName, d.FormatName())
	streams := d.Streams()
	require.Len(t, streams, 2)

	video, audio := streams[0], streams[1]
	assert.Equal(t, media.KindVideo, video.Kind())
	assert.Equal(t, media.CodecH264, video.Params.CodecID)
	assert.Equal(t, 352, video.Params.Width)
	assert.Equal(t, 288, video.Params.Height)
	assert.Len(t, video.Params.ExtraData, 2)
	assert.Equal(t, int64(n), video.Frames)
	assert.Equal(t, int64(n*frameTicks), video.Duration)

	assert.Equal(t, media.KindAudio, audio.Kind())
	assert.Equal(t, media.CodecAAC, audio.Params.CodecID)
	assert.Equal(t, 48000, audio.Params.SampleRate)
	assert.Equal(t, 2, audio.Params.Channels)
	assert.Equal(t, int64(n), audio.Frames)

	assert.Equal(t, int64(n*frameTicks*1_000_000/90000), d.Duration())

	best, ok := d.BestStream(media.KindVideo)
	require.True(t, ok)
	assert.Equal(t, 0, best.Index)
	_, ok = d.BestStream(media.KindSubtitle)
	assert.False(t, ok)

	pkts := readAll(t, d)
	var vids, auds []*media.Packet
	for _, pkt := range pkts {
		if pkt.StreamIndex == 0 {
			vids = append(vids, pkt)
		} else {
			auds = append(auds, pkt)
		}
	}
	require.Len(t, vids, n)
	require.Len(t, auds, n)

	assert.True(t, vids[0].KeyFrame)
	assert.False(t, vids[1].KeyFrame)
	assert.Equal(t, videoAU(t, 0), vids[0].Data)
	assert.Equal(t, videoAU(t, 1), vids[1].Data)
	assert.Equal(t, int64(frameTicks), vids[1].PTS-vids[0].PTS)
	assert.Equal(t, video.StartTime, vids[0].PTS)

	assert.Equal(t, testAACFrame, auds[0].Data)
	assert.Equal(t, int64(1920), auds[0].Duration)
	assert.Equal(t, auds[0].PTS, auds[0].DTS)

	// Reading past the end keeps returning EOF.
	_, err = d.ReadPacket(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestRoundTrip_AcrossTimestampWrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrap.ts")
	const (
		n     = 50
		start = int64(1<<33) - 90000
	)
	writeTestFileAt(t, path, n, start)

	d, err := NewProvider(DefaultConfig(), testLogger()).OpenInput(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()

	video := d.Streams()[0]
	assert.Equal(t, start, video.StartTime)
	assert.Equal(t, int64(n), video.Frames)
	assert.Equal(t, int64(n*frameTicks), video.Duration)
	assert.Equal(t, int64(2_000_000), d.Duration())

	var prev int64 = media.NoPTS
	var vids int
	for _, pkt := range readAll(t, d) {
		if pkt.StreamIndex != video.Index {
			continue
		}
		if prev != media.NoPTS {
			assert.Equal(t, int64(frameTicks), pkt.PTS-prev, "pts must advance across 2^33")
		}
		prev = pkt.PTS
		vids++
	}
	assert.Equal(t, n, vids)
	assert.Equal(t, start+int64((n-1)*frameTicks), prev)
}

func TestTimeline(t *testing.T) {
	tl := newTimeline()
	const top = int64(1<<33) - 100
	assert.Equal(t, top, tl.unwrap(top))
	assert.Equal(t, top+150, tl.unwrap(50))
	assert.Equal(t, top+140, tl.unwrap(40))
	assert.Equal(t, top-10, tl.unwrap(top-10), "small steps back stay negative")
}

func TestOpenInput_WithoutScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noscan.ts")
	writeTestFile(t, path, 5)

	cfg := DefaultConfig()
	cfg.ScanDuration = false
	cfg.ReadMetadata = false
	d, err := NewProvider(cfg, testLogger()).OpenInput(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()

	assert.Zero(t, d.Duration())
	assert.Zero(t, d.Streams()[0].Frames)
	assert.NotEqual(t, media.NoPTS, d.Streams()[0].StartTime)
	assert.Len(t, readAll(t, d), 10)
}

func TestOpenInput_Errors(t *testing.T) {
	p := NewProvider(DefaultConfig(), testLogger())

	_, err := p.OpenInput(context.Background(), filepath.Join(t.TempDir(), "missing.ts"))
	assert.ErrorIs(t, err, media.ErrIOOpenFailed)

	garbage := filepath.Join(t.TempDir(), "garbage.ts")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a transport stream"), 0o644))
	_, err = p.OpenInput(context.Background(), garbage)
	assert.ErrorIs(t, err, media.ErrIOOpenFailed)
}

func TestCreateOutput_Errors(t *testing.T) {
	p := NewProvider(DefaultConfig(), testLogger())
	_, err := p.CreateOutput(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "out.ts"))
	assert.ErrorIs(t, err, media.ErrIOCreateFailed)
}

func TestMuxer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(DefaultConfig(), testLogger())
	mux, err := p.CreateOutput(ctx, filepath.Join(t.TempDir(), "out.ts"))
	require.NoError(t, err)
	defer mux.Close()

	h264Codec, err := p.FindEncoder(media.CodecH264)
	require.NoError(t, err)

	// No streams yet.
	assert.ErrorIs(t, mux.WriteHeader(ctx), media.ErrHeaderWriteFailed)

	// Kind mismatch: an H.264 codec cannot carry audio parameters.
	_, err = mux.AddStream(h264Codec, media.CodecParameters{Kind: media.KindAudio, CodecID: media.CodecAAC})
	assert.ErrorIs(t, err, media.ErrStreamCreationFailed)

	s, err := mux.AddStream(h264Codec, media.CodecParameters{Kind: media.KindVideo, CodecID: media.CodecH264})
	require.NoError(t, err)
	got, ok := mux.Stream(s.Index)
	require.True(t, ok)
	assert.Same(t, s, got)
	_, ok = mux.Stream(5)
	assert.False(t, ok)

	pkt := &media.Packet{StreamIndex: 0, PTS: 0, DTS: 0, Data: videoAU(t, 0)}
	assert.ErrorIs(t, mux.WritePacket(ctx, pkt), media.ErrPacketWriteFailed, "before header")
	assert.ErrorIs(t, mux.WriteTrailer(ctx), media.ErrTrailerWriteFailed, "before header")

	require.NoError(t, mux.WriteHeader(ctx))
	assert.ErrorIs(t, mux.WriteHeader(ctx), media.ErrHeaderWriteFailed, "twice")
	_, err = mux.AddStream(h264Codec, media.CodecParameters{Kind: media.KindVideo, CodecID: media.CodecH264})
	assert.ErrorIs(t, err, media.ErrStreamCreationFailed, "after header")

	require.NoError(t, mux.WritePacket(ctx, pkt))
	assert.ErrorIs(t, mux.WritePacket(ctx, &media.Packet{StreamIndex: 3, PTS: 0}), media.ErrPacketWriteFailed)
	assert.ErrorIs(t, mux.WritePacket(ctx, &media.Packet{StreamIndex: 0, PTS: media.NoPTS, DTS: media.NoPTS}), media.ErrPacketWriteFailed)

	require.NoError(t, mux.WriteTrailer(ctx))
	assert.ErrorIs(t, mux.WriteTrailer(ctx), media.ErrTrailerWriteFailed, "twice")
	assert.ErrorIs(t, mux.WritePacket(ctx, pkt), media.ErrPacketWriteFailed, "after trailer")

	assert.NoError(t, mux.Close())
	assert.NoError(t, mux.Close())
}

func TestFindEncoder(t *testing.T) {
	p := NewProvider(DefaultConfig(), testLogger())
	for _, id := range []media.CodecID{media.CodecH264, media.CodecH265, media.CodecAAC, media.CodecAC3, media.CodecEAC3, media.CodecMP3, media.CodecOpus} {
		c, err := p.FindEncoder(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, c.ID)
	}

	_, err := p.FindEncoder(media.CodecVP9)
	assert.ErrorIs(t, err, media.ErrUnsupportedCodec)
	_, err = p.FindEncoder(media.CodecUnknown)
	assert.ErrorIs(t, err, media.ErrUnsupportedCodec)
}

func TestTrackCodec(t *testing.T) {
	_, err := trackCodec(media.CodecAAC, media.CodecParameters{Kind: media.KindAudio})
	assert.Error(t, err, "aac without config or sample rate")

	_, err = trackCodec(media.CodecAAC, media.CodecParameters{Kind: media.KindAudio, ExtraData: [][]byte{{0x11, 0x90}}})
	assert.NoError(t, err)

	_, err = trackCodec(media.CodecVP9, media.CodecParameters{})
	assert.ErrorIs(t, err, media.ErrUnsupportedCodec)
}

func TestStreamStats_End(t *testing.T) {
	var st streamStats
	for _, pts := range []int64{200, 100, 300} {
		st.add(pts)
	}
	assert.Equal(t, int64(100), st.minPTS)
	assert.Equal(t, int64(300), st.maxPTS)
	assert.Equal(t, int64(400), st.end(), "average spacing used without frame duration")

	st.frameDur = 10
	assert.Equal(t, int64(310), st.end())
}

func TestStripAUD(t *testing.T) {
	au := stripH264AUD([][]byte{{0x09, 0xf0}, testSPS, {}, testIDR})
	assert.Equal(t, [][]byte{testSPS, testIDR}, au)

	hevc := stripH265AUD([][]byte{{0x46, 0x01, 0x50}, {0x26, 0x01, 0xaf}})
	assert.Equal(t, [][]byte{{0x26, 0x01, 0xaf}}, hevc)
}
