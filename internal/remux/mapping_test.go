package remux

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/media/mediatest"
)

func ac3Stream(index int) *media.Stream {
	return &media.Stream{
		Index:    index,
		TimeBase: media.MPEGTSTimeBase,
		Params: media.CodecParameters{
			Kind:       media.KindAudio,
			CodecID:    media.CodecAC3,
			SampleRate: 48000,
			Channels:   6,
		},
	}
}

func newMuxer(t *testing.T, p *mediatest.Provider, path string) (media.Muxer, *mediatest.Output) {
	t.Helper()
	mux, err := p.CreateOutput(context.Background(), path)
	require.NoError(t, err)
	out, ok := p.Output(path)
	require.True(t, ok)
	return mux, out
}

func TestBuildOutput_OneOutputPerInput(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5} {
		p := mediatest.NewProvider()
		in := &mediatest.Container{}
		for i := range n {
			if i%2 == 0 {
				in.Input.Streams = append(in.Input.Streams, mediatest.VideoStream(i))
			} else {
				in.Input.Streams = append(in.Input.Streams, mediatest.AudioStream(i))
			}
		}
		mux, out := newMuxer(t, p, "out.mem")

		m, err := BuildOutput(context.Background(), in, mux, p, MapOptions{})
		require.NoError(t, err)

		assert.Equal(t, n, m.Len())
		assert.Len(t, out.Streams, n)

		seen := map[int]bool{}
		for _, s := range in.Streams() {
			outIdx, ok := m.Lookup(s.Index)
			require.True(t, ok, "input %d mapped", s.Index)
			assert.False(t, seen[outIdx], "output %d mapped twice", outIdx)
			seen[outIdx] = true
			assert.Equal(t, s.Kind(), out.Streams[outIdx].Kind())
		}
		assert.Len(t, m.Outputs(), n)
	}
}

func TestBuildOutput_NonContiguousInputIndexes(t *testing.T) {
	p := mediatest.NewProvider()
	in := &mediatest.Container{Input: mediatest.Input{
		Streams: []*media.Stream{mediatest.VideoStream(3), mediatest.AudioStream(7)},
	}}
	mux, _ := newMuxer(t, p, "out.mem")

	m, err := BuildOutput(context.Background(), in, mux, p, MapOptions{})
	require.NoError(t, err)

	out, ok := m.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, 1, out)
	_, ok = m.Lookup(0)
	assert.False(t, ok)
	assert.Equal(t, []int{3, 7}, m.Inputs())
}

func TestBuildOutput_CopyKeepsCodec(t *testing.T) {
	p := mediatest.NewProvider()
	in := &mediatest.Container{Input: mediatest.Input{
		Streams: []*media.Stream{mediatest.VideoStream(0), mediatest.AudioStream(1)},
	}}
	mux, out := newMuxer(t, p, "out.mem")

	_, err := BuildOutput(context.Background(), in, mux, p, MapOptions{Codecs: CopyCodecs()})
	require.NoError(t, err)
	assert.Equal(t, media.CodecH264, out.Streams[0].Params.CodecID)
	assert.Equal(t, media.CodecAAC, out.Streams[1].Params.CodecID)
	assert.Equal(t, 48000, out.Streams[1].Params.SampleRate)
}

func TestBuildOutput_FixedCodecRejectsOtherKinds(t *testing.T) {
	p := mediatest.NewProvider()
	p.OutputTemplate.RejectKinds = true
	in := &mediatest.Container{Input: mediatest.Input{
		Streams: []*media.Stream{mediatest.VideoStream(0), mediatest.AudioStream(1)},
	}}
	mux, _ := newMuxer(t, p, "out.mem")

	_, err := BuildOutput(context.Background(), in, mux, p, MapOptions{Codecs: FixedCodec(media.CodecH264)})
	assert.ErrorIs(t, err, media.ErrStreamCreationFailed)
	assert.ErrorContains(t, err, "input stream 1")
}

func TestBuildOutput_UnsupportedCodec(t *testing.T) {
	p := mediatest.NewProvider()
	in := &mediatest.Container{Input: mediatest.Input{
		Streams: []*media.Stream{mediatest.VideoStream(0), ac3Stream(1)},
	}}
	mux, _ := newMuxer(t, p, "out.mem")

	_, err := BuildOutput(context.Background(), in, mux, p, MapOptions{})
	assert.ErrorIs(t, err, media.ErrUnsupportedCodec)
}

func TestBuildOutput_SkipUnsupported(t *testing.T) {
	p := mediatest.NewProvider()
	in := &mediatest.Container{Input: mediatest.Input{
		Streams: []*media.Stream{ac3Stream(0), mediatest.VideoStream(1)},
	}}
	mux, out := newMuxer(t, p, "out.mem")

	m, err := BuildOutput(context.Background(), in, mux, p, MapOptions{SkipUnsupported: true})
	require.NoError(t, err)

	assert.True(t, m.Skipped(0))
	assert.False(t, m.Skipped(1))
	_, ok := m.Lookup(0)
	assert.False(t, ok)
	outIdx, ok := m.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 0, outIdx)
	assert.Len(t, out.Streams, 1)
}

func TestBuildOutput_Cancelled(t *testing.T) {
	p := mediatest.NewProvider()
	in := &mediatest.Container{Input: mediatest.Input{Streams: []*media.Stream{mediatest.VideoStream(0)}}}
	mux, _ := newMuxer(t, p, "out.mem")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildOutput(ctx, in, mux, p, MapOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCodecPolicy(t *testing.T) {
	p, err := ParseCodecPolicy("copy", "ignored")
	require.NoError(t, err)
	assert.Equal(t, CopyCodecs(), p)
	assert.Equal(t, "copy", p.String())

	p, err = ParseCodecPolicy("fixed", "avc")
	require.NoError(t, err)
	assert.Equal(t, FixedCodec(media.CodecH264), p)
	assert.Equal(t, "fixed:h264", p.String())

	_, err = ParseCodecPolicy("fixed", "nope")
	assert.Error(t, err)
	_, err = ParseCodecPolicy("transcode", "")
	assert.Error(t, err)
}
