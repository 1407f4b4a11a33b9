package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaKind_String(t *testing.T) {
	assert.Equal(t, "Video", KindVideo.String())
	assert.Equal(t, "Audio", KindAudio.String())
	assert.Equal(t, "Subtitle", KindSubtitle.String())
	assert.Equal(t, "Unknown", KindUnknown.String())
	assert.Equal(t, "Unknown", MediaKind(42).String())
}

func TestDisposition_String(t *testing.T) {
	assert.Equal(t, "(empty)", Disposition(0).String())
	assert.Equal(t, "DEFAULT", DispositionDefault.String())
	assert.Equal(t, "DEFAULT | FORCED", (DispositionForced | DispositionDefault).String())
	assert.True(t, (DispositionDub | DispositionComment).Has(DispositionDub))
	assert.False(t, DispositionDub.Has(DispositionDub|DispositionComment))
}

func TestDiscard_String(t *testing.T) {
	assert.Equal(t, "Default", DiscardDefault.String())
	assert.Equal(t, "All", DiscardAll.String())
	assert.Equal(t, "NonKey", DiscardNonKey.String())
}

func TestDetails_ClosedVariant(t *testing.T) {
	var d Details = &VideoDetails{Width: 1}
	assert.Equal(t, KindVideo, d.Kind())

	d = &AudioDetails{SampleRate: 48000}
	assert.Equal(t, KindAudio, d.Kind())
}

func TestBestStream(t *testing.T) {
	video := func(idx, w, h int, disp Disposition) *Stream {
		return &Stream{Index: idx, Disposition: disp, Params: CodecParameters{Kind: KindVideo, Width: w, Height: h}}
	}
	audio := func(idx, ch int, frames int64) *Stream {
		return &Stream{Index: idx, Frames: frames, Params: CodecParameters{Kind: KindAudio, Channels: ch}}
	}

	tests := []struct {
		name    string
		streams []*Stream
		kind    MediaKind
		want    int
		found   bool
	}{
		{"none of kind", []*Stream{audio(0, 2, 0)}, KindVideo, 0, false},
		{"empty", nil, KindAudio, 0, false},
		{"default wins over size", []*Stream{video(0, 1920, 1080, 0), video(1, 640, 360, DispositionDefault)}, KindVideo, 1, true},
		{"largest picture", []*Stream{video(0, 640, 360, 0), video(1, 1920, 1080, 0)}, KindVideo, 1, true},
		{"attached picture ignored", []*Stream{video(0, 3000, 3000, DispositionAttachedPic), video(1, 640, 360, 0)}, KindVideo, 1, true},
		{"most channels", []*Stream{audio(0, 2, 10), audio(1, 6, 5)}, KindAudio, 1, true},
		{"most frames on tie", []*Stream{audio(0, 2, 10), audio(1, 2, 50)}, KindAudio, 1, true},
		{"lowest index on full tie", []*Stream{audio(3, 2, 10), audio(1, 2, 10)}, KindAudio, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestStream(tt.streams, tt.kind)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got.Index)
			}
		})
	}
}
