package ffmpeg

import (
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// Container is a probed container. It carries no packets and holds no
// resources.
type Container struct {
	format   string
	streams  []*media.Stream
	metadata map[string]string
	duration int64
}

// NewContainer converts ffprobe output into the media model.
func NewContainer(r *ProbeResult) *Container {
	c := &Container{
		format:   r.Format.FormatName,
		metadata: maps.Clone(r.Format.Tags),
		duration: secondsToTimeBase(r.Format.Duration),
	}
	if c.metadata == nil {
		c.metadata = map[string]string{}
	}
	for i := range r.Streams {
		c.streams = append(c.streams, convertStream(&r.Streams[i]))
	}
	return c
}

func (c *Container) Streams() []*media.Stream    { return c.streams }
func (c *Container) Metadata() map[string]string { return maps.Clone(c.metadata) }
func (c *Container) Duration() int64             { return c.duration }
func (c *Container) FormatName() string          { return c.format }
func (c *Container) Close() error                { return nil }

func (c *Container) BestStream(kind media.MediaKind) (*media.Stream, bool) {
	return media.BestStream(c.streams, kind)
}

func convertStream(ps *ProbeStream) *media.Stream {
	s := &media.Stream{
		Index:       ps.Index,
		TimeBase:    parseRational(ps.TimeBase, "/"),
		StartTime:   media.NoPTS,
		Frames:      parseInt(ps.NumFrames),
		Disposition: convertDisposition(ps.Disposition),
		FrameRate:   parseRational(ps.RFrameRate, "/"),
		Metadata:    maps.Clone(ps.Tags),
	}
	if s.Metadata == nil {
		s.Metadata = map[string]string{}
	}
	if id, err := strconv.ParseInt(ps.ID, 0, 64); err == nil {
		s.ID = int(id)
	}
	if ps.StartPts != nil {
		s.StartTime = *ps.StartPts
	}
	if ps.DurationTs != nil {
		s.Duration = *ps.DurationTs
	}

	p := media.CodecParameters{
		Kind:           convertKind(ps.CodecType),
		Profile:        ps.Profile,
		BitRate:        parseInt(ps.BitRate),
		MaxBitRate:     parseInt(ps.MaxBitRate),
		Width:          ps.Width,
		Height:         ps.Height,
		PixelFormat:    ps.PixFmt,
		HasBFrames:     ps.HasBFrames,
		ColorSpace:     ps.ColorSpace,
		ColorRange:     ps.ColorRange,
		ColorPrimaries: ps.ColorPrimaries,
		ColorTransfer:  ps.ColorTransfer,
		ChromaLocation: ps.ChromaLocation,
		Refs:           ps.Refs,
		SampleRate:     int(parseInt(ps.SampleRate)),
		Channels:       ps.Channels,
		ChannelLayout:  ps.ChannelLayout,
		SampleFormat:   ps.SampleFmt,
		Delay:          ps.InitialPadding,
	}
	if sar := parseRational(ps.SampleAspect, ":"); sar.IsValid() {
		p.SampleAspectRatio = sar
	}
	if id, _, ok := codec.Parse(ps.CodecName); ok {
		p.CodecID = id
	} else {
		p.CodecID = media.CodecID(ps.CodecName)
	}
	s.Params = p
	return s
}

func convertKind(codecType string) media.MediaKind {
	switch codecType {
	case "video":
		return media.KindVideo
	case "audio":
		return media.KindAudio
	case "subtitle":
		return media.KindSubtitle
	default:
		return media.KindUnknown
	}
}

func convertDisposition(d ProbeDisposition) media.Disposition {
	var out media.Disposition
	for _, f := range []struct {
		set  int
		flag media.Disposition
	}{
		{d.Default, media.DispositionDefault},
		{d.Dub, media.DispositionDub},
		{d.Original, media.DispositionOriginal},
		{d.Comment, media.DispositionComment},
		{d.Lyrics, media.DispositionLyrics},
		{d.Karaoke, media.DispositionKaraoke},
		{d.Forced, media.DispositionForced},
		{d.HearingImpaired, media.DispositionHearingImpaired},
		{d.VisualImpaired, media.DispositionVisualImpaired},
		{d.CleanEffects, media.DispositionCleanEffects},
		{d.AttachedPic, media.DispositionAttachedPic},
	} {
		if f.set != 0 {
			out |= f.flag
		}
	}
	return out
}

// parseRational parses "num<sep>den". Malformed input and "0/0" yield the
// zero Rational.
func parseRational(s, sep string) media.Rational {
	num, den, ok := strings.Cut(s, sep)
	if !ok {
		return media.Rational{}
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || d == 0 {
		return media.Rational{}
	}
	return media.Rational{Num: n, Den: d}
}

// parseInt parses ffprobe's decimal strings, treating "N/A" and "" as 0.
func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// secondsToTimeBase converts ffprobe's fractional seconds to media.TimeBase
// units.
func secondsToTimeBase(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Round(f * media.TimeBase))
}
