// Package media defines the container, stream and packet model shared by the
// demuxing and muxing providers, the remux pipeline and the metadata report.
package media

import (
	"strings"
)

// MediaKind is the closed set of stream kinds.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindVideo
	KindAudio
	KindSubtitle
)

// Kinds lists every kind that can be selected as a best stream, in report order.
var Kinds = []MediaKind{KindVideo, KindAudio, KindSubtitle}

func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "Video"
	case KindAudio:
		return "Audio"
	case KindSubtitle:
		return "Subtitle"
	default:
		return "Unknown"
	}
}

// CodecID is a canonical codec name such as "h264" or "aac".
type CodecID string

const (
	CodecUnknown    CodecID = ""
	CodecH264       CodecID = "h264"
	CodecH265       CodecID = "h265"
	CodecMPEG1Video CodecID = "mpeg1video"
	CodecMPEG2Video CodecID = "mpeg2video"
	CodecMPEG4Video CodecID = "mpeg4"
	CodecVP9        CodecID = "vp9"
	CodecAV1        CodecID = "av1"
	CodecAAC        CodecID = "aac"
	CodecAC3        CodecID = "ac3"
	CodecEAC3       CodecID = "eac3"
	CodecMP3        CodecID = "mp3"
	CodecMP2        CodecID = "mp2"
	CodecOpus       CodecID = "opus"
	CodecDVBSub     CodecID = "dvb_subtitle"
	CodecWebVTT     CodecID = "webvtt"
)

func (c CodecID) String() string {
	if c == CodecUnknown {
		return "none"
	}
	return string(c)
}

// Codec identifies an encoder (or, when copying, a bitstream format) that an
// output container can carry.
type Codec struct {
	ID       CodecID   `json:"id"`
	Kind     MediaKind `json:"kind"`
	LongName string    `json:"long_name,omitempty"`
}

// CodecParameters describes a stream's encoding. ExtraData carries the
// out-of-band configuration needed to decode it: H.264/H.265 parameter set
// NAL units without start codes, or an AAC AudioSpecificConfig. The remaining
// fields are filled when a provider already knows them and are zero otherwise.
type CodecParameters struct {
	Kind      MediaKind `json:"kind"`
	CodecID   CodecID   `json:"codec_id"`
	Profile   string    `json:"profile,omitempty"`
	ExtraData [][]byte  `json:"-"`

	BitRate    int64 `json:"bit_rate,omitempty"`
	MaxBitRate int64 `json:"max_bit_rate,omitempty"`
	Delay      int   `json:"delay,omitempty"`

	Width             int      `json:"width,omitempty"`
	Height            int      `json:"height,omitempty"`
	PixelFormat       string   `json:"pix_fmt,omitempty"`
	HasBFrames        int      `json:"has_b_frames,omitempty"`
	SampleAspectRatio Rational `json:"sample_aspect_ratio,omitzero"`
	ColorSpace        string   `json:"color_space,omitempty"`
	ColorRange        string   `json:"color_range,omitempty"`
	ColorPrimaries    string   `json:"color_primaries,omitempty"`
	ColorTransfer     string   `json:"color_transfer,omitempty"`
	ChromaLocation    string   `json:"chroma_location,omitempty"`
	Refs              int      `json:"refs,omitempty"`

	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	ChannelLayout string `json:"channel_layout,omitempty"`
	SampleFormat  string `json:"sample_fmt,omitempty"`
	FrameSize     int    `json:"frame_size,omitempty"`
	BlockAlign    int    `json:"block_align,omitempty"`
}

// Disposition is a set of stream disposition flags.
type Disposition uint32

const (
	DispositionDefault Disposition = 1 << iota
	DispositionDub
	DispositionOriginal
	DispositionComment
	DispositionLyrics
	DispositionKaraoke
	DispositionForced
	DispositionHearingImpaired
	DispositionVisualImpaired
	DispositionCleanEffects
	DispositionAttachedPic
)

var dispositionNames = []struct {
	flag Disposition
	name string
}{
	{DispositionDefault, "DEFAULT"},
	{DispositionDub, "DUB"},
	{DispositionOriginal, "ORIGINAL"},
	{DispositionComment, "COMMENT"},
	{DispositionLyrics, "LYRICS"},
	{DispositionKaraoke, "KARAOKE"},
	{DispositionForced, "FORCED"},
	{DispositionHearingImpaired, "HEARING_IMPAIRED"},
	{DispositionVisualImpaired, "VISUAL_IMPAIRED"},
	{DispositionCleanEffects, "CLEAN_EFFECTS"},
	{DispositionAttachedPic, "ATTACHED_PIC"},
}

// Has reports whether all flags in f are set.
func (d Disposition) Has(f Disposition) bool {
	return d&f == f
}

// String renders the set flags joined by " | ", or "(empty)" when none are set.
func (d Disposition) String() string {
	var names []string
	for _, n := range dispositionNames {
		if d.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "(empty)"
	}
	return strings.Join(names, " | ")
}

// Discard selects which packets of a stream a demuxer may skip.
type Discard int

const (
	DiscardDefault Discard = iota
	DiscardNone
	DiscardNonReference
	DiscardBidirectional
	DiscardNonIntra
	DiscardNonKey
	DiscardAll
)

func (d Discard) String() string {
	switch d {
	case DiscardNone:
		return "None"
	case DiscardNonReference:
		return "NonReference"
	case DiscardBidirectional:
		return "Bidirectional"
	case DiscardNonIntra:
		return "NonIntra"
	case DiscardNonKey:
		return "NonKey"
	case DiscardAll:
		return "All"
	default:
		return "Default"
	}
}

// Stream is one elementary stream of a container. Index is unique within the
// container and never reassigned.
type Stream struct {
	Index       int
	ID          int
	TimeBase    Rational
	StartTime   int64
	Duration    int64
	Frames      int64
	Disposition Disposition
	Discard     Discard
	FrameRate   Rational
	Params      CodecParameters
	Metadata    map[string]string
}

// Kind returns the stream's media kind.
func (s *Stream) Kind() MediaKind {
	return s.Params.Kind
}

// Packet is a unit of compressed data belonging to one stream. Timestamps are
// expressed in the owning stream's time base; NoPTS marks an unset timestamp.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	KeyFrame    bool
	Data        []byte
}

// HasPTS reports whether the presentation timestamp is set.
func (p *Packet) HasPTS() bool {
	return p.PTS != NoPTS
}

// RescaleTS converts the packet's timestamps and duration between time bases.
func (p *Packet) RescaleTS(from, to Rational) {
	p.PTS = Rescale(p.PTS, from, to)
	p.DTS = Rescale(p.DTS, from, to)
	if p.Duration > 0 {
		p.Duration = Rescale(p.Duration, from, to)
	}
}
