// Package codec provides the codec registry: canonical names and aliases,
// MPEG-TS stream types, and decoding of stream codec parameters into the
// human readable details shown by the report.
package codec

import (
	"slices"
	"strings"

	"github.com/jmylchreest/mediatool/internal/media"
)

// MPEG-TS stream type constants.
const (
	StreamTypeMPEG1Video uint8 = 0x01
	StreamTypeMPEG2Video uint8 = 0x02
	StreamTypeMP2        uint8 = 0x03
	StreamTypeMP3        uint8 = 0x04
	StreamTypeAAC        uint8 = 0x0F
	StreamTypeMPEG4Video uint8 = 0x10
	StreamTypeH264       uint8 = 0x1B
	StreamTypeH265       uint8 = 0x24
	StreamTypeAC3        uint8 = 0x81
	StreamTypeEAC3       uint8 = 0x87
)

// Info describes one codec known to the registry.
type Info struct {
	ID       media.CodecID
	Kind     media.MediaKind
	LongName string
	// Aliases are alternative spellings, FourCCs and encoder names.
	Aliases []string
	// MPEGTSStreamType is 0 when the codec has no MPEG-TS mapping.
	MPEGTSStreamType uint8
	// Demuxable is set when the mediacommon MPEG-TS reader delivers packets
	// for the codec.
	Demuxable bool
	// SampleFormat and FrameSize are the decoder defaults for audio codecs.
	SampleFormat string
	FrameSize    int
}

// Codec returns the media.Codec for the registry entry.
func (i Info) Codec() media.Codec {
	return media.Codec{ID: i.ID, Kind: i.Kind, LongName: i.LongName}
}

var registry = []*Info{
	{
		ID:               media.CodecH264,
		Kind:             media.KindVideo,
		LongName:         "H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10",
		Aliases:          []string{"avc", "avc1", "h.264", "libx264", "h264_nvenc", "h264_qsv", "h264_vaapi", "h264_videotoolbox"},
		MPEGTSStreamType: StreamTypeH264,
	},
	{
		ID:               media.CodecH265,
		Kind:             media.KindVideo,
		LongName:         "H.265 / HEVC (High Efficiency Video Coding)",
		Aliases:          []string{"hevc", "hev1", "hvc1", "h.265", "libx265", "hevc_nvenc", "hevc_qsv", "hevc_vaapi", "hevc_videotoolbox"},
		MPEGTSStreamType: StreamTypeH265,
	},
	{
		ID:               media.CodecMPEG2Video,
		Kind:             media.KindVideo,
		LongName:         "MPEG-2 video",
		Aliases:          []string{"mpeg2", "mpeg1", "mpeg1video", "mpeg2video"},
		MPEGTSStreamType: StreamTypeMPEG2Video,
	},
	{
		ID:               media.CodecMPEG4Video,
		Kind:             media.KindVideo,
		LongName:         "MPEG-4 part 2",
		Aliases:          []string{"mp4v", "divx", "xvid"},
		MPEGTSStreamType: StreamTypeMPEG4Video,
	},
	{
		ID:       media.CodecVP9,
		Kind:     media.KindVideo,
		LongName: "Google VP9",
		Aliases:  []string{"vp09", "libvpx-vp9"},
	},
	{
		ID:       media.CodecAV1,
		Kind:     media.KindVideo,
		LongName: "Alliance for Open Media AV1",
		Aliases:  []string{"av01", "libaom-av1", "libsvtav1"},
	},
	{
		ID:               media.CodecAAC,
		Kind:             media.KindAudio,
		LongName:         "AAC (Advanced Audio Coding)",
		Aliases:          []string{"mp4a", "aac_latm", "libfdk_aac"},
		MPEGTSStreamType: StreamTypeAAC,
		SampleFormat:     "fltp",
		FrameSize:        1024,
	},
	{
		ID:               media.CodecAC3,
		Kind:             media.KindAudio,
		LongName:         "ATSC A/52A (AC-3)",
		Aliases:          []string{"ac-3", "a52"},
		MPEGTSStreamType: StreamTypeAC3,
		SampleFormat:     "fltp",
		FrameSize:        1536,
	},
	{
		ID:               media.CodecEAC3,
		Kind:             media.KindAudio,
		LongName:         "ATSC A/52B (AC-3, E-AC-3)",
		Aliases:          []string{"ec-3", "ec3", "e-ac-3"},
		MPEGTSStreamType: StreamTypeEAC3,
		SampleFormat:     "fltp",
		FrameSize:        1536,
	},
	{
		ID:               media.CodecMP3,
		Kind:             media.KindAudio,
		LongName:         "MP3 (MPEG audio layer 3)",
		Aliases:          []string{"mp3float", "libmp3lame", "mpga"},
		MPEGTSStreamType: StreamTypeMP3,
		SampleFormat:     "fltp",
		FrameSize:        1152,
	},
	{
		ID:               media.CodecMP2,
		Kind:             media.KindAudio,
		LongName:         "MP2 (MPEG audio layer 2)",
		Aliases:          []string{"mp2float", "mpeg1audio"},
		MPEGTSStreamType: StreamTypeMP2,
		SampleFormat:     "fltp",
		FrameSize:        1152,
	},
	{
		ID:           media.CodecOpus,
		Kind:         media.KindAudio,
		LongName:     "Opus (Opus Interactive Audio Codec)",
		Aliases:      []string{"libopus"},
		SampleFormat: "flt",
		FrameSize:    960,
	},
	{
		ID:       media.CodecDVBSub,
		Kind:     media.KindSubtitle,
		LongName: "DVB subtitles",
		Aliases:  []string{"dvbsub"},
	},
	{
		ID:       media.CodecWebVTT,
		Kind:     media.KindSubtitle,
		LongName: "WebVTT subtitle",
		Aliases:  []string{"vtt", "wvtt"},
	},
}

var (
	byID    = map[media.CodecID]*Info{}
	byAlias = map[string]*Info{}
)

func init() {
	for _, info := range registry {
		byID[info.ID] = info
		byAlias[string(info.ID)] = info
		for _, alias := range info.Aliases {
			byAlias[alias] = info
		}
	}
	detectDemuxable()
}

// Lookup returns the registry entry for a canonical codec id.
func Lookup(id media.CodecID) (Info, bool) {
	info, ok := byID[id]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// All returns every registered codec ordered by kind then id.
func All() []Info {
	out := make([]Info, 0, len(registry))
	for _, info := range registry {
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b Info) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}

// Parse resolves a codec name, alias, FourCC or encoder name (case-insensitive)
// to its canonical id and kind. Profile suffixes such as "avc1.64001f" or
// "mp4a.40.2" are ignored.
func Parse(name string) (media.CodecID, media.MediaKind, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	info, ok := byAlias[key]
	if !ok {
		if base, _, found := strings.Cut(key, "."); found {
			info, ok = byAlias[base]
		}
	}
	if !ok {
		return media.CodecUnknown, media.KindUnknown, false
	}
	return info.ID, info.Kind, true
}

// ParseVideo is Parse restricted to video codecs.
func ParseVideo(name string) (media.CodecID, bool) {
	return parseKind(name, media.KindVideo)
}

// ParseAudio is Parse restricted to audio codecs.
func ParseAudio(name string) (media.CodecID, bool) {
	return parseKind(name, media.KindAudio)
}

func parseKind(name string, want media.MediaKind) (media.CodecID, bool) {
	id, kind, ok := Parse(name)
	if !ok || kind != want {
		return media.CodecUnknown, false
	}
	return id, true
}

// Normalize returns the canonical name for any known spelling, or the input
// lowercased when it is not recognised.
func Normalize(name string) string {
	if id, _, ok := Parse(name); ok {
		return string(id)
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// Match reports whether two names refer to the same codec.
func Match(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// ForStreamType returns the codec carried by an MPEG-TS stream type.
func ForStreamType(streamType uint8) (media.CodecID, bool) {
	for _, info := range registry {
		if info.MPEGTSStreamType == streamType && streamType != 0 {
			return info.ID, true
		}
	}
	return media.CodecUnknown, false
}
