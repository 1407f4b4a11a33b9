package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/mediatool/internal/media"
)

// readableTrackCodecs are the track codecs the mpegts reader has data
// callbacks for.
var readableTrackCodecs = []mpegts.Codec{
	&mpegts.CodecH264{},
	&mpegts.CodecH265{},
	&mpegts.CodecMPEG4Audio{},
	&mpegts.CodecAC3{},
	&mpegts.CodecEAC3{},
	&mpegts.CodecMPEG1Audio{},
	&mpegts.CodecOpus{},
}

func detectDemuxable() {
	for _, c := range readableTrackCodecs {
		id, _ := FromMPEGTS(c)
		if info, ok := byID[id]; ok {
			info.Demuxable = true
		}
	}
}

// FromMPEGTS maps a mediacommon track codec to its canonical id and kind.
// Unsupported tracks map to media.CodecUnknown and media.KindUnknown.
func FromMPEGTS(c mpegts.Codec) (media.CodecID, media.MediaKind) {
	switch c.(type) {
	case *mpegts.CodecH264:
		return media.CodecH264, media.KindVideo
	case *mpegts.CodecH265:
		return media.CodecH265, media.KindVideo
	case *mpegts.CodecMPEG4Video:
		return media.CodecMPEG4Video, media.KindVideo
	case *mpegts.CodecMPEG1Video:
		// Covers both MPEG-1 and MPEG-2 video stream types.
		return media.CodecMPEG2Video, media.KindVideo
	case *mpegts.CodecMPEG4Audio:
		return media.CodecAAC, media.KindAudio
	case *mpegts.CodecAC3:
		return media.CodecAC3, media.KindAudio
	case *mpegts.CodecEAC3:
		return media.CodecEAC3, media.KindAudio
	case *mpegts.CodecMPEG1Audio:
		return media.CodecMP3, media.KindAudio
	case *mpegts.CodecOpus:
		return media.CodecOpus, media.KindAudio
	default:
		return media.CodecUnknown, media.KindUnknown
	}
}

// IsDemuxable reports whether the MPEG-TS reader delivers packets for id.
func IsDemuxable(id media.CodecID) bool {
	info, ok := byID[id]
	return ok && info.Demuxable
}

// FromMP4 maps a mediacommon MP4 sample entry codec to its canonical id and
// kind. Codecs without a registry entry map to media.CodecUnknown but keep
// their kind.
func FromMP4(c mp4.Codec) (media.CodecID, media.MediaKind) {
	switch c.(type) {
	case *mp4.CodecH264:
		return media.CodecH264, media.KindVideo
	case *mp4.CodecH265:
		return media.CodecH265, media.KindVideo
	case *mp4.CodecVP9:
		return media.CodecVP9, media.KindVideo
	case *mp4.CodecAV1:
		return media.CodecAV1, media.KindVideo
	case *mp4.CodecMPEG4Video:
		return media.CodecMPEG4Video, media.KindVideo
	case *mp4.CodecMPEG1Video:
		return media.CodecMPEG2Video, media.KindVideo
	case *mp4.CodecMJPEG:
		return media.CodecUnknown, media.KindVideo
	case *mp4.CodecMPEG4Audio:
		return media.CodecAAC, media.KindAudio
	case *mp4.CodecMPEG1Audio:
		return media.CodecMP3, media.KindAudio
	case *mp4.CodecAC3:
		return media.CodecAC3, media.KindAudio
	case *mp4.CodecEAC3:
		return media.CodecEAC3, media.KindAudio
	case *mp4.CodecOpus:
		return media.CodecOpus, media.KindAudio
	case *mp4.CodecLPCM:
		return media.CodecUnknown, media.KindAudio
	default:
		return media.CodecUnknown, media.KindUnknown
	}
}

// AACConfig prefers the AudioSpecificConfig carried in extradata and falls
// back to an AAC-LC config built from the sample rate and channel count.
func AACConfig(p media.CodecParameters) (*mpeg4audio.AudioSpecificConfig, error) {
	if len(p.ExtraData) > 0 {
		var conf mpeg4audio.AudioSpecificConfig
		if err := conf.Unmarshal(p.ExtraData[0]); err != nil {
			return nil, fmt.Errorf("parsing AudioSpecificConfig: %w", err)
		}
		return &conf, nil
	}
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("aac stream needs extradata or sample rate and channels")
	}
	return &mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   p.SampleRate,
		ChannelCount: p.Channels,
	}, nil
}

// AACProfile names the profile ffprobe reports for an AAC object type.
func AACProfile(t mpeg4audio.ObjectType) string {
	switch t {
	case mpeg4audio.ObjectTypeAACLC:
		return "LC"
	case mpeg4audio.ObjectTypeSBR:
		return "HE-AAC"
	case mpeg4audio.ObjectTypePS:
		return "HE-AACv2"
	default:
		return ""
	}
}

// AACParams fills the audio fields of p from an AudioSpecificConfig and
// stores the marshaled config as extradata.
func AACParams(p *media.CodecParameters, conf mpeg4audio.AudioSpecificConfig) {
	p.SampleRate = conf.SampleRate
	p.Channels = conf.ChannelCount
	if raw, err := conf.Marshal(); err == nil {
		p.ExtraData = [][]byte{raw}
	}
	p.Profile = AACProfile(conf.Type)
}
