package mpegts

import (
	"fmt"

	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// firstPID is the PID assigned to the first elementary stream of a new
// output; later streams take consecutive PIDs.
const firstPID uint16 = 0x100

// writableCodecs are the codecs the muxer can carry.
var writableCodecs = []media.CodecID{
	media.CodecH264,
	media.CodecH265,
	media.CodecAAC,
	media.CodecAC3,
	media.CodecEAC3,
	media.CodecMP3,
	media.CodecOpus,
}

// paramsFromTrack builds codec parameters from a track found in the PMT.
func paramsFromTrack(track *mcmpegts.Track) media.CodecParameters {
	id, kind := codec.FromMPEGTS(track.Codec)
	p := media.CodecParameters{Kind: kind, CodecID: id}

	switch c := track.Codec.(type) {
	case *mcmpegts.CodecMPEG4Audio:
		codec.AACParams(&p, c.Config)
	case *mcmpegts.CodecAC3:
		p.SampleRate = c.SampleRate
		p.Channels = c.ChannelCount
	case *mcmpegts.CodecEAC3:
		p.SampleRate = c.SampleRate
		p.Channels = c.ChannelCount
	case *mcmpegts.CodecOpus:
		p.SampleRate = 48000
		p.Channels = c.ChannelCount
	}
	return p
}

// trackCodec builds the mediacommon codec for an output stream.
func trackCodec(id media.CodecID, p media.CodecParameters) (mcmpegts.Codec, error) {
	switch id {
	case media.CodecH264:
		return &mcmpegts.CodecH264{}, nil
	case media.CodecH265:
		return &mcmpegts.CodecH265{}, nil
	case media.CodecAAC:
		conf, err := codec.AACConfig(p)
		if err != nil {
			return nil, err
		}
		return &mcmpegts.CodecMPEG4Audio{Config: *conf}, nil
	case media.CodecAC3:
		return &mcmpegts.CodecAC3{SampleRate: orDefault(p.SampleRate, 48000), ChannelCount: orDefault(p.Channels, 2)}, nil
	case media.CodecEAC3:
		return &mcmpegts.CodecEAC3{SampleRate: orDefault(p.SampleRate, 48000), ChannelCount: orDefault(p.Channels, 6)}, nil
	case media.CodecMP3:
		return &mcmpegts.CodecMPEG1Audio{}, nil
	case media.CodecOpus:
		return &mcmpegts.CodecOpus{ChannelCount: orDefault(p.Channels, 2)}, nil
	default:
		return nil, fmt.Errorf("%w: %s cannot be carried in MPEG-TS", media.ErrUnsupportedCodec, id)
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
