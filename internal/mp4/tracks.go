package mp4

import (
	"errors"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/ac3"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/eac3"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg1audio"
	mcmp4 "github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// paramsFromCodec builds codec parameters from a sample entry. Video
// parameter sets become extradata in VPS, SPS, PPS order.
func paramsFromCodec(c mcmp4.Codec) media.CodecParameters {
	id, kind := codec.FromMP4(c)
	p := media.CodecParameters{Kind: kind, CodecID: id}

	switch c := c.(type) {
	case *mcmp4.CodecH264:
		p.ExtraData = [][]byte{c.SPS, c.PPS}
	case *mcmp4.CodecH265:
		p.ExtraData = [][]byte{c.VPS, c.SPS, c.PPS}
	case *mcmp4.CodecVP9:
		p.Width, p.Height = c.Width, c.Height
	case *mcmp4.CodecAV1:
		p.ExtraData = [][]byte{c.SequenceHeader}
	case *mcmp4.CodecMPEG4Video:
		p.ExtraData = [][]byte{c.Config}
	case *mcmp4.CodecMPEG1Video:
		p.ExtraData = [][]byte{c.Config}
	case *mcmp4.CodecMJPEG:
		p.Width, p.Height = c.Width, c.Height
	case *mcmp4.CodecMPEG4Audio:
		codec.AACParams(&p, c.Config)
	case *mcmp4.CodecMPEG1Audio:
		p.SampleRate, p.Channels = c.SampleRate, c.ChannelCount
	case *mcmp4.CodecAC3:
		p.SampleRate, p.Channels = c.SampleRate, c.ChannelCount
	case *mcmp4.CodecEAC3:
		p.SampleRate, p.Channels = c.SampleRate, c.ChannelCount
		p.BitRate = int64(c.DataRate) * 1000
	case *mcmp4.CodecOpus:
		p.SampleRate, p.Channels = 48000, c.ChannelCount
	case *mcmp4.CodecLPCM:
		p.SampleRate, p.Channels = c.SampleRate, c.ChannelCount
	}
	return p
}

// timeScale picks the media timescale of an output track: the sample rate
// for audio when known, 90kHz otherwise.
func timeScale(p media.CodecParameters) uint32 {
	if p.Kind == media.KindAudio && p.SampleRate > 0 {
		return uint32(p.SampleRate)
	}
	return 90000
}

var errNoParamSets = errors.New("no parameter sets in extradata or stream")

// sampleEntryCodec builds the sample entry codec of an output track once its
// samples are known. Audio entries that need bitstream fields read them from
// the first frame.
func sampleEntryCodec(t *outTrack) (mcmp4.Codec, error) {
	p := t.params
	switch t.codec {
	case media.CodecH264:
		if t.paramSets.SPS() == nil || t.paramSets.PPS() == nil {
			return nil, errNoParamSets
		}
		return &mcmp4.CodecH264{SPS: t.paramSets.SPS(), PPS: t.paramSets.PPS()}, nil

	case media.CodecH265:
		if !t.paramSets.Complete() {
			return nil, errNoParamSets
		}
		return &mcmp4.CodecH265{VPS: t.paramSets.VPS(), SPS: t.paramSets.SPS(), PPS: t.paramSets.PPS()}, nil

	case media.CodecAAC:
		conf, err := codec.AACConfig(p)
		if err != nil {
			return nil, err
		}
		return &mcmp4.CodecMPEG4Audio{Config: *conf}, nil

	case media.CodecAC3:
		return ac3Codec(t.firstFrame)

	case media.CodecEAC3:
		return eac3Codec(t.firstFrame)

	case media.CodecMP3:
		c := &mcmp4.CodecMPEG1Audio{SampleRate: p.SampleRate, ChannelCount: p.Channels}
		var h mpeg1audio.FrameHeader
		if err := h.Unmarshal(t.firstFrame); err == nil {
			c.SampleRate = h.SampleRate
			c.ChannelCount = 2
			if h.ChannelMode == mpeg1audio.ChannelModeMono {
				c.ChannelCount = 1
			}
		}
		if c.SampleRate <= 0 || c.ChannelCount <= 0 {
			return nil, errors.New("mp3 stream needs a frame header or sample rate and channels")
		}
		return c, nil

	case media.CodecOpus:
		channels := p.Channels
		if channels <= 0 {
			channels = 2
		}
		return &mcmp4.CodecOpus{ChannelCount: channels}, nil

	default:
		return nil, fmt.Errorf("%w: %s cannot be carried in MP4", media.ErrUnsupportedCodec, t.codec)
	}
}

func ac3Codec(frame []byte) (*mcmp4.CodecAC3, error) {
	var si ac3.SyncInfo
	if err := si.Unmarshal(frame); err != nil {
		return nil, fmt.Errorf("invalid AC-3 frame: %w", err)
	}
	var bsi ac3.BSI
	if err := bsi.Unmarshal(frame[5:]); err != nil {
		return nil, fmt.Errorf("invalid AC-3 frame: %w", err)
	}
	return &mcmp4.CodecAC3{
		SampleRate:   si.SampleRate(),
		ChannelCount: bsi.ChannelCount(),
		Fscod:        si.Fscod,
		Bsid:         bsi.Bsid,
		Bsmod:        bsi.Bsmod,
		Acmod:        bsi.Acmod,
		LfeOn:        bsi.LfeOn,
		BitRateCode:  si.Frmsizecod >> 1,
	}, nil
}

func eac3Codec(frame []byte) (*mcmp4.CodecEAC3, error) {
	var si eac3.SyncInfo
	if err := si.Unmarshal(frame); err != nil {
		return nil, fmt.Errorf("invalid E-AC-3 frame: %w", err)
	}
	// Frame bits times frames per second, in kbit/s.
	frameBits := (int(si.Frmsiz) + 1) * 16
	dataRate := frameBits * si.SampleRate() / (si.NumBlocks() * 256) / 1000
	return &mcmp4.CodecEAC3{
		SampleRate:   si.SampleRate(),
		ChannelCount: si.ChannelCount(),
		DataRate:     uint16(dataRate),
		Fscod:        si.Fscod,
		Bsid:         si.Bsid,
		Acmod:        si.Acmod,
		LfeOn:        si.Lfeon,
	}, nil
}
