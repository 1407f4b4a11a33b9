package codec

import (
	"fmt"
	"math"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/jmylchreest/mediatool/internal/media"
)

const unknown = "unknown"

// DecodeParameters builds the decoder view of a stream's codec parameters.
// Video and audio streams yield *media.VideoDetails or *media.AudioDetails;
// other kinds have no details and return (nil, nil). Missing or corrupt
// parameters return an error wrapping media.ErrDecodeParametersFailed.
func DecodeParameters(p media.CodecParameters) (media.Details, error) {
	switch p.Kind {
	case media.KindVideo:
		return decodeVideo(p)
	case media.KindAudio:
		return decodeAudio(p)
	default:
		return nil, nil
	}
}

func decodeVideo(p media.CodecParameters) (*media.VideoDetails, error) {
	d := &media.VideoDetails{
		BitRate:        p.BitRate,
		MaxBitRate:     p.MaxBitRate,
		Delay:          p.Delay,
		Width:          p.Width,
		Height:         p.Height,
		PixelFormat:    p.PixelFormat,
		HasBFrames:     p.HasBFrames > 0,
		AspectRatio:    p.SampleAspectRatio,
		ColorSpace:     p.ColorSpace,
		ColorRange:     p.ColorRange,
		ColorPrimaries: p.ColorPrimaries,
		ColorTransfer:  p.ColorTransfer,
		ChromaLocation: p.ChromaLocation,
		References:     p.Refs,
	}

	switch p.CodecID {
	case media.CodecH264:
		if sps := findH264SPS(p.ExtraData); sps != nil {
			if err := applyH264SPS(d, sps); err != nil {
				return nil, fmt.Errorf("%w: h264 sps: %w", media.ErrDecodeParametersFailed, err)
			}
		}
	case media.CodecH265:
		if sps := findH265SPS(p.ExtraData); sps != nil {
			if err := applyH265SPS(d, sps); err != nil {
				return nil, fmt.Errorf("%w: h265 sps: %w", media.ErrDecodeParametersFailed, err)
			}
		}
	}

	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: frame dimensions unknown", media.ErrDecodeParametersFailed, p.CodecID)
	}
	fillUnknown(&d.PixelFormat, &d.ColorSpace, &d.ColorRange, &d.ColorPrimaries, &d.ColorTransfer, &d.ChromaLocation)
	return d, nil
}

func decodeAudio(p media.CodecParameters) (*media.AudioDetails, error) {
	d := &media.AudioDetails{
		BitRate:       p.BitRate,
		MaxBitRate:    p.MaxBitRate,
		Delay:         p.Delay,
		SampleRate:    p.SampleRate,
		Channels:      p.Channels,
		SampleFormat:  p.SampleFormat,
		FrameSize:     p.FrameSize,
		Align:         p.BlockAlign,
		ChannelLayout: p.ChannelLayout,
	}

	if p.CodecID == media.CodecAAC && len(p.ExtraData) > 0 {
		var conf mpeg4audio.AudioSpecificConfig
		if err := conf.Unmarshal(p.ExtraData[0]); err != nil {
			return nil, fmt.Errorf("%w: aac config: %w", media.ErrDecodeParametersFailed, err)
		}
		d.SampleRate = conf.SampleRate
		if conf.ChannelCount > 0 {
			d.Channels = conf.ChannelCount
		}
	}

	if d.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s: sample rate unknown", media.ErrDecodeParametersFailed, p.CodecID)
	}

	if info, ok := byID[p.CodecID]; ok {
		if d.SampleFormat == "" {
			d.SampleFormat = info.SampleFormat
		}
		if d.FrameSize == 0 {
			d.FrameSize = info.FrameSize
		}
	}
	if d.ChannelLayout == "" {
		d.ChannelLayout = DefaultChannelLayout(d.Channels)
	}
	fillUnknown(&d.SampleFormat)
	return d, nil
}

// FrameDuration returns the duration of one audio frame in ticks of tb, or 0
// when the codec or sample rate is unknown.
func FrameDuration(id media.CodecID, sampleRate int, tb media.Rational) int64 {
	info, ok := byID[id]
	if !ok || info.FrameSize == 0 || sampleRate <= 0 {
		return 0
	}
	return media.Rescale(int64(info.FrameSize), media.Rational{Num: 1, Den: sampleRate}, tb)
}

func findH264SPS(nalus [][]byte) []byte {
	for _, nalu := range nalus {
		if len(nalu) > 0 && h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeSPS {
			return nalu
		}
	}
	return nil
}

func findH265SPS(nalus [][]byte) []byte {
	for _, nalu := range nalus {
		if len(nalu) > 0 && h265.NALUType((nalu[0]>>1)&0x3F) == h265.NALUType_SPS_NUT {
			return nalu
		}
	}
	return nil
}

func applyH264SPS(d *media.VideoDetails, buf []byte) error {
	var sps h264.SPS
	if err := sps.Unmarshal(buf); err != nil {
		return err
	}

	d.Width = sps.Width()
	d.Height = sps.Height()
	d.References = int(sps.MaxNumRefFrames)
	d.HasBFrames = h264HasBFrames(&sps)
	if d.PixelFormat == "" {
		d.PixelFormat = h264PixelFormat(int(sps.ProfileIdc), int(sps.ChromaFormatIdc), int(sps.BitDepthLumaMinus8))
	}
	d.FrameRate = frameRate(sps.FPS())

	vui := sps.VUI
	if vui == nil {
		return nil
	}
	if vui.AspectRatioInfoPresentFlag {
		d.AspectRatio = sampleAspectRatio(int(vui.AspectRatioIdc), int(vui.SarWidth), int(vui.SarHeight))
	}
	if vui.VideoSignalTypePresentFlag {
		d.ColorRange = "tv"
		if vui.VideoFullRangeFlag {
			d.ColorRange = "pc"
		}
		if vui.ColourDescriptionPresentFlag {
			d.ColorPrimaries = colorPrimariesName(int(vui.ColourPrimaries))
			d.ColorTransfer = transferName(int(vui.TransferCharacteristics))
			d.ColorSpace = matrixName(int(vui.MatrixCoefficients))
		}
	}
	if vui.ChromaLocInfoPresentFlag {
		d.ChromaLocation = chromaLocationName(int(vui.ChromaSampleLocTypeTopField))
	}
	return nil
}

func applyH265SPS(d *media.VideoDetails, buf []byte) error {
	var sps h265.SPS
	if err := sps.Unmarshal(buf); err != nil {
		return err
	}
	d.Width = sps.Width()
	d.Height = sps.Height()
	d.HasBFrames = true
	if d.PixelFormat == "" {
		d.PixelFormat = "yuv420p"
	}
	d.FrameRate = frameRate(sps.FPS())
	return nil
}

const profileBaseline = 66

// h264HasBFrames prefers the reorder depth signalled in the VUI bitstream
// restriction and falls back to the profile when it is absent.
func h264HasBFrames(sps *h264.SPS) bool {
	if sps.VUI != nil && sps.VUI.BitstreamRestriction != nil {
		return sps.VUI.BitstreamRestriction.MaxNumReorderFrames > 0
	}
	return int(sps.ProfileIdc) != profileBaseline
}

// h264PixelFormat derives the decoder pixel format. Chroma format and bit
// depth are only coded for the high profiles; everything else is 8-bit 4:2:0.
func h264PixelFormat(profile, chromaFormat, bitDepthMinus8 int) string {
	switch profile {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
	default:
		return "yuv420p"
	}
	base := "yuv420p"
	switch chromaFormat {
	case 0:
		base = "gray"
	case 2:
		base = "yuv422p"
	case 3:
		base = "yuv444p"
	}
	if bitDepthMinus8 > 0 {
		return fmt.Sprintf("%s%dle", base, bitDepthMinus8+8)
	}
	return base
}

// frameRate converts a floating point rate to a rational, using a 1001
// denominator for NTSC style rates.
func frameRate(fps float64) media.Rational {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return media.Rational{}
	}
	if r := math.Round(fps); math.Abs(fps-r) < 1e-3 {
		return media.Rational{Num: int(r), Den: 1}
	}
	return media.Rational{Num: int(math.Round(fps * 1001)), Den: 1001}
}

func fillUnknown(fields ...*string) {
	for _, f := range fields {
		if *f == "" {
			*f = unknown
		}
	}
}

// DefaultChannelLayout names the conventional layout for a channel count.
func DefaultChannelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	case 3:
		return "2.1"
	case 4:
		return "4.0"
	case 5:
		return "5.0"
	case 6:
		return "5.1"
	case 7:
		return "6.1"
	case 8:
		return "7.1"
	case 0:
		return unknown
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
