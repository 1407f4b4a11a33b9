package codec

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/jmylchreest/mediatool/internal/media"
)

// ParamSets keeps the first parameter set of each type seen for an H.264 or
// H.265 stream, either in-band or from extradata.
type ParamSets struct {
	codec media.CodecID
	vps   []byte
	sps   []byte
	pps   []byte
}

func NewParamSets(id media.CodecID) *ParamSets {
	return &ParamSets{codec: id}
}

// Collect records the parameter sets found among nalus.
func (c *ParamSets) Collect(nalus [][]byte) {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if c.codec == media.CodecH265 {
			switch h265.NALUType((nalu[0] >> 1) & 0x3F) {
			case h265.NALUType_VPS_NUT:
				c.vps = keepFirst(c.vps, nalu)
			case h265.NALUType_SPS_NUT:
				c.sps = keepFirst(c.sps, nalu)
			case h265.NALUType_PPS_NUT:
				c.pps = keepFirst(c.pps, nalu)
			}
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			c.sps = keepFirst(c.sps, nalu)
		case h264.NALUTypePPS:
			c.pps = keepFirst(c.pps, nalu)
		}
	}
}

func keepFirst(cur, nalu []byte) []byte {
	if cur != nil {
		return cur
	}
	return append([]byte(nil), nalu...)
}

// Complete reports whether every parameter set the codec needs was seen.
func (c *ParamSets) Complete() bool {
	if c.codec == media.CodecH265 && c.vps == nil {
		return false
	}
	return c.sps != nil && c.pps != nil
}

// ExtraData returns the parameter sets in VPS, SPS, PPS order.
func (c *ParamSets) ExtraData() [][]byte {
	var out [][]byte
	for _, ps := range [][]byte{c.vps, c.sps, c.pps} {
		if ps != nil {
			out = append(out, ps)
		}
	}
	return out
}

func (c *ParamSets) VPS() []byte { return c.vps }
func (c *ParamSets) SPS() []byte { return c.sps }
func (c *ParamSets) PPS() []byte { return c.pps }

// HasParamSet reports whether an access unit carries an SPS.
func HasParamSet(id media.CodecID, au [][]byte) bool {
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		switch id {
		case media.CodecH264:
			if h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeSPS {
				return true
			}
		case media.CodecH265:
			if h265.NALUType((nalu[0]>>1)&0x3F) == h265.NALUType_SPS_NUT {
				return true
			}
		}
	}
	return false
}
