package mediatest

import "github.com/jmylchreest/mediatool/internal/media"

// VideoStream returns an H.264 stream with a 1/90000 time base.
func VideoStream(index int) *media.Stream {
	return &media.Stream{
		Index:       index,
		TimeBase:    media.MPEGTSTimeBase,
		Disposition: media.DispositionDefault,
		FrameRate:   media.Rational{Num: 25, Den: 1},
		Params: media.CodecParameters{
			Kind:    media.KindVideo,
			CodecID: media.CodecH264,
			Width:   1280,
			Height:  720,
		},
	}
}

// AudioStream returns a stereo 48kHz AAC stream with a 1/48000 time base.
func AudioStream(index int) *media.Stream {
	return &media.Stream{
		Index:    index,
		TimeBase: media.Rational{Num: 1, Den: 48000},
		Params: media.CodecParameters{
			Kind:       media.KindAudio,
			CodecID:    media.CodecAAC,
			SampleRate: 48000,
			Channels:   2,
		},
	}
}

// PacketsEvery returns n packets for a stream spaced step ticks apart
// starting at pts zero.
func PacketsEvery(stream, n int, step int64) []*media.Packet {
	pkts := make([]*media.Packet, 0, n)
	for i := range n {
		ts := int64(i) * step
		pkts = append(pkts, &media.Packet{
			StreamIndex: stream,
			PTS:         ts,
			DTS:         ts,
			Duration:    step,
			KeyFrame:    i == 0,
			Data:        []byte{byte(i)},
		})
	}
	return pkts
}
