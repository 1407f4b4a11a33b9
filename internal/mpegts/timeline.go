package mpegts

import (
	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
)

// timeline extends the 33-bit PES timestamps of one program into a
// continuous int64 timeline anchored at the first timestamp read. Every
// track of a file shares one timeline since they share the program clock.
type timeline struct {
	dec    *mcmpegts.TimeDecoder
	origin int64
	seeded bool
}

func newTimeline() *timeline {
	return &timeline{dec: mcmpegts.NewTimeDecoder()}
}

func (t *timeline) unwrap(ts int64) int64 {
	if !t.seeded {
		t.seeded = true
		t.origin = ts
	}
	return t.origin + t.dec.Decode(ts)
}
