package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmylchreest/mediatool/internal/media"
)

// WriteText writes the report as "label: value" lines, one indented block
// per stream.
func (r *Report) WriteText(w io.Writer) error {
	var b bytes.Buffer

	for _, t := range r.Metadata {
		fmt.Fprintf(&b, "%s: %s\n", t.Key, t.Value)
	}
	for _, best := range r.BestStreams {
		fmt.Fprintf(&b, "Best %s stream index: %d\n", best.Kind, best.Index)
	}
	fmt.Fprintf(&b, "duration (seconds): %.2f\n", r.DurationSeconds)

	for i := range r.Streams {
		writeStream(&b, &r.Streams[i])
	}

	_, err := w.Write(b.Bytes())
	return err
}

func writeStream(b *bytes.Buffer, s *StreamReport) {
	line := func(label string, value any) {
		fmt.Fprintf(b, "\t%s: %v\n", label, value)
	}

	fmt.Fprintf(b, "stream index %d:\n", s.Index)
	line("time_base", s.TimeBase)
	if s.StartTime != nil {
		line("start_time", *s.StartTime)
	} else {
		line("start_time", "N/A")
	}
	line("duration (stream timebase)", s.Duration)
	fmt.Fprintf(b, "\tduration (seconds): %.2f\n", s.DurationSeconds)
	line("frames", s.Frames)
	line("disposition", s.Disposition)
	line("discard", s.Discard)
	line("rate", s.Rate)
	line("medium", s.Medium)
	line("id", s.Codec)
	if s.Language != "" {
		if s.LanguageName != "" {
			line("language", fmt.Sprintf("%s (%s)", s.Language, s.LanguageName))
		} else {
			line("language", s.Language)
		}
	}
	for _, t := range s.Metadata {
		if t.Key == "language" {
			continue
		}
		line("metadata."+t.Key, t.Value)
	}

	switch {
	case s.Video != nil:
		writeVideo(line, s.Video)
	case s.Audio != nil:
		writeAudio(line, s.Audio)
	}
}

func writeVideo(line func(string, any), v *media.VideoDetails) {
	line("bit_rate", v.BitRate)
	line("max_rate", v.MaxBitRate)
	line("delay", v.Delay)
	line("video.width", v.Width)
	line("video.height", v.Height)
	line("video.format", v.PixelFormat)
	line("video.has_b_frames", v.HasBFrames)
	line("video.aspect_ratio", v.AspectRatio)
	line("video.color_space", v.ColorSpace)
	line("video.color_range", v.ColorRange)
	line("video.color_primaries", v.ColorPrimaries)
	line("video.color_transfer_characteristic", v.ColorTransfer)
	line("video.chroma_location", v.ChromaLocation)
	line("video.references", v.References)
	line("video.intra_dc_precision", v.IntraDCPrecision)
}

func writeAudio(line func(string, any), a *media.AudioDetails) {
	line("bit_rate", a.BitRate)
	line("max_rate", a.MaxBitRate)
	line("delay", a.Delay)
	line("audio.rate", a.SampleRate)
	line("audio.channels", a.Channels)
	line("audio.format", a.SampleFormat)
	line("audio.frames", a.FrameSize)
	line("audio.align", a.Align)
	line("audio.channel_layout", a.ChannelLayout)
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
