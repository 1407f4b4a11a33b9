package mpegts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asticode/go-astits"
	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

// streamStats accumulates per-stream counts over a full pass of the file.
type streamStats struct {
	frames   int64
	minPTS   int64
	maxPTS   int64
	frameDur int64
}

// end returns the presentation end of the stream. When the frame duration
// is unknown the average spacing between frames is used.
func (s streamStats) end() int64 {
	dur := s.frameDur
	if dur == 0 && s.frames > 1 {
		dur = (s.maxPTS - s.minPTS) / (s.frames - 1)
	}
	return s.maxPTS + dur
}

func (s *streamStats) add(pts int64) {
	if s.frames == 0 || pts < s.minPTS {
		s.minPTS = pts
	}
	if s.frames == 0 || pts > s.maxPTS {
		s.maxPTS = pts
	}
	s.frames++
}

// scanStreamStats reads the whole file with a separate reader and counts
// frames and timestamp ranges for each track.
func scanStreamStats(ctx context.Context, path string, n int) ([]streamStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := &mcmpegts.Reader{R: bufio.NewReaderSize(f, readBufferSize)}
	if err := r.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing mpegts reader: %w", err)
	}
	r.OnDecodeError(func(error) {})

	tracks := r.Tracks()
	if len(tracks) != n {
		return nil, fmt.Errorf("track count changed between passes: %d != %d", len(tracks), n)
	}

	clock := newTimeline()
	stats := make([]streamStats, n)
	for i, track := range tracks {
		st := &stats[i]
		switch c := track.Codec.(type) {
		case *mcmpegts.CodecH264:
			r.OnDataH264(track, func(pts, _ int64, _ [][]byte) error {
				st.add(clock.unwrap(pts))
				return nil
			})
		case *mcmpegts.CodecH265:
			r.OnDataH265(track, func(pts, _ int64, _ [][]byte) error {
				st.add(clock.unwrap(pts))
				return nil
			})
		case *mcmpegts.CodecMPEG4Audio:
			st.frameDur = codec.FrameDuration(media.CodecAAC, c.Config.SampleRate, media.MPEGTSTimeBase)
			r.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
				st.addFrames(clock.unwrap(pts), len(aus))
				return nil
			})
		case *mcmpegts.CodecAC3:
			st.frameDur = codec.FrameDuration(media.CodecAC3, c.SampleRate, media.MPEGTSTimeBase)
			r.OnDataAC3(track, func(pts int64, _ []byte) error {
				st.add(clock.unwrap(pts))
				return nil
			})
		case *mcmpegts.CodecEAC3:
			st.frameDur = codec.FrameDuration(media.CodecEAC3, c.SampleRate, media.MPEGTSTimeBase)
			r.OnDataEAC3(track, func(pts int64, _ []byte) error {
				st.add(clock.unwrap(pts))
				return nil
			})
		case *mcmpegts.CodecMPEG1Audio:
			r.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
				st.addFrames(clock.unwrap(pts), len(frames))
				return nil
			})
		case *mcmpegts.CodecOpus:
			st.frameDur = codec.FrameDuration(media.CodecOpus, 48000, media.MPEGTSTimeBase)
			r.OnDataOpus(track, func(pts int64, packets [][]byte) error {
				st.addFrames(clock.unwrap(pts), len(packets))
				return nil
			})
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return stats, nil
			}
			return nil, err
		}
	}
}

// addFrames records a PES payload carrying several frames.
func (s *streamStats) addFrames(pts int64, count int) {
	for i := range count {
		s.add(pts + int64(i)*s.frameDur)
	}
}

// readServiceInfo scans the start of a stream for the SDT and PMTs. It
// returns the service name and provider as container metadata and the
// ISO 639 language of each elementary PID. A partial result is returned with
// the error when the scan stops early.
func readServiceInfo(ctx context.Context, r io.Reader) (map[string]string, map[uint16]string, error) {
	meta := make(map[string]string)
	langs := make(map[uint16]string)

	dmx := astits.NewDemuxer(ctx, r)
	var sawSDT, sawPMT bool
	for !sawSDT || !sawPMT {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return meta, langs, nil
			}
			return meta, langs, err
		}

		if d.SDT != nil {
			sawSDT = true
			for _, svc := range d.SDT.Services {
				for _, desc := range svc.Descriptors {
					if desc.Service == nil {
						continue
					}
					if name := string(desc.Service.Name); name != "" {
						meta["service_name"] = name
					}
					if provider := string(desc.Service.Provider); provider != "" {
						meta["service_provider"] = provider
					}
				}
			}
		}

		if d.PMT != nil {
			sawPMT = true
			for _, es := range d.PMT.ElementaryStreams {
				for _, desc := range es.ElementaryStreamDescriptors {
					if desc.ISO639LanguageAndAudioType != nil {
						langs[es.ElementaryPID] = string(desc.ISO639LanguageAndAudioType.Language)
					}
				}
			}
		}
	}
	return meta, langs, nil
}
