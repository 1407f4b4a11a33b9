// Package report builds the human readable codec and stream report for an
// opened container.
package report

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/observability"
)

// Decoder turns codec parameters into decoded details. codec.DecodeParameters
// is used when Build is given nil.
type Decoder func(media.CodecParameters) (media.Details, error)

// Tag is a metadata key/value pair.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BestStream is the preferred stream of one kind.
type BestStream struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

// Report is the full metadata report of a container.
type Report struct {
	Format          string         `json:"format"`
	Metadata        []Tag          `json:"metadata"`
	BestStreams     []BestStream   `json:"best_streams"`
	DurationSeconds float64        `json:"duration_seconds"`
	Streams         []StreamReport `json:"streams"`
}

// StreamReport describes one stream. Video and Audio are mutually exclusive
// and both nil when the stream's parameters could not be decoded.
type StreamReport struct {
	Index           int                 `json:"index"`
	ID              int                 `json:"id"`
	TimeBase        media.Rational      `json:"time_base"`
	StartTime       *int64              `json:"start_time"`
	Duration        int64               `json:"duration"`
	DurationSeconds float64             `json:"duration_seconds"`
	Frames          int64               `json:"frames"`
	Disposition     string              `json:"disposition"`
	Discard         string              `json:"discard"`
	Rate            media.Rational      `json:"rate"`
	Medium          string              `json:"medium"`
	Codec           string              `json:"codec"`
	Language        string              `json:"language,omitempty"`
	LanguageName    string              `json:"language_name,omitempty"`
	Metadata        []Tag               `json:"metadata,omitempty"`
	Video           *media.VideoDetails `json:"video,omitempty"`
	Audio           *media.AudioDetails `json:"audio,omitempty"`
	DecodeError     string              `json:"decode_error,omitempty"`
}

// Build reads everything the report needs from c. A stream whose parameters
// fail to decode keeps its generic fields and loses only its detailed block.
func Build(ctx context.Context, c media.Container, dec Decoder) *Report {
	if dec == nil {
		dec = codec.DecodeParameters
	}
	logger := observability.WithComponent(observability.LoggerFromContext(ctx), "report")

	r := &Report{
		Format:          c.FormatName(),
		Metadata:        sortedTags(c.Metadata()),
		DurationSeconds: float64(c.Duration()) / media.TimeBase,
	}
	for _, kind := range media.Kinds {
		if s, ok := c.BestStream(kind); ok {
			r.BestStreams = append(r.BestStreams, BestStream{Kind: strings.ToLower(kind.String()), Index: s.Index})
		}
	}

	for _, s := range c.Streams() {
		sr := streamReport(s)
		details, err := dec(s.Params)
		if err != nil {
			level := slog.LevelWarn
			if !errors.Is(err, media.ErrDecodeParametersFailed) {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "skipping codec details",
				slog.Int("stream", s.Index),
				slog.String("codec", s.Params.CodecID.String()),
				slog.String("error", err.Error()),
			)
			sr.DecodeError = err.Error()
		}
		switch d := details.(type) {
		case *media.VideoDetails:
			sr.Video = d
		case *media.AudioDetails:
			sr.Audio = d
		}
		r.Streams = append(r.Streams, sr)
	}
	return r
}

func streamReport(s *media.Stream) StreamReport {
	sr := StreamReport{
		Index:       s.Index,
		ID:          s.ID,
		TimeBase:    s.TimeBase,
		Duration:    s.Duration,
		Frames:      s.Frames,
		Disposition: s.Disposition.String(),
		Discard:     s.Discard.String(),
		Rate:        s.FrameRate,
		Medium:      s.Kind().String(),
		Codec:       s.Params.CodecID.String(),
		Metadata:    sortedTags(s.Metadata),
	}
	if s.StartTime != media.NoPTS {
		start := s.StartTime
		sr.StartTime = &start
	}
	if s.TimeBase.Den != 0 {
		sr.DurationSeconds = float64(s.Duration) * float64(s.TimeBase.Num) / float64(s.TimeBase.Den)
	}
	if lang := s.Metadata["language"]; lang != "" {
		sr.Language = lang
		sr.LanguageName = LanguageName(lang)
	}
	return sr
}

// LanguageName returns the English name of an ISO 639 language code, or ""
// when the code is unknown or undetermined.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return ""
	}
	return display.English.Languages().Name(tag)
}

func sortedTags(m map[string]string) []Tag {
	if len(m) == 0 {
		return nil
	}
	tags := make([]Tag, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		tags = append(tags, Tag{Key: k, Value: m[k]})
	}
	return tags
}
