package media

// BestStream picks the preferred stream of a kind: default disposition first,
// then the largest picture or channel count, then the most frames, then the
// lowest index. Providers without their own heuristics use it.
func BestStream(streams []*Stream, kind MediaKind) (*Stream, bool) {
	var best *Stream
	for _, s := range streams {
		if s.Kind() != kind || s.Disposition.Has(DispositionAttachedPic) {
			continue
		}
		if best == nil || better(s, best) {
			best = s
		}
	}
	return best, best != nil
}

func better(a, b *Stream) bool {
	ad, bd := a.Disposition.Has(DispositionDefault), b.Disposition.Has(DispositionDefault)
	if ad != bd {
		return ad
	}
	if as, bs := size(a), size(b); as != bs {
		return as > bs
	}
	if a.Frames != b.Frames {
		return a.Frames > b.Frames
	}
	return a.Index < b.Index
}

func size(s *Stream) int {
	switch s.Kind() {
	case KindVideo:
		return s.Params.Width * s.Params.Height
	case KindAudio:
		return s.Params.Channels
	default:
		return 0
	}
}
