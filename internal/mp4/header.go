package mp4

import (
	"io"
	"strconv"
	"strings"

	amp4 "github.com/abema/go-mp4"
)

// headerInfo holds header fields the presentation reader does not expose:
// the file type brands and the language of each track.
type headerInfo struct {
	metadata map[string]string
	// languages is keyed by track ID.
	languages map[int]string
}

// readHeaderInfo extracts the ftyp brands as container metadata, named the
// way ffprobe names them, and the ISO 639-2 language from each mdhd.
func readHeaderInfo(r io.ReadSeeker) (headerInfo, error) {
	info := headerInfo{
		metadata:  make(map[string]string),
		languages: make(map[int]string),
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, err
	}
	boxes, err := amp4.ExtractBoxesWithPayload(r, nil, []amp4.BoxPath{
		{amp4.BoxTypeFtyp()},
		{amp4.BoxTypeMoov(), amp4.BoxTypeTrak(), amp4.BoxTypeTkhd()},
		{amp4.BoxTypeMoov(), amp4.BoxTypeTrak(), amp4.BoxTypeMdia(), amp4.BoxTypeMdhd()},
	})
	if err != nil {
		return info, err
	}

	trackID := 0
	for _, b := range boxes {
		switch box := b.Payload.(type) {
		case *amp4.Ftyp:
			info.metadata["major_brand"] = brand(box.MajorBrand)
			info.metadata["minor_version"] = strconv.FormatUint(uint64(box.MinorVersion), 10)
			var compat strings.Builder
			for _, c := range box.CompatibleBrands {
				compat.WriteString(brand(c.CompatibleBrand))
			}
			info.metadata["compatible_brands"] = compat.String()
		case *amp4.Tkhd:
			trackID = int(box.TrackID)
		case *amp4.Mdhd:
			if lang := mdhdLanguage(box.Language); lang != "" && lang != "und" {
				info.languages[trackID] = lang
			}
		}
	}
	return info, nil
}

func brand(b [4]byte) string {
	return strings.TrimRight(string(b[:]), "\x00")
}

// mdhdLanguage decodes the packed language code: three 5-bit letters, each
// stored as the offset from 0x60.
func mdhdLanguage(code [3]byte) string {
	var out [3]byte
	for i, c := range code {
		if c == 0 || c > 0x1f {
			return ""
		}
		out[i] = c + 0x60
	}
	return string(out[:])
}
