package media

// Details is the decoded, human readable view of a stream's codec parameters.
// It is implemented only by *VideoDetails and *AudioDetails.
type Details interface {
	Kind() MediaKind
	details()
}

// VideoDetails describes a decoded video codec context.
type VideoDetails struct {
	BitRate          int64    `json:"bit_rate"`
	MaxBitRate       int64    `json:"max_rate"`
	Delay            int      `json:"delay"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	PixelFormat      string   `json:"format"`
	HasBFrames       bool     `json:"has_b_frames"`
	AspectRatio      Rational `json:"aspect_ratio"`
	ColorSpace       string   `json:"color_space"`
	ColorRange       string   `json:"color_range"`
	ColorPrimaries   string   `json:"color_primaries"`
	ColorTransfer    string   `json:"color_transfer_characteristic"`
	ChromaLocation   string   `json:"chroma_location"`
	References       int      `json:"references"`
	IntraDCPrecision int      `json:"intra_dc_precision"`
	FrameRate        Rational `json:"-"`
}

// AudioDetails describes a decoded audio codec context.
type AudioDetails struct {
	BitRate       int64  `json:"bit_rate"`
	MaxBitRate    int64  `json:"max_rate"`
	Delay         int    `json:"delay"`
	SampleRate    int    `json:"rate"`
	Channels      int    `json:"channels"`
	SampleFormat  string `json:"format"`
	FrameSize     int    `json:"frames"`
	Align         int    `json:"align"`
	ChannelLayout string `json:"channel_layout"`
}

func (*VideoDetails) Kind() MediaKind { return KindVideo }
func (*AudioDetails) Kind() MediaKind { return KindAudio }

func (*VideoDetails) details() {}
func (*AudioDetails) details() {}
