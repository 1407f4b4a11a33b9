package media

import "errors"

// Error taxonomy shared by every provider and pipeline step. Implementations
// wrap these with fmt.Errorf("...: %w", ...) so callers can match with errors.Is.
var (
	ErrIOOpenFailed           = errors.New("failed to open input")
	ErrIOCreateFailed         = errors.New("failed to create output")
	ErrUnsupportedCodec       = errors.New("unsupported codec")
	ErrStreamCreationFailed   = errors.New("failed to create output stream")
	ErrStreamLookupFailed     = errors.New("no output stream for input stream")
	ErrHeaderWriteFailed      = errors.New("failed to write header")
	ErrPacketWriteFailed      = errors.New("failed to write packet")
	ErrTrailerWriteFailed     = errors.New("failed to write trailer")
	ErrDecodeParametersFailed = errors.New("failed to decode codec parameters")
)
