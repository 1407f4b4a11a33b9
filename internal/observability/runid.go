package observability

import (
	"github.com/oklog/ulid/v2"
)

// NewCorrelationID returns a new time-ordered identifier for tagging all log
// lines of one run.
func NewCorrelationID() string {
	return ulid.Make().String()
}
