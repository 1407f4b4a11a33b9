// Package ffmpeg inspects media containers with ffprobe. It is an optional
// fallback for formats the native demuxers cannot open.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/mediatool/internal/util"
)

// ProbeBinaryEnv overrides the ffprobe location.
const ProbeBinaryEnv = "MEDIATOOL_FFPROBE_BINARY"

// ErrProbeNotFound is returned when no ffprobe binary could be located.
var ErrProbeNotFound = errors.New("ffprobe not found")

// BinaryInfo describes a located ffprobe installation.
type BinaryInfo struct {
	Path         string `json:"path" yaml:"path"`
	Version      string `json:"version" yaml:"version"`
	MajorVersion int    `json:"major_version" yaml:"major_version"`
	MinorVersion int    `json:"minor_version" yaml:"minor_version"`
}

// SupportsMinVersion reports whether the binary is at least major.minor.
func (info *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if info.MajorVersion != major {
		return info.MajorVersion > major
	}
	return info.MinorVersion >= minor
}

// BinaryDetector locates ffprobe once and caches the result.
type BinaryDetector struct {
	configured string

	mu   sync.Mutex
	info *BinaryInfo
}

// NewBinaryDetector creates a detector. A non-empty configured path takes
// precedence over MEDIATOOL_FFPROBE_BINARY, ./ffprobe and PATH.
func NewBinaryDetector(configured string) *BinaryDetector {
	return &BinaryDetector{configured: configured}
}

// Detect locates ffprobe and reads its version.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil {
		return d.info, nil
	}

	path, err := util.FindBinary("ffprobe", d.configured, ProbeBinaryEnv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeNotFound, err)
	}

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("running %s -version: %w", path, err)
	}

	info, err := parseVersion(string(output))
	if err != nil {
		return nil, err
	}
	info.Path = path

	d.info = info
	return info, nil
}

// Clear drops the cached result so the next Detect searches again.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

var versionRegex = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// parseVersion reads "ffprobe version 6.1.1 Copyright ..." style output.
// Git builds report versions like "n6.1-2-gabc" or "N-112345-gabc".
func parseVersion(output string) (*BinaryInfo, error) {
	for line := range strings.SplitSeq(output, "\n") {
		if !strings.HasPrefix(line, "ffprobe version") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			break
		}
		info := &BinaryInfo{Version: parts[2]}
		if m := versionRegex.FindStringSubmatch(parts[2]); m != nil {
			info.MajorVersion, _ = strconv.Atoi(m[1])
			info.MinorVersion, _ = strconv.Atoi(m[2])
		}
		return info, nil
	}
	return nil, fmt.Errorf("failed to parse ffprobe version")
}
