package remux

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/pkg/bytesize"
)

// preflight prepares the output directory and checks its free space.
// Failures wrap media.ErrIOCreateFailed.
func (p *Pipeline) preflight(ctx context.Context, out string) error {
	dir := filepath.Dir(out)

	if p.opts.CreateDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating output directory: %w", media.ErrIOCreateFailed, err)
		}
	}

	if p.opts.MinFreeSpace <= 0 {
		return nil
	}

	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return fmt.Errorf("%w: checking free space on %s: %w", media.ErrIOCreateFailed, dir, err)
	}
	free := bytesize.Size(usage.Free)
	if free < p.opts.MinFreeSpace {
		return fmt.Errorf("%w: %s has %s free, %s required",
			media.ErrIOCreateFailed, dir, free, p.opts.MinFreeSpace)
	}

	p.logger.DebugContext(ctx, "output free space ok",
		slog.String("dir", dir),
		slog.String("free", free.String()),
	)
	return nil
}
