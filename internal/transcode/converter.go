// Package transcode lazily produces and caches PNG renderings of stored WebP
// blobs for clients that cannot display WebP.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/domain"
)

// Converter is the external conversion oracle.
// The production implementation shells out to dwebp; tests substitute fakes.
type Converter interface {
	// WebPToPNG converts the WebP file at src into a PNG at dst.
	// Implementations must not leave a partial file at dst on failure.
	WebPToPNG(ctx context.Context, src, dst string) error
}

// DwebpConverter converts WebP images by invoking the dwebp utility.
type DwebpConverter struct {
	command string
	logger  zerolog.Logger
}

// NewDwebpConverter creates a Converter backed by the given command
// (normally "dwebp").
func NewDwebpConverter(command string, logger zerolog.Logger) *DwebpConverter {
	return &DwebpConverter{
		command: command,
		logger:  logger.With().Str("component", "converter").Logger(),
	}
}

// WebPToPNG runs the conversion into a unique temp name next to dst, then
// renames on success. A crashed or failed conversion leaves nothing at dst.
func (c *DwebpConverter) WebPToPNG(ctx context.Context, src, dst string) error {
	tmp := filepath.Join(filepath.Dir(dst), ".convert-"+uuid.NewString())

	c.logger.Info().Str("src", src).Msg("converting webp to png")
	cmd := execCommand(ctx, c.command, src, "-o", tmp)
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", domain.ErrTranscodeFailed, c.command, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", domain.ErrTranscodeFailed, err)
	}
	return nil
}

// Ensure DwebpConverter implements Converter.
var _ Converter = (*DwebpConverter)(nil)
