// Package sniff determines the true MIME type of stored blobs by inspecting
// their bytes, independent of client-declared types or filename extensions.
package sniff

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Inspector is the external byte-inspection oracle.
// The production implementation shells out to file(1); tests substitute fakes.
type Inspector interface {
	// MIME reports the MIME type and transport encoding of a file.
	MIME(ctx context.Context, path string) (mimeType, encoding string, err error)

	// Describe reports the plain-text description of a file.
	Describe(ctx context.Context, path string) (string, error)
}

// FileCommand inspects files by invoking the file(1) utility.
type FileCommand struct {
	command string
	logger  zerolog.Logger
}

// NewFileCommand creates an Inspector backed by the given command
// (normally "file").
func NewFileCommand(command string, logger zerolog.Logger) *FileCommand {
	return &FileCommand{
		command: command,
		logger:  logger.With().Str("component", "inspector").Logger(),
	}
}

// MIME runs `file -i <path>` and parses its "<path>: <mime>; charset=<enc>" output.
func (f *FileCommand) MIME(ctx context.Context, path string) (string, string, error) {
	out, err := exec.CommandContext(ctx, f.command, "-i", path).Output()
	if err != nil {
		return "", "", fmt.Errorf("inspect %s: %w", path, err)
	}

	fields := strings.Fields(string(out))
	if len(fields) < 3 {
		return "", "", fmt.Errorf("inspect %s: unexpected output %q", path, string(out))
	}
	mimeType := strings.TrimSuffix(fields[1], ";")
	encoding := fields[2]
	if i := strings.LastIndex(encoding, "="); i >= 0 {
		encoding = encoding[i+1:]
	}
	return mimeType, encoding, nil
}

// Describe runs `file <path>` and returns the description after the path prefix.
func (f *FileCommand) Describe(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, f.command, path).Output()
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", path, err)
	}
	s := strings.TrimSpace(string(out))
	if i := strings.Index(s, ": "); i >= 0 {
		s = s[i+2:]
	}
	return s, nil
}

// Ensure FileCommand implements Inspector.
var _ Inspector = (*FileCommand)(nil)
