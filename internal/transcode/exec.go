package transcode

import (
	"context"
	"os/exec"
)

// execCommand builds the conversion subprocess. Stdout and stderr are
// discarded; dwebp reports progress on stderr even on success.
func execCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}
