package app

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxErrOutput bounds how much command output is folded into the error (and
// therefore into the run history).
const maxErrOutput = 512

// commandJob returns a job body that runs command through the shell. A
// context deadline kills the process via CommandContext.
func commandJob(command string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		out, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return err
		}
		if len(msg) > maxErrOutput {
			msg = msg[:maxErrOutput] + "..."
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
}
