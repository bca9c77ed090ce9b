// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
)

// ExecuteContext runs a program and returns its stdout and stderr.
// A non-zero exit code is returned as an error that includes the program's stderr.
func ExecuteContext(ctx context.Context, program string, args ...string) (stdout string, stderr string, err error) {
	logger.Log.Debugf("Executing: %s %s", program, strings.Join(args, " "))

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if stdout != "" {
		logger.Log.Trace(stdout)
	}

	if err != nil {
		return stdout, stderr, fmt.Errorf("failed to run (%s):\n%w\n%s", program, err, strings.TrimSpace(stderr))
	}

	return stdout, stderr, nil
}
