// elMix: allele-specific copy-number preprocessing for tumour samples.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elmix/blob/master/LICENSE.txt>.

package internal

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError reports a failed invocation of an external tool.
type CommandError struct {
	Args     []string
	ExitCode int
	LogFile  string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed with exit status %v", strings.Join(e.Args, " "), e.ExitCode)
	if e.LogFile != "" {
		msg += ", see log file " + e.LogFile
	}
	if e.ExitCode < 0 && e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// RunCmd is cmd.Run(), but failures are reported as a *CommandError
// that carries the exit status and the given log file location.
func RunCmd(cmd *exec.Cmd, logFile string) error {
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &CommandError{Args: cmd.Args, ExitCode: code, LogFile: logFile, Err: err}
	}
	return nil
}
