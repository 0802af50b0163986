// Package exec runs task commands through the platform shell and reduces
// the outcome to a success flag, captured output, and wall-clock duration.
package exec

import (
	"bytes"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"taskwithme/internal/apperr"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

// Runner executes commands. The zero value is unusable; use New.
type Runner struct {
	log logx.Logger
}

func New(log logx.Logger) *Runner {
	return &Runner{log: log}
}

// shellCommand builds the platform invocation: cmd /C on Windows, sh -c
// everywhere else.
func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("sh", "-c", command)
}

// Execute runs t's command to completion and returns the result. A command
// that exits non-zero is a normal result with Success=false and stderr as
// output; only a failure to spawn the shell at all is an error.
func (r *Runner) Execute(t task.Task) (task.ExecutionResult, error) {
	cmd := shellCommand(t.Command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Start()
	if err != nil {
		return task.ExecutionResult{}, apperr.Executionf("failed to execute command: %v", err)
	}
	err = cmd.Wait()
	elapsed := time.Since(start)

	res := task.ExecutionResult{
		DurationMS: uint64(elapsed.Milliseconds()),
	}
	if err == nil {
		res.Success = true
		res.Output = strings.TrimSpace(stdout.String())
	} else {
		res.Output = strings.TrimSpace(stderr.String())
		if res.Output == "" {
			res.Output = err.Error()
		}
	}

	r.log.Debug("command finished",
		logx.String("task", t.Title),
		logx.Bool("success", res.Success),
		logx.Uint64("duration_ms", res.DurationMS),
	)
	return res, nil
}
