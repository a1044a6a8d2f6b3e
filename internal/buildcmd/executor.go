// Package buildcmd runs the opaque build command of local-source
// packages. Commands execute as POSIX shell programs through an
// in-process interpreter, with their combined output captured for error
// reporting and a configurable overall deadline.
package buildcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
)

// OutputEnvVar names the environment variable carrying the staging
// directory a build command must populate.
const OutputEnvVar = "PACKFORGE_OUTPUT"

// SourcesEnvVar names the environment variable carrying the declared
// source paths, joined with the platform list separator.
const SourcesEnvVar = "PACKFORGE_SOURCES"

// CommandError reports a build command that exited non-zero. Build
// failures are deterministic given their inputs and are never retried.
type CommandError struct {
	Package    string
	ExitStatus int
	Output     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("build command for %q exited with status %d", e.Package, e.ExitStatus)
}

// TimeoutError reports a build command that exceeded the overall build
// deadline. Treated like a command failure by callers.
type TimeoutError struct {
	Package string
	Timeout time.Duration
	Output  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("build command for %q exceeded the %s build timeout", e.Package, e.Timeout)
}

// Executor runs local build commands.
type Executor struct {
	// WorkDir is the directory commands run in, normally the manifest
	// directory so relative source paths resolve. Empty means the process
	// working directory.
	WorkDir string
	// Timeout bounds one build command run. Zero means no limit.
	Timeout time.Duration
}

// Build executes src's build command for the named package. The command
// sees the staging directory in PACKFORGE_OUTPUT and must populate it
// before exiting zero; it must never write outside of it.
func (e *Executor) Build(ctx context.Context, pkgName string, src *config.LocalSource, outputDir string) error {
	logger := ctxlog.FromContext(ctx).With("package", pkgName)

	prog, err := syntax.NewParser().Parse(strings.NewReader(src.BuildCommand), pkgName)
	if err != nil {
		return fmt.Errorf("parsing build command for %q: %w", pkgName, err)
	}

	env := append(os.Environ(),
		OutputEnvVar+"="+outputDir,
		SourcesEnvVar+"="+strings.Join(src.SourcePaths, string(os.PathListSeparator)),
	)

	var output bytes.Buffer
	runner, err := interp.New(
		interp.Dir(e.WorkDir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &output, &output),
	)
	if err != nil {
		return fmt.Errorf("creating interpreter for %q: %w", pkgName, err)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if e.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logger.Debug("Running build command.", "command", src.BuildCommand)
	runErr := runner.Run(execCtx, prog)
	if runErr == nil {
		logger.Debug("Build command finished.", "output_bytes", output.Len())
		return nil
	}

	// The deadline belongs to this build, not the surrounding run.
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &TimeoutError{Package: pkgName, Timeout: e.Timeout, Output: output.String()}
	}

	var status interp.ExitStatus
	if errors.As(runErr, &status) {
		return &CommandError{Package: pkgName, ExitStatus: int(status), Output: output.String()}
	}
	return fmt.Errorf("build command for %q: %w", pkgName, runErr)
}
