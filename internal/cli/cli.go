// Package cli is the thin command-line boundary: it parses arguments
// into an app.Config and reports usage errors with explicit exit codes.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vk/packforgego/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating the program should exit cleanly (help
// requested, nothing to do), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("packforgego", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
packforgego - a declarative package-build orchestrator.

Usage:
  packforgego [options] MANIFEST_PATH [PACKAGE...]

Arguments:
  MANIFEST_PATH
    Path to a single .hcl manifest or a directory containing .hcl files.
  PACKAGE...
    Optional subset of packages to build and archive. Default: all.

Options:
`)
		flagSet.PrintDefaults()
	}

	outDirFlag := flagSet.String("out", "out", "Directory archives are written to.")
	stagingFlag := flagSet.String("staging", "", "Staging directory for output trees. Default: a fresh temp directory.")
	keepStagingFlag := flagSet.Bool("keep-staging", false, "Keep staging trees after the run for debugging.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 uses the available hardware concurrency.")
	fetchAttemptsFlag := flagSet.Int("fetch-attempts", 3, "Total download attempts per prebuilt artifact.")
	fetchBackoffFlag := flagSet.Duration("fetch-backoff", 500*time.Millisecond, "Initial backoff between download attempts.")
	buildTimeoutFlag := flagSet.Duration("build-timeout", 30*time.Minute, "Deadline for a single build command. 0 disables it.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	manifestPath := flagSet.Arg(0)
	targets := flagSet.Args()[1:]

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *fetchAttemptsFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid fetch-attempts: must be at least 1"}
	}

	config, err := app.NewConfig(app.Config{
		ManifestPath:  manifestPath,
		Targets:       targets,
		OutputDir:     *outDirFlag,
		StagingDir:    *stagingFlag,
		KeepStaging:   *keepStagingFlag,
		Workers:       *workersFlag,
		FetchAttempts: *fetchAttemptsFlag,
		FetchBackoff:  *fetchBackoffFlag,
		BuildTimeout:  *buildTimeoutFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, false, nil
}
