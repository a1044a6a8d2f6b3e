package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/packforgego/internal/archive"
	"github.com/vk/packforgego/internal/assemble"
	"github.com/vk/packforgego/internal/buildcmd"
	"github.com/vk/packforgego/internal/ctxlog"
	"github.com/vk/packforgego/internal/executor"
	"github.com/vk/packforgego/internal/fetch"
	"github.com/vk/packforgego/internal/graph"
)

// Run executes the build run described by the configuration and writes
// the per-package outcome report to the application's output writer.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run started.")

	g, err := graph.Build(a.model)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "nodes", g.Len())

	stagingRoot := appConfig.StagingDir
	if stagingRoot == "" {
		stagingRoot, err = os.MkdirTemp("", "packforgego-*")
		if err != nil {
			return fmt.Errorf("creating staging root: %w", err)
		}
	}
	if !appConfig.KeepStaging {
		// Output trees only live as long as the run needs them.
		defer func() {
			if rmErr := os.RemoveAll(stagingRoot); rmErr != nil {
				a.logger.Warn("Failed to clean staging root.", "path", stagingRoot, "error", rmErr)
			}
		}()
	}

	deps := executor.Deps{
		Fetcher: fetch.New(fetch.Options{
			MaxAttempts:    appConfig.FetchAttempts,
			InitialBackoff: appConfig.FetchBackoff,
		}),
		Builder: &buildcmd.Executor{
			WorkDir: manifestWorkDir(appConfig.ManifestPath),
			Timeout: appConfig.BuildTimeout,
		},
		Assembler: assemble.New(nil),
		Archiver:  archive.New(appConfig.OutputDir),
	}

	exec := executor.New(a.model, g, deps, executor.Options{
		Workers:     appConfig.Workers,
		StagingRoot: stagingRoot,
		Targets:     appConfig.Targets,
	})

	a.logger.Info("Starting build run.", "packages", len(a.model.Packages), "workers", appConfig.Workers)
	report, runErr := exec.Run(ctx)
	if report != nil {
		a.writeReport(report)
	}
	if runErr != nil {
		return runErr
	}
	a.logger.Info("Build run finished.")
	return nil
}

// writeReport renders the complete outcome set, not just the first
// failure, so several problems can be fixed per invocation.
func (a *App) writeReport(report *executor.Report) {
	fmt.Fprintln(a.outW, "Package results:")
	for _, o := range report.Outcomes {
		switch {
		case o.ArchiveErr != nil:
			fmt.Fprintf(a.outW, "  %-20s archive failed: %v\n", o.Package, o.ArchiveErr)
		case o.State == executor.StateSucceeded && o.Bundle != nil:
			fmt.Fprintf(a.outW, "  %-20s ok      %s (sha256 %s)\n", o.Package, o.Bundle.Path, o.Bundle.Digest[:12])
		case o.State == executor.StateSucceeded:
			fmt.Fprintf(a.outW, "  %-20s ok      (intermediate)\n", o.Package)
		case o.State == executor.StateSkipped:
			fmt.Fprintf(a.outW, "  %-20s skipped %v\n", o.Package, o.Err)
		default:
			fmt.Fprintf(a.outW, "  %-20s %s  %v\n", o.Package, o.State, o.Err)
		}
	}
}

// manifestWorkDir is the directory build commands run in: the manifest's
// own directory, so relative source paths resolve naturally.
func manifestWorkDir(manifestPath string) string {
	if info, err := os.Stat(manifestPath); err == nil && info.IsDir() {
		return manifestPath
	}
	return filepath.Dir(manifestPath)
}
