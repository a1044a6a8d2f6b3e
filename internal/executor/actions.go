package executor

import (
	"context"

	"github.com/vk/packforgego/internal/archive"
	"github.com/vk/packforgego/internal/config"
)

// Fetcher retrieves a prebuilt artifact into a staging directory.
// Satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, pkgName string, src *config.PrebuiltSource, destDir string) (string, error)
}

// Builder runs a local source's build command against a staging
// directory. Satisfied by *buildcmd.Executor.
type Builder interface {
	Build(ctx context.Context, pkgName string, src *config.LocalSource, outputDir string) error
}

// Assembler merges composite part trees and embeds service descriptors.
// Satisfied by *assemble.Assembler.
type Assembler interface {
	Assemble(ctx context.Context, spec *config.PackageSpec, partTrees map[string]string, destDir string) error
	EmitService(treeRoot string, svc *config.ServiceManifest) error
}

// Archiver bundles a completed output tree. Satisfied by
// *archive.Archiver.
type Archiver interface {
	Archive(ctx context.Context, spec *config.PackageSpec, treeRoot string) (*archive.Bundle, error)
}

// Deps bundles the collaborators a run dispatches to. Splitting them
// behind small interfaces keeps the scheduling logic testable without
// touching the network or running real builds.
type Deps struct {
	Fetcher   Fetcher
	Builder   Builder
	Assembler Assembler
	Archiver  Archiver
}
