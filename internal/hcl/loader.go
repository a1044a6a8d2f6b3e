package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
	"github.com/vk/packforgego/internal/fsutil"
	"github.com/vk/packforgego/internal/schema"
)

// Loader reads package manifests written in HCL.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates an HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load implements config.Loader. The path may be a single .hcl file or a
// directory, in which case every .hcl file beneath it is merged into one
// manifest. Declaration order follows lexical file order, then block order
// within each file.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest path: %w", err)
	}

	var paths []string
	if info.IsDir() {
		paths, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("scanning manifest directory: %w", err)
		}
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no manifest files found under %s", path)
	}
	logger.Debug("Parsing manifest files.", "count", len(paths))

	files := make([]*hcl.File, 0, len(paths))
	for _, p := range paths {
		file, diags := l.parser.ParseHCLFile(p)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", p, diags)
		}
		files = append(files, file)
	}

	var raw schema.Manifest
	if diags := gohcl.DecodeBody(hcl.MergeFiles(files), nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest: %w", diags)
	}
	logger.Debug("Manifest decoded.", "packages", len(raw.Packages))

	model, err := l.translate(&raw)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(model); err != nil {
		return nil, err
	}
	logger.Debug("Manifest translated and validated.")
	return model, nil
}
