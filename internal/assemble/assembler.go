// Package assemble merges the output trees of a composite package's
// parts into a single tree and embeds the package's service-lifecycle
// descriptor when one is declared.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
	"github.com/vk/packforgego/internal/fsutil"
)

// zoneRootDir is the prefix zone-kind composites nest their parts under.
const zoneRootDir = "root"

// MissingPartError means assembly was invoked before one of the parts
// reached a terminal successful state. Correct scheduling makes this
// structurally impossible, so it indicates an orchestrator bug rather
// than a user-facing condition.
type MissingPartError struct {
	Package string
	Part    string
}

func (e *MissingPartError) Error() string {
	return fmt.Sprintf("internal error: assembling %q before part %q was resolved", e.Package, e.Part)
}

// Assembler builds composite output trees.
type Assembler struct {
	emitter Emitter
}

// New creates an Assembler. A nil emitter selects the default TOML
// descriptor emitter.
func New(emitter Emitter) *Assembler {
	if emitter == nil {
		emitter = &TOMLEmitter{}
	}
	return &Assembler{emitter: emitter}
}

// Assemble merges the trees of spec's parts into destDir. partTrees maps
// each part name to its completed output tree root; the trees are only
// read, never mutated. Layout: zone output nests each part under
// "root/<part>", tarball output under "<part>", and flatten merges all
// trees directly into destDir, failing on path collisions.
func (a *Assembler) Assemble(ctx context.Context, spec *config.PackageSpec, partTrees map[string]string, destDir string) error {
	logger := ctxlog.FromContext(ctx).With("package", spec.Name)

	src, ok := spec.Source.(*config.CompositeSource)
	if !ok {
		return fmt.Errorf("internal error: assembling non-composite package %q", spec.Name)
	}

	for _, part := range src.Parts {
		root, ok := partTrees[part]
		if !ok {
			return &MissingPartError{Package: spec.Name, Part: part}
		}

		target := destDir
		switch {
		case src.Flatten:
			// merged at the root
		case spec.Output == config.OutputZone:
			target = filepath.Join(destDir, zoneRootDir, part)
		default:
			target = filepath.Join(destDir, part)
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("assembling %q: %w", spec.Name, err)
		}

		logger.Debug("Merging part tree.", "part", part, "target", target)
		if err := fsutil.CopyTree(target, root); err != nil {
			return fmt.Errorf("assembling %q from part %q: %w", spec.Name, part, err)
		}
	}

	if spec.Service != nil {
		if err := a.EmitService(destDir, spec.Service); err != nil {
			return fmt.Errorf("assembling %q: %w", spec.Name, err)
		}
		logger.Debug("Service descriptor embedded.", "service", spec.Service.Name)
	}
	return nil
}

// EmitService writes the service-lifecycle descriptor for svc into the
// given output tree. It is also used directly for non-composite packages
// that declare a service block.
func (a *Assembler) EmitService(treeRoot string, svc *config.ServiceManifest) error {
	return a.emitter.Emit(treeRoot, svc)
}
