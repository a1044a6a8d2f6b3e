package assemble

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/vk/packforgego/internal/config"
)

// DefaultDescriptorName is the file name the default emitter writes at
// the root of a package's output tree.
const DefaultDescriptorName = "service.toml"

// Emitter writes a service-lifecycle descriptor into an output tree. The
// on-disk schema is a contract with an external service manager, so it is
// pluggable rather than fixed.
type Emitter interface {
	Emit(treeRoot string, svc *config.ServiceManifest) error
}

// TOMLEmitter is the default Emitter: a TOML descriptor with the service
// identity and its properties. Map keys marshal in sorted order, keeping
// the emitted bytes reproducible.
type TOMLEmitter struct {
	// Filename overrides DefaultDescriptorName when non-empty.
	Filename string
}

type tomlDescriptor struct {
	Service struct {
		Name       string `toml:"name"`
		Executable string `toml:"executable"`
	} `toml:"service"`
	Properties map[string]string `toml:"properties,omitempty"`
}

// Emit implements Emitter.
func (e *TOMLEmitter) Emit(treeRoot string, svc *config.ServiceManifest) error {
	var desc tomlDescriptor
	desc.Service.Name = svc.Name
	desc.Service.Executable = svc.Executable
	desc.Properties = svc.Properties

	data, err := toml.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encoding service descriptor for %q: %w", svc.Name, err)
	}

	name := e.Filename
	if name == "" {
		name = DefaultDescriptorName
	}
	path := filepath.Join(treeRoot, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing service descriptor for %q: %w", svc.Name, err)
	}
	return nil
}
