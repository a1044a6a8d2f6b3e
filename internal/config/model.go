package config

// OutputKind selects the on-disk layout a package's output tree is
// assembled into before archiving.
type OutputKind int

const (
	// OutputTarball lays composite parts out side by side at the tree root.
	OutputTarball OutputKind = iota
	// OutputZone nests composite parts under a "root/" prefix, matching the
	// layout an installed zone image expects.
	OutputZone
)

// String returns the manifest spelling of the output kind.
func (k OutputKind) String() string {
	if k == OutputZone {
		return "zone"
	}
	return "tarball"
}

// Source describes how a package's output tree is produced. Exactly one
// concrete implementation is attached to every PackageSpec.
type Source interface {
	sourceKind() string
}

// LocalSource builds the package by running an opaque build command
// against a set of declared source paths.
type LocalSource struct {
	// BuildCommand is a shell program executed by the build executor. It
	// receives the destination tree via the PACKFORGE_OUTPUT environment
	// variable and must populate it before exiting zero.
	BuildCommand string
	// SourcePaths are the inputs the build command consumes, relative to
	// the manifest directory. Must be non-empty.
	SourcePaths []string
}

func (*LocalSource) sourceKind() string { return "local" }

// PrebuiltSource fetches the package content as a ready-made artifact
// from a remote endpoint.
type PrebuiltSource struct {
	URL string
	// SHA256 is the hex digest the downloaded bytes must hash to. When
	// empty, verification is skipped.
	SHA256  string
	Version string
}

func (*PrebuiltSource) sourceKind() string { return "prebuilt" }

// CompositeSource assembles the package from the output trees of other
// packages declared in the same manifest.
type CompositeSource struct {
	// Parts are the names of the sub-packages, in declared order.
	Parts []string
	// Flatten merges the part trees directly into the output root instead
	// of namespacing each part under its own subdirectory.
	Flatten bool
}

func (*CompositeSource) sourceKind() string { return "composite" }

// ServiceManifest carries the data needed to emit a service-lifecycle
// descriptor into a package's output tree.
type ServiceManifest struct {
	Name       string
	Executable string
	Properties map[string]string
}

// PackageSpec is one named package as declared in the manifest. It is
// immutable once the model has been validated.
type PackageSpec struct {
	Name    string
	Source  Source
	Output  OutputKind
	Service *ServiceManifest
}

// Model is the validated, format-agnostic representation of an entire
// package manifest. Packages preserves manifest declaration order, which
// downstream consumers rely on for deterministic scheduling.
type Model struct {
	Packages []*PackageSpec

	byName map[string]*PackageSpec
}

// Get returns the package with the given name, if declared.
func (m *Model) Get(name string) (*PackageSpec, bool) {
	spec, ok := m.byName[name]
	return spec, ok
}

// Names returns all package names in manifest declaration order.
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.Packages))
	for _, spec := range m.Packages {
		names = append(names, spec.Name)
	}
	return names
}
