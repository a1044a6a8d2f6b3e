// Package schema holds the raw HCL block structures of a package
// manifest, before translation into the format-agnostic config model.
package schema

import "github.com/hashicorp/hcl/v2"

// Manifest is the top-level structure of a manifest file: a sequence of
// package blocks.
type Manifest struct {
	Packages []*Package `hcl:"package,block"`
}

// Package is a single `package "name" { ... }` block. Exactly one of the
// Local, Prebuilt or Composite source blocks must be present; the loader
// enforces this during translation.
type Package struct {
	Name      string     `hcl:"name,label"`
	Local     *Local     `hcl:"local,block"`
	Prebuilt  *Prebuilt  `hcl:"prebuilt,block"`
	Composite *Composite `hcl:"composite,block"`
	Output    string     `hcl:"output,optional"`
	Service   *Service   `hcl:"service,block"`
}

// Local is a `local { ... }` source block: the package is produced by
// running a build command over declared source paths.
type Local struct {
	BuildCommand string   `hcl:"build_command"`
	SourcePaths  []string `hcl:"source_paths"`
}

// Prebuilt is a `prebuilt { ... }` source block: the package content is
// downloaded as a ready-made artifact.
type Prebuilt struct {
	URL     string `hcl:"url,optional"`
	SHA256  string `hcl:"sha256,optional"`
	Version string `hcl:"version,optional"`
}

// Composite is a `composite { ... }` source block: the package is
// assembled from the outputs of other packages.
type Composite struct {
	Parts   []string `hcl:"parts"`
	Flatten bool     `hcl:"flatten,optional"`
}

// Service is a `service { ... }` block describing the service-lifecycle
// descriptor to embed in the package's output tree. Properties stays an
// expression so the loader can convert arbitrary primitive-typed maps.
type Service struct {
	Name       string         `hcl:"name"`
	Executable string         `hcl:"executable"`
	Properties hcl.Expression `hcl:"properties,optional"`
}
