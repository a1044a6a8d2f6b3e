package hcl

import (
	"fmt"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/schema"
)

// translate converts the raw HCL manifest into the format-agnostic model.
// Problems that can only surface during translation (ambiguous source
// blocks, bad output kinds, untranslatable property maps) are collected
// and reported together, matching the behavior of config.Validate.
func (l *Loader) translate(raw *schema.Manifest) (*config.Model, error) {
	var problems []string
	model := &config.Model{Packages: make([]*config.PackageSpec, 0, len(raw.Packages))}

	for _, pkg := range raw.Packages {
		spec, errs := l.translatePackage(pkg)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		model.Packages = append(model.Packages, spec)
	}

	if len(problems) > 0 {
		return nil, &config.InvalidManifestError{Problems: problems}
	}
	return model, nil
}

func (l *Loader) translatePackage(pkg *schema.Package) (*config.PackageSpec, []string) {
	var problems []string

	var source config.Source
	declared := 0
	if pkg.Local != nil {
		declared++
		source = &config.LocalSource{
			BuildCommand: pkg.Local.BuildCommand,
			SourcePaths:  pkg.Local.SourcePaths,
		}
	}
	if pkg.Prebuilt != nil {
		declared++
		source = &config.PrebuiltSource{
			URL:     pkg.Prebuilt.URL,
			SHA256:  pkg.Prebuilt.SHA256,
			Version: pkg.Prebuilt.Version,
		}
	}
	if pkg.Composite != nil {
		declared++
		source = &config.CompositeSource{
			Parts:   pkg.Composite.Parts,
			Flatten: pkg.Composite.Flatten,
		}
	}
	switch declared {
	case 0:
		problems = append(problems, fmt.Sprintf("package %q: exactly one of local, prebuilt or composite is required", pkg.Name))
	case 1:
		// ok
	default:
		problems = append(problems, fmt.Sprintf("package %q: multiple source blocks declared", pkg.Name))
	}

	output, err := parseOutputKind(pkg.Output)
	if err != nil {
		problems = append(problems, fmt.Sprintf("package %q: %v", pkg.Name, err))
	}

	var service *config.ServiceManifest
	if pkg.Service != nil {
		props, err := propertiesFromExpression(pkg.Service.Properties)
		if err != nil {
			problems = append(problems, fmt.Sprintf("package %q: service properties: %v", pkg.Name, err))
		}
		service = &config.ServiceManifest{
			Name:       pkg.Service.Name,
			Executable: pkg.Service.Executable,
			Properties: props,
		}
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return &config.PackageSpec{
		Name:    pkg.Name,
		Source:  source,
		Output:  output,
		Service: service,
	}, nil
}

func parseOutputKind(s string) (config.OutputKind, error) {
	switch s {
	case "", "tarball":
		return config.OutputTarball, nil
	case "zone":
		return config.OutputZone, nil
	default:
		return config.OutputTarball, fmt.Errorf("unknown output kind %q (want \"tarball\" or \"zone\")", s)
	}
}
