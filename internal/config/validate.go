package config

import (
	"fmt"
	"strings"
)

// InvalidManifestError reports every structural problem found in a
// manifest at once, so a user can fix multiple issues per invocation.
type InvalidManifestError struct {
	Problems []string
}

func (e *InvalidManifestError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid manifest: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid manifest (%d problems):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// Validate checks the structural invariants of a freshly translated model
// and indexes its packages by name. It must be called exactly once, by the
// loader, before the model is handed to any other component.
func Validate(m *Model) error {
	var problems []string

	m.byName = make(map[string]*PackageSpec, len(m.Packages))
	for _, spec := range m.Packages {
		if spec.Name == "" {
			problems = append(problems, "package with empty name")
			continue
		}
		if _, dup := m.byName[spec.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate package name %q", spec.Name))
			continue
		}
		m.byName[spec.Name] = spec
	}

	for _, spec := range m.Packages {
		switch src := spec.Source.(type) {
		case *LocalSource:
			if len(src.SourcePaths) == 0 {
				problems = append(problems, fmt.Sprintf("package %q: local source declares no source paths", spec.Name))
			}
			if src.BuildCommand == "" {
				problems = append(problems, fmt.Sprintf("package %q: local source declares no build command", spec.Name))
			}
		case *PrebuiltSource:
			if src.URL == "" && src.SHA256 == "" {
				problems = append(problems, fmt.Sprintf("package %q: prebuilt source lacks both a URL and a checksum", spec.Name))
			}
		case *CompositeSource:
			if len(src.Parts) == 0 {
				problems = append(problems, fmt.Sprintf("package %q: composite source declares no parts", spec.Name))
			}
			for _, part := range src.Parts {
				if part == spec.Name {
					problems = append(problems, fmt.Sprintf("package %q: composite references itself", spec.Name))
					continue
				}
				if _, ok := m.byName[part]; !ok {
					problems = append(problems, fmt.Sprintf("package %q: composite references unknown package %q", spec.Name, part))
				}
			}
		case nil:
			problems = append(problems, fmt.Sprintf("package %q: no source declared", spec.Name))
		default:
			problems = append(problems, fmt.Sprintf("package %q: unsupported source kind", spec.Name))
		}
	}

	if len(problems) > 0 {
		return &InvalidManifestError{Problems: problems}
	}
	return nil
}
