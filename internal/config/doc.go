// Package config defines the format-agnostic model of a package manifest,
// along with the Loader interface for reading and translating manifests
// from concrete formats.
//
// The `config.Model` is the single source of truth for the `graph` and
// `executor` packages. Concrete loader implementations, such as for HCL,
// are provided in separate packages.
package config
