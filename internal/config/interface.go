package config

import "context"

// Loader is the interface for a format-specific manifest loader.
type Loader interface {
	// Load reads a manifest from the given path (a single file or a
	// directory of manifest files), translates it into the format-agnostic
	// model and validates it. The returned model is safe for concurrent
	// read access.
	Load(ctx context.Context, path string) (*Model, error)
}
