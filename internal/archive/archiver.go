// Package archive turns completed package output trees into deployable
// gzip tarballs. Archives are deterministic: entries are sorted by path
// and carry fixed ownership, permission and timestamp metadata, so two
// runs over identical inputs produce byte-identical bundles regardless
// of scheduling order.
package archive

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
)

// fixedModTime is stamped on every archive entry. Real modification
// times vary with scheduling and would break reproducibility.
var fixedModTime = time.Unix(0, 0).UTC()

// WriteError is a filesystem failure while producing an archive. It is
// terminal for that package's bundle but does not affect sibling
// packages already archived.
type WriteError struct {
	Package string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing archive for %q: %v", e.Package, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Bundle is the final deployable output for one package.
type Bundle struct {
	PackageName string
	Path        string
	// Digest is the sha256 of the archive bytes, hex encoded.
	Digest string
}

// Archiver writes bundles into a single output directory.
type Archiver struct {
	outputDir string
}

// New creates an Archiver emitting into outputDir.
func New(outputDir string) *Archiver {
	return &Archiver{outputDir: outputDir}
}

// Archive packages the tree rooted at treeRoot into the output directory
// under a name derived from the package (and version, when declared). An
// existing bundle with identical content is left untouched; differing
// content is atomically replaced.
func (a *Archiver) Archive(ctx context.Context, spec *config.PackageSpec, treeRoot string) (*Bundle, error) {
	logger := ctxlog.FromContext(ctx).With("package", spec.Name)

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return nil, &WriteError{Package: spec.Name, Err: err}
	}
	finalPath := filepath.Join(a.outputDir, BundleName(spec))

	entries, err := collectEntries(treeRoot)
	if err != nil {
		return nil, &WriteError{Package: spec.Name, Err: err}
	}

	tmp, err := os.CreateTemp(a.outputDir, ".archive-*")
	if err != nil {
		return nil, &WriteError{Package: spec.Name, Err: err}
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	if err := writeTarGz(io.MultiWriter(tmp, hash), treeRoot, entries); err != nil {
		tmp.Close()
		return nil, &WriteError{Package: spec.Name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return nil, &WriteError{Package: spec.Name, Err: err}
	}
	digest := hex.EncodeToString(hash.Sum(nil))

	// Re-running over identical inputs must not rewrite the bundle.
	if existing, err := fileDigest(finalPath); err == nil && existing == digest {
		logger.Debug("Existing archive is up to date.", "path", finalPath)
		return &Bundle{PackageName: spec.Name, Path: finalPath, Digest: digest}, nil
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, &WriteError{Package: spec.Name, Err: err}
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return nil, &WriteError{Package: spec.Name, Err: err}
	}
	logger.Debug("Archive written.", "path", finalPath, "entries", len(entries))
	return &Bundle{PackageName: spec.Name, Path: finalPath, Digest: digest}, nil
}

// BundleName returns the deterministic archive file name for a package.
func BundleName(spec *config.PackageSpec) string {
	if src, ok := spec.Source.(*config.PrebuiltSource); ok && src.Version != "" {
		return spec.Name + "-" + src.Version + ".tar.gz"
	}
	return spec.Name + ".tar.gz"
}

// collectEntries walks the tree and returns every entry path relative to
// the root, sorted, so the archive layout is independent of walk order.
func collectEntries(treeRoot string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(treeRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(treeRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

func writeTarGz(w io.Writer, treeRoot string, entries []string) (err error) {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gz)
	defer func() {
		if cErr := tw.Close(); cErr != nil && err == nil {
			err = cErr
		}
		if cErr := gz.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for _, rel := range entries {
		if err := writeEntry(tw, treeRoot, rel); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(tw *tar.Writer, treeRoot, rel string) error {
	full := filepath.Join(treeRoot, rel)
	info, err := os.Lstat(full)
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    filepath.ToSlash(rel),
		ModTime: fixedModTime,
		Uid:     0,
		Gid:     0,
	}
	switch {
	case info.IsDir():
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		hdr.Mode = 0o755
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(full)
		if err != nil {
			return err
		}
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = link
		hdr.Mode = 0o777
	default:
		hdr.Typeflag = tar.TypeReg
		hdr.Size = info.Size()
		// Permission metadata is normalized; only the exec bit survives.
		if info.Mode()&0o111 != 0 {
			hdr.Mode = 0o755
		} else {
			hdr.Mode = 0o644
		}
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if hdr.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// fileDigest hashes an existing file, reporting an error if absent.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
