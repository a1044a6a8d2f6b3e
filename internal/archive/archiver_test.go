package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/packforgego/internal/config"
)

func buildTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "tool"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf"), []byte("k=v\n"), 0o644))
	return dir
}

func localPkg(name string) *config.PackageSpec {
	return &config.PackageSpec{
		Name:   name,
		Source: &config.LocalSource{BuildCommand: "true", SourcePaths: []string{"src"}},
	}
}

func readEntries(t *testing.T, path string) map[string]*tar.Header {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	headers := map[string]*tar.Header{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		headers[hdr.Name] = hdr
	}
	return headers
}

func TestArchive_ContentsAndMetadata(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)
	bundle, err := New(t.TempDir()).Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)
	assert.Equal(t, "pkg", bundle.PackageName)
	assert.Len(t, bundle.Digest, 64)
	assert.Equal(t, "pkg.tar.gz", filepath.Base(bundle.Path))

	headers := readEntries(t, bundle.Path)
	require.Contains(t, headers, "bin/")
	require.Contains(t, headers, "bin/tool")
	require.Contains(t, headers, "conf")

	tool := headers["bin/tool"]
	assert.Equal(t, int64(0o755), tool.Mode)
	assert.Equal(t, time.Unix(0, 0).UTC(), tool.ModTime.UTC())
	assert.Zero(t, tool.Uid)
	assert.Zero(t, tool.Gid)
	assert.Equal(t, int64(0o644), headers["conf"].Mode)
}

func TestArchive_ByteIdenticalAcrossRuns(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)

	out1 := t.TempDir()
	out2 := t.TempDir()
	b1, err := New(out1).Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)
	b2, err := New(out2).Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)

	bytes1, err := os.ReadFile(b1.Path)
	require.NoError(t, err)
	bytes2, err := os.ReadFile(b2.Path)
	require.NoError(t, err)
	assert.Equal(t, bytes1, bytes2, "archives over identical inputs must be byte-identical")
	assert.Equal(t, b1.Digest, b2.Digest)
}

func TestArchive_ReRunKeepsIdenticalBundle(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)
	out := t.TempDir()
	a := New(out)

	b1, err := a.Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)
	info1, err := os.Stat(b1.Path)
	require.NoError(t, err)

	b2, err := a.Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)
	info2, err := os.Stat(b2.Path)
	require.NoError(t, err)

	assert.Equal(t, b1.Digest, b2.Digest)
	assert.Equal(t, info1.ModTime(), info2.ModTime(), "identical content must not be rewritten")

	leftovers, err := filepath.Glob(filepath.Join(out, ".archive-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestArchive_ChangedContentReplacesBundle(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)
	out := t.TempDir()
	a := New(out)

	b1, err := a.Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(tree, "conf"), []byte("k=other\n"), 0o644))
	b2, err := a.Archive(context.Background(), localPkg("pkg"), tree)
	require.NoError(t, err)

	assert.NotEqual(t, b1.Digest, b2.Digest)
	assert.Equal(t, b1.Path, b2.Path)
}

func TestBundleName_PrebuiltVersion(t *testing.T) {
	t.Parallel()

	spec := &config.PackageSpec{
		Name:   "agent",
		Source: &config.PrebuiltSource{URL: "https://example.com/a", SHA256: "00", Version: "1.2.3"},
	}
	assert.Equal(t, "agent-1.2.3.tar.gz", BundleName(spec))
	assert.Equal(t, "plain.tar.gz", BundleName(localPkg("plain")))
}
