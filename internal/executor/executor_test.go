package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/packforgego/internal/archive"
	"github.com/vk/packforgego/internal/assemble"
	"github.com/vk/packforgego/internal/buildcmd"
	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/graph"
)

// countingAssembler records which packages had their assembly action
// invoked, so tests can assert a failed composite never assembles.
type countingAssembler struct {
	inner Assembler

	mu    sync.Mutex
	calls map[string]int
}

func newCountingAssembler() *countingAssembler {
	return &countingAssembler{inner: assemble.New(nil), calls: map[string]int{}}
}

func (c *countingAssembler) Assemble(ctx context.Context, spec *config.PackageSpec, partTrees map[string]string, destDir string) error {
	c.mu.Lock()
	c.calls[spec.Name]++
	c.mu.Unlock()
	return c.inner.Assemble(ctx, spec, partTrees, destDir)
}

func (c *countingAssembler) EmitService(treeRoot string, svc *config.ServiceManifest) error {
	return c.inner.EmitService(treeRoot, svc)
}

func (c *countingAssembler) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

// countingBuilder wraps the real build executor and counts invocations
// per package, proving at-most-once dispatch.
type countingBuilder struct {
	inner Builder

	mu    sync.Mutex
	calls map[string]int
}

func newCountingBuilder() *countingBuilder {
	return &countingBuilder{inner: &buildcmd.Executor{}, calls: map[string]int{}}
}

func (c *countingBuilder) Build(ctx context.Context, pkgName string, src *config.LocalSource, outputDir string) error {
	c.mu.Lock()
	c.calls[pkgName]++
	c.mu.Unlock()
	return c.inner.Build(ctx, pkgName, src, outputDir)
}

type stubFetcher struct {
	err error
}

func (s *stubFetcher) Fetch(ctx context.Context, pkgName string, src *config.PrebuiltSource, destDir string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(destDir, pkgName+".bin")
	return path, os.WriteFile(path, []byte("artifact"), 0o644)
}

func localPkg(name string) *config.PackageSpec {
	return &config.PackageSpec{
		Name: name,
		Source: &config.LocalSource{
			BuildCommand: fmt.Sprintf(`echo %s > "$PACKFORGE_OUTPUT/out-%s"`, name, name),
			SourcePaths:  []string{"src"},
		},
	}
}

func brokenPkg(name string) *config.PackageSpec {
	return &config.PackageSpec{
		Name:   name,
		Source: &config.LocalSource{BuildCommand: "exit 1", SourcePaths: []string{"src"}},
	}
}

func compositePkg(name string, parts ...string) *config.PackageSpec {
	return &config.PackageSpec{Name: name, Source: &config.CompositeSource{Parts: parts}}
}

type harness struct {
	exec      *Executor
	assembler *countingAssembler
	builder   *countingBuilder
	outDir    string
}

func newHarness(t *testing.T, targets []string, specs ...*config.PackageSpec) *harness {
	t.Helper()

	model := &config.Model{Packages: specs}
	require.NoError(t, config.Validate(model))
	g, err := graph.Build(model)
	require.NoError(t, err)

	h := &harness{
		assembler: newCountingAssembler(),
		builder:   newCountingBuilder(),
		outDir:    t.TempDir(),
	}
	h.exec = New(model, g, Deps{
		Fetcher:   &stubFetcher{},
		Builder:   h.builder,
		Assembler: h.assembler,
		Archiver:  archive.New(h.outDir),
	}, Options{
		Workers:     4,
		StagingRoot: t.TempDir(),
		Targets:     targets,
	})
	return h
}

func TestRun_BuildsAndArchivesAll(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, localPkg("a"), localPkg("b"), compositePkg("c", "a", "b"))
	report, err := h.exec.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	for _, o := range report.Outcomes {
		assert.Equal(t, StateSucceeded, o.State, o.Package)
		require.NotNil(t, o.Bundle, o.Package)
		assert.FileExists(t, o.Bundle.Path)
	}

	assert.FileExists(t, filepath.Join(h.outDir, "a.tar.gz"))
	assert.FileExists(t, filepath.Join(h.outDir, "b.tar.gz"))
	assert.FileExists(t, filepath.Join(h.outDir, "c.tar.gz"))
	assert.Equal(t, 1, h.assembler.count("c"))
}

func TestRun_CompositeTreeContainsPartsUnderDistinctSubpaths(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	model := &config.Model{Packages: []*config.PackageSpec{
		localPkg("a"), localPkg("b"), compositePkg("c", "a", "b"),
	}}
	require.NoError(t, config.Validate(model))
	g, err := graph.Build(model)
	require.NoError(t, err)

	exec := New(model, g, Deps{
		Fetcher:   &stubFetcher{},
		Builder:   newCountingBuilder(),
		Assembler: assemble.New(nil),
		Archiver:  archive.New(t.TempDir()),
	}, Options{Workers: 2, StagingRoot: staging})

	_, err = exec.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(staging, "c", "a", "out-a"))
	assert.FileExists(t, filepath.Join(staging, "c", "b", "out-b"))
}

func TestRun_FailedPartSkipsCompositeWithoutAssembling(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil,
		brokenPkg("bad"),
		localPkg("good"),
		compositePkg("combined", "bad", "good"),
	)
	report, err := h.exec.Run(context.Background())
	require.Error(t, err)

	bad, _ := report.Outcome("bad")
	require.NotNil(t, bad)
	assert.Equal(t, StateFailed, bad.State)
	var cmdErr *buildcmd.CommandError
	assert.ErrorAs(t, bad.Err, &cmdErr)

	combined, _ := report.Outcome("combined")
	require.NotNil(t, combined)
	assert.Equal(t, StateSkipped, combined.State)
	var depErr *DependencyError
	require.ErrorAs(t, combined.Err, &depErr)
	assert.Equal(t, "bad", depErr.Dependency)
	assert.Equal(t, 0, h.assembler.count("combined"), "assembler must never run for a skipped composite")

	// The unrelated sibling still completed and archived.
	good, _ := report.Outcome("good")
	require.NotNil(t, good)
	assert.Equal(t, StateSucceeded, good.State)
	assert.FileExists(t, filepath.Join(h.outDir, "good.tar.gz"))

	// No archive may exist for the failed subgraph.
	assert.NoFileExists(t, filepath.Join(h.outDir, "bad.tar.gz"))
	assert.NoFileExists(t, filepath.Join(h.outDir, "combined.tar.gz"))
}

func TestRun_FetchFailureIsolatedToItsSubgraph(t *testing.T) {
	t.Parallel()

	model := &config.Model{Packages: []*config.PackageSpec{
		{Name: "remote", Source: &config.PrebuiltSource{URL: "https://example.com/r", SHA256: "00"}},
		compositePkg("uses-remote", "remote"),
		localPkg("standalone"),
	}}
	require.NoError(t, config.Validate(model))
	g, err := graph.Build(model)
	require.NoError(t, err)

	outDir := t.TempDir()
	exec := New(model, g, Deps{
		Fetcher:   &stubFetcher{err: fmt.Errorf("checksum mismatch")},
		Builder:   &buildcmd.Executor{},
		Assembler: assemble.New(nil),
		Archiver:  archive.New(outDir),
	}, Options{Workers: 4, StagingRoot: t.TempDir()})

	report, err := exec.Run(context.Background())
	require.Error(t, err)

	remote, _ := report.Outcome("remote")
	assert.Equal(t, StateFailed, remote.State)
	uses, _ := report.Outcome("uses-remote")
	assert.Equal(t, StateSkipped, uses.State)
	standalone, _ := report.Outcome("standalone")
	assert.Equal(t, StateSucceeded, standalone.State)
	assert.FileExists(t, filepath.Join(outDir, "standalone.tar.gz"))
	assert.NoFileExists(t, filepath.Join(outDir, "remote.tar.gz"))
}

func TestRun_DiamondBuildsEachPackageOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil,
		localPkg("base"),
		compositePkg("left", "base"),
		compositePkg("right", "base"),
		compositePkg("top", "left", "right"),
	)
	report, err := h.exec.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, 1, h.builder.calls["base"], "at most one execution per package per run")
}

func TestRun_TargetSubsetOnlyArchivesRequested(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"c"}, localPkg("a"), localPkg("b"), compositePkg("c", "a", "b"), localPkg("unrelated"))
	report, err := h.exec.Run(context.Background())
	require.NoError(t, err)

	// Only the closure of "c" is scheduled; "unrelated" is untouched.
	require.Len(t, report.Outcomes, 3)
	_, scheduled := report.Outcome("unrelated")
	assert.False(t, scheduled)

	assert.FileExists(t, filepath.Join(h.outDir, "c.tar.gz"))
	assert.NoFileExists(t, filepath.Join(h.outDir, "a.tar.gz"))
	assert.NoFileExists(t, filepath.Join(h.outDir, "b.tar.gz"))
}

func TestRun_UnknownTargetFailsBeforeAnyWork(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"ghost"}, localPkg("a"))
	report, err := h.exec.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 0, h.builder.calls["a"])
}

func TestRun_ReportErrNamesFailedPackages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, brokenPkg("x"), compositePkg("y", "x"))
	report, err := h.exec.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
	assert.Contains(t, err.Error(), "y")
	assert.Len(t, report.Failed(), 2)
}

func TestRun_CanceledContextSkipsPendingWork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, nil, localPkg("a"), compositePkg("b", "a"))
	report, err := h.exec.Run(ctx)
	require.Error(t, err)
	for _, o := range report.Outcomes {
		assert.Equal(t, StateSkipped, o.State, o.Package)
	}
}
