package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
)

// Error is a terminal artifact download failure: a client error, an
// exhausted retry budget or a malformed source declaration.
type Error struct {
	URL        string
	StatusCode int // 0 when the failure was not an HTTP status
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// VerificationError reports downloaded bytes that hash to something other
// than the manifest's declared digest. It is never retried: the remote
// content itself is wrong.
type VerificationError struct {
	URL  string
	Want string
	Got  string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("artifact %s failed verification: want sha256 %s, got %s", e.URL, e.Want, e.Got)
}

// Options tune the retry and timeout behavior of a Fetcher. Zero values
// fall back to the defaults applied by New.
type Options struct {
	// MaxAttempts is the total number of tries per artifact, including the
	// first one.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds a single download attempt.
	Timeout time.Duration
	Client  *http.Client
}

// Fetcher retrieves prebuilt artifacts into staging directories.
type Fetcher struct {
	opts   Options
	client *http.Client
}

// New creates a Fetcher with defaults filled in for unset options.
func New(opts Options) *Fetcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 15 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{opts: opts, client: client}
}

// Fetch downloads the artifact declared by src into destDir and returns
// the path of the staged file. destDir must already exist and be owned
// exclusively by the caller.
func (f *Fetcher) Fetch(ctx context.Context, pkgName string, src *config.PrebuiltSource, destDir string) (string, error) {
	logger := ctxlog.FromContext(ctx).With("package", pkgName, "url", src.URL)

	if src.URL == "" {
		return "", &Error{URL: src.URL, Err: fmt.Errorf("prebuilt source has no URL")}
	}
	finalPath := filepath.Join(destDir, artifactFileName(pkgName, src))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.opts.InitialBackoff
	bo.MaxInterval = f.opts.MaxBackoff
	bo.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		logger.Debug("Downloading artifact.", "attempt", attempt)
		err := f.attempt(ctx, src, finalPath)
		if err != nil {
			logger.Warn("Artifact download attempt failed.", "attempt", attempt, "error", err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(f.opts.MaxAttempts-1)), ctx))
	if err != nil {
		return "", err
	}

	logger.Debug("Artifact staged.", "path", finalPath)
	return finalPath, nil
}

// attempt performs one download try. Terminal failures are wrapped with
// backoff.Permanent so the retry loop stops immediately.
func (f *Fetcher) attempt(ctx context.Context, src *config.PrebuiltSource, finalPath string) (err error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return backoff.Permanent(&Error{URL: src.URL, Err: err})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Connection resets and timeouts are the transient case.
		return &Error{URL: src.URL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// proceed
	case resp.StatusCode >= 500:
		return &Error{URL: src.URL, StatusCode: resp.StatusCode}
	default:
		return backoff.Permanent(&Error{URL: src.URL, StatusCode: resp.StatusCode})
	}

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".fetch-*")
	if err != nil {
		return backoff.Permanent(&Error{URL: src.URL, Err: err})
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	hash := sha256.New()
	if _, err = io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		return &Error{URL: src.URL, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &Error{URL: src.URL, Err: err}
	}

	if src.SHA256 != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if got != src.SHA256 {
			err = backoff.Permanent(&VerificationError{URL: src.URL, Want: src.SHA256, Got: got})
			return err
		}
	}

	// Fully verified; make it visible in one step.
	if err = os.Rename(tmp.Name(), finalPath); err != nil {
		return &Error{URL: src.URL, Err: err}
	}
	return nil
}

// artifactFileName derives the staged file name from the URL path,
// falling back to the package name for opaque URLs.
func artifactFileName(pkgName string, src *config.PrebuiltSource) string {
	if u, err := url.Parse(src.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return pkgName
}
