// Package cache keeps one local git working copy per (repository, ref) pair
// under a cache root and refreshes it on every use.
//
// A missing working copy is cloned; an existing one is fetched and moved to
// the ref. Clone failures are returned to the caller. Update failures are
// not: the stale copy is still usable, so the error is logged and reported on
// the Result instead.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/agentdeps/pkg/logger"
	"github.com/jingkaihe/agentdeps/pkg/telemetry"
	"github.com/jingkaihe/agentdeps/pkg/vcs"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFetchAttempts is how many times a fetch is tried before the update is given up
	DefaultFetchAttempts = 2
	// DefaultRetryDelay is the initial delay between fetch attempts
	DefaultRetryDelay = 500 * time.Millisecond

	originRemote = "origin"
)

// Result describes a usable working copy
type Result struct {
	// Path is the working copy directory
	Path string
	// Cloned is true when this call created the working copy
	Cloned bool
	// UpdateErr is set when refreshing an existing copy failed; Path then
	// points at the stale copy
	UpdateErr error
}

// CloneError is returned when no working copy could be created
type CloneError struct {
	Remote string
	Ref    string
	Err    error
}

func (e *CloneError) Error() string {
	return "failed to clone " + e.Remote + " at " + e.Ref + ": " + e.Err.Error()
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// Option configures a RepoCache
type Option func(*RepoCache)

// WithFetchAttempts sets how many times a fetch is tried
func WithFetchAttempts(attempts uint) Option {
	return func(c *RepoCache) {
		if attempts > 0 {
			c.fetchAttempts = attempts
		}
	}
}

// WithRetryDelay sets the initial delay between fetch attempts
func WithRetryDelay(delay time.Duration) Option {
	return func(c *RepoCache) {
		c.retryDelay = delay
	}
}

// RepoCache maps cache keys to working copies beneath a root directory
type RepoCache struct {
	root          string
	git           vcs.Adapter
	fetchAttempts uint
	retryDelay    time.Duration

	inflight singleflight.Group
	mu       sync.Mutex
	flights  map[string]*flight
}

// flight is the context shared by every caller waiting on one key. It is
// cancelled once the last waiter gives up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates a RepoCache rooted at root
func New(root string, git vcs.Adapter, opts ...Option) *RepoCache {
	c := &RepoCache{
		root:          root,
		git:           git,
		flights:       make(map[string]*flight),
		fetchAttempts: DefaultFetchAttempts,
		retryDelay:    DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the cache root directory
func (c *RepoCache) Root() string {
	return c.root
}

// PathFor returns the working copy location for key
func (c *RepoCache) PathFor(key string) string {
	return filepath.Join(c.root, key)
}

// Ensure makes sure a working copy of remote at ref exists for key and is as
// fresh as the remote allows. Concurrent calls for the same key share a
// single clone or update. A caller whose ctx ends stops waiting with
// ctx.Err(); the shared work is only cancelled when every caller has left.
func (c *RepoCache) Ensure(ctx context.Context, remote, ref, key string) (*Result, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	f := c.join(ctx, key)
	defer c.leave(key, f)

	for {
		ch := c.inflight.DoChan(key, func() (interface{}, error) {
			return c.ensure(f.ctx, remote, ref, key)
		})
		select {
		case r := <-ch:
			// joined a flight abandoned by all of its earlier callers
			if errors.Is(r.Err, context.Canceled) && ctx.Err() == nil && f.ctx.Err() == nil {
				continue
			}
			if r.Err != nil {
				return nil, r.Err
			}
			return r.Val.(*Result), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// join registers the caller as a waiter on key. The shared context keeps the
// first caller's values but not its cancellation.
func (c *RepoCache) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

func (c *RepoCache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

func (c *RepoCache) ensure(ctx context.Context, remote, ref, key string) (res *Result, err error) {
	ctx, span := telemetry.Tracer("agentdeps.cache").Start(ctx, "cache.ensure",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.String("repo.ref", ref),
		))
	defer func() { telemetry.EndSpan(span, err) }()

	path := c.PathFor(key)

	isRepo, err := isWorkingCopy(path)
	if err != nil {
		return nil, err
	}
	if isRepo {
		updateErr := c.update(ctx, path, ref)
		span.SetAttributes(attribute.Bool("cache.stale", updateErr != nil))
		return &Result{Path: path, UpdateErr: updateErr}, nil
	}

	if err := c.clone(ctx, remote, ref, path); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cache.cloned", true))
	return &Result{Path: path, Cloned: true}, nil
}

func (c *RepoCache) clone(ctx context.Context, remote, ref, path string) error {
	log := logger.C(ctx, "cache.clone").WithField("repo", remote).WithField("ref", ref)

	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "failed to clear %s", path)
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create cache directory %s", c.root)
	}

	shallow := vcs.CloneOptions{Branch: ref, Depth: 1, SingleBranch: true}
	shallowErr := c.git.Clone(ctx, remote, path, shallow)
	if shallowErr == nil {
		return nil
	}
	log.WithError(shallowErr).Debug("shallow clone failed, falling back to full clone")

	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "failed to clear %s", path)
	}

	err := c.git.Clone(ctx, remote, path, vcs.CloneOptions{})
	if err == nil {
		err = c.git.Checkout(ctx, path, ref)
	}
	if err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			log.WithError(rmErr).Warn("failed to remove partial clone")
		}
		log.WithError(err).Error("failed to clone repository")
		return &CloneError{Remote: remote, Ref: ref, Err: err}
	}
	return nil
}

// update refreshes the working copy at path; a returned error means the copy
// is stale but intact
func (c *RepoCache) update(ctx context.Context, path, ref string) error {
	log := logger.C(ctx, "cache.update").WithField("path", path).WithField("ref", ref)

	err := retry.Do(
		func() error {
			return c.git.Fetch(ctx, path, originRemote)
		},
		retry.Attempts(c.fetchAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Debug("fetch failed, retrying")
		}),
	)
	if err != nil {
		err = errors.Wrap(err, "failed to fetch origin")
		log.WithError(err).Warn("using stale cached copy")
		return err
	}

	resetErr := c.git.ResetHard(ctx, path, originRemote+"/"+ref)
	if resetErr == nil {
		return nil
	}
	log.WithError(resetErr).Debug("hard reset failed, falling back to checkout")

	if err := c.git.Checkout(ctx, path, ref); err != nil {
		err = errors.Wrapf(err, "failed to check out %s", ref)
		log.WithError(err).Warn("using stale cached copy")
		return err
	}
	return nil
}

// isWorkingCopy reports whether path holds a git working copy
func isWorkingCopy(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to inspect %s", path)
	}
	if !info.IsDir() {
		return false, nil
	}

	_, err = os.Stat(filepath.Join(path, ".git"))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to inspect %s", path)
	}
	return true, nil
}
