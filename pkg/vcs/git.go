// Package vcs runs the version control subprocesses the repository cache
// depends on. Every operation reports success through a nil error; a failing
// command yields a *CommandError carrying the exit status and stderr text.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jingkaihe/agentdeps/pkg/osutil"
	"github.com/pkg/errors"
)

// CloneOptions narrows what a clone fetches
type CloneOptions struct {
	// Branch clones and checks out the named branch or tag
	Branch string
	// Depth creates a shallow clone with the given history depth when > 0
	Depth int
	// SingleBranch only fetches the history of Branch
	SingleBranch bool
}

// Adapter is the set of version control operations the repository cache uses
type Adapter interface {
	Clone(ctx context.Context, url, dest string, opts CloneOptions) error
	Fetch(ctx context.Context, dir, remote string) error
	Checkout(ctx context.Context, dir, ref string) error
	ResetHard(ctx context.Context, dir, ref string) error
	Version(ctx context.Context) (string, error)
}

// CommandError describes a git invocation that exited unsuccessfully
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "git %s", strings.Join(e.Args, " "))
	switch {
	case e.TimedOut:
		b.WriteString(" timed out")
	case e.ExitCode >= 0:
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	default:
		fmt.Fprintf(&b, " failed: %v", e.Err)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Git implements Adapter by shelling out to the git binary
type Git struct {
	binary  string
	timeout time.Duration
	env     []string
}

// Option configures a Git adapter
type Option func(*Git)

// WithBinary overrides the git executable (default "git" from PATH)
func WithBinary(binary string) Option {
	return func(g *Git) {
		g.binary = binary
	}
}

// WithTimeout bounds every git invocation; zero disables the bound
func WithTimeout(timeout time.Duration) Option {
	return func(g *Git) {
		g.timeout = timeout
	}
}

// WithEnv appends extra environment variables to every invocation
func WithEnv(env ...string) Option {
	return func(g *Git) {
		g.env = append(g.env, env...)
	}
}

// NewGit creates a git adapter
func NewGit(opts ...Option) *Git {
	g := &Git{binary: "git"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Clone clones url into dest
func (g *Git) Clone(ctx context.Context, url, dest string, opts CloneOptions) error {
	args := []string{"clone", "--quiet"}
	if opts.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(opts.Depth))
	}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	if opts.SingleBranch {
		args = append(args, "--single-branch")
	}
	args = append(args, "--", url, dest)

	_, err := g.run(ctx, args...)
	return err
}

// Fetch fetches from the named remote of the working copy at dir
func (g *Git) Fetch(ctx context.Context, dir, remote string) error {
	_, err := g.run(ctx, "-C", dir, "fetch", "--quiet", "--tags", remote)
	return err
}

// Checkout checks out ref, discarding local modifications
func (g *Git) Checkout(ctx context.Context, dir, ref string) error {
	_, err := g.run(ctx, "-C", dir, "checkout", "--quiet", "--force", ref)
	return err
}

// ResetHard moves the current branch and working tree to ref
func (g *Git) ResetHard(ctx context.Context, dir, ref string) error {
	_, err := g.run(ctx, "-C", dir, "reset", "--quiet", "--hard", ref)
	return err
}

// Version returns the output of git --version
func (g *Git) Version(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return out, nil
}

// run executes git with args and returns trimmed stdout
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, g.env...)
	osutil.SetProcessGroup(cmd)
	osutil.SetProcessGroupKill(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cmdErr := &CommandError{
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return "", cmdErr
	}

	return strings.TrimSpace(stdout.String()), nil
}
