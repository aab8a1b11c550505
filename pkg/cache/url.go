package cache

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// CloneMethod selects how shorthand repositories are expanded
type CloneMethod string

const (
	CloneMethodSSH   CloneMethod = "ssh"
	CloneMethodHTTPS CloneMethod = "https"
)

// IsShorthand reports whether repo is in the owner/repo form
func IsShorthand(repo string) bool {
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@") {
		return false
	}
	return strings.Count(repo, "/") == 1
}

// ResolveURL turns a repository reference into a cloneable URL. Shorthand
// references are expanded against GitHub; anything else is returned as-is.
func ResolveURL(repo string, method CloneMethod) string {
	if !IsShorthand(repo) {
		return repo
	}
	if method == CloneMethodHTTPS {
		return "https://github.com/" + repo + ".git"
	}
	return "git@github.com:" + repo + ".git"
}

// OwnerRepo extracts the owner/repo path from any supported reference form,
// without a trailing .git
func OwnerRepo(repo string) string {
	repo = strings.TrimSpace(repo)

	var ownerRepo string
	switch {
	case strings.HasPrefix(repo, "git@"):
		if idx := strings.Index(repo, ":"); idx >= 0 {
			ownerRepo = repo[idx+1:]
		} else {
			ownerRepo = repo
		}
	case strings.Contains(repo, "://"):
		u, err := url.Parse(repo)
		if err != nil {
			ownerRepo = repo
		} else {
			ownerRepo = strings.TrimPrefix(u.Path, "/")
		}
	default:
		ownerRepo = repo
	}

	ownerRepo = strings.TrimSuffix(ownerRepo, "/")
	return strings.TrimSuffix(ownerRepo, ".git")
}

// NormalizeRepo returns a comparison form of repo: .git stripped and lower-cased
func NormalizeRepo(repo string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(repo), ".git"))
}

// DeriveKey maps a repository reference and ref to a stable cache key, so the
// shorthand, ssh and https forms of one repository share a cache entry.
func DeriveKey(repo, ref string) string {
	return sanitizeKeyPart(strings.ToLower(OwnerRepo(repo))) + "-" + sanitizeKeyPart(ref)
}

var keyReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-")

func sanitizeKeyPart(s string) string {
	return keyReplacer.Replace(s)
}

// validateKey rejects keys that would escape the cache root
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return errors.Errorf("invalid cache key %q", key)
	}
	if strings.ContainsAny(key, "/\\") {
		return errors.Errorf("cache key %q must not contain path separators", key)
	}
	return nil
}
