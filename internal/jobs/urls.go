package jobs

import "strings"

// URLRewriter turns on-disk artifact paths into the client-facing URLs
// published in tracker snapshots. The rewrite is a plain prefix swap:
// the configured staging base is replaced by the base URL, and
// backslashes are normalized to forward slashes.
type URLRewriter struct {
	base    string
	baseURL string
}

// NewURLRewriter returns a rewriter replacing the staging base prefix
// with baseURL. An empty baseURL disables rewriting; the snapshot then
// omits the links.
func NewURLRewriter(stagingBase, baseURL string) *URLRewriter {
	return &URLRewriter{
		base:    strings.ReplaceAll(stagingBase, "\\", "/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Rewrite returns the URL form of an artifact path, or "" when no base
// URL is configured.
func (r *URLRewriter) Rewrite(artifactPath string) string {
	if r.baseURL == "" {
		return ""
	}

	p := strings.ReplaceAll(artifactPath, "\\", "/")
	if r.base != "" {
		p = strings.TrimPrefix(p, r.base)
	}
	return r.baseURL + "/" + strings.TrimPrefix(p, "/")
}
