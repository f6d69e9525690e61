package client

import (
	"net/url"
	"path"
	"strings"

	"assetapi/internal/model"
)

// Resolver turns stored asset references into absolute URLs. It is pure: no
// network access and no cache-busting parameters.
type Resolver struct {
	base string
}

// NewResolver creates a Resolver for the API base URL.
func NewResolver(baseURL string) Resolver {
	return Resolver{base: strings.TrimRight(baseURL, "/")}
}

// ResolveURL maps ref to a fetchable URL:
//   - "" yields ""
//   - absolute http(s) URLs are returned unchanged
//   - "/uploads/<name>" is joined onto the base
//   - anything else is treated as a bare filename under /uploads/
func (r Resolver) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case isAbsolute(ref):
		return ref
	case strings.HasPrefix(ref, model.PublicPathPrefix):
		return r.base + ref
	default:
		return r.base + model.PublicPath(strings.TrimLeft(ref, "/"))
	}
}

// ResolveAsset resolves an upload result by its filename, falling back to its URL.
func (r Resolver) ResolveAsset(res *UploadResult) string {
	if res == nil {
		return ""
	}
	if res.Filename != "" {
		return r.ResolveURL(res.Filename)
	}
	return r.ResolveURL(res.URL)
}

// FilenameFromReference extracts the stored filename from a bare name, an
// "/uploads/<name>" path or an absolute asset URL.
func FilenameFromReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if isAbsolute(ref) {
		u, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		ref = u.Path
	}
	if strings.HasPrefix(ref, model.PublicPathPrefix) {
		name, err := url.PathUnescape(path.Base(ref))
		if err != nil {
			return ""
		}
		return name
	}
	return ref
}

func isAbsolute(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
