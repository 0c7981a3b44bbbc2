package model

import (
	"strings"
	"time"
)

// CacheKind names the class of remote resource held in the resource cache.
type CacheKind string

const (
	CacheKindFileContents CacheKind = "file_contents"
	CacheKindTOC          CacheKind = "toc"
	CacheKindAuthStatus   CacheKind = "auth_status"
	CacheKindPRDetail     CacheKind = "pr_detail"
)

// CacheKey identifies a cached remote resource. Version is the content version
// (a base..head commit pair) for immutable resources and empty for mutable
// ones such as authentication status.
type CacheKey struct {
	Kind     CacheKind
	Resource string
	Version  string
}

// String returns the storage form of the key: kind|resource|version.
func (k CacheKey) String() string {
	return string(k.Kind) + "|" + k.Resource + "|" + k.Version
}

// Immutable reports whether the key addresses versioned content. Immutable
// entries never expire; they are only superseded by a newer version key.
func (k CacheKey) Immutable() bool {
	return k.Version != ""
}

// CachePrefix returns the storage prefix matching every version of a
// resource of the given kind.
func CachePrefix(kind CacheKind, resource string) string {
	return string(kind) + "|" + resource + "|"
}

// CommitPair formats a base/head SHA pair as a cache version.
func CommitPair(baseSHA, headSHA string) string {
	if baseSHA == "" && headSHA == "" {
		return ""
	}
	return baseSHA + ".." + headSHA
}

// FileResource builds the resource identity for a file in a repository.
func FileResource(owner, repo, path string) string {
	return strings.Join([]string{owner, repo, path}, "/")
}

// CacheEntry is a stored snapshot of a remote resource.
type CacheEntry struct {
	Key      CacheKey
	Payload  []byte
	StoredAt time.Time
}

// CacheStats summarises the resource cache contents.
type CacheStats struct {
	Entries    int
	TotalBytes int64
	ByKind     map[CacheKind]int
}
