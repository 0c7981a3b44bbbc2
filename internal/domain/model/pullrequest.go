package model

import (
	"fmt"
	"strings"
)

// PRRef identifies a pull request on the remote host.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

// FullName returns the "owner/repo" form of the repository.
func (r PRRef) FullName() string {
	return r.Owner + "/" + r.Repo
}

// String returns the "owner/repo#number" form used in logs and cache keys.
func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// IsZero reports whether no pull request is referenced.
func (r PRRef) IsZero() bool {
	return r.Owner == "" && r.Repo == "" && r.Number == 0
}

// ParsePRRef parses "owner/repo#number".
func ParsePRRef(s string) (PRRef, error) {
	repoPart, numPart, ok := strings.Cut(s, "#")
	if !ok {
		return PRRef{}, fmt.Errorf("invalid pull request %q: expected owner/repo#number", s)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" {
		return PRRef{}, fmt.Errorf("invalid pull request %q: expected owner/repo#number", s)
	}
	var number int
	if _, err := fmt.Sscanf(numPart, "%d", &number); err != nil || number <= 0 {
		return PRRef{}, fmt.Errorf("invalid pull request number in %q", s)
	}
	return PRRef{Owner: owner, Repo: repo, Number: number}, nil
}

// PRDetail is the remote snapshot of a pull request's review state.
type PRDetail struct {
	Ref      PRRef
	Title    string
	Author   string
	HeadSHA  string
	BaseSHA  string
	Locked   bool // Conversation locked on the host; comments will be rejected.
	Comments []Comment
	Reviews  []Review
}

// PendingReviews returns the reviews in PENDING state.
func (d PRDetail) PendingReviews() []Review {
	var pending []Review
	for _, r := range d.Reviews {
		if r.IsPending() {
			pending = append(pending, r)
		}
	}
	return pending
}

// FileContents holds both sides of a changed file. An added file has an
// empty Base; a removed file has an empty Head.
type FileContents struct {
	Head string
	Base string
}

// AuthStatus is the authentication state reported by the remote host.
type AuthStatus struct {
	Authenticated bool
	Login         string
	AvatarURL     string
	Offline       bool // Set when the status was served from cache.
}
