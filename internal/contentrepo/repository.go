package contentrepo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a ref the operation depends on does not exist.
var ErrNotFound = errors.New("not found")

// FileChange is one file write committed to a branch.
type FileChange struct {
	Path    string
	Content []byte
	Message string
	Branch  string
}

// PullRequest proposes merging Head into Base.
type PullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// Repository is the hosted content repository that event documents are
// committed to.
type Repository interface {
	DefaultBranch() string
	// Exists reports whether path exists at ref. A missing path is not an error.
	Exists(ctx context.Context, path, ref string) (bool, error)
	// PutFile creates the file in a new commit and returns the commit SHA.
	// It never replaces an existing file.
	PutFile(ctx context.Context, change FileChange) (string, error)
	// CreateBranch creates name pointing at the current head of base.
	CreateBranch(ctx context.Context, name, base string) error
	// OpenPullRequest opens pr and returns its web URL.
	OpenPullRequest(ctx context.Context, pr PullRequest) (string, error)
}
