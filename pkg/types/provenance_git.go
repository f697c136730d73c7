package types

import (
	"fmt"
	"time"
)

// GitProvenance for blobs found in a repository's history.
type GitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata // first commit seen carrying the blob
	BlobPath string          // path within repo at commit
}

// Kind returns "git".
func (g GitProvenance) Kind() string {
	return "git"
}

// Path returns "repo@commit:path", or "repo:path" without commit info.
func (g GitProvenance) Path() string {
	if g.Commit == nil {
		return fmt.Sprintf("%s:%s", g.RepoPath, g.BlobPath)
	}
	return fmt.Sprintf("%s@%s:%s", g.RepoPath, g.Commit.CommitID, g.BlobPath)
}

// CommitMetadata holds git commit information.
type CommitMetadata struct {
	CommitID        string
	AuthorName      string
	AuthorEmail     string
	AuthorTimestamp time.Time
	Message         string
}
