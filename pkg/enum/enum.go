package enum

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Callback receives one image: its bytes, content ID and where it came from.
type Callback func(content []byte, id types.ImageID, prov types.Provenance) error

// Enumerator discovers images to scan from a source.
type Enumerator interface {
	// Enumerate yields images from the source. Callbacks may run
	// concurrently.
	Enumerate(ctx context.Context, callback Callback) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file or member size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// ExtractArchives scans the members of .zip and .7z files instead of
	// the archive bytes.
	ExtractArchives bool

	// Readers bounds parallel file reads (0 = NumCPU).
	Readers int

	// Git walks the history of the repository at Root instead of its
	// working tree.
	Git bool
}

// ForTarget picks the enumerator for a scan target: s3://bucket/key,
// azblob://container/blob, or a local file or directory (its git history
// when config.Git is set).
func ForTarget(ctx context.Context, target string, config Config, s3cfg S3Config) (Enumerator, error) {
	switch {
	case strings.HasPrefix(target, "s3://"):
		bucket, key, err := ParseS3URL(target)
		if err != nil {
			return nil, err
		}
		client, err := NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Enumerator(client, bucket, key, config), nil

	case strings.HasPrefix(target, "azblob://"):
		container, blob, err := ParseAzureURL(target)
		if err != nil {
			return nil, err
		}
		client, err := NewAzureClient()
		if err != nil {
			return nil, err
		}
		return NewAzureEnumerator(client, container, blob, config), nil

	default:
		if _, err := os.Stat(target); err != nil {
			return nil, fmt.Errorf("target not found: %w", err)
		}
		config.Root = target
		if config.Git {
			return NewGitEnumerator(config), nil
		}
		return NewFilesystemEnumerator(config), nil
	}
}
