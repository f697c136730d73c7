package enum

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// AzureConnectionStringEnv names the variable holding the storage account
// connection string.
const AzureConnectionStringEnv = "AZURE_STORAGE_CONNECTION_STRING"

// BlobInfo describes one listed blob.
type BlobInfo struct {
	Name string
	Size int64
}

// AzureBlobAPI is the subset of Blob Storage used for enumeration.
type AzureBlobAPI interface {
	ListBlobs(ctx context.Context, container, prefix string) ([]BlobInfo, error)
	Download(ctx context.Context, container, blob string) (io.ReadCloser, error)
}

// azureClient adapts *azblob.Client to AzureBlobAPI.
type azureClient struct {
	client *azblob.Client
}

// NewAzureClient connects using the connection string in
// AZURE_STORAGE_CONNECTION_STRING.
func NewAzureClient() (AzureBlobAPI, error) {
	connStr := os.Getenv(AzureConnectionStringEnv)
	if connStr == "" {
		return nil, fmt.Errorf("%s is not set", AzureConnectionStringEnv)
	}
	client, err := azblob.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	return &azureClient{client: client}, nil
}

func (c *azureClient) ListBlobs(ctx context.Context, container, prefix string) ([]BlobInfo, error) {
	var opts *azblob.ListBlobsFlatOptions
	if prefix != "" {
		opts = &azblob.ListBlobsFlatOptions{Prefix: to.Ptr(prefix)}
	}

	var blobs []BlobInfo
	pager := c.client.NewListBlobsFlatPager(container, opts)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			info := BlobInfo{Name: *item.Name}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				info.Size = *item.Properties.ContentLength
			}
			blobs = append(blobs, info)
		}
	}
	return blobs, nil
}

func (c *azureClient) Download(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	resp, err := c.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ParseAzureURL splits azblob://container/blob. An empty blob or one ending
// in "/" is a prefix.
func ParseAzureURL(raw string) (container, blob string, err error) {
	rest, ok := strings.CutPrefix(raw, "azblob://")
	if !ok {
		return "", "", fmt.Errorf("not an azblob URL: %s", raw)
	}
	container, blob, _ = strings.Cut(rest, "/")
	if container == "" {
		return "", "", fmt.Errorf("missing container in %s", raw)
	}
	return container, blob, nil
}

// AzureEnumerator yields one blob, or every blob under a prefix.
type AzureEnumerator struct {
	client    AzureBlobAPI
	container string
	blob      string
	config    Config
}

// NewAzureEnumerator creates an enumerator for azblob://container/blob.
func NewAzureEnumerator(client AzureBlobAPI, container, blob string, config Config) *AzureEnumerator {
	return &AzureEnumerator{client: client, container: container, blob: blob, config: config}
}

// Enumerate implements Enumerator.
func (e *AzureEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	if e.blob != "" && !strings.HasSuffix(e.blob, "/") {
		return e.fetch(ctx, e.blob, callback)
	}

	blobs, err := e.client.ListBlobs(ctx, e.container, e.blob)
	if err != nil {
		return fmt.Errorf("failed to list azblob://%s/%s: %w", e.container, e.blob, err)
	}
	for _, b := range blobs {
		if e.config.MaxFileSize > 0 && b.Size > e.config.MaxFileSize {
			continue
		}
		if err := e.fetch(ctx, b.Name, callback); err != nil {
			return err
		}
	}
	return nil
}

func (e *AzureEnumerator) fetch(ctx context.Context, name string, callback Callback) error {
	url := fmt.Sprintf("azblob://%s/%s", e.container, name)

	body, err := e.client.Download(ctx, e.container, name)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer body.Close()

	content, err := readLimited(body, e.config.MaxFileSize)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", url, err)
	}
	if content == nil {
		return nil
	}

	prov := types.ExtendedProvenance{Payload: map[string]interface{}{
		"url":  url,
		"size": len(content),
	}}
	return callback(content, types.ComputeImageID(content), prov)
}
