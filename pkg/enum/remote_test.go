package enum

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// fakeS3 serves objects from a map; listings honor Prefix only.
type fakeS3 struct {
	objects map[string][]byte
	keys    []string // listing order
	gets    []string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{
				Key:  aws.String(k),
				Size: aws.Int64(int64(len(f.objects[k]))),
			})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: map[string][]byte{
			"dumps/a.bin":   {0x55, 0x48, 0x89, 0xe5},
			"dumps/b.bin":   bytes.Repeat([]byte{0x90}, 32),
			"other/c.bin":   {0xc3},
			"dumps/folder/": nil,
		},
		keys: []string{"dumps/a.bin", "dumps/b.bin", "dumps/folder/", "other/c.bin"},
	}
}

type yield struct {
	url  string
	size int
}

func collectRemote(t *testing.T, e Enumerator) ([]yield, error) {
	t.Helper()
	var got []yield
	err := e.Enumerate(context.Background(), func(content []byte, id types.ImageID, prov types.Provenance) error {
		assert.Equal(t, types.ComputeImageID(content), id)
		ext, ok := prov.(types.ExtendedProvenance)
		require.True(t, ok)
		got = append(got, yield{url: prov.Path(), size: ext.Payload["size"].(int)})
		return nil
	})
	return got, err
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://bucket/dumps/a.bin")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "dumps/a.bin", key)

	bucket, key, err = ParseS3URL("s3://bucket")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Empty(t, key)

	_, _, err = ParseS3URL("s3:///key")
	assert.Error(t, err)
	_, _, err = ParseS3URL("https://bucket/key")
	assert.Error(t, err)
}

func TestNewS3Client(t *testing.T) {
	ctx := context.Background()

	client, err := NewS3Client(ctx, S3Config{Region: "us-east-1", Endpoint: "http://localhost:9000", AccessKeyID: "id", SecretAccessKey: "secret"})
	require.NoError(t, err)
	opts := client.Options()
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))

	creds, err := opts.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)

	client, err = NewS3Client(ctx, S3Config{Region: "us-east-1", RoleARN: "arn:aws:iam::123456789012:role/dumps"})
	require.NoError(t, err)
	assert.IsType(t, &aws.CredentialsCache{}, client.Options().Credentials)
}

func TestS3Enumerator_Object(t *testing.T) {
	api := newFakeS3()
	got, err := collectRemote(t, NewS3Enumerator(api, "bucket", "dumps/a.bin", Config{}))
	require.NoError(t, err)
	assert.Equal(t, []yield{{url: "s3://bucket/dumps/a.bin", size: 4}}, got)
}

func TestS3Enumerator_Prefix(t *testing.T) {
	api := newFakeS3()
	got, err := collectRemote(t, NewS3Enumerator(api, "bucket", "dumps/", Config{}))
	require.NoError(t, err)
	assert.Equal(t, []yield{
		{url: "s3://bucket/dumps/a.bin", size: 4},
		{url: "s3://bucket/dumps/b.bin", size: 32},
	}, got)
}

func TestS3Enumerator_MaxFileSize(t *testing.T) {
	api := newFakeS3()
	got, err := collectRemote(t, NewS3Enumerator(api, "bucket", "", Config{MaxFileSize: 8}))
	require.NoError(t, err)
	assert.Equal(t, []yield{
		{url: "s3://bucket/dumps/a.bin", size: 4},
		{url: "s3://bucket/other/c.bin", size: 1},
	}, got)
	assert.NotContains(t, api.gets, "dumps/b.bin")

	// a directly named object over the limit is skipped after download
	got, err = collectRemote(t, NewS3Enumerator(api, "bucket", "dumps/b.bin", Config{MaxFileSize: 8}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestS3Enumerator_MissingObject(t *testing.T) {
	_, err := collectRemote(t, NewS3Enumerator(newFakeS3(), "bucket", "nope", Config{}))
	assert.ErrorContains(t, err, "failed to get s3://bucket/nope")
}

// fakeAzure serves blobs from a map.
type fakeAzure struct {
	blobs map[string][]byte
	names []string
}

func (f *fakeAzure) ListBlobs(ctx context.Context, container, prefix string) ([]BlobInfo, error) {
	if container != "dumps" {
		return nil, errors.New("ContainerNotFound")
	}
	var out []BlobInfo
	for _, n := range f.names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, BlobInfo{Name: n, Size: int64(len(f.blobs[n]))})
		}
	}
	return out, nil
}

func (f *fakeAzure) Download(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	data, ok := f.blobs[blob]
	if !ok {
		return nil, errors.New("BlobNotFound")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newFakeAzure() *fakeAzure {
	return &fakeAzure{
		blobs: map[string][]byte{
			"x64/app.bin": {0x48, 0x31, 0xc0},
			"x86/app.bin": {0x31, 0xc0},
		},
		names: []string{"x64/app.bin", "x86/app.bin"},
	}
}

func TestParseAzureURL(t *testing.T) {
	container, blob, err := ParseAzureURL("azblob://dumps/x64/app.bin")
	require.NoError(t, err)
	assert.Equal(t, "dumps", container)
	assert.Equal(t, "x64/app.bin", blob)

	_, _, err = ParseAzureURL("azblob://")
	assert.Error(t, err)
}

func TestAzureEnumerator(t *testing.T) {
	api := newFakeAzure()

	got, err := collectRemote(t, NewAzureEnumerator(api, "dumps", "x86/app.bin", Config{}))
	require.NoError(t, err)
	assert.Equal(t, []yield{{url: "azblob://dumps/x86/app.bin", size: 2}}, got)

	got, err = collectRemote(t, NewAzureEnumerator(api, "dumps", "", Config{}))
	require.NoError(t, err)
	assert.Equal(t, []yield{
		{url: "azblob://dumps/x64/app.bin", size: 3},
		{url: "azblob://dumps/x86/app.bin", size: 2},
	}, got)

	got, err = collectRemote(t, NewAzureEnumerator(api, "dumps", "", Config{MaxFileSize: 2}))
	require.NoError(t, err)
	assert.Equal(t, []yield{{url: "azblob://dumps/x86/app.bin", size: 2}}, got)
}

func TestAzureEnumerator_Errors(t *testing.T) {
	api := newFakeAzure()

	_, err := collectRemote(t, NewAzureEnumerator(api, "missing", "", Config{}))
	assert.ErrorContains(t, err, "failed to list azblob://missing/")

	_, err = collectRemote(t, NewAzureEnumerator(api, "dumps", "nope.bin", Config{}))
	assert.ErrorContains(t, err, "failed to download azblob://dumps/nope.bin")
}
