package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penpal/internal/types"
)

type mockS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.input = in
	if in.Body != nil {
		b, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		m.body = b
	}
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_UploadArchive(t *testing.T) {
	client := &mockS3{}
	u := NewS3Uploader(client, "penpal-archive", nil)
	payload := []byte(`{"id":"l1"}` + "\n" + `{"id":"l2"}` + "\n")

	require.NoError(t, u.UploadArchive(context.Background(), "letters/2026/10/19/archive_1.jsonl.zst", payload))

	require.NotNil(t, client.input)
	assert.Equal(t, "penpal-archive", aws.ToString(client.input.Bucket))
	assert.Equal(t, "letters/2026/10/19/archive_1.jsonl.zst", aws.ToString(client.input.Key))
	assert.Equal(t, "zstd", aws.ToString(client.input.ContentEncoding))
	assert.Equal(t, s3types.StorageClassStandardIa, client.input.StorageClass)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	raw, err := dec.DecodeAll(client.body, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, raw)
}

func TestS3Uploader_Error(t *testing.T) {
	u := NewS3Uploader(&mockS3{err: errors.New("access denied")}, "b", nil)
	err := u.UploadArchive(context.Background(), "k", []byte("x"))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
}
