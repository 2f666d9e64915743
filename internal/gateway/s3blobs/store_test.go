package s3blobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

type fakePresign struct {
	key  string
	opts s3.PresignOptions
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.key = aws.ToString(in.Key)
	for _, fn := range optFns {
		fn(&f.opts)
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.amazonaws.com/" + f.key + "?X-Amz-Signature=abc"}, nil
}

type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestStore_PutAndURL(t *testing.T) {
	ctx := context.Background()
	api, pre := &fakeS3{}, &fakePresign{}
	store := New(api, pre, "receipts", time.Hour)

	loc, err := store.Put(ctx, "recibos/u1/1_a.pdf", gateway.Blob{
		Content:     onlyReader{strings.NewReader("pdf-bytes")},
		Size:        9,
		ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.Location("recibos/u1/1_a.pdf"), loc)
	assert.Equal(t, "receipts", aws.ToString(api.in.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(api.in.ContentType))
	assert.Equal(t, int64(9), aws.ToInt64(api.in.ContentLength))
	assert.Equal(t, "pdf-bytes", api.body)

	u, err := store.URL(ctx, loc)
	require.NoError(t, err)
	assert.Contains(t, u, "recibos/u1/1_a.pdf")
	assert.Equal(t, time.Hour, pre.opts.Expires)
}

func TestStore_PutError(t *testing.T) {
	store := New(&fakeS3{err: errors.New("access denied")}, &fakePresign{}, "receipts", 0)
	_, err := store.Put(context.Background(), "k", gateway.Blob{Content: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Equal(t, maxPresignTTL, store.ttl)
}
