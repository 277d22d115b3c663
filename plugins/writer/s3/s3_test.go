package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"pdbgraph/pkg/contract"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctype   map[string]string
	headErr error
}

func newFake() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, ctype: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = b
	f.ctype[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestWriteAndExists(t *testing.T) {
	api := newFake()
	w, err := NewWithAPI(api, &Options{Bucket: "datasets", Prefix: "/pdbbind/"})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := w.Exists(ctx, "refined.pdbg")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, w.Write(ctx, "refined.pdbg", strings.NewReader("blob")))
	require.Equal(t, []byte("blob"), api.objects["datasets/pdbbind/refined.pdbg"])
	require.Equal(t, "application/octet-stream", api.ctype["datasets/pdbbind/refined.pdbg"])

	ok, err = w.Exists(ctx, "refined.pdbg")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExistsError(t *testing.T) {
	api := newFake()
	api.headErr = errors.New("forbidden")
	w, _ := NewWithAPI(api, &Options{Bucket: "b"})
	_, err := w.Exists(context.Background(), "x.pdbg")
	require.ErrorContains(t, err, "forbidden")
}

func TestKeyInvalid(t *testing.T) {
	w, _ := NewWithAPI(newFake(), &Options{Bucket: "b"})
	for _, id := range []string{"", "..", "a/b.pdbg"} {
		err := w.Write(context.Background(), contract.ArtifactID(id), bytes.NewReader(nil))
		require.ErrorIs(t, err, contract.ErrPathInvalid)
	}
	k, err := w.Key("x.pdbg")
	require.NoError(t, err)
	require.Equal(t, "x.pdbg", k)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(context.Background(), &Options{})
	require.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = New(context.Background(), &Options{Bucket: "b", AccessKeyID: "k"})
	require.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = NewWithAPI(nil, &Options{Bucket: "b"})
	require.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestNewStaticCredentials(t *testing.T) {
	w, err := New(context.Background(), &Options{
		Bucket: "b", Region: "us-east-1", Endpoint: "http://127.0.0.1:9000", PathStyle: true,
		AccessKeyID: "k", SecretAccessKey: "s",
	})
	require.NoError(t, err)
	require.NotNil(t, w)
}
