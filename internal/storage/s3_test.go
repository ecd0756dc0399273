package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"stash-go/internal/stash"
)

// fakeS3 keeps objects in memory. Multipart calls are not implemented; the
// uploader only uses PutObject for bodies below its part size.
type fakeS3 struct {
	S3API

	mu      sync.Mutex
	objects   map[string][]byte
	deletes   int
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if in.MaxKeys != nil && int(*in.MaxKeys) < len(keys) {
		keys = keys[:*in.MaxKeys]
	}

	out := &s3.ListObjectsV2Output{}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[key]))),
		})
	}
	return out, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestS3Store_KeysUsePrefix(t *testing.T) {
	client := newFakeS3()
	s := NewS3Store(client, "uploads", "stash/")

	p := mustObject(t, 7, "reports", "q1.pdf")
	if err := s.Write(p, strings.NewReader("data"), 4); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	keys := client.keys()
	if len(keys) != 1 || keys[0] != "stash/7/reports/q1.pdf" {
		t.Errorf("stored keys = %v, want [stash/7/reports/q1.pdf]", keys)
	}
}

func TestS3Store_MakeDirStoresNothing(t *testing.T) {
	client := newFakeS3()
	s := NewS3Store(client, "uploads", "")

	if err := s.MakeDir(mustFolder(t, 1, "reports")); err != nil {
		t.Fatalf("MakeDir() error = %v", err)
	}
	if keys := client.keys(); len(keys) != 0 {
		t.Errorf("MakeDir() stored keys %v", keys)
	}
}

func TestS3Store_SizeMismatchCleanupFailure(t *testing.T) {
	client := newFakeS3()
	client.deleteErr = errors.New("access denied")
	s := NewS3Store(client, "uploads", "")

	err := s.Write(mustObject(t, 1, "", "short.txt"), strings.NewReader("abc"), 10)
	if !errors.Is(err, stash.ErrIO) {
		t.Errorf("Write() error = %v, want ErrIO", err)
	}
	if err == nil || !strings.Contains(err.Error(), "removing partial object") || !errors.Is(err, client.deleteErr) {
		t.Errorf("Write() error = %v, want the cleanup failure reported", err)
	}
}

func TestS3Store_RemoveDirBatches(t *testing.T) {
	client := newFakeS3()
	s := NewS3Store(client, "uploads", "")

	for i := 0; i < maxDeleteBatch+5; i++ {
		client.objects[fmt.Sprintf("1/bulk/f%04d", i)] = []byte("x")
	}

	if err := s.RemoveDir(mustFolder(t, 1, "bulk")); err != nil {
		t.Fatalf("RemoveDir() error = %v", err)
	}
	if keys := client.keys(); len(keys) != 0 {
		t.Errorf("%d keys left after RemoveDir()", len(keys))
	}
	if client.deletes != 2 {
		t.Errorf("DeleteObjects called %d times, want 2", client.deletes)
	}
}

func TestIsS3NotFound(t *testing.T) {
	if !isS3NotFound(&types.NoSuchKey{}) {
		t.Error("NoSuchKey not recognised")
	}
	if !isS3NotFound(&types.NotFound{}) {
		t.Error("NotFound not recognised")
	}
	if isS3NotFound(errors.New("boom")) {
		t.Error("generic error recognised as not found")
	}
}
