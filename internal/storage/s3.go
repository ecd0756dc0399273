package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"stash-go/internal/config"
	"stash-go/internal/stash"
)

// maxDeleteBatch is the S3 limit on keys per DeleteObjects request.
const maxDeleteBatch = 1000

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store stores objects in an S3 bucket under an optional key prefix.
// Folders are key prefixes, so MakeDir stores nothing and RemoveDir deletes
// every key beneath the folder.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store creates an S3Store using an existing client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// NewS3StoreFromConfig builds an S3 client from the storage config using the
// default AWS credential chain, with a custom endpoint for S3-compatible services.
func NewS3StoreFromConfig(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3_bucket required for s3 storage")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}

	// Static credentials for S3-compatible endpoints that do not use the AWS chain.
	if cfg.S3Endpoint != "" {
		if key, secret := lookupStaticCredentials(); key != "" && secret != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(key, secret, "")))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func (s *S3Store) objectKey(p stash.ObjectPath) string {
	return s.prefix + p.Key()
}

func (s *S3Store) dirPrefix(p stash.ObjectPath) string {
	return s.prefix + p.Key() + "/"
}

// Write uploads r to the object key for p. The uploader switches to multipart
// uploads for large bodies.
func (s *S3Store) Write(p stash.ObjectPath, r io.Reader, size int64) error {
	ctx := context.Background()

	exists, err := s.Exists(p)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("object %s: %w", p, stash.ErrAlreadyExists)
	}

	counter := &byteCounter{r: r}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
		Body:   counter,
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return stash.IOError("uploading object", err)
	}

	if size >= 0 && counter.n != size {
		mismatch := stash.IOError("uploading object", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n))
		if err := s.Delete(p); err != nil {
			return errors.Join(mismatch, fmt.Errorf("removing partial object: %w", err))
		}
		return mismatch
	}
	return nil
}

// Open streams the object at p.
func (s *S3Store) Open(p stash.ObjectPath) (io.ReadCloser, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("object %s: %w", p, stash.ErrNotFound)
		}
		return nil, stash.IOError("getting object", err)
	}
	return out.Body, nil
}

// Delete removes the object at p. S3 treats deleting a missing key as success.
func (s *S3Store) Delete(p stash.ObjectPath) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err != nil && !isS3NotFound(err) {
		return stash.IOError("deleting object", err)
	}
	return nil
}

// Exists reports whether an object is stored at p, or for directories whether
// any key lives beneath it.
func (s *S3Store) Exists(p stash.ObjectPath) (bool, error) {
	ctx := context.Background()

	if p.IsDir() {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(s.dirPrefix(p)),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return false, stash.IOError("listing objects", err)
		}
		return len(out.Contents) > 0, nil
	}

	return s.objectExists(ctx, p)
}

// objectExists reports whether an object is stored at the key for p.
func (s *S3Store) objectExists(ctx context.Context, p stash.ObjectPath) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, stash.IOError("checking object", err)
	}
	return true, nil
}

// MakeDir only checks that no object already uses the folder's key: S3 has no
// directories.
func (s *S3Store) MakeDir(p stash.ObjectPath) error {
	exists, err := s.objectExists(context.Background(), p)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("directory %s: %w", p, stash.ErrAlreadyExists)
	}
	return nil
}

// RemoveDir deletes every object beneath p in batches.
func (s *S3Store) RemoveDir(p stash.ObjectPath) error {
	ctx := context.Background()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.dirPrefix(p)),
	})

	var batch []types.ObjectIdentifier
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return stash.IOError("listing objects", err)
		}
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			if len(batch) == maxDeleteBatch {
				if err := s.deleteBatch(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
	}

	if len(batch) > 0 {
		return s.deleteBatch(ctx, batch)
	}
	return nil
}

func (s *S3Store) deleteBatch(ctx context.Context, objects []types.ObjectIdentifier) error {
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return stash.IOError("deleting objects", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return stash.IOError("deleting objects", fmt.Errorf("%d keys failed, first %s: %s",
			len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message)))
	}
	return nil
}

// ValidateSetup verifies that the bucket is reachable.
func (s *S3Store) ValidateSetup() error {
	_, err := s.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// byteCounter counts the bytes handed to the uploader.
type byteCounter struct {
	r io.Reader
	n int64
}

func (c *byteCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// lookupStaticCredentials reads the access key pair for custom endpoints.
func lookupStaticCredentials() (string, string) {
	return strings.TrimSpace(os.Getenv("STASH_S3_ACCESS_KEY_ID")), strings.TrimSpace(os.Getenv("STASH_S3_SECRET_ACCESS_KEY"))
}

// Compile-time check that S3Store implements stash.ObjectStore interface
var _ stash.ObjectStore = (*S3Store)(nil)
