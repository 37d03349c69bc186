// Package s3 provides an S3-backed resource store for Amazon S3 and
// S3-compatible services (MinIO, Localstack).
//
// Reads use HTTP Range requests against the object, so a session never pulls
// more than one chunk from S3 at a time. S3 objects cannot be written in
// place: WriteAt accepts strictly sequential offsets, buffers part-size
// pieces, and uploads them as multipart-upload parts. Finalize completes the
// upload and makes the object visible.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/streamfs/pkg/source"
)

// minPartSize is the S3 minimum for every part except the last (5MB).
const minPartSize = 5 * 1024 * 1024

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all resource keys (e.g. "files/").
	// Should end with "/" if non-empty.
	KeyPrefix string

	// AccessKeyID and SecretAccessKey configure static credentials.
	// When empty the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// PartSize is the multipart upload part size in bytes.
	// Minimum and default: 5MB.
	PartSize int64
}

// uploadSession tracks an in-flight sequential write to one key.
type uploadSession struct {
	uploadID   string
	parts      []types.CompletedPart
	buf        []byte
	nextOffset int64
	partNum    int32
}

// Store is an S3-backed implementation of source.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	partSize  int64

	mu      sync.RWMutex
	closed  bool
	uploads map[string]*uploadSession
}

// New creates a new S3 store with an existing client.
func New(client *s3.Client, cfg Config) *Store {
	partSize := cfg.PartSize
	if partSize < minPartSize {
		partSize = minPartSize
	}
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
		uploads:   make(map[string]*uploadSession),
	}
}

// NewFromConfig creates a new S3 store by building an S3 client from config.
// This is the preferred constructor when you don't have an existing client.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

// fullKey returns the S3 object key for a resource key.
func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

// Stat resolves resource metadata via HeadObject.
func (s *Store) Stat(ctx context.Context, key string) (source.Resource, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return source.Resource{}, source.ErrStoreClosed
	}
	s.mu.RUnlock()

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return source.Resource{}, source.ErrNotFound
		}
		return source.Resource{}, fmt.Errorf("s3 head object: %w", err)
	}

	res := source.Resource{
		Key:         key,
		ContentType: "application/octet-stream",
	}
	if head.ContentLength != nil {
		res.Size = *head.ContentLength
	}
	if head.ContentType != nil && *head.ContentType != "" {
		res.ContentType = *head.ContentType
	}
	if head.LastModified != nil {
		res.ModTime = *head.LastModified
	}
	return res, nil
}

// ReadAt reads up to len(p) bytes at the given offset using an S3 range
// request. Reads entirely past the end of the object return a short read of
// zero bytes with a nil error.
func (s *Store) ReadAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, source.ErrStoreClosed
	}
	s.mu.RUnlock()

	if len(p) == 0 {
		return 0, nil
	}

	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		if isNotFoundError(err) {
			return 0, source.ErrNotFound
		}
		if isInvalidRangeError(err) {
			// Offset past end-of-object: end-of-stream, not a failure.
			return 0, nil
		}
		return 0, fmt.Errorf("s3 get object range: %w", err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		// S3 clamps the range to the object size; short read is expected.
		err = nil
	}
	if err != nil {
		return n, fmt.Errorf("read s3 object body: %w", err)
	}
	return n, nil
}

// WriteAt writes p at the given offset. S3 supports sequential writes only:
// offsets must follow the session's append cursor exactly, otherwise
// source.ErrNonSequentialWrite is returned. Call Finalize to commit.
func (s *Store) WriteAt(ctx context.Context, key string, p []byte, off int64) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, source.ErrStoreClosed
	}

	sess, ok := s.uploads[key]
	if !ok {
		sess = &uploadSession{partNum: 1}
		s.uploads[key] = sess
	}
	s.mu.Unlock()

	if off != sess.nextOffset {
		return 0, &source.Error{
			Op: "write", Key: key, Backend: "s3", Offset: off,
			Err: source.ErrNonSequentialWrite,
		}
	}

	sess.buf = append(sess.buf, p...)
	sess.nextOffset += int64(len(p))

	for int64(len(sess.buf)) >= s.partSize {
		if err := s.uploadPart(ctx, key, sess, sess.buf[:s.partSize]); err != nil {
			return 0, err
		}
		sess.buf = sess.buf[s.partSize:]
	}

	return len(p), nil
}

// uploadPart uploads one part, starting the multipart upload lazily.
func (s *Store) uploadPart(ctx context.Context, key string, sess *uploadSession, data []byte) error {
	objKey := s.fullKey(key)

	if sess.uploadID == "" {
		created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objKey),
		})
		if err != nil {
			return fmt.Errorf("s3 create multipart upload: %w", err)
		}
		sess.uploadID = aws.ToString(created.UploadId)
	}

	part, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(objKey),
		UploadId:   aws.String(sess.uploadID),
		PartNumber: aws.Int32(sess.partNum),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 upload part %d: %w", sess.partNum, err)
	}

	sess.parts = append(sess.parts, types.CompletedPart{
		ETag:       part.ETag,
		PartNumber: aws.Int32(sess.partNum),
	})
	sess.partNum++
	return nil
}

// Finalize commits the pending sequential write for key. Small objects that
// never crossed the part-size threshold are stored with a single PutObject;
// everything else completes the multipart upload.
func (s *Store) Finalize(ctx context.Context, key string) error {
	s.mu.Lock()
	sess, ok := s.uploads[key]
	if ok {
		delete(s.uploads, key)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	objKey := s.fullKey(key)

	if sess.uploadID == "" {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objKey),
			Body:   bytes.NewReader(sess.buf),
		})
		if err != nil {
			return fmt.Errorf("s3 put object: %w", err)
		}
		return nil
	}

	// Flush the remainder as the final (possibly undersized) part.
	if len(sess.buf) > 0 {
		if err := s.uploadPart(ctx, key, sess, sess.buf); err != nil {
			s.abortUpload(ctx, objKey, sess.uploadID)
			return err
		}
		sess.buf = nil
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objKey),
		UploadId: aws.String(sess.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: sess.parts,
		},
	})
	if err != nil {
		s.abortUpload(ctx, objKey, sess.uploadID)
		return fmt.Errorf("s3 complete multipart upload: %w", err)
	}
	return nil
}

// abortUpload aborts a multipart upload, ignoring errors: an orphaned upload
// is reclaimed by bucket lifecycle rules.
func (s *Store) abortUpload(ctx context.Context, objKey, uploadID string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objKey),
		UploadId: aws.String(uploadID),
	})
}

// Remove deletes a resource object.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return source.ErrStoreClosed
	}
	s.mu.RUnlock()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// HealthCheck verifies bucket access.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return source.ErrStoreClosed
	}
	s.mu.RUnlock()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 head bucket: %w", err)
	}
	return nil
}

// Backend returns "s3".
func (s *Store) Backend() string {
	return "s3"
}

// Close marks the store as closed and aborts pending uploads.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	for key, sess := range s.uploads {
		if sess.uploadID != "" {
			s.abortUpload(ctx, s.fullKey(key), sess.uploadID)
		}
	}
	s.uploads = nil
	s.closed = true
	return nil
}

// isNotFoundError checks if an S3 error indicates a missing object.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

// isInvalidRangeError checks if an S3 error indicates a range past the end
// of the object.
func isInvalidRangeError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "InvalidRange") ||
		strings.Contains(errStr, "416")
}

// Ensure Store implements source.Store and source.Finalizer.
var (
	_ source.Store     = (*Store)(nil)
	_ source.Finalizer = (*Store)(nil)
)
