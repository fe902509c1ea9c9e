package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultAccessTTL is the signed URL lifetime used when callers do not need
// a specific one
const DefaultAccessTTL = time.Hour

// UploadProgress represents the progress of a media upload
type UploadProgress struct {
	BytesUploaded int64   `json:"bytes_uploaded"`
	TotalBytes    int64   `json:"total_bytes"`
	Percentage    float64 `json:"percentage"`
}

// MediaStore defines the interface for capsule media blob operations
type MediaStore interface {
	// Upload stores the file at filePath under the given media path with
	// optional progress tracking
	Upload(ctx context.Context, path string, filePath string, contentType string, progressCh chan<- UploadProgress) error

	// GetAccessURL generates a time-limited signed URL for viewing a blob
	GetAccessURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Delete removes a blob. Deleting an absent blob is a success.
	Delete(ctx context.Context, path string) error

	// Head retrieves blob metadata without downloading it
	Head(ctx context.Context, path string) (*s3.HeadObjectOutput, error)

	// TestConnection tests the media store connection by listing bucket contents
	TestConnection(ctx context.Context) error
}

// S3MediaStore implements MediaStore using AWS SDK v2
type S3MediaStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
	region    string
}

// NewS3MediaStore creates a new S3-backed media store
func NewS3MediaStore(credProvider CredentialProvider, bucket string) (*S3MediaStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	ctx := context.Background()

	creds, err := credProvider.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get AWS credentials: %w", err)
	}

	region, err := credProvider.GetRegion()
	if err != nil {
		return nil, fmt.Errorf("failed to get AWS region: %w", err)
	}

	cfg := aws.Config{
		Credentials: credentials.StaticCredentialsProvider{
			Value: creds,
		},
		Region: region,
		// Standard retry mode gives bounded exponential backoff on transient
		// S3 failures
		RetryMode:        aws.RetryModeStandard,
		RetryMaxAttempts: 3,
	}

	client := s3.NewFromConfig(cfg)
	presigner := s3.NewPresignClient(client)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		// Sequential multipart uploads; capsule media is capped at 100MB so
		// there is no need for parallel parts
		u.Concurrency = 1
	})

	return &S3MediaStore{
		client:    client,
		presigner: presigner,
		uploader:  uploader,
		bucket:    bucket,
		region:    region,
	}, nil
}

// Upload stores a local file under the given media path
func (s *S3MediaStore) Upload(ctx context.Context, path string, filePath string, contentType string, progressCh chan<- UploadProgress) error {
	if path == "" {
		return fmt.Errorf("media path cannot be empty")
	}

	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file '%s': %w", filePath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info for '%s': %w", filePath, err)
	}

	fileSize := fileInfo.Size()
	if fileSize == 0 {
		return fmt.Errorf("file '%s' is empty", filePath)
	}

	if contentType == "" {
		contentType = ContentTypeForFile(filePath)
	}

	var reader io.Reader = file
	if progressCh != nil {
		reader = &progressReader{
			reader:     file,
			totalBytes: fileSize,
			progressCh: progressCh,
		}
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        reader,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": filepath.Base(filePath),
			"upload-timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return s.handleS3Error("upload media", err)
	}

	// Send final progress update
	if progressCh != nil {
		select {
		case progressCh <- UploadProgress{
			BytesUploaded: fileSize,
			TotalBytes:    fileSize,
			Percentage:    100.0,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// GetAccessURL generates a signed URL for viewing a blob
func (s *S3MediaStore) GetAccessURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if path == "" {
		return "", fmt.Errorf("media path cannot be empty")
	}

	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}

	// A capsule never outlives 24 hours, so neither should its access URLs
	maxTTL := 24 * time.Hour
	if ttl > maxTTL {
		ttl = maxTTL
	}

	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", s.handleS3Error("generate access URL", err)
	}

	return request.URL, nil
}

// Delete removes a blob from the media store. A blob that is already gone is
// treated as success; delete-of-deleted must converge, not fail.
func (s *S3MediaStore) Delete(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("media path cannot be empty")
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}

	_, err := s.client.DeleteObject(ctx, input)
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return s.handleS3Error("delete media", err)
	}

	return nil
}

// Head retrieves blob metadata without downloading it
func (s *S3MediaStore) Head(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	if path == "" {
		return nil, fmt.Errorf("media path cannot be empty")
	}

	input := &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}

	output, err := s.client.HeadObject(ctx, input)
	if err != nil {
		return nil, s.handleS3Error("get media metadata", err)
	}

	return output, nil
}

// TestConnection tests the media store connection by attempting to list bucket contents
func (s *S3MediaStore) TestConnection(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	}

	if _, err := s.client.ListObjectsV2(ctx, input); err != nil {
		return s.handleS3Error("test connection", err)
	}

	return nil
}

// handleS3Error converts AWS S3 errors to user-friendly error messages
func (s *S3MediaStore) handleS3Error(operation string, err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if errStr == "context deadline exceeded" {
		return fmt.Errorf("operation timed out while trying to %s. Please check your internet connection and try again", operation)
	}
	if errStr == "context canceled" {
		return fmt.Errorf("operation was canceled while trying to %s", operation)
	}

	if strings.Contains(errStr, "AccessDenied") {
		return fmt.Errorf("access denied to S3 bucket '%s'. Please check your AWS credentials and IAM permissions", s.bucket)
	}
	if strings.Contains(errStr, "NoSuchBucket") {
		return fmt.Errorf("S3 bucket '%s' does not exist or you don't have access to it. Please check your bucket name and permissions", s.bucket)
	}
	if strings.Contains(errStr, "NoSuchKey") {
		return fmt.Errorf("the capsule media was not found in S3. It may have been deleted already")
	}

	return fmt.Errorf("failed to %s: %w", operation, err)
}

// isNotFoundError checks if an error indicates that the object was not found
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

// ContentTypeForFile determines the content type based on file extension
func ContentTypeForFile(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// progressReader wraps an io.Reader to provide upload progress updates
type progressReader struct {
	reader     io.Reader
	totalBytes int64
	bytesRead  int64
	progressCh chan<- UploadProgress
}

// Read implements io.Reader and sends progress updates
func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
		percentage := float64(pr.bytesRead) / float64(pr.totalBytes) * 100.0

		// Send progress update (non-blocking)
		select {
		case pr.progressCh <- UploadProgress{
			BytesUploaded: pr.bytesRead,
			TotalBytes:    pr.totalBytes,
			Percentage:    percentage,
		}:
		default:
			// Channel is full, skip this update
		}
	}
	return n, err
}
