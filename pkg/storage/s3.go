package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// FolderColleagues is the S3 prefix for colleague photos.
	FolderColleagues = "colleagues"
	// FolderExports is the S3 prefix for archived registration exports.
	FolderExports = "exports"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	PhotosBucket         string
	ExportsBucket        string
	PresignExpireMinutes int
}

// S3 provides S3 operations for colleague photos and export archives.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the environment
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY), else the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("photos_bucket", cfg.PhotosBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ColleaguePhotoKey returns colleagues/{colleague_id}/{unique}{ext}.
func ColleaguePhotoKey(colleagueID, unique, ext string) string {
	return path.Join(FolderColleagues, colleagueID, unique+ext)
}

// ExportKey returns exports/YYYY/MM/{filename}.
func ExportKey(at time.Time, filename string) string {
	return path.Join(FolderExports, at.Format("2006"), at.Format("01"), path.Base(filename))
}

// PhotosBucket returns the colleague photo bucket name.
func (s *S3) PhotosBucket() string { return s.cfg.PhotosBucket }

// ExportsBucket returns the export archive bucket name.
func (s *S3) ExportsBucket() string { return s.cfg.ExportsBucket }

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicObjectURL returns the public URL for an object (no signing; use when bucket is public).
func (s *S3) PublicObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}

// Upload streams a reader to S3 and returns the object's public URL.
// Set publicRead for photos that are linked directly from the frontend.
func (s *S3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64, publicRead bool) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
	}
	if publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	s.logger.Debug("object uploaded", zap.String("bucket", bucket), zap.String("key", key))
	return s.PublicObjectURL(bucket, key), nil
}

// GeneratePresignedDownloadURL returns a pre-signed GET URL for download.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// DeleteObject removes an object from S3.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PhotoStore adapts S3 to the photos bucket.
type PhotoStore struct{ s *S3 }

// Photos returns a store bound to the photos bucket.
func (s *S3) Photos() *PhotoStore { return &PhotoStore{s: s} }

// Put uploads a processed photo with public-read ACL.
func (p *PhotoStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	return p.s.Upload(ctx, p.s.cfg.PhotosBucket, key, contentType, body, size, true)
}

// Delete removes a photo. Empty keys are a no-op.
func (p *PhotoStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return p.s.DeleteObject(ctx, p.s.cfg.PhotosBucket, key)
}

// ArchiveStore adapts S3 to the exports bucket.
type ArchiveStore struct{ s *S3 }

// Archives returns a store bound to the exports bucket.
func (s *S3) Archives() *ArchiveStore { return &ArchiveStore{s: s} }

// Put uploads a private export file and returns a presigned download URL.
func (a *ArchiveStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, time.Time, error) {
	if _, err := a.s.Upload(ctx, a.s.cfg.ExportsBucket, key, contentType, body, size, false); err != nil {
		return "", time.Time{}, err
	}
	expires := a.s.PresignExpire()
	url, err := a.s.GeneratePresignedDownloadURL(ctx, a.s.cfg.ExportsBucket, key, expires)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, time.Now().Add(expires), nil
}
