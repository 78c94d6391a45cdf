// Package storage is the S3-compatible object store adapter holding lead
// attachments.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"funnelboard/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DownloadURLTTL is the expiration for presigned download URLs.
const DownloadURLTTL = 15 * time.Minute

// MaxAttachmentSize bounds a single uploaded attachment.
const MaxAttachmentSize = 25 << 20

// allowedContentTypes are the MIME types accepted for lead attachments.
var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"audio/ogg":       true,
	"audio/mpeg":      true,
	"video/mp4":       true,
}

// Attachment describes one stored object.
type Attachment struct {
	FileKey   string    `json:"fileKey"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service wraps a MinIO client scoped to the lead attachments bucket.
// A nil Service is valid and reports storage as unavailable.
type Service struct {
	client *minio.Client
	bucket string
}

// New returns nil when MinIO is not configured.
func New(cfg config.MinIOConfig) (*Service, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Service{
		client: client,
		bucket: cfg.GetMinioBucketLeadAttachments(),
	}, nil
}

// Enabled reports whether the object store is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// EnsureBucketExists creates the attachments bucket if missing.
func (s *Service) EnsureBucketExists(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload stores one attachment under the lead's folder and returns its key.
// File names are suffixed with a short random id so re-uploads never clobber.
func (s *Service) Upload(ctx context.Context, leadID uuid.UUID, fileName, contentType string, reader io.Reader, size int64) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("object storage not configured")
	}
	if err := validateContentType(contentType); err != nil {
		return "", err
	}
	if size <= 0 || size > MaxAttachmentSize {
		return "", fmt.Errorf("attachment size %d out of bounds", size)
	}

	ext := path.Ext(fileName)
	base := strings.TrimSuffix(path.Base(fileName), ext)
	fileKey := fmt.Sprintf("leads/%s/%s_%s%s", leadID, base, uuid.New().String()[:8], ext)

	_, err := s.client.PutObject(ctx, s.bucket, fileKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fileKey, err)
	}
	return fileKey, nil
}

// DownloadURL returns a presigned GET URL for one attachment.
func (s *Service) DownloadURL(ctx context.Context, fileKey string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, fmt.Errorf("object storage not configured")
	}

	expiresAt := time.Now().Add(DownloadURLTTL)
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, DownloadURLTTL, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", fileKey, err)
	}
	return presigned.String(), expiresAt, nil
}

// List enumerates a lead's attachments.
func (s *Service) List(ctx context.Context, leadID uuid.UUID) ([]Attachment, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("object storage not configured")
	}

	prefix := fmt.Sprintf("leads/%s/", leadID)
	attachments := make([]Attachment, 0)
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, object.Err)
		}
		attachments = append(attachments, Attachment{
			FileKey:   object.Key,
			Size:      object.Size,
			UpdatedAt: object.LastModified,
		})
	}
	return attachments, nil
}

// Delete removes one attachment.
func (s *Service) Delete(ctx context.Context, fileKey string) error {
	if !s.Enabled() {
		return fmt.Errorf("object storage not configured")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", fileKey, err)
	}
	return nil
}

func validateContentType(contentType string) error {
	normalized := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if !allowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}
