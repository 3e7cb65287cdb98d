package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/config"
)

// ObjectStore is where uploaded and generated files live.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns a link a browser can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
}

// LocalStore writes under a directory served at /uploads.
type LocalStore struct {
	Root    string
	BaseURL string
}

func (l *LocalStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	full := filepath.Join(l.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	dst, err := os.Create(full)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, body)
	return err
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(l.Root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *LocalStore) URL(_ context.Context, key string) (string, error) {
	return strings.TrimRight(l.BaseURL, "/") + "/uploads/" + key, nil
}

// S3Store targets AWS S3 or any S3-compatible endpoint such as R2 or MinIO.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.S3Bucket,
		expiry:    15 * time.Minute,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.expiry
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return req.URL, nil
}

type StorageService struct {
	store ObjectStore
}

// NewStorageService picks the backend named by STORAGE_BACKEND.
func NewStorageService(ctx context.Context, cfg *config.Config) (*StorageService, error) {
	if cfg.StorageBackend == "s3" {
		st, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &StorageService{store: st}, nil
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, err
	}
	return &StorageService{store: &LocalStore{Root: cfg.UploadDir, BaseURL: cfg.AppURL}}, nil
}

func NewStorageServiceWith(store ObjectStore) *StorageService {
	return &StorageService{store: store}
}

// AllowedImageExtensions lists valid image extensions
var AllowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

const (
	MaxImageSize     = 5 * 1024 * 1024
	MaxPitchDeckSize = 10 * 1024 * 1024
)

// SaveProjectImage stores an image or logo and returns its key.
func (s *StorageService) SaveProjectImage(ctx context.Context, projectID uuid.UUID, prefix string, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !AllowedImageExtensions[ext] {
		return "", apperr.Newf(apperr.CodeInvalid, "invalid file type: %s. Allowed: jpg, jpeg, png, gif, webp", ext)
	}
	if file.Size > MaxImageSize {
		return "", apperr.New(apperr.CodeInvalid, "file too large. Maximum size is 5MB")
	}
	return s.saveUpload(ctx, projectID, prefix, ext, file)
}

// SavePitchDeck stores a PDF pitch deck and returns its key.
func (s *StorageService) SavePitchDeck(ctx context.Context, projectID uuid.UUID, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		return "", apperr.Newf(apperr.CodeInvalid, "invalid file type: %s. Only PDF allowed", ext)
	}
	if file.Size > MaxPitchDeckSize {
		return "", apperr.New(apperr.CodeInvalid, "file too large. Maximum size is 10MB")
	}
	return s.saveUpload(ctx, projectID, "deck", ext, file)
}

func (s *StorageService) saveUpload(ctx context.Context, projectID uuid.UUID, prefix, ext string, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := path.Join("projects", projectID.String(),
		fmt.Sprintf("%s_%s_%d%s", prefix, uuid.New().String()[:8], time.Now().Unix(), ext))
	if err := s.store.Put(ctx, key, src, contentTypeFor(ext)); err != nil {
		return "", err
	}
	return key, nil
}

// SaveDocument stores a generated PDF under documents/<kind>/.
func (s *StorageService) SaveDocument(ctx context.Context, kind string, id uuid.UUID, pdf []byte) (string, error) {
	key := path.Join("documents", kind, fmt.Sprintf("%s_%s.pdf", kind, id))
	if err := s.store.Put(ctx, key, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return "", err
	}
	return key, nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

func (s *StorageService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.store.URL(ctx, key)
}

func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
