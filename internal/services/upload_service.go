package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image format, only PNG, JPG and JPEG are allowed")
	ErrUploadsDisabled  = errors.New("image uploads are not configured")
)

type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context) (*manager.Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return manager.NewUploader(s3.NewFromConfig(cfg)), nil
}

type UploadService struct {
	uploader ObjectUploader
	bucket   string
	maxWidth uint
	logger   zerolog.Logger
}

func NewUploadService(uploader ObjectUploader, bucket string, maxWidth uint, logger zerolog.Logger) *UploadService {
	return &UploadService{
		uploader: uploader,
		bucket:   bucket,
		maxWidth: maxWidth,
		logger:   logger,
	}
}

func (s *UploadService) Enabled() bool {
	return s != nil && s.uploader != nil && s.bucket != ""
}

// Image decodes a PNG or JPEG, shrinks it to the configured width and
// stores it as a JPEG under prefix. It returns the public URL.
func (s *UploadService) Image(ctx context.Context, prefix, filename string, r io.Reader) (string, error) {
	if !s.Enabled() {
		return "", ErrUploadsDisabled
	}

	var (
		img image.Image
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		img, err = png.Decode(r)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(r)
	default:
		return "", ErrUnsupportedImage
	}
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	if uint(img.Bounds().Dx()) > s.maxWidth {
		img = resize.Resize(s.maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	key := fmt.Sprintf("%s/%s.jpg", strings.Trim(prefix, "/"), uuid.New().String())
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Error uploading image")
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.logger.Info().Str("key", key).Str("location", result.Location).Msg("Image uploaded")
	return result.Location, nil
}
