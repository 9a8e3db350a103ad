package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type assetUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Storage keeps notes files in Cloudinary and hands back their secure URL.
type Storage struct {
	api    assetUploader
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary backed storage.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return newStorage(&cld.Upload, cfg.Folder, logger), nil
}

func newStorage(api assetUploader, folder string, logger zerolog.Logger) *Storage {
	return &Storage{
		api:    api,
		folder: strings.Trim(folder, "/"),
		logger: logger.With().Str("component", "cloudinary_storage").Logger(),
	}
}

// Upload stores the object under name. Images go to the image pipeline, every
// other document is kept as a raw asset so Cloudinary does not transcode it.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("object name must not be empty")
	}

	resourceType := resourceTypeFor(name)
	publicID := name
	if resourceType == "image" {
		publicID = strings.TrimSuffix(name, filepath.Ext(name))
	}

	overwrite := false
	result, err := s.api.Upload(ctx, reader, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: resourceType,
		Overwrite:    &overwrite,
		Tags:         []string{"campus-notes"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected asset: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("resource_type", resourceType).
		Msg("notes file uploaded")

	return result.SecureURL, nil
}

func resourceTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return "image"
	default:
		return "raw"
	}
}
