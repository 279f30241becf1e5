package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const rawResourceType = "raw"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores submission documents as raw Cloudinary assets.
type Service struct {
	client     *cloudinary.Cloudinary
	folder     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client:     cld,
		folder:     strings.Trim(cfg.Folder, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the document as a raw asset addressed by its storage path.
func (s *Service) Upload(ctx context.Context, objectPath string, reader io.Reader, _ int64, _ string) error {
	params := uploader.UploadParams{
		PublicID:     s.publicID(objectPath),
		ResourceType: rawResourceType,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")
	return nil
}

// Download fetches the asset over its secure delivery URL.
func (s *Service) Download(ctx context.Context, objectPath string) ([]byte, error) {
	asset, err := s.client.File(s.publicID(objectPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build asset: %w", err)
	}
	asset.Config.URL.Secure = true

	url, err := asset.String()
	if err != nil {
		return nil, fmt.Errorf("failed to build asset url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download asset: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Delete destroys the asset. Missing assets are not an error.
func (s *Service) Delete(ctx context.Context, objectPath string) error {
	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.publicID(objectPath),
		ResourceType: rawResourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	s.logger.Debug().Str("path", objectPath).Str("result", result.Result).Msg("asset destroyed")
	return nil
}

func (s *Service) publicID(objectPath string) string {
	objectPath = strings.TrimPrefix(objectPath, "/")
	if s.folder == "" {
		return objectPath
	}
	return s.folder + "/" + objectPath
}
