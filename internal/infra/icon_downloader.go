package infra

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"token_swap/internal/domain"

	"github.com/disintegration/imaging"
)

// IconSize is the edge length of cached asset icons in pixels.
const IconSize = 24

// IconDownloader handles downloading and caching asset icons
type IconDownloader struct {
	basePath    string
	urlTemplate string // one %s, replaced by the lower-case ticker
	client      *http.Client
}

// NewIconDownloader creates a new IconDownloader caching into basePath
func NewIconDownloader(basePath, urlTemplate string) (*IconDownloader, error) {
	if basePath == "" {
		return nil, fmt.Errorf("icon directory not configured")
	}
	if strings.Count(urlTemplate, "%s") != 1 {
		return nil, fmt.Errorf("icon url template must contain exactly one %%s: %q", urlTemplate)
	}

	// Ensure directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconDownloader{
		basePath:    basePath,
		urlTemplate: urlTemplate,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon downloads the icon for an asset if it doesn't exist
// Returns the local file path on success
// Images are resized to 24x24 pixels
func (d *IconDownloader) DownloadIcon(ctx context.Context, asset domain.AssetID) (string, error) {
	if !domain.IsValidAssetID(asset) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAsset, asset)
	}
	ticker := strings.ToLower(asset.Ticker())
	filePath := d.GetIconPath(asset)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(d.urlTemplate, ticker), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", domain.NewNetworkError("download_icon", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewFatalNetworkError("download_icon", fmt.Errorf("bad status: %s", resp.Status))
	}

	// Decode the image
	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, IconSize, IconSize, imaging.Lanczos)

	// Save the resized image
	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// GetIconPath returns the local path for an asset's icon. The asset ID is
// validated upstream, so the ticker only ever holds [A-Z0-9].
func (d *IconDownloader) GetIconPath(asset domain.AssetID) string {
	return filepath.Join(d.basePath, strings.ToLower(asset.Ticker())+".png")
}
