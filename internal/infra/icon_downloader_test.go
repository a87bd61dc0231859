package infra

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"token_swap/internal/domain"

	"github.com/disintegration/imaging"
)

func iconServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/wegld.png") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, 64, 48))
		for x := 0; x < 64; x++ {
			for y := 0; y < 48; y++ {
				img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 200, A: 255})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, img)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIconDownloader_DownloadAndCache(t *testing.T) {
	var hits atomic.Int32
	srv := iconServer(t, &hits)
	dir := filepath.Join(t.TempDir(), "icons")

	d, err := NewIconDownloader(dir, srv.URL+"/icons/%s.png")
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	path, err := d.DownloadIcon(context.Background(), "WEGLD-bd4d79")
	if err != nil {
		t.Fatalf("DownloadIcon failed: %v", err)
	}
	if path != filepath.Join(dir, "wegld.png") || path != d.GetIconPath("WEGLD-bd4d79") {
		t.Errorf("unexpected icon path %s", path)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("cached icon unreadable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != IconSize || b.Dy() != IconSize {
		t.Errorf("expected %dx%d, got %dx%d", IconSize, IconSize, b.Dx(), b.Dy())
	}

	// Cache hit
	if _, err := d.DownloadIcon(context.Background(), "WEGLD-bd4d79"); err != nil {
		t.Fatalf("cached DownloadIcon failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected a single fetch, got %d", got)
	}
}

func TestIconDownloader_Errors(t *testing.T) {
	var hits atomic.Int32
	srv := iconServer(t, &hits)
	d, err := NewIconDownloader(t.TempDir(), srv.URL+"/icons/%s.png")
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	t.Run("invalid asset", func(t *testing.T) {
		_, err := d.DownloadIcon(context.Background(), "../../etc")
		if !errors.Is(err, domain.ErrInvalidAsset) {
			t.Errorf("expected ErrInvalidAsset, got %v", err)
		}
		if hits.Load() != 0 {
			t.Error("invalid assets must not reach the network")
		}
	})

	t.Run("bad status is fatal", func(t *testing.T) {
		_, err := d.DownloadIcon(context.Background(), "USDC-c76f1f")
		var netErr *domain.NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected NetworkError, got %v", err)
		}
		if netErr.IsRetriable() {
			t.Error("a 404 should not be retriable")
		}
	})

	t.Run("unreachable host is retriable", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		d2, err := NewIconDownloader(t.TempDir(), url+"/%s.png")
		if err != nil {
			t.Fatalf("NewIconDownloader failed: %v", err)
		}
		_, err = d2.DownloadIcon(context.Background(), "WEGLD-bd4d79")
		var netErr *domain.NetworkError
		if !errors.As(err, &netErr) || !netErr.IsRetriable() {
			t.Errorf("expected retriable NetworkError, got %v", err)
		}
	})
}

func TestNewIconDownloader_Validation(t *testing.T) {
	if _, err := NewIconDownloader("", "http://x/%s.png"); err == nil {
		t.Error("expected error for an empty directory")
	}
	for _, tmpl := range []string{"http://x/icon.png", "http://x/%s/%s.png"} {
		if _, err := NewIconDownloader(t.TempDir(), tmpl); err == nil {
			t.Errorf("expected error for template %q", tmpl)
		}
	}
}
