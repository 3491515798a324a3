package activity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiskImageStore keeps generated images on the local filesystem, one
// directory per project. Fetch also accepts http(s) URLs so facade
// storage keys and previously-saved local images go through the same
// path.
type DiskImageStore struct {
	root   string
	client *http.Client
}

// NewDiskImageStore creates a store rooted at dir.
func NewDiskImageStore(dir string) *DiskImageStore {
	return &DiskImageStore{
		root:   dir,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *DiskImageStore) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return s.fetchHTTP(ctx, ref)
	}

	path := strings.TrimPrefix(ref, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", ref, err)
	}
	return data, mimeFromExt(path), nil
}

func (s *DiskImageStore) fetchHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch %s returned %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body from %s: %w", url, err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

func (s *DiskImageStore) Save(_ context.Context, projectID string, data []byte, mimeType string) (string, error) {
	dir := filepath.Join(s.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir for %s: %w", projectID, err)
	}
	path := filepath.Join(dir, uuid.New().String()+extFromMime(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image for %s: %w", projectID, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs, nil
}

func (s *DiskImageStore) Purge(_ context.Context, projectID string) error {
	if err := os.RemoveAll(filepath.Join(s.root, projectID)); err != nil {
		return fmt.Errorf("failed to purge images for %s: %w", projectID, err)
	}
	return nil
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func extFromMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

var _ ImageStore = (*DiskImageStore)(nil)
