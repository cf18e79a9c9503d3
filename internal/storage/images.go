package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// allowed image extensions
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// ImageStore keeps product images on local disk and maps them to
// public URLs served from /uploads/products.
type ImageStore struct {
	dir       string
	publicURL string
}

// NewImageStore prepares the uploads directory.
func NewImageStore(dir, publicURL string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create uploads dir")
	}
	return &ImageStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Save stores the uploaded file under a unique object name and returns
// its public URL.
func (s *ImageStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExts[ext] {
		return "", errors.Errorf("unsupported image type %q", ext)
	}
	base := unsafeChars.ReplaceAllString(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)), "_")
	object := fmt.Sprintf("%s_%s%s", uuid.NewString(), base, ext)

	dst, err := os.Create(filepath.Join(s.dir, object))
	if err != nil {
		return "", errors.Wrap(err, "create image file")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		_ = os.Remove(dst.Name())
		return "", errors.Wrap(err, "write image file")
	}
	return s.publicURL + "/uploads/products/" + object, nil
}

// Delete removes the stored object behind an image URL. Foreign URLs
// (not produced by this store) are ignored.
func (s *ImageStore) Delete(imageURL string) error {
	object := s.objectFromURL(imageURL)
	if object == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, object))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete image file")
	}
	return nil
}

// GC removes stored images whose object name is not in referenced.
// Returns how many files were removed.
func (s *ImageStore) GC(referenced map[string]bool) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		zap.L().Warn("image gc: read uploads dir failed", zap.Error(err))
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			zap.L().Warn("image gc: remove failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// ObjectName extracts the stored object name from an image URL, or ""
// when the URL does not belong to this store.
func (s *ImageStore) ObjectName(imageURL string) string {
	return s.objectFromURL(imageURL)
}

func (s *ImageStore) objectFromURL(imageURL string) string {
	const marker = "/uploads/products/"
	i := strings.Index(imageURL, marker)
	if i < 0 {
		return ""
	}
	object := imageURL[i+len(marker):]
	if object == "" || strings.Contains(object, "/") {
		return ""
	}
	return object
}
