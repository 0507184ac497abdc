package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

const DefaultPosterMaxBytes = 5 << 20

var posterContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// PosterContentType renvoie le type MIME d'une extension d'affiche acceptée.
func PosterContentType(ext string) (string, bool) {
	ct, ok := posterContentTypes[strings.ToLower(ext)]
	return ct, ok
}

type PosterService struct {
	store    ports.ObjectStore
	bucket   string
	maxBytes int64
	now      func() time.Time
}

func NewPosterService(store ports.ObjectStore, bucket string, maxBytes int64) *PosterService {
	if maxBytes <= 0 {
		maxBytes = DefaultPosterMaxBytes
	}
	return &PosterService{store: store, bucket: bucket, maxBytes: maxBytes, now: time.Now}
}

// PosterExtension reprend tout ce qui suit le dernier point du nom d'origine.
func PosterExtension(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

func sanitizePosterName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// PosterPath construit "<millis>_<nom assaini>.<ext>". L'unicité n'est pas
// garantie : une collision est refusée par le stockage.
func PosterPath(titleName, filename string, at time.Time) string {
	return fmt.Sprintf("%d_%s.%s", at.UnixMilli(), sanitizePosterName(titleName), PosterExtension(filename))
}

// Upload envoie l'affiche puis renvoie son URL publique.
func (s *PosterService) Upload(ctx context.Context, titleName, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.Invalid("poster", "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return "", domain.Invalid("poster", fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	contentType, ok := PosterContentType(PosterExtension(filename))
	if !ok {
		return "", domain.Invalid("poster", "unsupported image type")
	}

	path := PosterPath(titleName, filename, s.now())
	if err := s.store.Upload(ctx, s.bucket, path, data, contentType); err != nil {
		return "", fmt.Errorf("upload poster %s: %w", path, err)
	}
	return s.store.PublicURL(s.bucket, path), nil
}
