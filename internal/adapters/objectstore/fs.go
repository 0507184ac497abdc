package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

// CacheControl est l'en-tête appliqué aux objets servis.
const CacheControl = "public, max-age=3600"

// FS stocke les objets sous root/<bucket>/<path>.
type FS struct {
	root    string
	baseURL string
}

// New crée le stockage. baseURL est le préfixe public, par exemple
// "http://127.0.0.1:8080/storage".
func New(root, baseURL string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("object store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func cleanKey(bucket, p string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := path.Clean("/" + p)
	if clean == "/" || strings.Contains(p, `\`) {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return path.Join(bucket, clean[1:]), nil
}

func (s *FS) Upload(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := cleanKey(bucket, p)
	if err != nil {
		return err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	// O_EXCL : jamais d'écrasement.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ports.ErrConflict
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return err
	}
	return f.Close()
}

func (s *FS) PublicURL(bucket, p string) string {
	return s.baseURL + "/" + bucket + "/" + strings.TrimLeft(p, "/")
}

// Handler sert les objets en lecture seule, sans listing de répertoire.
// Il doit être monté avec le préfixe retiré (http.StripPrefix).
func (s *FS) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", CacheControl)
		files.ServeHTTP(w, r)
	})
}
