package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

func TestFS_UploadNeverOverwrites(t *testing.T) {
	store, err := New(t.TempDir(), "http://host/storage/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := store.Upload(ctx, "anime-posters", "1_a.png", []byte("one"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	err = store.Upload(ctx, "anime-posters", "1_a.png", []byte("two"), "image/png")
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if got := store.PublicURL("anime-posters", "1_a.png"); got != "http://host/storage/anime-posters/1_a.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestFS_RejectsEscapingPaths(t *testing.T) {
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for _, bucket := range []string{"", "..", "a/b"} {
		if err := store.Upload(ctx, bucket, "x.png", []byte("1"), "image/png"); err == nil {
			t.Fatalf("bucket %q should be rejected", bucket)
		}
	}
	if err := store.Upload(ctx, "b", "../../x.png", []byte("1"), "image/png"); err != nil {
		t.Fatalf("cleaned path should stay inside bucket: %v", err)
	}
}

func TestFS_HandlerServesWithCacheControl(t *testing.T) {
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Upload(context.Background(), "anime-posters", "p.png", []byte("png-bytes"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	srv := httptest.NewServer(http.StripPrefix("/storage", store.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/storage/anime-posters/p.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != CacheControl {
		t.Fatalf("cache-control=%q", cc)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "png-bytes" {
		t.Fatalf("body=%q", b)
	}

	dir, err := http.Get(srv.URL + "/storage/anime-posters/")
	if err != nil {
		t.Fatalf("GET dir: %v", err)
	}
	dir.Body.Close()
	if dir.StatusCode != http.StatusNotFound {
		t.Fatalf("directory listing should be hidden, status=%d", dir.StatusCode)
	}
}
