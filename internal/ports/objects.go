package ports

import "context"

// ObjectStore est un stockage binaire public (affiches).
type ObjectStore interface {
	// Upload refuse d'écraser un objet existant (ErrConflict).
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
}
